package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/everforgeworks/plantsim/internal/game"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8081 {
		t.Errorf("port = %d, want 8081", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 30*time.Minute {
		t.Errorf("idle timeout = %v", cfg.Server.IdleTimeout)
	}
	if cfg.Model.PhotosynthesisRate <= 0 || cfg.Model.MaxRelativeGrowth <= 0 {
		t.Errorf("model rates missing: %+v", cfg.Model)
	}
	if cfg.Leaderboard.Backend != "memory" {
		t.Errorf("backend = %q", cfg.Leaderboard.Backend)
	}

	def, ok := game.FindLevel(cfg.Levels, "")
	if !ok || def.Name != "default" {
		t.Fatalf("first level = %q, want default", def.Name)
	}
	if def.Initial.Biomass.Leaf != 1 || def.Initial.Water != 5 {
		t.Errorf("default level initial = %+v", def.Initial)
	}
}

func TestSharedWeatherAppliedToCycleLevels(t *testing.T) {
	cfg := Default()

	meadow, ok := game.FindLevel(cfg.Levels, "meadow")
	if !ok {
		t.Fatal("meadow level missing")
	}
	if len(meadow.Environment.Weather) != len(cfg.Weather) {
		t.Errorf("meadow weather = %d entries, want shared %d", len(meadow.Environment.Weather), len(cfg.Weather))
	}

	drought, _ := game.FindLevel(cfg.Levels, "drought")
	if drought.Environment.Weather[0].Name != "scorching" {
		t.Errorf("drought should keep its own weather, got %q", drought.Environment.Weather[0].Name)
	}

	def, _ := game.FindLevel(cfg.Levels, "default")
	if len(def.Environment.Weather) != 0 {
		t.Error("constant levels should not receive weather")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plantsim.yaml")
	user := []byte(`
server:
  port: 9000
  idle_timeout: 5s
model:
  photosynthesis_rate: 0.001
leaderboard:
  backend: sqlite
`)
	if err := os.WriteFile(path, user, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 || cfg.Server.IdleTimeout != 5*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Model.PhotosynthesisRate != 0.001 {
		t.Errorf("photosynthesis_rate = %v", cfg.Model.PhotosynthesisRate)
	}
	// Untouched keys keep their defaults.
	if cfg.Server.ReapInterval != 60*time.Second || cfg.Model.WaterPerGrowth != 2 {
		t.Errorf("defaults lost: reap %v water_per_growth %v", cfg.Server.ReapInterval, cfg.Model.WaterPerGrowth)
	}
	if cfg.Leaderboard.SQLitePath != "plantsim.db" {
		t.Errorf("sqlite path = %q", cfg.Leaderboard.SQLitePath)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		invalid bool
	}{
		{"missing file", filepath.Join(dir, "nope.yaml"), false},
		{"bad yaml", write("bad.yaml", "server: [unclosed"), false},
		{"bad port", write("port.yaml", "server:\n  port: 70000\n"), true},
		{"no levels", write("levels.yaml", "levels: []\n"), true},
		{"duplicate level", write("dup.yaml", "levels:\n  - name: a\n  - name: a\n"), true},
		{"unknown backend", write("store.yaml", "leaderboard:\n  backend: redis\n"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, ErrInvalidConfig); got != tt.invalid {
				t.Errorf("errors.Is(ErrInvalidConfig) = %v, want %v (%v)", got, tt.invalid, err)
			}
		})
	}
}

func TestLevelLookup(t *testing.T) {
	cfg := Default()
	if _, ok := game.FindLevel(cfg.Levels, "understory"); !ok {
		t.Error("understory not found")
	}
	if _, ok := game.FindLevel(cfg.Levels, "volcano"); ok {
		t.Error("unknown level should not be found")
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 9100
	cfg.Server.IdleTimeout = 90 * time.Second

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if back.Server.Port != 9100 || back.Server.IdleTimeout != 90*time.Second {
		t.Errorf("server = %+v", back.Server)
	}
	if len(back.Levels) != len(cfg.Levels) {
		t.Errorf("levels = %d, want %d", len(back.Levels), len(cfg.Levels))
	}
}
