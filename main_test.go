package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/everforgeworks/plantsim/internal/config"
)

func parse(t *testing.T, args ...string) (*cobra.Command, flags) {
	t.Helper()
	var f flags
	cmd := &cobra.Command{Use: "plantsim"}
	bindFlags(cmd, &f)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags(%v): %v", args, err)
	}
	return cmd, f
}

func TestLoadConfigDefaults(t *testing.T) {
	cmd, f := parse(t)
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	def := config.Default()
	if cfg.Server.Port != def.Server.Port {
		t.Errorf("port = %d, want default %d", cfg.Server.Port, def.Server.Port)
	}
	if cfg.Leaderboard.Backend != def.Leaderboard.Backend {
		t.Errorf("backend = %q, want %q", cfg.Leaderboard.Backend, def.Leaderboard.Backend)
	}
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	cmd, f := parse(t,
		"--port", "9090",
		"--tick-log-dir", dir,
		"--store", "sqlite",
		"--sqlite-path", "scores.db",
	)
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Telemetry.Dir != dir {
		t.Errorf("tick log dir = %q, want %q", cfg.Telemetry.Dir, dir)
	}
	if cfg.Leaderboard.Backend != "sqlite" || cfg.Leaderboard.SQLitePath != "scores.db" {
		t.Errorf("leaderboard = %+v, want sqlite at scores.db", cfg.Leaderboard)
	}
}

func TestLoadConfigRejectsBadOverrides(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"port zero", []string{"--port", "0"}},
		{"unknown store", []string{"--store", "redis"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, f := parse(t, tt.args...)
			_, err := loadConfig(cmd, f)
			if !errors.Is(err, config.ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfigCommandWritesEffectiveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plantsim.yaml")
	var stdout bytes.Buffer

	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetArgs([]string{"config", "--port", "9300", "--store", "sqlite", "--out", path})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(stdout.String(), path) {
		t.Errorf("output = %q", stdout.String())
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9300 || cfg.Leaderboard.Backend != "sqlite" {
		t.Errorf("written config: port %d backend %q", cfg.Server.Port, cfg.Leaderboard.Backend)
	}
	if len(cfg.Levels) != len(config.Default().Levels) {
		t.Errorf("levels = %d", len(cfg.Levels))
	}
}
