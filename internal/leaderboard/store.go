/*
Package leaderboard
File: store.go
Description:
    Keeps the summaries of finished sessions and ranks them by final biomass.
    Two backends exist: an in-memory map (memory.go) and SQLite (sqlite.go).
*/

package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Summary is what remains of a session once it ends.
type Summary struct {
	SessionID string    `json:"session_id"`
	Level     string    `json:"level"`
	Seed      uint64    `json:"seed"`
	Score     float64   `json:"score"` // Total biomass at termination
	Leaf      float64   `json:"leaf"`
	Stem      float64   `json:"stem"`
	Root      float64   `json:"root"`
	SeedMass  float64   `json:"seed_mass"`
	Ticks     int       `json:"ticks"`
	Elapsed   float64   `json:"elapsed"`
	Reason    string    `json:"reason"` // disconnect, deleted, idle, shutdown
	EndedAt   time.Time `json:"ended_at"`
}

// Store persists session summaries and ranks them.
type Store interface {
	Init(ctx context.Context) error
	Record(ctx context.Context, summary Summary) error
	Top(ctx context.Context, limit int) ([]Summary, error)
}

// NewStore builds the backend named by kind.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(sqlitePath), nil
	default:
		return nil, fmt.Errorf("unsupported leaderboard backend: %s", kind)
	}
}

// CloseIfSupported closes stores that hold resources.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}

// rank orders summaries best first. Ties go to whoever finished earlier.
func rank(entries []Summary) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if !entries[i].EndedAt.Equal(entries[j].EndedAt) {
			return entries[i].EndedAt.Before(entries[j].EndedAt)
		}
		return entries[i].SessionID < entries[j].SessionID
	})
}
