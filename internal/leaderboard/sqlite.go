/*
Package leaderboard
File: sqlite.go
Description: SQLite-backed Store, one row per session keyed by its id.
*/

package leaderboard

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) Record(ctx context.Context, summary Summary) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	var endedAt int64
	if !summary.EndedAt.IsZero() {
		endedAt = summary.EndedAt.UnixNano()
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO summaries (session_id, level, seed, score, leaf, stem, root, seed_mass, ticks, elapsed, reason, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			level = excluded.level,
			seed = excluded.seed,
			score = excluded.score,
			leaf = excluded.leaf,
			stem = excluded.stem,
			root = excluded.root,
			seed_mass = excluded.seed_mass,
			ticks = excluded.ticks,
			elapsed = excluded.elapsed,
			reason = excluded.reason,
			ended_at = excluded.ended_at
	`, summary.SessionID, summary.Level, int64(summary.Seed), summary.Score,
		summary.Leaf, summary.Stem, summary.Root, summary.SeedMass,
		summary.Ticks, summary.Elapsed, summary.Reason, endedAt)
	return err
}

func (s *SQLiteStore) Top(ctx context.Context, limit int) ([]Summary, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := db.QueryContext(ctx, `
		SELECT session_id, level, seed, score, leaf, stem, root, seed_mass, ticks, elapsed, reason, ended_at
		FROM summaries
		ORDER BY score DESC, ended_at ASC, session_id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			e       Summary
			seed    int64
			endedAt int64
		)
		if err := rows.Scan(&e.SessionID, &e.Level, &seed, &e.Score, &e.Leaf, &e.Stem, &e.Root,
			&e.SeedMass, &e.Ticks, &e.Elapsed, &e.Reason, &endedAt); err != nil {
			return nil, err
		}
		e.Seed = uint64(seed)
		if endedAt != 0 {
			e.EndedAt = time.Unix(0, endedAt).UTC()
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("sqlite store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS summaries (
			session_id TEXT PRIMARY KEY,
			level TEXT NOT NULL,
			seed INTEGER NOT NULL,
			score REAL NOT NULL,
			leaf REAL NOT NULL,
			stem REAL NOT NULL,
			root REAL NOT NULL,
			seed_mass REAL NOT NULL,
			ticks INTEGER NOT NULL,
			elapsed REAL NOT NULL,
			reason TEXT NOT NULL,
			ended_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS summaries_score ON summaries (score DESC);
	`)
	return err
}
