/*
Package leaderboard
File: memory.go
Description: Map-backed Store. Standings are lost on restart.
*/

package leaderboard

import (
	"context"
	"errors"
	"sync"
)

var errNotInitialized = errors.New("store not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	entries     map[string]Summary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.entries = make(map[string]Summary)
	return nil
}

// Record stores the summary, replacing any earlier one for the same session.
func (s *MemoryStore) Record(_ context.Context, summary Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.entries[summary.SessionID] = summary
	return nil
}

func (s *MemoryStore) Top(_ context.Context, limit int) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, errNotInitialized
	}
	out := make([]Summary, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	rank(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
