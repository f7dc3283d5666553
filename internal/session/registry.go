/*
Package session
File: registry.go
Description:
    The Registry maps session ids to live sessions. It replaces any notion of a
    global "current plant": every lookup goes through an id.

    Removing a session closes it, records its summary on the leaderboard and
    notifies the OnEnd hook (the hub uses it to broadcast standings).
*/

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/everforgeworks/plantsim/internal/game"
	"github.com/everforgeworks/plantsim/internal/leaderboard"
	"github.com/everforgeworks/plantsim/internal/logging"
	"github.com/everforgeworks/plantsim/internal/telemetry"
)

// Reasons recorded when a session ends.
const (
	ReasonDisconnect = "disconnect"
	ReasonDeleted    = "deleted"
	ReasonIdle       = "idle"
	ReasonShutdown   = "shutdown"
)

// Options configures a Registry.
type Options struct {
	Model  game.ModelParams
	Levels []game.Level
	Sink   telemetry.Sink
	Store  leaderboard.Store
	Logger *slog.Logger

	// OnEnd is called after a session's summary has been recorded.
	OnEnd func(leaderboard.Summary)

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Registry owns all live sessions.
type Registry struct {
	sink  telemetry.Sink
	store leaderboard.Store
	base  *slog.Logger
	log   *slog.Logger
	onEnd func(leaderboard.Summary)
	now   func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	model    *game.GrowthModel
	levels   []game.Level
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.Sink == nil {
		opts.Sink = telemetry.NopSink{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		sink:     opts.Sink,
		store:    opts.Store,
		base:     opts.Logger,
		log:      opts.Logger.With("component", "registry"),
		onEnd:    opts.OnEnd,
		now:      opts.Now,
		sessions: make(map[string]*Session),
		model:    game.NewGrowthModel(opts.Model),
		levels:   append([]game.Level(nil), opts.Levels...),
	}
}

// Reconfigure swaps the model and levels used for sessions created from now on.
// Running sessions keep the configuration they started with.
func (r *Registry) Reconfigure(params game.ModelParams, levels []game.Level) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.model = game.NewGrowthModel(params)
	r.levels = append([]game.Level(nil), levels...)
	r.log.Info("registry reconfigured", "levels", len(levels))
}

// Levels lists the levels available to new sessions.
func (r *Registry) Levels() []game.Level {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]game.Level(nil), r.levels...)
}

// Create starts a session on the named level. An empty name picks the first level.
func (r *Registry) Create(levelName string, seed uint64) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	level, ok := game.FindLevel(r.levels, levelName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLevel, levelName)
	}

	id := uuid.NewString()
	s := newSession(id, level, seed, r.model, r.sink, r.base, r.now)
	r.sessions[id] = s

	r.log.Info("session created", "session_id", id, "level", level.Name, "seed", seed, "active", len(r.sessions))
	return s, nil
}

// Get looks a session up by id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// List returns snapshots of all live sessions, oldest first.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.RUnlock()

	sort.Slice(live, func(i, j int) bool {
		if !live[i].created.Equal(live[j].created) {
			return live[i].created.Before(live[j].created)
		}
		return live[i].id < live[j].id
	})

	out := make([]Snapshot, 0, len(live))
	for _, s := range live {
		if snap, err := s.Snapshot(); err == nil {
			out = append(out, snap)
		}
	}
	return out
}

// Remove terminates a session and records its summary. A leaderboard failure
// is logged, not returned: the session is gone either way.
func (r *Registry) Remove(ctx context.Context, id, reason string) (leaderboard.Summary, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return leaderboard.Summary{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	summary, err := s.Close(reason)
	if err != nil {
		return leaderboard.Summary{}, err
	}

	if r.store != nil {
		if err := r.store.Record(ctx, summary); err != nil {
			r.log.Error("failed to record summary", "session_id", id, "error", err)
		}
	}
	if r.onEnd != nil {
		r.onEnd(summary)
	}
	return summary, nil
}

// ReapIdle removes sessions without activity for longer than timeout.
func (r *Registry) ReapIdle(ctx context.Context, timeout time.Duration) []leaderboard.Summary {
	if timeout <= 0 {
		return nil
	}
	cutoff := r.now().Add(-timeout)

	r.mu.RLock()
	var idle []string
	for id, s := range r.sessions {
		if s.LastActive().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	r.mu.RUnlock()
	sort.Strings(idle)

	var reaped []leaderboard.Summary
	for _, id := range idle {
		summary, err := r.Remove(ctx, id, ReasonIdle)
		if err != nil {
			continue
		}
		reaped = append(reaped, summary)
	}
	if len(reaped) > 0 {
		r.log.Info("idle sessions reaped", "count", len(reaped))
	}
	return reaped
}

// CloseAll terminates every session, for shutdown.
func (r *Registry) CloseAll(ctx context.Context, reason string) int {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	n := 0
	for _, id := range ids {
		if _, err := r.Remove(ctx, id, reason); err == nil {
			n++
		}
	}
	return n
}

// Leaderboard returns the best summaries recorded so far.
func (r *Registry) Leaderboard(ctx context.Context, limit int) ([]leaderboard.Summary, error) {
	if r.store == nil {
		return nil, nil
	}
	return r.store.Top(ctx, limit)
}
