/*
Package session
File: session.go
Description:
    A Session owns exactly one plant and serialises every tick against it.
    Steps run on a copy of the state and are committed by a single swap, so a
    cancelled or failed step leaves the pre-tick state untouched.

    Lifecycle: Uninitialized -> Ready <-> Stepping, Reset returns to Ready with
    a fresh plant, Close moves any state to Terminated for good.
*/

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/everforgeworks/plantsim/internal/game"
	"github.com/everforgeworks/plantsim/internal/leaderboard"
	"github.com/everforgeworks/plantsim/internal/logging"
	"github.com/everforgeworks/plantsim/internal/telemetry"
)

var (
	// ErrSessionClosed is returned by every operation on a terminated session.
	ErrSessionClosed = errors.New("session closed")

	// ErrNotFound is returned by the Registry for unknown session ids.
	ErrNotFound = errors.New("session not found")

	// ErrUnknownLevel is returned when creating a session for a level that does not exist.
	ErrUnknownLevel = errors.New("unknown level")
)

// Status is the lifecycle state of a Session.
type Status int

const (
	StatusUninitialized Status = iota
	StatusReady
	StatusStepping
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusReady:
		return "ready"
	case StatusStepping:
		return "stepping"
	case StatusTerminated:
		return "terminated"
	}
	return "unknown"
}

// Snapshot is the read-only view of a session served to clients.
type Snapshot struct {
	SessionID   string            `json:"session_id"`
	Level       string            `json:"level"`
	Seed        uint64            `json:"seed"`
	Status      string            `json:"status"`
	Plant       game.PlantState   `json:"plant"`
	Environment game.Environment  `json:"environment"`
	GrowthRates game.GrowthReport `json:"growth_rates"`
}

// Session is one player's plant.
type Session struct {
	id    string
	level game.Level
	seed  uint64
	model *game.GrowthModel
	env   game.EnvironmentProvider
	sink  telemetry.Sink
	log   *slog.Logger
	now   func() time.Time

	sem  chan struct{} // One slot: the step in flight
	done chan struct{} // Closed once the session is terminated

	mu         sync.RWMutex
	status     Status
	plant      game.PlantState
	lastEnv    game.Environment
	created    time.Time
	lastActive time.Time
}

// New creates a session and initialises its plant from the level.
// A nil sink or logger is replaced by a no-op.
func New(id string, level game.Level, seed uint64, model *game.GrowthModel, sink telemetry.Sink, logger *slog.Logger) *Session {
	return newSession(id, level, seed, model, sink, logger, time.Now)
}

func newSession(id string, level game.Level, seed uint64, model *game.GrowthModel, sink telemetry.Sink, logger *slog.Logger, now func() time.Time) *Session {
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Session{
		id:     id,
		level:  level,
		seed:   seed,
		model:  model,
		sink:   sink,
		log:    logging.ForSession(logger, id).With("level", level.Name),
		now:    now,
		sem:    make(chan struct{}, 1),
		done:   make(chan struct{}),
		status: StatusUninitialized,
	}
	s.created = now()
	s.initialize()
	return s
}

// initialize builds a fresh plant. Callers hold the semaphore or own s exclusively.
func (s *Session) initialize() {
	env := game.NewEnvironmentProvider(s.level.Environment, s.seed)
	plant := game.NewPlantState(s.level.Initial, s.model.Params)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusTerminated {
		return
	}
	s.env = env
	s.plant = plant
	s.lastEnv = env.Conditions(0)
	s.lastActive = s.now()
	s.status = StatusReady
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Level returns the name of the level the session plays.
func (s *Session) Level() string { return s.level.Name }

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Done is closed when the session terminates.
func (s *Session) Done() <-chan struct{} { return s.done }

// LastActive is the time of the last committed tick, reset or query.
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

// acquire takes the step slot. A context that is already done never wins the slot.
func (s *Session) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) release() { <-s.sem }

// Step normalises the plan, advances the plant by dt seconds and commits the
// result. Steps on one session never overlap; a second caller waits for the
// first or gives up when ctx is done.
func (s *Session) Step(ctx context.Context, raw game.AllocationPlan, dt float64) (Snapshot, error) {
	if err := s.acquire(ctx); err != nil {
		return Snapshot{}, err
	}
	defer s.release()

	s.mu.Lock()
	if s.status == StatusTerminated {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionClosed
	}
	s.status = StatusStepping
	current := s.plant
	provider := s.env
	s.mu.Unlock()

	// Back to Ready unless the step committed or the session was closed meanwhile.
	committed := false
	defer func() {
		if committed {
			return
		}
		s.mu.Lock()
		if s.status == StatusStepping {
			s.status = StatusReady
		}
		s.mu.Unlock()
	}()

	plan, err := game.Normalize(raw)
	if err != nil {
		return Snapshot{}, err
	}
	if len(plan.Clamped) > 0 {
		s.log.Warn("negative allocation clamped", "organs", plan.Clamped, "raw", raw)
	}

	env := provider.Conditions(current.Elapsed)
	next, report, err := s.model.Compute(current, plan, env, dt)
	if err != nil {
		return Snapshot{}, err
	}
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	if s.status == StatusTerminated {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionClosed
	}
	s.plant = next
	s.lastEnv = env
	s.lastActive = s.now()
	s.status = StatusReady
	snap := s.snapshotLocked()
	s.mu.Unlock()
	committed = true

	if report.Diagnostics.Clamped > 0 {
		s.log.Warn("negative biomass clamped at commit", "count", report.Diagnostics.Clamped)
	}
	if len(report.Diagnostics.FillWarnings) > 0 {
		s.log.Warn("pool fill ratio out of range", "pools", report.Diagnostics.FillWarnings)
	}
	s.log.Debug("tick committed",
		"tick", next.Ticks,
		"delta_t", dt,
		"limiting", report.Limiting,
		"rationing", report.Rationing,
		"biomass", next.TotalBiomass(),
	)
	s.sink.Record(telemetry.NewTickRecord(s.id, s.level.Name, dt, plan, next, env))

	return snap, nil
}

// Reset replaces the plant with a fresh one from the session's level.
func (s *Session) Reset(ctx context.Context) (Snapshot, error) {
	if err := s.acquire(ctx); err != nil {
		return Snapshot{}, err
	}
	defer s.release()

	s.mu.Lock()
	if s.status == StatusTerminated {
		s.mu.Unlock()
		return Snapshot{}, ErrSessionClosed
	}
	s.status = StatusUninitialized
	s.mu.Unlock()

	s.initialize()
	s.log.Info("session reset")
	return s.Snapshot()
}

// Snapshot returns the last committed state without advancing time.
func (s *Session) Snapshot() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status == StatusTerminated {
		return Snapshot{}, ErrSessionClosed
	}
	return s.snapshotLocked(), nil
}

// Query is the GROWTH request: the last committed state, counted as activity.
func (s *Session) Query() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusTerminated {
		return Snapshot{}, ErrSessionClosed
	}
	s.lastActive = s.now()
	return s.snapshotLocked(), nil
}

func (s *Session) snapshotLocked() Snapshot {
	plant := s.plant.Clone()
	return Snapshot{
		SessionID:   s.id,
		Level:       s.level.Name,
		Seed:        s.seed,
		Status:      s.status.String(),
		Plant:       plant,
		Environment: s.lastEnv,
		GrowthRates: plant.Rates,
	}
}

// Close terminates the session and returns its summary. A step in flight
// is discarded at commit.
func (s *Session) Close(reason string) (leaderboard.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusTerminated {
		return leaderboard.Summary{}, ErrSessionClosed
	}
	s.status = StatusTerminated
	close(s.done)

	b := s.plant.Biomass
	summary := leaderboard.Summary{
		SessionID: s.id,
		Level:     s.level.Name,
		Seed:      s.seed,
		Score:     b.Total(),
		Leaf:      b.Leaf,
		Stem:      b.Stem,
		Root:      b.Root,
		SeedMass:  b.Seed,
		Ticks:     s.plant.Ticks,
		Elapsed:   s.plant.Elapsed,
		Reason:    reason,
		EndedAt:   s.now().UTC(),
	}
	s.log.Info("session closed", "reason", reason, "score", summary.Score, "ticks", summary.Ticks)
	return summary, nil
}
