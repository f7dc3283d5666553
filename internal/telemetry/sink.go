/*
Package telemetry
File: sink.go
Description:
    Records one CSV row per committed tick.

    Sinks are fire-and-forget: Record never blocks and never fails the caller.
    When the queue is full the record is dropped and counted.
*/

package telemetry

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gocarina/gocsv"

	"github.com/everforgeworks/plantsim/internal/game"
)

// TickRecord is one row of the tick log.
type TickRecord struct {
	SessionID string  `csv:"session_id"`
	Level     string  `csv:"level"`
	Tick      int     `csv:"tick"`
	Elapsed   float64 `csv:"elapsed"`
	DeltaT    float64 `csv:"delta_t"`

	// Normalised plan
	LeafPercent   float64 `csv:"leaf_pct"`
	StemPercent   float64 `csv:"stem_pct"`
	RootPercent   float64 `csv:"root_pct"`
	SeedPercent   float64 `csv:"seed_pct"`
	StarchPercent float64 `csv:"starch_pct"`
	Drawdown      float64 `csv:"drawdown_pct"`
	Stomata       bool    `csv:"stomata"`

	// State after commit
	Leaf    float64 `csv:"leaf"`
	Stem    float64 `csv:"stem"`
	Root    float64 `csv:"root"`
	Seed    float64 `csv:"seed"`
	Starch  float64 `csv:"starch"`
	Water   float64 `csv:"water"`
	Nitrate float64 `csv:"nitrate"`

	// Rates
	SupplyRate float64 `csv:"supply_rate"`
	StarchRate float64 `csv:"starch_rate"`
	Rationing  float64 `csv:"rationing"`
	Limiting   string  `csv:"limiting"`

	Light   float64 `csv:"light"`
	Weather string  `csv:"weather"`
}

// NewTickRecord flattens one committed tick.
func NewTickRecord(sessionID, level string, dt float64, plan game.NormalizedPlan, state game.PlantState, env game.Environment) TickRecord {
	return TickRecord{
		SessionID:     sessionID,
		Level:         level,
		Tick:          state.Ticks,
		Elapsed:       state.Elapsed,
		DeltaT:        dt,
		LeafPercent:   plan.Leaf,
		StemPercent:   plan.Stem,
		RootPercent:   plan.Root,
		SeedPercent:   plan.Seed,
		StarchPercent: plan.Starch,
		Drawdown:      plan.Drawdown,
		Stomata:       plan.Stomata,
		Leaf:          state.Biomass.Leaf,
		Stem:          state.Biomass.Stem,
		Root:          state.Biomass.Root,
		Seed:          state.Biomass.Seed,
		Starch:        state.Starch.Level,
		Water:         state.Water.Level,
		Nitrate:       state.Nitrate.Level,
		SupplyRate:    state.Rates.SupplyRate,
		StarchRate:    state.Rates.StarchRate,
		Rationing:     state.Rates.Rationing,
		Limiting:      string(state.Rates.Limiting),
		Light:         env.Light,
		Weather:       env.Weather,
	}
}

// Sink receives tick records.
type Sink interface {
	Record(TickRecord)
	Close() error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Record(TickRecord) {}
func (NopSink) Close() error      { return nil }

const maxBatch = 256

// CSVSink appends records to <dir>/ticks.csv from a single writer goroutine.
type CSVSink struct {
	path string
	file *os.File
	log  *slog.Logger

	mu      sync.RWMutex
	closed  bool
	queue   chan TickRecord
	done    chan struct{}
	dropped atomic.Int64
	written atomic.Int64

	headerWritten bool
}

// NewCSVSink creates the output directory and starts the writer.
// An empty dir returns a NopSink.
func NewCSVSink(dir string, buffer int, logger *slog.Logger) (Sink, error) {
	if dir == "" {
		return NopSink{}, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating tick log directory: %w", err)
	}
	path := filepath.Join(dir, "ticks.csv")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating ticks.csv: %w", err)
	}
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &CSVSink{
		path:  path,
		file:  f,
		log:   logger.With("component", "telemetry"),
		queue: make(chan TickRecord, buffer),
		done:  make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Path is the file the sink writes to.
func (s *CSVSink) Path() string { return s.path }

// Dropped counts records lost to a full queue.
func (s *CSVSink) Dropped() int64 { return s.dropped.Load() }

// Written counts records flushed to disk.
func (s *CSVSink) Written() int64 { return s.written.Load() }

// Record queues r without blocking. Records after Close are ignored.
func (s *CSVSink) Record(r TickRecord) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- r:
	default:
		s.dropped.Add(1)
	}
}

// Close drains the queue, writes what is left and closes the file.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	if n := s.dropped.Load(); n > 0 {
		s.log.Warn("tick log dropped records", "dropped", n)
	}
	return s.file.Close()
}

func (s *CSVSink) run() {
	defer close(s.done)
	batch := make([]TickRecord, 0, maxBatch)
	for r := range s.queue {
		batch = append(batch[:0], r)
	drain:
		for len(batch) < maxBatch {
			select {
			case next, ok := <-s.queue:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		if err := s.write(batch); err != nil {
			s.log.Error("tick log write failed", "error", err, "records", len(batch))
			continue
		}
		s.written.Add(int64(len(batch)))
	}
}

func (s *CSVSink) write(batch []TickRecord) error {
	if !s.headerWritten {
		if err := gocsv.Marshal(batch, s.file); err != nil {
			return fmt.Errorf("writing ticks: %w", err)
		}
		s.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(batch, s.file); err != nil {
		return fmt.Errorf("writing ticks: %w", err)
	}
	return nil
}
