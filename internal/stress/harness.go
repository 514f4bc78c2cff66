// ============================================================================
// batchd Stress Harness - allocator growth scenario
// ============================================================================
//
// Package: internal/stress
// File: harness.go
// Purpose: Reproduces resource growth under long-lived accumulating
// containers: each accumulator appends a fixed number of values per round
// and keeps everything it appended, so heap usage climbs round over round.
// Used to exercise memory observability tooling against a known workload.
//
// ============================================================================

package stress

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Config shapes one harness run.
type Config struct {
	Accumulators int           // concurrent accumulating containers
	Rounds       int           // append rounds per accumulator
	Values       int           // values appended per round
	Interval     time.Duration // pause before each round
	MaxParallel  int           // cap on concurrently running accumulators; 0 = no cap
}

// Report summarizes a finished (or cancelled) run.
type Report struct {
	Elements  int64  // values retained across all accumulators
	HeapBytes uint64 // heap in use when the run ended
	Duration  time.Duration
}

// Harness drives the growth scenario.
type Harness struct {
	cfg Config
	log zerolog.Logger
}

// New creates a harness.
func New(cfg Config, log zerolog.Logger) *Harness {
	if cfg.Accumulators < 1 {
		cfg.Accumulators = 1
	}
	if cfg.Rounds < 1 {
		cfg.Rounds = 1
	}
	if cfg.Values < 0 {
		cfg.Values = 0
	}
	return &Harness{cfg: cfg, log: log}
}

// Run executes the scenario and blocks until every accumulator finishes or
// the context is cancelled. The report covers whatever was retained either
// way; the error is the context's when cancelled.
func (h *Harness) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	h.log.Info().
		Int("accumulators", h.cfg.Accumulators).
		Int("rounds", h.cfg.Rounds).
		Int("values_per_round", h.cfg.Values).
		Dur("interval", h.cfg.Interval).
		Msg("stress run started")

	var retained atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	if h.cfg.MaxParallel > 0 {
		g.SetLimit(h.cfg.MaxParallel)
	}

	for a := 0; a < h.cfg.Accumulators; a++ {
		id := a
		g.Go(func() error {
			return h.accumulate(gctx, id, &retained)
		})
	}

	err := g.Wait()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	report := &Report{
		Elements:  retained.Load(),
		HeapBytes: mem.HeapAlloc,
		Duration:  time.Since(start),
	}

	h.log.Info().
		Int64("elements", report.Elements).
		Uint64("heap_bytes", report.HeapBytes).
		Dur("duration", report.Duration).
		Msg("stress run finished")

	return report, err
}

// accumulate is one long-lived growing container.
func (h *Harness) accumulate(ctx context.Context, id int, retained *atomic.Int64) error {
	vals := make([]int64, 0)

	for round := 0; round < h.cfg.Rounds; round++ {
		if h.cfg.Interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(h.cfg.Interval):
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}

		for i := 0; i < h.cfg.Values; i++ {
			vals = append(vals, int64(i))
		}
		retained.Add(int64(h.cfg.Values))

		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		h.log.Debug().
			Int("accumulator", id).
			Int("round", round+1).
			Int("len", len(vals)).
			Uint64("heap_bytes", mem.HeapAlloc).
			Msg("round appended")
	}

	// Keep the slice live until the run ends so growth is observable.
	runtime.KeepAlive(vals)
	return nil
}
