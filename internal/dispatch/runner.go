// ============================================================================
// batchd Runner - one-shot batch execution
// ============================================================================
//
// Package: internal/dispatch
// File: runner.go
// Purpose: Dispatch a fixed collection of items across a bounded worker
// pool, run the caller's transform on each, and collect every outcome.
//
// Contract:
//   - Every submitted item yields exactly one outcome: a value, a transform
//     error, or ErrBatchAborted when dispatch was abandoned before the item
//     was handed to a worker. No item is silently dropped.
//   - Outcomes land at the item's input position; completion order across
//     workers is unspecified.
//   - The pool is acquired for the duration of the batch and released
//     unconditionally, whether or not any task failed.
//   - Failure policy is fail-fast: the first transform error stops further
//     dispatch, in-flight items finish, and the error is returned.
//   - Cancelling the context is best-effort: no new items are dispatched,
//     in-flight items run to completion.
//
// ============================================================================

package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/batchd-io/batchd/internal/metrics"
	"github.com/batchd-io/batchd/internal/tracker"
	"github.com/batchd-io/batchd/pkg/types"
)

// ErrBatchAborted is recorded for items that were never dispatched because
// the batch stopped early (fail-fast or cancellation).
var ErrBatchAborted = errors.New("batch aborted before dispatch")

// Options configures a Runner.
type Options struct {
	Workers int           // pool capacity; values < 1 are raised to 1
	Timeout time.Duration // per-item transform timeout; 0 disables it
}

// Runner executes batches over a scoped worker pool.
type Runner struct {
	opts    Options
	log     zerolog.Logger
	metrics *metrics.Collector // optional
}

// NewRunner creates a batch runner. collector may be nil when metrics are
// disabled.
func NewRunner(opts Options, log zerolog.Logger, collector *metrics.Collector) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Runner{
		opts:    opts,
		log:     log,
		metrics: collector,
	}
}

// Run dispatches items across the pool and blocks until every item is
// accounted for. The returned report always covers all input items; the
// returned error is the first transform failure, or the context error when
// the batch was cancelled.
func (r *Runner) Run(ctx context.Context, items []types.Item, fn Transform) (*types.BatchReport, error) {
	start := time.Now()
	report := &types.BatchReport{
		BatchID:  uuid.NewString(),
		Total:    len(items),
		Outcomes: make([]types.Outcome, len(items)),
	}

	if len(items) == 0 {
		r.log.Debug().Str("batch_id", report.BatchID).Msg("empty batch, nothing to dispatch")
		return report, nil
	}

	log := r.log.With().Str("batch_id", report.BatchID).Logger()
	log.Info().
		Int("items", len(items)).
		Int("workers", r.opts.Workers).
		Msg("batch started")

	trk := tracker.New()
	if err := trk.Add(items...); err != nil {
		return nil, err
	}

	// Pool scoped to this batch. The buffer is sized to the pool capacity
	// so submission cannot run arbitrarily far ahead of execution; that is
	// what makes abandoning dispatch meaningful.
	pool := NewPool(r.opts.Workers)
	if err := pool.Start(r.opts.Workers); err != nil {
		return nil, err
	}
	defer pool.Stop()

	feedCtx, stopFeeding := context.WithCancel(ctx)
	defer stopFeeding()

	// Feeder: submits items in order until done or told to stop, then
	// reports how many it handed to the pool.
	fed := make(chan int, 1)
	go func() {
		n := 0
		for i := range items {
			task := Task{Item: items[i], Fn: fn, Timeout: r.opts.Timeout}
			task.Item.Seq = i // outcomes index by input position

			// Mark before handing over: a fast worker may finish the item
			// before this goroutine runs again. A failed submit leaves the
			// item in flight with no outcome; the abort sweep below records
			// its failure.
			if terr := trk.MarkInFlight(items[i].ID); terr != nil {
				log.Error().Str("item", string(items[i].ID)).Err(terr).Msg("tracker transition failed")
			}
			if err := pool.SubmitCtx(feedCtx, task); err != nil {
				break
			}
			r.recordDispatch(trk)
			n++
		}
		fed <- n
	}()

	var firstErr error
	collected := 0
	target := -1 // unknown until the feeder reports
	ctxDone := ctx.Done()

	// Outcome slots are filled positively rather than inferred from the
	// zero value: item IDs are opaque and may legitimately be empty.
	filled := make([]bool, len(items))

	for target < 0 || collected < target {
		select {
		case n := <-fed:
			target = n

		case out := <-pool.Results():
			report.Outcomes[out.Seq] = out
			filled[out.Seq] = true
			collected++

			if out.Err != nil {
				report.Failed++
				if terr := trk.MarkFailed(out.ItemID); terr != nil {
					log.Error().Str("item", string(out.ItemID)).Err(terr).Msg("tracker transition failed")
				}
				r.recordFailed(trk)
				log.Warn().
					Str("item", string(out.ItemID)).
					Err(out.Err).
					Msg("item failed")
				if firstErr == nil {
					firstErr = out.Err
					stopFeeding() // fail-fast: abandon remaining dispatch
				}
			} else {
				report.Completed++
				if terr := trk.MarkCompleted(out.ItemID); terr != nil {
					log.Error().Str("item", string(out.ItemID)).Err(terr).Msg("tracker transition failed")
				}
				r.recordCompleted(trk, out.Duration)
				log.Debug().
					Str("item", string(out.ItemID)).
					Dur("duration", out.Duration).
					Msg("item completed")
			}

		case <-ctxDone:
			if firstErr == nil {
				firstErr = ctx.Err()
			}
			stopFeeding()
			ctxDone = nil // keep collecting in-flight outcomes
		}
	}

	// Items the feeder never handed to the pool still get a recorded
	// failure so the batch accounts for every input exactly once.
	for i := range items {
		if filled[i] {
			continue
		}
		report.Outcomes[i] = types.Outcome{
			ItemID: items[i].ID,
			Seq:    i,
			Err:    ErrBatchAborted,
		}
		report.Failed++
		if terr := trk.MarkFailed(items[i].ID); terr != nil {
			log.Error().Str("item", string(items[i].ID)).Err(terr).Msg("tracker transition failed")
		}
		r.recordFailed(trk)
	}

	if unaccounted := trk.Unaccounted(); len(unaccounted) > 0 {
		log.Error().
			Int("count", len(unaccounted)).
			Msg("items left unaccounted after batch, this is a bug")
	}

	report.Duration = time.Since(start)
	if r.metrics != nil {
		r.metrics.RecordBatch(report.Duration.Seconds())
	}

	log.Info().
		Int("completed", report.Completed).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("batch finished")

	return report, firstErr
}

func (r *Runner) recordDispatch(trk *tracker.Tracker) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordDispatch()
	r.metrics.SetInFlight(trk.Counts()[types.StatusInFlight])
}

func (r *Runner) recordCompleted(trk *tracker.Tracker, d time.Duration) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordCompleted(d.Seconds())
	r.metrics.SetInFlight(trk.Counts()[types.StatusInFlight])
}

func (r *Runner) recordFailed(trk *tracker.Tracker) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordFailed()
	r.metrics.SetInFlight(trk.Counts()[types.StatusInFlight])
}
