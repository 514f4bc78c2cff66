// ============================================================================
// batchd Worker - task execution unit
// ============================================================================
//
// Package: internal/dispatch
// File: worker.go
// Purpose: One goroutine per worker; each ranges over the shared task
// channel, runs the item's transform under an optional per-item timeout,
// and reports an Outcome for every task it picks up.
//
// ============================================================================

package dispatch

import (
	"context"
	"time"

	"github.com/batchd-io/batchd/pkg/types"
)

// worker executes tasks pulled from the pool's task channel.
type worker struct {
	id       int
	taskCh   <-chan Task
	resultCh chan<- types.Outcome
	stopCh   <-chan struct{}
}

func newWorker(id int, taskCh <-chan Task, resultCh chan<- types.Outcome, stopCh <-chan struct{}) *worker {
	return &worker{
		id:       id,
		taskCh:   taskCh,
		resultCh: resultCh,
		stopCh:   stopCh,
	}
}

// run is the worker main loop. It exits when the task channel is closed.
// Every task that is picked up produces exactly one outcome; the send only
// gives up if the pool is being torn down underneath us.
func (w *worker) run() {
	for task := range w.taskCh {
		start := time.Now()

		value, err := w.execute(task)

		out := types.Outcome{
			ItemID:   task.Item.ID,
			Seq:      task.Item.Seq,
			Value:    value,
			Err:      err,
			Duration: time.Since(start),
		}

		select {
		case w.resultCh <- out:
		case <-w.stopCh:
			return
		}
	}
}

// execute runs the transform with the task's timeout applied.
func (w *worker) execute(task Task) (any, error) {
	ctx := context.Background()
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	return task.Fn(ctx, task.Item)
}
