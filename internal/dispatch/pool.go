// ============================================================================
// batchd Worker Pool - bounded concurrent task execution
// ============================================================================
//
// Package: internal/dispatch
// File: pool.go
// Purpose: Manages the lifecycle of N worker goroutines and task fan-out.
//
// Design:
//   Classic worker pool:
//   1. A fixed number of worker goroutines run for the pool's lifetime
//   2. Tasks are fanned out over a shared buffered channel
//   3. Outcomes are collected over a shared result channel
//
// Lifecycle:
//   1. NewPool(bufferSize) - create channels
//   2. Start(n)           - launch n workers
//   3. Submit / SubmitCtx - enqueue tasks
//   4. ReceiveResult / Results - read outcomes
//   5. Stop()             - close taskCh, wait for workers, close resultCh
//
// The pool is scoped to a single batch: created, used for one round of
// submissions, then torn down. It owns no state between batches.
//
// ============================================================================

package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/batchd-io/batchd/pkg/types"
)

var (
	// ErrPoolClosed means the pool has been stopped and accepts no new tasks.
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrPoolNotStarted means Submit was called before Start.
	ErrPoolNotStarted = errors.New("worker pool not started")
)

// Pool manages a bounded set of concurrent workers.
type Pool struct {
	workers  []*worker
	taskCh   chan Task
	resultCh chan types.Outcome
	stopCh   chan struct{}
	wg       sync.WaitGroup
	started  bool
	stopped  bool
	mu       sync.Mutex // guards started and stopped
}

// NewPool creates a pool whose task and result channels hold bufferSize
// entries each. The buffer bounds how far submission can run ahead of
// execution, which is what lets a fail-fast caller abandon dispatch.
func NewPool(bufferSize int) *Pool {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Pool{
		workers:  make([]*worker, 0),
		taskCh:   make(chan Task, bufferSize),
		resultCh: make(chan types.Outcome, bufferSize),
		stopCh:   make(chan struct{}),
	}
}

// Start launches workerCount worker goroutines. Calling Start twice is an
// error.
func (p *Pool) Start(workerCount int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.New("pool already started")
	}
	if workerCount < 1 {
		workerCount = 1
	}

	for i := 0; i < workerCount; i++ {
		w := newWorker(i, p.taskCh, p.resultCh, p.stopCh)
		p.workers = append(p.workers, w)

		p.wg.Add(1)
		go func(w *worker) {
			defer p.wg.Done()
			w.run()
		}(w)
	}

	p.started = true
	return nil
}

// Submit enqueues a task, blocking while the task buffer is full.
func (p *Pool) Submit(task Task) error {
	return p.SubmitCtx(context.Background(), task)
}

// SubmitCtx enqueues a task, giving up when ctx is done or the pool stops.
// The returned error is ctx.Err() for cancellation, ErrPoolClosed after
// Stop, or ErrPoolNotStarted before Start.
func (p *Pool) SubmitCtx(ctx context.Context, task Task) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrPoolNotStarted
	}
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	taskCh := p.taskCh
	stopCh := p.stopCh
	p.mu.Unlock()

	// stopCh guards the window between the check above and the send; the
	// caller owning the pool must not race Submit against Stop.
	select {
	case taskCh <- task:
		return nil
	case <-stopCh:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReceiveResult blocks until one outcome is available.
func (p *Pool) ReceiveResult() (types.Outcome, error) {
	select {
	case out, ok := <-p.resultCh:
		if !ok {
			return types.Outcome{}, ErrPoolClosed
		}
		return out, nil
	case <-p.stopCh:
		return types.Outcome{}, ErrPoolClosed
	}
}

// Results exposes the outcome channel for select-based collection.
// The channel is closed by Stop after all workers have exited.
func (p *Pool) Results() <-chan types.Outcome {
	return p.resultCh
}

// Stop shuts the pool down: no new tasks are accepted, workers finish the
// task they hold, then the result channel is closed. Safe to call more than
// once and before Start.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.stopCh)
	close(p.taskCh)

	p.wg.Wait()

	close(p.resultCh)
}

// WorkerCount returns the number of workers launched by Start.
func (p *Pool) WorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// IsStarted reports whether Start has been called.
func (p *Pool) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}
