package dispatch

// ============================================================================
// Worker Pool Test File
// Purpose: Verify pool lifecycle, concurrent execution, timeout handling,
// and graceful shutdown.
// ============================================================================

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/batchd-io/batchd/pkg/types"
)

// doubler returns the item's payload doubled after an optional delay. The
// delay honors the context so per-task timeouts apply.
func doubler(delay time.Duration) Transform {
	return func(ctx context.Context, item types.Item) (any, error) {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		return item.Payload * 2, nil
	}
}

func makeTask(i int, fn Transform, timeout time.Duration) Task {
	return Task{
		Item: types.Item{
			ID:      types.ItemID(fmt.Sprintf("task-%d", i)),
			Seq:     i,
			Payload: i,
		},
		Fn:      fn,
		Timeout: timeout,
	}
}

// ============================================================================
// Basic Functionality Tests
// ============================================================================

func TestNewPool(t *testing.T) {
	pool := NewPool(10)
	assert.NotNil(t, pool)
	assert.Equal(t, 0, pool.WorkerCount())
	assert.False(t, pool.IsStarted())
}

func TestPoolStart(t *testing.T) {
	pool := NewPool(10)

	err := pool.Start(8)
	require.NoError(t, err)
	assert.Equal(t, 8, pool.WorkerCount())
	assert.True(t, pool.IsStarted())

	// Starting twice is an error
	err = pool.Start(4)
	assert.Error(t, err)

	pool.Stop()
}

func TestPoolExecution(t *testing.T) {
	pool := NewPool(10)
	err := pool.Start(1)
	require.NoError(t, err)

	taskCount := 10
	for i := 0; i < taskCount; i++ {
		err := pool.Submit(makeTask(i, doubler(0), time.Second))
		require.NoError(t, err)
	}

	results := make(map[types.ItemID]types.Outcome)
	for i := 0; i < taskCount; i++ {
		out, err := pool.ReceiveResult()
		require.NoError(t, err)
		results[out.ItemID] = out
	}

	assert.Equal(t, taskCount, len(results))
	for i := 0; i < taskCount; i++ {
		out := results[types.ItemID(fmt.Sprintf("task-%d", i))]
		require.NoError(t, out.Err)
		assert.Equal(t, i*2, out.Value)
	}

	pool.Stop()
}

func TestTaskTimeout(t *testing.T) {
	pool := NewPool(10)
	err := pool.Start(1)
	require.NoError(t, err)

	// The transform sleeps far longer than the task timeout allows.
	err = pool.Submit(makeTask(0, doubler(time.Second), time.Millisecond))
	require.NoError(t, err)

	out, err := pool.ReceiveResult()
	require.NoError(t, err)

	assert.True(t, out.Failed())
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)

	pool.Stop()
}

func TestTransformError(t *testing.T) {
	pool := NewPool(10)
	require.NoError(t, pool.Start(2))

	boom := errors.New("boom")
	failing := func(ctx context.Context, item types.Item) (any, error) {
		return nil, boom
	}

	require.NoError(t, pool.Submit(makeTask(0, failing, 0)))

	out, err := pool.ReceiveResult()
	require.NoError(t, err)
	assert.ErrorIs(t, out.Err, boom)
	assert.Nil(t, out.Value)

	pool.Stop()
}

// ============================================================================
// Concurrency Tests
// ============================================================================

func TestConcurrency(t *testing.T) {
	pool := NewPool(100)
	workerCount := 8
	taskCount := 100
	perTask := 20 * time.Millisecond

	err := pool.Start(workerCount)
	require.NoError(t, err)

	start := time.Now()

	for i := 0; i < taskCount; i++ {
		err := pool.Submit(makeTask(i, doubler(perTask), time.Second))
		require.NoError(t, err)
	}

	for i := 0; i < taskCount; i++ {
		out, err := pool.ReceiveResult()
		require.NoError(t, err)
		require.NoError(t, out.Err)
	}

	duration := time.Since(start)
	t.Logf("Processed %d tasks in %v with %d workers", taskCount, duration, workerCount)

	// Serial execution would take taskCount*perTask = 2s; with 8 workers
	// it should finish well under half of that.
	assert.Less(t, duration, time.Duration(taskCount)*perTask/2)

	pool.Stop()
}

func TestConcurrentSubmit(t *testing.T) {
	pool := NewPool(100)
	err := pool.Start(4)
	require.NoError(t, err)

	taskCount := 50
	var wg sync.WaitGroup
	wg.Add(taskCount)

	for i := 0; i < taskCount; i++ {
		go func(index int) {
			defer wg.Done()
			err := pool.Submit(makeTask(index, doubler(0), time.Second))
			assert.NoError(t, err)
		}(i)
	}

	wg.Wait()

	for i := 0; i < taskCount; i++ {
		_, err := pool.ReceiveResult()
		require.NoError(t, err)
	}

	pool.Stop()
}

func TestSubmitCtxCancelled(t *testing.T) {
	// Buffer of 1, slow single worker: the buffer fills and a cancelled
	// context must unblock the submitter.
	pool := NewPool(1)
	require.NoError(t, pool.Start(1))
	defer pool.Stop()

	require.NoError(t, pool.Submit(makeTask(0, doubler(200*time.Millisecond), time.Second)))
	require.NoError(t, pool.Submit(makeTask(1, doubler(200*time.Millisecond), time.Second)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := pool.SubmitCtx(ctx, makeTask(2, doubler(0), time.Second))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	for i := 0; i < 2; i++ {
		_, err := pool.ReceiveResult()
		require.NoError(t, err)
	}
}

// ============================================================================
// Graceful Shutdown Tests
// ============================================================================

func TestGracefulShutdown(t *testing.T) {
	pool := NewPool(50)
	err := pool.Start(4)
	require.NoError(t, err)

	taskCount := 50
	for i := 0; i < taskCount; i++ {
		err := pool.Submit(makeTask(i, doubler(time.Millisecond), time.Second))
		require.NoError(t, err)
	}

	// Drain some results before shutting down
	for i := 0; i < 10; i++ {
		_, err := pool.ReceiveResult()
		require.NoError(t, err)
	}

	goroutinesBefore := runtime.NumGoroutine()

	pool.Stop()

	time.Sleep(100 * time.Millisecond)
	goroutinesAfter := runtime.NumGoroutine()

	assert.LessOrEqual(t, goroutinesAfter, goroutinesBefore)
	t.Logf("Goroutines before: %d, after: %d", goroutinesBefore, goroutinesAfter)
}

func TestStopBeforeStart(t *testing.T) {
	pool := NewPool(10)

	assert.NotPanics(t, func() {
		pool.Stop()
	})
}

func TestStopTwice(t *testing.T) {
	pool := NewPool(10)
	require.NoError(t, pool.Start(2))

	assert.NotPanics(t, func() {
		pool.Stop()
		pool.Stop()
	})
}

func TestSubmitAfterStop(t *testing.T) {
	pool := NewPool(10)
	err := pool.Start(2)
	require.NoError(t, err)

	pool.Stop()

	err = pool.Submit(makeTask(0, doubler(0), time.Second))
	assert.Error(t, err)
	assert.Equal(t, ErrPoolClosed, err)
}

func TestSubmitBeforeStart(t *testing.T) {
	pool := NewPool(10)

	err := pool.Submit(makeTask(0, doubler(0), time.Second))
	assert.Error(t, err)
	assert.Equal(t, ErrPoolNotStarted, err)
}

func TestReceiveResultAfterStop(t *testing.T) {
	pool := NewPool(10)
	err := pool.Start(2)
	require.NoError(t, err)

	pool.Stop()

	_, err = pool.ReceiveResult()
	assert.Error(t, err)
	assert.Equal(t, ErrPoolClosed, err)
}

// ============================================================================
// Channel Buffer Tests
// ============================================================================

func TestChannelBuffer(t *testing.T) {
	bufferSize := 5
	pool := NewPool(bufferSize)

	err := pool.Start(1)
	require.NoError(t, err)

	// Submit more tasks than the buffer holds; Submit blocks rather than
	// dropping, so every task must get through.
	taskCount := bufferSize + 3
	for i := 0; i < taskCount; i++ {
		err := pool.Submit(makeTask(i, doubler(time.Millisecond), 2*time.Second))
		require.NoError(t, err)
	}

	for i := 0; i < taskCount; i++ {
		_, err := pool.ReceiveResult()
		assert.NoError(t, err)
	}

	pool.Stop()
}

// ============================================================================
// Benchmark Tests
// ============================================================================

func BenchmarkPoolThroughput(b *testing.B) {
	pool := NewPool(1000)
	pool.Start(8)
	defer pool.Stop()

	go func() {
		for {
			_, err := pool.ReceiveResult()
			if err != nil {
				return
			}
		}
	}()

	fn := doubler(0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pool.Submit(makeTask(i, fn, time.Second))
	}
}
