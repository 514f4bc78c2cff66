// ============================================================================
// batchd End-to-End Test Suite
// ============================================================================
//
// Package: test/integration
// File: batch_test.go
// Functionality: full batch lifecycle over the real pipeline
//
// Test Objectives:
//   1. verify every item is accounted for exactly once at the report level
//   2. verify the data pipeline (synthesize -> profile -> summarize) runs
//      end to end inside worker goroutines
//   3. verify the first failure aborts remaining dispatch
//
// Test Environment:
//   - small datasets (tens of records) so the suite stays fast
//   - no external processes; the pool is scoped to each test
//
// TestEndToEndBatch:
//   - 6 items over 3 workers
//   - each item synthesizes 50 records replicated x2 (100 rows)
//   - every item must complete with a 100-row summary
//
// TestEndToEndCanonicalScenario:
//   - 10 items over 5 workers, payload doubling transform
//   - the collected value set must be exactly {2, 4, ..., 20}
//
// TestEndToEndFailFast:
//   - 40 items over 4 workers, item-7 fails
//   - completed + failed must equal 40 and dispatch must stop early
//
// ============================================================================

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/batchd-io/batchd/internal/datagen"
	"github.com/batchd-io/batchd/internal/dispatch"
	"github.com/batchd-io/batchd/internal/transform"
	"github.com/batchd-io/batchd/pkg/types"
)

// generateTestItems builds sequential work items with payload i+1.
func generateTestItems(count int) []types.Item {
	items := make([]types.Item, count)
	for i := 0; i < count; i++ {
		items[i] = types.Item{
			ID:      types.ItemID(fmt.Sprintf("item-%d", i+1)),
			Seq:     i,
			Payload: i + 1,
		}
	}
	return items
}

func newRunner(workers int) *dispatch.Runner {
	return dispatch.NewRunner(dispatch.Options{Workers: workers}, zerolog.Nop(), nil)
}

func TestEndToEndBatch(t *testing.T) {
	log := zerolog.Nop()

	pipeline := func(ctx context.Context, item types.Item) (any, error) {
		gen := datagen.New(uint64(item.Seq)+1, log)
		ds := gen.Generate(50).Replicate(2)

		df, err := transform.Profile(ds)
		if err != nil {
			return nil, err
		}
		return transform.Summarize(df), nil
	}

	report, err := newRunner(3).Run(context.Background(), generateTestItems(6), pipeline)
	require.NoError(t, err)

	assert.Equal(t, 6, report.Total)
	assert.Equal(t, 6, report.Completed)
	assert.Equal(t, 0, report.Failed)
	assert.Len(t, report.Outcomes, 6)

	for _, out := range report.Outcomes {
		require.NoError(t, out.Err)
		summary, ok := out.Value.(transform.Summary)
		require.True(t, ok, "outcome for %s should carry a summary", out.ItemID)
		assert.Equal(t, 100, summary.Rows)
		assert.Greater(t, summary.MeanBMI, 0.0)
	}
}

func TestEndToEndCanonicalScenario(t *testing.T) {
	double := func(ctx context.Context, item types.Item) (any, error) {
		time.Sleep(10 * time.Millisecond)
		return item.Payload * 2, nil
	}

	report, err := newRunner(5).Run(context.Background(), generateTestItems(10), double)
	require.NoError(t, err)
	require.Equal(t, 10, report.Completed)

	got := make(map[int]bool)
	for _, v := range report.Values() {
		got[v.(int)] = true
	}
	for want := 2; want <= 20; want += 2 {
		assert.True(t, got[want], "missing doubled value %d", want)
	}
	assert.Len(t, got, 10)
}

func TestEndToEndFailFast(t *testing.T) {
	boom := fmt.Errorf("item exploded")

	fn := func(ctx context.Context, item types.Item) (any, error) {
		time.Sleep(5 * time.Millisecond)
		if item.Payload == 7 {
			return nil, boom
		}
		return item.Payload, nil
	}

	report, err := newRunner(4).Run(context.Background(), generateTestItems(40), fn)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	// Exactly-once accounting holds even on the failure path.
	assert.Equal(t, 40, report.Total)
	assert.Equal(t, 40, report.Completed+report.Failed)
	assert.Len(t, report.Outcomes, 40)

	// Dispatch stopped early: some items were never handed to a worker.
	assert.Less(t, report.Completed, 39)
}
