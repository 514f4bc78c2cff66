// ============================================================================
// batchd Batch Tracker - per-batch item accounting
// ============================================================================
//
// Package: internal/tracker
// File: tracker.go
// Purpose: Tracks each item's lifecycle within one batch so the runner can
// prove that every input was accounted for exactly once.
//
// State machine:
//   Pending (added)
//      | MarkInFlight          | MarkFailed (dispatch abandoned)
//   InFlight                   |
//      | MarkCompleted / MarkFailed
//   Completed / Failed
//
// The tracker is scoped to a single batch and holds no persistent state.
// A single items map is the source of truth; counts are kept alongside for
// cheap stats snapshots.
//
// ============================================================================

package tracker

import (
	"errors"
	"fmt"
	"sync"

	"github.com/batchd-io/batchd/pkg/types"
)

var (
	// ErrUnknownItem means the item was never added to this tracker.
	ErrUnknownItem = errors.New("unknown item")
	// ErrDuplicateItem means an item with the same ID was already added.
	ErrDuplicateItem = errors.New("duplicate item")
	// ErrBadTransition means the requested status change is not allowed.
	ErrBadTransition = errors.New("invalid status transition")
)

// Tracker records per-item status for one batch.
type Tracker struct {
	mu     sync.RWMutex
	items  map[types.ItemID]types.ItemStatus
	counts map[types.ItemStatus]int
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{
		items: make(map[types.ItemID]types.ItemStatus),
		counts: map[types.ItemStatus]int{
			types.StatusPending:   0,
			types.StatusInFlight:  0,
			types.StatusCompleted: 0,
			types.StatusFailed:    0,
		},
	}
}

// Add registers items as pending. Duplicate IDs are rejected because the
// exactly-once accounting below keys on the ID.
func (t *Tracker) Add(items ...types.Item) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, item := range items {
		if _, ok := t.items[item.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateItem, item.ID)
		}
		t.items[item.ID] = types.StatusPending
		t.counts[types.StatusPending]++
	}
	return nil
}

// MarkInFlight transitions pending -> in_flight.
func (t *Tracker) MarkInFlight(id types.ItemID) error {
	return t.transition(id, types.StatusInFlight, types.StatusPending)
}

// MarkCompleted transitions in_flight -> completed.
func (t *Tracker) MarkCompleted(id types.ItemID) error {
	return t.transition(id, types.StatusCompleted, types.StatusInFlight)
}

// MarkFailed transitions to failed from either in_flight (the transform
// errored) or pending (the batch was abandoned before dispatch).
func (t *Tracker) MarkFailed(id types.ItemID) error {
	return t.transition(id, types.StatusFailed, types.StatusInFlight, types.StatusPending)
}

func (t *Tracker) transition(id types.ItemID, to types.ItemStatus, from ...types.ItemStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}

	allowed := false
	for _, f := range from {
		if current == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s is %s, cannot become %s", ErrBadTransition, id, current, to)
	}

	t.items[id] = to
	t.counts[current]--
	t.counts[to]++
	return nil
}

// Status returns the item's current status.
func (t *Tracker) Status(id types.ItemID) (types.ItemStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.items[id]
	return s, ok
}

// Counts returns a snapshot of items per status.
func (t *Tracker) Counts() map[types.ItemStatus]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshot := make(map[types.ItemStatus]int, len(t.counts))
	for status, n := range t.counts {
		snapshot[status] = n
	}
	return snapshot
}

// Unaccounted returns items that never reached a terminal status. After a
// finished batch this must be empty; anything else means an item was
// dropped.
func (t *Tracker) Unaccounted() []types.ItemID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var ids []types.ItemID
	for id, status := range t.items {
		if status == types.StatusPending || status == types.StatusInFlight {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len returns the number of tracked items.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}
