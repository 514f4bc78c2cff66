package dispatch

import (
	"context"
	"time"

	"github.com/batchd-io/batchd/pkg/types"
)

// Transform maps one work item to a result. The dispatcher treats the
// callback as opaque: it may generate data, sleep, or talk to collaborators.
// A returned error counts as the item's recorded failure.
type Transform func(ctx context.Context, item types.Item) (any, error)

// Task pairs an item with the transform to run on it.
type Task struct {
	Item    types.Item
	Fn      Transform
	Timeout time.Duration // per-item execution timeout; 0 means none
}
