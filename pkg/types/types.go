// Package types defines the core domain model shared across batchd components.
package types

import (
	"time"
)

// ItemID uniquely identifies a work item within a batch.
type ItemID string

// ItemStatus tracks where an item is in its batch lifecycle.
type ItemStatus string

const (
	StatusPending   ItemStatus = "pending"   // submitted to the runner, not yet dispatched
	StatusInFlight  ItemStatus = "in_flight" // handed to a worker, transform running
	StatusCompleted ItemStatus = "completed" // transform returned a value
	StatusFailed    ItemStatus = "failed"    // transform returned an error, or dispatch was abandoned
)

// Item is a unit of work submitted to the batch dispatcher.
// Seq is the item's position in the input sequence; outcomes are collected
// back into that position regardless of completion order.
type Item struct {
	ID      ItemID `json:"id"`
	Seq     int    `json:"seq"`
	Payload int    `json:"payload"`
}

// Outcome is the recorded result of running the transform on one item.
// Exactly one Outcome exists per input item once a batch finishes: either
// Value is set or Err is non-nil, never neither.
type Outcome struct {
	ItemID   ItemID
	Seq      int
	Value    any
	Err      error
	Duration time.Duration
}

// Failed reports whether the item's transform did not produce a value.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// BatchReport aggregates one complete round of dispatching.
type BatchReport struct {
	BatchID   string
	Total     int
	Completed int
	Failed    int
	Duration  time.Duration
	Outcomes  []Outcome
}

// Values returns the successful outcome values in input order.
func (r *BatchReport) Values() []any {
	vals := make([]any, 0, r.Completed)
	for _, o := range r.Outcomes {
		if !o.Failed() {
			vals = append(vals, o.Value)
		}
	}
	return vals
}

// FirstError returns the error of the earliest failed item, or nil.
func (r *BatchReport) FirstError() error {
	for _, o := range r.Outcomes {
		if o.Err != nil {
			return o.Err
		}
	}
	return nil
}
