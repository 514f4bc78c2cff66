// ============================================================================
// batchd Metrics - Prometheus instrumentation
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Purpose: Collects and exposes batch processing metrics.
//
// Metric families:
//   Counters (monotonic):
//     - batchd_items_dispatched_total
//     - batchd_items_completed_total
//     - batchd_items_failed_total
//     - batchd_batches_total
//   Histogram:
//     - batchd_item_latency_seconds (default buckets)
//   Gauges:
//     - batchd_items_in_flight
//     - batchd_batch_duration_seconds (most recent batch)
//
// Exposed on /metrics via promhttp when enabled in config.
//
// ============================================================================

package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the batchd metric families.
type Collector struct {
	itemsDispatched prometheus.Counter
	itemsCompleted  prometheus.Counter
	itemsFailed     prometheus.Counter
	batches         prometheus.Counter

	itemLatency prometheus.Histogram

	itemsInFlight prometheus.Gauge
	batchDuration prometheus.Gauge
}

// NewCollector creates and registers all metric families on the default
// registerer.
func NewCollector() *Collector {
	c := &Collector{
		itemsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batchd_items_dispatched_total",
			Help: "Total number of work items handed to the worker pool",
		}),
		itemsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batchd_items_completed_total",
			Help: "Total number of work items whose transform succeeded",
		}),
		itemsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batchd_items_failed_total",
			Help: "Total number of work items with a recorded failure",
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batchd_batches_total",
			Help: "Total number of batches run",
		}),
		itemLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "batchd_item_latency_seconds",
			Help:    "Per-item transform latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		itemsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "batchd_items_in_flight",
			Help: "Current number of items being transformed",
		}),
		batchDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "batchd_batch_duration_seconds",
			Help: "Wall-clock duration of the most recent batch in seconds",
		}),
	}

	prometheus.MustRegister(c.itemsDispatched)
	prometheus.MustRegister(c.itemsCompleted)
	prometheus.MustRegister(c.itemsFailed)
	prometheus.MustRegister(c.batches)
	prometheus.MustRegister(c.itemLatency)
	prometheus.MustRegister(c.itemsInFlight)
	prometheus.MustRegister(c.batchDuration)

	return c
}

// RecordDispatch counts one item handed to the pool.
func (c *Collector) RecordDispatch() {
	c.itemsDispatched.Inc()
}

// RecordCompleted counts one successful item and observes its latency.
func (c *Collector) RecordCompleted(latencySeconds float64) {
	c.itemsCompleted.Inc()
	c.itemLatency.Observe(latencySeconds)
}

// RecordFailed counts one failed item.
func (c *Collector) RecordFailed() {
	c.itemsFailed.Inc()
}

// RecordBatch counts a finished batch and stores its duration.
func (c *Collector) RecordBatch(durationSeconds float64) {
	c.batches.Inc()
	c.batchDuration.Set(durationSeconds)
}

// SetInFlight updates the in-flight gauge.
func (c *Collector) SetInFlight(n int) {
	c.itemsInFlight.Set(float64(n))
}

// StartServer serves /metrics on the given port. Blocks until the server
// exits.
func StartServer(port int) error {
	http.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, nil)
}
