// ============================================================================
// batchd Data Generator - synthetic person records
// ============================================================================
//
// Package: internal/datagen
// File: generator.go
// Purpose: Black-box producer of synthetic tabular input for batch
// transforms: names, birthdates, and body measurements, column-oriented,
// with an optional replication factor to inflate the dataset cheaply.
//
// Determinism is not required by callers; a non-zero seed makes output
// reproducible for tests.
//
// ============================================================================

package datagen

import (
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"
)

// progressEvery controls how often generation progress is logged.
const progressEvery = 10_000

// Dataset is a column-oriented bundle of synthetic person records. All
// columns have equal length.
type Dataset struct {
	Names      []string
	Birthdates []time.Time
	Weights    []float64 // kg, [0, 100)
	Heights    []float64 // cm, [100, 160)
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.Names)
}

// Replicate returns a dataset whose columns repeat this dataset's columns
// k times. k < 1 yields an empty dataset.
func (d *Dataset) Replicate(k int) *Dataset {
	out := &Dataset{
		Names:      make([]string, 0, d.Len()*k),
		Birthdates: make([]time.Time, 0, d.Len()*k),
		Weights:    make([]float64, 0, d.Len()*k),
		Heights:    make([]float64, 0, d.Len()*k),
	}
	for i := 0; i < k; i++ {
		out.Names = append(out.Names, d.Names...)
		out.Birthdates = append(out.Birthdates, d.Birthdates...)
		out.Weights = append(out.Weights, d.Weights...)
		out.Heights = append(out.Heights, d.Heights...)
	}
	return out
}

// Generator synthesizes datasets.
type Generator struct {
	faker *gofakeit.Faker
	log   zerolog.Logger
}

// New creates a generator. seed 0 gives non-deterministic output.
func New(seed uint64, log zerolog.Logger) *Generator {
	return &Generator{
		faker: gofakeit.New(seed),
		log:   log,
	}
}

// Generate synthesizes n person records.
func (g *Generator) Generate(n int) *Dataset {
	ds := &Dataset{
		Names:      make([]string, 0, n),
		Birthdates: make([]time.Time, 0, n),
		Weights:    make([]float64, 0, n),
		Heights:    make([]float64, 0, n),
	}

	now := time.Now()
	oldest := now.AddDate(-90, 0, 0)

	for i := 0; i < n; i++ {
		if i > 0 && i%progressEvery == 0 {
			g.log.Debug().Int("generated", i).Int("target", n).Msg("generating records")
		}
		ds.Names = append(ds.Names, g.faker.Name())
		ds.Birthdates = append(ds.Birthdates, g.faker.DateRange(oldest, now))
		ds.Weights = append(ds.Weights, g.faker.Float64Range(0, 100))
		ds.Heights = append(ds.Heights, g.faker.Float64Range(100, 160))
	}

	return ds
}
