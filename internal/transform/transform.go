// ============================================================================
// batchd Tabular Transform - derived-column stage
// ============================================================================
//
// Package: internal/transform
// File: transform.go
// Purpose: Turns a generated dataset into a dataframe and derives the
// demo's reporting columns: birth_year (year of the birthdate) and bmi
// (weight divided by height squared), then selects [name, birth_year, bmi].
//
// ============================================================================

package transform

import (
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/batchd-io/batchd/internal/datagen"
)

// dateLayout formats birthdates in the base frame.
const dateLayout = "2006-01-02"

// Summary describes a transformed frame for logging and assertions.
type Summary struct {
	Rows    int
	MeanBMI float64
}

// Frame builds the base dataframe from a dataset: one column per dataset
// column, birthdates formatted as dates.
func Frame(ds *datagen.Dataset) dataframe.DataFrame {
	birthdates := make([]string, ds.Len())
	for i, bd := range ds.Birthdates {
		birthdates[i] = bd.Format(dateLayout)
	}

	return dataframe.New(
		series.New(ds.Names, series.String, "name"),
		series.New(birthdates, series.String, "birthdate"),
		series.New(ds.Weights, series.Float, "weight"),
		series.New(ds.Heights, series.Float, "height"),
	)
}

// Profile derives birth_year and bmi and selects the reporting columns.
func Profile(ds *datagen.Dataset) (dataframe.DataFrame, error) {
	df := Frame(ds)
	if df.Err != nil {
		return df, df.Err
	}

	birthYears := make([]int, ds.Len())
	bmi := make([]float64, ds.Len())
	for i := range ds.Birthdates {
		birthYears[i] = ds.Birthdates[i].Year()
		bmi[i] = ds.Weights[i] / (ds.Heights[i] * ds.Heights[i])
	}

	df = df.Mutate(series.New(birthYears, series.Int, "birth_year"))
	df = df.Mutate(series.New(bmi, series.Float, "bmi"))
	out := df.Select([]string{"name", "birth_year", "bmi"})
	if out.Err != nil {
		return out, out.Err
	}
	return out, nil
}

// Summarize reports row count and mean bmi for a profiled frame.
func Summarize(df dataframe.DataFrame) Summary {
	return Summary{
		Rows:    df.Nrow(),
		MeanBMI: df.Col("bmi").Mean(),
	}
}
