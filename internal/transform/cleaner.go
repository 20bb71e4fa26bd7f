package transform

import (
	"errors"
	"math"

	"github.com/samber/lo"

	"github.com/angadhsingh1/ETL-Pipeline/internal/dataset"
	"github.com/angadhsingh1/ETL-Pipeline/internal/model"
)

const (
	ColumnPatientID  = "patient_id"
	ColumnReadingT1  = "reading_t1"
	ColumnReadingT2  = "reading_t2"
	ColumnReadingT3  = "reading_t3"
	ColumnAvgReading = "avg_reading"
	ColumnCategory   = "category"

	// Readings are valid only strictly inside (MinReading, MaxReading).
	MinReading = 0.0
	MaxReading = 400.0

	stageClean = "clean"
)

// ReadingColumns are the glucose measurement columns of the source table.
var ReadingColumns = []string{ColumnReadingT1, ColumnReadingT2, ColumnReadingT3}

// Cleaner drops rows with out-of-range readings and derives the average
// and category columns.
type Cleaner struct {
	readingColumns []string
}

func NewCleaner(readingColumns []string) (*Cleaner, error) {
	if len(readingColumns) == 0 {
		return nil, errors.New("cleaner: no reading columns configured")
	}
	return &Cleaner{readingColumns: append([]string(nil), readingColumns...)}, nil
}

// Transform returns a new frame with invalid rows removed, reading cells
// normalized to float64, and avg_reading and category set. The input frame
// is left untouched.
func (c *Cleaner) Transform(f *dataset.Frame) (*dataset.Frame, error) {
	idx, err := f.Lookup(stageClean, c.readingColumns...)
	if err != nil {
		return nil, err
	}

	kept := f.Filter(func(row []any) bool {
		return lo.EveryBy(idx, func(i int) bool {
			v, ok := dataset.Float(row[i])
			return ok && InRange(v)
		})
	})

	out := kept
	for n, col := range c.readingColumns {
		values := make([]any, kept.Len())
		for i := range values {
			v, _ := dataset.Float(kept.Row(i)[idx[n]])
			values[i] = v
		}
		if out, err = out.WithColumn(col, values); err != nil {
			return nil, err
		}
	}

	avgs := make([]any, out.Len())
	categories := make([]any, out.Len())
	for i := range avgs {
		row := out.Row(i)
		readings := lo.Map(idx, func(pos int, _ int) float64 {
			v, _ := dataset.Float(row[pos])
			return v
		})
		avg := Average(readings...)
		avgs[i] = avg
		categories[i] = string(Classify(avg))
	}

	if out, err = out.WithColumn(ColumnAvgReading, avgs); err != nil {
		return nil, err
	}
	return out.WithColumn(ColumnCategory, categories)
}

// InRange reports whether a reading lies strictly between MinReading and
// MaxReading. NaN is never in range.
func InRange(v float64) bool {
	return v > MinReading && v < MaxReading
}

// Average is the mean of readings rounded to two decimals.
func Average(readings ...float64) float64 {
	if len(readings) == 0 {
		return math.NaN()
	}
	return RoundHalfEven(lo.Sum(readings)/float64(len(readings)), 2)
}

// RoundHalfEven rounds v to the given number of decimals, sending exact
// halves to the even neighbour.
func RoundHalfEven(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.RoundToEven(v*scale) / scale
}

// Classify buckets an average reading. Both 140.00 and 200.00 fall into
// Pre-Diabetes.
func Classify(avg float64) model.Category {
	switch {
	case avg > 200.00:
		return model.CategoryDiabetes
	case avg < 140.00:
		return model.CategoryNormal
	default:
		return model.CategoryPreDiabetes
	}
}
