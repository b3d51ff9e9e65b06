// Package aggregate accumulates per-pair metric records into averages.
package aggregate

import (
	"github.com/pkg/errors"

	"maskeval/internal/models"
)

// ErrNoMatch is returned when a report is requested before any pair was added
var ErrNoMatch = errors.New("no matched prediction/ground-truth pairs to average")

// Aggregator keeps running sums of the per-pair metrics. It is not safe for
// concurrent use; the evaluator feeds it from a single goroutine in sorted
// identifier order.
type Aggregator struct {
	sumIoUPixel float64
	sumDice     float64
	sumIoUBBox  float64
	count       int
}

// New returns an empty Aggregator
func New() *Aggregator {
	return &Aggregator{}
}

// Add accumulates one record
func (a *Aggregator) Add(record models.MetricRecord) {
	a.sumIoUPixel += record.IoUPixel
	a.sumDice += record.Dice
	a.sumIoUBBox += record.IoUBBox
	a.count++
}

// Count returns the number of records added so far
func (a *Aggregator) Count() int {
	return a.count
}

// Finalize divides each running sum by the number of records
func (a *Aggregator) Finalize() (models.AggregateReport, error) {
	if a.count == 0 {
		return models.AggregateReport{}, ErrNoMatch
	}
	n := float64(a.count)
	return models.AggregateReport{
		MeanIoUPixel: a.sumIoUPixel / n,
		MeanDice:     a.sumDice / n,
		MeanIoUBBox:  a.sumIoUBBox / n,
		Count:        a.count,
	}, nil
}
