// Package report renders evaluation results as tables, CSV, and report files.
package report

import (
	"github.com/montanaflynn/stats"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"maskeval/internal/models"
)

// Metric names used in tables and summaries
const (
	MetricIoUPixel = "IoU pixel"
	MetricDice     = "Dice"
	MetricIoUBBox  = "IoU bbox"
)

// MetricSummary describes the spread of one metric over the evaluated pairs
type MetricSummary struct {
	Name   string  `json:"name" yaml:"name"`
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"stdDev" yaml:"stdDev"`
	Median float64 `json:"median" yaml:"median"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
}

// Summarize computes a MetricSummary per metric. It returns nil for no pairs.
func Summarize(pairs []models.PairResult) []MetricSummary {
	if len(pairs) == 0 {
		return nil
	}

	columns := []struct {
		name string
		get  func(models.MetricRecord) float64
	}{
		{MetricIoUPixel, func(r models.MetricRecord) float64 { return r.IoUPixel }},
		{MetricDice, func(r models.MetricRecord) float64 { return r.Dice }},
		{MetricIoUBBox, func(r models.MetricRecord) float64 { return r.IoUBBox }},
	}

	summaries := make([]MetricSummary, 0, len(columns))
	for _, col := range columns {
		values := lo.Map(pairs, func(p models.PairResult, _ int) float64 { return col.get(p.Metrics) })
		summaries = append(summaries, summarizeValues(col.name, values))
	}
	return summaries
}

func summarizeValues(name string, values []float64) MetricSummary {
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) < 2 {
		// sample deviation is undefined for a single value
		std = 0
	}
	median, err := stats.Median(values)
	if err != nil {
		median = mean
	}
	return MetricSummary{
		Name:   name,
		Mean:   mean,
		StdDev: std,
		Median: median,
		Min:    floats.Min(values),
		Max:    floats.Max(values),
	}
}
