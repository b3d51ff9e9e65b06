package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maskeval/internal/models"
)

func TestAggregatorMeans(t *testing.T) {
	agg := New()
	for _, iou := range []float64{1.0, 0.5, 0.0} {
		agg.Add(models.MetricRecord{IoUPixel: iou, Dice: iou, IoUBBox: 1 - iou})
	}
	assert.Equal(t, 3, agg.Count())

	report, err := agg.Finalize()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, report.MeanIoUPixel, 1e-12)
	assert.InDelta(t, 0.5, report.MeanDice, 1e-12)
	assert.InDelta(t, 0.5, report.MeanIoUBBox, 1e-12)
	assert.Equal(t, 3, report.Count)
}

func TestAggregatorIndependentSums(t *testing.T) {
	agg := New()
	agg.Add(models.MetricRecord{IoUPixel: 0.2, Dice: 0.4, IoUBBox: 0.9})
	agg.Add(models.MetricRecord{IoUPixel: 0.6, Dice: 0.8, IoUBBox: 0.1})

	report, err := agg.Finalize()
	require.NoError(t, err)
	assert.InDelta(t, 0.4, report.MeanIoUPixel, 1e-12)
	assert.InDelta(t, 0.6, report.MeanDice, 1e-12)
	assert.InDelta(t, 0.5, report.MeanIoUBBox, 1e-12)
}

func TestAggregatorNoPairs(t *testing.T) {
	_, err := New().Finalize()
	assert.ErrorIs(t, err, ErrNoMatch)
}
