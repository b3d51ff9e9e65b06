package visualization

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"maskeval/pkg/geometry"
	"maskeval/pkg/maskio"
)

// ErrNoSamples is returned when no mask passes the minimum fraction filter
var ErrNoSamples = errors.New("no masks above the minimum foreground fraction")

// HistogramParams controls the foreground-fraction histogram
type HistogramParams struct {
	Dir         string
	Extensions  []string
	Threshold   uint8
	Bins        int
	MinFraction float64
	Output      string
}

// ForegroundFractions loads every mask in dir and returns the fraction of
// foreground pixels of each one, dropping masks at or below minFraction.
func ForegroundFractions(dir string, extensions []string, threshold uint8, minFraction float64, logger zerolog.Logger) ([]float64, error) {
	names, err := maskio.ListImages(dir, extensions, "")
	if err != nil {
		return nil, err
	}

	loader := maskio.NewLoader(threshold)
	fractions := make([]float64, 0, len(names))
	for _, name := range names {
		mask, err := loader.Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		f := geometry.ForegroundFraction(mask)
		if f <= minFraction {
			logger.Debug().Str("file", name).Float64("fraction", f).Msg("mask below minimum fraction")
			continue
		}
		fractions = append(fractions, f)
	}
	return fractions, nil
}

// SaveHistogram plots values as a histogram with the given number of bins.
// The output format follows the extension of filename (png, svg, pdf, ...).
func SaveHistogram(values []float64, bins int, filename string) error {
	if len(values) == 0 {
		return ErrNoSamples
	}
	if bins <= 0 {
		bins = 20
	}

	p := plot.New()
	p.Title.Text = "Foreground fraction per mask"
	p.X.Label.Text = "foreground pixels / total pixels"
	p.Y.Label.Text = "masks"

	h, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return errors.Wrap(err, "failed to build histogram")
	}
	p.Add(h)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, filename); err != nil {
		return errors.Wrapf(err, "failed to save histogram %s", filename)
	}
	return nil
}

// Histogram collects the foreground fractions described by params and writes
// the plot. It returns the number of masks that contributed.
func Histogram(params HistogramParams, logger zerolog.Logger) (int, error) {
	values, err := ForegroundFractions(params.Dir, params.Extensions, params.Threshold, params.MinFraction, logger)
	if err != nil {
		return 0, err
	}
	if err := SaveHistogram(values, params.Bins, params.Output); err != nil {
		return 0, err
	}
	logger.Info().Int("masks", len(values)).Str("output", params.Output).Msg("histogram written")
	return len(values), nil
}
