// Package evaluation runs the matching, metric, and diagnostics pipeline over
// a prediction directory and a ground-truth directory.
package evaluation

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"maskeval/internal/models"
	"maskeval/pkg/aggregate"
	"maskeval/pkg/maskio"
	"maskeval/pkg/matching"
	"maskeval/pkg/metrics"
	"maskeval/pkg/visualization"
)

// ErrUnconverted is returned when the prediction directory holds masks but
// none with the configured prefix
var ErrUnconverted = errors.New("no prediction carries the configured prefix")

// Params holds the evaluation parameters
type Params struct {
	// PredictionDir holds predicted masks named <prefix>_<id>_<suffix>
	PredictionDir string

	// GroundTruthDir holds ground-truth masks named <id>.<ext>
	GroundTruthDir string

	// OriginalDir holds the original images drawn under the box overlays.
	// Empty or missing means black canvases.
	OriginalDir string

	// Workers is the number of pairs evaluated concurrently
	Workers int

	// Threshold is the gray level a pixel must exceed to be foreground
	Threshold uint8

	// PredictionPrefix restricts predictions to names starting with it
	PredictionPrefix string

	// AutoConvert runs maskio.ConvertDir over the prediction directory when
	// nothing carries PredictionPrefix yet. It only applies when the prefix
	// is maskio.ConvertedPrefix.
	AutoConvert bool

	// Extensions lists the file extensions treated as images
	Extensions []string

	// SkipFailures records per-pair errors and keeps going instead of aborting
	SkipFailures bool

	// BoxPolicy decides the bbox IoU of zero-area boxes
	BoxPolicy metrics.BoxPolicy

	// Visualize writes IoU and bbox overlays for every pair
	Visualize bool
	IoUDir    string
	BBoxDir   string
	LineWidth float64
	Captions  bool

	// ShowProgress renders a progress bar on stderr
	ShowProgress bool
}

// Result is everything one run produced
type Result struct {
	Report models.AggregateReport

	// Pairs are the evaluated pairs in identifier order
	Pairs []models.PairResult

	// Skipped lists the pairs dropped under SkipFailures
	Skipped []models.SkippedPair

	// Unmatched are predictions without a ground-truth file
	Unmatched []string

	// Dropped are ground-truth files without a prediction
	Dropped []string

	// Failures combines the per-pair errors behind Skipped
	Failures error
}

// Evaluator drives one evaluation run
type Evaluator struct {
	params    *Params
	logger    zerolog.Logger
	loader    *maskio.Loader
	visual    *visualization.Visualizer
	originals map[models.Identifier]string
}

// slot is the outcome of one pair, written by exactly one worker
type slot struct {
	result models.PairResult
	err    error
}

// NewEvaluator creates a new evaluator with the provided parameters
func NewEvaluator(params *Params, logger zerolog.Logger) *Evaluator {
	if params.Workers <= 0 {
		params.Workers = runtime.NumCPU()
	}
	e := &Evaluator{
		params: params,
		logger: logger.With().Str("component", "evaluator").Logger(),
		loader: maskio.NewLoader(params.Threshold),
	}
	if params.Visualize {
		e.visual = visualization.NewVisualizer(params.IoUDir, params.BBoxDir, params.LineWidth, params.Captions)
	}
	return e
}

// Run evaluates every aligned pair and returns the aggregate report. With
// SkipFailures unset the first failing pair cancels the run and its error is
// returned without a report.
func (e *Evaluator) Run(ctx context.Context) (*Result, error) {
	alignment, err := e.align()
	if err != nil {
		return nil, err
	}

	result := &Result{
		Unmatched: alignment.Unmatched,
		Dropped:   alignment.Dropped,
	}
	for _, name := range alignment.Unmatched {
		e.logger.Warn().Str("prediction", name).Msg("no ground truth for prediction")
	}
	if len(alignment.Dropped) > 0 {
		e.logger.Debug().Int("count", len(alignment.Dropped)).Msg("ground truth without prediction ignored")
	}

	if e.visual != nil {
		if err := e.visual.Prepare(); err != nil {
			return nil, err
		}
		e.originals = e.indexOriginals()
	}

	slots, err := e.evaluatePairs(ctx, alignment.Pairs)
	if err != nil {
		return nil, err
	}

	// merge in identifier order so the report does not depend on scheduling
	agg := aggregate.New()
	for i, s := range slots {
		if s.err != nil {
			result.Skipped = append(result.Skipped, models.SkippedPair{
				Identifier: alignment.Pairs[i].ID,
				Reason:     s.err.Error(),
			})
			result.Failures = multierr.Append(result.Failures, s.err)
			continue
		}
		agg.Add(s.result.Metrics)
		result.Pairs = append(result.Pairs, s.result)
	}

	if len(result.Skipped) > 0 {
		e.logger.Warn().Int("skipped", len(result.Skipped)).Msg("pairs skipped after errors")
	}

	report, err := agg.Finalize()
	if err != nil {
		return nil, multierr.Append(err, result.Failures)
	}
	result.Report = report

	e.logger.Info().
		Int("pairs", report.Count).
		Float64("meanIoUPixel", report.MeanIoUPixel).
		Float64("meanDice", report.MeanDice).
		Float64("meanIoUBBox", report.MeanIoUBBox).
		Msg("evaluation finished")

	return result, nil
}

// align lists both directories and joins them by identifier
func (e *Evaluator) align() (*matching.Alignment, error) {
	preds, err := e.listPredictions()
	if err != nil {
		return nil, err
	}
	gts, err := maskio.ListImages(e.params.GroundTruthDir, e.params.Extensions, "")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list ground truth")
	}
	e.logger.Info().
		Int("predictions", len(preds)).
		Int("groundTruth", len(gts)).
		Msg("masks listed")

	alignment, err := matching.Align(preds, gts)
	if err != nil {
		return nil, err
	}
	return alignment, nil
}

// listPredictions lists the prefixed predictions, converting the raw
// detector output first when allowed
func (e *Evaluator) listPredictions() ([]string, error) {
	dir, prefix := e.params.PredictionDir, e.params.PredictionPrefix
	preds, err := maskio.ListImages(dir, e.params.Extensions, prefix)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list predictions")
	}
	if len(preds) > 0 || prefix == "" {
		return preds, nil
	}

	raw, err := maskio.ListImages(dir, e.params.Extensions, "")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list predictions")
	}
	if len(raw) == 0 {
		return preds, nil
	}
	if !e.params.AutoConvert || prefix != maskio.ConvertedPrefix {
		return nil, errors.Wrapf(ErrUnconverted, "%d mask(s) in %s, none starting with %q; run the convert command",
			len(raw), dir, prefix)
	}

	e.logger.Info().Str("dir", dir).Int("masks", len(raw)).Msg("converting raw predictions")
	if _, err := maskio.ConvertDir(dir, e.params.Extensions, e.logger); err != nil {
		return nil, errors.Wrap(err, "failed to convert predictions")
	}
	preds, err = maskio.ListImages(dir, e.params.Extensions, prefix)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list predictions")
	}
	return preds, nil
}

// evaluatePairs runs the pairs on a bounded worker pool. Each worker writes
// only its own slot.
func (e *Evaluator) evaluatePairs(ctx context.Context, pairs []matching.Pair) ([]slot, error) {
	slots := make([]slot, len(pairs))

	var bar *progressbar.ProgressBar
	if e.params.ShowProgress && len(pairs) > 0 {
		bar = progressbar.NewOptions(len(pairs),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("[cyan]evaluating[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionClearOnFinish())
		defer bar.Finish()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.params.Workers)

	for i := range pairs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := e.evaluatePair(pairs[i])
			if bar != nil {
				_ = bar.Add(1)
			}
			if err != nil {
				err = errors.Wrapf(err, "pair %s", pairs[i].ID)
				if !e.params.SkipFailures {
					return err
				}
				e.logger.Error().Err(err).Str("identifier", pairs[i].ID.String()).Msg("pair skipped")
			}
			slots[i] = slot{result: res, err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slots, nil
}

// evaluatePair loads both masks, computes the metrics, and writes the
// diagnostics for one pair
func (e *Evaluator) evaluatePair(pair matching.Pair) (models.PairResult, error) {
	gt, err := e.loader.Load(filepath.Join(e.params.GroundTruthDir, pair.GroundTruth))
	if err != nil {
		return models.PairResult{}, err
	}
	pred, err := e.loader.Load(filepath.Join(e.params.PredictionDir, pair.Prediction))
	if err != nil {
		return models.PairResult{}, err
	}

	cmp, err := metrics.Compare(gt, pred, e.params.BoxPolicy)
	if err != nil {
		return models.PairResult{}, err
	}

	result := models.PairResult{
		Identifier:      pair.ID,
		PredictionFile:  pair.Prediction,
		GroundTruthFile: pair.GroundTruth,
		GroundTruthBox:  cmp.GroundTruthBox,
		PredictionBox:   cmp.PredictionBox,
		Metrics:         cmp.Record,
	}

	if cmp.Record.Degenerate() {
		e.logger.Warn().
			Str("identifier", pair.ID.String()).
			Bool("emptyGroundTruth", cmp.Record.EmptyGroundTruth).
			Bool("emptyPrediction", cmp.Record.EmptyPrediction).
			Msg("degenerate pair scored by empty-case policy")
	}

	e.logger.Debug().
		Str("identifier", pair.ID.String()).
		Float64("iouPixel", cmp.Record.IoUPixel).
		Float64("dice", cmp.Record.Dice).
		Float64("iouBBox", cmp.Record.IoUBBox).
		Msg("pair evaluated")

	if e.visual != nil {
		if err := e.visual.SaveIoU(pair.Prediction, gt, pred); err != nil {
			return models.PairResult{}, err
		}
		// the box overlay is named after the original image it is drawn on
		original := e.originals[pair.ID]
		name := pair.Prediction
		if original != "" {
			name = filepath.Base(original)
		}
		if err := e.visual.SaveBoxes(name, original, gt.Width(), gt.Height(), result); err != nil {
			return models.PairResult{}, err
		}
	}

	return result, nil
}

// indexOriginals maps identifiers to original image paths. A missing
// directory only disables the backgrounds.
func (e *Evaluator) indexOriginals() map[models.Identifier]string {
	originals := make(map[models.Identifier]string)
	if e.params.OriginalDir == "" {
		return originals
	}
	names, err := maskio.ListImages(e.params.OriginalDir, e.params.Extensions, "")
	if err != nil {
		e.logger.Warn().Err(err).Msg("original images unavailable, drawing boxes on black")
		return originals
	}
	for _, name := range names {
		id, err := matching.ParseGroundTruthID(name)
		if err != nil {
			continue
		}
		if _, ok := originals[id]; !ok {
			originals[id] = filepath.Join(e.params.OriginalDir, name)
		}
	}
	return originals
}
