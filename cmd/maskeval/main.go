// Package main is the maskeval command line tool.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"maskeval/internal/logging"
	"maskeval/pkg/config"
	"maskeval/pkg/evaluation"
	"maskeval/pkg/maskio"
	"maskeval/pkg/metrics"
	"maskeval/pkg/report"
	"maskeval/pkg/visualization"
	"maskeval/pkg/workspace"
)

const (
	// Flags.
	flagConfig       = "config"
	flagDebug        = "debug"
	flagPred         = "pred"
	flagGT           = "gt"
	flagImages       = "images"
	flagReport       = "report"
	flagCSV          = "csv"
	flagWorkers      = "workers"
	flagSkipFailures = "skip-failures"
	flagNoVisuals    = "no-visuals"
	flagVerbose      = "verbose"
	flagDir          = "dir"
	flagOut          = "out"
	flagBins         = "bins"
	flagRoot         = "root"
	flagPath         = "path"

	defaultConfigFile = "maskeval.yaml"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	configFlag := &cli.StringFlag{
		Name:    flagConfig,
		Aliases: []string{"c"},
		Value:   defaultConfigFile,
		Usage:   "load configuration from `FILE`",
	}

	return &cli.App{
		Name:  "maskeval",
		Usage: "evaluate segmentation masks against ground truth",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "evaluate",
				Usage: "compute IoU, Dice, and bbox IoU for every prediction/ground-truth pair",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{Name: flagPred, Usage: "prediction mask `DIR`"},
					&cli.StringFlag{Name: flagGT, Usage: "ground-truth mask `DIR`"},
					&cli.StringFlag{Name: flagImages, Usage: "original image `DIR` used under the box overlays"},
					&cli.StringFlag{Name: flagReport, Usage: "write the full report to `FILE` (.json, .yaml)"},
					&cli.StringFlag{Name: flagCSV, Usage: "write the per-pair records to `FILE`"},
					&cli.IntFlag{Name: flagWorkers, Usage: "number of pairs evaluated concurrently"},
					&cli.BoolFlag{Name: flagSkipFailures, Usage: "skip pairs that fail instead of aborting"},
					&cli.BoolFlag{Name: flagNoVisuals, Usage: "do not write IoU and bbox overlays"},
					&cli.BoolFlag{Name: flagVerbose, Aliases: []string{"v"}, Usage: "print summary and per-pair tables"},
				},
				Action: evaluateAction,
			},
			{
				Name:  "convert",
				Usage: "write modified_<name> copies of every mask with foreground remapped to 255",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{Name: flagDir, Usage: "mask `DIR` (defaults to the prediction directory)"},
				},
				Action: convertAction,
			},
			{
				Name:  "histogram",
				Usage: "plot the foreground fraction of every mask in a directory",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{Name: flagDir, Usage: "mask `DIR` (defaults to the ground-truth directory)"},
					&cli.StringFlag{Name: flagOut, Value: "histogram.png", Usage: "output `FILE`; .png, .svg, or .pdf"},
					&cli.IntFlag{Name: flagBins, Usage: "number of histogram bins"},
				},
				Action: histogramAction,
			},
			{
				Name:  "clean",
				Usage: "remove generated output folders",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{Name: flagRoot, Value: ".", Usage: "project root `DIR`"},
				},
				Action: cleanAction,
			},
			{
				Name:  "init-config",
				Usage: "write a default configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagPath, Value: defaultConfigFile, Usage: "config `FILE` to create"},
				},
				Action: func(c *cli.Context) error {
					path := c.String(flagPath)
					if err := config.CreateDefaultConfigFile(path); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "Default configuration written to %s\n", path)
					return nil
				},
			},
		},
	}
}

// setup loads the configuration and builds the logger for a command
func setup(c *cli.Context) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadConfig(c.String(flagConfig))
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	level := cfg.Logging.Level
	if c.Bool(flagDebug) {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{
		Level:  level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
		Output: c.App.ErrWriter,
	})
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger, nil
}

// applyEvaluateFlags overrides config values with the flags that were set
func applyEvaluateFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet(flagPred) {
		cfg.Paths.PredictionDir = c.String(flagPred)
	}
	if c.IsSet(flagGT) {
		cfg.Paths.GroundTruthDir = c.String(flagGT)
	}
	if c.IsSet(flagImages) {
		cfg.Paths.OriginalDir = c.String(flagImages)
	}
	if c.IsSet(flagReport) {
		cfg.Output.ReportFile = c.String(flagReport)
	}
	if c.IsSet(flagCSV) {
		cfg.Output.CSVFile = c.String(flagCSV)
	}
	if c.IsSet(flagWorkers) && c.Int(flagWorkers) > 0 {
		cfg.Evaluation.Workers = c.Int(flagWorkers)
	}
	if c.Bool(flagSkipFailures) {
		cfg.Evaluation.SkipFailures = true
	}
	if c.Bool(flagNoVisuals) {
		cfg.Visualization.Enabled = false
	}
	if c.Bool(flagVerbose) {
		cfg.Output.Verbose = true
	}
}

func evaluateAction(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	applyEvaluateFlags(c, cfg)

	policy, err := metrics.ParseBoxPolicy(cfg.Evaluation.BoxPolicy)
	if err != nil {
		return err
	}

	headline := color.New(color.FgCyan, color.Bold)
	headline.Fprintln(c.App.Writer, "================================")
	headline.Fprintln(c.App.Writer, "SEGMENTATION MASK EVALUATION")
	headline.Fprintln(c.App.Writer, "================================")

	params := &evaluation.Params{
		PredictionDir:    cfg.Paths.PredictionDir,
		GroundTruthDir:   cfg.Paths.GroundTruthDir,
		OriginalDir:      cfg.Paths.OriginalDir,
		Workers:          cfg.Evaluation.Workers,
		Threshold:        cfg.Evaluation.Threshold,
		PredictionPrefix: cfg.Evaluation.PredictionPrefix,
		AutoConvert:      cfg.Evaluation.AutoConvert,
		Extensions:       cfg.Evaluation.Extensions,
		SkipFailures:     cfg.Evaluation.SkipFailures,
		BoxPolicy:        policy,
		Visualize:        cfg.Visualization.Enabled,
		IoUDir:           cfg.Visualization.IoUDir,
		BBoxDir:          cfg.Visualization.BBoxDir,
		LineWidth:        cfg.Visualization.LineWidth,
		Captions:         cfg.Visualization.Captions,
		ShowProgress:     cfg.Output.Progress,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	startTime := time.Now()
	result, err := evaluation.NewEvaluator(params, logger).Run(ctx)
	if err != nil {
		return errors.Wrap(err, "evaluation failed")
	}
	logger.Info().Dur("elapsed", time.Since(startTime)).Msg("done")

	doc := report.NewDocument(result, time.Now())
	if err := report.Print(c.App.Writer, doc, cfg.Output.Verbose); err != nil {
		return err
	}

	warn := color.New(color.FgYellow)
	if n := len(result.Skipped); n > 0 {
		warn.Fprintf(c.App.Writer, "%d pair(s) skipped after errors\n", n)
	}
	if n := len(result.Unmatched); n > 0 {
		warn.Fprintf(c.App.Writer, "%d prediction(s) without ground truth\n", n)
	}

	if cfg.Output.ReportFile != "" {
		if err := report.WriteFile(doc, cfg.Output.ReportFile); err != nil {
			return err
		}
		logger.Info().Str("file", cfg.Output.ReportFile).Msg("report written")
	}
	if cfg.Output.CSVFile != "" {
		if err := report.WriteCSV(result.Pairs, cfg.Output.CSVFile); err != nil {
			return err
		}
		logger.Info().Str("file", cfg.Output.CSVFile).Msg("csv written")
	}
	return nil
}

func convertAction(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	dir := cfg.Paths.PredictionDir
	if c.IsSet(flagDir) {
		dir = c.String(flagDir)
	}

	written, err := maskio.ConvertDir(dir, cfg.Evaluation.Extensions, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Converted %d mask(s) in %s\n", len(written), dir)
	return nil
}

func histogramAction(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	params := visualization.HistogramParams{
		Dir:         cfg.Paths.GroundTruthDir,
		Extensions:  cfg.Evaluation.Extensions,
		Threshold:   cfg.Evaluation.Threshold,
		Bins:        cfg.Visualization.HistogramBins,
		MinFraction: cfg.Visualization.HistogramMinFraction,
		Output:      c.String(flagOut),
	}
	if c.IsSet(flagDir) {
		params.Dir = c.String(flagDir)
	}
	if c.IsSet(flagBins) {
		params.Bins = c.Int(flagBins)
	}

	n, err := visualization.Histogram(params, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Histogram of %d mask(s) saved to %s\n", n, params.Output)
	return nil
}

func cleanAction(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	removed, err := workspace.Clean(c.String(flagRoot), cfg.Clean.Folders, logger)
	fmt.Fprintf(c.App.Writer, "Removed %d folder(s)\n", len(removed))
	return err
}
