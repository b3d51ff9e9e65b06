package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"maskeval/internal/models"
	"maskeval/pkg/evaluation"
)

// Document is the full report written to disk
type Document struct {
	GeneratedAt time.Time              `json:"generatedAt" yaml:"generatedAt"`
	Aggregate   models.AggregateReport `json:"aggregate" yaml:"aggregate"`
	Summary     []MetricSummary        `json:"summary" yaml:"summary"`
	Pairs       []models.PairResult    `json:"pairs" yaml:"pairs"`
	Skipped     []models.SkippedPair   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Unmatched   []string               `json:"unmatched,omitempty" yaml:"unmatched,omitempty"`
	Dropped     []string               `json:"dropped,omitempty" yaml:"dropped,omitempty"`
}

// NewDocument builds the report document for an evaluation result
func NewDocument(result *evaluation.Result, generatedAt time.Time) *Document {
	return &Document{
		GeneratedAt: generatedAt.UTC(),
		Aggregate:   result.Report,
		Summary:     Summarize(result.Pairs),
		Pairs:       result.Pairs,
		Skipped:     result.Skipped,
		Unmatched:   result.Unmatched,
		Dropped:     result.Dropped,
	}
}

// WriteFile writes doc to path. A .yaml or .yml extension selects YAML,
// anything else JSON.
func WriteFile(doc *Document, path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(doc)
	default:
		data, err = json.MarshalIndent(doc, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "error marshaling report")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "error creating report directory")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "error writing report file")
	}
	return nil
}

// AggregateTable renders the three averages
func AggregateTable(report models.AggregateReport) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Metric", "Mean"})
	t.AppendRow(table.Row{MetricIoUPixel, format(report.MeanIoUPixel)})
	t.AppendRow(table.Row{MetricDice, format(report.MeanDice)})
	t.AppendRow(table.Row{MetricIoUBBox, format(report.MeanIoUBBox)})
	t.AppendFooter(table.Row{"Pairs", report.Count})
	return t.Render()
}

// SummaryTable renders the spread of every metric
func SummaryTable(summaries []MetricSummary) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Metric", "Mean", "Std dev", "Median", "Min", "Max"})
	for _, s := range summaries {
		t.AppendRow(table.Row{s.Name, format(s.Mean), format(s.StdDev), format(s.Median), format(s.Min), format(s.Max)})
	}
	return t.Render()
}

// pairsTable holds one row per pair; shared by the text and CSV renderers
func pairsTable(pairs []models.PairResult) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Identifier", "Prediction", "Ground truth", MetricIoUPixel, MetricDice, MetricIoUBBox, "Precision", "Recall", "GT box", "Pred box"})
	for _, p := range pairs {
		t.AppendRow(table.Row{
			p.Identifier.String(),
			p.PredictionFile,
			p.GroundTruthFile,
			format(p.Metrics.IoUPixel),
			format(p.Metrics.Dice),
			format(p.Metrics.IoUBBox),
			format(p.Metrics.Precision),
			format(p.Metrics.Recall),
			p.GroundTruthBox.String(),
			p.PredictionBox.String(),
		})
	}
	return t
}

// PairsTable renders the per-pair records
func PairsTable(pairs []models.PairResult) string {
	t := pairsTable(pairs)
	t.SetStyle(table.StyleLight)
	return t.Render()
}

// WriteCSV writes the per-pair records to path
func WriteCSV(pairs []models.PairResult, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "error creating csv directory")
	}
	out := pairsTable(pairs).RenderCSV() + "\n"
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return errors.Wrap(err, "error writing csv file")
	}
	return nil
}

// Print writes the aggregate table, and with verbose the summary and per-pair
// tables, to w
func Print(w io.Writer, doc *Document, verbose bool) error {
	sections := []string{AggregateTable(doc.Aggregate)}
	if verbose {
		sections = append(sections, SummaryTable(doc.Summary), PairsTable(doc.Pairs))
	}
	for _, s := range sections {
		if _, err := fmt.Fprintln(w, s); err != nil {
			return err
		}
	}
	return nil
}

func format(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
