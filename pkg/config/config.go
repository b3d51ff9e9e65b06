// Package config provides configuration loading and management for maskeval.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"maskeval/pkg/maskio"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Input directories
	Paths struct {
		// PredictionDir holds the predicted masks, named <prefix>_<id>_<suffix>
		PredictionDir string `yaml:"predictionDir"`

		// GroundTruthDir holds the ground-truth masks, named <id>.<ext>
		GroundTruthDir string `yaml:"groundTruthDir"`

		// OriginalDir holds the original images used as bbox overlay background
		OriginalDir string `yaml:"originalDir"`
	} `yaml:"paths"`

	// Evaluation parameters
	Evaluation struct {
		// Workers specifies how many pairs are evaluated concurrently
		Workers int `yaml:"workers"`

		// Threshold is the gray level a pixel must exceed to count as foreground
		Threshold uint8 `yaml:"threshold"`

		// PredictionPrefix restricts predictions to files starting with it.
		// The default picks the remapped copies written by the convert command.
		PredictionPrefix string `yaml:"predictionPrefix"`

		// AutoConvert writes the remapped copies before evaluating when the
		// prediction directory holds only raw detector output
		AutoConvert bool `yaml:"autoConvert"`

		// Extensions lists the file extensions treated as masks
		Extensions []string `yaml:"extensions"`

		// SkipFailures keeps going past per-pair errors and reports them
		SkipFailures bool `yaml:"skipFailures"`

		// BoxPolicy selects the zero-union bbox rule: "strict" or "reference"
		BoxPolicy string `yaml:"boxPolicy"`
	} `yaml:"evaluation"`

	// Diagnostic image parameters
	Visualization struct {
		// Enabled turns overlay generation on
		Enabled bool `yaml:"enabled"`

		// IoUDir receives the intersection/union overlays
		IoUDir string `yaml:"iouDir"`

		// BBoxDir receives the bounding box overlays
		BBoxDir string `yaml:"bboxDir"`

		// LineWidth is the stroke width of drawn boxes
		LineWidth float64 `yaml:"lineWidth"`

		// Captions prints the bbox IoU in the corner of each bbox overlay
		Captions bool `yaml:"captions"`

		// HistogramBins is the number of bins in the foreground histogram
		HistogramBins int `yaml:"histogramBins"`

		// HistogramMinFraction drops near-empty masks from the histogram
		HistogramMinFraction float64 `yaml:"histogramMinFraction"`
	} `yaml:"visualization"`

	// Output parameters
	Output struct {
		// ReportFile receives the full report; .yaml/.yml selects YAML, anything else JSON
		ReportFile string `yaml:"reportFile"`

		// CSVFile receives the per-pair records
		CSVFile string `yaml:"csvFile"`

		// Progress shows a progress bar while pairs are evaluated
		Progress bool `yaml:"progress"`

		// Verbose prints the per-pair table next to the averages
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// Logging parameters
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"logging"`

	// Clean parameters
	Clean struct {
		// Folders are the generated directories removed by the clean command
		Folders []string `yaml:"folders"`
	} `yaml:"clean"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Paths.PredictionDir = "./label"
	cfg.Paths.GroundTruthDir = "./truelabels"
	cfg.Paths.OriginalDir = "./images"

	cfg.Evaluation.Workers = runtime.NumCPU()
	cfg.Evaluation.Threshold = 0
	cfg.Evaluation.PredictionPrefix = maskio.ConvertedPrefix
	cfg.Evaluation.AutoConvert = true
	cfg.Evaluation.Extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}
	cfg.Evaluation.SkipFailures = false
	cfg.Evaluation.BoxPolicy = "strict"

	cfg.Visualization.Enabled = true
	cfg.Visualization.IoUDir = "iou"
	cfg.Visualization.BBoxDir = "bb"
	cfg.Visualization.LineWidth = 2
	cfg.Visualization.Captions = true
	cfg.Visualization.HistogramBins = 20
	cfg.Visualization.HistogramMinFraction = 1e-4

	cfg.Output.Progress = true
	cfg.Output.Verbose = false

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"

	cfg.Clean.Folders = []string{
		"bag", "bb", "boxes", "filtered", "flim", "iou", "label",
		"layer0", "layer1", "layer2", "objs", "salie",
	}

	return cfg
}

// Validate checks value ranges and fills in zero values that have a safe default
func (c *Config) Validate() error {
	if c.Evaluation.Workers <= 0 {
		c.Evaluation.Workers = runtime.NumCPU()
	}
	switch c.Evaluation.BoxPolicy {
	case "":
		c.Evaluation.BoxPolicy = "strict"
	case "strict", "reference":
	default:
		return errors.Errorf("unknown box policy %q (must be strict or reference)", c.Evaluation.BoxPolicy)
	}
	if len(c.Evaluation.Extensions) == 0 {
		return errors.New("at least one mask extension is required")
	}
	if c.Visualization.LineWidth <= 0 {
		c.Visualization.LineWidth = 2
	}
	if c.Visualization.HistogramBins <= 0 {
		c.Visualization.HistogramBins = 20
	}
	if c.Visualization.HistogramMinFraction < 0 || c.Visualization.HistogramMinFraction >= 1 {
		return errors.Errorf("histogram min fraction %v out of range [0, 1)", c.Visualization.HistogramMinFraction)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
