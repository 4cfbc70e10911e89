package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Boundary policies for joining files inside one split
const (
	BoundaryNone     = "none"
	BoundarySentinel = "sentinel"
)

// Time units for event times
const (
	UnitSeconds = "seconds"
	UnitTicks   = "ticks"
)

// Profile is a named set of user paths
type Profile struct {
	InputDir       string `json:"inputDir"`
	OutputDir      string `json:"outputDir"`
	OutputFileName string `json:"outputFileName"`
}

// OutputPath joins the profile's output dir with name
func (p Profile) OutputPath(name string) string {
	return filepath.Join(p.OutputDir, name)
}

// DatasetConfig controls splitting, tokenizing and windowing
type DatasetConfig struct {
	Window             int     `json:"window"`
	TestFraction       float64 `json:"testFraction"`
	ValidationFraction float64 `json:"validationFraction"` // of the remainder after test
	Seed               uint64  `json:"seed"`
	Boundary           string  `json:"boundary"`
	TimeUnit           string  `json:"timeUnit"`
	SkipDrums          bool    `json:"skipDrums,omitempty"`
	Workers            int     `json:"workers,omitempty"`
}

// TrainingConfig controls the training collaborator
type TrainingConfig struct {
	Epochs       int     `json:"epochs"`
	BatchSize    int     `json:"batchSize"`
	LearningRate float64 `json:"learningRate"`
	TimeScale    float64 `json:"timeScale"` // divides time deltas before training
}

// HistogramConfig controls the mean-MNN plot
type HistogramConfig struct {
	Bins      int    `json:"bins"`
	Title     string `json:"title"`
	ImageName string `json:"imageName"`
}

// Config is the main configuration structure
type Config struct {
	Profiles  map[string]Profile `json:"profiles,omitempty"`
	Dataset   DatasetConfig      `json:"dataset"`
	Training  TrainingConfig     `json:"training"`
	Histogram HistogramConfig    `json:"histogram"`
	DebugLog  string             `json:"debugLog,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Profiles: map[string]Profile{
			"default": {
				InputDir:       "midi",
				OutputDir:      "out",
				OutputFileName: "mean_mnn.txt",
			},
		},
		Dataset: DatasetConfig{
			Window:             50,
			TestFraction:       0.2,
			ValidationFraction: 0.1,
			Seed:               42,
			Boundary:           BoundarySentinel,
			TimeUnit:           UnitSeconds,
			Workers:            1,
		},
		Training: TrainingConfig{
			Epochs:       10,
			BatchSize:    32,
			LearningRate: 0.001,
			TimeScale:    1,
		},
		Histogram: HistogramConfig{
			Bins:      20,
			Title:     "Mean MIDI note number per file",
			ImageName: "mean_mnn.png",
		},
	}
}

// ConfigurationError reports a bad parameter or profile
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%v: %s", e.Field, e.Value, e.Reason)
}

// Dir returns the config directory path
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-midivel"), nil
}

// Path returns the full path to config.json
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from the default location, or returns defaults if not found
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path. Missing fields keep their defaults.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// SaveTo writes the config to path, creating parent directories
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Save writes the config to the default location
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// Profile looks up a user profile by name
func (c *Config) Profile(name string) (Profile, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return Profile{}, &ConfigurationError{
			Field:  "user",
			Value:  name,
			Reason: fmt.Sprintf("unknown profile (known: %v)", c.ProfileNames()),
		}
	}
	return p, nil
}

// ProfileNames returns the sorted profile names
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks every parameter that would otherwise fail late
func (c *Config) Validate() error {
	d := c.Dataset
	if d.Window <= 0 {
		return &ConfigurationError{Field: "dataset.window", Value: d.Window, Reason: "must be positive"}
	}
	if err := CheckFraction("dataset.testFraction", d.TestFraction); err != nil {
		return err
	}
	if err := CheckFraction("dataset.validationFraction", d.ValidationFraction); err != nil {
		return err
	}
	switch d.Boundary {
	case BoundaryNone, BoundarySentinel:
	default:
		return &ConfigurationError{Field: "dataset.boundary", Value: d.Boundary, Reason: "must be none or sentinel"}
	}
	switch d.TimeUnit {
	case UnitSeconds, UnitTicks:
	default:
		return &ConfigurationError{Field: "dataset.timeUnit", Value: d.TimeUnit, Reason: "must be seconds or ticks"}
	}
	if d.Workers < 0 {
		return &ConfigurationError{Field: "dataset.workers", Value: d.Workers, Reason: "must not be negative"}
	}

	t := c.Training
	if t.Epochs < 0 {
		return &ConfigurationError{Field: "training.epochs", Value: t.Epochs, Reason: "must not be negative"}
	}
	if t.BatchSize <= 0 {
		return &ConfigurationError{Field: "training.batchSize", Value: t.BatchSize, Reason: "must be positive"}
	}
	if t.LearningRate <= 0 {
		return &ConfigurationError{Field: "training.learningRate", Value: t.LearningRate, Reason: "must be positive"}
	}
	if t.TimeScale <= 0 {
		return &ConfigurationError{Field: "training.timeScale", Value: t.TimeScale, Reason: "must be positive"}
	}

	if c.Histogram.Bins <= 0 {
		return &ConfigurationError{Field: "histogram.bins", Value: c.Histogram.Bins, Reason: "must be positive"}
	}
	return nil
}

// CheckFraction requires 0 < v < 1
func CheckFraction(field string, v float64) error {
	if !(v > 0 && v < 1) {
		return &ConfigurationError{Field: field, Value: v, Reason: "must be in (0, 1)"}
	}
	return nil
}
