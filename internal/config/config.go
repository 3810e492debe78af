// Package config consolidates every recognized run option into a single
// immutable RunConfig value. All defaults live here; the CLI only fills
// fields in.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrThresholdOrder is returned when reject_threshold exceeds
// accept_threshold.
var ErrThresholdOrder = errors.New("reject threshold must not exceed accept threshold")

// Default thresholds per backend.
const (
	DefaultBaselineAccept = 0.90
	DefaultBaselineReject = 0.20
	DefaultFSAccept       = 3.0
	DefaultFSReject       = -3.0
	DefaultTitleThreshold = 0.95
	DefaultSeed           = 42
	DefaultMaxWorkers     = 4
	DefaultMinMentions    = 2
)

// RunConfig is the complete configuration of one disambiguation run. It is
// passed by value and never mutated after Finalize.
type RunConfig struct {
	Mode            string  `yaml:"mode"`
	AcceptThreshold float64 `yaml:"accept_threshold"`
	RejectThreshold float64 `yaml:"reject_threshold"`
	TitleThreshold  float64 `yaml:"title_threshold"`
	Seed            int64   `yaml:"seed"`
	MaxWorkers      int     `yaml:"max_workers"`
	MUTablePath     string  `yaml:"mu_table"`
	RedactionSalt   string  `yaml:"redaction_salt"`
	Limit           int     `yaml:"limit"`
	Language        string  `yaml:"language"`

	RunID           string  `yaml:"run_id"`
	CrossrefAuthors string  `yaml:"crossref_authors"`
	DOIs            string  `yaml:"dois"`
	Rate            float64 `yaml:"rate"`
	TraceJSONL      string  `yaml:"trace_jsonl"`
	ReviewJSONL     string  `yaml:"review_jsonl"`
	OutputDir       string  `yaml:"output"`
	Verbose         bool    `yaml:"verbose"`
	Debug           bool    `yaml:"debug"`

	// thresholds explicitly set by the caller; zero values are otherwise
	// replaced by the mode defaults in Finalize
	AcceptSet bool `yaml:"-"`
	RejectSet bool `yaml:"-"`
}

// Default returns the baseline-mode defaults.
func Default() RunConfig {
	return RunConfig{
		Mode:           "baseline",
		TitleThreshold: DefaultTitleThreshold,
		Seed:           DefaultSeed,
		MaxWorkers:     DefaultMaxWorkers,
		Language:       "en",
		OutputDir:      "results",
	}
}

// LoadFile overlays values from a YAML config file onto c. Fields absent from
// the file keep their current values.
func (c *RunConfig) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// Finalize fills mode-dependent threshold defaults and validates the result.
func (c *RunConfig) Finalize() error {
	switch c.Mode {
	case "baseline":
		if !c.AcceptSet {
			c.AcceptThreshold = DefaultBaselineAccept
		}
		if !c.RejectSet {
			c.RejectThreshold = DefaultBaselineReject
		}
	case "fs":
		if !c.AcceptSet {
			c.AcceptThreshold = DefaultFSAccept
		}
		if !c.RejectSet {
			c.RejectThreshold = DefaultFSReject
		}
	default:
		return fmt.Errorf("unknown mode %q (want baseline or fs)", c.Mode)
	}

	if c.RejectThreshold > c.AcceptThreshold {
		return fmt.Errorf("accept=%v reject=%v: %w", c.AcceptThreshold, c.RejectThreshold, ErrThresholdOrder)
	}
	if c.TitleThreshold <= 0 || c.TitleThreshold > 1 {
		return fmt.Errorf("title threshold %v out of range (0,1]", c.TitleThreshold)
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("max workers must be at least 1, got %d", c.MaxWorkers)
	}
	if c.Language != "en" {
		return fmt.Errorf("unsupported language %q", c.Language)
	}
	if c.RedactionSalt == "" {
		c.RedactionSalt = os.Getenv("DISAMBIGUATOR_SALT")
	}
	return nil
}
