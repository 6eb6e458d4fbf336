// Package config loads engine configuration and rule/fact documents
// from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/reason/pkg/reason/internalerr"
)

// Inference modes.
const (
	ModeForward  = "forward"
	ModeBackward = "backward"
	ModeHybrid   = "hybrid"
)

// Config holds the engine's tunable settings.
type Config struct {
	Mode              string `yaml:"mode" json:"mode"`
	MaxIterations     int    `yaml:"max_iterations" json:"maxIterations"`
	ConflictStrategy  string `yaml:"conflict_strategy" json:"conflictStrategy"`
	StaleAfterMinutes int    `yaml:"stale_after_minutes" json:"staleAfterMinutes"`
	LogLevel          string `yaml:"log_level" json:"logLevel"`
}

// Default returns the configuration used when nothing is supplied.
func Default() Config {
	return Config{
		Mode:              ModeForward,
		MaxIterations:     100,
		ConflictStrategy:  "priority",
		StaleAfterMinutes: 60,
		LogLevel:          "info",
	}
}

// StaleAfter returns the staleness window as a duration.
func (c Config) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMinutes) * time.Minute
}

// Validate checks the configuration for structural errors.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeForward, ModeBackward, ModeHybrid:
	default:
		return fmt.Errorf("%w: mode %q", internalerr.ErrUnknownMode, c.Mode)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("%w: max_iterations must be positive, got %d", internalerr.ErrInvalidConfig, c.MaxIterations)
	}
	if c.StaleAfterMinutes < 0 {
		return fmt.Errorf("%w: stale_after_minutes must not be negative", internalerr.ErrInvalidConfig)
	}
	return nil
}

// Load reads a YAML config file, overlaying it on the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
