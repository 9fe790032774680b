package kv

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// validate is a singleton validator instance
var validate = validator.New()

// Options configures an embedded store.
type Options struct {
	// Dir is the base directory all SSTable levels live under.
	Dir string `yaml:"dir" validate:"required"`

	// LogLevel selects the logger verbosity: debug, info, warn or error.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`

	// LogOutput selects where logs go: "stdout", "stderr" or "discard".
	// Embedded stores default to discard.
	LogOutput string `yaml:"log_output" validate:"omitempty,oneof=stdout stderr discard"`

	// CacheSize is the number of resolved reads kept in the LRU cache.
	// Zero disables the cache.
	CacheSize int `yaml:"cache_size" validate:"gte=0"`

	// MetricsEnabled registers prometheus metrics for the store.
	MetricsEnabled bool `yaml:"metrics_enabled"`
}

// DefaultOptions returns the default configuration for a base directory
func DefaultOptions(dir string) Options {
	return Options{
		Dir:            dir,
		LogLevel:       "info",
		LogOutput:      "discard",
		CacheSize:      4096,
		MetricsEnabled: true,
	}
}

// LoadOptions reads and validates a YAML configuration file
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("read config %s: %w", path, err)
	}

	opts := DefaultOptions("")
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Validate checks the options against their struct tags
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
