// Package config loads the settings shared by the widebvh commands.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/achilleasa/widebvh/bvh"
	"github.com/achilleasa/widebvh/cwbvh"
	"github.com/achilleasa/widebvh/log"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("config: invalid value")

// Config holds the pipeline and tool settings.
type Config struct {
	LogLevel string `yaml:"log_level"`

	// Address for the prometheus /metrics endpoint. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`

	Pipeline cwbvh.Options `yaml:"pipeline"`
	Bench    Bench         `yaml:"bench"`
}

// Bench configures the tracing benchmark.
type Bench struct {
	// Primary ray grid.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// Number of concurrent tracers.
	Tracers int `yaml:"tracers"`

	// Number of frames to trace; the first frame is used to warm up
	// the block scheduler.
	Frames int `yaml:"frames"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		LogLevel: "notice",
		Pipeline: cwbvh.DefaultOptions(),
		Bench: Bench{
			Width:   256,
			Height:  256,
			Tracers: bvh.DefaultWorkers(),
			Frames:  4,
		},
	}
}

// LoadConfig reads a YAML configuration file on top of the defaults. Unknown
// keys are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("YAML syntax error in config: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate checks every section of the configuration.
func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	if err := c.Pipeline.Build.Validate(); err != nil {
		return err
	}
	if c.Pipeline.Wide.NodeCost < 0 || c.Pipeline.Wide.SlotCost < 0 {
		return fmt.Errorf("%w: wide conversion costs must not be negative", ErrInvalidConfig)
	}
	if c.Bench.Width < 1 || c.Bench.Height < 1 || c.Bench.Tracers < 1 || c.Bench.Frames < 1 {
		return fmt.Errorf("%w: bench dimensions, tracers and frames must be positive", ErrInvalidConfig)
	}
	return nil
}
