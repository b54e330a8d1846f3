// Package config loads the quadmill command configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config carries the settings shared by the repl and serve commands.
type Config struct {
	// Listen is the serve command's TCP address.
	Listen string `yaml:"listen"`
	// Journal is the fact log directory; empty runs without persistence.
	Journal string `yaml:"journal"`
	// Verbose turns on debug logging and engine event output.
	Verbose bool `yaml:"verbose"`
	// MaxSteps bounds a single cascade; 0 means unbounded.
	MaxSteps int `yaml:"max_steps"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Listen: "127.0.0.1:7407",
	}
}

// Load reads a YAML config file over the defaults. Unknown fields are
// rejected to catch typos.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil // empty file keeps the defaults
		}
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.MaxSteps < 0 {
		return fmt.Errorf("max_steps must not be negative, got %d", c.MaxSteps)
	}
	if c.Listen == "" {
		return fmt.Errorf("listen must not be empty")
	}
	return nil
}
