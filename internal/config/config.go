// Package config loads safeprop.yaml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/safeprop/internal/oracle"
	"github.com/roach88/safeprop/internal/safety"
)

// FileName is the config file looked up in a project root.
const FileName = "safeprop.yaml"

// DefaultStorePath is where run history goes unless configured otherwise.
const DefaultStorePath = ".safeprop/history.db"

// Config is the analyzer configuration. The zero value is not usable; start
// from Default or Load.
type Config struct {
	// Labels are the annotation types that mark each level.
	Labels safety.Labels `yaml:"labels"`

	// TestPaths are path fragments marking test-only units.
	TestPaths []string `yaml:"test_paths"`

	// KnownTypes classifies library types not declared in the program.
	// Entries are merged over the built-in table.
	KnownTypes map[string]safety.Level `yaml:"known_types"`

	// Store is the history database path. "none" disables history.
	Store string `yaml:"store"`

	// Workers bounds how many units are analyzed at once.
	Workers int `yaml:"workers"`
}

// Default returns the built-in configuration.
func Default() Config {
	known := make(map[string]safety.Level, len(oracle.DefaultKnownTypes))
	for k, v := range oracle.DefaultKnownTypes {
		known[k] = v
	}
	return Config{
		Labels:     safety.DefaultLabels,
		TestPaths:  slices.Clone(oracle.DefaultTestPaths),
		KnownTypes: known,
		Store:      DefaultStorePath,
		Workers:    1,
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// Unknown fields are rejected so typos surface instead of being ignored.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cfg.merge(data); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDir loads FileName from dir.
func LoadDir(dir string) (Config, error) {
	return Load(filepath.Join(dir, FileName))
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := cfg.merge(data); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) merge(data []byte) error {
	var file Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return c.Apply(file)
}

// Apply overlays the set fields of o onto c and validates the result.
// Known types are merged; every other field replaces.
func (c *Config) Apply(o Config) error {
	if o.Labels != (safety.Labels{}) {
		c.Labels = o.Labels.WithDefaults()
	}
	if o.TestPaths != nil {
		c.TestPaths = o.TestPaths
	}
	if c.KnownTypes == nil && len(o.KnownTypes) > 0 {
		c.KnownTypes = make(map[string]safety.Level, len(o.KnownTypes))
	}
	for k, v := range o.KnownTypes {
		c.KnownTypes[k] = v
	}
	if o.Store != "" {
		c.Store = o.Store
	}
	if o.Workers != 0 {
		c.Workers = o.Workers
	}
	return c.Validate()
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if err := c.Labels.Validate(); err != nil {
		return fmt.Errorf("labels: %w", err)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	for name, level := range c.KnownTypes {
		if level == safety.Unknown {
			return fmt.Errorf("known_types: %s: level must not be UNKNOWN", name)
		}
	}
	return nil
}

// StoreEnabled reports whether run history is recorded.
func (c Config) StoreEnabled() bool {
	return c.Store != "" && c.Store != "none"
}

// OracleOptions converts the configuration to oracle options.
func (c Config) OracleOptions() []oracle.Option {
	return []oracle.Option{
		oracle.WithLabels(c.Labels),
		oracle.WithTestPaths(c.TestPaths),
		oracle.WithKnownTypes(c.KnownTypes),
	}
}
