// Package config provides configuration loading and management for volmesh.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"

	"volmesh/internal/models"
	"volmesh/pkg/analysis"
	"volmesh/pkg/normalization"
	"volmesh/pkg/surface"
	"volmesh/pkg/visualization"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`

		// MinVoxels is the minimum count of voxels above the iso level
		MinVoxels int `yaml:"minVoxels"`
	} `yaml:"processing"`

	// Extraction holds the default iso-surface parameters
	Extraction surface.Params `yaml:"extraction"`

	// Normalization holds the default mesh normalization
	Normalization struct {
		// Method is cartesian or spherical
		Method string `yaml:"method"`

		Cartesian normalization.Cartesian `yaml:"cartesian"`
		Spherical normalization.Spherical `yaml:"spherical"`
	} `yaml:"normalization"`

	// Intensity controls the derived intensity-normalized variant
	Intensity struct {
		// Method is minmax, zscore or percentile; empty keeps raw samples
		Method string `yaml:"method"`
	} `yaml:"intensity"`

	// Cache parameters
	Cache struct {
		// Enabled toggles result caching
		Enabled bool `yaml:"enabled"`
	} `yaml:"cache"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// JSONLogs switches the log format to JSON
		JSONLogs bool `yaml:"jsonLogs"`

		// SliceFormat is jpeg or tiff
		SliceFormat string `yaml:"sliceFormat"`

		// MeshFormat is ascii or binary STL
		MeshFormat string `yaml:"meshFormat"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.MinVoxels = surface.DefaultMinVoxels

	cfg.Extraction = surface.DefaultParams()

	cfg.Normalization.Method = string(normalization.KindCartesian)
	cfg.Normalization.Cartesian = normalization.DefaultCartesian()
	cfg.Normalization.Spherical = normalization.DefaultSpherical()

	cfg.Cache.Enabled = true

	// Set default output parameters
	cfg.Output.Verbose = false
	cfg.Output.JSONLogs = false
	cfg.Output.SliceFormat = string(visualization.FormatTIFF)
	cfg.Output.MeshFormat = "binary"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Read config file
	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "error reading config file"), "path", configPath)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "error parsing config file"), "path", configPath)
	}

	if err := cfg.Validate(); err != nil {
		return nil, zerr.With(err, "path", configPath)
	}

	return cfg, nil
}

// Validate checks that every section holds usable values
func (c *Config) Validate() error {
	if c.Processing.NumCores < 0 {
		return zerr.With(zerr.Wrap(models.ErrInvalidParameter, "numCores must not be negative"), "numCores", c.Processing.NumCores)
	}
	if c.Processing.MinVoxels < 0 {
		return zerr.With(zerr.Wrap(models.ErrInvalidParameter, "minVoxels must not be negative"), "minVoxels", c.Processing.MinVoxels)
	}
	if err := c.Extraction.Validate(); err != nil {
		return err
	}
	if _, err := c.Method(); err != nil {
		return err
	}
	if c.Intensity.Method != "" {
		if _, err := analysis.ParseIntensityMethod(c.Intensity.Method); err != nil {
			return err
		}
	}
	if _, err := visualization.ParseFormat(c.Output.SliceFormat); err != nil {
		return err
	}
	if c.Output.MeshFormat != "ascii" && c.Output.MeshFormat != "binary" {
		return zerr.With(zerr.Wrap(models.ErrInvalidParameter, "meshFormat must be ascii or binary"), "meshFormat", c.Output.MeshFormat)
	}
	return nil
}

// Method returns the configured default normalization method
func (c *Config) Method() (normalization.Method, error) {
	switch normalization.Kind(c.Normalization.Method) {
	case normalization.KindCartesian:
		return c.Normalization.Cartesian, nil
	case normalization.KindSpherical:
		if _, err := normalization.ParseCenterMode(string(c.Normalization.Spherical.CenterMode)); err != nil {
			return nil, err
		}
		return c.Normalization.Spherical, nil
	}
	return nil, zerr.With(zerr.Wrap(models.ErrUnknownMethod, "unsupported normalization method"), "method", c.Normalization.Method)
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return zerr.With(zerr.Wrap(err, "error creating config directory"), "path", dir)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return zerr.Wrap(err, "error marshaling config")
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return zerr.With(zerr.Wrap(err, "error writing config file"), "path", configPath)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
