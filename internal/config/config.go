// Package config handles abctool configuration loading and management.
package config

import (
	"fmt"
	"strings"

	"github.com/Faultbox/abcimport/internal/importer"
)

// Config holds all tool settings.
type Config struct {
	Import  importer.Settings `yaml:"import"`
	Export  ExportConfig      `yaml:"export"`
	Logging LoggingConfig     `yaml:"logging"`
}

// ExportConfig holds output settings.
type ExportConfig struct {
	OutDir string `yaml:"out_dir"`
	// Format is glb or gltf.
	Format   string `yaml:"format"`
	Manifest bool   `yaml:"manifest"`
	// Tracks limits the import to the named mesh tracks; empty means all.
	Tracks []string `yaml:"tracks"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Import: importer.DefaultSettings(),
		Export: ExportConfig{
			OutDir:   "out",
			Format:   "glb",
			Manifest: true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks values that cannot be fixed up later.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Export.Format) {
	case "glb", "gltf":
	default:
		return fmt.Errorf("export format %q: want glb or gltf", c.Export.Format)
	}
	if c.Import.NumThreads < 0 {
		return fmt.Errorf("num_threads %d is negative", c.Import.NumThreads)
	}
	if c.Import.Sampling.FrameStart < 0 {
		return fmt.Errorf("frame_start %d is negative", c.Import.Sampling.FrameStart)
	}
	return nil
}

// Extension returns the output file extension for the export format.
func (c *Config) Extension() string {
	return "." + strings.ToLower(c.Export.Format)
}
