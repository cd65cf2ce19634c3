package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the working directory.
const FileName = "abctool.yaml"

// savedFileName is the config file Save writes into ConfigDir.
const savedFileName = "config.yaml"

// Load builds the configuration in layers: built-in defaults, then the
// config file, then command-line flags. The file is the -config path when
// given, otherwise the first of ./abctool.yaml and ConfigDir/config.yaml
// that exists. The merged result must pass Validate.
func Load() (*Config, error) {
	cfg := Default()

	path := ConfigPath()
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	if err := applyFlags(cfg); err != nil {
		return nil, fmt.Errorf("applying flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first existing implicit config file, or "".
func findConfigFile() string {
	for _, path := range []string{
		"./" + FileName,
		filepath.Join(ConfigDir(), savedFileName),
	} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the per-user abctool directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "abctool")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "abctool")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "abctool")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "abctool")
	}
}

// loadFromFile overlays the YAML file at path onto cfg. Keys the file leaves
// out keep their current value; keys cfg does not know are rejected so a
// misspelt option is not silently ignored. An empty file changes nothing.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
