package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/abcimport/internal/importer"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Import.ImportType != importer.ImportStaticMesh {
		t.Errorf("expected static mesh import, got %s", cfg.Import.ImportType)
	}
	if cfg.Import.Sampling.Type != importer.SamplePerFrame {
		t.Errorf("expected per-frame sampling, got %s", cfg.Import.Sampling.Type)
	}
	if !cfg.Import.StaticMesh.MergeMeshes {
		t.Error("expected merged static meshes by default")
	}
	if !cfg.Import.Compression.BakeMatrixAnimation {
		t.Error("expected matrix animation baking by default")
	}
	if cfg.Import.Compression.PercentageOfTotalBases != 100 {
		t.Errorf("expected 100%% of bases, got %f", cfg.Import.Compression.PercentageOfTotalBases)
	}

	if cfg.Export.OutDir != "out" {
		t.Errorf("expected out dir 'out', got %s", cfg.Export.OutDir)
	}
	if cfg.Export.Format != "glb" {
		t.Errorf("expected glb format, got %s", cfg.Export.Format)
	}
	if !cfg.Export.Manifest {
		t.Error("expected manifest to be written by default")
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "abctool.yaml")

	yamlContent := `
import:
  import_type: skeletal
  sampling:
    type: per_x_frames
    frame_start: 10
    frame_end: 50
    frame_steps: 2
  compression:
    merge_meshes: true
    base_calculation: fixed
    max_number_of_bases: 8
  num_threads: 4

export:
  out_dir: "build/assets"
  format: gltf
  tracks: [body, cloth]

logging:
  level: "debug"
  log_file: "abctool.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Import.ImportType != importer.ImportSkeletal {
		t.Errorf("expected skeletal import, got %s", cfg.Import.ImportType)
	}
	if cfg.Import.Sampling.Type != importer.SamplePerXFrames {
		t.Errorf("expected per-x-frames sampling, got %s", cfg.Import.Sampling.Type)
	}
	if cfg.Import.Sampling.FrameStart != 10 || cfg.Import.Sampling.FrameEnd != 50 {
		t.Errorf("expected frames 10-50, got %d-%d", cfg.Import.Sampling.FrameStart, cfg.Import.Sampling.FrameEnd)
	}
	if cfg.Import.Compression.BaseCalculation != importer.BasesFixed {
		t.Errorf("expected fixed bases, got %s", cfg.Import.Compression.BaseCalculation)
	}
	if cfg.Import.Compression.MaxNumberOfBases != 8 {
		t.Errorf("expected 8 bases, got %d", cfg.Import.Compression.MaxNumberOfBases)
	}
	if cfg.Import.NumThreads != 4 {
		t.Errorf("expected 4 threads, got %d", cfg.Import.NumThreads)
	}
	// Values absent from the file keep their defaults.
	if !cfg.Import.Compression.BakeMatrixAnimation {
		t.Error("expected bake_matrix_animation to keep its default")
	}

	if cfg.Export.OutDir != "build/assets" {
		t.Errorf("expected out dir build/assets, got %s", cfg.Export.OutDir)
	}
	if cfg.Extension() != ".gltf" {
		t.Errorf("expected .gltf extension, got %s", cfg.Extension())
	}
	if len(cfg.Export.Tracks) != 2 || cfg.Export.Tracks[1] != "cloth" {
		t.Errorf("expected tracks [body cloth], got %v", cfg.Export.Tracks)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "abctool.log" {
		t.Errorf("expected log file 'abctool.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"syntax", "import:\n  num_threads: not a number\n  invalid syntax here\n"},
		{"unknown import type", "import:\n  import_type: hologram\n"},
		{"unknown sampling type", "import:\n  sampling:\n    type: sometimes\n"},
		{"misspelt key", "import:\n  sampling:\n    frame_strat: 3\n"},
		{"unknown section", "exports:\n  out_dir: x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "invalid.yaml")
			if err := os.WriteFile(configPath, []byte(tt.yaml), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}
			cfg := Default()
			if err := loadFromFile(cfg, configPath); err == nil {
				t.Error("expected error loading invalid YAML, got nil")
			}
		})
	}
}

func TestLoadFromFileEmpty(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(configPath, nil, 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("empty file should load: %v", err)
	}
	if cfg.Export.OutDir != "out" {
		t.Errorf("expected defaults to survive, got out dir %s", cfg.Export.OutDir)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/abctool.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"gltf", func(c *Config) { c.Export.Format = "GLTF" }, false},
		{"obj", func(c *Config) { c.Export.Format = "obj" }, true},
		{"negative threads", func(c *Config) { c.Import.NumThreads = -2 }, true},
		{"negative start", func(c *Config) { c.Import.Sampling.FrameStart = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	// Just verify it returns a non-empty path
	// Actual path depends on OS
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}

	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))

	// No config file exists - should return empty
	path := findConfigFile()
	if path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, FileName)
	if err := os.WriteFile(configPath, []byte("export:\n  out_dir: x\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	path = findConfigFile()
	if path == "" {
		t.Error("expected to find abctool.yaml in current directory")
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*testing.T, *Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "type flag",
			setup: func() { *flagType = "geometry-cache" },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Import.ImportType != importer.ImportGeometryCache {
					t.Errorf("expected geometry cache, got %s", cfg.Import.ImportType)
				}
			},
			teardown: func() { *flagType = "" },
		},
		{
			name: "frame range flags",
			setup: func() {
				*flagFrameStart = 5
				*flagFrameEnd = 0
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Import.Sampling.FrameStart != 5 {
					t.Errorf("expected frame start 5, got %d", cfg.Import.Sampling.FrameStart)
				}
				if cfg.Import.Sampling.FrameEnd != 0 {
					t.Errorf("expected frame end 0, got %d", cfg.Import.Sampling.FrameEnd)
				}
			},
			teardown: func() {
				*flagFrameStart = -1
				*flagFrameEnd = -1
			},
		},
		{
			name:  "bases flag",
			setup: func() { *flagBases = 6 },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Import.Compression.BaseCalculation != importer.BasesFixed {
					t.Errorf("expected fixed bases, got %s", cfg.Import.Compression.BaseCalculation)
				}
				if cfg.Import.Compression.MaxNumberOfBases != 6 {
					t.Errorf("expected 6 bases, got %d", cfg.Import.Compression.MaxNumberOfBases)
				}
			},
			teardown: func() { *flagBases = 0 },
		},
		{
			name: "merge and bake flags",
			setup: func() {
				flagMerge.Set("false")
				flagBake.Set("false")
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Import.StaticMesh.MergeMeshes || cfg.Import.Compression.MergeMeshes {
					t.Error("expected merging to be disabled")
				}
				if cfg.Import.StaticMesh.PropagateMatrixTransformations || cfg.Import.Compression.BakeMatrixAnimation {
					t.Error("expected baking to be disabled")
				}
			},
			teardown: func() {
				*flagMerge = optionalBool{}
				*flagBake = optionalBool{}
			},
		},
		{
			name: "threads and out dir flags",
			setup: func() {
				*flagThreads = 0
				*flagOutDir = "/tmp/assets"
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Import.NumThreads != 0 {
					t.Errorf("expected 0 threads, got %d", cfg.Import.NumThreads)
				}
				if cfg.Export.OutDir != "/tmp/assets" {
					t.Errorf("expected out dir /tmp/assets, got %s", cfg.Export.OutDir)
				}
			},
			teardown: func() {
				*flagThreads = -1
				*flagOutDir = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			if err := applyFlags(cfg); err != nil {
				t.Fatalf("applyFlags: %v", err)
			}
			tt.verify(t, cfg)
		})
	}
}

func TestApplyFlagsInvalidType(t *testing.T) {
	*flagType = "hologram"
	defer func() { *flagType = "" }()

	if err := applyFlags(Default()); err == nil {
		t.Error("expected error for unknown import type")
	}
}

func TestUnsetBoolFlagsKeepConfig(t *testing.T) {
	cfg := Default()
	cfg.Import.StaticMesh.MergeMeshes = false
	if err := applyFlags(cfg); err != nil {
		t.Fatalf("applyFlags: %v", err)
	}
	if cfg.Import.StaticMesh.MergeMeshes {
		t.Error("an unset -merge flag must not change the config")
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "abctool.yaml")

	yamlContent := `
import:
  import_type: skeletal
  sampling:
    frame_start: 3
    frame_end: 30
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagFrameEnd = 12
	defer func() {
		*flagConfig = ""
		*flagFrameEnd = -1
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Frame end comes from the flag, not the file.
	if cfg.Import.Sampling.FrameEnd != 12 {
		t.Errorf("expected frame end 12 from flag, got %d", cfg.Import.Sampling.FrameEnd)
	}
	if cfg.Import.Sampling.FrameStart != 3 {
		t.Errorf("expected frame start 3 from file, got %d", cfg.Import.Sampling.FrameStart)
	}
	if cfg.Import.ImportType != importer.ImportSkeletal {
		t.Errorf("expected skeletal import from file, got %s", cfg.Import.ImportType)
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "abctool.yaml")

	cfg := Default()
	cfg.Import.ImportType = importer.ImportGeometryCache
	cfg.Import.Sampling.TimeSteps = 0.25
	cfg.Export.Format = "gltf"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	back := Default()
	if err := loadFromFile(back, path); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if back.Import.ImportType != importer.ImportGeometryCache {
		t.Errorf("expected geometry cache after reload, got %s", back.Import.ImportType)
	}
	if back.Import.Sampling.TimeSteps != 0.25 {
		t.Errorf("expected time step 0.25 after reload, got %f", back.Import.Sampling.TimeSteps)
	}
	if back.Export.Format != "gltf" {
		t.Errorf("expected gltf after reload, got %s", back.Export.Format)
	}
}

func TestSave(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("APPDATA", t.TempDir())

	if err := Default().Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(ConfigDir(), "config.yaml")); err != nil {
		t.Errorf("expected config in %s: %v", ConfigDir(), err)
	}
}
