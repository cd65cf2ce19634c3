package config

import (
	"flag"
	"strconv"

	"github.com/Faultbox/abcimport/internal/importer"
)

// optionalBool is a boolean flag that remembers whether it was given.
type optionalBool struct {
	set   bool
	value bool
}

func (b *optionalBool) String() string {
	if b == nil || !b.set {
		return ""
	}
	return strconv.FormatBool(b.value)
}

func (b *optionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	b.set, b.value = true, v
	return nil
}

func (b *optionalBool) IsBoolFlag() bool { return true }

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagType       = flag.String("type", "", "Import type: static_mesh, geometry_cache or skeletal")
	flagThreads    = flag.Int("threads", -1, "Worker threads (0 = one per CPU)")
	flagFrameStart = flag.Int("frame-start", -1, "First frame to import")
	flagFrameEnd   = flag.Int("frame-end", -1, "Frame to stop at, exclusive (0 = archive end)")
	flagBases      = flag.Int("bases", 0, "Keep a fixed number of bases per compressed mesh")
	flagOutDir     = flag.String("out-dir", "", "Output directory")
	flagMerge      = &optionalBool{}
	flagBake       = &optionalBool{}
)

func init() {
	flag.Var(flagMerge, "merge", "Merge meshes into one asset")
	flag.Var(flagBake, "bake", "Bake matrix animation into vertices")
}

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the arguments left after flag parsing.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via -config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) error {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagType != "" {
		t, err := importer.ParseImportType(*flagType)
		if err != nil {
			return err
		}
		cfg.Import.ImportType = t
	}
	if *flagThreads >= 0 {
		cfg.Import.NumThreads = *flagThreads
	}
	if *flagFrameStart >= 0 {
		cfg.Import.Sampling.FrameStart = *flagFrameStart
	}
	if *flagFrameEnd >= 0 {
		cfg.Import.Sampling.FrameEnd = *flagFrameEnd
	}
	if *flagBases > 0 {
		cfg.Import.Compression.BaseCalculation = importer.BasesFixed
		cfg.Import.Compression.MaxNumberOfBases = *flagBases
	}
	if flagMerge.set {
		cfg.Import.StaticMesh.MergeMeshes = flagMerge.value
		cfg.Import.Compression.MergeMeshes = flagMerge.value
	}
	if flagBake.set {
		cfg.Import.StaticMesh.PropagateMatrixTransformations = flagBake.value
		cfg.Import.Compression.BakeMatrixAnimation = flagBake.value
	}
	if *flagOutDir != "" {
		cfg.Export.OutDir = *flagOutDir
	}
	return nil
}
