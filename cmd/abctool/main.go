// abctool is a CLI utility for importing animated mesh archives as glTF
// static meshes, geometry caches and morph-target skeletal meshes.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/abcimport/internal/asset"
	"github.com/Faultbox/abcimport/internal/config"
	"github.com/Faultbox/abcimport/internal/export"
	"github.com/Faultbox/abcimport/internal/importer"
	"github.com/Faultbox/abcimport/internal/logger"
	"github.com/Faultbox/abcimport/pkg/archive"
)

func main() {
	config.ParseFlags()
	args := config.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	command := args[0]
	args = args[1:]

	var cmdErr error
	switch command {
	case "info":
		cmdErr = cmdInfo(args)
	case "tracks", "ls":
		cmdErr = cmdTracks(args)
	case "import", "i":
		cmdErr = cmdImport(cfg, args)
	case "pack":
		cmdErr = cmdPack(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if cmdErr != nil {
		logger.Sync()
		fmt.Fprintf(os.Stderr, "Error: %v\n", cmdErr)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`abctool - animated mesh archive importer

Usage:
  abctool [flags] <command> [args]

Commands:
  info <archive>                    Show archive information
  tracks <archive>                  List mesh tracks
  import <archive> [output-dir]     Import and write glTF plus manifest
  pack <scene.yaml> <out.abcpack>   Convert a YAML scene to a packed archive

Flags:
  -config <path>       Config file (default ./abctool.yaml)
  -type <type>         static_mesh, geometry_cache or skeletal
  -frame-start <n>     First frame to import
  -frame-end <n>       Frame to stop at, exclusive (0 = archive end)
  -threads <n>         Worker threads (0 = one per CPU)
  -bases <n>           Keep a fixed number of bases per compressed mesh
  -merge / -bake       Override merging and matrix baking
  -out-dir <dir>       Output directory
  -debug               Enable debug logging

Examples:
  abctool info shot.yaml
  abctool -type geometry_cache import shot.abcpack ./out
  abctool -type skeletal -bases 8 import shot.abcpack
  abctool pack shot.yaml shot.abcpack`)
}

func cmdInfo(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: abctool info <archive>")
	}

	im, err := importer.Open(args[0], importer.WithLogger(logger.Named("importer")))
	if err != nil {
		return err
	}
	defer im.Close()

	minTime, maxTime := im.TimeRange()
	bounds := im.ArchiveBounds()

	fmt.Printf("Archive:     %s\n", args[0])
	fmt.Printf("Name:        %s\n", im.Name())
	fmt.Printf("Mesh tracks: %d\n", im.NumMeshTracks())
	fmt.Printf("Transforms:  %d\n", len(im.TransformNodes()))
	fmt.Printf("Frames:      %d (%d - %d)\n", im.NumFrames(), im.StartFrameIndex(), im.EndFrameIndex())
	fmt.Printf("Time range:  %.4f - %.4f\n", minTime, maxTime)
	fmt.Printf("Concurrent:  %t\n", im.ConcurrentReads())
	if bounds.Valid {
		fmt.Printf("Bounds:      (%.3f, %.3f, %.3f) - (%.3f, %.3f, %.3f)\n",
			bounds.Min.X, bounds.Min.Y, bounds.Min.Z,
			bounds.Max.X, bounds.Max.Y, bounds.Max.Z)
	}
	return nil
}

func cmdTracks(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: abctool tracks <archive>")
	}

	im, err := importer.Open(args[0], importer.WithLogger(logger.Named("importer")))
	if err != nil {
		return err
	}
	defer im.Close()

	fmt.Printf("%-32s %8s %6s %9s  %s\n", "TRACK", "SAMPLES", "START", "CONSTANT", "FACE SETS")
	for _, t := range im.PolyMeshes() {
		faceSets := "-"
		if len(t.FaceSetNames) > 0 {
			faceSets = strings.Join(t.FaceSetNames, ", ")
		}
		fmt.Printf("%-32s %8d %6d %9t  %s\n", t.Name, t.NumSamples, t.StartFrameIndex, t.Constant, faceSets)
	}
	return nil
}

func cmdImport(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: abctool import <archive> [output-dir]")
	}
	source := args[0]
	outDir := cfg.Export.OutDir
	if len(args) > 1 {
		outDir = args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	im, err := importer.Open(source, importer.WithLogger(logger.Named("importer")))
	if err != nil {
		return err
	}
	defer im.Close()

	if len(cfg.Export.Tracks) > 0 {
		im.SelectTracks(cfg.Export.Tracks)
	}

	settings := cfg.Import
	if settings.Sampling.FrameEnd == 0 {
		settings.Sampling.FrameEnd = im.EndFrameIndex()
	}

	err = im.ImportTrackData(ctx, settings)
	if err == nil {
		var assets []asset.Asset
		assets, err = im.Import(ctx)
		if err == nil {
			err = writeOutput(cfg, im, source, outDir, assets)
		}
	}
	printMessages(im.Messages())
	return err
}

func writeOutput(cfg *config.Config, im *importer.Importer, source, outDir string, assets []asset.Asset) error {
	files, err := export.WriteAssets(outDir, cfg.Extension(), assets)
	if err != nil {
		return fmt.Errorf("writing assets: %w", err)
	}
	for name, file := range files {
		logger.Debug("asset written", zap.String("asset", name), zap.String("file", file))
	}

	if cfg.Export.Manifest {
		path := filepath.Join(outDir, im.Name()+".manifest.yaml")
		if err := export.WriteManifest(path, source, im.Registry(), files); err != nil {
			return fmt.Errorf("writing manifest: %w", err)
		}
		fmt.Printf("Manifest: %s\n", path)
	}

	fmt.Printf("Imported %d assets from %s into %s\n", len(assets), source, outDir)
	return nil
}

func printMessages(msgs []importer.Message) {
	for _, m := range msgs {
		fmt.Println(m)
	}
}

func cmdPack(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: abctool pack <scene.yaml> <out.abcpack>")
	}

	src, err := archive.LoadScene(args[0])
	if err != nil {
		return err
	}
	defer src.Close()

	if err := archive.WritePack(args[1], src); err != nil {
		return err
	}
	fmt.Printf("Packed %s -> %s\n", args[0], args[1])
	return nil
}
