package export

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/abcimport/internal/asset"
)

// Manifest lists the assets produced by an import.
type Manifest struct {
	Generator string          `yaml:"generator"`
	Source    string          `yaml:"source,omitempty"`
	Assets    []ManifestEntry `yaml:"assets"`
}

// ManifestEntry describes one registered asset.
type ManifestEntry struct {
	Name      string   `yaml:"name"`
	Kind      string   `yaml:"kind"`
	File      string   `yaml:"file,omitempty"`
	Materials []string `yaml:"materials,omitempty"`

	Vertices     int     `yaml:"vertices,omitempty"`
	Triangles    int     `yaml:"triangles,omitempty"`
	Tracks       int     `yaml:"tracks,omitempty"`
	MorphTargets int     `yaml:"morph_targets,omitempty"`
	Bones        int     `yaml:"bones,omitempty"`
	Curves       int     `yaml:"curves,omitempty"`
	Duration     float32 `yaml:"duration,omitempty"`
}

// NewManifest describes every asset of reg in creation order. files maps
// asset names to the paths they were written to and may be nil.
func NewManifest(source string, reg *asset.Registry, files map[string]string) *Manifest {
	m := &Manifest{Generator: Generator, Source: source}
	for _, a := range reg.List() {
		e := ManifestEntry{
			Name: a.AssetName(),
			Kind: a.AssetKind().String(),
			File: files[a.AssetName()],
		}
		switch v := a.(type) {
		case *asset.StaticMesh:
			e.Vertices = len(v.Mesh.VertexPositions)
			e.Triangles = v.Mesh.NumFaces()
			e.Materials = materialNames(v.Materials)
		case *asset.GeometryCache:
			e.Tracks = len(v.Tracks)
			e.Duration = v.Duration()
			e.Materials = materialNames(v.Materials)
		case *asset.SkeletalMesh:
			e.Vertices = len(v.Mesh.VertexPositions)
			e.Triangles = v.Mesh.NumFaces()
			e.MorphTargets = len(v.MorphTargets)
			e.Materials = materialNames(v.Materials)
		case *asset.Skeleton:
			e.Bones = len(v.Bones)
			e.Curves = len(v.CurveNames)
		case *asset.AnimSequence:
			e.Curves = len(v.Curves)
			e.Duration = v.Length
		}
		m.Assets = append(m.Assets, e)
	}
	return m
}

func materialNames(materials []*asset.Material) []string {
	names := make([]string, len(materials))
	for i, mat := range materials {
		names[i] = mat.Name
	}
	return names
}

// WriteManifest writes the manifest of reg to path as YAML.
func WriteManifest(path, source string, reg *asset.Registry, files map[string]string) error {
	data, err := yaml.Marshal(NewManifest(source, reg, files))
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}
