package importer

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/abcimport/internal/meshutil"
)

// ImportType selects the output builder.
type ImportType uint8

// Import types.
const (
	ImportStaticMesh ImportType = iota
	ImportGeometryCache
	ImportSkeletal
)

var importTypeNames = []string{"static_mesh", "geometry_cache", "skeletal"}

// String returns the configuration name of the type.
func (t ImportType) String() string {
	if int(t) < len(importTypeNames) {
		return importTypeNames[t]
	}
	return fmt.Sprintf("ImportType(%d)", int(t))
}

// ParseImportType parses a type name. Case, '-' and '_' are ignored.
func ParseImportType(s string) (ImportType, error) {
	switch normalizeEnum(s) {
	case "staticmesh", "static", "mesh":
		return ImportStaticMesh, nil
	case "geometrycache", "cache", "geocache":
		return ImportGeometryCache, nil
	case "skeletal", "skeletalmesh":
		return ImportSkeletal, nil
	}
	return 0, fmt.Errorf("unknown import type %q", s)
}

// MarshalYAML implements yaml.Marshaler.
func (t ImportType) MarshalYAML() (any, error) { return t.String(), nil }

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *ImportType) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseImportType(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*t = v
	return nil
}

// SamplingType selects how the import frame window is stepped.
type SamplingType uint8

// Sampling types.
const (
	SamplePerFrame SamplingType = iota
	SamplePerTimeStep
	SamplePerXFrames
)

var samplingTypeNames = []string{"per_frame", "per_time_step", "per_x_frames"}

// String returns the configuration name of the type.
func (t SamplingType) String() string {
	if int(t) < len(samplingTypeNames) {
		return samplingTypeNames[t]
	}
	return fmt.Sprintf("SamplingType(%d)", int(t))
}

// ParseSamplingType parses a sampling type name.
func ParseSamplingType(s string) (SamplingType, error) {
	switch normalizeEnum(s) {
	case "perframe", "frame":
		return SamplePerFrame, nil
	case "pertimestep", "timestep":
		return SamplePerTimeStep, nil
	case "perxframes", "xframes":
		return SamplePerXFrames, nil
	}
	return 0, fmt.Errorf("unknown sampling type %q", s)
}

// MarshalYAML implements yaml.Marshaler.
func (t SamplingType) MarshalYAML() (any, error) { return t.String(), nil }

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *SamplingType) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseSamplingType(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*t = v
	return nil
}

// BaseCalculation selects how many SVD bases are kept.
type BaseCalculation uint8

// Base calculation policies.
const (
	BasesPercentage BaseCalculation = iota
	BasesFixed
)

// String returns the configuration name of the policy.
func (b BaseCalculation) String() string {
	switch b {
	case BasesPercentage:
		return "percentage"
	case BasesFixed:
		return "fixed"
	default:
		return fmt.Sprintf("BaseCalculation(%d)", int(b))
	}
}

// ParseBaseCalculation parses a policy name.
func ParseBaseCalculation(s string) (BaseCalculation, error) {
	switch normalizeEnum(s) {
	case "percentage", "percentagebased", "percent":
		return BasesPercentage, nil
	case "fixed", "fixednumber":
		return BasesFixed, nil
	}
	return 0, fmt.Errorf("unknown base calculation %q", s)
}

// MarshalYAML implements yaml.Marshaler.
func (b BaseCalculation) MarshalYAML() (any, error) { return b.String(), nil }

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *BaseCalculation) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParseBaseCalculation(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*b = v
	return nil
}

func normalizeEnum(s string) string {
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
}

// SamplingSettings define the frame window that is imported.
type SamplingSettings struct {
	Type       SamplingType `yaml:"type"`
	FrameStart int          `yaml:"frame_start"`
	// FrameEnd is exclusive.
	FrameEnd int `yaml:"frame_end"`
	// TimeSteps is the sampling interval in seconds for SamplePerTimeStep.
	TimeSteps float32 `yaml:"time_steps"`
	// FrameSteps is the frame stride for SamplePerXFrames.
	FrameSteps int `yaml:"frame_steps"`
	// SkipEmpty starts the window at the first frame with data.
	SkipEmpty bool `yaml:"skip_empty"`
}

// StaticMeshSettings control static mesh output.
type StaticMeshSettings struct {
	MergeMeshes                    bool `yaml:"merge_meshes"`
	PropagateMatrixTransformations bool `yaml:"propagate_matrix_transformations"`
}

// CompressionSettings control SVD compression for skeletal output.
type CompressionSettings struct {
	MergeMeshes         bool            `yaml:"merge_meshes"`
	BakeMatrixAnimation bool            `yaml:"bake_matrix_animation"`
	BaseCalculation     BaseCalculation `yaml:"base_calculation"`
	// PercentageOfTotalBases is 0-100.
	PercentageOfTotalBases float32 `yaml:"percentage_of_total_bases"`
	MaxNumberOfBases       int     `yaml:"max_number_of_bases"`
	// MinimumNumberOfVertexInfluencePercentage discards morph targets that
	// move no more than this percentage of vertices.
	MinimumNumberOfVertexInfluencePercentage float32 `yaml:"minimum_vertex_influence_percentage"`
}

// NormalSettings control normal and smoothing group generation.
type NormalSettings struct {
	ForceOneSmoothingGroupPerObject bool `yaml:"force_one_smoothing_group_per_object"`
	RecomputeNormals                bool `yaml:"recompute_normals"`
	// HardEdgeAngleThreshold is the cosine below which an edge is hard.
	HardEdgeAngleThreshold float32 `yaml:"hard_edge_angle_threshold"`
}

// MaterialSettings control how face sets map onto materials.
type MaterialSettings struct {
	FindMaterials   bool `yaml:"find_materials"`
	CreateMaterials bool `yaml:"create_materials"`
}

// Settings configure an import.
type Settings struct {
	ImportType  ImportType          `yaml:"import_type"`
	Sampling    SamplingSettings    `yaml:"sampling"`
	StaticMesh  StaticMeshSettings  `yaml:"static_mesh"`
	Compression CompressionSettings `yaml:"compression"`
	Normals     NormalSettings      `yaml:"normals"`
	Materials   MaterialSettings    `yaml:"materials"`
	Conversion  meshutil.Conversion `yaml:"conversion"`
	// NumThreads bounds every parallel phase; 0 uses one worker per CPU.
	NumThreads int `yaml:"num_threads"`
}

// DefaultSettings returns the default import settings.
func DefaultSettings() Settings {
	return Settings{
		ImportType: ImportStaticMesh,
		Sampling: SamplingSettings{
			Type:       SamplePerFrame,
			TimeSteps:  1.0 / 30,
			FrameSteps: 1,
		},
		StaticMesh: StaticMeshSettings{
			MergeMeshes:                    true,
			PropagateMatrixTransformations: true,
		},
		Compression: CompressionSettings{
			BakeMatrixAnimation:    true,
			BaseCalculation:        BasesPercentage,
			PercentageOfTotalBases: 100,
		},
		Normals: NormalSettings{
			HardEdgeAngleThreshold: meshutil.DefaultHardEdgeThreshold,
		},
		Conversion: meshutil.DefaultConversion(),
	}
}

// BakePolicy says when cached world matrices are baked into vertices.
type BakePolicy uint8

// Bake policies.
const (
	BakeNone BakePolicy = iota
	// BakeForStaticMesh bakes the first frame of merged static meshes.
	BakeForStaticMesh
	// BakeForSkeletal bakes every frame before compression.
	BakeForSkeletal
	// AlwaysBakeForCache bakes every frame of flipbook tracks.
	AlwaysBakeForCache
)

// String returns the policy name.
func (p BakePolicy) String() string {
	switch p {
	case BakeForStaticMesh:
		return "static_mesh"
	case BakeForSkeletal:
		return "skeletal"
	case AlwaysBakeForCache:
		return "geometry_cache"
	default:
		return "none"
	}
}

// BakePolicy derives the bake policy from the import type and options.
func (s Settings) BakePolicy() BakePolicy {
	switch s.ImportType {
	case ImportStaticMesh:
		if s.StaticMesh.MergeMeshes && s.StaticMesh.PropagateMatrixTransformations {
			return BakeForStaticMesh
		}
	case ImportSkeletal:
		if s.Compression.BakeMatrixAnimation {
			return BakeForSkeletal
		}
	case ImportGeometryCache:
		return AlwaysBakeForCache
	}
	return BakeNone
}

// bakes reports whether a track with the given constancy gets its world
// matrices baked under p.
func (p BakePolicy) bakes(constantMesh bool) bool {
	switch p {
	case BakeForStaticMesh, BakeForSkeletal:
		return true
	case AlwaysBakeForCache:
		// Constant meshes become transform tracks that keep their matrices.
		return !constantMesh
	}
	return false
}

func (s Settings) hardEdgeThreshold() float32 {
	if s.Normals.HardEdgeAngleThreshold <= 0 {
		return meshutil.DefaultHardEdgeThreshold
	}
	return s.Normals.HardEdgeAngleThreshold
}
