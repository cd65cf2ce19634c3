package asset

import (
	"github.com/Faultbox/abcimport/internal/meshutil"
	"github.com/Faultbox/abcimport/pkg/math"
)

// Material is a surface material referenced by mesh sections.
type Material struct {
	Name string
	// Default marks the fallback material used when no match exists.
	Default bool
}

func (m *Material) AssetName() string { return m.Name }
func (m *Material) AssetKind() Kind   { return KindMaterial }

// DefaultMaterial is used for sections without a resolved material.
var DefaultMaterial = &Material{Name: "DefaultMaterial", Default: true}

// RawMesh is a single-LOD mesh: shared positions plus per-wedge (corner)
// attributes and per-face material and smoothing data.
type RawMesh struct {
	VertexPositions []math.Vec3
	WedgeIndices    []uint32
	WedgeTangentX   []math.Vec3
	WedgeTangentY   []math.Vec3
	WedgeTangentZ   []math.Vec3
	WedgeTexCoords  [][]math.Vec2
	WedgeColors     [][4]uint8

	FaceMaterialIndices []int32
	FaceSmoothingMasks  []uint32
}

// NumFaces returns the triangle count.
func (m *RawMesh) NumFaces() int {
	return len(m.WedgeIndices) / 3
}

// RawMeshFromSample flattens a mesh sample. Missing colors become opaque
// white.
func RawMeshFromSample(s *meshutil.Sample) *RawMesh {
	m := &RawMesh{
		VertexPositions:     append([]math.Vec3(nil), s.Vertices...),
		WedgeIndices:        append([]uint32(nil), s.Indices...),
		WedgeTangentX:       append([]math.Vec3(nil), s.TangentX...),
		WedgeTangentY:       append([]math.Vec3(nil), s.TangentY...),
		WedgeTangentZ:       append([]math.Vec3(nil), s.Normals...),
		FaceMaterialIndices: append([]int32(nil), s.MaterialIndices...),
		FaceSmoothingMasks:  append([]uint32(nil), s.SmoothingGroups...),
	}
	for _, set := range s.UVs {
		m.WedgeTexCoords = append(m.WedgeTexCoords, append([]math.Vec2(nil), set...))
	}
	m.WedgeColors = make([][4]uint8, len(s.Indices))
	for i := range m.WedgeColors {
		if i < len(s.Colors) {
			m.WedgeColors[i] = ToColor(s.Colors[i])
		} else {
			m.WedgeColors[i] = [4]uint8{255, 255, 255, 255}
		}
	}
	return m
}

// ToColor quantizes a linear color to 8 bits per channel without gamma.
func ToColor(c [4]float32) [4]uint8 {
	var out [4]uint8
	for i, v := range c {
		out[i] = uint8(max(0, min(255, int(v*255.999))))
	}
	return out
}

// StaticMesh is a mesh without a time dimension.
type StaticMesh struct {
	Name      string
	Mesh      *RawMesh
	Materials []*Material
	Bounds    math.Box
}

func (m *StaticMesh) AssetName() string { return m.Name }
func (m *StaticMesh) AssetKind() Kind   { return KindStaticMesh }

// DynamicVertex is one corner of a geometry cache mesh.
type DynamicVertex struct {
	Position math.Vec3
	TangentX math.Vec3
	TangentY math.Vec3
	Normal   math.Vec3
	UV       math.Vec2
	Color    [4]uint8
}

// Batch is a contiguous index range drawn with one material.
type Batch struct {
	StartIndex    int
	NumTriangles  int
	MaterialIndex int
}

// MeshData is one renderable geometry cache mesh.
type MeshData struct {
	Vertices []DynamicVertex
	Indices  []uint32
	Batches  []Batch
	Bounds   math.Box
}

// TrackKind distinguishes the two geometry cache track types.
type TrackKind uint8

const (
	// TrackTransform holds one mesh moved by a matrix sequence.
	TrackTransform TrackKind = iota
	// TrackFlipbook holds one mesh per sample.
	TrackFlipbook
)

// String returns the track kind name.
func (k TrackKind) String() string {
	if k == TrackFlipbook {
		return "flipbook"
	}
	return "transform"
}

// GeometryCacheTrack is one animated object of a geometry cache.
type GeometryCacheTrack struct {
	Name string
	Kind TrackKind
	// Meshes holds a single mesh for transform tracks, one per sample for
	// flipbook tracks. MeshTimes is aligned with it.
	Meshes    []MeshData
	MeshTimes []float32

	Matrices    []math.Mat4
	MatrixTimes []float32

	NumMaterials int
}

// GeometryCache is a set of tracks sharing one material list.
type GeometryCache struct {
	Name      string
	Tracks    []*GeometryCacheTrack
	Materials []*Material
}

func (c *GeometryCache) AssetName() string { return c.Name }
func (c *GeometryCache) AssetKind() Kind   { return KindGeometryCache }

// Duration returns the time of the last sample across all tracks.
func (c *GeometryCache) Duration() float32 {
	var d float32
	for _, t := range c.Tracks {
		for _, ts := range t.MeshTimes {
			d = max(d, ts)
		}
		for _, ts := range t.MatrixTimes {
			d = max(d, ts)
		}
	}
	return d
}

// Bone is a joint of a skeleton.
type Bone struct {
	Name       string
	ExportName string
	// Parent is the index of the parent bone, -1 for the root.
	Parent    int
	Transform math.Mat4
}

// Skeleton is a bone hierarchy plus the names of curves it drives.
type Skeleton struct {
	Name       string
	Bones      []Bone
	CurveNames []string
}

func (s *Skeleton) AssetName() string { return s.Name }
func (s *Skeleton) AssetKind() Kind   { return KindSkeleton }

// AddCurveName registers a curve name once.
func (s *Skeleton) AddCurveName(name string) {
	for _, n := range s.CurveNames {
		if n == name {
			return
		}
	}
	s.CurveNames = append(s.CurveNames, name)
}

// Influence binds a vertex to a bone.
type Influence struct {
	Vertex int
	Bone   int
	Weight uint8
}

// MorphDelta displaces one base mesh vertex.
type MorphDelta struct {
	SourceIndex   int
	PositionDelta math.Vec3
	NormalDelta   math.Vec3
}

// MorphTarget is a named set of vertex displacements.
type MorphTarget struct {
	Name   string
	Deltas []MorphDelta
}

// SkeletalMesh is a skinned mesh with morph targets.
type SkeletalMesh struct {
	Name         string
	Mesh         *RawMesh
	Influences   []Influence
	MorphTargets []*MorphTarget
	Materials    []*Material
	Bounds       math.Box
	NumTexCoords int
	Skeleton     *Skeleton
}

func (m *SkeletalMesh) AssetName() string { return m.Name }
func (m *SkeletalMesh) AssetKind() Kind   { return KindSkeletalMesh }

// MorphTarget returns the target with the given name.
func (m *SkeletalMesh) MorphTarget(name string) *MorphTarget {
	for _, t := range m.MorphTargets {
		if t.Name == name {
			return t
		}
	}
	return nil
}
