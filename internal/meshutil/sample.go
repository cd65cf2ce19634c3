// Package meshutil holds the triangulated mesh sample used throughout the
// import pipeline together with the geometry utilities that operate on it.
package meshutil

import (
	"errors"
	"fmt"
	gomath "math"

	"github.com/tiendc/go-deepcopy"

	"github.com/Faultbox/abcimport/pkg/math"
)

// ErrInvalidSample is returned when a sample's arrays disagree in length.
var ErrInvalidSample = errors.New("invalid mesh sample")

// Sample is one triangulated frame of a mesh. Vertices are shared between
// triangles; every other per-vertex attribute is stored per corner, three
// corners per triangle, aligned with Indices.
type Sample struct {
	Vertices []math.Vec3
	Indices  []uint32

	Normals  []math.Vec3
	TangentX []math.Vec3
	TangentY []math.Vec3
	// UVs holds one corner-aligned slice per UV set.
	UVs    [][]math.Vec2
	Colors [][4]float32

	// Per triangle.
	MaterialIndices []int32
	SmoothingGroups []uint32

	NumSmoothingGroups int
	NumMaterials       int
	Time               float32
}

// NumTriangles returns the triangle count.
func (s *Sample) NumTriangles() int {
	return len(s.Indices) / 3
}

// NumUVSets returns the number of UV sets.
func (s *Sample) NumUVSets() int {
	return len(s.UVs)
}

// HasNormals reports whether every corner has a normal.
func (s *Sample) HasNormals() bool {
	return len(s.Normals) > 0 && len(s.Normals) == len(s.Indices)
}

// Bounds returns the bounds of the sample's vertices.
func (s *Sample) Bounds() math.Box {
	return math.BoxFromPoints(s.Vertices)
}

// Clone returns a deep copy of s.
func (s *Sample) Clone() *Sample {
	out := &Sample{}
	if err := deepcopy.Copy(out, *s); err != nil {
		// Sample only holds plain data; a copy failure is a programming error.
		panic(fmt.Sprintf("meshutil: copying sample: %v", err))
	}
	return out
}

// Validate checks the sample's array lengths and index ranges.
func (s *Sample) Validate() error {
	corners := len(s.Indices)
	if corners%3 != 0 {
		return fmt.Errorf("%w: %d indices is not a multiple of 3", ErrInvalidSample, corners)
	}
	for i, idx := range s.Indices {
		if int(idx) >= len(s.Vertices) {
			return fmt.Errorf("%w: index %d references vertex %d of %d", ErrInvalidSample, i, idx, len(s.Vertices))
		}
	}
	perCorner := map[string]int{
		"normals":   len(s.Normals),
		"tangent x": len(s.TangentX),
		"tangent y": len(s.TangentY),
		"colors":    len(s.Colors),
	}
	for i, uv := range s.UVs {
		perCorner[fmt.Sprintf("uv set %d", i)] = len(uv)
	}
	for name, n := range perCorner {
		if n != 0 && n != corners {
			return fmt.Errorf("%w: %s has %d values, want %d", ErrInvalidSample, name, n, corners)
		}
	}
	triangles := corners / 3
	if n := len(s.MaterialIndices); n != 0 && n != triangles {
		return fmt.Errorf("%w: %d material indices for %d triangles", ErrInvalidSample, n, triangles)
	}
	if n := len(s.SmoothingGroups); n != 0 && n != triangles {
		return fmt.Errorf("%w: %d smoothing groups for %d triangles", ErrInvalidSample, n, triangles)
	}
	return nil
}

// VerticesEqual reports whether two vertex arrays are bit-for-bit identical.
func VerticesEqual(a, b []math.Vec3) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if vertexBits(a[i]) != vertexBits(b[i]) {
			return false
		}
	}
	return true
}

func vertexBits(v math.Vec3) [3]uint32 {
	return [3]uint32{gomath.Float32bits(v.X), gomath.Float32bits(v.Y), gomath.Float32bits(v.Z)}
}
