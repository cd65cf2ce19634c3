package meshutil

import (
	"github.com/Faultbox/abcimport/pkg/math"
)

// Conversion maps archive space into output space.
type Conversion struct {
	// Scale is applied before Rotation.
	Scale math.Vec3 `yaml:"scale"`
	// Rotation holds degrees around X, Y and Z, applied in that order.
	Rotation math.Vec3 `yaml:"rotation"`
	FlipU    bool      `yaml:"flip_u"`
	FlipV    bool      `yaml:"flip_v"`
}

// DefaultConversion leaves geometry untouched.
func DefaultConversion() Conversion {
	return Conversion{Scale: math.Vec3{X: 1, Y: 1, Z: 1}}
}

// Matrix returns rotation * scale.
func (c Conversion) Matrix() math.Mat4 {
	return math.RotateEulerDegrees(c.Rotation).Mul(math.Scale(c.Scale.X, c.Scale.Y, c.Scale.Z))
}

// HasTransform reports whether the conversion changes positions.
func (c Conversion) HasTransform() bool {
	return c.Scale != (math.Vec3{X: 1, Y: 1, Z: 1}) || c.Rotation != (math.Vec3{})
}

// Mirrors reports whether the conversion flips handedness.
func (c Conversion) Mirrors() bool {
	return c.Scale.X*c.Scale.Y*c.Scale.Z < 0
}

// ApplyToMatrices left-multiplies every matrix by the conversion.
func (c Conversion) ApplyToMatrices(matrices []math.Mat4) {
	if !c.HasTransform() {
		return
	}
	m := c.Matrix()
	for i := range matrices {
		matrices[i] = m.Mul(matrices[i])
	}
}

// ApplyToBounds converts a bounding box.
func (c Conversion) ApplyToBounds(b math.Box) math.Box {
	if !c.HasTransform() {
		return b
	}
	return b.Transform(c.Matrix())
}

// ConvertFlags tune ApplyConversion.
type ConvertFlags uint8

const (
	// InvertWinding reverses every triangle.
	InvertWinding ConvertFlags = 1 << iota
	// SkipTransform leaves positions and frames alone, for samples that were
	// already placed by a converted matrix.
	SkipTransform
)

// ApplyConversion converts a sample in place. Winding is reversed when
// InvertWinding is set, and toggled again if the conversion mirrors geometry
// and positions are transformed.
func ApplyConversion(s *Sample, c Conversion, flags ConvertFlags) {
	invert := flags&InvertWinding != 0
	if flags&SkipTransform == 0 && c.HasTransform() {
		m := c.Matrix()
		for i, v := range s.Vertices {
			s.Vertices[i] = m.TransformPoint(v)
		}
		transformFrames(s, m)
		if c.Mirrors() {
			invert = !invert
		}
	}
	if invert {
		InvertWindingOrder(s)
	}
	if c.FlipU || c.FlipV {
		for _, set := range s.UVs {
			for i := range set {
				if c.FlipU {
					set[i].X = 1 - set[i].X
				}
				if c.FlipV {
					set[i].Y = 1 - set[i].Y
				}
			}
		}
	}
}

// PropagateMatrix bakes m into the sample's positions, normals and tangents.
func PropagateMatrix(s *Sample, m math.Mat4) {
	if m.IsIdentity() {
		return
	}
	for i, v := range s.Vertices {
		s.Vertices[i] = m.TransformPoint(v)
	}
	transformFrames(s, m)
}

func transformFrames(s *Sample, m math.Mat4) {
	normalMatrix := m.Inverse().Transpose()
	for i, n := range s.Normals {
		s.Normals[i] = normalMatrix.TransformDirection(n).Normalize()
	}
	for i, t := range s.TangentX {
		s.TangentX[i] = m.TransformDirection(t).Normalize()
	}
	for i, t := range s.TangentY {
		s.TangentY[i] = m.TransformDirection(t).Normalize()
	}
}

// InvertWindingOrder swaps the second and third corner of every triangle
// along with all of their corner attributes.
func InvertWindingOrder(s *Sample) {
	for t := 0; t < s.NumTriangles(); t++ {
		a, b := 3*t+1, 3*t+2
		s.Indices[a], s.Indices[b] = s.Indices[b], s.Indices[a]
		swapCorner(s.Normals, a, b)
		swapCorner(s.TangentX, a, b)
		swapCorner(s.TangentY, a, b)
		swapCorner(s.Colors, a, b)
		for _, set := range s.UVs {
			swapCorner(set, a, b)
		}
	}
}

func swapCorner[T any](values []T, a, b int) {
	if b < len(values) {
		values[a], values[b] = values[b], values[a]
	}
}
