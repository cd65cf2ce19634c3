package meshutil

import (
	gomath "math"

	"github.com/Faultbox/abcimport/pkg/math"
)

// tangentKey groups corners that share a vertex and a normal so tangents
// stay continuous across smooth regions and split across hard edges.
type tangentKey struct {
	vertex uint32
	normal [3]int32
}

func quantize(n math.Vec3) [3]int32 {
	const q = 1 << 12
	return [3]int32{
		int32(gomath.Round(float64(n.X * q))),
		int32(gomath.Round(float64(n.Y * q))),
		int32(gomath.Round(float64(n.Z * q))),
	}
}

// ComputeTangents fills TangentX and TangentY from UV set 0 and the corner
// normals, which must already be present. Corners without usable UV
// gradients get an arbitrary basis perpendicular to their normal.
func ComputeTangents(s *Sample) {
	corners := len(s.Indices)
	s.TangentX = make([]math.Vec3, corners)
	s.TangentY = make([]math.Vec3, corners)
	if !s.HasNormals() {
		CalculateSmoothNormals(s)
	}

	var uvs []math.Vec2
	if len(s.UVs) > 0 {
		uvs = s.UVs[0]
	}

	type accum struct{ t, b math.Vec3 }
	sums := make(map[tangentKey]*accum)
	keys := make([]tangentKey, corners)
	for c, idx := range s.Indices {
		keys[c] = tangentKey{vertex: idx, normal: quantize(s.Normals[c])}
		if sums[keys[c]] == nil {
			sums[keys[c]] = &accum{}
		}
	}

	if len(uvs) == corners {
		for t := 0; t < s.NumTriangles(); t++ {
			c0, c1, c2 := 3*t, 3*t+1, 3*t+2
			p0 := s.Vertices[s.Indices[c0]]
			e1 := s.Vertices[s.Indices[c1]].Sub(p0)
			e2 := s.Vertices[s.Indices[c2]].Sub(p0)
			d1 := uvs[c1].Sub(uvs[c0])
			d2 := uvs[c2].Sub(uvs[c0])

			det := d1.X*d2.Y - d1.Y*d2.X
			if det == 0 {
				continue
			}
			inv := 1 / det
			tan := e1.Scale(d2.Y).Sub(e2.Scale(d1.Y)).Scale(inv)
			bit := e2.Scale(d1.X).Sub(e1.Scale(d2.X)).Scale(inv)
			for _, c := range []int{c0, c1, c2} {
				a := sums[keys[c]]
				a.t = a.t.Add(tan)
				a.b = a.b.Add(bit)
			}
		}
	}

	for c := range s.Indices {
		n := s.Normals[c]
		a := sums[keys[c]]
		// Gram-Schmidt: T' = normalize(T - N * dot(N, T))
		t := a.t.Sub(n.Scale(n.Dot(a.t)))
		if t.LengthSquared() < 1e-12 {
			t = perpendicular(n)
		} else {
			t = t.Normalize()
		}
		b := n.Cross(t)
		if b.Dot(a.b) < 0 {
			b = b.Neg()
		}
		s.TangentX[c] = t
		s.TangentY[c] = b
	}
}

func perpendicular(n math.Vec3) math.Vec3 {
	axis := math.Vec3{X: 1}
	if abs32(n.X) > 0.9 {
		axis = math.Vec3{Y: 1}
	}
	return axis.Sub(n.Scale(n.Dot(axis))).Normalize()
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
