package meshutil

import (
	"github.com/Faultbox/abcimport/pkg/math"
)

var fallbackNormal = math.Vec3{X: 0, Y: 0, Z: 1}

// faceNormals returns one area-weighted normal per triangle.
func faceNormals(s *Sample) []math.Vec3 {
	out := make([]math.Vec3, s.NumTriangles())
	for t := range out {
		p0 := s.Vertices[s.Indices[3*t]]
		p1 := s.Vertices[s.Indices[3*t+1]]
		p2 := s.Vertices[s.Indices[3*t+2]]
		out[t] = p1.Sub(p0).Cross(p2.Sub(p0))
	}
	return out
}

// vertexTriangles lists, per vertex, the triangles that use it.
func vertexTriangles(s *Sample) [][]int {
	out := make([][]int, len(s.Vertices))
	for c, idx := range s.Indices {
		t := c / 3
		if l := out[idx]; len(l) > 0 && l[len(l)-1] == t {
			continue
		}
		out[idx] = append(out[idx], t)
	}
	return out
}

func normalizeOr(v, fallback math.Vec3) math.Vec3 {
	if v.LengthSquared() < 1e-20 {
		return fallback
	}
	return v.Normalize()
}

// CalculateNormals sets hard normals: every corner takes its triangle's
// normal.
func CalculateNormals(s *Sample) {
	faces := faceNormals(s)
	s.Normals = make([]math.Vec3, len(s.Indices))
	for c := range s.Normals {
		s.Normals[c] = normalizeOr(faces[c/3], fallbackNormal)
	}
}

// CalculateSmoothNormals sets fully smooth normals: every corner takes the
// area-weighted average of all triangles sharing its vertex.
func CalculateSmoothNormals(s *Sample) {
	faces := faceNormals(s)
	accum := make([]math.Vec3, len(s.Vertices))
	for c, idx := range s.Indices {
		accum[idx] = accum[idx].Add(faces[c/3])
	}
	s.Normals = make([]math.Vec3, len(s.Indices))
	for c, idx := range s.Indices {
		s.Normals[c] = normalizeOr(accum[idx], normalizeOr(faces[c/3], fallbackNormal))
	}
}

// CalculateNormalsWithSmoothingGroups averages, per corner, the normals of
// the triangles around its vertex that share a smoothing-group bit with the
// corner's triangle. A zero mask makes a triangle hard.
func CalculateNormalsWithSmoothingGroups(s *Sample, groups []uint32) {
	faces := faceNormals(s)
	around := vertexTriangles(s)
	s.Normals = make([]math.Vec3, len(s.Indices))
	for c, idx := range s.Indices {
		t := c / 3
		var mask uint32
		if t < len(groups) {
			mask = groups[t]
		}
		sum := faces[t]
		for _, other := range around[idx] {
			if other == t || other >= len(groups) {
				continue
			}
			if groups[other]&mask != 0 {
				sum = sum.Add(faces[other])
			}
		}
		s.Normals[c] = normalizeOr(sum, normalizeOr(faces[t], fallbackNormal))
	}
}
