package meshutil

import (
	"github.com/Faultbox/abcimport/pkg/math"
)

// DefaultHardEdgeThreshold is the cosine below which two triangles meeting
// at an edge are split into different smoothing groups.
const DefaultHardEdgeThreshold = 0.9

type edgeKey struct{ a, b uint32 }

func makeEdge(a, b uint32) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// cornerNormal returns the normal of triangle t at vertex v.
func cornerNormal(s *Sample, normals []math.Vec3, t int, v uint32) math.Vec3 {
	for k := 0; k < 3; k++ {
		if s.Indices[3*t+k] == v {
			return normals[3*t+k]
		}
	}
	return math.Vec3{}
}

// GenerateSmoothingGroups partitions triangles into smoothing groups. Two
// triangles sharing an edge are smoothed together when, at both edge
// vertices, their corner normals agree within threshold (a cosine). The
// sample's own normals are used if present, hard normals otherwise. The
// resulting regions are coloured so that regions meeting at a vertex never
// share a bit, and each triangle's mask is its region's bit.
func GenerateSmoothingGroups(s *Sample, threshold float32) {
	triangles := s.NumTriangles()
	normals := s.Normals
	if !s.HasNormals() {
		tmp := &Sample{Vertices: s.Vertices, Indices: s.Indices}
		CalculateNormals(tmp)
		normals = tmp.Normals
	}

	parent := make([]int, triangles)
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	edges := make(map[edgeKey][]int)
	for t := 0; t < triangles; t++ {
		for k := 0; k < 3; k++ {
			e := makeEdge(s.Indices[3*t+k], s.Indices[3*t+(k+1)%3])
			edges[e] = append(edges[e], t)
		}
	}
	for e, tris := range edges {
		for i := 1; i < len(tris); i++ {
			a, b := tris[0], tris[i]
			if cornerNormal(s, normals, a, e.a).Dot(cornerNormal(s, normals, b, e.a)) < threshold ||
				cornerNormal(s, normals, a, e.b).Dot(cornerNormal(s, normals, b, e.b)) < threshold {
				continue
			}
			ra, rb := find(a), find(b)
			if ra != rb {
				parent[rb] = ra
			}
		}
	}

	region := make([]int, triangles)
	regionOf := make(map[int]int)
	for t := 0; t < triangles; t++ {
		root := find(t)
		id, ok := regionOf[root]
		if !ok {
			id = len(regionOf)
			regionOf[root] = id
		}
		region[t] = id
	}

	neighbours := make([]map[int]struct{}, len(regionOf))
	for i := range neighbours {
		neighbours[i] = make(map[int]struct{})
	}
	for _, tris := range vertexTriangles(s) {
		for _, a := range tris {
			for _, b := range tris {
				if region[a] != region[b] {
					neighbours[region[a]][region[b]] = struct{}{}
				}
			}
		}
	}

	colour := make([]int, len(regionOf))
	for i := range colour {
		colour[i] = -1
	}
	used := make(map[int]struct{})
	for r := range colour {
		var taken uint32
		for n := range neighbours[r] {
			if colour[n] >= 0 {
				taken |= 1 << colour[n]
			}
		}
		c := r % 32
		for bit := 0; bit < 32; bit++ {
			if taken&(1<<bit) == 0 {
				c = bit
				break
			}
		}
		colour[r] = c
		used[c] = struct{}{}
	}

	s.SmoothingGroups = make([]uint32, triangles)
	for t := range s.SmoothingGroups {
		s.SmoothingGroups[t] = 1 << colour[region[t]]
	}
	s.NumSmoothingGroups = len(used)
}

// ResetSmoothingGroups puts every triangle in no smoothing group and counts
// the sample as one group.
func ResetSmoothingGroups(s *Sample) {
	s.SmoothingGroups = make([]uint32, s.NumTriangles())
	s.NumSmoothingGroups = 1
}
