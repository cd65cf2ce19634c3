package meshutil

import (
	"fmt"

	"github.com/Faultbox/abcimport/pkg/archive"
	"github.com/Faultbox/abcimport/pkg/math"
)

var white = [4]float32{1, 1, 1, 1}

// FromPolyMesh fan-triangulates a raw polygon sample. Faces listed in face
// set i get material index i; other faces get 0. Polygons with fewer than
// three corners are dropped. A mesh without face sets counts one material.
// Missing UVs become a single zero UV set and missing colours become white.
// Smoothing groups are left empty.
func FromPolyMesh(raw *archive.PolyMeshSample, faceSets []archive.FaceSet) (*Sample, error) {
	if err := raw.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSample, err)
	}

	faceMaterial := make([]int32, len(raw.FaceCounts))
	for set, fs := range faceSets {
		for _, f := range fs.Faces {
			if f >= 0 && int(f) < len(faceMaterial) {
				faceMaterial[f] = int32(set)
			}
		}
	}

	var triangles int
	for _, c := range raw.FaceCounts {
		if c >= 3 {
			triangles += int(c) - 2
		}
	}
	corners := triangles * 3

	s := &Sample{
		Vertices:        append([]math.Vec3(nil), raw.Positions...),
		Indices:         make([]uint32, 0, corners),
		UVs:             [][]math.Vec2{make([]math.Vec2, 0, corners)},
		Colors:          make([][4]float32, 0, corners),
		MaterialIndices: make([]int32, 0, triangles),
		NumMaterials:    max(len(faceSets), 1),
	}
	if len(raw.Normals) > 0 {
		s.Normals = make([]math.Vec3, 0, corners)
	}

	corner := func(src int) {
		s.Indices = append(s.Indices, uint32(raw.FaceIndices[src]))
		if s.Normals != nil {
			s.Normals = append(s.Normals, raw.Normals[src].Normalize())
		}
		if len(raw.UVs) > 0 {
			s.UVs[0] = append(s.UVs[0], raw.UVs[src])
		} else {
			s.UVs[0] = append(s.UVs[0], math.Vec2{})
		}
		if len(raw.Colors) > 0 {
			s.Colors = append(s.Colors, raw.Colors[src])
		} else {
			s.Colors = append(s.Colors, white)
		}
	}

	base := 0
	for f, c := range raw.FaceCounts {
		n := int(c)
		for k := 1; k+1 < n; k++ {
			corner(base)
			corner(base + k)
			corner(base + k + 1)
			s.MaterialIndices = append(s.MaterialIndices, faceMaterial[f])
		}
		base += n
	}
	return s, nil
}
