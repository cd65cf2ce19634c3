package archive

import (
	"fmt"

	"github.com/Faultbox/abcimport/pkg/math"
)

// XformSample is one local transform of an Xform object.
type XformSample struct {
	Matrix math.Mat4
}

// PolyMeshSample is one raw polygon mesh sample. Faces may have any number
// of corners. Normals, UVs and Colors are optional and, when present, hold
// one value per face-vertex.
type PolyMeshSample struct {
	Positions   []math.Vec3
	FaceCounts  []int32
	FaceIndices []int32
	Normals     []math.Vec3
	UVs         []math.Vec2
	Colors      [][4]float32
}

// Validate checks the sample's index and attribute counts.
func (s *PolyMeshSample) Validate() error {
	var total int
	for i, c := range s.FaceCounts {
		if c < 0 {
			return fmt.Errorf("face %d has negative corner count %d", i, c)
		}
		total += int(c)
	}
	if total != len(s.FaceIndices) {
		return fmt.Errorf("face counts sum to %d, have %d face indices", total, len(s.FaceIndices))
	}
	for i, idx := range s.FaceIndices {
		if idx < 0 || int(idx) >= len(s.Positions) {
			return fmt.Errorf("face index %d references vertex %d of %d", i, idx, len(s.Positions))
		}
	}
	check := func(name string, n int) error {
		if n != 0 && n != total {
			return fmt.Errorf("%s has %d values, want %d face-vertices", name, n, total)
		}
		return nil
	}
	if err := check("normals", len(s.Normals)); err != nil {
		return err
	}
	if err := check("uvs", len(s.UVs)); err != nil {
		return err
	}
	return check("colors", len(s.Colors))
}

func validateFaceSets(obj *Object, numFaces int) error {
	for _, fs := range obj.FaceSets {
		for _, f := range fs.Faces {
			if f < 0 || int(f) >= numFaces {
				return fmt.Errorf("face set %q references face %d of %d", fs.Name, f, numFaces)
			}
		}
	}
	return nil
}
