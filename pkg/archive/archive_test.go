package archive

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/abcimport/pkg/math"
)

const testScene = `
time_per_cycle: 0.5
root:
  name: ABC
  children:
    - name: arm
      type: xform
      xforms:
        - translate: [1, 0, 0]
        - translate: [2, 0, 0]
        - translate: [3, 0, 0]
      children:
        - name: quad
          type: polymesh
          start: 0.5
          face_sets:
            - name: Red
              faces: [0]
          meshes:
            - positions: [[0, 0, 0], [1, 0, 0], [1, 1, 0], [0, 1, 0]]
              face_counts: [4]
              face_indices: [0, 1, 2, 3]
            - positions: [[0, 0, 1], [1, 0, 1], [1, 1, 1], [0, 1, 1]]
              face_counts: [4]
              face_indices: [0, 1, 2, 3]
              uvs: [[0, 0], [1, 0], [1, 1], [0, 1]]
    - name: locator
      type: xform
      constant: true
      xforms:
        - matrix: [1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 5, 6, 7, 1]
`

func TestParseScene(t *testing.T) {
	r, err := ParseScene([]byte(testScene))
	if err != nil {
		t.Fatalf("ParseScene() error = %v", err)
	}
	defer r.Close()

	top := r.Top()
	if top == nil || top.Name != "ABC" || len(top.Children) != 2 {
		t.Fatalf("unexpected top object: %+v", top)
	}

	arm := top.Children[0]
	if arm.Kind != KindXform || arm.NumSamples != 3 || arm.Constant {
		t.Errorf("arm = kind %v samples %d constant %v", arm.Kind, arm.NumSamples, arm.Constant)
	}
	if arm.Sampling.PerCycle != 0.5 {
		t.Errorf("arm should inherit scene time per cycle, got %v", arm.Sampling.PerCycle)
	}

	quad := arm.Children[0]
	if quad.Path() != "/arm/quad" {
		t.Errorf("Path() = %q", quad.Path())
	}
	if got := quad.FaceSetNames(); len(got) != 1 || got[0] != "Red" {
		t.Errorf("FaceSetNames() = %v", got)
	}
	if !quad.SelfBounds.Valid || quad.SelfBounds.Max != (math.Vec3{X: 1, Y: 1, Z: 1}) {
		t.Errorf("self bounds should cover all samples, got %+v", quad.SelfBounds)
	}

	locator := top.Children[1]
	if !locator.Constant {
		t.Error("locator should be constant")
	}
	x, err := r.ReadXform(locator, 0)
	if err != nil {
		t.Fatalf("ReadXform() error = %v", err)
	}
	if x.Matrix[12] != 5 || x.Matrix[13] != 6 || x.Matrix[14] != 7 {
		t.Errorf("matrix translation = %v", x.Matrix[12:15])
	}

	if _, err := r.ReadXform(quad, 0); !errors.Is(err, ErrUnknownObject) {
		t.Errorf("ReadXform on a mesh: err = %v, want ErrUnknownObject", err)
	}
	if _, err := r.ReadPolyMesh(quad, 5); !errors.Is(err, ErrSampleRange) {
		t.Errorf("ReadPolyMesh out of range: err = %v, want ErrSampleRange", err)
	}
}

func TestParseSceneInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not yaml", "root: [unterminated"},
		{"index out of range", `
root:
  name: ABC
  children:
    - name: tri
      type: polymesh
      meshes:
        - positions: [[0, 0, 0], [1, 0, 0]]
          face_counts: [3]
          face_indices: [0, 1, 2]
`},
		{"count mismatch", `
root:
  name: ABC
  children:
    - name: tri
      type: polymesh
      meshes:
        - positions: [[0, 0, 0], [1, 0, 0], [0, 1, 0]]
          face_counts: [4]
          face_indices: [0, 1, 2]
`},
		{"face set out of range", `
root:
  name: ABC
  children:
    - name: tri
      type: polymesh
      face_sets: [{name: A, faces: [3]}]
      meshes:
        - positions: [[0, 0, 0], [1, 0, 0], [0, 1, 0]]
          face_counts: [3]
          face_indices: [0, 1, 2]
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseScene([]byte(tt.data)); !errors.Is(err, ErrInvalidArchive) {
				t.Errorf("ParseScene() error = %v, want ErrInvalidArchive", err)
			}
		})
	}
}

func TestSceneWithoutRoot(t *testing.T) {
	r, err := ParseScene([]byte("time_per_cycle: 1\n"))
	if err != nil {
		t.Fatalf("ParseScene() error = %v", err)
	}
	if r.Top() != nil {
		t.Error("Top() should be nil without a root")
	}
}

func TestSampleIndex(t *testing.T) {
	obj := &Object{NumSamples: 4, Sampling: TimeSampling{Start: 1, PerCycle: 0.5}}

	tests := []struct {
		time float32
		want int
	}{
		{0, 0},
		{1, 0},
		{1.49, 0},
		{1.5, 1},
		{2.5, 3},
		{10, 3},
	}

	for _, tt := range tests {
		if got := obj.SampleIndex(tt.time); got != tt.want {
			t.Errorf("SampleIndex(%v) = %d, want %d", tt.time, got, tt.want)
		}
	}

	obj.Constant = true
	if got := obj.SampleIndex(2.5); got != 0 {
		t.Errorf("constant SampleIndex = %d, want 0", got)
	}
}

func TestTimeRangeAndStartFrame(t *testing.T) {
	obj := &Object{NumSamples: 3, Sampling: TimeSampling{Start: 1, PerCycle: 0.5}}
	lo, hi := obj.TimeRange()
	if lo != 1 || hi != 2 {
		t.Errorf("TimeRange() = %v, %v; want 1, 2", lo, hi)
	}
	start, frame := obj.StartFrame()
	if start != 1 || frame != 2 {
		t.Errorf("StartFrame() = %v, %d; want 1, 2", start, frame)
	}
}

func TestPackRoundTrip(t *testing.T) {
	scene, err := ParseScene([]byte(testScene))
	if err != nil {
		t.Fatalf("ParseScene() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "scene.abcpack")
	if err := WritePack(path, scene); err != nil {
		t.Fatalf("WritePack() error = %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	if _, ok := r.(*PackReader); !ok {
		t.Fatalf("Open() returned %T, want *PackReader", r)
	}
	if r.ConcurrentReads() {
		t.Error("packed archives should not allow concurrent reads")
	}
	if r.Info().TimePerCycle != 0.5 {
		t.Errorf("TimePerCycle = %v", r.Info().TimePerCycle)
	}

	quad := r.Top().Children[0].Children[0]
	if quad.Name != "quad" || quad.Kind != KindPolyMesh || quad.NumSamples != 2 {
		t.Fatalf("quad = %+v", quad)
	}
	if quad.Sampling.Start != 0.5 || len(quad.FaceSets) != 1 || quad.FaceSets[0].Faces[0] != 0 {
		t.Errorf("quad metadata lost: %+v", quad)
	}

	mesh, err := r.ReadPolyMesh(quad, 1)
	if err != nil {
		t.Fatalf("ReadPolyMesh() error = %v", err)
	}
	want, _ := scene.ReadPolyMesh(scene.Top().Children[0].Children[0], 1)
	if len(mesh.Positions) != 4 || mesh.Positions[2] != want.Positions[2] {
		t.Errorf("positions = %v, want %v", mesh.Positions, want.Positions)
	}
	if len(mesh.UVs) != 4 || mesh.UVs[1] != want.UVs[1] {
		t.Errorf("uvs = %v, want %v", mesh.UVs, want.UVs)
	}
	if len(mesh.Normals) != 0 {
		t.Errorf("normals should stay empty, got %d", len(mesh.Normals))
	}

	arm := r.Top().Children[0]
	x, err := r.ReadXform(arm, 2)
	if err != nil {
		t.Fatalf("ReadXform() error = %v", err)
	}
	if x.Matrix[12] != 3 {
		t.Errorf("arm sample 2 translation = %v, want 3", x.Matrix[12])
	}
}

func TestOpenScene(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	if err := os.WriteFile(path, []byte(testScene), 0644); err != nil {
		t.Fatal(err)
	}
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !r.ConcurrentReads() {
		t.Error("scene archives should allow concurrent reads")
	}
}

func TestOpenPackTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.abcpack")
	if err := os.WriteFile(path, []byte(packMagic+"\x00\x01"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); !errors.Is(err, ErrInvalidArchive) {
		t.Errorf("Open() error = %v, want ErrInvalidArchive", err)
	}
}
