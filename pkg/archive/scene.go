package archive

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/abcimport/pkg/math"
)

// Scene is the YAML form of an archive.
type Scene struct {
	TimePerCycle float32      `yaml:"time_per_cycle"`
	Bounds       *SceneBox    `yaml:"bounds,omitempty"`
	Root         *SceneObject `yaml:"root"`
}

// SceneBox is an axis-aligned box.
type SceneBox struct {
	Min [3]float32 `yaml:"min"`
	Max [3]float32 `yaml:"max"`
}

// SceneObject is one object of the scene tree.
type SceneObject struct {
	Name string `yaml:"name"`
	Type string `yaml:"type,omitempty"`
	// Start is the time of the first sample; TimePerCycle defaults to the
	// scene's.
	Start        float32   `yaml:"start,omitempty"`
	TimePerCycle float32   `yaml:"time_per_cycle,omitempty"`
	Constant     bool      `yaml:"constant,omitempty"`
	SelfBounds   *SceneBox `yaml:"self_bounds,omitempty"`
	ChildBounds  *SceneBox `yaml:"child_bounds,omitempty"`

	Xforms   []SceneXform   `yaml:"xforms,omitempty"`
	Meshes   []SceneMesh    `yaml:"meshes,omitempty"`
	FaceSets []SceneFaceSet `yaml:"face_sets,omitempty"`

	Children []*SceneObject `yaml:"children,omitempty"`
}

// SceneXform is a transform sample given either as a column-major matrix or
// as translate, rotate (quaternion x y z w) and scale.
type SceneXform struct {
	Matrix    []float32   `yaml:"matrix,omitempty,flow"`
	Translate *[3]float32 `yaml:"translate,omitempty,flow"`
	Rotate    *[4]float32 `yaml:"rotate,omitempty,flow"`
	Scale     *[3]float32 `yaml:"scale,omitempty,flow"`
}

// SceneMesh is a polygon mesh sample.
type SceneMesh struct {
	Positions   [][3]float32 `yaml:"positions,flow"`
	FaceCounts  []int32      `yaml:"face_counts,flow"`
	FaceIndices []int32      `yaml:"face_indices,flow"`
	Normals     [][3]float32 `yaml:"normals,omitempty,flow"`
	UVs         [][2]float32 `yaml:"uvs,omitempty,flow"`
	Colors      [][4]float32 `yaml:"colors,omitempty,flow"`
}

// SceneFaceSet lists the faces belonging to a named face set.
type SceneFaceSet struct {
	Name  string  `yaml:"name"`
	Faces []int32 `yaml:"faces,flow"`
}

// SceneReader serves an in-memory scene. It is safe for concurrent reads.
type SceneReader struct {
	top    *Object
	info   Info
	xforms map[int][]XformSample
	meshes map[int][]*PolyMeshSample
	nextID int
}

// LoadScene reads a YAML scene archive from path.
func LoadScene(path string) (*SceneReader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene: %w", err)
	}
	return ParseScene(data)
}

// ParseScene decodes a YAML scene archive.
func ParseScene(data []byte) (*SceneReader, error) {
	var scene Scene
	if err := yaml.Unmarshal(data, &scene); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	return NewSceneReader(&scene)
}

// NewSceneReader validates scene and builds a reader over it.
func NewSceneReader(scene *Scene) (*SceneReader, error) {
	r := &SceneReader{
		info:   Info{TimePerCycle: scene.TimePerCycle, Bounds: sceneBox(scene.Bounds)},
		xforms: make(map[int][]XformSample),
		meshes: make(map[int][]*PolyMeshSample),
	}
	if scene.Root == nil {
		return r, nil
	}
	top, err := r.build(scene.Root, nil, scene.TimePerCycle)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	r.top = top
	return r, nil
}

func (r *SceneReader) build(so *SceneObject, parent *Object, timePerCycle float32) (*Object, error) {
	obj := &Object{
		Name:        so.Name,
		Kind:        parseKind(so.Type),
		Parent:      parent,
		Sampling:    TimeSampling{Start: so.Start, PerCycle: so.TimePerCycle},
		SelfBounds:  sceneBox(so.SelfBounds),
		ChildBounds: sceneBox(so.ChildBounds),
		id:          r.nextID,
	}
	r.nextID++
	if obj.Sampling.PerCycle == 0 {
		obj.Sampling.PerCycle = timePerCycle
	}

	switch obj.Kind {
	case KindXform:
		samples := make([]XformSample, len(so.Xforms))
		for i, x := range so.Xforms {
			m, err := x.matrix()
			if err != nil {
				return nil, fmt.Errorf("%s xform %d: %w", obj.Path(), i, err)
			}
			samples[i] = XformSample{Matrix: m}
		}
		if len(samples) == 0 {
			samples = []XformSample{{Matrix: math.Identity()}}
		}
		r.xforms[obj.id] = samples
		obj.NumSamples = len(samples)
	case KindPolyMesh:
		if len(so.Meshes) == 0 {
			return nil, fmt.Errorf("%s: polymesh without samples", obj.Path())
		}
		for _, fs := range so.FaceSets {
			obj.FaceSets = append(obj.FaceSets, FaceSet{Name: fs.Name, Faces: fs.Faces})
		}
		samples := make([]*PolyMeshSample, len(so.Meshes))
		var bounds math.Box
		for i := range so.Meshes {
			s := so.Meshes[i].sample()
			if err := s.Validate(); err != nil {
				return nil, fmt.Errorf("%s mesh %d: %w", obj.Path(), i, err)
			}
			if err := validateFaceSets(obj, len(s.FaceCounts)); err != nil {
				return nil, fmt.Errorf("%s mesh %d: %w", obj.Path(), i, err)
			}
			bounds = bounds.Add(math.BoxFromPoints(s.Positions))
			samples[i] = s
		}
		if !obj.SelfBounds.Valid {
			obj.SelfBounds = bounds
		}
		r.meshes[obj.id] = samples
		obj.NumSamples = len(samples)
	}
	obj.Constant = so.Constant || obj.NumSamples <= 1

	for _, child := range so.Children {
		c, err := r.build(child, obj, timePerCycle)
		if err != nil {
			return nil, err
		}
		obj.Children = append(obj.Children, c)
	}
	return obj, nil
}

func (x SceneXform) matrix() (math.Mat4, error) {
	if len(x.Matrix) > 0 {
		if len(x.Matrix) != 16 {
			return math.Mat4{}, fmt.Errorf("matrix has %d values, want 16", len(x.Matrix))
		}
		var m math.Mat4
		copy(m[:], x.Matrix)
		return m, nil
	}
	t, r, s := math.Vec3{}, math.QuatIdentity(), math.Vec3{X: 1, Y: 1, Z: 1}
	if x.Translate != nil {
		t = math.V3(*x.Translate)
	}
	if x.Rotate != nil {
		r = math.Quat{X: x.Rotate[0], Y: x.Rotate[1], Z: x.Rotate[2], W: x.Rotate[3]}
	}
	if x.Scale != nil {
		s = math.V3(*x.Scale)
	}
	return math.FromTRS(t, r, s), nil
}

func (m *SceneMesh) sample() *PolyMeshSample {
	s := &PolyMeshSample{
		Positions:   make([]math.Vec3, len(m.Positions)),
		FaceCounts:  m.FaceCounts,
		FaceIndices: m.FaceIndices,
		Colors:      m.Colors,
	}
	for i, p := range m.Positions {
		s.Positions[i] = math.V3(p)
	}
	if len(m.Normals) > 0 {
		s.Normals = make([]math.Vec3, len(m.Normals))
		for i, n := range m.Normals {
			s.Normals[i] = math.V3(n)
		}
	}
	if len(m.UVs) > 0 {
		s.UVs = make([]math.Vec2, len(m.UVs))
		for i, uv := range m.UVs {
			s.UVs[i] = math.Vec2{X: uv[0], Y: uv[1]}
		}
	}
	return s
}

func sceneBox(b *SceneBox) math.Box {
	if b == nil {
		return math.Box{}
	}
	return math.Box{Min: math.V3(b.Min), Max: math.V3(b.Max), Valid: true}
}

// Top returns the root object, or nil for a scene without one.
func (r *SceneReader) Top() *Object { return r.top }

// Info returns archive metadata.
func (r *SceneReader) Info() Info { return r.info }

// ConcurrentReads is always true for in-memory scenes.
func (r *SceneReader) ConcurrentReads() bool { return true }

// ReadXform returns transform sample index of obj.
func (r *SceneReader) ReadXform(obj *Object, index int) (XformSample, error) {
	samples, ok := r.xforms[obj.id]
	if !ok || obj.Kind != KindXform {
		return XformSample{}, fmt.Errorf("%w: %s", ErrUnknownObject, obj.Path())
	}
	if err := checkSample(obj, index); err != nil {
		return XformSample{}, err
	}
	return samples[index], nil
}

// ReadPolyMesh returns mesh sample index of obj.
func (r *SceneReader) ReadPolyMesh(obj *Object, index int) (*PolyMeshSample, error) {
	samples, ok := r.meshes[obj.id]
	if !ok || obj.Kind != KindPolyMesh {
		return nil, fmt.Errorf("%w: %s", ErrUnknownObject, obj.Path())
	}
	if err := checkSample(obj, index); err != nil {
		return nil, err
	}
	return samples[index], nil
}

// Close is a no-op for in-memory scenes.
func (r *SceneReader) Close() error { return nil }
