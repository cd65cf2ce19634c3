// Package export writes imported assets as glTF 2.0 documents and records
// what was written in a YAML manifest.
package export

import (
	"errors"
	"sort"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/abcimport/internal/asset"
	"github.com/Faultbox/abcimport/pkg/math"
)

// Generator is written into every document's asset block.
const Generator = "abctool"

var (
	ErrEmptyMesh         = errors.New("export: mesh has no triangles")
	ErrUnsupportedFormat = errors.New("export: unsupported output format")
	ErrUnsupportedAsset  = errors.New("export: asset kind cannot be exported")
)

// builder accumulates one glTF document.
type builder struct {
	doc       *gltf.Document
	materials map[*asset.Material]uint32
}

func newBuilder() *builder {
	doc := gltf.NewDocument()
	doc.Asset.Generator = Generator
	return &builder{doc: doc, materials: make(map[*asset.Material]uint32)}
}

// material returns the document index of m, adding it on first use.
func (b *builder) material(m *asset.Material) uint32 {
	if m == nil {
		m = asset.DefaultMaterial
	}
	if idx, ok := b.materials[m]; ok {
		return idx
	}
	idx := uint32(len(b.doc.Materials))
	b.doc.Materials = append(b.doc.Materials, &gltf.Material{
		Name: m.Name,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{1, 1, 1, 1},
			MetallicFactor:  gltf.Float(0),
			RoughnessFactor: gltf.Float(1),
		},
	})
	b.materials[m] = idx
	return idx
}

// addNode appends n and returns its index. Root nodes are added to the
// default scene.
func (b *builder) addNode(n *gltf.Node, root bool) uint32 {
	idx := uint32(len(b.doc.Nodes))
	b.doc.Nodes = append(b.doc.Nodes, n)
	if root {
		b.doc.Scenes[0].Nodes = append(b.doc.Scenes[0].Nodes, idx)
	}
	return idx
}

func (b *builder) addMesh(m *gltf.Mesh) uint32 {
	idx := uint32(len(b.doc.Meshes))
	b.doc.Meshes = append(b.doc.Meshes, m)
	return idx
}

// corners holds flattened per-corner vertex attributes. Optional slices are
// either empty or as long as positions.
type corners struct {
	positions [][3]float32
	normals   [][3]float32
	tangents  [][4]float32
	uvs       [][2]float32
	colors    [][4]uint8
	joints    [][4]uint8
	weights   [][4]float32
}

func (b *builder) writeAttributes(c corners) map[string]uint32 {
	attrs := map[string]uint32{
		gltf.POSITION: modeler.WritePosition(b.doc, c.positions),
	}
	if len(c.normals) == len(c.positions) {
		attrs[gltf.NORMAL] = modeler.WriteNormal(b.doc, c.normals)
	}
	if len(c.tangents) == len(c.positions) && len(c.normals) == len(c.positions) {
		attrs[gltf.TANGENT] = modeler.WriteTangent(b.doc, c.tangents)
	}
	if len(c.uvs) == len(c.positions) {
		attrs[gltf.TEXCOORD_0] = modeler.WriteTextureCoord(b.doc, c.uvs)
	}
	if len(c.colors) == len(c.positions) {
		attrs[gltf.COLOR_0] = modeler.WriteColor(b.doc, c.colors)
	}
	if len(c.joints) == len(c.positions) && len(c.weights) == len(c.positions) {
		attrs[gltf.JOINTS_0] = modeler.WriteJoints(b.doc, c.joints)
		attrs[gltf.WEIGHTS_0] = modeler.WriteWeights(b.doc, c.weights)
	}
	return attrs
}

// section is a run of corners drawn with one material.
type section struct {
	material *asset.Material
	corners  []uint32
}

// primitives builds one primitive per non-empty section, all sharing attrs
// and targets.
func (b *builder) primitives(sections []section, attrs map[string]uint32, targets []map[string]uint32) []*gltf.Primitive {
	var out []*gltf.Primitive
	for _, s := range sections {
		if len(s.corners) == 0 {
			continue
		}
		out = append(out, &gltf.Primitive{
			Attributes: attrs,
			Indices:    gltf.Index(modeler.WriteIndices(b.doc, s.corners)),
			Material:   gltf.Index(b.material(s.material)),
			Mode:       gltf.PrimitiveTriangles,
			Targets:    targets,
		})
	}
	return out
}

// rawCorners flattens a raw mesh to one vertex per wedge.
func rawCorners(m *asset.RawMesh) corners {
	n := len(m.WedgeIndices)
	c := corners{positions: make([][3]float32, n)}
	for i, idx := range m.WedgeIndices {
		c.positions[i] = m.VertexPositions[idx].Array()
	}
	if len(m.WedgeTangentZ) == n {
		c.normals = make([][3]float32, n)
		for i, v := range m.WedgeTangentZ {
			c.normals[i] = v.Array()
		}
		if len(m.WedgeTangentX) == n && len(m.WedgeTangentY) == n {
			c.tangents = make([][4]float32, n)
			for i := range c.tangents {
				c.tangents[i] = tangent(m.WedgeTangentX[i], m.WedgeTangentY[i], m.WedgeTangentZ[i])
			}
		}
	}
	if len(m.WedgeTexCoords) > 0 && len(m.WedgeTexCoords[0]) == n {
		c.uvs = make([][2]float32, n)
		for i, uv := range m.WedgeTexCoords[0] {
			c.uvs[i] = uv.Array()
		}
	}
	if len(m.WedgeColors) == n {
		c.colors = append([][4]uint8(nil), m.WedgeColors...)
	}
	return c
}

// rawSections groups the faces of m by material slot.
func rawSections(m *asset.RawMesh, materials []*asset.Material) []section {
	slots := max(len(materials), 1)
	sections := make([]section, slots)
	for i := range sections {
		if i < len(materials) {
			sections[i].material = materials[i]
		}
	}
	for f := 0; f < m.NumFaces(); f++ {
		slot := 0
		if f < len(m.FaceMaterialIndices) {
			slot = max(0, min(int(m.FaceMaterialIndices[f]), slots-1))
		}
		base := uint32(3 * f)
		sections[slot].corners = append(sections[slot].corners, base, base+1, base+2)
	}
	return sections
}

// tangent packs a tangent frame into glTF's xyz plus handedness form.
func tangent(tx, ty, tz math.Vec3) [4]float32 {
	w := float32(1)
	if tz.Cross(tx).Dot(ty) < 0 {
		w = -1
	}
	return [4]float32{tx.X, tx.Y, tx.Z, w}
}

// setTRS places n with the decomposed matrix m.
func setTRS(n *gltf.Node, m math.Mat4) {
	t, r, s := m.Decompose()
	n.Translation = t.Array()
	n.Rotation = r.Normalize().Array()
	n.Scale = s.Array()
}

// timeAccessor writes an animation input. glTF requires its bounds.
func (b *builder) timeAccessor(times []float32) uint32 {
	idx := modeler.WriteAccessor(b.doc, gltf.TargetNone, times)
	acc := b.doc.Accessors[idx]
	acc.Min = []float32{times[0]}
	acc.Max = []float32{times[len(times)-1]}
	return idx
}

// channel adds a sampler and a channel driving path of node.
func channel(a *gltf.Animation, node uint32, path gltf.TRSProperty, input, output uint32, interp gltf.Interpolation) {
	a.Samplers = append(a.Samplers, &gltf.AnimationSampler{
		Input:         gltf.Index(input),
		Output:        gltf.Index(output),
		Interpolation: interp,
	})
	a.Channels = append(a.Channels, &gltf.Channel{
		Sampler: gltf.Index(uint32(len(a.Samplers) - 1)),
		Target: gltf.ChannelTarget{
			Node: gltf.Index(node),
			Path: path,
		},
	})
}

// finishAnimation keeps a only when it drives something.
func (b *builder) finishAnimation(a *gltf.Animation) {
	if len(a.Channels) > 0 {
		b.doc.Animations = append(b.doc.Animations, a)
	}
}

// mergedTimes returns the sorted union of the key times of curves.
func mergedTimes(curves []*asset.FloatCurve) []float32 {
	seen := make(map[float32]bool)
	var times []float32
	for _, c := range curves {
		if c == nil {
			continue
		}
		for _, k := range c.Keys {
			if !seen[k.Time] {
				seen[k.Time] = true
				times = append(times, k.Time)
			}
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	return times
}
