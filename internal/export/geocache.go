package export

import (
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/abcimport/internal/asset"
	"github.com/Faultbox/abcimport/pkg/math"
)

// GeometryCacheDocument writes c with one root node per track.
//
// Transform tracks carry their matrix samples as a linear TRS animation.
// Flipbook tracks get one child node per frame; a step scale animation
// shows each frame from its sample time until the next one.
func GeometryCacheDocument(c *asset.GeometryCache) (*gltf.Document, error) {
	if c == nil || len(c.Tracks) == 0 {
		return nil, fmt.Errorf("%w: geometry cache has no tracks", ErrEmptyMesh)
	}
	b := newBuilder()
	anim := &gltf.Animation{Name: c.Name}
	for _, t := range c.Tracks {
		if len(t.Meshes) == 0 {
			continue
		}
		switch t.Kind {
		case asset.TrackFlipbook:
			b.flipbookTrack(anim, c, t)
		default:
			b.transformTrack(anim, c, t)
		}
	}
	b.finishAnimation(anim)
	return b.doc, nil
}

func (b *builder) transformTrack(anim *gltf.Animation, c *asset.GeometryCache, t *asset.GeometryCacheTrack) {
	node := &gltf.Node{Name: t.Name, Mesh: gltf.Index(b.meshData(t.Name, t.Meshes[0], c.Materials))}
	if len(t.Matrices) > 0 {
		setTRS(node, t.Matrices[0])
	}
	idx := b.addNode(node, true)
	if len(t.Matrices) < 2 || len(t.MatrixTimes) != len(t.Matrices) {
		return
	}

	translations := make([][3]float32, len(t.Matrices))
	rotations := make([][4]float32, len(t.Matrices))
	scales := make([][3]float32, len(t.Matrices))
	var prev math.Quat
	for i, m := range t.Matrices {
		tr, r, s := m.Decompose()
		r = r.Normalize()
		// Keep consecutive rotations in the same hemisphere for interpolation.
		if i > 0 && prev.Dot(r) < 0 {
			r = math.Quat{X: -r.X, Y: -r.Y, Z: -r.Z, W: -r.W}
		}
		prev = r
		translations[i], rotations[i], scales[i] = tr.Array(), r.Array(), s.Array()
	}
	input := b.timeAccessor(t.MatrixTimes)
	channel(anim, idx, gltf.TRSTranslation, input, modeler.WriteAccessor(b.doc, gltf.TargetNone, translations), gltf.InterpolationLinear)
	channel(anim, idx, gltf.TRSRotation, input, modeler.WriteAccessor(b.doc, gltf.TargetNone, rotations), gltf.InterpolationLinear)
	channel(anim, idx, gltf.TRSScale, input, modeler.WriteAccessor(b.doc, gltf.TargetNone, scales), gltf.InterpolationLinear)
}

func (b *builder) flipbookTrack(anim *gltf.Animation, c *asset.GeometryCache, t *asset.GeometryCacheTrack) {
	parent := &gltf.Node{Name: t.Name}
	if len(t.Matrices) > 0 {
		setTRS(parent, t.Matrices[0])
	}
	parentIdx := b.addNode(parent, true)

	animated := len(t.Meshes) > 1 && len(t.MeshTimes) == len(t.Meshes)
	var input uint32
	if animated {
		input = b.timeAccessor(t.MeshTimes)
	}
	for i, md := range t.Meshes {
		name := fmt.Sprintf("%s_frame_%03d", t.Name, i)
		child := &gltf.Node{
			Name:  name,
			Mesh:  gltf.Index(b.meshData(name, md, c.Materials)),
			Scale: [3]float32{1, 1, 1},
		}
		childIdx := b.addNode(child, false)
		b.doc.Nodes[parentIdx].Children = append(b.doc.Nodes[parentIdx].Children, childIdx)
		if !animated {
			continue
		}
		scales := make([][3]float32, len(t.MeshTimes))
		scales[i] = [3]float32{1, 1, 1}
		channel(anim, childIdx, gltf.TRSScale, input, modeler.WriteAccessor(b.doc, gltf.TargetNone, scales), gltf.InterpolationStep)
	}
}

// meshData writes a geometry cache mesh with one primitive per batch.
func (b *builder) meshData(name string, md asset.MeshData, materials []*asset.Material) uint32 {
	n := len(md.Vertices)
	c := corners{
		positions: make([][3]float32, n),
		normals:   make([][3]float32, n),
		tangents:  make([][4]float32, n),
		uvs:       make([][2]float32, n),
		colors:    make([][4]uint8, n),
	}
	hasFrames := true
	for i, v := range md.Vertices {
		c.positions[i] = v.Position.Array()
		c.normals[i] = v.Normal.Array()
		c.tangents[i] = tangent(v.TangentX, v.TangentY, v.Normal)
		c.uvs[i] = v.UV.Array()
		c.colors[i] = v.Color
		if v.Normal.NearlyZero(1e-6) || v.TangentX.NearlyZero(1e-6) {
			hasFrames = false
		}
	}
	if !hasFrames {
		c.normals, c.tangents = nil, nil
	}
	attrs := b.writeAttributes(c)

	var sections []section
	for _, batch := range md.Batches {
		end := min(batch.StartIndex+3*batch.NumTriangles, len(md.Indices))
		if batch.StartIndex >= end {
			continue
		}
		var mat *asset.Material
		if batch.MaterialIndex >= 0 && batch.MaterialIndex < len(materials) {
			mat = materials[batch.MaterialIndex]
		}
		sections = append(sections, section{material: mat, corners: md.Indices[batch.StartIndex:end]})
	}
	return b.addMesh(&gltf.Mesh{Name: name, Primitives: b.primitives(sections, attrs, nil)})
}
