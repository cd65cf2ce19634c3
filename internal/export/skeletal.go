package export

import (
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/abcimport/internal/asset"
	"github.com/Faultbox/abcimport/pkg/math"
)

// SkeletalMeshDocument writes m skinned to skeleton, with one morph target
// per entry of m.MorphTargets. When seq is given its curves become a
// weights animation sampled at the union of their key times.
func SkeletalMeshDocument(m *asset.SkeletalMesh, skeleton *asset.Skeleton, seq *asset.AnimSequence) (*gltf.Document, error) {
	if m == nil || m.Mesh == nil || m.Mesh.NumFaces() == 0 {
		return nil, fmt.Errorf("%w: skeletal mesh", ErrEmptyMesh)
	}
	if skeleton == nil {
		skeleton = m.Skeleton
	}
	b := newBuilder()

	joints := b.addJoints(skeleton)
	c := rawCorners(m.Mesh)
	c.joints, c.weights = cornerInfluences(m)
	if len(joints) == 0 {
		c.joints, c.weights = nil, nil
	}
	attrs := b.writeAttributes(c)

	var targets []map[string]uint32
	var names []string
	for _, t := range m.MorphTargets {
		targets = append(targets, b.writeMorphTarget(m.Mesh, t))
		names = append(names, t.Name)
	}
	mesh := &gltf.Mesh{
		Name:       m.Name,
		Primitives: b.primitives(rawSections(m.Mesh, m.Materials), attrs, targets),
	}
	if len(targets) > 0 {
		mesh.Weights = make([]float32, len(targets))
		mesh.Extras = map[string]any{"targetNames": names}
	}
	node := &gltf.Node{Name: m.Name, Mesh: gltf.Index(b.addMesh(mesh))}
	if len(joints) > 0 {
		b.doc.Skins = append(b.doc.Skins, &gltf.Skin{
			Name:     skeleton.Name,
			Joints:   joints,
			Skeleton: gltf.Index(joints[0]),
		})
		node.Skin = gltf.Index(uint32(len(b.doc.Skins) - 1))
	}
	meshNode := b.addNode(node, true)

	if seq != nil && len(names) > 0 {
		anim := &gltf.Animation{Name: seq.Name}
		b.weightsAnimation(anim, meshNode, names, seq)
		b.finishAnimation(anim)
	}
	return b.doc, nil
}

// addJoints adds one node per bone and returns their indices in bone order.
func (b *builder) addJoints(s *asset.Skeleton) []uint32 {
	if s == nil {
		return nil
	}
	joints := make([]uint32, len(s.Bones))
	for i, bone := range s.Bones {
		n := &gltf.Node{Name: bone.Name}
		setTRS(n, bone.Transform)
		joints[i] = b.addNode(n, bone.Parent < 0 || bone.Parent >= len(s.Bones))
	}
	for i, bone := range s.Bones {
		if bone.Parent >= 0 && bone.Parent < len(s.Bones) {
			parent := b.doc.Nodes[joints[bone.Parent]]
			parent.Children = append(parent.Children, joints[i])
		}
	}
	return joints
}

// cornerInfluences expands the per-vertex influences of m to corners, with
// up to four joints per corner and weights normalised to one. Vertices
// without influences are bound to joint 0.
func cornerInfluences(m *asset.SkeletalMesh) ([][4]uint8, [][4]float32) {
	nv := len(m.Mesh.VertexPositions)
	vj := make([][4]uint8, nv)
	vw := make([][4]float32, nv)
	count := make([]int, nv)
	for _, inf := range m.Influences {
		if inf.Vertex < 0 || inf.Vertex >= nv || count[inf.Vertex] >= 4 {
			continue
		}
		k := count[inf.Vertex]
		vj[inf.Vertex][k] = uint8(inf.Bone)
		vw[inf.Vertex][k] = float32(inf.Weight) / 255
		count[inf.Vertex]++
	}
	for v := range vw {
		sum := vw[v][0] + vw[v][1] + vw[v][2] + vw[v][3]
		if sum <= 0 {
			vj[v], vw[v] = [4]uint8{}, [4]float32{1, 0, 0, 0}
			continue
		}
		for k := range vw[v] {
			vw[v][k] /= sum
		}
	}

	joints := make([][4]uint8, len(m.Mesh.WedgeIndices))
	weights := make([][4]float32, len(m.Mesh.WedgeIndices))
	for c, idx := range m.Mesh.WedgeIndices {
		joints[c], weights[c] = vj[idx], vw[idx]
	}
	return joints, weights
}

// writeMorphTarget expands the vertex deltas of t to corners.
func (b *builder) writeMorphTarget(m *asset.RawMesh, t *asset.MorphTarget) map[string]uint32 {
	nv := len(m.VertexPositions)
	pos := make([]math.Vec3, nv)
	nrm := make([]math.Vec3, nv)
	for _, d := range t.Deltas {
		if d.SourceIndex < 0 || d.SourceIndex >= nv {
			continue
		}
		pos[d.SourceIndex] = d.PositionDelta
		nrm[d.SourceIndex] = d.NormalDelta
	}

	positions := make([][3]float32, len(m.WedgeIndices))
	normals := make([][3]float32, len(m.WedgeIndices))
	for c, idx := range m.WedgeIndices {
		positions[c] = pos[idx].Array()
		normals[c] = nrm[idx].Array()
	}
	out := map[string]uint32{gltf.POSITION: modeler.WritePosition(b.doc, positions)}
	if len(m.WedgeTangentZ) == len(m.WedgeIndices) {
		out[gltf.NORMAL] = modeler.WriteAccessor(b.doc, gltf.TargetArrayBuffer, normals)
	}
	return out
}

// weightsAnimation drives the morph weights of node from the curves of seq
// named after each target.
func (b *builder) weightsAnimation(anim *gltf.Animation, node uint32, names []string, seq *asset.AnimSequence) {
	curves := make([]*asset.FloatCurve, len(names))
	for i, n := range names {
		curves[i] = seq.FindCurve(n)
	}
	times := mergedTimes(curves)
	if len(times) == 0 {
		return
	}
	weights := make([]float32, 0, len(times)*len(names))
	for _, t := range times {
		for _, c := range curves {
			var w float32
			if c != nil {
				w = c.Evaluate(t)
			}
			weights = append(weights, w)
		}
	}
	channel(anim, node, gltf.TRSWeights, b.timeAccessor(times), modeler.WriteAccessor(b.doc, gltf.TargetNone, weights), gltf.InterpolationLinear)
}
