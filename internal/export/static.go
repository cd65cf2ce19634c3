package export

import (
	"fmt"

	"github.com/qmuntal/gltf"

	"github.com/Faultbox/abcimport/internal/asset"
)

// StaticMeshDocument writes m as a single node with one primitive per
// material section.
func StaticMeshDocument(m *asset.StaticMesh) (*gltf.Document, error) {
	if m == nil || m.Mesh == nil || m.Mesh.NumFaces() == 0 {
		return nil, fmt.Errorf("%w: static mesh", ErrEmptyMesh)
	}
	b := newBuilder()
	attrs := b.writeAttributes(rawCorners(m.Mesh))
	mesh := b.addMesh(&gltf.Mesh{
		Name:       m.Name,
		Primitives: b.primitives(rawSections(m.Mesh, m.Materials), attrs, nil),
	})
	b.addNode(&gltf.Node{Name: m.Name, Mesh: gltf.Index(mesh)}, true)
	return b.doc, nil
}
