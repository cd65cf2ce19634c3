package importer

import (
	"context"

	"go.uber.org/zap"

	"github.com/Faultbox/abcimport/internal/asset"
	"github.com/Faultbox/abcimport/internal/meshutil"
)

// noFaceSetName stands in for tracks without face sets in merged meshes.
const noFaceSetName = "NoFaceSetName"

// ImportAsStaticMesh builds static meshes from the first frame of every
// track: one asset named after the archive when merging, one per track
// otherwise.
func (im *Importer) ImportAsStaticMesh(ctx context.Context) ([]*asset.StaticMesh, error) {
	if err := im.requireImported(); err != nil {
		return nil, err
	}
	scope := im.registry.NewScope()
	fail := func(err error) ([]*asset.StaticMesh, error) {
		scope.Rollback()
		im.materials.Refresh()
		return nil, cancelled(err)
	}

	var meshes []*asset.StaticMesh
	if im.settings.StaticMesh.MergeMeshes {
		var (
			samples []*meshutil.Sample
			names   []string
			total   int
		)
		for _, t := range im.tracks {
			if len(t.Samples) == 0 {
				continue
			}
			s := t.Samples[0]
			samples = append(samples, s)
			total += max(s.NumMaterials, 1)
			if len(t.FaceSetNames) > 0 {
				names = append(names, t.FaceSetNames...)
			} else {
				names = append(names, noFaceSetName)
			}
		}
		if len(samples) > 0 {
			m := im.newStaticMesh(scope, im.name, meshutil.MergeSamples(samples), total, names)
			meshes = append(meshes, m)
		}
	} else {
		for _, t := range im.tracks {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
			if len(t.Samples) == 0 {
				continue
			}
			s := t.Samples[0]
			m := im.newStaticMesh(scope, asset.SanitizeName(t.Name), s, s.NumMaterials, t.FaceSetNames)
			meshes = append(meshes, m)
		}
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	im.log.Info("built static meshes", zap.Int("meshes", len(meshes)), zap.Bool("merged", im.settings.StaticMesh.MergeMeshes))
	return meshes, nil
}

// newStaticMesh registers a static mesh with one material slot per
// material of s.
func (im *Importer) newStaticMesh(scope *asset.Scope, name string, s *meshutil.Sample, numMaterials int, faceSetNames []string) *asset.StaticMesh {
	m := &asset.StaticMesh{
		Name:   name,
		Mesh:   asset.RawMeshFromSample(s),
		Bounds: s.Bounds(),
	}
	for i := 0; i < max(numMaterials, 1); i++ {
		mat := asset.DefaultMaterial
		if i < len(faceSetNames) {
			mat = im.materials.Resolve(faceSetNames[i], scope)
		}
		m.Materials = append(m.Materials, mat)
	}
	scope.Create(m)
	return m
}
