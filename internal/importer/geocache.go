package importer

import (
	"context"

	"go.uber.org/zap"

	"github.com/Faultbox/abcimport/internal/asset"
	"github.com/Faultbox/abcimport/internal/meshutil"
	"github.com/Faultbox/abcimport/pkg/math"
)

// ImportAsGeometryCache builds one geometry cache holding a transform track
// for every constant mesh and a flipbook track for every animated one.
// Cancellation is checked between flipbook samples; a cancelled build
// leaves nothing registered.
func (im *Importer) ImportAsGeometryCache(ctx context.Context) (*asset.GeometryCache, error) {
	if err := im.requireImported(); err != nil {
		return nil, err
	}
	scope := im.registry.NewScope()
	cache := &asset.GeometryCache{Name: im.name}

	materialOffset := 0
	for _, t := range im.tracks {
		if len(t.Samples) == 0 {
			continue
		}
		var (
			track *asset.GeometryCacheTrack
			err   error
		)
		if t.Constant {
			track = im.transformTrack(t, materialOffset)
		} else {
			track, err = im.flipbookTrack(ctx, t, materialOffset)
		}
		if err != nil {
			scope.Rollback()
			im.materials.Refresh()
			return nil, cancelled(err)
		}

		n := max(len(t.FaceSetNames), 1)
		for i := 0; i < n; i++ {
			mat := asset.DefaultMaterial
			if i < len(t.FaceSetNames) {
				mat = im.materials.Resolve(t.FaceSetNames[i], scope)
			}
			cache.Materials = append(cache.Materials, mat)
		}
		materialOffset += n
		track.NumMaterials = n
		cache.Tracks = append(cache.Tracks, track)
	}

	scope.Create(cache)
	im.log.Info("built geometry cache",
		zap.String("name", cache.Name),
		zap.Int("tracks", len(cache.Tracks)),
		zap.Int("materials", len(cache.Materials)),
		zap.Float32("duration", cache.Duration()))
	return cache, nil
}

// transformTrack moves frame 0 of t with its cached world matrices.
func (im *Importer) transformTrack(t *PolyMeshTrack, materialOffset int) *asset.GeometryCacheTrack {
	track := &asset.GeometryCacheTrack{
		Name:      t.Name,
		Kind:      asset.TrackTransform,
		Meshes:    []asset.MeshData{geometryCacheMeshData(t.Samples[0], materialOffset)},
		MeshTimes: []float32{0},
	}
	if c, ok := im.cached[t.HierarchyID]; ok {
		track.Matrices = append([]math.Mat4(nil), c.Matrices...)
		track.MatrixTimes = append([]float32(nil), c.Times...)
	} else {
		track.Matrices = []math.Mat4{math.Identity()}
		track.MatrixTimes = []float32{0}
	}
	return track
}

// flipbookTrack stores one mesh per sample of t. World matrices are already
// baked into the samples.
func (im *Importer) flipbookTrack(ctx context.Context, t *PolyMeshTrack, materialOffset int) (*asset.GeometryCacheTrack, error) {
	track := &asset.GeometryCacheTrack{
		Name:        t.Name,
		Kind:        asset.TrackFlipbook,
		Matrices:    []math.Mat4{math.Identity()},
		MatrixTimes: []float32{0},
	}
	for i, s := range t.Samples {
		track.Meshes = append(track.Meshes, geometryCacheMeshData(s, materialOffset))
		track.MeshTimes = append(track.MeshTimes, s.Time)
		if err := ctx.Err(); err != nil {
			im.log.Debug("flipbook cancelled", zap.String("track", t.Name), zap.Int("sample", i))
			return nil, err
		}
	}
	return track, nil
}

// geometryCacheMeshData flattens s into per-corner vertices with one batch
// per material section.
func geometryCacheMeshData(s *meshutil.Sample, materialOffset int) asset.MeshData {
	sections := max(s.NumMaterials, 1)
	sectionCorners := make([][]uint32, sections)
	corners := len(s.Indices)
	md := asset.MeshData{
		Vertices: make([]asset.DynamicVertex, corners),
		Bounds:   s.Bounds(),
	}

	for tri := 0; tri < s.NumTriangles(); tri++ {
		section := 0
		if tri < len(s.MaterialIndices) {
			section = max(0, min(int(s.MaterialIndices[tri]), sections-1))
		}
		for k := 0; k < 3; k++ {
			c := 3*tri + k
			v := asset.DynamicVertex{
				Position: s.Vertices[s.Indices[c]],
				Color:    [4]uint8{255, 255, 255, 255},
			}
			if c < len(s.TangentX) {
				v.TangentX = s.TangentX[c]
			}
			if c < len(s.TangentY) {
				v.TangentY = s.TangentY[c]
			}
			if c < len(s.Normals) {
				v.Normal = s.Normals[c]
			}
			if len(s.UVs) > 0 && c < len(s.UVs[0]) {
				v.UV = s.UVs[0][c]
			}
			if c < len(s.Colors) {
				v.Color = asset.ToColor(s.Colors[c])
			}
			md.Vertices[c] = v
			sectionCorners[section] = append(sectionCorners[section], uint32(c))
		}
	}

	for i, sc := range sectionCorners {
		md.Batches = append(md.Batches, asset.Batch{
			StartIndex:    len(md.Indices),
			NumTriangles:  len(sc) / 3,
			MaterialIndex: materialOffset + i,
		})
		md.Indices = append(md.Indices, sc...)
	}
	return md
}
