package importer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/abcimport/internal/asset"
	"github.com/Faultbox/abcimport/internal/meshutil"
	"github.com/Faultbox/abcimport/pkg/math"
)

// morphDeltaEpsilon is the smallest displacement stored in a morph target.
const morphDeltaEpsilon = 2e-5

// Root bone of the synthesized skeleton.
const (
	rootBoneName       = "RootBone"
	rootBoneExportName = "RootBone_Export"
)

// SkeletalResult holds the assets built by ImportAsSkeletalMesh.
type SkeletalResult struct {
	Mesh     *asset.SkeletalMesh
	Skeleton *asset.Skeleton
	Sequence *asset.AnimSequence
}

// ImportAsSkeletalMesh compresses the animated tracks and builds a skeletal
// mesh with one morph target and one curve per kept basis, driven by a
// single root bone.
func (im *Importer) ImportAsSkeletalMesh(ctx context.Context) (*SkeletalResult, error) {
	if err := im.requireImported(); err != nil {
		return nil, err
	}
	if err := im.CompressAnimationData(ctx, im.settings.Compression); err != nil {
		return nil, err
	}

	for _, c := range im.compressed {
		im.prepareAverage(c.Average)
	}

	scope := im.registry.NewScope()
	fail := func(err error) (*SkeletalResult, error) {
		scope.Rollback()
		im.materials.Refresh()
		return nil, cancelled(err)
	}

	merged := &meshutil.Sample{}
	for _, c := range im.compressed {
		meshutil.AppendSample(merged, c.Average)
	}
	meshutil.ComputeTangents(merged)

	name := im.name
	skeleton := &asset.Skeleton{
		Name: name + "_Skeleton",
		Bones: []asset.Bone{{
			Name:       rootBoneName,
			ExportName: rootBoneExportName,
			Parent:     -1,
			Transform:  math.Identity(),
		}},
	}
	mesh := &asset.SkeletalMesh{
		Name:         name,
		Mesh:         asset.RawMeshFromSample(merged),
		Bounds:       im.archiveBounds,
		NumTexCoords: merged.NumUVSets(),
		Skeleton:     skeleton,
	}
	for v := range merged.Vertices {
		mesh.Influences = append(mesh.Influences, asset.Influence{Vertex: v, Bone: 0, Weight: 255})
	}
	sequence := &asset.AnimSequence{
		Name:     name + "_Animation",
		Skeleton: skeleton.Name,
		Length:   im.window.ImportLength,
	}

	threshold := im.settings.Compression.MinimumNumberOfVertexInfluencePercentage
	vertexOffset := 0
	for object, c := range im.compressed {
		avg := c.Average
		for b, base := range c.Bases {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
			im.normalsFromGroups(base, avg)

			target := &asset.MorphTarget{
				Name:   fmt.Sprintf("Base_%d_%d", b, object),
				Deltas: morphDeltas(base, avg, vertexOffset),
			}
			if !keepMorphTarget(len(target.Deltas), len(avg.Vertices), threshold) {
				im.log.Debug("discarded morph target", zap.String("target", target.Name), zap.Int("deltas", len(target.Deltas)))
				continue
			}
			mesh.MorphTargets = append(mesh.MorphTargets, target)

			curve := sequence.Curve(target.Name)
			for k, v := range c.CurveValues[b] {
				curve.AddKey(c.TimeValues[b][k], v)
			}
			curve.RemoveRedundantKeys(curveTolerance(base, avg))
			skeleton.AddCurveName(target.Name)
		}
		vertexOffset += len(avg.Vertices)

		for _, n := range c.MaterialNames {
			mesh.Materials = append(mesh.Materials, im.materials.Resolve(n, scope))
		}
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	scope.Create(mesh)
	scope.Create(skeleton)
	scope.Create(sequence)
	im.log.Info("built skeletal mesh",
		zap.String("name", mesh.Name),
		zap.Int("entries", len(im.compressed)),
		zap.Int("morph_targets", len(mesh.MorphTargets)),
		zap.Int("curves", len(sequence.Curves)),
		zap.Float32("length", sequence.Length))
	return &SkeletalResult{Mesh: mesh, Skeleton: skeleton, Sequence: sequence}, nil
}

// prepareAverage gives an average sample normals and smoothing groups of
// its own.
func (im *Importer) prepareAverage(s *meshutil.Sample) {
	if im.settings.Normals.ForceOneSmoothingGroupPerObject {
		meshutil.ResetSmoothingGroups(s)
		meshutil.CalculateSmoothNormals(s)
		return
	}
	meshutil.CalculateNormals(s)
	meshutil.GenerateSmoothingGroups(s, im.settings.hardEdgeThreshold())
	meshutil.CalculateNormalsWithSmoothingGroups(s, s.SmoothingGroups)
}

// morphDeltas returns the displacement of every vertex of base that moved
// away from avg. Normal deltas are taken at the first corner using the
// vertex.
func morphDeltas(base, avg *meshutil.Sample, vertexOffset int) []asset.MorphDelta {
	firstCorner := make([]int, len(avg.Vertices))
	for i := range firstCorner {
		firstCorner[i] = -1
	}
	for c, idx := range avg.Indices {
		if int(idx) < len(firstCorner) && firstCorner[idx] < 0 {
			firstCorner[idx] = c
		}
	}

	var deltas []asset.MorphDelta
	for v := range avg.Vertices {
		if v >= len(base.Vertices) {
			break
		}
		d := base.Vertices[v].Sub(avg.Vertices[v])
		if d.Length() <= morphDeltaEpsilon {
			continue
		}
		md := asset.MorphDelta{SourceIndex: vertexOffset + v, PositionDelta: d}
		if c := firstCorner[v]; c >= 0 && c < len(base.Normals) && c < len(avg.Normals) {
			md.NormalDelta = base.Normals[c].Sub(avg.Normals[c])
		}
		deltas = append(deltas, md)
	}
	return deltas
}

// curveTolerance returns the weight tolerance for pruning the curve of
// base, so that a pruned key moves no vertex by more than
// asset.DefaultKeyTolerance.
func curveTolerance(base, avg *meshutil.Sample) float32 {
	var longest float32
	for v := range min(len(base.Vertices), len(avg.Vertices)) {
		longest = max(longest, base.Vertices[v].Sub(avg.Vertices[v]).Length())
	}
	if longest <= 0 {
		return asset.DefaultKeyTolerance
	}
	return asset.DefaultKeyTolerance / longest
}

// keepMorphTarget reports whether a target moving deltas of vertices
// vertices exceeds the influence threshold, a percentage.
func keepMorphTarget(deltas, vertices int, threshold float32) bool {
	if vertices == 0 || deltas == 0 {
		return false
	}
	return float32(deltas)/float32(vertices)*100 > threshold
}
