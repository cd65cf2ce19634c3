package importer

import (
	gomath "math"

	"go.uber.org/zap"

	"github.com/Faultbox/abcimport/internal/meshutil"
	"github.com/Faultbox/abcimport/internal/parallel"
)

// postProcess compacts, classifies and completes every imported track, then
// bakes and converts its samples.
func (im *Importer) postProcess() {
	for _, track := range im.tracks {
		track.Samples = compactSamples(track.Samples)
		track.NumSamples = len(track.Samples)
		if track.NumSamples == 0 {
			im.messages.Errorf("Unable to import valid frames for %s, skipping object.", track.Name)
			continue
		}
		track.ConstantTopology = constantTopology(track.Samples)
		im.generateNormals(track)
		parallel.For(len(track.Samples), im.workers(), func(i int) {
			meshutil.ComputeTangents(track.Samples[i])
		})
		im.numTotalMaterials += track.Samples[0].NumMaterials
	}

	parallel.For(len(im.tracks), im.workers(), func(i int) {
		im.bakeAndConvert(im.tracks[i])
	})

	if im.settings.ImportType == ImportGeometryCache {
		parallel.For(len(im.tracks), im.workers(), func(i int) {
			track := im.tracks[i]
			if track.Constant {
				return
			}
			before := len(track.Samples)
			track.Samples = removeDuplicateFrames(track.Samples)
			track.NumSamples = len(track.Samples)
			if dropped := before - track.NumSamples; dropped > 0 {
				im.log.Debug("removed duplicate frames", zap.String("track", track.Name), zap.Int("dropped", dropped))
			}
		})
	}
}

func compactSamples(samples []*meshutil.Sample) []*meshutil.Sample {
	out := samples[:0]
	for _, s := range samples {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func constantTopology(samples []*meshutil.Sample) bool {
	if len(samples) == 0 {
		return true
	}
	vertices, indices := len(samples[0].Vertices), len(samples[0].Indices)
	for _, s := range samples[1:] {
		if len(s.Vertices) != vertices || len(s.Indices) != indices {
			return false
		}
	}
	return true
}

// generateNormals establishes smoothing groups on frame 0 and makes sure
// every frame has normals consistent with them.
func (im *Importer) generateNormals(track *PolyMeshTrack) {
	ns := im.settings.Normals
	threshold := im.settings.hardEdgeThreshold()
	samples := track.Samples
	first := samples[0]

	normalsAvailable := first.HasNormals() && !ns.RecomputeNormals
	fullFrameNormals := !track.Constant && len(samples) > 1 && samples[1].HasNormals()

	if len(first.SmoothingGroups) == 0 {
		if ns.ForceOneSmoothingGroupPerObject {
			if !first.HasNormals() {
				meshutil.CalculateSmoothNormals(first)
			}
			meshutil.ResetSmoothingGroups(first)
		} else {
			meshutil.GenerateSmoothingGroups(first, threshold)
		}
	}

	if normalsAvailable && fullFrameNormals {
		return
	}

	if !normalsAvailable || !track.ConstantTopology {
		parallel.For(len(samples), im.workers(), func(i int) {
			s := samples[i]
			if ns.ForceOneSmoothingGroupPerObject {
				meshutil.CalculateSmoothNormals(s)
				meshutil.ResetSmoothingGroups(s)
				return
			}
			meshutil.CalculateNormals(s)
			meshutil.GenerateSmoothingGroups(s, threshold)
			meshutil.CalculateNormalsWithSmoothingGroups(s, s.SmoothingGroups)
		})
		return
	}

	// Frame 0 has usable normals; reuse its groups on the other frames.
	parallel.For(len(samples)-1, im.workers(), func(i int) {
		s := samples[i+1]
		im.normalsFromGroups(s, first)
		s.SmoothingGroups = append([]uint32(nil), first.SmoothingGroups...)
		s.NumSmoothingGroups = first.NumSmoothingGroups
	})
}

// normalsFromGroups recomputes the normals of s using the smoothing groups
// of ref, a sample with the same topology. A forced single group means one
// smooth surface even though its masks are zero.
func (im *Importer) normalsFromGroups(s, ref *meshutil.Sample) {
	if im.settings.Normals.ForceOneSmoothingGroupPerObject {
		meshutil.CalculateSmoothNormals(s)
		return
	}
	meshutil.CalculateNormalsWithSmoothingGroups(s, ref.SmoothingGroups)
}

// bakeAndConvert applies the cached world matrices where the bake policy
// asks for it and converts every sample into output space once.
func (im *Importer) bakeAndConvert(track *PolyMeshTrack) {
	if len(track.Samples) == 0 {
		return
	}
	conv := im.settings.Conversion
	policy := im.settings.BakePolicy()
	cached := im.cached[track.HierarchyID]

	switch {
	case policy.bakes(track.Constant) && cached != nil:
		for _, s := range track.Samples {
			m := cached.Matrix(im.matrixIndex(s))
			if track.ConstantTransformation {
				m = cached.Matrices[0]
			}
			meshutil.PropagateMatrix(s, m)
			flags := meshutil.SkipTransform
			if m.Determinant3x3() < 0 {
				flags |= meshutil.InvertWinding
			}
			meshutil.ApplyConversion(s, conv, flags)
		}
	case policy == AlwaysBakeForCache:
		// Transform tracks keep their placement in the converted track matrices.
		for _, s := range track.Samples {
			meshutil.ApplyConversion(s, conv, meshutil.SkipTransform)
		}
	default:
		for _, s := range track.Samples {
			meshutil.ApplyConversion(s, conv, 0)
		}
	}
}

// matrixIndex maps a sample onto its frame offset in the cached transforms.
func (im *Importer) matrixIndex(s *meshutil.Sample) int {
	if im.window.TimeStep <= 0 {
		return 0
	}
	return int(gomath.Round(float64(s.Time / im.window.TimeStep)))
}

// removeDuplicateFrames drops every sample whose vertices equal those of
// the sample before it.
func removeDuplicateFrames(samples []*meshutil.Sample) []*meshutil.Sample {
	if len(samples) < 2 {
		return samples
	}
	drop := make([]bool, len(samples))
	for i := 0; i < len(samples)-1; i++ {
		if meshutil.VerticesEqual(samples[i].Vertices, samples[i+1].Vertices) {
			drop[i+1] = true
		}
	}
	out := make([]*meshutil.Sample, 0, len(samples))
	for i, s := range samples {
		if !drop[i] {
			out = append(out, s)
		}
	}
	return out
}
