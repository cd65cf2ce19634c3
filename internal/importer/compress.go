package importer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/abcimport/internal/meshutil"
	"github.com/Faultbox/abcimport/internal/svd"
	"github.com/Faultbox/abcimport/pkg/math"
)

// CompressAnimationData expresses the animated tracks as average samples
// plus SVD bases and stores the result in CompressedData. Tracks that do
// not move at all are kept as average-only entries. It returns
// ErrNoMeshesToCompress, after still storing the constant entries, when no
// track is animated.
func (im *Importer) CompressAnimationData(ctx context.Context, cs CompressionSettings) error {
	if err := im.requireImported(); err != nil {
		return err
	}
	im.compressed = nil

	var animated, constant []*PolyMeshTrack
	for _, t := range im.tracks {
		if !t.ConstantTopology || len(t.Samples) == 0 {
			continue
		}
		switch {
		case t.Constant && t.ConstantTransformation:
			constant = append(constant, t)
		case !t.Constant || (cs.BakeMatrixAnimation && !t.ConstantTransformation):
			animated = append(animated, t)
		}
	}

	var result error
	if len(animated) == 0 {
		im.messages.Errorf("Unable to compress animation data, no meshes found with Vertex Animation and baked Matrix Animation is turned off.")
		result = ErrNoMeshesToCompress
	} else if cs.MergeMeshes {
		c, err := im.compressMerged(animated, cs)
		if err != nil {
			return err
		}
		im.compressed = append(im.compressed, c)
	} else {
		for _, t := range animated {
			if err := ctx.Err(); err != nil {
				im.compressed = nil
				return cancelled(err)
			}
			c, err := im.compressTrack(t, cs)
			if err != nil {
				return err
			}
			im.compressed = append(im.compressed, c)
		}
	}

	for _, t := range constant {
		im.compressed = append(im.compressed, &CompressedMesh{
			HierarchyID:   t.HierarchyID,
			Average:       t.Samples[0].Clone(),
			MaterialNames: materialNames(t),
		})
	}
	return result
}

// compressMerged compresses all tracks together in one vertex space.
func (im *Importer) compressMerged(tracks []*PolyMeshTrack, cs CompressionSettings) (*CompressedMesh, error) {
	var (
		average          []math.Vec3
		offsets          []int
		names            []string
		numSamples       int
		minTime, maxTime float32
		first            = true
	)
	merged := &meshutil.Sample{}
	for _, t := range tracks {
		offsets = append(offsets, len(average))
		numSamples = max(numSamples, len(t.Samples))
		avg := meshutil.AverageFrames(t.Samples)
		average = append(average, avg.Vertices...)
		if first {
			minTime, maxTime = avg.MinTime, avg.MaxTime
			first = false
		}
		minTime = min(minTime, avg.MinTime)
		maxTime = max(maxTime, avg.MaxTime)
		meshutil.AppendSample(merged, t.Samples[0])
		names = append(names, materialNames(t)...)
	}

	rows := len(average) * 3
	delta := make([]float32, rows*numSamples)
	for i, t := range tracks {
		meshutil.FillDeltaMatrix(delta, rows, offsets[i], t.Samples, average[offsets[i]:])
	}

	var step float32
	if numSamples > 1 {
		step = (maxTime - minTime) / float32(numSamples-1)
	}
	merged.Vertices = average
	c, err := im.decompose(merged, delta, rows, numSamples, cs, step, minTime)
	if err != nil {
		return nil, err
	}
	c.MaterialNames = names
	im.log.Info("compressed merged tracks",
		zap.Int("tracks", len(tracks)),
		zap.Int("vertices", len(average)),
		zap.Int("samples", numSamples),
		zap.Int("bases", len(c.Bases)),
		zap.Float64("max_error", c.Error.MaxAbs),
		zap.Float64("distortion", c.Error.Distortion))
	return c, nil
}

// compressTrack compresses a single track.
func (im *Importer) compressTrack(t *PolyMeshTrack, cs CompressionSettings) (*CompressedMesh, error) {
	n := len(t.Samples)
	avg := meshutil.AverageFrames(t.Samples)
	rows := len(avg.Vertices) * 3
	delta := make([]float32, rows*n)
	meshutil.FillDeltaMatrix(delta, rows, 0, t.Samples, avg.Vertices)

	average := t.Samples[0].Clone()
	average.Vertices = avg.Vertices
	step := (avg.MaxTime - avg.MinTime) / float32(n)
	c, err := im.decompose(average, delta, rows, n, cs, step, avg.MinTime)
	if err != nil {
		return nil, err
	}
	c.HierarchyID = t.HierarchyID
	c.MaterialNames = materialNames(t)
	im.log.Info("compressed track",
		zap.String("track", t.Name),
		zap.Int("vertices", len(avg.Vertices)),
		zap.Int("samples", n),
		zap.Int("bases", len(c.Bases)),
		zap.Float64("max_error", c.Error.MaxAbs),
		zap.Float64("distortion", c.Error.Distortion))
	return c, nil
}

// decompose runs the SVD over delta and builds one base sample and weight
// curve per kept basis.
func (im *Importer) decompose(average *meshutil.Sample, delta []float32, rows, cols int, cs CompressionSettings, step, minTime float32) (*CompressedMesh, error) {
	c := &CompressedMesh{Average: average}
	if rows == 0 || cols == 0 {
		return c, nil
	}
	res, err := svd.Decompose(delta, rows, cols)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToImportData, err)
	}

	fraction, fixed := float32(1), 0
	switch cs.BaseCalculation {
	case BasesPercentage:
		fraction = min(max(cs.PercentageOfTotalBases, 0), 100) / 100
	case BasesFixed:
		fixed = cs.MaxNumberOfBases
	}
	available := res.NumBases()
	res.Truncate(svd.BasesToUse(available, fixed, fraction))
	res.PremultiplyBases()
	c.Error = svd.CompareReconstruction(delta, res.Reconstruct())
	im.log.Debug("decomposed animation",
		zap.Int("bases", res.NumBases()),
		zap.Int("available", available),
		zap.Float32("fraction", fraction),
		zap.Int("fixed", fixed))

	for i := 0; i < res.NumBases(); i++ {
		basis := res.Basis(i)
		base := average.Clone()
		for v := range base.Vertices {
			base.Vertices[v] = base.Vertices[v].Add(math.Vec3{X: basis[3*v], Y: basis[3*v+1], Z: basis[3*v+2]})
		}
		weights := append([]float32(nil), res.Weights(i)...)
		times := make([]float32, cols)
		for j := range times {
			times[j] = minTime + step*float32(j)
		}
		c.Bases = append(c.Bases, base)
		c.CurveValues = append(c.CurveValues, weights)
		c.TimeValues = append(c.TimeValues, times)
	}
	return c, nil
}

// materialNames returns one name per material slot of t; tracks without
// face sets count as one unnamed slot.
func materialNames(t *PolyMeshTrack) []string {
	if len(t.FaceSetNames) == 0 {
		return []string{""}
	}
	return append([]string(nil), t.FaceSetNames...)
}
