package importer

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/abcimport/internal/parallel"
	"github.com/Faultbox/abcimport/pkg/math"
)

// clipEpsilon absorbs float error when sample times sit on the window edges.
const clipEpsilon = 1e-4

// readTransforms samples every transform node once per window frame.
func (im *Importer) readTransforms() error {
	w := im.window
	span := w.Span()
	workers := im.workers()
	if !im.concurrentReads {
		workers = 1
	}

	errs := parallel.ForErr(len(im.transforms), workers, func(i int) error {
		node := im.transforms[i]
		node.MatrixSamples = make([]math.Mat4, span)
		node.TimeSamples = make([]float32, span)
		for f := 0; f < span; f++ {
			t := w.TimeStep * float32(w.Start+f)
			x, err := im.reader.ReadXform(node.Object, node.Object.SampleIndex(t))
			if err != nil {
				return fmt.Errorf("reading transform %s at %g: %w", node.Object.Path(), t, err)
			}
			node.MatrixSamples[f] = x.Matrix
			node.TimeSamples[f] = t
		}
		return nil
	})
	if err := multierr.Combine(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToImportData, err)
	}
	return nil
}

// cacheHierarchyTransforms composes the world matrices of every track's
// ancestor chain over [start, end] and sets ConstantTransformation.
func (im *Importer) cacheHierarchyTransforms(start, end float32) {
	im.cached = make(map[HierarchyID]*CachedTransforms, len(im.tracks))
	for _, track := range im.tracks {
		c, ok := im.cached[track.HierarchyID]
		if !ok {
			c = im.composeHierarchy(track.HierarchyID, start, end)
			im.cached[track.HierarchyID] = c
		}
		track.ConstantTransformation = c.Constant
	}
}

// composeHierarchy returns the world matrices of chain id. Constant
// ancestors contribute their single matrix at every sample.
func (im *Importer) composeHierarchy(id HierarchyID, start, end float32) *CachedTransforms {
	chain := im.hierarchies[id]
	if len(chain) == 0 {
		c := &CachedTransforms{Matrices: []math.Mat4{math.Identity()}, Times: []float32{0}, Constant: true}
		im.settings.Conversion.ApplyToMatrices(c.Matrices)
		return c
	}

	c := &CachedTransforms{Constant: true}
	for _, node := range chain {
		c.Constant = c.Constant && node.Constant
	}

	deepest := chain[len(chain)-1]
	if len(chain) == 1 {
		c.Matrices = append([]math.Mat4(nil), deepest.MatrixSamples...)
		c.Times = append([]float32(nil), deepest.TimeSamples...)
	} else {
		// The longest animated ancestor drives the sample count and times.
		driver := deepest
		for _, node := range chain {
			if !node.Constant && len(node.MatrixSamples) > len(driver.MatrixSamples) {
				driver = node
			}
		}
		n := min(len(driver.MatrixSamples), len(driver.TimeSamples))
		c.Matrices = make([]math.Mat4, n)
		c.Times = append([]float32(nil), driver.TimeSamples[:n]...)
		parallel.For(n, im.workers(), func(s int) {
			acc := sampleAt(deepest, s)
			for i := len(chain) - 2; i >= 0; i-- {
				acc = sampleAt(chain[i], s).Mul(acc)
			}
			c.Matrices[s] = acc
		})
	}

	if len(c.Matrices) == 0 {
		c.Matrices = []math.Mat4{math.Identity()}
		c.Times = []float32{0}
		c.Constant = true
	}

	if c.Constant {
		c.Matrices = c.Matrices[:1]
		c.Times = c.Times[:1]
	} else {
		clipToWindow(c, start, end)
	}

	im.settings.Conversion.ApplyToMatrices(c.Matrices)
	im.log.Debug("cached hierarchy transforms",
		zap.Uint64("hierarchy", uint64(id)),
		zap.Int("depth", len(chain)),
		zap.Int("samples", len(c.Matrices)),
		zap.Bool("constant", c.Constant))
	return c
}

// sampleAt returns node's matrix for sample s, the single matrix for
// constant nodes.
func sampleAt(node *TransformNode, s int) math.Mat4 {
	if len(node.MatrixSamples) == 0 {
		return math.Identity()
	}
	if node.Constant {
		return node.MatrixSamples[0]
	}
	return node.MatrixSamples[min(s, len(node.MatrixSamples)-1)]
}

// clipToWindow drops samples outside [start, end] and re-bases the rest to
// start. A result with one sample left becomes constant; one with none
// keeps its first sample.
func clipToWindow(c *CachedTransforms, start, end float32) {
	matrices := c.Matrices[:0:0]
	times := c.Times[:0:0]
	for i, t := range c.Times {
		if t < start-clipEpsilon || t > end+clipEpsilon {
			continue
		}
		matrices = append(matrices, c.Matrices[i])
		times = append(times, max(0, t-start))
	}
	if len(matrices) == 0 {
		matrices = append(matrices, c.Matrices[0])
		times = append(times, 0)
	}
	c.Matrices, c.Times = matrices, times
	if len(c.Matrices) == 1 {
		c.Constant = true
	}
}
