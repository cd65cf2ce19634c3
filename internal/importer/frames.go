package importer

import (
	"context"
	"fmt"
	gomath "math"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/abcimport/internal/meshutil"
	"github.com/Faultbox/abcimport/internal/parallel"
)

// minFramesForThreads is the smallest window split across workers.
const minFramesForThreads = 4

// frameChunk is a contiguous frame range [from, to) read by one worker.
type frameChunk struct{ from, to int }

// frameChunks splits the window into per-worker ranges.
func frameChunks(w Window, threads int) []frameChunk {
	span := w.Span()
	threads = max(threads, 1)
	steps := span
	if span > minFramesForThreads {
		steps = int(gomath.Ceil(float64(span) / float64(threads)))
	}
	var chunks []frameChunk
	for from := w.Start; from < w.End; from += steps {
		chunks = append(chunks, frameChunk{from: from, to: min(from+steps, w.End)})
	}
	return chunks
}

// readsEveryFrame reports whether track needs a sample for every frame of
// the window. Other tracks are read once.
func (im *Importer) readsEveryFrame(track *PolyMeshTrack) bool {
	if !track.Constant {
		return true
	}
	return im.settings.BakePolicy().bakes(track.Constant) && !track.ConstantTransformation
}

// importFrames fills every track's Samples for the window. Frames where a
// track has no data stay nil.
func (im *Importer) importFrames(ctx context.Context) error {
	if im.reader == nil {
		return fmt.Errorf("%w: %w", ErrFailedToImportData, errReaderClosed)
	}
	w := im.window
	for _, track := range im.tracks {
		track.Samples = make([]*meshutil.Sample, w.Span())
	}

	threads := im.workers()
	if !im.concurrentReads {
		threads = 1
	}
	chunks := frameChunks(w, threads)
	im.log.Debug("importing frames",
		zap.Int("start", w.Start),
		zap.Int("end", w.End),
		zap.Int("chunks", len(chunks)),
		zap.Int("threads", threads))

	errs := parallel.ForErr(len(chunks), len(chunks), func(i int) error {
		return im.importChunk(ctx, chunks[i])
	})
	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}
	if err := multierr.Combine(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToImportData, err)
	}
	return nil
}

func (im *Importer) importChunk(ctx context.Context, c frameChunk) error {
	w := im.window
	var errs error
	for f := c.from; f < c.to; f++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		for _, track := range im.tracks {
			if f < track.StartFrameIndex {
				continue
			}
			if !im.readsEveryFrame(track) && f != max(w.Start, track.StartFrameIndex) {
				continue
			}
			s, err := im.readSample(track, f)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			track.Samples[f-w.Start] = s
		}
	}
	return errs
}

// readSample reads and triangulates track's sample at frame f.
func (im *Importer) readSample(track *PolyMeshTrack, f int) (*meshutil.Sample, error) {
	w := im.window
	t := w.TimeStep * float32(f)
	obj := track.Object
	raw, err := im.reader.ReadPolyMesh(obj, obj.SampleIndex(t))
	if err != nil {
		return nil, fmt.Errorf("reading %s at frame %d: %w", obj.Path(), f, err)
	}
	s, err := meshutil.FromPolyMesh(raw, obj.FaceSets)
	if err != nil {
		return nil, fmt.Errorf("converting %s at frame %d: %w", obj.Path(), f, err)
	}
	s.Time = w.TimeStep * float32(f-w.Start)
	return s, nil
}
