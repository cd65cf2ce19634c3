package importer

import (
	"fmt"
	gomath "math"
)

// computeWindow derives the frame window and time step from the sampling
// settings and the archive's frame range.
func (im *Importer) computeWindow() (Window, error) {
	ss := im.settings.Sampling
	start := ss.FrameStart
	if ss.SkipEmpty {
		start = max(start, im.minFrameIndex)
	}
	end := ss.FrameEnd
	if im.settings.ImportType == ImportStaticMesh {
		// Static meshes only need the first frame.
		end = start + 1
	}
	if end-start <= 0 {
		return Window{}, im.invalidRange(start, end)
	}

	cacheLength := im.maxTime - im.minTime
	frames := im.maxFrameIndex - im.minFrameIndex
	if frames <= 0 {
		frames = 1
	}
	original := cacheLength / float32(frames)

	var timeStep float32
	switch ss.Type {
	case SamplePerFrame:
		timeStep = original
		if !nearlyZero(im.timePerCycle) {
			timeStep = im.timePerCycle
		}
	case SamplePerTimeStep:
		if ss.TimeSteps <= 0 {
			return Window{}, fmt.Errorf("%w: time step %g", ErrInvalidFrameRange, ss.TimeSteps)
		}
		timeStep = ss.TimeSteps
		start, end = rescaleFrames(original/ss.TimeSteps, start, end)
	case SamplePerXFrames:
		steps := max(ss.FrameSteps, 1)
		timeStep = float32(steps) * original
		start, end = rescaleFrames(1/float32(steps), start, end)
	default:
		return Window{}, fmt.Errorf("%w: sampling type %s", ErrInvalidFrameRange, ss.Type)
	}
	if end-start <= 0 {
		return Window{}, im.invalidRange(start, end)
	}

	return Window{
		Start:        start,
		End:          end,
		TimeStep:     timeStep,
		ImportLength: float32(end-start-1) * timeStep,
	}, nil
}

func (im *Importer) invalidRange(start, end int) error {
	im.messages.Errorf("Invalid frame range specified %d - %d.", start, end)
	return fmt.Errorf("%w: %d - %d", ErrInvalidFrameRange, start, end)
}

// rescaleFrames maps frame indices onto a new step, widening the range.
func rescaleFrames(ratio float32, start, end int) (int, int) {
	return int(gomath.Floor(float64(float32(start) * ratio))), int(gomath.Ceil(float64(float32(end) * ratio)))
}

func nearlyZero(v float32) bool {
	return v > -1e-8 && v < 1e-8
}
