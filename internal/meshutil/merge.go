package meshutil

import (
	"github.com/Faultbox/abcimport/pkg/math"
)

// AppendSample appends src to dst. Indices are rebased onto dst's vertices,
// material indices are offset by dst's material count and UV sets are padded
// with zeros where either side has fewer.
func AppendSample(dst, src *Sample) {
	vertexOffset := uint32(len(dst.Vertices))
	materialOffset := int32(dst.NumMaterials)
	dstCorners := len(dst.Indices)
	srcCorners := len(src.Indices)

	dst.Vertices = append(dst.Vertices, src.Vertices...)
	for _, idx := range src.Indices {
		dst.Indices = append(dst.Indices, idx+vertexOffset)
	}

	dst.Normals = appendCorners(dst.Normals, src.Normals, dstCorners, srcCorners)
	dst.TangentX = appendCorners(dst.TangentX, src.TangentX, dstCorners, srcCorners)
	dst.TangentY = appendCorners(dst.TangentY, src.TangentY, dstCorners, srcCorners)
	dst.Colors = appendCorners(dst.Colors, src.Colors, dstCorners, srcCorners)

	sets := max(len(dst.UVs), len(src.UVs))
	for len(dst.UVs) < sets {
		dst.UVs = append(dst.UVs, make([]math.Vec2, dstCorners))
	}
	for i := 0; i < sets; i++ {
		if i < len(src.UVs) {
			dst.UVs[i] = append(dst.UVs[i], src.UVs[i]...)
		} else {
			dst.UVs[i] = append(dst.UVs[i], make([]math.Vec2, srcCorners)...)
		}
	}

	for t := 0; t < src.NumTriangles(); t++ {
		var m int32
		if t < len(src.MaterialIndices) {
			m = src.MaterialIndices[t]
		}
		dst.MaterialIndices = append(dst.MaterialIndices, m+materialOffset)
		var g uint32
		if t < len(src.SmoothingGroups) {
			g = src.SmoothingGroups[t]
		}
		dst.SmoothingGroups = append(dst.SmoothingGroups, g)
	}

	dst.NumMaterials += src.NumMaterials
	dst.NumSmoothingGroups = max(dst.NumSmoothingGroups, src.NumSmoothingGroups)
}

// appendCorners appends a corner attribute, zero-filling whichever side lacks
// it once the other side has it.
func appendCorners[T any](dst, src []T, dstCorners, srcCorners int) []T {
	if len(dst) == 0 && len(src) == 0 {
		return dst
	}
	if len(dst) == 0 {
		dst = make([]T, dstCorners, dstCorners+srcCorners)
	}
	if len(src) == 0 {
		return append(dst, make([]T, srcCorners)...)
	}
	return append(dst, src...)
}

// MergeSamples concatenates samples into a new sample. Nil entries are
// skipped.
func MergeSamples(samples []*Sample) *Sample {
	out := &Sample{}
	for _, s := range samples {
		if s == nil {
			continue
		}
		AppendSample(out, s)
		out.Time = s.Time
	}
	return out
}
