package meshutil

import (
	"github.com/Faultbox/abcimport/pkg/math"
)

// FrameAverage is the per-vertex and per-corner mean over a set of samples.
type FrameAverage struct {
	Vertices []math.Vec3
	Normals  []math.Vec3
	MinTime  float32
	MaxTime  float32
}

// AverageFrames averages samples that share sample 0's topology. Nil samples
// are skipped; the result is empty if none remain.
func AverageFrames(samples []*Sample) FrameAverage {
	var avg FrameAverage
	var first *Sample
	count := 0
	for _, s := range samples {
		if s == nil {
			continue
		}
		if first == nil {
			first = s
			avg.Vertices = make([]math.Vec3, len(s.Vertices))
			avg.Normals = make([]math.Vec3, len(s.Normals))
			avg.MinTime, avg.MaxTime = s.Time, s.Time
		}
		for i := range min(len(avg.Vertices), len(s.Vertices)) {
			avg.Vertices[i] = avg.Vertices[i].Add(s.Vertices[i])
		}
		for i := range min(len(avg.Normals), len(s.Normals)) {
			avg.Normals[i] = avg.Normals[i].Add(s.Normals[i])
		}
		avg.MinTime = min(avg.MinTime, s.Time)
		avg.MaxTime = max(avg.MaxTime, s.Time)
		count++
	}
	if count == 0 {
		return avg
	}
	inv := 1 / float32(count)
	for i := range avg.Vertices {
		avg.Vertices[i] = avg.Vertices[i].Scale(inv)
	}
	for i := range avg.Normals {
		avg.Normals[i] = avg.Normals[i].Normalize()
	}
	return avg
}

// FillDeltaMatrix writes each sample's offset from avg into a column-major
// matrix with rows rows: sample i fills column i, starting at row
// vertexOffset*3. Nil samples leave their column zero.
func FillDeltaMatrix(dst []float32, rows, vertexOffset int, samples []*Sample, avg []math.Vec3) {
	for col, s := range samples {
		if s == nil {
			continue
		}
		base := col*rows + vertexOffset*3
		for v, p := range s.Vertices {
			if v >= len(avg) {
				break
			}
			d := p.Sub(avg[v])
			dst[base+3*v] = d.X
			dst[base+3*v+1] = d.Y
			dst[base+3*v+2] = d.Z
		}
	}
}
