package importer

import (
	"github.com/Faultbox/abcimport/internal/meshutil"
	"github.com/Faultbox/abcimport/internal/svd"
	"github.com/Faultbox/abcimport/pkg/archive"
	"github.com/Faultbox/abcimport/pkg/math"
)

// HierarchyID identifies a chain of ancestor transforms. Every object below
// the same chain shares the id; zero means no transform ancestors.
type HierarchyID uint64

// TransformNode is an animated transform of the archive.
type TransformNode struct {
	Object *archive.Object
	Name   string
	// Constant is true when the archive stores a single matrix.
	Constant        bool
	NumSamples      int
	StartTime       float32
	StartFrameIndex int
	HierarchyID     HierarchyID
	SelfBounds      math.Box
	ChildBounds     math.Box

	// MatrixSamples and TimeSamples hold one entry per frame of the import
	// window once track data has been imported.
	MatrixSamples []math.Mat4
	TimeSamples   []float32
}

// PolyMeshTrack is an animated polygon mesh of the archive.
type PolyMeshTrack struct {
	Object *archive.Object
	Name   string
	// ShouldImport marks the track as selected for import.
	ShouldImport bool
	// Constant is true when the archive stores a single mesh sample.
	Constant bool
	// ConstantTopology is true when every imported sample has the vertex
	// and index counts of the first.
	ConstantTopology bool
	// ConstantTransformation is true when the composed world matrix does not
	// change over the import window.
	ConstantTransformation bool

	NumSamples      int
	StartTime       float32
	StartFrameIndex int
	FaceSetNames    []string
	SelfBounds      math.Box
	ChildBounds     math.Box
	HierarchyID     HierarchyID

	// Samples holds the imported frames in time order.
	Samples []*meshutil.Sample
}

// CachedTransforms is the composed world matrix sequence of a hierarchy,
// with times re-based to the start of the import window.
type CachedTransforms struct {
	Matrices []math.Mat4
	Times    []float32
	Constant bool
}

// Matrix returns the matrix at the given frame offset into the window.
func (c *CachedTransforms) Matrix(frame int) math.Mat4 {
	if c.Constant || len(c.Matrices) == 1 {
		return c.Matrices[0]
	}
	return c.Matrices[max(0, min(frame, len(c.Matrices)-1))]
}

// CompressedMesh is a track, or a merged set of tracks, expressed as an
// average sample plus weighted bases.
type CompressedMesh struct {
	HierarchyID HierarchyID
	Average     *meshutil.Sample
	// Bases holds average+basis for every kept basis; CurveValues and
	// TimeValues give its weight over time.
	Bases         []*meshutil.Sample
	CurveValues   [][]float32
	TimeValues    [][]float32
	MaterialNames []string
	// Error measures the reconstruction against the input deltas.
	Error svd.Error
}

// Window is the frame range being imported.
type Window struct {
	// Start and End are frame indices, End exclusive.
	Start, End int
	// TimeStep is the time between two frames.
	TimeStep float32
	// ImportLength is the time covered by the window.
	ImportLength float32
}

// Span returns the number of frames in the window.
func (w Window) Span() int {
	return w.End - w.Start
}

// SecondsPerFrame returns the frame interval.
func (w Window) SecondsPerFrame() float32 {
	return w.TimeStep
}
