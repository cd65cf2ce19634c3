// Package archive reads scene-interchange archives: a tree of named objects,
// some of which carry time-sampled transforms or polygon meshes.
//
// Two storage backends are provided. Scene archives are YAML documents held
// fully in memory and may be read from many goroutines at once. Packed
// archives are compact binary files whose reads share one file handle and
// must not be issued concurrently.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	gomath "math"
	"os"
	"strings"

	"github.com/Faultbox/abcimport/pkg/math"
)

var (
	// ErrInvalidArchive is returned when a file cannot be decoded as an archive.
	ErrInvalidArchive = errors.New("invalid archive")
	// ErrTruncated is returned when a packed record ends early.
	ErrTruncated = errors.New("truncated archive data")
	// ErrUnknownObject is returned for objects that do not belong to the reader.
	ErrUnknownObject = errors.New("object does not belong to this archive")
	// ErrSampleRange is returned for sample indices outside an object's range.
	ErrSampleRange = errors.New("sample index out of range")
)

// Kind identifies the schema of an object.
type Kind uint8

// Object kinds.
const (
	KindUnknown Kind = iota
	KindXform
	KindPolyMesh
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindXform:
		return "xform"
	case KindPolyMesh:
		return "polymesh"
	default:
		return "unknown"
	}
}

func parseKind(s string) Kind {
	switch strings.ToLower(s) {
	case "xform", "transform":
		return KindXform
	case "polymesh", "mesh":
		return KindPolyMesh
	default:
		return KindUnknown
	}
}

// TimeSampling describes uniform sampling: sample i sits at Start + i*PerCycle.
type TimeSampling struct {
	Start    float32
	PerCycle float32
}

// FaceSet names a subset of an object's polygons.
type FaceSet struct {
	Name  string
	Faces []int32
}

// Object is a node of the archive tree.
type Object struct {
	Name        string
	Kind        Kind
	Parent      *Object
	Children    []*Object
	NumSamples  int
	Constant    bool
	Sampling    TimeSampling
	SelfBounds  math.Box
	ChildBounds math.Box
	FaceSets    []FaceSet

	id int
}

// Path returns the slash-separated path from the top object.
func (o *Object) Path() string {
	if o.Parent == nil {
		return "/"
	}
	parent := o.Parent.Path()
	if parent == "/" {
		return "/" + o.Name
	}
	return parent + "/" + o.Name
}

// FaceSetNames returns the names of the object's face sets in order.
func (o *Object) FaceSetNames() []string {
	names := make([]string, len(o.FaceSets))
	for i, fs := range o.FaceSets {
		names[i] = fs.Name
	}
	return names
}

// SampleIndex returns the index of the sample at or before time t, clamped to
// the object's sample range.
func (o *Object) SampleIndex(t float32) int {
	if o.Constant || o.NumSamples <= 1 || o.Sampling.PerCycle <= 0 {
		return 0
	}
	// Bias absorbs float error when t sits exactly on a sample.
	idx := int(gomath.Floor(float64((t-o.Sampling.Start)/o.Sampling.PerCycle) + 1e-4))
	return max(0, min(idx, o.NumSamples-1))
}

// TimeRange returns the times of the first and last samples.
func (o *Object) TimeRange() (float32, float32) {
	start := o.Sampling.Start
	if o.NumSamples <= 1 {
		return start, start
	}
	return start, start + float32(o.NumSamples-1)*o.Sampling.PerCycle
}

// StartFrame returns the start time and the frame index it corresponds to.
func (o *Object) StartFrame() (float32, int) {
	if o.Sampling.PerCycle <= 0 {
		return o.Sampling.Start, 0
	}
	return o.Sampling.Start, int(gomath.Ceil(float64(o.Sampling.Start/o.Sampling.PerCycle) - 1e-4))
}

// Walk visits o and its descendants depth first.
func (o *Object) Walk(fn func(*Object)) {
	fn(o)
	for _, c := range o.Children {
		c.Walk(fn)
	}
}

// Info carries archive-wide metadata.
type Info struct {
	// TimePerCycle is the period of the archive's animated sampling, zero if
	// the archive has none.
	TimePerCycle float32
	// Bounds are the archive bounds; Valid is false if none were published.
	Bounds math.Box
}

// Reader is an opened archive.
type Reader interface {
	// Top returns the top object, or nil if the archive has none.
	Top() *Object
	Info() Info
	// ConcurrentReads reports whether ReadXform and ReadPolyMesh may be
	// called from several goroutines at once.
	ConcurrentReads() bool
	ReadXform(obj *Object, index int) (XformSample, error)
	// ReadPolyMesh returns a raw mesh sample. The result may be shared and
	// must not be modified.
	ReadPolyMesh(obj *Object, index int) (*PolyMeshSample, error)
	Close() error
}

// Open opens the archive at path, picking the backend from the file magic.
func Open(path string) (Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	magic := make([]byte, len(packMagic))
	n, err := io.ReadFull(f, magic)
	f.Close()
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading magic: %w", err)
	}
	if bytes.Equal(magic[:n], []byte(packMagic)) {
		r, err := OpenPack(path)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	r, err := LoadScene(path)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func checkSample(obj *Object, index int) error {
	if index < 0 || index >= max(obj.NumSamples, 1) {
		return fmt.Errorf("%w: %s sample %d of %d", ErrSampleRange, obj.Path(), index, obj.NumSamples)
	}
	return nil
}
