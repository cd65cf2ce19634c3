// Package importer turns time-sampled archive meshes into static meshes,
// geometry caches and morph-target skeletal meshes.
//
// An import runs in three steps: Open walks the archive hierarchy,
// ImportTrackData reads and post-processes every frame of the selected
// tracks, and one of the ImportAs builders writes assets to the registry.
package importer

import (
	"errors"
	"fmt"
	gomath "math"

	"go.uber.org/zap"

	"github.com/Faultbox/abcimport/internal/asset"
	"github.com/Faultbox/abcimport/internal/logger"
	"github.com/Faultbox/abcimport/internal/parallel"
	"github.com/Faultbox/abcimport/pkg/archive"
	"github.com/Faultbox/abcimport/pkg/math"
)

// Importer holds one import session.
type Importer struct {
	reader   archive.Reader
	name     string
	registry *asset.Registry
	log      *zap.Logger
	messages *MessageLog

	transforms  []*TransformNode
	tracks      []*PolyMeshTrack
	hierarchies map[HierarchyID][]*TransformNode
	nextID      HierarchyID

	minTime, maxTime             float32
	numFrames                    int
	minFrameIndex, maxFrameIndex int
	timePerCycle                 float32
	concurrentReads              bool
	archiveBounds                math.Box

	// Set by ImportTrackData.
	settings          Settings
	window            Window
	imported          bool
	cached            map[HierarchyID]*CachedTransforms
	materials         *asset.MaterialResolver
	numTotalMaterials int
	compressed        []*CompressedMesh
}

// Option configures an Importer.
type Option func(*Importer)

// WithRegistry sets the registry assets are written to. By default each
// importer gets its own.
func WithRegistry(r *asset.Registry) Option {
	return func(im *Importer) { im.registry = r }
}

// WithLogger sets the logger messages are mirrored to.
func WithLogger(l *zap.Logger) Option {
	return func(im *Importer) { im.log = l }
}

// WithName sets the base name of merged output assets.
func WithName(name string) Option {
	return func(im *Importer) { im.name = asset.SanitizeName(name) }
}

// Open opens the archive at path and walks its hierarchy.
func Open(path string, opts ...Option) (*Importer, error) {
	r, err := archive.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	opts = append([]Option{WithName(asset.BaseName(path))}, opts...)
	im, err := NewImporter(r, opts...)
	if err != nil {
		r.Close()
		return nil, err
	}
	return im, nil
}

// NewImporter walks the hierarchy of an opened archive. The importer takes
// ownership of r.
func NewImporter(r archive.Reader, opts ...Option) (*Importer, error) {
	im := &Importer{
		reader:        r,
		name:          "Archive",
		hierarchies:   make(map[HierarchyID][]*TransformNode),
		minTime:       gomath.MaxFloat32,
		maxTime:       -gomath.MaxFloat32,
		minFrameIndex: gomath.MaxInt32,
		settings:      DefaultSettings(),
	}
	for _, opt := range opts {
		opt(im)
	}
	if im.registry == nil {
		im.registry = asset.NewRegistry()
	}
	if im.log == nil {
		im.log = logger.Named("importer")
	}
	im.messages = newMessageLog(im.log)

	top := r.Top()
	if top == nil {
		return nil, ErrNoValidTopObject
	}
	im.traverse(top, nil, 0)

	info := r.Info()
	im.archiveBounds = info.Bounds
	im.timePerCycle = info.TimePerCycle
	im.concurrentReads = r.ConcurrentReads()

	if len(im.tracks) == 0 {
		return nil, ErrNoMeshes
	}

	im.log.Debug("opened archive",
		zap.String("name", im.name),
		zap.Int("tracks", len(im.tracks)),
		zap.Int("transforms", len(im.transforms)),
		zap.Int("frames", im.numFrames),
		zap.Bool("concurrent_reads", im.concurrentReads))
	return im, nil
}

// Close releases the archive.
func (im *Importer) Close() error {
	if im.reader == nil {
		return nil
	}
	err := im.reader.Close()
	im.reader = nil
	return err
}

// Name returns the base name used for merged output assets.
func (im *Importer) Name() string { return im.name }

// Registry returns the registry assets are written to.
func (im *Importer) Registry() *asset.Registry { return im.registry }

// PolyMeshes returns the mesh tracks.
func (im *Importer) PolyMeshes() []*PolyMeshTrack { return im.tracks }

// TransformNodes returns the transform nodes.
func (im *Importer) TransformNodes() []*TransformNode { return im.transforms }

// Hierarchy returns the ancestor chain registered for id, root first.
func (im *Importer) Hierarchy(id HierarchyID) []*TransformNode { return im.hierarchies[id] }

// NumFrames returns the largest sample count of any object.
func (im *Importer) NumFrames() int { return im.numFrames }

// StartFrameIndex returns the first frame index holding data.
func (im *Importer) StartFrameIndex() int { return im.minFrameIndex }

// EndFrameIndex returns one past the last frame index holding data.
func (im *Importer) EndFrameIndex() int { return im.maxFrameIndex }

// TimeRange returns the earliest and latest sample time of the archive.
func (im *Importer) TimeRange() (float32, float32) { return im.minTime, im.maxTime }

// NumMeshTracks returns the number of mesh tracks.
func (im *Importer) NumMeshTracks() int { return len(im.tracks) }

// ConcurrentReads reports whether the archive supports parallel reads.
func (im *Importer) ConcurrentReads() bool { return im.concurrentReads }

// ArchiveBounds returns the archive bounds, converted once track data has
// been imported.
func (im *Importer) ArchiveBounds() math.Box { return im.archiveBounds }

// Messages returns the recoverable problems reported so far.
func (im *Importer) Messages() []Message { return im.messages.Messages() }

// Settings returns the settings of the last ImportTrackData call.
func (im *Importer) Settings() Settings { return im.settings }

// Window returns the imported frame window.
func (im *Importer) Window() Window { return im.window }

// NumTotalMaterials returns the material count over all imported tracks.
func (im *Importer) NumTotalMaterials() int { return im.numTotalMaterials }

// CompressedData returns the output of the last compression.
func (im *Importer) CompressedData() []*CompressedMesh { return im.compressed }

// CachedTransforms returns the composed world matrices of a hierarchy.
func (im *Importer) CachedTransforms(id HierarchyID) (*CachedTransforms, bool) {
	c, ok := im.cached[id]
	return c, ok
}

// SelectTracks marks the named tracks for import. If no name matches any
// track, every track is selected.
func (im *Importer) SelectTracks(names []string) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	matched := false
	for _, t := range im.tracks {
		t.ShouldImport = want[t.Name]
		matched = matched || t.ShouldImport
	}
	if !matched {
		for _, t := range im.tracks {
			t.ShouldImport = true
		}
	}
}

// SelectedTrackNames returns the names of the tracks marked for import.
func (im *Importer) SelectedTrackNames() []string {
	var names []string
	for _, t := range im.tracks {
		if t.ShouldImport {
			names = append(names, t.Name)
		}
	}
	return names
}

func (im *Importer) workers() int {
	if im.settings.NumThreads > 0 {
		return im.settings.NumThreads
	}
	return parallel.DefaultWorkers()
}

func (im *Importer) requireImported() error {
	if !im.imported {
		return ErrNotImported
	}
	return nil
}

// cancelled wraps a context error as ErrCancelled.
func cancelled(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}

var errReaderClosed = errors.New("archive reader is closed")
