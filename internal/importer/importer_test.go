package importer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/abcimport/internal/asset"
	"github.com/Faultbox/abcimport/internal/meshutil"
	"github.com/Faultbox/abcimport/pkg/archive"
	"github.com/Faultbox/abcimport/pkg/math"
)

// quadMesh is a unit quad at height z. move displaces individual vertices.
func quadMesh(z float32, move map[int][3]float32) archive.SceneMesh {
	pos := [][3]float32{{0, 0, z}, {1, 0, z}, {1, 1, z}, {0, 1, z}}
	for v, d := range move {
		pos[v] = [3]float32{pos[v][0] + d[0], pos[v][1] + d[1], pos[v][2] + d[2]}
	}
	return archive.SceneMesh{
		Positions:   pos,
		FaceCounts:  []int32{4},
		FaceIndices: []int32{0, 1, 2, 3},
		UVs:         [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
	}
}

// stripMesh is two quads side by side.
func stripMesh(z float32) archive.SceneMesh {
	return archive.SceneMesh{
		Positions:   [][3]float32{{0, 0, z}, {1, 0, z}, {2, 0, z}, {0, 1, z}, {1, 1, z}, {2, 1, z}},
		FaceCounts:  []int32{4, 4},
		FaceIndices: []int32{0, 1, 4, 3, 1, 2, 5, 4},
	}
}

// bentStrip is stripMesh with its second quad folded up by 45 degrees,
// shifted along X by dx.
func bentStrip(dx float32) archive.SceneMesh {
	m := stripMesh(0)
	m.Positions[2][2] = 1
	m.Positions[5][2] = 1
	for i := range m.Positions {
		m.Positions[i][0] += dx
	}
	return m
}

// withNormals gives every face-vertex of m the normal n.
func withNormals(m archive.SceneMesh, n [3]float32) archive.SceneMesh {
	m.Normals = make([][3]float32, len(m.FaceIndices))
	for i := range m.Normals {
		m.Normals[i] = n
	}
	return m
}

func assertNearVec(t *testing.T, want, got math.Vec3, delta float64, msgAndArgs ...any) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, delta, msgAndArgs...)
	assert.InDelta(t, want.Y, got.Y, delta, msgAndArgs...)
	assert.InDelta(t, want.Z, got.Z, delta, msgAndArgs...)
}

func animatedQuads(n int) []archive.SceneMesh {
	meshes := make([]archive.SceneMesh, n)
	for i := range meshes {
		f := float32(i)
		meshes[i] = quadMesh(0, map[int][3]float32{
			0: {0.05 * f * f, 0, 0},
			2: {0, 0, 0.1 * f},
		})
	}
	return meshes
}

func translateX(xs ...float32) []archive.SceneXform {
	out := make([]archive.SceneXform, len(xs))
	for i, x := range xs {
		out[i] = archive.SceneXform{Translate: &[3]float32{x, 0, 0}}
	}
	return out
}

func identities(n int) []archive.SceneXform {
	out := make([]archive.SceneXform, n)
	for i := range out {
		m := math.Identity()
		out[i] = archive.SceneXform{Matrix: m[:]}
	}
	return out
}

func newTestImporter(t *testing.T, root *archive.SceneObject, opts ...Option) *Importer {
	t.Helper()
	r, err := archive.NewSceneReader(&archive.Scene{TimePerCycle: 1, Root: root})
	require.NoError(t, err)
	opts = append([]Option{WithLogger(zap.NewNop()), WithName("test")}, opts...)
	im, err := NewImporter(r, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { im.Close() })
	return im
}

func settingsFor(typ ImportType, start, end int) Settings {
	s := DefaultSettings()
	s.ImportType = typ
	s.Sampling.FrameStart = start
	s.Sampling.FrameEnd = end
	s.NumThreads = 2
	return s
}

func importTracks(t *testing.T, im *Importer, s Settings) {
	t.Helper()
	require.NoError(t, im.ImportTrackData(context.Background(), s))
}

func TestNewImporterErrors(t *testing.T) {
	r, err := archive.NewSceneReader(&archive.Scene{})
	require.NoError(t, err)
	_, err = NewImporter(r, WithLogger(zap.NewNop()))
	assert.ErrorIs(t, err, ErrNoValidTopObject)
	assert.Equal(t, StatusNoValidTopObject, StatusOf(err))

	r, err = archive.NewSceneReader(&archive.Scene{Root: &archive.SceneObject{
		Name:     "root",
		Children: []*archive.SceneObject{{Name: "xf", Type: "xform", Xforms: identities(1)}},
	}})
	require.NoError(t, err)
	_, err = NewImporter(r, WithLogger(zap.NewNop()))
	assert.ErrorIs(t, err, ErrNoMeshes)
	assert.Equal(t, StatusNoMeshes, StatusOf(err))
}

func TestOpenInvalidArchive(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.abc"), WithLogger(zap.NewNop()))
	assert.ErrorIs(t, err, ErrInvalidArchive)
	assert.Equal(t, StatusInvalidArchive, StatusOf(err))
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want Status
	}{
		{nil, StatusNoError},
		{ErrInvalidArchive, StatusInvalidArchive},
		{ErrNoValidTopObject, StatusNoValidTopObject},
		{ErrNoMeshes, StatusNoMeshes},
		{ErrInvalidFrameRange, StatusFailedToImportData},
		{ErrCancelled, StatusFailedToImportData},
		{errors.New("other"), StatusFailedToImportData},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusOf(tt.err), "%v", tt.err)
	}
	assert.Equal(t, "NoMeshes", StatusNoMeshes.String())
}

func TestTraverseHierarchy(t *testing.T) {
	im := newTestImporter(t, &archive.SceneObject{
		Name: "root",
		Children: []*archive.SceneObject{
			{Name: "loose", Type: "polymesh", Meshes: []archive.SceneMesh{quadMesh(0, nil)}},
			{
				Name: "A", Type: "xform", Xforms: translateX(0, 1, 2),
				Children: []*archive.SceneObject{{
					Name: "B", Type: "xform", Xforms: identities(1),
					Children: []*archive.SceneObject{
						{Name: "group", Children: []*archive.SceneObject{
							{Name: "deep", Type: "polymesh", Meshes: animatedQuads(3)},
						}},
					},
				}},
			},
		},
	})

	require.Len(t, im.PolyMeshes(), 2)
	require.Len(t, im.TransformNodes(), 2)
	assert.Equal(t, 2, im.NumMeshTracks())
	assert.Equal(t, 3, im.NumFrames())
	assert.Equal(t, 0, im.StartFrameIndex())
	assert.Equal(t, 3, im.EndFrameIndex())
	assert.True(t, im.ConcurrentReads())

	loose, deep := im.PolyMeshes()[0], im.PolyMeshes()[1]
	assert.Empty(t, im.Hierarchy(loose.HierarchyID))

	chain := im.Hierarchy(deep.HierarchyID)
	require.Len(t, chain, 2)
	assert.Equal(t, "A", chain[0].Name)
	assert.Equal(t, "B", chain[1].Name)
	assert.NotEqual(t, loose.HierarchyID, deep.HierarchyID)
	assert.True(t, chain[1].Constant)
	assert.False(t, chain[0].Constant)
}

func TestSelectTracks(t *testing.T) {
	im := newTestImporter(t, &archive.SceneObject{
		Name: "root",
		Children: []*archive.SceneObject{
			{Name: "a", Type: "polymesh", Meshes: []archive.SceneMesh{quadMesh(0, nil)}},
			{Name: "b", Type: "polymesh", Meshes: []archive.SceneMesh{quadMesh(1, nil)}},
		},
	})

	im.SelectTracks([]string{"nothing"})
	assert.Equal(t, []string{"a", "b"}, im.SelectedTrackNames())

	im.SelectTracks([]string{"b"})
	assert.Equal(t, []string{"b"}, im.SelectedTrackNames())

	importTracks(t, im, settingsFor(ImportStaticMesh, 0, 0))
	require.Len(t, im.PolyMeshes(), 1)
	assert.Equal(t, "b", im.PolyMeshes()[0].Name)
}

func TestComputeWindow(t *testing.T) {
	im := newTestImporter(t, &archive.SceneObject{
		Name: "root",
		Children: []*archive.SceneObject{
			{Name: "m", Type: "polymesh", Meshes: animatedQuads(4)},
		},
	})

	tests := []struct {
		name    string
		mutate  func(*Settings)
		want    Window
		wantErr bool
	}{
		{
			name:   "static mesh takes one frame",
			mutate: func(s *Settings) { s.ImportType = ImportStaticMesh },
			want:   Window{Start: 0, End: 1, TimeStep: 1, ImportLength: 0},
		},
		{
			name: "per frame",
			want: Window{Start: 0, End: 4, TimeStep: 1, ImportLength: 3},
		},
		{
			name:    "empty range",
			mutate:  func(s *Settings) { s.Sampling.FrameStart = 4 },
			wantErr: true,
		},
		{
			name: "per x frames",
			mutate: func(s *Settings) {
				s.Sampling.Type = SamplePerXFrames
				s.Sampling.FrameSteps = 2
			},
			// The original step is the cache length over the frame range.
			want: Window{Start: 0, End: 2, TimeStep: 1.5, ImportLength: 1.5},
		},
		{
			name: "per time step",
			mutate: func(s *Settings) {
				s.Sampling.Type = SamplePerTimeStep
				s.Sampling.TimeSteps = 0.375
			},
			want: Window{Start: 0, End: 8, TimeStep: 0.375, ImportLength: 2.625},
		},
		{
			name: "zero time step",
			mutate: func(s *Settings) {
				s.Sampling.Type = SamplePerTimeStep
				s.Sampling.TimeSteps = 0
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := settingsFor(ImportGeometryCache, 0, 4)
			if tt.mutate != nil {
				tt.mutate(&s)
			}
			im.settings = s
			w, err := im.computeWindow()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFrameRange)
				assert.ErrorIs(t, err, ErrFailedToImportData)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Start, w.Start)
			assert.Equal(t, tt.want.End, w.End)
			assert.InDelta(t, tt.want.TimeStep, w.TimeStep, 1e-6)
			assert.InDelta(t, tt.want.ImportLength, w.ImportLength, 1e-6)
		})
	}
}

func TestInvalidFrameRangeIsReported(t *testing.T) {
	im := newTestImporter(t, &archive.SceneObject{
		Name:     "root",
		Children: []*archive.SceneObject{{Name: "m", Type: "polymesh", Meshes: animatedQuads(2)}},
	})
	err := im.ImportTrackData(context.Background(), settingsFor(ImportGeometryCache, 3, 3))
	require.ErrorIs(t, err, ErrInvalidFrameRange)
	assert.Equal(t, StatusFailedToImportData, StatusOf(err))

	msgs := im.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, SeverityError, msgs[0].Severity)
	assert.Equal(t, "Invalid frame range specified 3 - 3.", msgs[0].Text)
}

func TestStaticMeshSingleFrameAccepted(t *testing.T) {
	im := newTestImporter(t, &archive.SceneObject{
		Name:     "root",
		Children: []*archive.SceneObject{{Name: "m", Type: "polymesh", Meshes: animatedQuads(3)}},
	})
	importTracks(t, im, settingsFor(ImportStaticMesh, 0, 0))
	assert.Equal(t, 1, im.Window().Span())
	require.Len(t, im.PolyMeshes()[0].Samples, 1)
}

func TestFrameChunks(t *testing.T) {
	w := Window{Start: 0, End: 3}
	assert.Equal(t, []frameChunk{{0, 3}}, frameChunks(w, 8))

	w = Window{Start: 2, End: 12}
	assert.Equal(t, []frameChunk{{2, 6}, {6, 10}, {10, 12}}, frameChunks(w, 3))

	assert.Equal(t, []frameChunk{{2, 12}}, frameChunks(w, 1))
}

func TestCachedTransformsDepthOne(t *testing.T) {
	im := newTestImporter(t, &archive.SceneObject{
		Name: "root",
		Children: []*archive.SceneObject{{
			Name: "A", Type: "xform", Xforms: translateX(0, 1, 2),
			Children: []*archive.SceneObject{
				{Name: "m", Type: "polymesh", Meshes: animatedQuads(3)},
			},
		}},
	})
	importTracks(t, im, settingsFor(ImportGeometryCache, 0, 3))

	track := im.PolyMeshes()[0]
	c, ok := im.CachedTransforms(track.HierarchyID)
	require.True(t, ok)
	assert.False(t, c.Constant)
	assert.False(t, track.ConstantTransformation)

	node := im.TransformNodes()[0]
	assert.Equal(t, node.MatrixSamples, c.Matrices)
	assert.Equal(t, []float32{0, 1, 2}, c.Times)
	for i, m := range c.Matrices {
		assert.True(t, m.NearlyEqual(math.Translate(float32(i), 0, 0), 1e-6), "matrix %d", i)
	}
}

func TestCachedTransformsIdentityChain(t *testing.T) {
	constant := func(name string, children ...*archive.SceneObject) *archive.SceneObject {
		return &archive.SceneObject{Name: name, Type: "xform", Constant: true, Xforms: identities(4), Children: children}
	}
	im := newTestImporter(t, &archive.SceneObject{
		Name: "root",
		Children: []*archive.SceneObject{
			constant("A", constant("B", constant("C",
				&archive.SceneObject{Name: "m", Type: "polymesh", Meshes: animatedQuads(4)},
			))),
		},
	})
	importTracks(t, im, settingsFor(ImportGeometryCache, 0, 4))

	track := im.PolyMeshes()[0]
	require.Len(t, im.Hierarchy(track.HierarchyID), 3)
	c, ok := im.CachedTransforms(track.HierarchyID)
	require.True(t, ok)
	assert.True(t, c.Constant)
	require.Len(t, c.Matrices, 1)
	assert.True(t, c.Matrices[0].IsIdentity())
	assert.True(t, track.ConstantTransformation)
}

func TestCachedTransformsComposition(t *testing.T) {
	scale := archive.SceneXform{Scale: &[3]float32{2, 2, 2}}
	im := newTestImporter(t, &archive.SceneObject{
		Name: "root",
		Children: []*archive.SceneObject{{
			Name: "A", Type: "xform", Xforms: translateX(0, 1, 2, 3),
			Children: []*archive.SceneObject{{
				Name: "B", Type: "xform", Constant: true, Xforms: []archive.SceneXform{scale},
				Children: []*archive.SceneObject{
					{Name: "m", Type: "polymesh", Meshes: animatedQuads(4)},
				},
			}},
		}},
	})
	importTracks(t, im, settingsFor(ImportGeometryCache, 0, 4))

	c, ok := im.CachedTransforms(im.PolyMeshes()[0].HierarchyID)
	require.True(t, ok)
	assert.False(t, c.Constant)
	require.Len(t, c.Matrices, 4)
	for i, m := range c.Matrices {
		p := m.TransformPoint(math.Vec3{X: 1})
		assert.InDelta(t, 2+float32(i), p.X, 1e-5, "sample %d", i)
	}
}

func TestCachedTransformsConversion(t *testing.T) {
	im := newTestImporter(t, &archive.SceneObject{
		Name: "root",
		Children: []*archive.SceneObject{
			{Name: "m", Type: "polymesh", Meshes: []archive.SceneMesh{quadMesh(0, nil)}},
		},
	})
	s := settingsFor(ImportGeometryCache, 0, 1)
	s.Conversion.Scale = math.Vec3{X: 2, Y: 2, Z: 2}
	importTracks(t, im, s)

	c, ok := im.CachedTransforms(0)
	require.True(t, ok)
	require.Len(t, c.Matrices, 1)
	assert.True(t, c.Matrices[0].NearlyEqual(math.Scale(2, 2, 2), 1e-6))
}

func TestRemoveDuplicateFrames(t *testing.T) {
	a := &meshutil.Sample{Vertices: []math.Vec3{{X: 1}}}
	b := &meshutil.Sample{Vertices: []math.Vec3{{X: 2}}}
	dup := func(s *meshutil.Sample) *meshutil.Sample { return s.Clone() }

	assert.Len(t, removeDuplicateFrames([]*meshutil.Sample{a, dup(a)}), 1)

	out := removeDuplicateFrames([]*meshutil.Sample{a, dup(a), dup(a), b})
	require.Len(t, out, 2)
	assert.Same(t, a, out[0])
	assert.Same(t, b, out[1])

	again := removeDuplicateFrames(out)
	assert.Equal(t, out, again)

	assert.Len(t, removeDuplicateFrames([]*meshutil.Sample{a, b, dup(a)}), 3)
}

func TestGeometryCacheDropsDuplicateFrames(t *testing.T) {
	same := quadMesh(0, nil)
	im := newTestImporter(t, &archive.SceneObject{
		Name: "root",
		Children: []*archive.SceneObject{
			{Name: "m", Type: "polymesh", Meshes: []archive.SceneMesh{same, same}},
		},
	})
	importTracks(t, im, settingsFor(ImportGeometryCache, 0, 2))
	require.Len(t, im.PolyMeshes()[0].Samples, 1)

	cache, err := im.ImportAsGeometryCache(context.Background())
	require.NoError(t, err)
	require.Len(t, cache.Tracks, 1)
	assert.Equal(t, asset.TrackFlipbook, cache.Tracks[0].Kind)
	assert.Len(t, cache.Tracks[0].Meshes, 1)
}

func TestPostProcessFillsAttributes(t *testing.T) {
	im := newTestImporter(t, &archive.SceneObject{
		Name:     "root",
		Children: []*archive.SceneObject{{Name: "m", Type: "polymesh", Meshes: animatedQuads(3)}},
	})
	importTracks(t, im, settingsFor(ImportGeometryCache, 0, 3))

	track := im.PolyMeshes()[0]
	assert.True(t, track.ConstantTopology)
	require.Len(t, track.Samples, 3)
	for i, s := range track.Samples {
		require.NoError(t, s.Validate())
		assert.True(t, s.HasNormals(), "sample %d", i)
		assert.Len(t, s.TangentX, len(s.Indices))
		assert.Len(t, s.SmoothingGroups, s.NumTriangles())
		assert.InDelta(t, float32(i), s.Time, 1e-6)
	}
	assert.Equal(t, 1, im.NumTotalMaterials())
}

func TestTrackWithoutFramesIsReported(t *testing.T) {
	im := newTestImporter(t, &archive.SceneObject{
		Name: "root",
		Children: []*archive.SceneObject{
			{Name: "early", Type: "polymesh", Meshes: animatedQuads(3)},
			{Name: "late", Type: "polymesh", Start: 10, Meshes: animatedQuads(2)},
		},
	})
	importTracks(t, im, settingsFor(ImportGeometryCache, 0, 3))

	late := im.PolyMeshes()[1]
	assert.Empty(t, late.Samples)
	var found bool
	for _, m := range im.Messages() {
		found = found || m.Text == "Unable to import valid frames for late, skipping object."
	}
	assert.True(t, found)

	cache, err := im.ImportAsGeometryCache(context.Background())
	require.NoError(t, err)
	assert.Len(t, cache.Tracks, 1)
}

func TestImportBeforeTrackData(t *testing.T) {
	im := newTestImporter(t, &archive.SceneObject{
		Name:     "root",
		Children: []*archive.SceneObject{{Name: "m", Type: "polymesh", Meshes: animatedQuads(2)}},
	})
	_, err := im.Import(context.Background())
	assert.ErrorIs(t, err, ErrNotImported)
}

func TestImportFromPackedArchive(t *testing.T) {
	scene, err := archive.NewSceneReader(&archive.Scene{TimePerCycle: 1, Root: &archive.SceneObject{
		Name: "root",
		Children: []*archive.SceneObject{{
			Name: "A", Type: "xform", Xforms: translateX(0, 1, 2, 3, 4, 5),
			Children: []*archive.SceneObject{
				{Name: "m", Type: "polymesh", Meshes: animatedQuads(6)},
			},
		}},
	}})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "shot 01.abcpack")
	require.NoError(t, archive.WritePack(path, scene))

	im, err := Open(path, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	defer im.Close()
	assert.Equal(t, "shot_01", im.Name())
	assert.False(t, im.ConcurrentReads())

	s := settingsFor(ImportGeometryCache, 0, 6)
	s.NumThreads = 4
	importTracks(t, im, s)
	require.Len(t, im.PolyMeshes()[0].Samples, 6)

	// The transform is baked into the flipbook samples.
	for i, smp := range im.PolyMeshes()[0].Samples {
		assert.InDelta(t, float32(i), smp.Vertices[1].X-1, 1e-5, "sample %d", i)
	}
}

func TestSettingsYAML(t *testing.T) {
	s := DefaultSettings()
	s.ImportType = ImportSkeletal
	s.Sampling.Type = SamplePerXFrames
	s.Compression.BaseCalculation = BasesFixed

	data, err := yaml.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), "import_type: skeletal")
	assert.Contains(t, string(data), "type: per_x_frames")
	assert.Contains(t, string(data), "base_calculation: fixed")

	var back Settings
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, s, back)

	var bad Settings
	err = yaml.Unmarshal([]byte("import_type: hologram\n"), &bad)
	assert.Error(t, err)
}

func TestParseEnums(t *testing.T) {
	typ, err := ParseImportType("Geometry-Cache")
	require.NoError(t, err)
	assert.Equal(t, ImportGeometryCache, typ)

	st, err := ParseSamplingType("PerTimeStep")
	require.NoError(t, err)
	assert.Equal(t, SamplePerTimeStep, st)

	bc, err := ParseBaseCalculation("percentage_based")
	require.NoError(t, err)
	assert.Equal(t, BasesPercentage, bc)

	_, err = ParseSamplingType("sometimes")
	assert.Error(t, err)
}

func TestBakePolicy(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		want   BakePolicy
	}{
		{"static merged", func(s *Settings) { s.ImportType = ImportStaticMesh }, BakeForStaticMesh},
		{"static separate", func(s *Settings) {
			s.ImportType = ImportStaticMesh
			s.StaticMesh.MergeMeshes = false
		}, BakeNone},
		{"skeletal baked", func(s *Settings) { s.ImportType = ImportSkeletal }, BakeForSkeletal},
		{"skeletal unbaked", func(s *Settings) {
			s.ImportType = ImportSkeletal
			s.Compression.BakeMatrixAnimation = false
		}, BakeNone},
		{"cache", func(s *Settings) { s.ImportType = ImportGeometryCache }, AlwaysBakeForCache},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			assert.Equal(t, tt.want, s.BakePolicy())
		})
	}
	assert.True(t, BakeForSkeletal.bakes(true))
	assert.False(t, AlwaysBakeForCache.bakes(true))
	assert.True(t, AlwaysBakeForCache.bakes(false))
	assert.False(t, BakeNone.bakes(false))
}

func TestGenerateNormals(t *testing.T) {
	// Corners 1 and 6 both sit on vertex 1, the first in the flat quad and
	// the second in the folded one.
	tests := []struct {
		name       string
		mesh       archive.SceneMesh
		force      bool
		recompute  bool
		wantGroups int
		check      func(t *testing.T, s *meshutil.Sample)
	}{
		{
			name:       "hard edge splits groups",
			mesh:       bentStrip(0),
			wantGroups: 2,
			check: func(t *testing.T, s *meshutil.Sample) {
				assert.NotEqual(t, s.SmoothingGroups[0], s.SmoothingGroups[2])
				assertNearVec(t, math.Vec3{Z: 1}, s.Normals[1], 1e-5)
				assertNearVec(t, math.Vec3{X: -1, Z: 1}.Normalize(), s.Normals[6], 1e-5)
			},
		},
		{
			name:       "forced single group",
			mesh:       bentStrip(0),
			force:      true,
			wantGroups: 1,
			check: func(t *testing.T, s *meshutil.Sample) {
				assert.Equal(t, make([]uint32, s.NumTriangles()), s.SmoothingGroups)
				want := math.Vec3{X: -2, Z: 3}.Normalize()
				assertNearVec(t, want, s.Normals[1], 1e-5)
				assertNearVec(t, want, s.Normals[6], 1e-5)
			},
		},
		{
			name:       "supplied normals kept",
			mesh:       withNormals(quadMesh(0, nil), [3]float32{1, 0, 0}),
			wantGroups: 1,
			check: func(t *testing.T, s *meshutil.Sample) {
				for c, n := range s.Normals {
					assertNearVec(t, math.Vec3{X: 1}, n, 1e-6, "corner %d", c)
				}
			},
		},
		{
			name:       "supplied normals recomputed",
			mesh:       withNormals(quadMesh(0, nil), [3]float32{1, 0, 0}),
			recompute:  true,
			wantGroups: 1,
			check: func(t *testing.T, s *meshutil.Sample) {
				for c, n := range s.Normals {
					assertNearVec(t, math.Vec3{Z: 1}, n, 1e-6, "corner %d", c)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			im := newTestImporter(t, &archive.SceneObject{
				Name:     "root",
				Children: []*archive.SceneObject{{Name: "m", Type: "polymesh", Meshes: []archive.SceneMesh{tt.mesh}}},
			})
			s := settingsFor(ImportGeometryCache, 0, 1)
			s.Normals.ForceOneSmoothingGroupPerObject = tt.force
			s.Normals.RecomputeNormals = tt.recompute
			importTracks(t, im, s)

			samples := im.PolyMeshes()[0].Samples
			require.Len(t, samples, 1)
			sample := samples[0]
			require.Len(t, sample.Normals, len(sample.Indices))
			require.Len(t, sample.SmoothingGroups, sample.NumTriangles())
			assert.Equal(t, tt.wantGroups, sample.NumSmoothingGroups)
			tt.check(t, sample)
		})
	}
}

func TestForcedGroupReusedOnLaterFrames(t *testing.T) {
	meshes := []archive.SceneMesh{
		withNormals(bentStrip(0), [3]float32{0, 0, 1}),
		bentStrip(1),
		bentStrip(2),
	}
	im := newTestImporter(t, &archive.SceneObject{
		Name:     "root",
		Children: []*archive.SceneObject{{Name: "m", Type: "polymesh", Meshes: meshes}},
	})
	s := settingsFor(ImportGeometryCache, 0, 3)
	s.Normals.ForceOneSmoothingGroupPerObject = true
	importTracks(t, im, s)

	samples := im.PolyMeshes()[0].Samples
	require.Len(t, samples, 3)
	want := math.Vec3{X: -2, Z: 3}.Normalize()
	for i, smp := range samples[1:] {
		assert.Equal(t, 1, smp.NumSmoothingGroups, "frame %d", i+1)
		assertNearVec(t, want, smp.Normals[1], 1e-5, "frame %d", i+1)
		assertNearVec(t, want, smp.Normals[6], 1e-5, "frame %d", i+1)
	}
}

func TestVaryingTopologyNormalsPerFrame(t *testing.T) {
	im := newTestImporter(t, &archive.SceneObject{
		Name: "root",
		Children: []*archive.SceneObject{{Name: "m", Type: "polymesh", Meshes: []archive.SceneMesh{
			withNormals(quadMesh(0, nil), [3]float32{1, 0, 0}),
			bentStrip(0),
			quadMesh(1, nil),
		}}},
	})
	importTracks(t, im, settingsFor(ImportGeometryCache, 0, 3))

	track := im.PolyMeshes()[0]
	assert.False(t, track.ConstantTopology)
	require.Len(t, track.Samples, 3)

	wantGroups := []int{1, 2, 1}
	for i, s := range track.Samples {
		require.Len(t, s.Normals, len(s.Indices), "frame %d", i)
		assert.Len(t, s.SmoothingGroups, s.NumTriangles(), "frame %d", i)
		assert.Equal(t, wantGroups[i], s.NumSmoothingGroups, "frame %d", i)
	}
	// Frame 0's own normals are replaced once topology varies.
	assertNearVec(t, math.Vec3{Z: 1}, track.Samples[0].Normals[0], 1e-6)
	assertNearVec(t, math.Vec3{X: -1, Z: 1}.Normalize(), track.Samples[1].Normals[6], 1e-5)
}

func TestLateTrackBaking(t *testing.T) {
	scene := func() *archive.SceneObject {
		return &archive.SceneObject{
			Name: "root",
			Children: []*archive.SceneObject{{
				Name: "mover", Type: "xform", Start: 2, Xforms: translateX(10, 20, 30),
				Children: []*archive.SceneObject{
					{Name: "late", Type: "polymesh", Start: 2, Meshes: animatedQuads(3)},
				},
			}},
		}
	}

	tests := []struct {
		name      string
		skipEmpty bool
		wantStart int
		wantTimes []float32
	}{
		{"skip empty frames", true, 2, []float32{0, 1, 2}},
		{"keep empty frames", false, 0, []float32{2, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			im := newTestImporter(t, scene())
			s := settingsFor(ImportSkeletal, 0, 5)
			s.Sampling.SkipEmpty = tt.skipEmpty
			importTracks(t, im, s)

			assert.Equal(t, tt.wantStart, im.Window().Start)
			assert.Equal(t, 5, im.Window().End)
			track := im.PolyMeshes()[0]
			assert.Equal(t, 2, track.StartFrameIndex)
			require.Len(t, track.Samples, 3)
			for i, smp := range track.Samples {
				assert.InDelta(t, tt.wantTimes[i], smp.Time, 1e-6, "sample %d", i)
				// Vertex 1 never moves locally, so only the baked parent places it.
				assert.InDelta(t, 1+10*float32(i+1), smp.Vertices[1].X, 1e-5, "sample %d", i)
			}
		})
	}
}
