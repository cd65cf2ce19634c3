package importer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/abcimport/internal/asset"
)

// ImportTrackData reads every frame of the selected tracks within the
// sampling window and prepares them for the output builders. Unselected
// tracks are dropped from the session.
func (im *Importer) ImportTrackData(ctx context.Context, settings Settings) error {
	started := time.Now()
	im.settings = settings
	im.imported = false
	im.compressed = nil
	im.numTotalMaterials = 0

	selected := im.tracks[:0]
	for _, t := range im.tracks {
		if t.ShouldImport {
			selected = append(selected, t)
		}
	}
	im.tracks = selected

	im.prepareMaterials()
	im.resolveArchiveBounds()

	w, err := im.computeWindow()
	if err != nil {
		return err
	}
	im.window = w
	// Later steps index samples from the effective start frame.
	im.settings.Sampling.FrameStart = w.Start

	if err := im.readTransforms(); err != nil {
		return err
	}
	im.cacheHierarchyTransforms(float32(w.Start)*w.TimeStep, float32(w.End)*w.TimeStep)

	if err := im.importFrames(ctx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}
	im.postProcess()
	im.imported = true

	im.log.Info("imported track data",
		zap.String("name", im.name),
		zap.Stringer("type", settings.ImportType),
		zap.Stringer("bake", settings.BakePolicy()),
		zap.Int("tracks", len(im.tracks)),
		zap.Int("start", w.Start),
		zap.Int("end", w.End),
		zap.Float32("time_step", w.TimeStep),
		zap.Int("materials", im.numTotalMaterials),
		zap.Duration("took", time.Since(started)))
	return nil
}

func (im *Importer) prepareMaterials() {
	ms := im.settings.Materials
	im.materials = asset.NewMaterialResolver(im.registry, ms.FindMaterials, ms.CreateMaterials)
	im.materials.Warn = func(msg string) { im.messages.Add(SeverityWarning, msg) }
	for _, t := range im.tracks {
		im.materials.Prepare(t.FaceSetNames)
	}
}

// resolveArchiveBounds sums track and transform bounds when the archive
// publishes none, then converts them.
func (im *Importer) resolveArchiveBounds() {
	b := im.archiveBounds
	if !b.Valid || nearlyZero(b.SphereRadius()) {
		for _, t := range im.tracks {
			b = b.Add(t.SelfBounds).Add(t.ChildBounds)
		}
		for _, n := range im.transforms {
			b = b.Add(n.SelfBounds).Add(n.ChildBounds)
		}
	}
	im.archiveBounds = im.settings.Conversion.ApplyToBounds(b)
}

// Import runs the builder selected by the import type of the last
// ImportTrackData call and returns the assets it registered.
func (im *Importer) Import(ctx context.Context) ([]asset.Asset, error) {
	if err := im.requireImported(); err != nil {
		return nil, err
	}
	switch im.settings.ImportType {
	case ImportStaticMesh:
		meshes, err := im.ImportAsStaticMesh(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]asset.Asset, len(meshes))
		for i, m := range meshes {
			out[i] = m
		}
		return out, nil
	case ImportGeometryCache:
		cache, err := im.ImportAsGeometryCache(ctx)
		if err != nil {
			return nil, err
		}
		return []asset.Asset{cache}, nil
	case ImportSkeletal:
		res, err := im.ImportAsSkeletalMesh(ctx)
		if err != nil {
			return nil, err
		}
		return []asset.Asset{res.Mesh, res.Skeleton, res.Sequence}, nil
	}
	return nil, fmt.Errorf("unknown import type %s", im.settings.ImportType)
}
