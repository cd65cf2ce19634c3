package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"

	"github.com/Faultbox/abcimport/internal/asset"
)

// Save writes doc to path: binary glTF for .glb, JSON with embedded
// buffers for .gltf.
func Save(doc *gltf.Document, path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".glb" && ext != ".gltf" {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if ext == ".glb" {
		return gltf.SaveBinary(doc, path)
	}
	for _, buf := range doc.Buffers {
		if buf.URI == "" && len(buf.Data) > 0 {
			buf.EmbeddedResource()
		}
	}
	return gltf.Save(doc, path)
}

// WriteAssets exports every mesh-like asset in assets to dir with the given
// extension and returns the written file per asset name. Skeletons and
// animation sequences are written with the skeletal mesh that uses them.
func WriteAssets(dir, ext string, assets []asset.Asset) (map[string]string, error) {
	var (
		skeletons = make(map[string]*asset.Skeleton)
		sequences = make(map[string]*asset.AnimSequence)
	)
	for _, a := range assets {
		switch v := a.(type) {
		case *asset.Skeleton:
			skeletons[v.Name] = v
		case *asset.AnimSequence:
			sequences[v.Skeleton] = v
		}
	}

	files := make(map[string]string)
	for _, a := range assets {
		var (
			doc *gltf.Document
			err error
		)
		switch v := a.(type) {
		case *asset.StaticMesh:
			doc, err = StaticMeshDocument(v)
		case *asset.GeometryCache:
			doc, err = GeometryCacheDocument(v)
		case *asset.SkeletalMesh:
			skeleton := v.Skeleton
			if skeleton == nil {
				for _, s := range skeletons {
					skeleton = s
					break
				}
			}
			var seq *asset.AnimSequence
			if skeleton != nil {
				seq = sequences[skeleton.Name]
			}
			doc, err = SkeletalMeshDocument(v, skeleton, seq)
			if err == nil && skeleton != nil {
				files[skeleton.Name] = filepath.Join(dir, v.Name+ext)
				if seq != nil {
					files[seq.Name] = filepath.Join(dir, v.Name+ext)
				}
			}
		default:
			continue
		}
		if err != nil {
			return files, fmt.Errorf("%s %s: %w", a.AssetKind(), a.AssetName(), err)
		}
		path := filepath.Join(dir, a.AssetName()+ext)
		if err := Save(doc, path); err != nil {
			return files, fmt.Errorf("%s %s: %w", a.AssetKind(), a.AssetName(), err)
		}
		files[a.AssetName()] = path
	}
	return files, nil
}
