package importer

import (
	"github.com/Faultbox/abcimport/pkg/archive"
)

// traverse walks obj and its descendants. ancestors holds the transform
// nodes above obj and id identifies that chain. A new id is minted only
// below a transform object.
func (im *Importer) traverse(obj *archive.Object, ancestors []*TransformNode, id HierarchyID) {
	var node *TransformNode
	switch obj.Kind {
	case archive.KindPolyMesh:
		im.parsePolyMesh(obj, id)
	case archive.KindXform:
		node = im.parseXform(obj, id)
	}

	if len(ancestors) > 0 {
		im.hierarchies[id] = ancestors
	}

	if len(obj.Children) == 0 {
		return
	}
	childAncestors, childID := ancestors, id
	if node != nil {
		childAncestors = append(append([]*TransformNode(nil), ancestors...), node)
		im.nextID++
		childID = im.nextID
	}
	for _, child := range obj.Children {
		im.traverse(child, childAncestors, childID)
	}
}

func (im *Importer) parseXform(obj *archive.Object, id HierarchyID) *TransformNode {
	node := &TransformNode{
		Object:      obj,
		Name:        obj.Name,
		Constant:    obj.Constant,
		NumSamples:  obj.NumSamples,
		HierarchyID: id,
		SelfBounds:  obj.SelfBounds,
		ChildBounds: obj.ChildBounds,
	}
	node.StartTime, node.StartFrameIndex = obj.StartFrame()
	im.extendRange(obj, node.StartFrameIndex)
	im.transforms = append(im.transforms, node)
	return node
}

func (im *Importer) parsePolyMesh(obj *archive.Object, id HierarchyID) {
	track := &PolyMeshTrack{
		Object:       obj,
		Name:         obj.Name,
		ShouldImport: true,
		Constant:     obj.Constant,
		NumSamples:   obj.NumSamples,
		FaceSetNames: obj.FaceSetNames(),
		SelfBounds:   obj.SelfBounds,
		ChildBounds:  obj.ChildBounds,
		HierarchyID:  id,
	}
	track.StartTime, track.StartFrameIndex = obj.StartFrame()
	im.extendRange(obj, track.StartFrameIndex)
	im.tracks = append(im.tracks, track)
}

// extendRange grows the archive-wide time and frame range to cover obj.
func (im *Importer) extendRange(obj *archive.Object, startFrame int) {
	lo, hi := obj.TimeRange()
	im.minTime = min(im.minTime, lo)
	im.maxTime = max(im.maxTime, hi)
	im.numFrames = max(im.numFrames, obj.NumSamples)
	im.minFrameIndex = min(im.minFrameIndex, startFrame)
	im.maxFrameIndex = max(im.maxFrameIndex, startFrame+obj.NumSamples)
}
