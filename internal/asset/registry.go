// Package asset is the store that import builders write their output into:
// typed, named assets that can be created, replaced, found and removed.
package asset

import (
	"fmt"
	"sort"
	"sync"
)

// Kind identifies the type of an asset.
type Kind uint8

// Asset kinds.
const (
	KindStaticMesh Kind = iota + 1
	KindGeometryCache
	KindSkeletalMesh
	KindSkeleton
	KindAnimSequence
	KindMaterial
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindStaticMesh:
		return "StaticMesh"
	case KindGeometryCache:
		return "GeometryCache"
	case KindSkeletalMesh:
		return "SkeletalMesh"
	case KindSkeleton:
		return "Skeleton"
	case KindAnimSequence:
		return "AnimSequence"
	case KindMaterial:
		return "Material"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// Asset is anything the registry can hold.
type Asset interface {
	AssetName() string
	AssetKind() Kind
}

// Creator registers assets. Both Registry and Scope implement it.
type Creator interface {
	Create(a Asset) Asset
}

type key struct {
	kind Kind
	name string
}

func keyOf(a Asset) key {
	return key{kind: a.AssetKind(), name: a.AssetName()}
}

// Registry holds assets keyed by kind and name.
type Registry struct {
	assets map[key]Asset
	seq    map[key]uint64
	next   uint64
	mu     sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		assets: make(map[key]Asset),
		seq:    make(map[key]uint64),
	}
}

// Create registers a, replacing any asset of the same kind and name. The
// replaced asset is returned, nil if there was none.
func (r *Registry) Create(a Asset) Asset {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := keyOf(a)
	prev := r.assets[k]
	r.assets[k] = a
	if prev == nil {
		r.next++
		r.seq[k] = r.next
	}
	return prev
}

// Find looks up an asset.
func (r *Registry) Find(kind Kind, name string) (Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.assets[key{kind: kind, name: name}]
	return a, ok
}

// Remove deletes an asset and reports whether it existed.
func (r *Registry) Remove(kind Kind, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{kind: kind, name: name}
	if _, ok := r.assets[k]; !ok {
		return false
	}
	delete(r.assets, k)
	delete(r.seq, k)
	return true
}

// List returns every asset in the order it was first created.
func (r *Registry) List() []Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]key, 0, len(r.assets))
	for k := range r.assets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return r.seq[keys[i]] < r.seq[keys[j]] })

	out := make([]Asset, len(keys))
	for i, k := range keys {
		out[i] = r.assets[k]
	}
	return out
}

// Len returns the number of registered assets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.assets)
}

// restore puts back prev, or removes the slot when prev is nil.
func (r *Registry) restore(k key, prev Asset) {
	if prev == nil {
		r.Remove(k.kind, k.name)
		return
	}
	r.Create(prev)
}

// Scope records the assets created through it so a failed or cancelled
// build can be rolled back as a unit. A Scope is not safe for concurrent use.
type Scope struct {
	reg     *Registry
	created []scoped
}

type scoped struct {
	key  key
	prev Asset
}

// NewScope starts a scope on r.
func (r *Registry) NewScope() *Scope {
	return &Scope{reg: r}
}

// Create registers a in the underlying registry and remembers it.
func (s *Scope) Create(a Asset) Asset {
	prev := s.reg.Create(a)
	s.created = append(s.created, scoped{key: keyOf(a), prev: prev})
	return prev
}

// Created returns the assets created through the scope, in order.
func (s *Scope) Created() []Asset {
	out := make([]Asset, 0, len(s.created))
	for _, c := range s.created {
		if a, ok := s.reg.Find(c.key.kind, c.key.name); ok {
			out = append(out, a)
		}
	}
	return out
}

// Rollback removes everything created through the scope, restoring any
// asset that was replaced.
func (s *Scope) Rollback() {
	for i := len(s.created) - 1; i >= 0; i-- {
		c := s.created[i]
		s.reg.restore(c.key, c.prev)
	}
	s.created = nil
}
