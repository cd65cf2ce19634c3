package asset

import (
	"fmt"
)

// MaterialResolver maps face set names onto material assets.
//
// Prepare runs once per import: with find enabled, names are looked up among
// registered materials; with create enabled, a new material is staged for
// every name. Resolve then returns the staged material, registering it on
// first use, or DefaultMaterial when the name is unknown.
type MaterialResolver struct {
	reg    *Registry
	find   bool
	create bool
	// Warn receives a message for every name that could not be found.
	Warn func(msg string)

	staged  map[string]*Material
	created map[string]bool
}

// NewMaterialResolver creates a resolver over reg.
func NewMaterialResolver(reg *Registry, find, create bool) *MaterialResolver {
	return &MaterialResolver{
		reg:     reg,
		find:    find,
		create:  create,
		staged:  make(map[string]*Material),
		created: make(map[string]bool),
	}
}

// Prepare stages materials for names. Find takes precedence over create.
func (r *MaterialResolver) Prepare(names []string) {
	for _, name := range names {
		if _, ok := r.staged[name]; ok {
			continue
		}
		switch {
		case r.find:
			if a, ok := r.reg.Find(KindMaterial, name); ok {
				r.staged[name] = a.(*Material)
				r.created[name] = true
				continue
			}
			if r.Warn != nil {
				r.Warn(fmt.Sprintf("Unable to find matching Material for Face Set %s, using default material instead.", name))
			}
		case r.create:
			r.staged[name] = &Material{Name: name}
		}
	}
}

// Resolve returns the material for name, registering staged materials with
// c the first time they are used.
func (r *MaterialResolver) Resolve(name string, c Creator) *Material {
	m, ok := r.staged[name]
	if !ok {
		return DefaultMaterial
	}
	if !r.created[name] {
		if existing, ok := r.reg.Find(KindMaterial, name); ok {
			m = existing.(*Material)
			r.staged[name] = m
		} else {
			c.Create(m)
		}
		r.created[name] = true
	}
	return m
}

// Refresh forgets materials that are no longer registered, such as those of
// a rolled back scope, so they are registered again on next use.
func (r *MaterialResolver) Refresh() {
	for name := range r.created {
		if _, ok := r.reg.Find(KindMaterial, name); !ok {
			delete(r.created, name)
		}
	}
}
