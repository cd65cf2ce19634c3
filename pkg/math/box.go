package math

// Box is an axis-aligned bounding box. The zero value is an empty box.
type Box struct {
	Min, Max Vec3
	Valid    bool
}

// BoxFromPoints returns the bounds of the given points.
func BoxFromPoints(points []Vec3) Box {
	var b Box
	for _, p := range points {
		b = b.AddPoint(p)
	}
	return b
}

// AddPoint grows the box to include p.
func (b Box) AddPoint(p Vec3) Box {
	if !b.Valid {
		return Box{Min: p, Max: p, Valid: true}
	}
	b.Min = b.Min.Min(p)
	b.Max = b.Max.Max(p)
	return b
}

// Add returns the union of two boxes.
func (b Box) Add(other Box) Box {
	if !other.Valid {
		return b
	}
	if !b.Valid {
		return other
	}
	return Box{Min: b.Min.Min(other.Min), Max: b.Max.Max(other.Max), Valid: true}
}

// Center returns the box center.
func (b Box) Center() Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Extent returns half the box size.
func (b Box) Extent() Vec3 {
	return b.Max.Sub(b.Min).Scale(0.5)
}

// SphereRadius returns the radius of the sphere enclosing the box.
func (b Box) SphereRadius() float32 {
	if !b.Valid {
		return 0
	}
	return b.Extent().Length()
}

// Transform returns the bounds of the box corners transformed by m.
func (b Box) Transform(m Mat4) Box {
	if !b.Valid {
		return b
	}
	var out Box
	for i := 0; i < 8; i++ {
		corner := b.Min
		if i&1 != 0 {
			corner.X = b.Max.X
		}
		if i&2 != 0 {
			corner.Y = b.Max.Y
		}
		if i&4 != 0 {
			corner.Z = b.Max.Z
		}
		out = out.AddPoint(m.TransformPoint(corner))
	}
	return out
}
