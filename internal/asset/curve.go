package asset

import (
	"sort"
)

// DefaultKeyTolerance is the value tolerance used when pruning keys.
const DefaultKeyTolerance = 1e-4

// CurveKey is one keyframe.
type CurveKey struct {
	Time  float32
	Value float32
}

// FloatCurve is a named, linearly interpolated scalar curve.
type FloatCurve struct {
	Name string
	Keys []CurveKey
}

// AddKey inserts a key keeping keys sorted by time. A key at an existing
// time replaces its value.
func (c *FloatCurve) AddKey(t, v float32) {
	i := sort.Search(len(c.Keys), func(i int) bool { return c.Keys[i].Time >= t })
	if i < len(c.Keys) && c.Keys[i].Time == t {
		c.Keys[i].Value = v
		return
	}
	c.Keys = append(c.Keys, CurveKey{})
	copy(c.Keys[i+1:], c.Keys[i:])
	c.Keys[i] = CurveKey{Time: t, Value: v}
}

// Evaluate returns the curve value at t, holding the end values outside the
// keyed range. An empty curve evaluates to zero.
func (c *FloatCurve) Evaluate(t float32) float32 {
	n := len(c.Keys)
	switch {
	case n == 0:
		return 0
	case t <= c.Keys[0].Time:
		return c.Keys[0].Value
	case t >= c.Keys[n-1].Time:
		return c.Keys[n-1].Value
	}
	i := sort.Search(n, func(i int) bool { return c.Keys[i].Time > t })
	a, b := c.Keys[i-1], c.Keys[i]
	return lerpKeys(a, b, t)
}

func lerpKeys(a, b CurveKey, t float32) float32 {
	span := b.Time - a.Time
	if span <= 0 {
		return b.Value
	}
	alpha := (t - a.Time) / span
	return a.Value + (b.Value-a.Value)*alpha
}

// RemoveRedundantKeys drops interior keys that lie on the line between their
// kept neighbours, and collapses a flat curve to a single key.
func (c *FloatCurve) RemoveRedundantKeys(tolerance float32) {
	if len(c.Keys) < 2 {
		return
	}
	flat := true
	for _, k := range c.Keys[1:] {
		if abs32(k.Value-c.Keys[0].Value) > tolerance {
			flat = false
			break
		}
	}
	if flat {
		c.Keys = c.Keys[:1]
		return
	}

	kept := []CurveKey{c.Keys[0]}
	// Keys in [start, i] have been dropped since the last kept key.
	start := 1
	for i := 1; i < len(c.Keys)-1; i++ {
		prev := kept[len(kept)-1]
		next := c.Keys[i+1]
		onLine := true
		for j := start; j <= i; j++ {
			if abs32(lerpKeys(prev, next, c.Keys[j].Time)-c.Keys[j].Value) > tolerance {
				onLine = false
				break
			}
		}
		if onLine {
			continue
		}
		kept = append(kept, c.Keys[i])
		start = i + 1
	}
	kept = append(kept, c.Keys[len(c.Keys)-1])
	c.Keys = kept
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

// AnimSequence is an animation made only of float curves.
type AnimSequence struct {
	Name     string
	Skeleton string
	Length   float32
	Curves   []*FloatCurve
}

func (s *AnimSequence) AssetName() string { return s.Name }
func (s *AnimSequence) AssetKind() Kind   { return KindAnimSequence }

// Curve returns the named curve, adding an empty one if missing.
func (s *AnimSequence) Curve(name string) *FloatCurve {
	for _, c := range s.Curves {
		if c.Name == name {
			return c
		}
	}
	c := &FloatCurve{Name: name}
	s.Curves = append(s.Curves, c)
	return c
}

// FindCurve returns the named curve or nil.
func (s *AnimSequence) FindCurve(name string) *FloatCurve {
	for _, c := range s.Curves {
		if c.Name == name {
			return c
		}
	}
	return nil
}
