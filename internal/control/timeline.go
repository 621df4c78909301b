// Package control evaluates control-point timelines: timestamped values
// that animate a property either by stepping (set) or by linear
// interpolation toward the next point.
package control

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/drunkod/fcast/pkg/types"
)

// Timeline is the ordered sequence of control points for one property.
// The zero value is empty and ready to use.
type Timeline struct {
	points []types.ControlPoint
}

// Insert adds p, keeping points ordered by time. A point with the same
// timestamp or the same id is replaced.
func (tl *Timeline) Insert(p types.ControlPoint) {
	if p.ID != "" {
		tl.Remove(p.ID)
	}
	i := sort.Search(len(tl.points), func(i int) bool { return !tl.points[i].Time.Before(p.Time) })
	if i < len(tl.points) && tl.points[i].Time.Equal(p.Time) {
		tl.points[i] = p
		return
	}
	tl.points = append(tl.points, types.ControlPoint{})
	copy(tl.points[i+1:], tl.points[i:])
	tl.points[i] = p
}

// Remove deletes the point with the given id.
func (tl *Timeline) Remove(id string) bool {
	for i, p := range tl.points {
		if p.ID == id {
			tl.points = append(tl.points[:i], tl.points[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveAt deletes the point at exactly t.
func (tl *Timeline) RemoveAt(t time.Time) bool {
	for i, p := range tl.points {
		if p.Time.Equal(t) {
			tl.points = append(tl.points[:i], tl.points[i+1:]...)
			return true
		}
	}
	return false
}

func (tl *Timeline) Len() int { return len(tl.points) }

// Points returns a copy of the ordered points.
func (tl *Timeline) Points() []types.ControlPoint {
	out := make([]types.ControlPoint, len(tl.points))
	copy(out, tl.points)
	return out
}

// bracket returns the index of the latest point at or before t and the
// earliest point after t; -1 when absent.
func (tl *Timeline) bracket(t time.Time) (before, after int) {
	i := sort.Search(len(tl.points), func(i int) bool { return tl.points[i].Time.After(t) })
	before, after = i-1, i
	if after >= len(tl.points) {
		after = -1
	}
	return before, after
}

// Evaluate returns the property value at t. ok is false when t precedes
// every point and the first point steps (set) rather than interpolates.
func (tl *Timeline) Evaluate(t time.Time) (value any, ok bool) {
	if len(tl.points) == 0 {
		return nil, false
	}
	before, after := tl.bracket(t)
	if before < 0 {
		next := tl.points[after]
		if next.Mode == types.ModeInterpolate {
			return next.Value, true
		}
		return nil, false
	}
	p0 := tl.points[before]
	if p0.Mode != types.ModeInterpolate || after < 0 {
		return p0.Value, true
	}
	p1 := tl.points[after]
	v0, ok0 := AsFloat(p0.Value)
	v1, ok1 := AsFloat(p1.Value)
	if !ok0 || !ok1 {
		return p0.Value, true
	}
	span := p1.Time.Sub(p0.Time)
	ratio := float64(t.Sub(p0.Time)) / float64(span)
	ratio = min(max(ratio, 0), 1)
	return v0 + (v1-v0)*ratio, true
}

// Interpolating reports whether the value changes continuously around t,
// meaning callers must keep re-evaluating rather than wait for the next
// point.
func (tl *Timeline) Interpolating(t time.Time) bool {
	before, after := tl.bracket(t)
	if before < 0 || after < 0 {
		return false
	}
	p0, p1 := tl.points[before], tl.points[after]
	if p0.Mode != types.ModeInterpolate {
		return false
	}
	v0, ok0 := AsFloat(p0.Value)
	v1, ok1 := AsFloat(p1.Value)
	return ok0 && ok1 && v0 != v1
}

// Next returns the first point timestamp strictly after t.
func (tl *Timeline) Next(t time.Time) (time.Time, bool) {
	_, after := tl.bracket(t)
	if after < 0 {
		return time.Time{}, false
	}
	return tl.points[after].Time, true
}

// AsFloat converts JSON-ish numeric values to float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
