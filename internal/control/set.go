package control

import (
	"maps"
	"time"

	"github.com/drunkod/fcast/pkg/types"
)

// Set holds one timeline per property.
type Set map[string]*Timeline

// Insert adds p to the named property's timeline, creating it on demand.
func (s Set) Insert(property string, p types.ControlPoint) {
	tl, ok := s[property]
	if !ok {
		tl = &Timeline{}
		s[property] = tl
	}
	tl.Insert(p)
}

// Remove deletes a point by id, or by timestamp when id is empty. An
// emptied timeline is dropped.
func (s Set) Remove(property, id string, at *time.Time) bool {
	tl, ok := s[property]
	if !ok {
		return false
	}
	var removed bool
	switch {
	case id != "":
		removed = tl.Remove(id)
	case at != nil:
		removed = tl.RemoveAt(*at)
	}
	if tl.Len() == 0 {
		delete(s, property)
	}
	return removed
}

// Apply overlays every property's value at t onto a copy of base.
// Properties without a value at t keep their base value.
func (s Set) Apply(base map[string]any, t time.Time) map[string]any {
	out := maps.Clone(base)
	if out == nil {
		out = map[string]any{}
	}
	for prop, tl := range s {
		if v, ok := tl.Evaluate(t); ok {
			out[prop] = v
		}
	}
	return out
}

// Deadline returns when the set next needs evaluating after t. When any
// property is mid-interpolation the answer is t+step.
func (s Set) Deadline(t time.Time, step time.Duration) (time.Time, bool) {
	var next time.Time
	found := false
	for _, tl := range s {
		if tl.Interpolating(t) {
			return t.Add(step), true
		}
		if at, ok := tl.Next(t); ok && (!found || at.Before(next)) {
			next, found = at, true
		}
	}
	return next, found
}

// Snapshot copies every timeline's points, keyed by property.
func (s Set) Snapshot() map[string][]types.ControlPoint {
	out := make(map[string][]types.ControlPoint, len(s))
	for prop, tl := range s {
		out[prop] = tl.Points()
	}
	return out
}
