package control

import (
	"testing"
	"time"

	"github.com/drunkod/fcast/pkg/types"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(sec float64) time.Time {
	return epoch.Add(time.Duration(sec * float64(time.Second)))
}

func point(sec float64, v any, mode types.ControlMode) types.ControlPoint {
	return types.ControlPoint{Time: at(sec), Value: v, Mode: mode}
}

func TestSetSemantics(t *testing.T) {
	var tl Timeline
	tl.Insert(point(0, "v0", types.ModeSet))
	tl.Insert(point(10, "v1", types.ModeSet))

	tests := []struct {
		t      float64
		want   any
		wantOK bool
	}{
		{-1, nil, false},
		{0, "v0", true},
		{5, "v0", true},
		{10, "v1", true},
		{15, "v1", true},
	}
	for _, tt := range tests {
		got, ok := tl.Evaluate(at(tt.t))
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("Evaluate(%v) = %v, %v; want %v, %v", tt.t, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestInterpolateSemantics(t *testing.T) {
	var tl Timeline
	tl.Insert(point(0, 0.0, types.ModeInterpolate))
	tl.Insert(point(10, 100.0, types.ModeInterpolate))

	tests := []struct {
		t    float64
		want float64
	}{
		{-5, 0},
		{0, 0},
		{2.5, 25},
		{5, 50},
		{10, 100},
		{20, 100},
	}
	for _, tt := range tests {
		got, ok := tl.Evaluate(at(tt.t))
		if !ok {
			t.Fatalf("Evaluate(%v) returned no value", tt.t)
		}
		f, _ := AsFloat(got)
		if f != tt.want {
			t.Errorf("Evaluate(%v) = %v, want %v", tt.t, f, tt.want)
		}
	}
}

func TestInterpolateBackwardHoldUsesFirstPoint(t *testing.T) {
	var tl Timeline
	tl.Insert(point(5, 42.0, types.ModeInterpolate))
	got, ok := tl.Evaluate(at(0))
	if !ok || got != 42.0 {
		t.Errorf("Evaluate before first interpolate point = %v, %v", got, ok)
	}
}

func TestNonNumericInterpolateStepsLikeSet(t *testing.T) {
	var tl Timeline
	tl.Insert(point(0, "a.png", types.ModeInterpolate))
	tl.Insert(point(10, "b.png", types.ModeInterpolate))
	if got, _ := tl.Evaluate(at(5)); got != "a.png" {
		t.Errorf("Evaluate(5) = %v, want a.png", got)
	}
	if tl.Interpolating(at(5)) {
		t.Error("non-numeric segment should not report interpolating")
	}
}

func TestMixedModesBoundary(t *testing.T) {
	var tl Timeline
	tl.Insert(point(0, 0.0, types.ModeSet))
	tl.Insert(point(10, 100.0, types.ModeInterpolate))
	tl.Insert(point(20, 0.0, types.ModeSet))

	if got, _ := tl.Evaluate(at(5)); got != 0.0 {
		t.Errorf("set segment should hold: got %v", got)
	}
	if got, _ := tl.Evaluate(at(10)); got != 100.0 {
		t.Errorf("boundary point owns its timestamp: got %v", got)
	}
	if got, _ := tl.Evaluate(at(15)); got != 50.0 {
		t.Errorf("interpolate segment: got %v", got)
	}
}

func TestInsertReplacesSameTimestamp(t *testing.T) {
	var tl Timeline
	tl.Insert(types.ControlPoint{ID: "a", Time: at(1), Value: 1.0, Mode: types.ModeSet})
	tl.Insert(types.ControlPoint{ID: "b", Time: at(1), Value: 2.0, Mode: types.ModeSet})
	if tl.Len() != 1 {
		t.Fatalf("len = %d, want 1", tl.Len())
	}
	if got, _ := tl.Evaluate(at(1)); got != 2.0 {
		t.Errorf("last write should win, got %v", got)
	}

	tl.Insert(types.ControlPoint{ID: "b", Time: at(3), Value: 3.0, Mode: types.ModeSet})
	if tl.Len() != 1 || tl.Points()[0].Time != at(3) {
		t.Errorf("re-inserting an id should move it: %+v", tl.Points())
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	var tl Timeline
	tl.Insert(point(0, 0.0, types.ModeInterpolate))
	tl.Insert(point(10, 100.0, types.ModeInterpolate))
	first, _ := tl.Evaluate(at(3))
	for i := 0; i < 5; i++ {
		if got, _ := tl.Evaluate(at(3)); got != first {
			t.Fatalf("evaluation %d = %v, want %v", i, got, first)
		}
	}
}

func TestSetApplyAndDeadline(t *testing.T) {
	s := Set{}
	s.Insert("width", point(10, 640.0, types.ModeSet))
	base := map[string]any{"width": 1920.0, "height": 1080.0}

	got := s.Apply(base, at(0))
	if got["width"] != 1920.0 {
		t.Errorf("before first set point the default holds, got %v", got["width"])
	}
	got = s.Apply(base, at(10))
	if got["width"] != 640.0 || got["height"] != 1080.0 {
		t.Errorf("apply = %v", got)
	}
	if base["width"] != 1920.0 {
		t.Error("Apply must not mutate base")
	}

	next, ok := s.Deadline(at(0), 40*time.Millisecond)
	if !ok || !next.Equal(at(10)) {
		t.Errorf("deadline = %v, %v", next, ok)
	}

	s.Insert("height", point(0, 0.0, types.ModeInterpolate))
	s.Insert("height", point(10, 10.0, types.ModeSet))
	next, ok = s.Deadline(at(1), 40*time.Millisecond)
	if !ok || !next.Equal(at(1).Add(40*time.Millisecond)) {
		t.Errorf("interpolating deadline = %v, %v", next, ok)
	}

	if !s.Remove("width", "", ptr(at(10))) {
		t.Error("remove by timestamp failed")
	}
	if _, ok := s["width"]; ok {
		t.Error("empty timeline should be dropped")
	}
	if s.Remove("missing", "x", nil) {
		t.Error("remove on missing property should report false")
	}
}

func ptr[T any](v T) *T { return &v }
