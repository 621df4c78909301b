package bridge

import (
	"maps"
	"sync/atomic"
	"time"
)

// Format describes the media carried by subsequent samples, e.g.
// video/x-raw with width and height parameters.
type Format struct {
	Media  string
	Params map[string]string
}

func (f *Format) Equal(o *Format) bool {
	if f == nil || o == nil {
		return f == o
	}
	return f.Media == o.Media && maps.Equal(f.Params, o.Params)
}

// Frame is what a producer pushes. Format may be nil when unchanged.
type Frame struct {
	Format   *Format
	PTS      time.Duration
	Duration time.Duration
	Keyframe bool
	Data     []byte
}

// Sample is one frame shared by every consumer that received it. Each
// receiver must call Release exactly once; the payload is handed back
// to the producer's release hook when the last reference goes.
type Sample struct {
	PTS      time.Duration
	Duration time.Duration
	Keyframe bool
	Data     []byte

	refs atomic.Int32
	done func()
}

func newSample(fr Frame, refs int, done func()) *Sample {
	s := &Sample{PTS: fr.PTS, Duration: fr.Duration, Keyframe: fr.Keyframe, Data: fr.Data, done: done}
	s.refs.Store(int32(refs))
	if refs == 0 && done != nil {
		done()
	}
	return s
}

// Release drops one reference.
func (s *Sample) Release() {
	switch n := s.refs.Add(-1); {
	case n == 0:
		if s.done != nil {
			s.done()
		}
	case n < 0:
		panic("bridge: sample released too many times")
	}
}

type EventKind int

const (
	EventFormat EventKind = iota
	EventSample
	EventEOS
)

// Event is delivered to consumers. Sample events carry the format they
// were produced under, so a consumer always knows the format of a
// payload even when earlier events were dropped.
type Event struct {
	Kind   EventKind
	Format *Format
	Sample *Sample
}
