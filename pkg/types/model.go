package types

import (
	"encoding/json"
	"fmt"
	"time"
)

type MediaKind string

const (
	Audio MediaKind = "audio"
	Video MediaKind = "video"
)

// MediaKinds lists every media kind in a stable order.
var MediaKinds = []MediaKind{Audio, Video}

type NodeKind string

const (
	KindSource         NodeKind = "source"
	KindDestination    NodeKind = "destination"
	KindMixer          NodeKind = "mixer"
	KindVideoGenerator NodeKind = "videogenerator"
)

// State is the scheduling state of a node.
type State string

const (
	StateInitial  State = "initial"
	StateStarting State = "starting"
	StateStarted  State = "started"
	StateStopped  State = "stopped"
)

// Stage is advisory pipeline telemetry, separate from State.
type Stage string

const (
	StageIdle       Stage = "idle"
	StagePrerolling Stage = "prerolling"
	StagePlaying    Stage = "playing"
)

// Caps records which media kinds a node handles.
type Caps struct {
	Audio bool `json:"audio"`
	Video bool `json:"video"`
}

func (c Caps) Has(k MediaKind) bool {
	switch k {
	case Audio:
		return c.Audio
	case Video:
		return c.Video
	}
	return false
}

func (c Caps) Empty() bool { return !c.Audio && !c.Video }

// Kinds returns the enabled media kinds.
func (c Caps) Kinds() []MediaKind {
	var out []MediaKind
	for _, k := range MediaKinds {
		if c.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

type ControlMode string

const (
	ModeSet         ControlMode = "set"
	ModeInterpolate ControlMode = "interpolate"
)

// ControlPoint is a timestamped target value for an animatable property.
type ControlPoint struct {
	ID    string      `json:"id"`
	Time  time.Time   `json:"time"`
	Value any         `json:"value"`
	Mode  ControlMode `json:"mode"`
}

// DestinationFamily selects the output a destination writes to.
// Exactly one of the fields is set.
type DestinationFamily struct {
	RTMP          *RTMPFamily      `json:"-"`
	UDP           *UDPFamily       `json:"-"`
	LocalFile     *LocalFileFamily `json:"-"`
	LocalPlayback bool             `json:"-"`
}

type RTMPFamily struct {
	URI string `json:"uri"`
}

type UDPFamily struct {
	Host string `json:"host"`
}

type LocalFileFamily struct {
	BaseName    string `json:"base_name"`
	MaxSizeTime *int64 `json:"max_size_time,omitempty"`
}

func (f DestinationFamily) Name() string {
	switch {
	case f.RTMP != nil:
		return "Rtmp"
	case f.UDP != nil:
		return "Udp"
	case f.LocalFile != nil:
		return "LocalFile"
	case f.LocalPlayback:
		return "LocalPlayback"
	}
	return ""
}

// Validate checks that exactly one family is selected with usable parameters.
func (f DestinationFamily) Validate() error {
	n := 0
	if f.RTMP != nil {
		n++
		if f.RTMP.URI == "" {
			return fmt.Errorf("rtmp family requires a uri")
		}
	}
	if f.UDP != nil {
		n++
		if f.UDP.Host == "" {
			return fmt.Errorf("udp family requires a host")
		}
	}
	if f.LocalFile != nil {
		n++
		if f.LocalFile.BaseName == "" {
			return fmt.Errorf("local file family requires a base_name")
		}
	}
	if f.LocalPlayback {
		n++
	}
	if n != 1 {
		return fmt.Errorf("exactly one destination family must be set")
	}
	return nil
}

func (f DestinationFamily) MarshalJSON() ([]byte, error) {
	switch {
	case f.RTMP != nil:
		return json.Marshal(map[string]any{"Rtmp": f.RTMP})
	case f.UDP != nil:
		return json.Marshal(map[string]any{"Udp": f.UDP})
	case f.LocalFile != nil:
		return json.Marshal(map[string]any{"LocalFile": f.LocalFile})
	case f.LocalPlayback:
		return []byte(`"LocalPlayback"`), nil
	}
	return []byte("null"), nil
}

func (f *DestinationFamily) UnmarshalJSON(b []byte) error {
	var unit string
	if err := json.Unmarshal(b, &unit); err == nil {
		if unit != "LocalPlayback" {
			return fmt.Errorf("unknown destination family %q", unit)
		}
		*f = DestinationFamily{LocalPlayback: true}
		return nil
	}
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(b, &tagged); err != nil {
		return fmt.Errorf("destination family: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("destination family must have exactly one variant")
	}
	out := DestinationFamily{}
	for tag, raw := range tagged {
		var err error
		switch tag {
		case "Rtmp":
			out.RTMP = &RTMPFamily{}
			err = json.Unmarshal(raw, out.RTMP)
		case "Udp":
			out.UDP = &UDPFamily{}
			err = json.Unmarshal(raw, out.UDP)
		case "LocalFile":
			out.LocalFile = &LocalFileFamily{}
			err = json.Unmarshal(raw, out.LocalFile)
		case "LocalPlayback":
			out.LocalPlayback = true
		default:
			return fmt.Errorf("unknown destination family %q", tag)
		}
		if err != nil {
			return fmt.Errorf("destination family %s: %w", tag, err)
		}
	}
	*f = out
	return nil
}
