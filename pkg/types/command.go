package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Command is one of the closed set of graph commands. On the wire a
// command is an object with a single lowercase tag naming the variant.
type Command interface {
	Tag() string
}

type CreateSource struct {
	ID    string `json:"id"`
	URI   string `json:"uri"`
	Audio bool   `json:"audio"`
	Video bool   `json:"video"`
}

type CreateDestination struct {
	ID     string            `json:"id"`
	Family DestinationFamily `json:"family"`
	Audio  bool              `json:"audio"`
	Video  bool              `json:"video"`
}

type CreateMixer struct {
	ID     string         `json:"id"`
	Config map[string]any `json:"config,omitempty"`
	Audio  bool           `json:"audio"`
	Video  bool           `json:"video"`
}

type CreateVideoGenerator struct {
	ID     string         `json:"id"`
	Config map[string]any `json:"config,omitempty"`
}

// Connect links a producer to a consumer. MediaKind, when set to audio,
// video or both, overrides the Audio and Video flags.
type Connect struct {
	LinkID    string         `json:"link_id"`
	SrcID     string         `json:"src_id"`
	SinkID    string         `json:"sink_id"`
	Audio     bool           `json:"audio"`
	Video     bool           `json:"video"`
	MediaKind string         `json:"media_kind,omitempty"`
	Config    map[string]any `json:"config,omitempty"`
}

// Media returns the media kinds the link carries.
func (c Connect) Media() Caps {
	return Caps{Audio: c.Audio, Video: c.Video}
}

type Disconnect struct {
	LinkID string `json:"link_id"`
}

type Start struct {
	ID      string     `json:"id"`
	CueTime *time.Time `json:"cue_time,omitempty"`
	EndTime *time.Time `json:"end_time,omitempty"`
}

type Reschedule struct {
	ID      string     `json:"id"`
	CueTime *time.Time `json:"cue_time"`
	EndTime *time.Time `json:"end_time"`
}

type Remove struct {
	ID string `json:"id"`
}

// GetInfo describes one node, or every node when ID is empty.
type GetInfo struct {
	ID string `json:"id,omitempty"`
}

type AddControlPoint struct {
	ControlleeID string       `json:"controllee_id"`
	Property     string       `json:"property"`
	ControlPoint ControlPoint `json:"control_point"`
}

// RemoveControlPoint removes a point by ID, or by Time when ID is empty.
type RemoveControlPoint struct {
	ID           string     `json:"id,omitempty"`
	Time         *time.Time `json:"time,omitempty"`
	ControlleeID string     `json:"controllee_id"`
	Property     string     `json:"property"`
}

func (CreateSource) Tag() string         { return "createsource" }
func (CreateDestination) Tag() string    { return "createdestination" }
func (CreateMixer) Tag() string          { return "createmixer" }
func (CreateVideoGenerator) Tag() string { return "createvideogenerator" }
func (Connect) Tag() string              { return "connect" }
func (Disconnect) Tag() string           { return "disconnect" }
func (Start) Tag() string                { return "start" }
func (Reschedule) Tag() string           { return "reschedule" }
func (Remove) Tag() string               { return "remove" }
func (GetInfo) Tag() string              { return "getinfo" }
func (AddControlPoint) Tag() string      { return "addcontrolpoint" }
func (RemoveControlPoint) Tag() string   { return "removecontrolpoint" }

var decoders = map[string]func(json.RawMessage) (Command, error){
	"createsource": func(raw json.RawMessage) (Command, error) {
		c := CreateSource{Audio: true, Video: true}
		return c, decodeInto(raw, &c)
	},
	"createdestination": func(raw json.RawMessage) (Command, error) {
		c := CreateDestination{Audio: true, Video: true}
		return c, decodeInto(raw, &c)
	},
	"createmixer": func(raw json.RawMessage) (Command, error) {
		c := CreateMixer{Audio: true, Video: true}
		return c, decodeInto(raw, &c)
	},
	"createvideogenerator": func(raw json.RawMessage) (Command, error) {
		var c CreateVideoGenerator
		return c, decodeInto(raw, &c)
	},
	"connect": func(raw json.RawMessage) (Command, error) {
		c := Connect{Audio: true, Video: true}
		if err := decodeInto(raw, &c); err != nil {
			return c, err
		}
		switch c.MediaKind {
		case "":
		case string(Audio):
			c.Audio, c.Video = true, false
		case string(Video):
			c.Audio, c.Video = false, true
		case "both":
			c.Audio, c.Video = true, true
		default:
			return c, fmt.Errorf("unknown media_kind %q", c.MediaKind)
		}
		return c, nil
	},
	"disconnect": func(raw json.RawMessage) (Command, error) {
		var c Disconnect
		return c, decodeInto(raw, &c)
	},
	"start": func(raw json.RawMessage) (Command, error) {
		var c Start
		return c, decodeInto(raw, &c)
	},
	"reschedule": func(raw json.RawMessage) (Command, error) {
		var c Reschedule
		return c, decodeInto(raw, &c)
	},
	"remove": func(raw json.RawMessage) (Command, error) {
		var c Remove
		return c, decodeInto(raw, &c)
	},
	"getinfo": func(raw json.RawMessage) (Command, error) {
		var c GetInfo
		return c, decodeInto(raw, &c)
	},
	"addcontrolpoint": func(raw json.RawMessage) (Command, error) {
		var c AddControlPoint
		return c, decodeInto(raw, &c)
	},
	"removecontrolpoint": func(raw json.RawMessage) (Command, error) {
		var c RemoveControlPoint
		return c, decodeInto(raw, &c)
	},
}

func decodeInto(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// DecodeCommand parses a tagged command object.
func DecodeCommand(b []byte) (Command, error) {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(b, &tagged); err != nil {
		return nil, err
	}
	if len(tagged) != 1 {
		return nil, fmt.Errorf("command must have exactly one tag, got %d", len(tagged))
	}
	for tag, raw := range tagged {
		dec, ok := decoders[tag]
		if !ok {
			return nil, fmt.Errorf("unknown command %q", tag)
		}
		cmd, err := dec(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tag, err)
		}
		return cmd, nil
	}
	return nil, fmt.Errorf("empty command")
}

// MarshalCommand renders a command in its tagged wire form.
func MarshalCommand(c Command) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("nil command")
	}
	return json.Marshal(map[string]Command{c.Tag(): c})
}

// ControllerMessage is a command correlated with a caller-chosen id.
type ControllerMessage struct {
	ID      uuid.UUID
	Command Command
}

func (m ControllerMessage) MarshalJSON() ([]byte, error) {
	cmd, err := MarshalCommand(m.Command)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		ID      uuid.UUID       `json:"id"`
		Command json.RawMessage `json:"command"`
	}{m.ID, cmd})
}

func (m *ControllerMessage) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID      *uuid.UUID      `json:"id"`
		Command json.RawMessage `json:"command"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.ID == nil || raw.Command == nil {
		return fmt.Errorf("controller message requires id and command")
	}
	cmd, err := DecodeCommand(raw.Command)
	if err != nil {
		return err
	}
	m.ID, m.Command = *raw.ID, cmd
	return nil
}

// DecodeInbound accepts either a ControllerMessage or a bare command.
// The returned id is nil for bare commands.
func DecodeInbound(b []byte) (*uuid.UUID, Command, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(b, &probe); err != nil {
		return nil, nil, err
	}
	_, hasID := probe["id"]
	_, hasCmd := probe["command"]
	if hasID && hasCmd && len(probe) == 2 {
		var m ControllerMessage
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, nil, err
		}
		return &m.ID, m.Command, nil
	}
	cmd, err := DecodeCommand(b)
	if err != nil {
		return nil, nil, err
	}
	return nil, cmd, nil
}
