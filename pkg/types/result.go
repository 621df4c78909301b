package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CommandResult is the outcome of one command: success, an error
// message, or an info snapshot.
type CommandResult struct {
	Err  string
	Info *Info
}

func Success() CommandResult { return CommandResult{} }

func Failure(msg string) CommandResult { return CommandResult{Err: msg} }

func InfoResult(info Info) CommandResult { return CommandResult{Info: &info} }

func (r CommandResult) OK() bool { return r.Err == "" }

func (r CommandResult) MarshalJSON() ([]byte, error) {
	switch {
	case r.Err != "":
		return json.Marshal(map[string]string{"error": r.Err})
	case r.Info != nil:
		return json.Marshal(map[string]*Info{"info": r.Info})
	}
	return []byte(`"success"`), nil
}

func (r *CommandResult) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s != "success" {
			return fmt.Errorf("unknown result %q", s)
		}
		*r = Success()
		return nil
	}
	var tagged struct {
		Error *string `json:"error"`
		Info  *Info   `json:"info"`
	}
	if err := json.Unmarshal(b, &tagged); err != nil {
		return err
	}
	switch {
	case tagged.Error != nil:
		*r = Failure(*tagged.Error)
	case tagged.Info != nil:
		*r = CommandResult{Info: tagged.Info}
	default:
		return fmt.Errorf("result has neither error nor info")
	}
	return nil
}

// ServerMessage answers a command. ID echoes the ControllerMessage id
// and is null for bare commands and undecodable payloads.
type ServerMessage struct {
	ID     *uuid.UUID    `json:"id"`
	Result CommandResult `json:"result"`
}

type Info struct {
	Nodes map[string]NodeInfo `json:"nodes"`
}

// NodeInfo is tagged by node shape. Video generators report as sources.
type NodeInfo struct {
	Source      *SourceInfo
	Destination *DestinationInfo
	Mixer       *MixerInfo
}

func (n NodeInfo) MarshalJSON() ([]byte, error) {
	switch {
	case n.Source != nil:
		return json.Marshal(map[string]*SourceInfo{"source": n.Source})
	case n.Destination != nil:
		return json.Marshal(map[string]*DestinationInfo{"destination": n.Destination})
	case n.Mixer != nil:
		return json.Marshal(map[string]*MixerInfo{"mixer": n.Mixer})
	}
	return []byte("null"), nil
}

func (n *NodeInfo) UnmarshalJSON(b []byte) error {
	var tagged struct {
		Source      *SourceInfo      `json:"source"`
		Destination *DestinationInfo `json:"destination"`
		Mixer       *MixerInfo       `json:"mixer"`
	}
	if err := json.Unmarshal(b, &tagged); err != nil {
		return err
	}
	*n = NodeInfo{Source: tagged.Source, Destination: tagged.Destination, Mixer: tagged.Mixer}
	return nil
}

// Schedule returns the shared scheduling fields of whichever shape is set.
func (n NodeInfo) Schedule() ScheduleInfo {
	switch {
	case n.Source != nil:
		return n.Source.ScheduleInfo
	case n.Destination != nil:
		return n.Destination.ScheduleInfo
	case n.Mixer != nil:
		return n.Mixer.ScheduleInfo
	}
	return ScheduleInfo{}
}

type ScheduleInfo struct {
	CueTime   *time.Time `json:"cue_time"`
	EndTime   *time.Time `json:"end_time"`
	State     State      `json:"state"`
	Stage     Stage      `json:"stage"`
	LastError string     `json:"last_error,omitempty"`
}

type PipelineStats struct {
	FramesIn  uint64 `json:"frames_in"`
	FramesOut uint64 `json:"frames_out"`
	Dropped   uint64 `json:"dropped"`
}

type SourceInfo struct {
	ID                   string   `json:"id"`
	URI                  string   `json:"uri"`
	Audio                bool     `json:"audio"`
	Video                bool     `json:"video"`
	AudioConsumerSlotIDs []string `json:"audio_consumer_slot_ids"`
	VideoConsumerSlotIDs []string `json:"video_consumer_slot_ids"`
	ScheduleInfo
	Stats *PipelineStats `json:"stats,omitempty"`
}

type DestinationInfo struct {
	ID          string            `json:"id"`
	Family      DestinationFamily `json:"family"`
	Audio       bool              `json:"audio"`
	Video       bool              `json:"video"`
	AudioSlotID *string           `json:"audio_slot_id"`
	VideoSlotID *string           `json:"video_slot_id"`
	ScheduleInfo
	Stats *PipelineStats `json:"stats,omitempty"`
}

type SlotInfo struct {
	SrcID string `json:"src_id"`
	Audio bool   `json:"audio"`
	Video bool   `json:"video"`
}

type MixerInfo struct {
	ID                   string                               `json:"id"`
	Audio                bool                                 `json:"audio"`
	Video                bool                                 `json:"video"`
	Slots                map[string]SlotInfo                  `json:"slots"`
	AudioConsumerSlotIDs []string                             `json:"audio_consumer_slot_ids"`
	VideoConsumerSlotIDs []string                             `json:"video_consumer_slot_ids"`
	Settings             map[string]any                       `json:"settings"`
	ControlPoints        map[string][]ControlPoint            `json:"control_points"`
	SlotSettings         map[string]map[string]any            `json:"slot_settings"`
	SlotControlPoints    map[string]map[string][]ControlPoint `json:"slot_control_points"`
	ScheduleInfo
	Stats *PipelineStats `json:"stats,omitempty"`
}

// NodeStatus is pushed to listeners when a node changes state or fails.
type NodeStatus struct {
	ID    string    `json:"id"`
	State State     `json:"state"`
	Error string    `json:"error,omitempty"`
	At    time.Time `json:"at"`
}
