package node

import (
	"errors"
	"fmt"

	"github.com/drunkod/fcast/internal/control"
	"github.com/drunkod/fcast/pkg/types"
)

type SourceConfig struct {
	URI string
}

type DestinationConfig struct {
	Family types.DestinationFamily

	// AudioSlot and VideoSlot hold the id of the link feeding each
	// media, empty when unconnected.
	AudioSlot string
	VideoSlot string
}

type GeneratorConfig struct {
	Pattern string
	IsLive  bool
	Width   int
	Height  int
}

func (*SourceConfig) kind() types.NodeKind      { return types.KindSource }
func (*DestinationConfig) kind() types.NodeKind { return types.KindDestination }
func (*MixerConfig) kind() types.NodeKind       { return types.KindMixer }
func (*GeneratorConfig) kind() types.NodeKind   { return types.KindVideoGenerator }

func NewSource(id, uri string, caps types.Caps) (*Node, error) {
	if uri == "" {
		return nil, fmt.Errorf("source %s requires a uri", id)
	}
	return newNode(id, caps, &SourceConfig{URI: uri})
}

func NewDestination(id string, family types.DestinationFamily, caps types.Caps) (*Node, error) {
	if err := family.Validate(); err != nil {
		return nil, fmt.Errorf("destination %s: %w", id, err)
	}
	return newNode(id, caps, &DestinationConfig{Family: family})
}

// NewVideoGenerator builds a video-only test pattern source. Recognised
// config keys are pattern, is-live, width and height.
func NewVideoGenerator(id string, config map[string]any) (*Node, error) {
	cfg := &GeneratorConfig{Pattern: "ball", IsLive: true, Width: 1280, Height: 720}
	for key, v := range config {
		switch key {
		case "pattern":
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("setting `pattern` expects a string value")
			}
			cfg.Pattern = s
		case "is-live":
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("setting `is-live` expects a boolean value")
			}
			cfg.IsLive = b
		case "width", "height":
			f, ok := control.AsFloat(v)
			if !ok || f <= 0 {
				return nil, fmt.Errorf("setting `%s` expects a positive numeric value", key)
			}
			if key == "width" {
				cfg.Width = int(f)
			} else {
				cfg.Height = int(f)
			}
		default:
			return nil, fmt.Errorf("no setting with name %s on video generators", key)
		}
	}
	return newNode(id, types.Caps{Video: true}, cfg)
}

// ConnectInput claims the destination's slot for each media the link
// carries. Nothing changes on error.
func (d *DestinationConfig) ConnectInput(destID, link string, media types.Caps) error {
	if media.Audio && d.AudioSlot != "" {
		return fmt.Errorf("destination %s already has an audio input slot (%s)", destID, d.AudioSlot)
	}
	if media.Video && d.VideoSlot != "" {
		return fmt.Errorf("destination %s already has a video input slot (%s)", destID, d.VideoSlot)
	}
	if media.Audio {
		d.AudioSlot = link
	}
	if media.Video {
		d.VideoSlot = link
	}
	return nil
}

// DisconnectInput clears only the slots held by link.
func (d *DestinationConfig) DisconnectInput(link string) {
	if d.AudioSlot == link {
		d.AudioSlot = ""
	}
	if d.VideoSlot == link {
		d.VideoSlot = ""
	}
}

var ErrSlotMissing = errors.New("required input slot is not connected")

// StartReady checks that every enabled media has a connected slot.
func (d *DestinationConfig) StartReady(destID string, caps types.Caps) error {
	if caps.Audio && d.AudioSlot == "" {
		return fmt.Errorf("destination %s must have its audio slot connected before starting: %w", destID, ErrSlotMissing)
	}
	if caps.Video && d.VideoSlot == "" {
		return fmt.Errorf("destination %s must have its video slot connected before starting: %w", destID, ErrSlotMissing)
	}
	return nil
}
