package node

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"strings"
	"time"

	"github.com/drunkod/fcast/internal/control"
	"github.com/drunkod/fcast/pkg/types"
)

var (
	// ErrUnknownProperty marks a property that cannot be set or animated.
	ErrUnknownProperty = errors.New("unknown property")
	// ErrBadValue marks a value of the wrong type for its property.
	ErrBadValue = errors.New("bad value")
)

// MixerConfig composes its input slots into one output. Settings hold
// the configured values; Active holds them with control points applied.
type MixerConfig struct {
	Settings map[string]any
	Active   map[string]any
	Controls control.Set
	Slots    map[string]*Slot
}

// Slot is one mixer input, keyed by the id of the link feeding it.
// Setting keys have the form media::property, e.g. video::alpha.
type Slot struct {
	SrcID    string
	Media    types.Caps
	Settings map[string]any
	Active   map[string]any
	Controls control.Set
}

func mixerDefaults() map[string]any {
	return map[string]any{
		"width":            1920,
		"height":           1080,
		"sample-rate":      48000,
		"fallback-image":   "",
		"fallback-timeout": 500,
	}
}

// NewMixer validates config against the known mixer settings and fills
// in defaults for the rest.
func NewMixer(id string, config map[string]any, caps types.Caps) (*Node, error) {
	settings := mixerDefaults()
	for k, v := range config {
		if err := ValidateMixerSetting(k, v); err != nil {
			return nil, fmt.Errorf("mixer %s: %w", id, err)
		}
		settings[k] = v
	}
	return newNode(id, caps, &MixerConfig{
		Settings: settings,
		Active:   maps.Clone(settings),
		Controls: control.Set{},
		Slots:    map[string]*Slot{},
	})
}

func ValidateMixerSetting(name string, v any) error {
	switch name {
	case "width", "height", "sample-rate", "fallback-timeout":
		if _, ok := control.AsFloat(v); !ok {
			return fmt.Errorf("%w: setting `%s` expects a numeric value", ErrBadValue, name)
		}
	case "fallback-image":
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%w: setting `fallback-image` expects a string value", ErrBadValue)
		}
	default:
		return fmt.Errorf("%w: no setting with name %s on mixers", ErrUnknownProperty, name)
	}
	return nil
}

// ParseSlotKey splits media::property.
func ParseSlotKey(key string) (types.MediaKind, string, error) {
	media, prop, ok := strings.Cut(key, "::")
	if !ok || prop == "" {
		return "", "", fmt.Errorf("%w: slot property %q must be in form media-type::property-name", ErrUnknownProperty, key)
	}
	switch types.MediaKind(media) {
	case types.Audio, types.Video:
		return types.MediaKind(media), prop, nil
	}
	return "", "", fmt.Errorf("%w: slot property media type must be one of [audio, video], got %q", ErrUnknownProperty, media)
}

// ValidateSlotProperty checks that key names a property of a slot
// carrying media.
func ValidateSlotProperty(key string, media types.Caps) error {
	kind, prop, err := ParseSlotKey(key)
	if err != nil {
		return err
	}
	if !media.Has(kind) {
		return fmt.Errorf("%w: cannot set %s, %s is not enabled for this link", ErrUnknownProperty, key, kind)
	}
	switch {
	case kind == types.Video && oneOf(prop, "x", "y", "width", "height", "zorder", "alpha"),
		kind == types.Audio && prop == "volume":
		return nil
	}
	return fmt.Errorf("%w: no slot property %s", ErrUnknownProperty, key)
}

// ValidateSlotSetting checks key and value for a slot carrying media.
func ValidateSlotSetting(key string, v any, media types.Caps) error {
	if err := ValidateSlotProperty(key, media); err != nil {
		return err
	}
	if _, ok := control.AsFloat(v); !ok {
		return fmt.Errorf("%w: %s expects a numeric value", ErrBadValue, key)
	}
	return nil
}

func oneOf(s string, options ...string) bool {
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}

func (m *MixerConfig) slotDefaults(media types.Caps) map[string]any {
	out := map[string]any{}
	if media.Video {
		out["video::x"] = 0
		out["video::y"] = 0
		out["video::width"] = m.Settings["width"]
		out["video::height"] = m.Settings["height"]
		out["video::alpha"] = 1.0
		out["video::zorder"] = 0
	}
	if media.Audio {
		out["audio::volume"] = 1.0
	}
	return out
}

// ConnectSlot adds an input slot for link. Nothing changes on error.
func (m *MixerConfig) ConnectSlot(link, srcID string, media types.Caps, config map[string]any) error {
	if _, ok := m.Slots[link]; ok {
		return fmt.Errorf("mixer already has a slot with id %s", link)
	}
	settings := m.slotDefaults(media)
	for k, v := range config {
		if err := ValidateSlotSetting(k, v, media); err != nil {
			return err
		}
		settings[k] = v
	}
	m.Slots[link] = &Slot{
		SrcID:    srcID,
		Media:    media,
		Settings: settings,
		Active:   maps.Clone(settings),
		Controls: control.Set{},
	}
	return nil
}

func (m *MixerConfig) DisconnectSlot(link string) {
	delete(m.Slots, link)
}

// AddControlPoint animates a mixer setting.
func (m *MixerConfig) AddControlPoint(property string, cp types.ControlPoint) error {
	if err := ValidateMixerSetting(property, cp.Value); err != nil {
		return err
	}
	m.Controls.Insert(property, cp)
	return nil
}

// AddSlotControlPoint animates a slot property.
func (m *MixerConfig) AddSlotControlPoint(link, property string, cp types.ControlPoint) error {
	slot, ok := m.Slots[link]
	if !ok {
		return fmt.Errorf("%w: mixer has no slot with id %s", ErrUnknownProperty, link)
	}
	if err := ValidateSlotSetting(property, cp.Value, slot.Media); err != nil {
		return err
	}
	slot.Controls.Insert(property, cp)
	return nil
}

// Evaluate recomputes Active settings at t and reports whether any
// value changed.
func (m *MixerConfig) Evaluate(t time.Time) bool {
	changed := false
	active := m.Controls.Apply(m.Settings, t)
	if !reflect.DeepEqual(active, m.Active) {
		m.Active, changed = active, true
	}
	for _, s := range m.Slots {
		active := s.Controls.Apply(s.Settings, t)
		if !reflect.DeepEqual(active, s.Active) {
			s.Active, changed = active, true
		}
	}
	return changed
}

// Deadline returns when control points next need evaluating.
func (m *MixerConfig) Deadline(t time.Time, step time.Duration) (time.Time, bool) {
	next, found := m.Controls.Deadline(t, step)
	for _, s := range m.Slots {
		if at, ok := s.Controls.Deadline(t, step); ok && (!found || at.Before(next)) {
			next, found = at, true
		}
	}
	return next, found
}

// SlotSettings returns the active settings of every slot.
func (m *MixerConfig) SlotSettings() map[string]map[string]any {
	out := make(map[string]map[string]any, len(m.Slots))
	for id, s := range m.Slots {
		out[id] = maps.Clone(s.Active)
	}
	return out
}

// RemoveControlPoint drops a mixer setting point by id, or by time when
// id is empty. ok is false when no such point exists.
func (m *MixerConfig) RemoveControlPoint(property, id string, at *time.Time) (bool, error) {
	if _, known := m.Settings[property]; !known {
		return false, fmt.Errorf("%w: no setting with name %s on mixers", ErrUnknownProperty, property)
	}
	return m.Controls.Remove(property, id, at), nil
}

func (m *MixerConfig) RemoveSlotControlPoint(link, property, id string, at *time.Time) (bool, error) {
	slot, ok := m.Slots[link]
	if !ok {
		return false, fmt.Errorf("%w: mixer has no slot with id %s", ErrUnknownProperty, link)
	}
	if err := ValidateSlotProperty(property, slot.Media); err != nil {
		return false, err
	}
	return slot.Controls.Remove(property, id, at), nil
}
