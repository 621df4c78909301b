package graph

import (
	"errors"

	"github.com/google/uuid"

	"github.com/drunkod/fcast/internal/node"
	"github.com/drunkod/fcast/pkg/types"
)

// controlTarget resolves a controllee id to a mixer and, when the id
// names a link into that mixer, the slot it feeds.
func (m *Manager) controlTarget(id string) (*entry, *node.MixerConfig, string, error) {
	if e, ok := m.nodes[id]; ok {
		cfg, ok := e.node.Config.(*node.MixerConfig)
		if !ok {
			return nil, nil, "", errorf(ErrInvalidControlTarget, "control points are supported only for mixers, %s is a %s", id, e.node.Kind)
		}
		return e, cfg, "", nil
	}
	if l, ok := m.links[id]; ok {
		sink := m.nodes[l.sink]
		cfg, ok := sink.node.Config.(*node.MixerConfig)
		if !ok {
			return nil, nil, "", errorf(ErrInvalidControlTarget, "slot control points are only supported for mixer links, %s feeds a %s", id, sink.node.Kind)
		}
		return sink, cfg, l.id, nil
	}
	return nil, nil, "", errorf(ErrInvalidControlTarget, "no node or slot with id %s", id)
}

func controlError(err error) error {
	if errors.Is(err, node.ErrBadValue) {
		return wrap(ErrInvalidConfig, err)
	}
	return wrap(ErrInvalidControlTarget, err)
}

// AddControlPoint schedules a value for a mixer setting or mixer slot
// property. The point takes effect on the next evaluation, which runs
// immediately.
func (m *Manager) AddControlPoint(c types.AddControlPoint) error {
	m.lock()
	defer m.unlock()

	e, cfg, slot, err := m.controlTarget(c.ControlleeID)
	if err != nil {
		return err
	}
	cp := c.ControlPoint
	if cp.Time.IsZero() {
		return errorf(ErrInvalidConfig, "control point requires a time")
	}
	switch cp.Mode {
	case "":
		cp.Mode = types.ModeSet
	case types.ModeSet, types.ModeInterpolate:
	default:
		return errorf(ErrInvalidConfig, "unknown control point mode %q", cp.Mode)
	}
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}

	if slot == "" {
		err = cfg.AddControlPoint(c.Property, cp)
	} else {
		err = cfg.AddSlotControlPoint(slot, c.Property, cp)
	}
	if err != nil {
		return controlError(err)
	}
	m.refreshMixer(e, m.clock.Now())
	m.log.Info("control point added", "controllee_id", c.ControlleeID, "property", c.Property, "point_id", cp.ID)
	return nil
}

// RemoveControlPoint removes a point by id, or by timestamp when no id
// is given.
func (m *Manager) RemoveControlPoint(c types.RemoveControlPoint) error {
	m.lock()
	defer m.unlock()

	e, cfg, slot, err := m.controlTarget(c.ControlleeID)
	if err != nil {
		return err
	}
	if c.ID == "" && c.Time == nil {
		return errorf(ErrInvalidConfig, "removing a control point requires an id or a time")
	}
	var removed bool
	if slot == "" {
		removed, err = cfg.RemoveControlPoint(c.Property, c.ID, c.Time)
	} else {
		removed, err = cfg.RemoveSlotControlPoint(slot, c.Property, c.ID, c.Time)
	}
	if err != nil {
		return controlError(err)
	}
	if !removed {
		return errorf(ErrNotFound, "no such control point on %s %s", c.ControlleeID, c.Property)
	}
	m.refreshMixer(e, m.clock.Now())
	return nil
}
