package graph

import (
	"fmt"

	"github.com/drunkod/fcast/pkg/types"
)

// Dispatch applies one command and reports its outcome. A failed
// command leaves the graph unchanged.
func (m *Manager) Dispatch(cmd types.Command) types.CommandResult {
	res := m.dispatch(cmd)
	if !res.OK() {
		m.log.Warn("command failed", "command", tagOf(cmd), "error", res.Err)
	} else {
		m.log.Debug("command applied", "command", tagOf(cmd))
	}
	return res
}

func tagOf(cmd types.Command) string {
	if cmd == nil {
		return "<nil>"
	}
	return cmd.Tag()
}

func (m *Manager) dispatch(cmd types.Command) types.CommandResult {
	switch c := cmd.(type) {
	case types.CreateSource:
		id, err := m.CreateSource(c)
		return m.created(c.ID, id, err)
	case types.CreateDestination:
		id, err := m.CreateDestination(c)
		return m.created(c.ID, id, err)
	case types.CreateMixer:
		id, err := m.CreateMixer(c)
		return m.created(c.ID, id, err)
	case types.CreateVideoGenerator:
		id, err := m.CreateVideoGenerator(c)
		return m.created(c.ID, id, err)
	case types.Connect:
		return result(m.Connect(c))
	case types.Disconnect:
		return result(m.Disconnect(c.LinkID))
	case types.Start:
		return result(m.Start(c.ID, c.CueTime, c.EndTime))
	case types.Reschedule:
		return result(m.Reschedule(c.ID, c.CueTime, c.EndTime))
	case types.Remove:
		return result(m.Remove(c.ID))
	case types.GetInfo:
		info, err := m.Info(c.ID)
		if err != nil {
			return types.Failure(err.Error())
		}
		return types.InfoResult(info)
	case types.AddControlPoint:
		return result(m.AddControlPoint(c))
	case types.RemoveControlPoint:
		return result(m.RemoveControlPoint(c))
	}
	return types.Failure(errorf(ErrMalformedInput, "unsupported command %s", fmt.Sprintf("%T", cmd)).Error())
}

func result(err error) types.CommandResult {
	if err != nil {
		return types.Failure(err.Error())
	}
	return types.Success()
}

// created answers a create command. When the caller left the id empty
// the reply describes the new node so the assigned id is known.
func (m *Manager) created(requested string, id string, err error) types.CommandResult {
	if err != nil {
		return types.Failure(err.Error())
	}
	if requested != "" {
		return types.Success()
	}
	info, err := m.Info(id)
	if err != nil {
		return types.Failure(err.Error())
	}
	return types.InfoResult(info)
}
