package node

import (
	"time"

	"github.com/drunkod/fcast/pkg/types"
)

// Arm installs a new schedule and moves the node to Starting. Arming is
// allowed from any state.
func (n *Node) Arm(cue, end *time.Time) {
	n.Cue, n.End = cue, end
	n.State = types.StateStarting
	n.LastError = ""
}

// Step returns the state the schedule calls for at now, if it differs
// from the current one. Callers apply it and call Step again until it
// reports false, so a node whose cue and end are both past moves
// Starting, Started, Stopped in one pass.
func (n *Node) Step(now time.Time) (types.State, bool) {
	switch n.State {
	case types.StateStarting:
		if n.Cue == nil || !now.Before(*n.Cue) {
			return types.StateStarted, true
		}
	case types.StateStarted:
		if n.End != nil && !now.Before(*n.End) {
			return types.StateStopped, true
		}
	}
	return "", false
}

// PrerollDue reports whether a Starting node has entered the preroll
// window before its cue and has not yet been prerolled.
func (n *Node) PrerollDue(now time.Time, lead time.Duration) bool {
	if n.State != types.StateStarting || n.Stage != types.StageIdle {
		return false
	}
	return n.Cue == nil || !now.Before(n.Cue.Add(-lead))
}

// Deadline returns the next instant the schedule needs attention.
func (n *Node) Deadline(lead time.Duration) (time.Time, bool) {
	switch n.State {
	case types.StateStarting:
		if n.Cue == nil {
			return time.Time{}, true
		}
		if n.Stage == types.StageIdle {
			return n.Cue.Add(-lead), true
		}
		return *n.Cue, true
	case types.StateStarted:
		if n.End != nil {
			return *n.End, true
		}
	}
	return time.Time{}, false
}
