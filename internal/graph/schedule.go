package graph

import (
	"errors"
	"maps"
	"time"

	"github.com/drunkod/fcast/internal/bridge"
	"github.com/drunkod/fcast/internal/node"
	"github.com/drunkod/fcast/internal/pipeline"
	"github.com/drunkod/fcast/pkg/types"
)

// Start arms the node's schedule. A nil cue starts it on the next tick;
// a nil end runs it until stopped.
func (m *Manager) Start(id string, cue, end *time.Time) error {
	return m.schedule(id, cue, end)
}

// Reschedule re-arms a node from any state.
func (m *Manager) Reschedule(id string, cue, end *time.Time) error {
	return m.schedule(id, cue, end)
}

func (m *Manager) schedule(id string, cue, end *time.Time) error {
	m.lock()
	defer m.unlock()

	e, ok := m.nodes[id]
	if !ok {
		return errorf(ErrNotFound, "no node with id %s", id)
	}
	if cue != nil && end != nil && end.Before(*cue) {
		return errorf(ErrInvalidSchedulePrecondition, "end time %s precedes cue time %s", end.Format(time.RFC3339), cue.Format(time.RFC3339))
	}
	if d, ok := e.node.Config.(*node.DestinationConfig); ok {
		if err := d.StartReady(id, e.node.Caps); err != nil {
			return wrap(ErrInvalidSchedulePrecondition, err)
		}
	}
	if e.pipe == nil {
		if err := m.build(e); err != nil {
			return wrap(ErrPipelineConstructionFailed, err)
		}
	}
	if e.node.State == types.StateStarted {
		if err := e.pipe.Preroll(); err != nil {
			m.log.Warn("preroll on reschedule failed", "node_id", id, "error", err)
		}
		e.node.Stage = types.StagePrerolling
	}
	e.node.Arm(cue, end)
	m.notify(e.node)
	m.log.Info("node scheduled", "node_id", id, "cue_time", cue, "end_time", end)
	return nil
}

// build constructs e's pipeline, attaching producers for its outputs.
// On failure the bridges are left as they were.
func (m *Manager) build(e *entry) error {
	n := e.node
	outputs := map[types.MediaKind]*bridge.Producer{}
	for _, k := range types.MediaKinds {
		if n.CanOutput(k) {
			outputs[k] = m.bridgeFor(n.ID, k).AttachProducer()
		}
	}
	m.runs++
	run := m.runs
	pipe, err := m.engine.Build(pipeline.Spec{
		NodeID:   n.ID,
		Kind:     n.Kind,
		Caps:     n.Caps,
		Settings: settingsFor(n),
		Outputs:  outputs,
		Inputs:   m.inputsOf(n.ID),
		Events:   engineEvents{m: m, run: run},
	})
	if err != nil {
		m.abortOutputs(n.ID, outputs)
		return err
	}
	e.pipe, e.run, e.outputs = pipe, run, outputs
	return nil
}

func (m *Manager) detachOutputs(id string, outputs map[types.MediaKind]*bridge.Producer) {
	for k, p := range outputs {
		key := bridgeKey(id, k)
		if b, ok := m.bridges[key]; ok {
			b.DetachProducer(p)
		}
		m.release(key)
	}
}

// abortOutputs rolls back producers attached for a build that failed.
// Consumers see no end-of-stream.
func (m *Manager) abortOutputs(id string, outputs map[types.MediaKind]*bridge.Producer) {
	for k, p := range outputs {
		key := bridgeKey(id, k)
		if b, ok := m.bridges[key]; ok {
			b.AbortProducer(p)
		}
		m.release(key)
	}
}

// teardown stops and drops e's pipeline.
func (m *Manager) teardown(e *entry) {
	if e.pipe == nil {
		return
	}
	if err := e.pipe.Stop(); err != nil {
		m.log.Warn("pipeline stop failed", "node_id", e.node.ID, "error", err)
	}
	m.detachOutputs(e.node.ID, e.outputs)
	e.pipe, e.run, e.outputs = nil, 0, nil
	e.node.Stage = types.StageIdle
}

func settingsFor(n *node.Node) pipeline.Settings {
	switch cfg := n.Config.(type) {
	case *node.SourceConfig:
		return pipeline.Settings{Node: map[string]any{"uri": cfg.URI}}
	case *node.GeneratorConfig:
		return pipeline.Settings{Node: map[string]any{
			"pattern": cfg.Pattern,
			"is-live": cfg.IsLive,
			"width":   cfg.Width,
			"height":  cfg.Height,
		}}
	case *node.DestinationConfig:
		return pipeline.Settings{Node: map[string]any{"family": cfg.Family.Name()}}
	case *node.MixerConfig:
		return pipeline.Settings{Node: maps.Clone(cfg.Active), Slots: cfg.SlotSettings()}
	}
	return pipeline.Settings{}
}

// Tick advances every node's schedule to now and re-evaluates control
// points.
func (m *Manager) Tick(now time.Time) {
	m.lock()
	defer m.unlock()
	for _, id := range m.sortedNodeIDs() {
		m.advance(m.nodes[id], now)
	}
}

func (m *Manager) advance(e *entry, now time.Time) {
	n := e.node
	if n.PrerollDue(now, m.opts.PrerollLead) && e.pipe != nil {
		if err := e.pipe.Preroll(); err != nil {
			m.fail(e, err)
			return
		}
		n.Stage = types.StagePrerolling
	}
	for {
		next, ok := n.Step(now)
		if !ok {
			break
		}
		switch next {
		case types.StateStarted:
			if err := m.play(e); err != nil {
				m.fail(e, err)
				return
			}
			n.Stage = types.StagePlaying
		case types.StateStopped:
			m.teardown(e)
		}
		n.State = next
		m.notify(n)
		m.log.Info("node state changed", "node_id", n.ID, "state", next)
	}
	if _, ok := n.Config.(*node.MixerConfig); ok {
		m.refreshMixer(e, now)
	}
}

func (m *Manager) play(e *entry) error {
	if e.pipe == nil {
		if err := m.build(e); err != nil {
			return err
		}
	}
	return e.pipe.Play()
}

func (m *Manager) fail(e *entry, err error) {
	m.teardown(e)
	e.node.Fail(err.Error())
	m.notify(e.node)
	m.log.Error("node failed", "node_id", e.node.ID, "error", err)
}

// refreshMixer evaluates control points at now and pushes changed
// settings to a live pipeline.
func (m *Manager) refreshMixer(e *entry, now time.Time) {
	cfg := e.node.Config.(*node.MixerConfig)
	if !cfg.Evaluate(now) || e.pipe == nil {
		return
	}
	if err := e.pipe.Apply(settingsFor(e.node)); err != nil {
		e.node.LastError = err.Error()
		m.log.Warn("applying mixer settings failed", "node_id", e.node.ID, "error", err)
	}
}

// NextDeadline returns the earliest instant at which Tick has work. A
// zero time means work is already due.
func (m *Manager) NextDeadline(now time.Time) (time.Time, bool) {
	m.lock()
	defer m.unlock()

	var next time.Time
	found := false
	consider := func(t time.Time) {
		if !found || t.Before(next) {
			next, found = t, true
		}
	}
	for _, e := range m.nodes {
		if t, ok := e.node.Deadline(m.opts.PrerollLead); ok {
			consider(t)
		}
		if cfg, ok := e.node.Config.(*node.MixerConfig); ok {
			if t, ok := cfg.Deadline(now, m.opts.ControlInterval); ok {
				consider(t)
			}
		}
	}
	return next, found
}

// NotifyEndOfStream stops a node whose media ended.
func (m *Manager) NotifyEndOfStream(id string) { m.endOfStream(id, 0) }

// NotifyError stops a node after an engine failure.
func (m *Manager) NotifyError(id string, err error) { m.pipelineError(id, 0, err) }

// current reports whether a report from pipeline run applies to e. Run
// zero matches whatever pipeline e has.
func (e *entry) current(run uint64) bool { return run == 0 || run == e.run }

func (m *Manager) endOfStream(id string, run uint64) {
	m.lock()
	defer m.unlock()
	e, ok := m.nodes[id]
	if !ok || !e.current(run) || e.node.State == types.StateStopped {
		return
	}
	m.teardown(e)
	e.node.State = types.StateStopped
	m.notify(e.node)
	m.log.Info("node reached end of stream", "node_id", id)
}

func (m *Manager) pipelineError(id string, run uint64, err error) {
	if err == nil {
		err = errors.New("unknown pipeline error")
	}
	m.lock()
	defer m.unlock()
	e, ok := m.nodes[id]
	if !ok || !e.current(run) {
		m.log.Debug("ignoring error from retired pipeline", "node_id", id, "error", err)
		return
	}
	m.fail(e, err)
}

// engineEvents forwards one pipeline's reports on fresh goroutines,
// since the engine may report while the manager is waiting on it.
type engineEvents struct {
	m   *Manager
	run uint64
}

func (ev engineEvents) EndOfStream(id string)      { go ev.m.endOfStream(id, ev.run) }
func (ev engineEvents) Error(id string, err error) { go ev.m.pipelineError(id, ev.run, err) }
