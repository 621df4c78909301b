package graph

import (
	"github.com/google/uuid"

	"github.com/drunkod/fcast/internal/node"
	"github.com/drunkod/fcast/internal/pipeline"
	"github.com/drunkod/fcast/pkg/types"
)

func (m *Manager) CreateSource(c types.CreateSource) (string, error) {
	return m.addNode(c.ID, func(id string) (*node.Node, error) {
		return node.NewSource(id, c.URI, types.Caps{Audio: c.Audio, Video: c.Video})
	})
}

func (m *Manager) CreateDestination(c types.CreateDestination) (string, error) {
	return m.addNode(c.ID, func(id string) (*node.Node, error) {
		return node.NewDestination(id, c.Family, types.Caps{Audio: c.Audio, Video: c.Video})
	})
}

func (m *Manager) CreateMixer(c types.CreateMixer) (string, error) {
	return m.addNode(c.ID, func(id string) (*node.Node, error) {
		return node.NewMixer(id, c.Config, types.Caps{Audio: c.Audio, Video: c.Video})
	})
}

func (m *Manager) CreateVideoGenerator(c types.CreateVideoGenerator) (string, error) {
	return m.addNode(c.ID, func(id string) (*node.Node, error) {
		return node.NewVideoGenerator(id, c.Config)
	})
}

func (m *Manager) addNode(id string, build func(id string) (*node.Node, error)) (string, error) {
	m.lock()
	defer m.unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if _, ok := m.nodes[id]; ok {
		return "", errorf(ErrDuplicateID, "a node already exists with id %s", id)
	}
	if _, ok := m.retired[id]; ok {
		return "", errorf(ErrDuplicateID, "id %s belonged to a removed node", id)
	}
	n, err := build(id)
	if err != nil {
		return "", wrap(ErrInvalidConfig, err)
	}
	m.nodes[id] = &entry{node: n}
	m.log.Info("node created", "node_id", id, "kind", n.Kind)
	return id, nil
}

// Remove stops the node, removes every link touching it and forgets it.
func (m *Manager) Remove(id string) error {
	m.lock()
	defer m.unlock()

	e, ok := m.nodes[id]
	if !ok {
		return errorf(ErrNotFound, "no node with id %s", id)
	}
	m.teardown(e)
	for _, lid := range m.sortedLinkIDs() {
		if l := m.links[lid]; l.src == id || l.sink == id {
			m.disconnect(l)
		}
	}
	delete(m.nodes, id)
	m.retired[id] = struct{}{}
	e.node.State = types.StateStopped
	m.notify(e.node)
	m.log.Info("node removed", "node_id", id)
	return nil
}

// Info snapshots one node, or all nodes when id is empty.
func (m *Manager) Info(id string) (types.Info, error) {
	m.lock()
	defer m.unlock()

	info := types.Info{Nodes: map[string]types.NodeInfo{}}
	if id != "" {
		e, ok := m.nodes[id]
		if !ok {
			return types.Info{}, errorf(ErrNotFound, "no node with id %s", id)
		}
		info.Nodes[id] = e.info()
		return info, nil
	}
	for nid, e := range m.nodes {
		info.Nodes[nid] = e.info()
	}
	return info, nil
}

func (e *entry) info() types.NodeInfo {
	var stats *types.PipelineStats
	if r, ok := e.pipe.(pipeline.StatsReporter); ok {
		st := r.Stats()
		stats = &st
	}
	return e.node.Info(stats)
}
