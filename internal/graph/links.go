package graph

import (
	"sort"

	"github.com/drunkod/fcast/internal/bridge"
	"github.com/drunkod/fcast/internal/node"
	"github.com/drunkod/fcast/internal/pipeline"
	"github.com/drunkod/fcast/pkg/types"
)

func bridgeKey(src string, k types.MediaKind) string { return src + ":" + string(k) }

// bridgeFor returns the bridge carrying src's media k, creating it.
func (m *Manager) bridgeFor(src string, k types.MediaKind) *bridge.Bridge {
	key := bridgeKey(src, k)
	b, ok := m.bridges[key]
	if !ok {
		b = bridge.New(key, bridge.WithBuffer(m.opts.ConsumerBuffer), bridge.WithLogger(m.log))
		m.bridges[key] = b
		m.log.Debug("bridge created", "bridge", key)
	}
	return b
}

// release deletes the bridge if nothing is attached to it any more.
func (m *Manager) release(key string) {
	if b, ok := m.bridges[key]; ok && b.Unused() {
		delete(m.bridges, key)
		m.log.Debug("bridge deleted", "bridge", key)
	}
}

func (m *Manager) sortedLinkIDs() []string {
	ids := make([]string, 0, len(m.links))
	for id := range m.links {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Connect links src to sink for the requested media. Every check runs
// before the graph is touched, and a failure part way through is rolled
// back.
func (m *Manager) Connect(c types.Connect) error {
	m.lock()
	defer m.unlock()

	if c.LinkID == "" {
		return errorf(ErrInvalidConfig, "link id must not be empty")
	}
	if _, ok := m.links[c.LinkID]; ok {
		return errorf(ErrDuplicateID, "a link already exists with id %s", c.LinkID)
	}
	media := c.Media()
	if media.Empty() {
		return errorf(ErrIncompatibleMedia, "link %s must carry audio or video", c.LinkID)
	}
	src, ok := m.nodes[c.SrcID]
	if !ok {
		return errorf(ErrNotFound, "no producer with id %s", c.SrcID)
	}
	sink, ok := m.nodes[c.SinkID]
	if !ok {
		return errorf(ErrNotFound, "no consumer with id %s", c.SinkID)
	}
	if c.SrcID == c.SinkID {
		return errorf(ErrIncompatibleMedia, "node %s cannot consume its own output", c.SrcID)
	}
	for _, k := range media.Kinds() {
		if !src.node.CanOutput(k) || !sink.node.CanInput(k) {
			return errorf(ErrIncompatibleMedia, "capabilities do not match: %s cannot carry %s from %s to %s", c.LinkID, k, c.SrcID, c.SinkID)
		}
	}

	switch cfg := sink.node.Config.(type) {
	case *node.DestinationConfig:
		if len(c.Config) > 0 {
			return errorf(ErrInvalidConfig, "links into destination %s take no config", c.SinkID)
		}
		if err := cfg.ConnectInput(c.SinkID, c.LinkID, media); err != nil {
			return wrap(ErrIncompatibleMedia, err)
		}
	case *node.MixerConfig:
		if err := cfg.ConnectSlot(c.LinkID, c.SrcID, media, c.Config); err != nil {
			return wrap(ErrInvalidConfig, err)
		}
	}

	l := &link{id: c.LinkID, src: c.SrcID, sink: c.SinkID, media: media, consumers: map[types.MediaKind]*bridge.Consumer{}}
	for _, k := range media.Kinds() {
		cons, err := m.bridgeFor(c.SrcID, k).AttachConsumer(c.LinkID)
		if err != nil {
			m.unwind(l, sink)
			return wrap(ErrInvalidConfig, err)
		}
		l.consumers[k] = cons
	}
	if sink.pipe != nil {
		for _, in := range l.inputs() {
			if err := sink.pipe.AttachInput(in); err != nil {
				m.unwind(l, sink)
				return wrap(ErrPipelineConstructionFailed, err)
			}
		}
	}

	src.node.AddConsumer(c.LinkID, media)
	m.links[c.LinkID] = l
	if _, ok := sink.node.Config.(*node.MixerConfig); ok {
		m.refreshMixer(sink, m.clock.Now())
	}
	m.log.Info("link connected", "link_id", c.LinkID, "src", c.SrcID, "sink", c.SinkID, "audio", media.Audio, "video", media.Video)
	return nil
}

// unwind reverts a partially applied connect.
func (m *Manager) unwind(l *link, sink *entry) {
	for k := range l.consumers {
		key := bridgeKey(l.src, k)
		m.bridges[key].DetachConsumer(l.id)
	}
	for _, k := range l.media.Kinds() {
		m.release(bridgeKey(l.src, k))
	}
	detachSink(sink.node, l.id)
}

func detachSink(n *node.Node, linkID string) {
	switch cfg := n.Config.(type) {
	case *node.DestinationConfig:
		cfg.DisconnectInput(linkID)
	case *node.MixerConfig:
		cfg.DisconnectSlot(linkID)
	}
}

func (l *link) inputs() []pipeline.Input {
	var out []pipeline.Input
	for _, k := range types.MediaKinds {
		if c, ok := l.consumers[k]; ok {
			out = append(out, pipeline.Input{LinkID: l.id, Media: k, Consumer: c})
		}
	}
	return out
}

func (m *Manager) Disconnect(linkID string) error {
	m.lock()
	defer m.unlock()

	l, ok := m.links[linkID]
	if !ok {
		return errorf(ErrNotFound, "no link with id %s", linkID)
	}
	m.disconnect(l)
	return nil
}

// disconnect removes l and everything that references it.
func (m *Manager) disconnect(l *link) {
	for k := range l.consumers {
		key := bridgeKey(l.src, k)
		if b, ok := m.bridges[key]; ok {
			b.DetachConsumer(l.id)
		}
		m.release(key)
	}
	if src, ok := m.nodes[l.src]; ok {
		src.node.RemoveConsumer(l.id)
	}
	if sink, ok := m.nodes[l.sink]; ok {
		detachSink(sink.node, l.id)
		if _, ok := sink.node.Config.(*node.MixerConfig); ok {
			m.refreshMixer(sink, m.clock.Now())
		}
	}
	delete(m.links, l.id)
	m.log.Info("link disconnected", "link_id", l.id)
}

// inputsOf returns every input feeding id, ordered by link id.
func (m *Manager) inputsOf(id string) []pipeline.Input {
	var out []pipeline.Input
	for _, lid := range m.sortedLinkIDs() {
		if l := m.links[lid]; l.sink == id {
			out = append(out, l.inputs()...)
		}
	}
	return out
}
