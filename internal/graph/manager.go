// Package graph implements the node manager: the registry of nodes,
// links and stream bridges, the command dispatcher that validates and
// applies every mutation, and the time-driven tick that advances node
// schedules and control points.
package graph

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/drunkod/fcast/internal/bridge"
	"github.com/drunkod/fcast/internal/clock"
	"github.com/drunkod/fcast/internal/node"
	"github.com/drunkod/fcast/internal/pipeline"
	"github.com/drunkod/fcast/pkg/types"
)

const (
	DefaultPrerollLead     = 10 * time.Second
	DefaultControlInterval = 40 * time.Millisecond
)

type Options struct {
	Engine pipeline.Engine
	Clock  clock.Clock
	Logger *slog.Logger

	// PrerollLead is how long before its cue a Starting node prerolls.
	PrerollLead time.Duration
	// ControlInterval is the re-evaluation step while a control point
	// interpolation is in progress.
	ControlInterval time.Duration
	// ConsumerBuffer is the per-link bridge queue length.
	ConsumerBuffer int

	// OnStatus, if set, receives state changes and errors. It is called
	// without the manager lock held.
	OnStatus func(types.NodeStatus)
}

// Manager owns the graph. All methods are safe for concurrent use; each
// command and tick runs under one lock, so commands apply atomically.
type Manager struct {
	opts   Options
	engine pipeline.Engine
	clock  clock.Clock
	log    *slog.Logger

	mu      sync.Mutex
	nodes   map[string]*entry
	links   map[string]*link
	bridges map[string]*bridge.Bridge
	retired map[string]struct{}
	pending []types.NodeStatus
	runs    uint64
}

// entry pairs a node with its live pipeline, if built. run numbers the
// pipeline so reports from a replaced one can be told apart.
type entry struct {
	node    *node.Node
	pipe    pipeline.Pipeline
	run     uint64
	outputs map[types.MediaKind]*bridge.Producer
}

type link struct {
	id        string
	src       string
	sink      string
	media     types.Caps
	consumers map[types.MediaKind]*bridge.Consumer
}

func New(opts Options) *Manager {
	if opts.Engine == nil {
		opts.Engine = pipeline.Null{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PrerollLead <= 0 {
		opts.PrerollLead = DefaultPrerollLead
	}
	if opts.ControlInterval <= 0 {
		opts.ControlInterval = DefaultControlInterval
	}
	if opts.ConsumerBuffer <= 0 {
		opts.ConsumerBuffer = bridge.DefaultBuffer
	}
	return &Manager{
		opts:    opts,
		engine:  opts.Engine,
		clock:   opts.Clock,
		log:     opts.Logger,
		nodes:   map[string]*entry{},
		links:   map[string]*link{},
		bridges: map[string]*bridge.Bridge{},
		retired: map[string]struct{}{},
	}
}

func (m *Manager) lock() { m.mu.Lock() }

// unlock releases the lock and then delivers queued status events.
func (m *Manager) unlock() {
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()
	if m.opts.OnStatus == nil {
		return
	}
	for _, st := range pending {
		m.opts.OnStatus(st)
	}
}

func (m *Manager) notify(n *node.Node) {
	m.pending = append(m.pending, types.NodeStatus{
		ID:    n.ID,
		State: n.State,
		Error: n.LastError,
		At:    m.clock.Now(),
	})
}

func (m *Manager) sortedNodeIDs() []string {
	ids := make([]string, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type Stats struct {
	Nodes   int `json:"nodes"`
	Links   int `json:"links"`
	Bridges int `json:"bridges"`
}

func (m *Manager) Stats() Stats {
	m.lock()
	defer m.unlock()
	return Stats{Nodes: len(m.nodes), Links: len(m.links), Bridges: len(m.bridges)}
}

// BridgeStats reports every live bridge, sorted by key.
func (m *Manager) BridgeStats() []bridge.Stats {
	m.lock()
	defer m.unlock()
	out := make([]bridge.Stats, 0, len(m.bridges))
	for _, b := range m.bridges {
		out = append(out, b.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// HasBridge reports whether a bridge exists for src and media.
func (m *Manager) HasBridge(src string, k types.MediaKind) bool {
	m.lock()
	defer m.unlock()
	_, ok := m.bridges[bridgeKey(src, k)]
	return ok
}

// Shutdown stops every pipeline and clears the graph.
func (m *Manager) Shutdown() {
	m.lock()
	defer m.unlock()
	for _, id := range m.sortedNodeIDs() {
		m.teardown(m.nodes[id])
	}
	for _, b := range m.bridges {
		b.Close()
	}
	m.nodes = map[string]*entry{}
	m.links = map[string]*link{}
	m.bridges = map[string]*bridge.Bridge{}
	m.log.Info("graph shut down")
}
