// Package pipeline is the boundary to the media engine that actually
// moves frames. The graph builds one Pipeline per scheduled node and
// drives it through preroll, play and stop; the pipeline reads its
// inputs from bridge consumers and writes its outputs to bridge
// producers.
package pipeline

import (
	"github.com/drunkod/fcast/internal/bridge"
	"github.com/drunkod/fcast/pkg/types"
)

// Input is one link feeding a node.
type Input struct {
	LinkID   string
	Media    types.MediaKind
	Consumer *bridge.Consumer
}

// Settings are the values a pipeline should currently apply: node
// settings plus, for mixers, per-slot settings keyed by link id.
type Settings struct {
	Node  map[string]any
	Slots map[string]map[string]any
}

// Spec describes the pipeline to build for a node.
type Spec struct {
	NodeID   string
	Kind     types.NodeKind
	Caps     types.Caps
	Settings Settings
	Outputs  map[types.MediaKind]*bridge.Producer
	Inputs   []Input

	// Events receives asynchronous end-of-stream and error reports. It
	// must never be called from inside a Pipeline method.
	Events Events
}

type Events interface {
	EndOfStream(nodeID string)
	Error(nodeID string, err error)
}

type Engine interface {
	Build(spec Spec) (Pipeline, error)
}

type Pipeline interface {
	Preroll() error
	Play() error
	// Stop is idempotent.
	Stop() error
	AttachInput(in Input) error
	Apply(s Settings) error
}

// StatsReporter is implemented by pipelines that count frames.
type StatsReporter interface {
	Stats() types.PipelineStats
}
