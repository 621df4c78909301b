// Package node models the graph's processing nodes: a shared envelope
// (identity, capabilities, schedule, state) plus one kind-specific
// configuration from a closed set.
package node

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/drunkod/fcast/pkg/types"
)

var errNoMedia = errors.New("must have either audio or video enabled")

// Config is implemented by *SourceConfig, *DestinationConfig,
// *MixerConfig and *GeneratorConfig only.
type Config interface {
	kind() types.NodeKind
}

type Node struct {
	ID   string
	Kind types.NodeKind
	Caps types.Caps

	Cue       *time.Time
	End       *time.Time
	State     types.State
	Stage     types.Stage
	LastError string

	Config Config

	// consumers holds the ids of links reading this node's output, per media.
	consumers map[types.MediaKind]map[string]struct{}
}

func newNode(id string, caps types.Caps, cfg Config) (*Node, error) {
	if id == "" {
		return nil, errors.New("id must not be empty")
	}
	if caps.Empty() {
		return nil, fmt.Errorf("node %s %w", id, errNoMedia)
	}
	return &Node{
		ID:        id,
		Kind:      cfg.kind(),
		Caps:      caps,
		State:     types.StateInitial,
		Stage:     types.StageIdle,
		Config:    cfg,
		consumers: map[types.MediaKind]map[string]struct{}{},
	}, nil
}

// CanOutput reports whether the node produces media of kind k.
func (n *Node) CanOutput(k types.MediaKind) bool {
	switch n.Config.(type) {
	case *SourceConfig, *MixerConfig, *GeneratorConfig:
		return n.Caps.Has(k)
	}
	return false
}

// CanInput reports whether the node accepts media of kind k.
func (n *Node) CanInput(k types.MediaKind) bool {
	switch n.Config.(type) {
	case *DestinationConfig, *MixerConfig:
		return n.Caps.Has(k)
	}
	return false
}

// AddConsumer records that link reads media from this node.
func (n *Node) AddConsumer(link string, media types.Caps) {
	for _, k := range media.Kinds() {
		set, ok := n.consumers[k]
		if !ok {
			set = map[string]struct{}{}
			n.consumers[k] = set
		}
		set[link] = struct{}{}
	}
}

func (n *Node) RemoveConsumer(link string) {
	for _, set := range n.consumers {
		delete(set, link)
	}
}

// Consumers returns the sorted consumer link ids for media k.
func (n *Node) Consumers(k types.MediaKind) []string {
	out := make([]string, 0, len(n.consumers[k]))
	for id := range n.consumers[k] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Fail records a pipeline error and stops the node.
func (n *Node) Fail(msg string) {
	n.LastError = msg
	n.State = types.StateStopped
	n.Stage = types.StageIdle
}
