package node

import (
	"maps"

	"github.com/drunkod/fcast/pkg/types"
)

// Info snapshots the node for GetInfo. stats may be nil.
func (n *Node) Info(stats *types.PipelineStats) types.NodeInfo {
	sched := types.ScheduleInfo{
		CueTime:   n.Cue,
		EndTime:   n.End,
		State:     n.State,
		Stage:     n.Stage,
		LastError: n.LastError,
	}
	switch cfg := n.Config.(type) {
	case *SourceConfig:
		return types.NodeInfo{Source: n.sourceInfo(cfg.URI, sched, stats)}
	case *GeneratorConfig:
		return types.NodeInfo{Source: n.sourceInfo("videogenerator://"+n.ID, sched, stats)}
	case *DestinationConfig:
		return types.NodeInfo{Destination: &types.DestinationInfo{
			ID:           n.ID,
			Family:       cfg.Family,
			Audio:        n.Caps.Audio,
			Video:        n.Caps.Video,
			AudioSlotID:  optional(cfg.AudioSlot),
			VideoSlotID:  optional(cfg.VideoSlot),
			ScheduleInfo: sched,
			Stats:        stats,
		}}
	case *MixerConfig:
		info := &types.MixerInfo{
			ID:                   n.ID,
			Audio:                n.Caps.Audio,
			Video:                n.Caps.Video,
			Slots:                map[string]types.SlotInfo{},
			AudioConsumerSlotIDs: n.Consumers(types.Audio),
			VideoConsumerSlotIDs: n.Consumers(types.Video),
			Settings:             maps.Clone(cfg.Active),
			ControlPoints:        cfg.Controls.Snapshot(),
			SlotSettings:         cfg.SlotSettings(),
			SlotControlPoints:    map[string]map[string][]types.ControlPoint{},
			ScheduleInfo:         sched,
			Stats:                stats,
		}
		for id, s := range cfg.Slots {
			info.Slots[id] = types.SlotInfo{SrcID: s.SrcID, Audio: s.Media.Audio, Video: s.Media.Video}
			info.SlotControlPoints[id] = s.Controls.Snapshot()
		}
		return types.NodeInfo{Mixer: info}
	}
	return types.NodeInfo{}
}

func (n *Node) sourceInfo(uri string, sched types.ScheduleInfo, stats *types.PipelineStats) *types.SourceInfo {
	return &types.SourceInfo{
		ID:                   n.ID,
		URI:                  uri,
		Audio:                n.Caps.Audio,
		Video:                n.Caps.Video,
		AudioConsumerSlotIDs: n.Consumers(types.Audio),
		VideoConsumerSlotIDs: n.Consumers(types.Video),
		ScheduleInfo:         sched,
		Stats:                stats,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
