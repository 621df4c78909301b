package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/drunkod/fcast/internal/bridge"
	"github.com/drunkod/fcast/internal/clock"
	"github.com/drunkod/fcast/internal/control"
	"github.com/drunkod/fcast/pkg/types"
)

// Synthetic is an in-process engine: producing nodes emit blank frames
// at a fixed interval, consuming nodes drain and count their inputs.
// A source uri carrying a frames query parameter, e.g.
// synthetic://clip?frames=300, ends the stream after that many frames.
type Synthetic struct {
	Clock         clock.Clock
	FrameInterval time.Duration
	Log           *slog.Logger
}

func (e *Synthetic) Build(spec Spec) (Pipeline, error) {
	if e.FrameInterval <= 0 {
		return nil, fmt.Errorf("synthetic engine: frame interval must be positive")
	}
	if spec.Kind == types.KindSource {
		if uri, _ := spec.Settings.Node["uri"].(string); uri == "" {
			return nil, errors.New("synthetic engine: source has no uri")
		}
	}
	clk := e.Clock
	if clk == nil {
		clk = clock.Real()
	}
	log := e.Log
	if log == nil {
		log = slog.Default()
	}
	return &synthetic{
		spec:     spec,
		clock:    clk,
		interval: e.FrameInterval,
		log:      log.With("node_id", spec.NodeID),
		settings: cloneSettings(spec.Settings),
		inputs:   append([]Input(nil), spec.Inputs...),
	}, nil
}

type synthetic struct {
	spec     Spec
	clock    clock.Clock
	interval time.Duration
	log      *slog.Logger

	mu       sync.Mutex
	settings Settings
	inputs   []Input
	playing  bool
	stop     chan struct{}
	wg       sync.WaitGroup

	framesIn  atomic.Uint64
	framesOut atomic.Uint64
	dropped   atomic.Uint64
}

func (p *synthetic) Preroll() error {
	p.log.Debug("preroll")
	return nil
}

func (p *synthetic) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return nil
	}
	p.playing = true
	p.stop = make(chan struct{})
	for _, in := range p.inputs {
		p.drain(in)
	}
	if len(p.spec.Outputs) > 0 {
		p.wg.Add(1)
		go p.produce(p.stop)
	}
	return nil
}

func (p *synthetic) Stop() error {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return nil
	}
	p.playing = false
	close(p.stop)
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

func (p *synthetic) AttachInput(in Input) error {
	if in.Consumer == nil {
		return fmt.Errorf("input %s has no consumer", in.LinkID)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputs = append(p.inputs, in)
	if p.playing {
		p.drain(in)
	}
	return nil
}

func (p *synthetic) Apply(s Settings) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = cloneSettings(s)
	return nil
}

func (p *synthetic) Stats() types.PipelineStats {
	return types.PipelineStats{
		FramesIn:  p.framesIn.Load(),
		FramesOut: p.framesOut.Load(),
		Dropped:   p.dropped.Load(),
	}
}

// drain must be called with p.mu held and p.playing set. The goroutine
// ends when the consumer is detached or the pipeline stops.
func (p *synthetic) drain(in Input) {
	stop := p.stop
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-in.Consumer.Events():
				if !ok {
					return
				}
				switch ev.Kind {
				case bridge.EventSample:
					p.framesIn.Add(1)
					ev.Sample.Release()
				case bridge.EventEOS:
					p.log.Debug("input ended", "link_id", in.LinkID)
				}
			}
		}
	}()
}

func (p *synthetic) produce(stop chan struct{}) {
	defer p.wg.Done()
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	limit := frameLimit(p.spec.Settings.Node)
	var pts time.Duration
	var sent uint64
	for {
		if limit > 0 && sent >= limit {
			for _, out := range p.spec.Outputs {
				_ = out.EndOfStream()
			}
			if p.spec.Events != nil {
				p.spec.Events.EndOfStream(p.spec.NodeID)
			}
			return
		}
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		p.mu.Lock()
		settings := p.settings.Node
		p.mu.Unlock()

		for kind, out := range p.spec.Outputs {
			fr := bridge.Frame{
				Format:   formatFor(kind, settings),
				PTS:      pts,
				Duration: p.interval,
				Keyframe: true,
			}
			if err := out.Push(fr); err != nil {
				p.dropped.Add(1)
				continue
			}
			p.framesOut.Add(1)
		}
		pts += p.interval
		sent++
	}
}

func frameLimit(settings map[string]any) uint64 {
	raw, _ := settings["uri"].(string)
	u, err := url.Parse(raw)
	if err != nil {
		return 0
	}
	n, err := strconv.ParseUint(u.Query().Get("frames"), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func formatFor(kind types.MediaKind, settings map[string]any) *bridge.Format {
	if kind == types.Audio {
		return &bridge.Format{Media: "audio/x-raw", Params: map[string]string{
			"rate": intParam(settings, "sample-rate", 48000),
		}}
	}
	return &bridge.Format{Media: "video/x-raw", Params: map[string]string{
		"width":  intParam(settings, "width", 1280),
		"height": intParam(settings, "height", 720),
	}}
}

func intParam(settings map[string]any, key string, def int) string {
	if f, ok := control.AsFloat(settings[key]); ok {
		return strconv.Itoa(int(f))
	}
	return strconv.Itoa(def)
}

func cloneSettings(s Settings) Settings {
	out := Settings{Node: maps.Clone(s.Node)}
	if s.Slots != nil {
		out.Slots = make(map[string]map[string]any, len(s.Slots))
		for id, m := range s.Slots {
			out.Slots[id] = maps.Clone(m)
		}
	}
	return out
}
