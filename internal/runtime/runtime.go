// Package runtime hosts a graph.Manager for a process: it runs the
// scheduler loop, turns JSON payloads into commands and replies, and
// fans node status events out to listeners.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/drunkod/fcast/internal/clock"
	"github.com/drunkod/fcast/internal/graph"
	"github.com/drunkod/fcast/internal/pipeline"
	"github.com/drunkod/fcast/internal/validate"
	"github.com/drunkod/fcast/pkg/types"
)

const (
	ServiceName           = "castd"
	DefaultListenerBuffer = 32
)

var ErrAlreadyStarted = errors.New("runtime already started")

type Options struct {
	Engine pipeline.Engine
	Clock  clock.Clock
	Logger *slog.Logger

	PrerollLead     time.Duration
	ControlInterval time.Duration
	ConsumerBuffer  int

	// ListenerBuffer is the per-subscriber status queue length. Events
	// for a full subscriber are dropped.
	ListenerBuffer int
}

type Runtime struct {
	opts    Options
	clock   clock.Clock
	log     *slog.Logger
	manager *graph.Manager
	wake    chan struct{}

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
	listeners map[uint64]chan types.NodeStatus
	nextSub   uint64
}

func New(opts Options) *Runtime {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ControlInterval <= 0 {
		opts.ControlInterval = graph.DefaultControlInterval
	}
	if opts.ListenerBuffer <= 0 {
		opts.ListenerBuffer = DefaultListenerBuffer
	}
	r := &Runtime{
		opts:      opts,
		clock:     opts.Clock,
		log:       opts.Logger,
		wake:      make(chan struct{}, 1),
		listeners: map[uint64]chan types.NodeStatus{},
	}
	r.manager = graph.New(graph.Options{
		Engine:          opts.Engine,
		Clock:           opts.Clock,
		Logger:          opts.Logger,
		PrerollLead:     opts.PrerollLead,
		ControlInterval: opts.ControlInterval,
		ConsumerBuffer:  opts.ConsumerBuffer,
		OnStatus:        r.broadcast,
	})
	return r
}

func (r *Runtime) Manager() *graph.Manager { return r.manager }

// Start launches the scheduler loop. It returns immediately; the loop
// runs until ctx is done or Shutdown is called.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	r.running = true
	r.startedAt = r.clock.Now()
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx, r.done)
	r.log.Info("runtime started")
	return nil
}

// Shutdown stops the scheduler, tears the graph down and closes every
// status subscription. It is safe to call more than once.
func (r *Runtime) Shutdown() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.running = false
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	r.manager.Shutdown()

	r.mu.Lock()
	for id, ch := range r.listeners {
		close(ch)
		delete(r.listeners, id)
	}
	r.mu.Unlock()
	r.log.Info("runtime stopped")
}

// loop ticks the manager, then sleeps until the next deadline, a wake
// signal or cancellation.
func (r *Runtime) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		now := r.clock.Now()
		r.manager.Tick(now)

		var timer *clock.Timer
		var fire <-chan time.Time
		if next, ok := r.manager.NextDeadline(now); ok {
			d := next.Sub(now)
			if d <= 0 {
				d = r.opts.ControlInterval
			}
			timer = r.clock.NewTimer(d)
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-r.wake:
		case <-fire:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (r *Runtime) poke() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// HandleCommand dispatches cmd and wakes the scheduler so schedule
// changes take effect without waiting for the previous deadline.
func (r *Runtime) HandleCommand(cmd types.Command) types.CommandResult {
	res := r.manager.Dispatch(cmd)
	r.poke()
	return res
}

func (r *Runtime) HandleControllerMessage(msg types.ControllerMessage) types.ServerMessage {
	id := msg.ID
	return types.ServerMessage{ID: &id, Result: r.HandleCommand(msg.Command)}
}

// Decode validates and parses an inbound payload. Errors wrap
// graph.ErrMalformedInput.
func Decode(payload []byte) (*uuid.UUID, types.Command, error) {
	if err := validate.Payload(payload); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", graph.ErrMalformedInput, err)
	}
	id, cmd, err := types.DecodeInbound(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", graph.ErrMalformedInput, err)
	}
	return id, cmd, nil
}

// HandleMessage answers an already decoded payload.
func (r *Runtime) HandleMessage(id *uuid.UUID, cmd types.Command) types.ServerMessage {
	return types.ServerMessage{ID: id, Result: r.HandleCommand(cmd)}
}

// HandleCommandJSON answers a JSON command or controller message with a
// JSON ServerMessage. Payloads that cannot be decoded return an error
// wrapping graph.ErrMalformedInput.
func (r *Runtime) HandleCommandJSON(payload []byte) ([]byte, error) {
	id, cmd, err := Decode(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(r.HandleMessage(id, cmd))
}

// TryHandleCommandJSON is HandleCommandJSON with decode failures turned
// into an error reply carrying a null id.
func (r *Runtime) TryHandleCommandJSON(payload []byte) []byte {
	out, err := r.HandleCommandJSON(payload)
	if err == nil {
		return out
	}
	r.log.Warn("rejected command payload", "error", err)
	out, merr := json.Marshal(types.ServerMessage{Result: types.Failure(err.Error())})
	if merr != nil {
		return []byte(`{"id":null,"result":{"error":"malformed input"}}`)
	}
	return out
}

type Health struct {
	OK        bool      `json:"ok"`
	Service   string    `json:"service"`
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started"`
	Nodes     int       `json:"nodes"`
	Links     int       `json:"links"`
	Bridges   int       `json:"bridges"`
}

func (r *Runtime) Health() Health {
	st := r.manager.Stats()
	r.mu.Lock()
	defer r.mu.Unlock()
	return Health{
		OK:        true,
		Service:   ServiceName,
		Running:   r.running,
		StartedAt: r.startedAt,
		Nodes:     st.Nodes,
		Links:     st.Links,
		Bridges:   st.Bridges,
	}
}

// Subscribe registers a status listener. The returned cancel function
// unregisters it and closes the channel.
func (r *Runtime) Subscribe() (<-chan types.NodeStatus, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	ch := make(chan types.NodeStatus, r.opts.ListenerBuffer)
	r.listeners[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() { r.unsubscribe(id) })
	}
}

func (r *Runtime) unsubscribe(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.listeners[id]; ok {
		close(ch)
		delete(r.listeners, id)
	}
}

func (r *Runtime) broadcast(st types.NodeStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ch := range r.listeners {
		select {
		case ch <- st:
		default:
			r.log.Debug("status listener full, dropping event", "listener", id, "node_id", st.ID)
		}
	}
}

// RunScript answers each payload in order, as TryHandleCommandJSON
// would, and reports how many replies carried an error.
func (r *Runtime) RunScript(payloads []json.RawMessage) ([]json.RawMessage, int) {
	replies := make([]json.RawMessage, 0, len(payloads))
	failed := 0
	for i, p := range payloads {
		out := r.TryHandleCommandJSON(p)
		var msg types.ServerMessage
		if err := json.Unmarshal(out, &msg); err != nil || !msg.Result.OK() {
			failed++
			r.log.Warn("script command failed", "index", i, "reply", string(out))
		}
		replies = append(replies, out)
	}
	return replies, failed
}
