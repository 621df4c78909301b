// Package bridge fans out one producer's media stream to any number of
// consumers. Each consumer reads from its own bounded queue; when a
// queue is full the oldest queued event is dropped so the producer
// never blocks and consumers always see the freshest media.
package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

const DefaultBuffer = 64

var (
	ErrConsumerExists = errors.New("bridge: consumer already attached")
	ErrDetached       = errors.New("bridge: producer detached")
)

type Option func(*Bridge)

// WithBuffer sets the per-consumer queue length.
func WithBuffer(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.buffer = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.log = l }
}

// Bridge connects at most one producer to many consumers keyed by link id.
type Bridge struct {
	key    string
	buffer int
	log    *slog.Logger

	mu        sync.Mutex
	producer  uint64
	nextGen   uint64
	format    *Format
	consumers map[string]*Consumer
}

func New(key string, opts ...Option) *Bridge {
	b := &Bridge{
		key:       key,
		buffer:    DefaultBuffer,
		log:       slog.Default(),
		consumers: map[string]*Consumer{},
	}
	for _, o := range opts {
		o(b)
	}
	b.log = b.log.With("bridge", key)
	return b
}

// Producer is the write side of a bridge. A handle stops working once
// the producer is detached or replaced.
type Producer struct {
	b   *Bridge
	gen uint64

	// bridge state replaced by this handle, restored by AbortProducer
	prevGen    uint64
	prevFormat *Format
}

// AttachProducer binds a new producer, replacing any previous one, and
// forgets the cached format.
func (b *Bridge) AttachProducer() *Producer {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := &Producer{b: b, prevGen: b.producer, prevFormat: b.format}
	b.nextGen++
	b.producer = b.nextGen
	b.format = nil
	p.gen = b.producer
	return p
}

// AbortProducer undoes AttachProducer for a handle that never pushed:
// the previous producer and format come back and consumers see nothing.
// It reports whether the bridge is now unused.
func (b *Bridge) AbortProducer(p *Producer) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p != nil && p.b == b && p.gen == b.producer {
		b.producer = p.prevGen
		b.format = p.prevFormat
	}
	return b.unusedLocked()
}

// DetachProducer unbinds p, sending end-of-stream to every consumer.
// It reports whether the bridge is now unused.
func (b *Bridge) DetachProducer(p *Producer) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p != nil && p.b == b && p.gen == b.producer {
		b.producer = 0
		for _, c := range b.consumers {
			c.deliver(Event{Kind: EventEOS})
		}
	}
	return b.unusedLocked()
}

// Push admits a frame and fans it out to every attached consumer.
func (p *Producer) Push(fr Frame) error { return p.PushWithRelease(fr, nil) }

// PushWithRelease is Push with a hook run once every consumer has
// released the sample.
func (p *Producer) PushWithRelease(fr Frame, done func()) error {
	b := p.b
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.gen != b.producer {
		if done != nil {
			done()
		}
		return ErrDetached
	}
	if fr.Format != nil && !fr.Format.Equal(b.format) {
		b.format = fr.Format
		b.log.Debug("format changed", "media", fr.Format.Media)
	}
	s := newSample(fr, len(b.consumers), done)
	for _, c := range b.consumers {
		c.deliver(Event{Kind: EventSample, Format: b.format, Sample: s})
	}
	return nil
}

// EndOfStream signals consumers that no further frames follow until a
// producer pushes again.
func (p *Producer) EndOfStream() error {
	b := p.b
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.gen != b.producer {
		return ErrDetached
	}
	for _, c := range b.consumers {
		c.deliver(Event{Kind: EventEOS})
	}
	return nil
}

// AttachConsumer registers a consumer under linkID. A consumer joining
// after the producer announced a format receives that format first.
func (b *Bridge) AttachConsumer(linkID string) (*Consumer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.consumers[linkID]; ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrConsumerExists, linkID, b.key)
	}
	c := &Consumer{id: linkID, events: make(chan Event, b.buffer)}
	if b.format != nil {
		c.deliver(Event{Kind: EventFormat, Format: b.format})
	}
	b.consumers[linkID] = c
	return c, nil
}

// DetachConsumer removes the consumer, closes its queue and releases
// any samples still queued. It reports whether the bridge is now unused.
func (b *Bridge) DetachConsumer(linkID string) bool {
	b.mu.Lock()
	c, ok := b.consumers[linkID]
	delete(b.consumers, linkID)
	unused := b.unusedLocked()
	b.mu.Unlock()
	if ok {
		c.close()
	}
	return unused
}

// Unused reports whether neither a producer nor any consumer is attached.
func (b *Bridge) Unused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unusedLocked()
}

func (b *Bridge) unusedLocked() bool {
	return b.producer == 0 && len(b.consumers) == 0
}

// Close detaches everything.
func (b *Bridge) Close() {
	b.mu.Lock()
	consumers := b.consumers
	b.consumers = map[string]*Consumer{}
	b.producer = 0
	b.format = nil
	b.mu.Unlock()
	for _, c := range consumers {
		c.close()
	}
}

// Format returns the cached producer format, if any.
func (b *Bridge) Format() *Format {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.format
}

type ConsumerStats struct {
	LinkID    string `json:"link_id"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Queued    int    `json:"queued"`
}

type Stats struct {
	Key       string          `json:"key"`
	Producer  bool            `json:"producer"`
	Consumers []ConsumerStats `json:"consumers"`
}

func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := Stats{Key: b.key, Producer: b.producer != 0}
	for _, c := range b.consumers {
		st.Consumers = append(st.Consumers, c.stats())
	}
	sort.Slice(st.Consumers, func(i, j int) bool { return st.Consumers[i].LinkID < st.Consumers[j].LinkID })
	return st
}
