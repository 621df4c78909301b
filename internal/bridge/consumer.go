package bridge

import "sync/atomic"

// Consumer is the read side of one link. Read events from Events until
// the channel is closed by DetachConsumer, releasing each sample.
type Consumer struct {
	id     string
	events chan Event

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

func (c *Consumer) ID() string { return c.id }

func (c *Consumer) Events() <-chan Event { return c.events }

// deliver enqueues ev without blocking, evicting the oldest queued
// event when full. Called with the bridge lock held, which makes the
// bridge the only sender.
func (c *Consumer) deliver(ev Event) {
	select {
	case c.events <- ev:
		c.delivered.Add(1)
		return
	default:
	}
	select {
	case old := <-c.events:
		c.evict(old)
	default:
	}
	select {
	case c.events <- ev:
		c.delivered.Add(1)
	default:
		c.evict(ev)
	}
}

func (c *Consumer) evict(ev Event) {
	c.dropped.Add(1)
	if ev.Sample != nil {
		ev.Sample.Release()
	}
}

// close must only be called once the consumer is unreachable from the
// bridge.
func (c *Consumer) close() {
	close(c.events)
	for ev := range c.events {
		if ev.Sample != nil {
			ev.Sample.Release()
		}
	}
}

func (c *Consumer) stats() ConsumerStats {
	return ConsumerStats{
		LinkID:    c.id,
		Delivered: c.delivered.Load(),
		Dropped:   c.dropped.Load(),
		Queued:    len(c.events),
	}
}
