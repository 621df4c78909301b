// Package clock abstracts time so the scheduler and synthetic pipelines
// can run against a deterministic fake in tests.
package clock

import "time"

// Clock is the subset of the time package the control plane uses.
type Clock interface {
	Now() time.Time

	// After returns a channel that receives once d has elapsed. If
	// d <= 0 the channel is ready immediately.
	After(d time.Duration) <-chan time.Time

	// NewTimer returns a stoppable one-shot timer.
	NewTimer(d time.Duration) *Timer

	// NewTicker panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Timer is a one-shot event. C has capacity 1.
type Timer struct {
	C <-chan time.Time

	stopFunc func() bool
}

// Stop reports whether the call prevented the timer from firing.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Ticker delivers periodic ticks on C. Ticks are dropped when the
// reader falls behind.
type Ticker struct {
	C <-chan time.Time

	stopFunc  func()
	resetFunc func(time.Duration)
}

func (t *Ticker) Stop() { t.stopFunc() }

func (t *Ticker) Reset(d time.Duration) { t.resetFunc(d) }
