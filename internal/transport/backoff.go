package transport

import "time"

// Backoff is a simple doubling backoff capped at a maximum, used by
// reconnect.Engine between reconnect attempts.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// NewBackoff returns a Backoff starting at initial and doubling up to max.
func NewBackoff(initial, max time.Duration) *Backoff {
	return &Backoff{initial: initial, max: max, current: initial}
}

// Next returns the current delay and doubles it for the next call,
// capped at max.
func (b *Backoff) Next() time.Duration {
	delay := b.current
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return delay
}

// Reset returns the backoff to its initial delay, called after a
// successful (re)connect.
func (b *Backoff) Reset() {
	b.current = b.initial
}
