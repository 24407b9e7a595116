package retry

import (
	"context"
	"time"
)

// Backoff produces capped exponential delays for reconnect loops. The
// zero value is not usable; construct with NewBackoff.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// NewBackoff creates a backoff starting at initial and doubling up to max.
func NewBackoff(initial, max time.Duration) *Backoff {
	return &Backoff{initial: initial, max: max, current: initial}
}

// Next returns the delay to wait before the next attempt and advances
// the sequence.
func (b *Backoff) Next() time.Duration {
	d := b.current
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// Reset restarts the sequence after a successful attempt.
func (b *Backoff) Reset() {
	b.current = b.initial
}

// Sleep waits for the next backoff delay or until ctx is cancelled.
// Returns ctx.Err() when cancelled, nil when the delay elapsed.
func (b *Backoff) Sleep(ctx context.Context) error {
	timer := time.NewTimer(b.Next())
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
