package relay

import (
	"context"

	"github.com/BNLNPPS/swf-monitor/internal/domain"
)

// Channel is the cross-process publish/subscribe transport used to fan
// workflow events out to every server process.
//
// Publish is best-effort: it returns without waiting for any subscriber
// to consume the event, fails within a bounded time when the transport
// is down, and the event is then simply lost to the relay (the durable
// store is unaffected).
//
// Subscribe yields each published event at least once per long-lived
// subscription. Ordering is best-effort per publisher; there is no
// cross-process total order.
type Channel interface {
	Publish(ctx context.Context, e domain.Event) error
	Subscribe(ctx context.Context) (*Subscription, error)
	Close() error
}

// Subscription is one live join of the relay group. Events() is closed
// when the subscription ends, whether by Close or by transport failure;
// the caller decides whether to resubscribe.
type Subscription struct {
	ch     chan domain.Event
	cancel context.CancelFunc
}

// Events returns the stream of received events.
func (s *Subscription) Events() <-chan domain.Event {
	return s.ch
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.cancel()
}
