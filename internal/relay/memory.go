package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/BNLNPPS/swf-monitor/internal/domain"
	"github.com/BNLNPPS/swf-monitor/internal/metrics"
)

// MemoryChannel loops published events straight back to subscriptions
// in the same process. It exists for local development and single
// process deployments only: it cannot fan out across processes, so
// clients connected to any other process never see an event published
// here.
type MemoryChannel struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewMemoryChannel creates the in-process loopback backend.
func NewMemoryChannel() *MemoryChannel {
	slog.Warn("Using in-memory relay channel; events will not reach other server processes")
	return &MemoryChannel{subs: make(map[*Subscription]struct{})}
}

// Publish delivers the event to every local subscription. Never blocks:
// a subscription whose buffer is full loses the event.
func (c *MemoryChannel) Publish(_ context.Context, e domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for sub := range c.subs {
		select {
		case sub.ch <- e:
		default:
			slog.Warn("In-memory relay subscription full, dropping event",
				"msg_type", e.MessageType,
			)
		}
	}
	metrics.RelayPublishTotal.WithLabelValues("ok").Inc()
	return nil
}

// Subscribe registers a local subscription.
func (c *MemoryChannel) Subscribe(ctx context.Context) (*Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, context.Canceled
	}

	sub := &Subscription{ch: make(chan domain.Event, subscriptionDepth)}

	var once sync.Once
	remove := func() {
		once.Do(func() {
			c.mu.Lock()
			if _, ok := c.subs[sub]; ok {
				delete(c.subs, sub)
				close(sub.ch)
			}
			c.mu.Unlock()
		})
	}
	sub.cancel = remove
	c.subs[sub] = struct{}{}

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			remove()
		}()
	}

	return sub, nil
}

// Close ends every live subscription.
func (c *MemoryChannel) Close() error {
	c.mu.Lock()
	subs := make([]*Subscription, 0, len(c.subs))
	for sub := range c.subs {
		subs = append(subs, sub)
	}
	c.closed = true
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	return nil
}
