// Package subscriber bridges the cross-process relay channel and the
// local broadcaster: one background goroutine per server process joins
// the relay group and forwards every received event.
package subscriber

import (
	"context"
	"log/slog"
	"time"

	"github.com/BNLNPPS/swf-monitor/internal/broadcast"
	"github.com/BNLNPPS/swf-monitor/internal/metrics"
	"github.com/BNLNPPS/swf-monitor/internal/relay"
	"github.com/BNLNPPS/swf-monitor/internal/retry"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Subscriber forwards relay channel events into the local broadcaster.
// Exactly one runs per process, no matter how many SSE clients the
// process serves.
type Subscriber struct {
	channel     relay.Channel
	broadcaster *broadcast.Broadcaster
}

// New creates a subscriber over the given channel and broadcaster.
func New(channel relay.Channel, broadcaster *broadcast.Broadcaster) *Subscriber {
	return &Subscriber{channel: channel, broadcaster: broadcaster}
}

// Run joins the relay group and forwards events until ctx is cancelled.
// If the subscription ends (transport failure), it resubscribes with
// backoff; events published during the gap are not replayed.
func (s *Subscriber) Run(ctx context.Context) {
	backoff := retry.NewBackoff(initialBackoff, maxBackoff)

	for {
		sub, err := s.channel.Subscribe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("Relay subscription failed, retrying", "error", err)
			metrics.SubscriberReconnectsTotal.Inc()
			if backoff.Sleep(ctx) != nil {
				return
			}
			continue
		}
		backoff.Reset()
		slog.Info("Relay subscription established")

		s.forward(ctx, sub)
		sub.Close()

		if ctx.Err() != nil {
			return
		}
		slog.Warn("Relay subscription ended, resubscribing")
		metrics.SubscriberReconnectsTotal.Inc()
		if backoff.Sleep(ctx) != nil {
			return
		}
	}
}

// forward drains the subscription until it closes or ctx is cancelled.
func (s *Subscriber) forward(ctx context.Context, sub *relay.Subscription) {
	for {
		select {
		case e, ok := <-sub.Events():
			if !ok {
				return
			}
			metrics.SubscriberEventsTotal.Inc()
			s.broadcaster.Broadcast(e)
		case <-ctx.Done():
			return
		}
	}
}
