package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/BNLNPPS/swf-monitor/internal/domain"
	"github.com/BNLNPPS/swf-monitor/internal/metrics"
)

const (
	publishTimeout    = 2 * time.Second
	subscriptionDepth = 64
)

// RedisChannel fans events out across processes via Redis Pub/Sub.
// This is the only backend suitable when more than one server process
// must receive the same events.
type RedisChannel struct {
	rdb     *redis.Client
	group   string
	breaker *gobreaker.CircuitBreaker
}

// NewRedisChannel creates a channel publishing and subscribing on the
// given group name. Publishes are guarded by a circuit breaker so a
// dead Redis fails fast instead of stalling the ingest loop.
func NewRedisChannel(rdb *redis.Client, group string) *RedisChannel {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "relay-publish",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Relay publish circuit state changed",
				"from", from.String(),
				"to", to.String(),
			)
			metrics.RelayCircuitState.Set(circuitStateValue(to))
		},
	})
	return &RedisChannel{rdb: rdb, group: group, breaker: breaker}
}

func circuitStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// Publish sends the event to every subscriber of the group. Best
// effort: the call is bounded by a short timeout and an open circuit
// rejects immediately.
func (c *RedisChannel) Publish(ctx context.Context, e domain.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = c.breaker.Execute(func() (any, error) {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		return nil, c.rdb.Publish(pubCtx, c.group, data).Err()
	})
	if err != nil {
		metrics.RelayPublishTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("publish to group %q: %w", c.group, err)
	}
	metrics.RelayPublishTotal.WithLabelValues("ok").Inc()
	return nil
}

// Subscribe joins the group. The returned subscription's channel closes
// when ctx is cancelled, Close is called, or the underlying pubsub
// connection terminates.
func (c *RedisChannel) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, c.group)

	// Force the SUBSCRIBE onto the wire so a dead Redis surfaces here
	// rather than as a silent never-delivering subscription.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to group %q: %w", c.group, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	events := make(chan domain.Event, subscriptionDepth)

	go func() {
		defer close(events)
		defer func() { _ = pubsub.Close() }()

		msgCh := pubsub.Channel()
		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				var e domain.Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					slog.Warn("Dropping undecodable relay message",
						"group", c.group,
						"error", err,
					)
					continue
				}
				select {
				case events <- e:
				case <-subCtx.Done():
					return
				}
			case <-subCtx.Done():
				return
			}
		}
	}()

	return &Subscription{ch: events, cancel: cancel}, nil
}

// Close releases nothing beyond the breaker state; the Redis client is
// owned by the caller and shared with health checks.
func (c *RedisChannel) Close() error {
	return nil
}
