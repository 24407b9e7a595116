package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/jonboulle/clockwork"

	"github.com/BNLNPPS/swf-monitor/internal/domain"
	"github.com/BNLNPPS/swf-monitor/internal/logging"
	"github.com/BNLNPPS/swf-monitor/internal/metrics"
	"github.com/BNLNPPS/swf-monitor/internal/relay"
	"github.com/BNLNPPS/swf-monitor/internal/retry"
)

const (
	initialBackoff = time.Second
	maxBackoff     = time.Minute

	// Heartbeats negotiated with the broker, matching the agents on the
	// other side of the topic.
	heartbeatSend    = 5 * time.Second
	heartbeatReceive = 10 * time.Second

	storeTimeout   = 5 * time.Second
	publishTimeout = 5 * time.Second
)

// Options configures the broker connection.
type Options struct {
	Addr     string
	User     string
	Password string
	Topic    string
}

// Listener is the single point of contact with the upstream broker. It
// decodes each frame, enriches workflow messages into events, hands
// them to the durable store, and publishes them on the relay channel.
type Listener struct {
	opts    Options
	store   domain.EventStore
	agents  domain.AgentRegistry
	channel relay.Channel
	clock   clockwork.Clock
}

// NewListener creates a listener. store and agents may be no-ops; the
// relay never couples to their success.
func NewListener(opts Options, store domain.EventStore, agents domain.AgentRegistry, channel relay.Channel, clock clockwork.Clock) *Listener {
	return &Listener{
		opts:    opts,
		store:   store,
		agents:  agents,
		channel: channel,
		clock:   clock,
	}
}

// Run consumes the broker topic until ctx is cancelled, reconnecting
// with backoff after any disconnect. Messages arriving while the
// connection is down are not replayed here; that matches the topic's
// own delivery guarantees.
func (l *Listener) Run(ctx context.Context) {
	backoff := retry.NewBackoff(initialBackoff, maxBackoff)

	for ctx.Err() == nil {
		if err := l.consume(ctx); err != nil {
			metrics.IngestConnected.Set(0)
			if ctx.Err() != nil {
				return
			}
			slog.Error("Broker connection lost, reconnecting", "addr", l.opts.Addr, "error", err)
			metrics.IngestReconnectsTotal.Inc()
			if backoff.Sleep(ctx) != nil {
				return
			}
			continue
		}
		backoff.Reset()
	}
}

// consume connects, subscribes, and processes frames until the
// subscription ends or ctx is cancelled.
func (l *Listener) consume(ctx context.Context) error {
	conn, err := stomp.Dial("tcp", l.opts.Addr,
		stomp.ConnOpt.Login(l.opts.User, l.opts.Password),
		stomp.ConnOpt.HeartBeat(heartbeatSend, heartbeatReceive),
	)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Disconnect() }()

	sub, err := conn.Subscribe(l.opts.Topic, stomp.AckAuto)
	if err != nil {
		return err
	}

	slog.Info("Connected to broker", "addr", l.opts.Addr, "topic", l.opts.Topic)
	metrics.IngestConnected.Set(1)

	for {
		select {
		case msg, ok := <-sub.C:
			if !ok {
				return stomp.ErrClosedUnexpectedly
			}
			if msg.Err != nil {
				return msg.Err
			}
			l.handle(ctx, msg.Destination, msg.Body)
		case <-ctx.Done():
			metrics.IngestConnected.Set(0)
			return nil
		}
	}
}

// handle processes one frame. Malformed or unrecognized bodies are
// logged and dropped; they never crash the ingest loop.
func (l *Listener) handle(ctx context.Context, destination string, body []byte) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		slog.Error("Failed to decode broker message", "error", err, "body_len", len(body))
		metrics.IngestMessagesTotal.WithLabelValues("malformed").Inc()
		return
	}

	switch {
	case isHeartbeat(raw):
		l.handleHeartbeat(ctx, raw)
	case isWorkflowMessage(raw):
		l.handleWorkflowMessage(ctx, destination, raw)
	default:
		slog.Debug("Unrecognized message format", "destination", destination)
		metrics.IngestMessagesTotal.WithLabelValues("unrecognized").Inc()
	}
}

func (l *Listener) handleHeartbeat(ctx context.Context, raw map[string]any) {
	metrics.IngestMessagesTotal.WithLabelValues("heartbeat").Inc()

	agentName, _ := raw["agent_name"].(string)
	if agentName == "" {
		slog.Warn("Heartbeat message missing agent_name")
		return
	}
	status, _ := raw["status"].(string)
	if status == "" {
		status = "UNKNOWN"
	}

	hbCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := l.agents.RecordHeartbeat(hbCtx, agentName, status, l.clock.Now()); err != nil {
		logging.WithAgent(agentName).Error("Failed to record agent heartbeat", "error", err)
	}
}

// handleWorkflowMessage performs exactly one durable write and exactly
// one relay publish per inbound message. The write is fire-and-forget:
// a store failure is logged and the event is still relayed.
func (l *Listener) handleWorkflowMessage(ctx context.Context, destination string, raw map[string]any) {
	metrics.IngestMessagesTotal.WithLabelValues("event").Inc()

	e := enrich(raw, destination, l.clock.Now())

	storeCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	if err := l.store.SaveEvent(storeCtx, e); err != nil {
		slog.Error("Failed to persist event", "msg_type", e.MessageType, "run_id", e.RunID, "error", err)
		metrics.IngestStoreErrorsTotal.Inc()
	}
	cancel()

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := l.channel.Publish(pubCtx, e); err != nil {
		slog.Error("Failed to publish event to relay channel", "msg_type", e.MessageType, "run_id", e.RunID, "error", err)
		return
	}

	slog.Debug("Relayed workflow message",
		"msg_type", e.MessageType,
		"run_id", e.RunID,
		"sender_agent", e.SenderAgent,
	)
}
