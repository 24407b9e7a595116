package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingest Metrics
var (
	// IngestMessagesTotal tracks upstream broker messages by outcome
	IngestMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_messages_total",
			Help: "Upstream broker messages by outcome (event/heartbeat/malformed/unrecognized)",
		},
		[]string{"outcome"},
	)

	// IngestStoreErrorsTotal tracks durable store write failures
	IngestStoreErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_store_errors_total",
			Help: "Total durable store write failures (events still relayed)",
		},
	)

	// IngestReconnectsTotal tracks broker reconnection attempts
	IngestReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_reconnects_total",
			Help: "Total broker reconnection attempts after disconnect",
		},
	)

	// IngestConnected tracks whether the broker connection is up (1) or down (0)
	IngestConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingest_connected",
			Help: "1 if the broker subscription is active, 0 if disconnected",
		},
	)
)

// Relay Channel Metrics
var (
	// RelayPublishTotal tracks relay channel publishes by status
	RelayPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_publish_total",
			Help: "Relay channel publishes by status (ok/error)",
		},
		[]string{"status"},
	)

	// RelayCircuitState tracks the publish circuit breaker state (0=closed, 1=half-open, 2=open)
	RelayCircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_publish_circuit_state",
			Help: "Relay publish circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// SubscriberReconnectsTotal tracks relay subscription reconnection attempts
	SubscriberReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriber_reconnects_total",
			Help: "Total relay subscription reconnection attempts after disconnect",
		},
	)

	// SubscriberEventsTotal tracks events forwarded from the relay channel to the local broadcaster
	SubscriberEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriber_events_total",
			Help: "Total events forwarded from the relay channel to the local broadcaster",
		},
	)
)

// Broadcaster Metrics
var (
	// BroadcasterConnectedClients tracks currently registered SSE clients
	BroadcasterConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcaster_connected_clients",
			Help: "Number of SSE clients currently registered with the local broadcaster",
		},
	)

	// BroadcasterDeliveriesTotal tracks events enqueued to matching clients
	BroadcasterDeliveriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_deliveries_total",
			Help: "Total events enqueued to matching client queues",
		},
	)

	// BroadcasterEvictionsTotal tracks queue overflow evictions (drop-oldest)
	BroadcasterEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_evictions_total",
			Help: "Total queued events evicted because a client queue was full",
		},
	)

	// BroadcasterCommandChannelDepth tracks current command channel depth
	BroadcasterCommandChannelDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcaster_command_channel_depth",
			Help: "Current command channel depth",
		},
	)

	// BroadcasterPanicsTotal tracks broadcaster panic recoveries
	BroadcasterPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_panics_total",
			Help: "Total broadcaster panic recoveries",
		},
	)

	// BroadcasterStopTimeoutsTotal tracks broadcaster stops that exceeded timeout
	BroadcasterStopTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_stop_timeouts_total",
			Help: "Broadcaster stops that exceeded timeout",
		},
	)
)

// SSE Metrics
var (
	// SSEConnectionsTotal tracks SSE connection attempts by result
	SSEConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sse_connections_total",
			Help: "Total SSE connection attempts by result (success/rejected)",
		},
		[]string{"result"},
	)

	// SSEConnectionsRejected tracks rejected SSE connections by reason
	SSEConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sse_connections_rejected_total",
			Help: "Total SSE connections rejected by reason (rate_limit/global_limit/unauthorized)",
		},
		[]string{"reason"},
	)

	// SSEHeartbeatsTotal tracks heartbeat frames emitted
	SSEHeartbeatsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sse_heartbeats_total",
			Help: "Total heartbeat frames emitted to SSE clients",
		},
	)

	// SSEEventsSentTotal tracks event frames written to clients
	SSEEventsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sse_events_sent_total",
			Help: "Total event frames written to SSE clients",
		},
	)

	// SSEConnectionDuration tracks SSE connection duration
	SSEConnectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sse_connection_duration_seconds",
			Help:    "SSE connection duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 300, 600, 1800, 3600},
		},
	)
)
