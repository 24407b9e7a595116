package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistration(t *testing.T) {
	// Verify all metrics are registered without conflicts
	// This test ensures no duplicate metric names

	metrics := []prometheus.Collector{
		// Ingest metrics
		IngestMessagesTotal,
		IngestStoreErrorsTotal,
		IngestReconnectsTotal,
		IngestConnected,

		// Relay channel metrics
		RelayPublishTotal,
		RelayCircuitState,
		SubscriberReconnectsTotal,
		SubscriberEventsTotal,

		// Broadcaster metrics
		BroadcasterConnectedClients,
		BroadcasterDeliveriesTotal,
		BroadcasterEvictionsTotal,
		BroadcasterCommandChannelDepth,
		BroadcasterPanicsTotal,
		BroadcasterStopTimeoutsTotal,

		// SSE metrics
		SSEConnectionsTotal,
		SSEConnectionsRejected,
		SSEHeartbeatsTotal,
		SSEEventsSentTotal,
		SSEConnectionDuration,
	}

	// Verify each metric is registered
	for _, metric := range metrics {
		desc := make(chan *prometheus.Desc, 1)
		metric.Describe(desc)
		close(desc)

		require.NotNil(t, <-desc, "metric should have a valid descriptor")
	}
}

func TestCounterMetrics(t *testing.T) {
	tests := []struct {
		name    string
		metric  *prometheus.CounterVec
		labels  prometheus.Labels
		incBy   float64
		wantVal float64
	}{
		{
			name:    "ingest messages counter",
			metric:  IngestMessagesTotal,
			labels:  prometheus.Labels{"outcome": "event"},
			incBy:   5,
			wantVal: 5,
		},
		{
			name:    "relay publish counter",
			metric:  RelayPublishTotal,
			labels:  prometheus.Labels{"status": "ok"},
			incBy:   10,
			wantVal: 10,
		},
		{
			name:    "sse rejections counter",
			metric:  SSEConnectionsRejected,
			labels:  prometheus.Labels{"reason": "global_limit"},
			incBy:   1,
			wantVal: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := tt.metric.With(tt.labels)
			before := testutil.ToFloat64(counter)

			counter.Add(tt.incBy)

			assert.Equal(t, before+tt.wantVal, testutil.ToFloat64(counter))
		})
	}
}

func TestGaugeMetrics(t *testing.T) {
	BroadcasterConnectedClients.Set(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(BroadcasterConnectedClients))

	BroadcasterConnectedClients.Set(0)
	assert.Equal(t, float64(0), testutil.ToFloat64(BroadcasterConnectedClients))

	IngestConnected.Set(1)
	assert.Equal(t, float64(1), testutil.ToFloat64(IngestConnected))
}
