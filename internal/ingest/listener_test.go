package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BNLNPPS/swf-monitor/internal/domain"
	"github.com/BNLNPPS/swf-monitor/internal/relay"
)

type fakeStore struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (f *fakeStore) SaveEvent(_ context.Context, e domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakeStore) saved() []domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Event(nil), f.events...)
}

type fakeRegistry struct {
	mu         sync.Mutex
	heartbeats map[string]string
}

func (f *fakeRegistry) RecordHeartbeat(_ context.Context, agentName, status string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.heartbeats == nil {
		f.heartbeats = make(map[string]string)
	}
	f.heartbeats[agentName] = status
	return nil
}

func testListener(t *testing.T, store *fakeStore, registry *fakeRegistry) (*Listener, *relay.Subscription) {
	t.Helper()

	channel := relay.NewMemoryChannel()
	t.Cleanup(func() { _ = channel.Close() })

	sub, err := channel.Subscribe(context.Background())
	require.NoError(t, err)
	t.Cleanup(sub.Close)

	clock := clockwork.NewFakeClockAt(time.Unix(1700000000, 0))
	l := NewListener(Options{Topic: "epictopic"}, store, registry, channel, clock)
	return l, sub
}

func published(t *testing.T, sub *relay.Subscription) domain.Event {
	t.Helper()
	select {
	case e := <-sub.Events():
		return e
	case <-time.After(time.Second):
		t.Fatal("no event published to relay channel")
		return domain.Event{}
	}
}

func TestHandle_WorkflowMessageStoredAndPublished(t *testing.T) {
	store := &fakeStore{}
	l, sub := testListener(t, store, &fakeRegistry{})

	l.handle(context.Background(), "epictopic", []byte(`{"msg_type":"stf_gen","run_id":"101","filename":"stf_101.dat"}`))

	e := published(t, sub)
	assert.Equal(t, "stf_gen", e.MessageType)
	assert.Equal(t, "101", e.RunID)
	assert.Equal(t, "daq-simulator", e.SenderAgent)
	assert.Equal(t, "data-agent", e.RecipientAgent)
	assert.Equal(t, "epictopic", e.QueueName)
	assert.Equal(t, int64(1700000000), e.SentAt)
	assert.Equal(t, "stf_101.dat", e.Payload["filename"])

	require.Len(t, store.saved(), 1)
	assert.Equal(t, e, store.saved()[0])
}

func TestHandle_StoreFailureStillPublishes(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	l, sub := testListener(t, store, &fakeRegistry{})

	l.handle(context.Background(), "epictopic", []byte(`{"msg_type":"data_ready"}`))

	e := published(t, sub)
	assert.Equal(t, "data_ready", e.MessageType)
}

func TestHandle_MalformedMessageDropped(t *testing.T) {
	store := &fakeStore{}
	l, sub := testListener(t, store, &fakeRegistry{})

	l.handle(context.Background(), "epictopic", []byte(`{not json`))

	assert.Empty(t, store.saved())
	select {
	case e := <-sub.Events():
		t.Fatalf("malformed message must not be relayed, got %v", e.MessageType)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandle_HeartbeatUpdatesRegistry(t *testing.T) {
	registry := &fakeRegistry{}
	store := &fakeStore{}
	l, sub := testListener(t, store, registry)

	l.handle(context.Background(), "epictopic", []byte(`{"agent_name":"daq-simulator","status":"OK"}`))

	assert.Equal(t, "OK", registry.heartbeats["daq-simulator"])
	assert.Empty(t, store.saved())
	select {
	case <-sub.Events():
		t.Fatal("heartbeats must not be relayed")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandle_UnrecognizedMessageDropped(t *testing.T) {
	store := &fakeStore{}
	l, sub := testListener(t, store, &fakeRegistry{})

	l.handle(context.Background(), "epictopic", []byte(`{"hello":"world"}`))

	assert.Empty(t, store.saved())
	select {
	case <-sub.Events():
		t.Fatal("unrecognized message must not be relayed")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEnrich_ProcessedByWins(t *testing.T) {
	e := enrich(map[string]any{
		"msg_type":     "stf_gen",
		"processed_by": "daq-sim-02",
	}, "epictopic", time.Unix(1, 0))

	assert.Equal(t, "daq-sim-02", e.SenderAgent)
}

func TestEnrich_UnknownMsgType(t *testing.T) {
	e := enrich(map[string]any{"msg_type": "mystery"}, "epictopic", time.Unix(1, 0))

	assert.Equal(t, "unknown", e.SenderAgent)
	assert.Equal(t, "unknown", e.RecipientAgent)
}

func TestEnrich_KeepsUpstreamTimestamp(t *testing.T) {
	e := enrich(map[string]any{
		"msg_type": "stf_gen",
		"sent_at":  float64(123),
	}, "epictopic", time.Unix(999, 0))

	assert.Equal(t, int64(123), e.SentAt)
}
