package domain

import (
	"context"
	"time"
)

// EventStore persists enriched events as durable rows. The relay treats
// the write as fire-and-forget: publishing to the relay channel never
// waits on it and never fails because of it.
type EventStore interface {
	SaveEvent(ctx context.Context, e Event) error
}

// AgentRegistry records agent liveness derived from heartbeat messages
// on the upstream topic.
type AgentRegistry interface {
	RecordHeartbeat(ctx context.Context, agentName, status string, at time.Time) error
}
