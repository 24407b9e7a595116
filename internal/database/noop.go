package database

import (
	"context"
	"time"

	"github.com/BNLNPPS/swf-monitor/internal/domain"
)

// NoopStore satisfies the durable-store interfaces when no database is
// configured. The relay is fully functional without one; durability is
// simply off.
type NoopStore struct{}

var (
	_ domain.EventStore    = NoopStore{}
	_ domain.AgentRegistry = NoopStore{}
)

func (NoopStore) SaveEvent(context.Context, domain.Event) error { return nil }

func (NoopStore) RecordHeartbeat(context.Context, string, string, time.Time) error { return nil }
