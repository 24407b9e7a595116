package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BNLNPPS/swf-monitor/internal/domain"
)

// MessageStore persists relayed events as workflow_messages rows.
// Implements domain.EventStore.
type MessageStore struct {
	pool *pgxpool.Pool
}

// NewMessageStore creates a MessageStore over the shared pool.
func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

// SaveEvent inserts one row per event. The full event, payload
// included, lands in message_content alongside the indexed columns.
func (s *MessageStore) SaveEvent(ctx context.Context, e domain.Event) error {
	content, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event content: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO workflow_messages
			(message_type, sender_agent, recipient_agent, queue_name, run_id, message_content, sent_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.MessageType,
		e.SenderAgent,
		nullable(e.RecipientAgent),
		nullable(e.QueueName),
		nullable(e.RunID),
		content,
		time.Unix(e.SentAt, 0).UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert workflow message: %w", err)
	}
	return nil
}

// nullable maps empty strings to NULL columns.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
