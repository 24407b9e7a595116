package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AgentStore records agent liveness from heartbeat messages.
// Implements domain.AgentRegistry.
type AgentStore struct {
	pool *pgxpool.Pool
}

// NewAgentStore creates an AgentStore over the shared pool.
func NewAgentStore(pool *pgxpool.Pool) *AgentStore {
	return &AgentStore{pool: pool}
}

// RecordHeartbeat upserts the agent's status and heartbeat timestamp.
func (s *AgentStore) RecordHeartbeat(ctx context.Context, agentName, status string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO system_agents (instance_name, status, last_heartbeat)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (instance_name)
		 DO UPDATE SET status = EXCLUDED.status, last_heartbeat = EXCLUDED.last_heartbeat`,
		agentName, status, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert agent heartbeat: %w", err)
	}
	return nil
}
