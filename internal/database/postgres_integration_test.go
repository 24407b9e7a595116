package database

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/BNLNPPS/swf-monitor/internal/domain"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	// Parse flags to check for -short
	flag.Parse()

	// Skip container setup if running in short mode
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to terminate postgres container: %v\n", err)
		}
	}()

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get connection string: %v\n", err)
		os.Exit(1)
	}

	testPool, err = Connect(ctx, connStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	_, err := testPool.Exec(ctx, "TRUNCATE workflow_messages")
	require.NoError(t, err)
	_, err = testPool.Exec(ctx, "TRUNCATE system_agents")
	require.NoError(t, err)
	return testPool
}

func TestMessageStore_SaveEvent(t *testing.T) {
	pool := setupPool(t)
	store := NewMessageStore(pool)
	ctx := context.Background()

	e := domain.Event{
		MessageType:    "stf_gen",
		SenderAgent:    "daq-simulator",
		RecipientAgent: "data-agent",
		QueueName:      "epictopic",
		RunID:          "101",
		SentAt:         1700000000,
		Payload:        map[string]any{"filename": "stf_101.dat"},
	}
	require.NoError(t, store.SaveEvent(ctx, e))

	var (
		msgType, sender string
		runID           *string
		content         []byte
		sentAt          time.Time
	)
	err := pool.QueryRow(ctx,
		"SELECT message_type, sender_agent, run_id, message_content, sent_at FROM workflow_messages",
	).Scan(&msgType, &sender, &runID, &content, &sentAt)
	require.NoError(t, err)

	assert.Equal(t, "stf_gen", msgType)
	assert.Equal(t, "daq-simulator", sender)
	require.NotNil(t, runID)
	assert.Equal(t, "101", *runID)
	assert.JSONEq(t, `{"msg_type":"stf_gen","sender_agent":"daq-simulator","recipient_agent":"data-agent","queue_name":"epictopic","run_id":"101","sent_at":1700000000,"filename":"stf_101.dat"}`, string(content))
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), sentAt.UTC())
}

func TestMessageStore_OptionalFieldsNull(t *testing.T) {
	pool := setupPool(t)
	store := NewMessageStore(pool)
	ctx := context.Background()

	require.NoError(t, store.SaveEvent(ctx, domain.Event{MessageType: "end_run", SenderAgent: "daq-simulator", SentAt: 1}))

	var runID, recipient *string
	err := pool.QueryRow(ctx, "SELECT run_id, recipient_agent FROM workflow_messages").Scan(&runID, &recipient)
	require.NoError(t, err)
	assert.Nil(t, runID)
	assert.Nil(t, recipient)
}

func TestAgentStore_RecordHeartbeatUpserts(t *testing.T) {
	pool := setupPool(t)
	store := NewAgentStore(pool)
	ctx := context.Background()

	first := time.Unix(1700000000, 0)
	require.NoError(t, store.RecordHeartbeat(ctx, "daq-simulator", "OK", first))
	require.NoError(t, store.RecordHeartbeat(ctx, "daq-simulator", "DEGRADED", first.Add(time.Minute)))

	var (
		status string
		last   time.Time
		count  int
	)
	err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM system_agents").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	err = pool.QueryRow(ctx,
		"SELECT status, last_heartbeat FROM system_agents WHERE instance_name = $1", "daq-simulator",
	).Scan(&status, &last)
	require.NoError(t, err)
	assert.Equal(t, "DEGRADED", status)
	assert.Equal(t, first.Add(time.Minute).UTC(), last.UTC())
}
