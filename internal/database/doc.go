// Package database implements the relay's durable-store collaborators
// on PostgreSQL via pgx: one row per relayed workflow message and an
// upserted liveness row per agent heartbeat.
package database
