// Package relay provides the cross-process publish/subscribe channel
// that carries workflow events from the ingest listener to every server
// process. Two backends exist: Redis Pub/Sub for real deployments and
// an in-process loopback for local development.
package relay
