// Package ingest consumes raw workflow messages from the upstream
// ActiveMQ topic over STOMP, enriches them into relay events, persists
// them, and publishes them onto the relay channel.
package ingest
