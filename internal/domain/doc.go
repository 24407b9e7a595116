// Package domain holds the relay's core types: the Event that flows
// from the upstream broker to SSE clients, the ClientFilter predicate,
// and the interfaces of external collaborators (durable store, agent
// registry).
package domain
