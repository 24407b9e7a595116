// Package broadcast implements the per-process SSE broadcaster using
// the actor pattern.
//
// A single goroutine owns the client registry and serializes register,
// unregister and broadcast through a command channel (no mutexes). Each
// client gets a bounded queue; overflow evicts the oldest entry so a
// stalled stream never blocks delivery to anyone else.
package broadcast
