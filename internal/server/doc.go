// Package server exposes the relay over HTTP: the SSE streaming
// endpoint with per-connection filters and heartbeats, its companion
// status route, and the usual health, metrics and version endpoints.
package server
