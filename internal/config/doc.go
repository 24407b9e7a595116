// Package config provides environment-based configuration.
//
// Loads from environment variables with sensible defaults, validates
// required combinations (the redis relay backend needs REDIS_URL, the
// memory backend is refused in production).
package config
