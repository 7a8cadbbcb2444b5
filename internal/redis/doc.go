// Package redis provides optional cross-instance chat fan-out via Redis
// Pub/Sub. Each question maps to one channel; every instance with viewers on
// that question subscribes and re-delivers payloads to its local connections.
// Single-instance deployments skip this package entirely.
package redis
