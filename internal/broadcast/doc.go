// Package broadcast implements the WebSocket fan-out layer using the actor pattern.
//
// The Broadcaster tracks which connection joined which question and pushes
// encoded payloads to all viewers of a question as events happen. Uses a
// single goroutine + command channel (no mutexes). Per-connection write
// goroutines handle slow clients gracefully.
package broadcast
