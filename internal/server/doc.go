// Package server implements the HTTP server using Echo framework.
//
// Routes: REST API (questions, votes, research papers, feedback), the chat
// WebSocket endpoint, and observability (health, metrics, version). Handlers
// split by concern: handlers_api.go, handlers_chat.go, handlers_health.go.
// Participants identify themselves with the X-Participant-ID header; admin
// checks happen in the app layer.
package server
