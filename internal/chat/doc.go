// Package chat orchestrates the message ingest pipeline: score, persist,
// publish, re-aggregate. It owns the ordering and partial-failure rules for
// one inbound chat message; transport concerns stay in the server package and
// fan-out stays in broadcast.
package chat
