package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Chat Pipeline Metrics
var (
	// ChatMessagesIngestedTotal tracks messages that made it through the pipeline
	ChatMessagesIngestedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_ingested_total",
			Help: "Total chat messages persisted and broadcast",
		},
	)

	// ChatMessagesDroppedTotal tracks messages dropped before broadcast
	ChatMessagesDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_dropped_total",
			Help: "Total chat messages dropped because persistence failed",
		},
	)

	// ChatIngestDuration tracks end-to-end pipeline latency per message
	ChatIngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_ingest_duration_seconds",
			Help:    "Chat message pipeline duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// SentimentScoreDistribution tracks the distribution of per-message scores
	SentimentScoreDistribution = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentiment_score",
			Help:    "Distribution of per-message sentiment scores",
			Buckets: []float64{-1, -0.6, -0.3, -0.1, 0, 0.1, 0.3, 0.6, 1},
		},
	)
)

// Broadcaster Metrics
var (
	// BroadcasterActiveQuestions tracks questions with at least one viewer on this instance
	BroadcasterActiveQuestions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcaster_active_questions",
			Help: "Number of questions with connected viewers on this instance",
		},
	)

	// BroadcasterConnectedClients tracks total connected WebSocket clients
	BroadcasterConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcaster_connected_clients_total",
			Help: "Total number of connected WebSocket clients",
		},
	)

	// BroadcasterMessagesFannedOut counts payload deliveries to client send buffers
	BroadcasterMessagesFannedOut = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_messages_fanned_out_total",
			Help: "Total payloads handed to client send buffers",
		},
	)

	// BroadcasterSlowClientsEvicted counts clients dropped for full send buffers
	BroadcasterSlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_slow_clients_evicted_total",
			Help: "Total clients evicted because their send buffer was full",
		},
	)

	// BroadcasterCommandChannelDepth tracks actor command queue depth
	BroadcasterCommandChannelDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcaster_command_channel_depth",
			Help: "Current depth of the broadcaster command channel",
		},
	)

	// BroadcasterPanicsTotal counts recovered panics in the broadcaster actor
	BroadcasterPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_panics_total",
			Help: "Total panics recovered in the broadcaster goroutine",
		},
	)

	// BroadcasterStopTimeoutsTotal counts shutdowns that exceeded the stop timeout
	BroadcasterStopTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_stop_timeouts_total",
			Help: "Total broadcaster shutdowns that exceeded the stop timeout",
		},
	)
)

// WebSocket Metrics
var (
	// WebSocketMessageSendDuration tracks per-message write latency
	WebSocketMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_message_send_duration_seconds",
			Help:    "WebSocket message send duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)

	// WebSocketPingFailures counts failed keepalive pings
	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Total WebSocket ping failures",
		},
	)

	// WebSocketDroppedFrames counts inbound frames dropped as malformed or out of state
	WebSocketDroppedFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_dropped_frames_total",
			Help: "Total inbound WebSocket frames dropped by reason",
		},
		[]string{"reason"},
	)
)

// Redis Metrics
var (
	// RedisOpsTotal tracks total Redis operations by operation type and status
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks Redis operation latency in seconds
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// RedisConnectionErrors tracks Redis connection errors
	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Total Redis connection errors",
		},
	)

	// RedisFollowedQuestions tracks Pub/Sub channel subscriptions on this instance
	RedisFollowedQuestions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "redis_followed_questions",
			Help: "Number of question channels this instance is subscribed to",
		},
	)
)

// Database Metrics
var (
	// DBQueryDuration tracks query latency by query verb
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query"},
	)

	// DBErrorsTotal tracks query errors by query verb
	DBErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_errors_total",
			Help: "Total database errors by query",
		},
		[]string{"query"},
	)
)

// HTTP Metrics
var (
	// HTTPRequestDuration tracks request latency by method, path, and status
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "path", "status"},
	)
)
