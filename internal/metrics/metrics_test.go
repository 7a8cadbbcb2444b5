package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistration(t *testing.T) {
	collectors := []prometheus.Collector{
		ChatMessagesIngestedTotal,
		ChatMessagesDroppedTotal,
		ChatIngestDuration,
		SentimentScoreDistribution,
		BroadcasterActiveQuestions,
		BroadcasterConnectedClients,
		BroadcasterMessagesFannedOut,
		BroadcasterSlowClientsEvicted,
		BroadcasterCommandChannelDepth,
		BroadcasterPanicsTotal,
		BroadcasterStopTimeoutsTotal,
		WebSocketMessageSendDuration,
		WebSocketPingFailures,
		WebSocketDroppedFrames,
		RedisOpsTotal,
		RedisOpDuration,
		RedisConnectionErrors,
		RedisFollowedQuestions,
		DBQueryDuration,
		DBErrorsTotal,
		HTTPRequestDuration,
	}

	for _, c := range collectors {
		assert.NotNil(t, c)
	}
}

func TestMetricsCanBeUsed(t *testing.T) {
	assert.NotPanics(t, func() {
		ChatMessagesIngestedTotal.Inc()
		ChatIngestDuration.Observe(0.012)
		SentimentScoreDistribution.Observe(-0.4)
		BroadcasterConnectedClients.Inc()
		BroadcasterConnectedClients.Dec()
		WebSocketDroppedFrames.WithLabelValues("malformed").Inc()
		RedisOpsTotal.WithLabelValues("publish", "success").Inc()
		RedisOpDuration.WithLabelValues("publish").Observe(0.002)
		DBQueryDuration.WithLabelValues("select").Observe(0.003)
		DBErrorsTotal.WithLabelValues("insert").Inc()
		HTTPRequestDuration.WithLabelValues("GET", "/api/questions/active", "200").Observe(0.001)
	})
}
