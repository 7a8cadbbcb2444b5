package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/scruffychan/polly/internal/aggregate"
	"github.com/scruffychan/polly/internal/domain"
	"github.com/scruffychan/polly/internal/metrics"
	"github.com/scruffychan/polly/internal/sentiment"
)

// Pipeline processes one inbound chat message at a time per connection. The
// steps run in a fixed order: score, persist, attach score, resolve author,
// publish the message, re-aggregate, publish the summary.
//
// Failure handling is deliberately asymmetric. A failed persist aborts the
// whole pipeline (nothing unpersisted is ever broadcast). Everything after
// the persist degrades instead: a failed score attach or author lookup still
// broadcasts, and a failed aggregation skips only the summary update.
type Pipeline struct {
	messages   domain.MessageRepository
	users      domain.UserRepository
	aggregator *aggregate.Aggregator
	publisher  domain.EventPublisher
	clock      clockwork.Clock
}

func NewPipeline(
	messages domain.MessageRepository,
	users domain.UserRepository,
	aggregator *aggregate.Aggregator,
	publisher domain.EventPublisher,
	clock clockwork.Clock,
) *Pipeline {
	return &Pipeline{
		messages:   messages,
		users:      users,
		aggregator: aggregator,
		publisher:  publisher,
		clock:      clock,
	}
}

// Ingest runs the pipeline for one message. The returned error is non-nil
// only when the message was dropped entirely.
func (p *Pipeline) Ingest(ctx context.Context, questionID int64, participantID uuid.UUID, content string) error {
	start := p.clock.Now()
	defer func() {
		metrics.ChatIngestDuration.Observe(p.clock.Since(start).Seconds())
	}()

	result := sentiment.Analyze(content)
	metrics.SentimentScoreDistribution.Observe(result.Score)

	msg, err := p.messages.Create(ctx, questionID, participantID, content)
	if err != nil {
		metrics.ChatMessagesDroppedTotal.Inc()
		return fmt.Errorf("persist chat message: %w", err)
	}

	if err := p.messages.AttachSentiment(ctx, msg.ID, result.Score); err != nil {
		// The stored row keeps a NULL score; the broadcast still carries it.
		slog.Warn("Failed to attach sentiment score",
			"message_id", msg.ID.String(),
			"question_id", questionID,
			"error", err,
		)
	}
	score := result.Score
	msg.Sentiment = &score

	author := p.resolveAuthor(ctx, participantID)

	wire := domain.NewWireMessage(*msg, author)
	if err := p.publish(ctx, questionID, domain.NewNewMessage(wire)); err != nil {
		slog.Error("Failed to publish new message", "question_id", questionID, "error", err)
	}
	metrics.ChatMessagesIngestedTotal.Inc()

	summary, err := p.aggregator.Record(ctx, questionID, msg.ID, result.Score)
	if err != nil {
		slog.Error("Failed to update sentiment aggregate", "question_id", questionID, "error", err)
		return nil
	}

	if err := p.publish(ctx, questionID, domain.NewSentimentUpdate(summary.AvgSentiment, summary.PositivePercentage)); err != nil {
		slog.Error("Failed to publish sentiment update", "question_id", questionID, "error", err)
	}
	return nil
}

// History returns the replay payload for a question, oldest message first.
func (p *Pipeline) History(ctx context.Context, questionID int64) (domain.ChatHistoryMessage, error) {
	stored, err := p.messages.ListForQuestion(ctx, questionID)
	if err != nil {
		return domain.ChatHistoryMessage{}, fmt.Errorf("load chat history: %w", err)
	}

	// Repository order is newest first, replay wants chronological order.
	wire := make([]domain.WireMessage, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		wire = append(wire, domain.NewWireMessage(stored[i].Message, stored[i].Author))
	}
	return domain.NewChatHistory(wire), nil
}

// resolveAuthor loads the author profile, falling back to a bare ID when the
// lookup fails so the message still goes out.
func (p *Pipeline) resolveAuthor(ctx context.Context, participantID uuid.UUID) domain.User {
	user, err := p.users.GetByID(ctx, participantID)
	if err != nil {
		slog.Warn("Failed to resolve message author", "participant_id", participantID.String(), "error", err)
		return domain.User{ID: participantID}
	}
	return *user
}

func (p *Pipeline) publish(ctx context.Context, questionID int64, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode broadcast payload: %w", err)
	}
	return p.publisher.Publish(ctx, questionID, data)
}
