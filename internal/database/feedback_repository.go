package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scruffychan/polly/internal/domain"
)

// FeedbackRepo implements domain.FeedbackRepository backed by PostgreSQL.
type FeedbackRepo struct {
	pool *pgxpool.Pool
}

func NewFeedbackRepo(pool *pgxpool.Pool) *FeedbackRepo {
	return &FeedbackRepo{pool: pool}
}

func (r *FeedbackRepo) Create(ctx context.Context, userID uuid.UUID, topicSuggestion, description string) (*domain.Feedback, error) {
	var fb domain.Feedback
	err := r.pool.QueryRow(ctx, `
		INSERT INTO user_feedback (user_id, topic_suggestion, description)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, topic_suggestion, description, created_at
	`, userID, topicSuggestion, description).Scan(
		&fb.ID, &fb.UserID, &fb.TopicSuggestion, &fb.Description, &fb.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create feedback: %w", err)
	}
	return &fb, nil
}

func (r *FeedbackRepo) ListAll(ctx context.Context) ([]domain.Feedback, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, topic_suggestion, description, created_at
		FROM user_feedback
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	var feedback []domain.Feedback
	for rows.Next() {
		var fb domain.Feedback
		if err := rows.Scan(&fb.ID, &fb.UserID, &fb.TopicSuggestion, &fb.Description, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		feedback = append(feedback, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read feedback: %w", err)
	}
	return feedback, nil
}
