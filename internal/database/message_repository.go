package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scruffychan/polly/internal/domain"
)

// historyLimit bounds how many messages a replay or aggregate seed loads.
const historyLimit = 50

// MessageRepo implements domain.MessageRepository backed by PostgreSQL.
type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, questionID int64, userID uuid.UUID, content string) (*domain.Message, error) {
	var msg domain.Message
	err := r.pool.QueryRow(ctx, `
		INSERT INTO chat_messages (question_id, user_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, question_id, user_id, content, sentiment, is_moderated, has_common_ground_badge, created_at
	`, questionID, userID, content).Scan(
		&msg.ID, &msg.QuestionID, &msg.UserID, &msg.Content,
		&msg.Sentiment, &msg.IsModerated, &msg.CommonGround, &msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert chat message: %w", err)
	}
	return &msg, nil
}

func (r *MessageRepo) AttachSentiment(ctx context.Context, messageID uuid.UUID, score float64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE chat_messages SET sentiment = $2 WHERE id = $1
	`, messageID, score)
	if err != nil {
		return fmt.Errorf("failed to attach sentiment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("chat message %s not found", messageID)
	}
	return nil
}

// ListForQuestion returns the newest messages first, bounded to historyLimit.
// Moderated messages are excluded from replay.
func (r *MessageRepo) ListForQuestion(ctx context.Context, questionID int64) ([]domain.MessageWithAuthor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.id, m.question_id, m.user_id, m.content, m.sentiment,
		       m.is_moderated, m.has_common_ground_badge, m.created_at,
		       u.id, COALESCE(u.email, ''), u.first_name, u.last_name,
		       u.profile_image_url, u.is_admin, u.created_at, u.updated_at
		FROM chat_messages m
		JOIN users u ON u.id = m.user_id
		WHERE m.question_id = $1 AND NOT m.is_moderated
		ORDER BY m.created_at DESC
		LIMIT $2
	`, questionID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.MessageWithAuthor
	for rows.Next() {
		var m domain.MessageWithAuthor
		err := rows.Scan(
			&m.ID, &m.QuestionID, &m.UserID, &m.Content, &m.Sentiment,
			&m.IsModerated, &m.CommonGround, &m.CreatedAt,
			&m.Author.ID, &m.Author.Email, &m.Author.FirstName, &m.Author.LastName,
			&m.Author.ProfileImageURL, &m.Author.IsAdmin, &m.Author.CreatedAt, &m.Author.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chat messages: %w", err)
	}
	return messages, nil
}
