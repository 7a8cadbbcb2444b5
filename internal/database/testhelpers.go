package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/scruffychan/polly/internal/domain"
)

// CreateTestUser inserts a user with default profile values for testing.
func CreateTestUser(t *testing.T, pool *pgxpool.Pool, firstName string) *domain.User {
	t.Helper()

	repo := NewUserRepo(pool)
	user, err := repo.Upsert(context.Background(), domain.User{
		FirstName:       firstName,
		LastName:        "Tester",
		ProfileImageURL: "https://example.com/avatar.png",
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, user.ID)

	return user
}

// CreateTestQuestion inserts a question running for the next hour.
func CreateTestQuestion(t *testing.T, pool *pgxpool.Pool, text string) *domain.Question {
	t.Helper()

	repo := NewQuestionRepo(pool)
	now := time.Now().UTC()
	question, err := repo.Create(context.Background(), text, []string{"Yes", "No"}, now, now.Add(time.Hour), uuid.Nil)
	require.NoError(t, err)

	return question
}

// CreateTestMessage inserts a chat message with an attached sentiment score.
func CreateTestMessage(t *testing.T, pool *pgxpool.Pool, questionID int64, userID uuid.UUID, content string, score float64) *domain.Message {
	t.Helper()

	repo := NewMessageRepo(pool)
	msg, err := repo.Create(context.Background(), questionID, userID, content)
	require.NoError(t, err)
	require.NoError(t, repo.AttachSentiment(context.Background(), msg.ID, score))

	return msg
}
