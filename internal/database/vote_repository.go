package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scruffychan/polly/internal/domain"
)

// VoteRepo implements domain.VoteRepository backed by PostgreSQL.
type VoteRepo struct {
	pool *pgxpool.Pool
}

func NewVoteRepo(pool *pgxpool.Pool) *VoteRepo {
	return &VoteRepo{pool: pool}
}

// Create records one vote per participant per question. A second vote for the
// same question returns domain.ErrAlreadyVoted.
func (r *VoteRepo) Create(ctx context.Context, questionID int64, userID uuid.UUID, selectedOption string) (*domain.Vote, error) {
	var vote domain.Vote
	err := r.pool.QueryRow(ctx, `
		INSERT INTO votes (question_id, user_id, selected_option)
		VALUES ($1, $2, $3)
		RETURNING id, question_id, user_id, selected_option, created_at
	`, questionID, userID, selectedOption).Scan(
		&vote.ID, &vote.QuestionID, &vote.UserID, &vote.SelectedOption, &vote.CreatedAt,
	)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return nil, domain.ErrAlreadyVoted
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create vote: %w", err)
	}
	return &vote, nil
}

func (r *VoteRepo) GetForParticipant(ctx context.Context, userID uuid.UUID, questionID int64) (*domain.Vote, error) {
	var vote domain.Vote
	err := r.pool.QueryRow(ctx, `
		SELECT id, question_id, user_id, selected_option, created_at
		FROM votes
		WHERE user_id = $1 AND question_id = $2
	`, userID, questionID).Scan(
		&vote.ID, &vote.QuestionID, &vote.UserID, &vote.SelectedOption, &vote.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrVoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	return &vote, nil
}
