package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scruffychan/polly/internal/domain"
)

// questionColumns must match the Scan order in scanQuestion.
const questionColumns = `id, text, options, is_active, start_date, end_date, created_at, created_by`

// QuestionRepo implements domain.QuestionRepository backed by PostgreSQL.
type QuestionRepo struct {
	pool *pgxpool.Pool
}

func NewQuestionRepo(pool *pgxpool.Pool) *QuestionRepo {
	return &QuestionRepo{pool: pool}
}

func scanQuestion(row pgx.Row) (*domain.Question, error) {
	var q domain.Question
	var createdBy *uuid.UUID
	err := row.Scan(&q.ID, &q.Text, &q.Options, &q.IsActive, &q.StartDate, &q.EndDate, &q.CreatedAt, &createdBy)
	if err != nil {
		return nil, err
	}
	if createdBy != nil {
		q.CreatedBy = *createdBy
	}
	return &q, nil
}

func (r *QuestionRepo) GetActive(ctx context.Context) (*domain.Question, error) {
	q, err := scanQuestion(r.pool.QueryRow(ctx, `
		SELECT `+questionColumns+` FROM questions WHERE is_active LIMIT 1
	`))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoActiveQuestion
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active question: %w", err)
	}
	return q, nil
}

func (r *QuestionRepo) GetByID(ctx context.Context, questionID int64) (*domain.Question, error) {
	q, err := scanQuestion(r.pool.QueryRow(ctx, `
		SELECT `+questionColumns+` FROM questions WHERE id = $1
	`, questionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question by ID: %w", err)
	}
	return q, nil
}

// History returns all questions, newest start date first.
func (r *QuestionRepo) History(ctx context.Context) ([]domain.Question, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+questionColumns+` FROM questions ORDER BY start_date DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}
	return questions, nil
}

func (r *QuestionRepo) Create(ctx context.Context, text string, options []string, startDate, endDate time.Time, createdBy uuid.UUID) (*domain.Question, error) {
	var creator *uuid.UUID
	if createdBy != uuid.Nil {
		creator = &createdBy
	}
	if options == nil {
		options = []string{}
	}

	q, err := scanQuestion(r.pool.QueryRow(ctx, `
		INSERT INTO questions (text, options, start_date, end_date, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+questionColumns+`
	`, text, options, startDate, endDate, creator))
	if err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}
	return q, nil
}

// Activate makes questionID the single active question, deactivating any
// currently active one in the same transaction.
func (r *QuestionRepo) Activate(ctx context.Context, questionID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `UPDATE questions SET is_active = FALSE WHERE is_active`); err != nil {
		return fmt.Errorf("failed to deactivate questions: %w", err)
	}

	tag, err := tx.Exec(ctx, `UPDATE questions SET is_active = TRUE WHERE id = $1`, questionID)
	if err != nil {
		return fmt.Errorf("failed to activate question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit activation: %w", err)
	}
	return nil
}
