package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scruffychan/polly/internal/domain"
)

// PaperRepo implements domain.PaperRepository backed by PostgreSQL.
type PaperRepo struct {
	pool *pgxpool.Pool
}

func NewPaperRepo(pool *pgxpool.Pool) *PaperRepo {
	return &PaperRepo{pool: pool}
}

func (r *PaperRepo) Create(ctx context.Context, paper domain.ResearchPaper) (*domain.ResearchPaper, error) {
	var stored domain.ResearchPaper
	err := r.pool.QueryRow(ctx, `
		INSERT INTO research_papers (question_id, title, summary, source, type, url, year, credibility_badge)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, question_id, title, summary, source, type, url, year, credibility_badge, created_at
	`, paper.QuestionID, paper.Title, paper.Summary, paper.Source, paper.Type, paper.URL, paper.Year, paper.CredibilityBadge).Scan(
		&stored.ID, &stored.QuestionID, &stored.Title, &stored.Summary, &stored.Source,
		&stored.Type, &stored.URL, &stored.Year, &stored.CredibilityBadge, &stored.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create research paper: %w", err)
	}
	return &stored, nil
}

func (r *PaperRepo) ListForQuestion(ctx context.Context, questionID int64) ([]domain.ResearchPaper, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, question_id, title, summary, source, type, url, year, credibility_badge, created_at
		FROM research_papers
		WHERE question_id = $1
		ORDER BY year DESC, id
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list research papers: %w", err)
	}
	defer rows.Close()

	var papers []domain.ResearchPaper
	for rows.Next() {
		var p domain.ResearchPaper
		err := rows.Scan(
			&p.ID, &p.QuestionID, &p.Title, &p.Summary, &p.Source,
			&p.Type, &p.URL, &p.Year, &p.CredibilityBadge, &p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan research paper: %w", err)
		}
		papers = append(papers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read research papers: %w", err)
	}
	return papers, nil
}
