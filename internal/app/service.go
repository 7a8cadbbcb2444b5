package app

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/scruffychan/polly/internal/domain"
)

// Service is the application layer for the HTTP API. It orchestrates the
// use cases around questions, votes, papers, and feedback; the chat pipeline
// has its own orchestrator in the chat package.
type Service struct {
	users     domain.UserRepository
	questions domain.QuestionRepository
	votes     domain.VoteRepository
	papers    domain.PaperRepository
	feedback  domain.FeedbackRepository
}

func NewService(
	users domain.UserRepository,
	questions domain.QuestionRepository,
	votes domain.VoteRepository,
	papers domain.PaperRepository,
	feedback domain.FeedbackRepository,
) *Service {
	return &Service{
		users:     users,
		questions: questions,
		votes:     votes,
		papers:    papers,
		feedback:  feedback,
	}
}

// EnsureParticipant registers or refreshes the caller's profile and returns
// the stored user.
func (s *Service) EnsureParticipant(ctx context.Context, user domain.User) (*domain.User, error) {
	return s.users.Upsert(ctx, user)
}

// GetUserByID retrieves a user by ID.
func (s *Service) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ActiveQuestion returns the question currently open for discussion.
func (s *Service) ActiveQuestion(ctx context.Context) (*domain.Question, error) {
	return s.questions.GetActive(ctx)
}

// QuestionHistory returns all questions, newest first.
func (s *Service) QuestionHistory(ctx context.Context) ([]domain.Question, error) {
	return s.questions.History(ctx)
}

// CreateQuestion creates a new inactive question. Only admins may create.
func (s *Service) CreateQuestion(ctx context.Context, actorID uuid.UUID, text string, options []string, startDate, endDate time.Time) (*domain.Question, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return s.questions.Create(ctx, text, options, startDate, endDate, actorID)
}

// ActivateQuestion switches discussion to the given question. Only admins may
// activate.
func (s *Service) ActivateQuestion(ctx context.Context, actorID uuid.UUID, questionID int64) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	return s.questions.Activate(ctx, questionID)
}

// CastVote records a vote on a question. The chosen option must be one the
// question offers; a second vote returns domain.ErrAlreadyVoted.
func (s *Service) CastVote(ctx context.Context, userID uuid.UUID, questionID int64, option string) (*domain.Vote, error) {
	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(question.Options, option) {
		return nil, domain.ErrInvalidOption
	}
	return s.votes.Create(ctx, questionID, userID, option)
}

// VoteStatus returns the caller's vote on a question, or
// domain.ErrVoteNotFound if they have not voted.
func (s *Service) VoteStatus(ctx context.Context, userID uuid.UUID, questionID int64) (*domain.Vote, error) {
	return s.votes.GetForParticipant(ctx, userID, questionID)
}

// PapersForQuestion lists the research papers curated for a question.
func (s *Service) PapersForQuestion(ctx context.Context, questionID int64) ([]domain.ResearchPaper, error) {
	return s.papers.ListForQuestion(ctx, questionID)
}

// AddPaper attaches a research paper to a question. Only admins may add.
func (s *Service) AddPaper(ctx context.Context, actorID uuid.UUID, paper domain.ResearchPaper) (*domain.ResearchPaper, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	if _, err := s.questions.GetByID(ctx, paper.QuestionID); err != nil {
		return nil, err
	}
	return s.papers.Create(ctx, paper)
}

// SubmitFeedback stores a topic suggestion from a participant.
func (s *Service) SubmitFeedback(ctx context.Context, userID uuid.UUID, topicSuggestion, description string) (*domain.Feedback, error) {
	return s.feedback.Create(ctx, userID, topicSuggestion, description)
}

// ListFeedback returns all submitted feedback. Only admins may list.
func (s *Service) ListFeedback(ctx context.Context, actorID uuid.UUID) ([]domain.Feedback, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return s.feedback.ListAll(ctx)
}

func (s *Service) requireAdmin(ctx context.Context, actorID uuid.UUID) error {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return fmt.Errorf("resolve acting user: %w", err)
	}
	if !actor.IsAdmin {
		return domain.ErrAdminRequired
	}
	return nil
}
