package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// --- Model types ---

type User struct {
	ID              uuid.UUID `db:"id"`
	Email           string    `db:"email"`
	FirstName       string    `db:"first_name"`
	LastName        string    `db:"last_name"`
	ProfileImageURL string    `db:"profile_image_url"`
	IsAdmin         bool      `db:"is_admin"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

type Question struct {
	ID        int64     `db:"id"`
	Text      string    `db:"text"`
	Options   []string  `db:"options"`
	IsActive  bool      `db:"is_active"`
	StartDate time.Time `db:"start_date"`
	EndDate   time.Time `db:"end_date"`
	CreatedAt time.Time `db:"created_at"`
	CreatedBy uuid.UUID `db:"created_by"`
}

// Message is one chat contribution to a question. Sentiment is nil until the
// ingest pipeline attaches a score; it is written exactly once and never
// mutated afterwards.
type Message struct {
	ID           uuid.UUID `db:"id"`
	QuestionID   int64     `db:"question_id"`
	UserID       uuid.UUID `db:"user_id"`
	Content      string    `db:"content"`
	Sentiment    *float64  `db:"sentiment"`
	IsModerated  bool      `db:"is_moderated"`
	CommonGround bool      `db:"has_common_ground_badge"`
	CreatedAt    time.Time `db:"created_at"`
}

// MessageWithAuthor pairs a stored message with its author's public profile,
// as returned by the history query.
type MessageWithAuthor struct {
	Message
	Author User
}

type Vote struct {
	ID             int64     `db:"id"`
	QuestionID     int64     `db:"question_id"`
	UserID         uuid.UUID `db:"user_id"`
	SelectedOption string    `db:"selected_option"`
	CreatedAt      time.Time `db:"created_at"`
}

type ResearchPaper struct {
	ID               int64     `db:"id"`
	QuestionID       int64     `db:"question_id"`
	Title            string    `db:"title"`
	Summary          string    `db:"summary"`
	Source           string    `db:"source"`
	Type             string    `db:"type"`
	URL              string    `db:"url"`
	Year             int       `db:"year"`
	CredibilityBadge string    `db:"credibility_badge"`
	CreatedAt        time.Time `db:"created_at"`
}

type Feedback struct {
	ID              int64     `db:"id"`
	UserID          uuid.UUID `db:"user_id"`
	TopicSuggestion string    `db:"topic_suggestion"`
	Description     string    `db:"description"`
	CreatedAt       time.Time `db:"created_at"`
}

// --- Interfaces ---

// MessageRepository abstracts chat message persistence.
type MessageRepository interface {
	Create(ctx context.Context, questionID int64, userID uuid.UUID, content string) (*Message, error)
	AttachSentiment(ctx context.Context, messageID uuid.UUID, score float64) error
	// ListForQuestion returns the most recent messages for a question,
	// newest first, bounded to the replay window.
	ListForQuestion(ctx context.Context, questionID int64) ([]MessageWithAuthor, error)
}

// UserRepository abstracts user persistence.
type UserRepository interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*User, error)
	Upsert(ctx context.Context, user User) (*User, error)
}

// QuestionRepository abstracts question persistence.
type QuestionRepository interface {
	GetActive(ctx context.Context) (*Question, error)
	GetByID(ctx context.Context, questionID int64) (*Question, error)
	History(ctx context.Context) ([]Question, error)
	Create(ctx context.Context, text string, options []string, startDate, endDate time.Time, createdBy uuid.UUID) (*Question, error)
	Activate(ctx context.Context, questionID int64) error
}

// VoteRepository abstracts vote persistence.
type VoteRepository interface {
	Create(ctx context.Context, questionID int64, userID uuid.UUID, selectedOption string) (*Vote, error)
	GetForParticipant(ctx context.Context, userID uuid.UUID, questionID int64) (*Vote, error)
}

// PaperRepository abstracts research paper persistence.
type PaperRepository interface {
	Create(ctx context.Context, paper ResearchPaper) (*ResearchPaper, error)
	ListForQuestion(ctx context.Context, questionID int64) ([]ResearchPaper, error)
}

// FeedbackRepository abstracts user feedback persistence.
type FeedbackRepository interface {
	Create(ctx context.Context, userID uuid.UUID, topicSuggestion, description string) (*Feedback, error)
	ListAll(ctx context.Context) ([]Feedback, error)
}

// EventPublisher delivers an encoded broadcast payload to every viewer of a
// question. The local implementation fans out to this instance's connections;
// the Redis implementation publishes to a per-question channel so every
// instance (this one included) re-delivers locally.
type EventPublisher interface {
	Publish(ctx context.Context, questionID int64, payload []byte) error
}
