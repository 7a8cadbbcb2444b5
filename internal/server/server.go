package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/scruffychan/polly/internal/broadcast"
	"github.com/scruffychan/polly/internal/config"
	"github.com/scruffychan/polly/internal/domain"
)

// AppService is the application surface the REST handlers call.
type AppService interface {
	EnsureParticipant(ctx context.Context, user domain.User) (*domain.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	ActiveQuestion(ctx context.Context) (*domain.Question, error)
	QuestionHistory(ctx context.Context) ([]domain.Question, error)
	CreateQuestion(ctx context.Context, actorID uuid.UUID, text string, options []string, startDate, endDate time.Time) (*domain.Question, error)
	ActivateQuestion(ctx context.Context, actorID uuid.UUID, questionID int64) error
	CastVote(ctx context.Context, userID uuid.UUID, questionID int64, option string) (*domain.Vote, error)
	VoteStatus(ctx context.Context, userID uuid.UUID, questionID int64) (*domain.Vote, error)
	PapersForQuestion(ctx context.Context, questionID int64) ([]domain.ResearchPaper, error)
	AddPaper(ctx context.Context, actorID uuid.UUID, paper domain.ResearchPaper) (*domain.ResearchPaper, error)
	SubmitFeedback(ctx context.Context, userID uuid.UUID, topicSuggestion, description string) (*domain.Feedback, error)
	ListFeedback(ctx context.Context, actorID uuid.UUID) ([]domain.Feedback, error)
}

// ChatPipeline is the chat surface the WebSocket handler calls.
type ChatPipeline interface {
	Ingest(ctx context.Context, questionID int64, participantID uuid.UUID, content string) error
	History(ctx context.Context, questionID int64) (domain.ChatHistoryMessage, error)
}

// pinger is the minimal surface a backing store exposes for health checks.
type pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	app         AppService
	pipeline    ChatPipeline
	broadcaster *broadcast.Broadcaster
	limits      *ConnectionLimits
	pg          pinger
	redis       pinger
	startTime   time.Time
}

// NewServer builds the HTTP server. redis may be nil when cross-instance
// fan-out is not configured; the readiness check then skips it.
func NewServer(cfg *config.Config, app AppService, pipeline ChatPipeline, broadcaster *broadcast.Broadcaster, pg pinger, redis pinger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(correlate)
	e.Use(requestMetrics)

	srv := &Server{
		echo:        e,
		config:      cfg,
		app:         app,
		pipeline:    pipeline,
		broadcaster: broadcaster,
		limits:      NewConnectionLimits(int64(cfg.WSMaxConnections), cfg.WSMaxPerIP, cfg.WSConnRatePerSec, cfg.WSConnBurst),
		pg:          pg,
		redis:       redis,
		startTime:   time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
