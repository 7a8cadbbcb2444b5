package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/scruffychan/polly/internal/errors"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no identity required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// REST API (identity via X-Participant-ID header)
	api := s.echo.Group("/api", apperrors.Middleware(), s.requireParticipant)
	api.POST("/participants", s.handleEnsureParticipant)
	api.GET("/questions/active", s.handleActiveQuestion)
	api.GET("/questions/history", s.handleQuestionHistory)
	api.POST("/questions", s.handleCreateQuestion)
	api.POST("/questions/:id/activate", s.handleActivateQuestion)
	api.GET("/chat/:questionId", s.handleChatHistory)
	api.POST("/votes", s.handleCastVote)
	api.GET("/votes/:questionId", s.handleVoteStatus)
	api.GET("/research-papers/:questionId", s.handlePapersForQuestion)
	api.POST("/research-papers", s.handleAddPaper)
	api.POST("/feedback", s.handleSubmitFeedback)
	api.GET("/feedback", s.handleListFeedback)

	// WebSocket chat endpoint (identity arrives in the join frame)
	s.echo.GET("/ws/chat", s.handleWebSocket)
}
