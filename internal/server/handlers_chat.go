package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/scruffychan/polly/internal/broadcast"
	"github.com/scruffychan/polly/internal/domain"
	"github.com/scruffychan/polly/internal/metrics"
)

const maxChatMessageLen = 2000

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // frontend is served from a separate origin
	},
}

func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()
	if ok, reason := s.limits.Acquire(ip); !ok {
		slog.Warn("WebSocket connection rejected", "ip", ip, "reason", reason)
		return c.String(http.StatusTooManyRequests, "connection limit reached")
	}
	defer s.limits.Release(ip)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return nil
	}

	if err := s.broadcaster.Register(conn); err != nil {
		slog.Error("Failed to register connection", "error", err)
		_ = conn.Close()
		return nil
	}

	s.readLoop(c.Request().Context(), conn)

	// Unregister stops the writer and closes the connection.
	s.broadcaster.Unregister(conn)
	return nil
}

// readLoop consumes client frames until the connection drops. Malformed and
// out-of-state frames are dropped without a reply.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn) {
	var (
		joined        bool
		participantID uuid.UUID
		questionID    int64
	)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := domain.DecodeClientMessage(data)
		if err != nil {
			metrics.WebSocketDroppedFrames.WithLabelValues("malformed").Inc()
			slog.Debug("Dropping malformed frame", "error", err)
			continue
		}

		switch m := msg.(type) {
		case domain.JoinMessage:
			if joined {
				// A second join on a live connection is a client bug; the
				// first binding stays in place.
				metrics.WebSocketDroppedFrames.WithLabelValues("duplicate_join").Inc()
				slog.Debug("Ignoring duplicate join", "participant_id", m.ParticipantID, "question_id", m.TopicID)
				continue
			}

			if err := s.broadcaster.Join(conn, m.ParticipantID, m.TopicID); err != nil {
				if errors.Is(err, broadcast.ErrQuestionFull) {
					slog.Warn("Join rejected: question at capacity", "question_id", m.TopicID)
					return
				}
				slog.Warn("Join failed", "error", err, "question_id", m.TopicID)
				return
			}

			joined = true
			participantID = m.ParticipantID
			questionID = m.TopicID

			s.replayHistory(ctx, conn, questionID)

		case domain.ChatMessageIn:
			if !joined {
				metrics.WebSocketDroppedFrames.WithLabelValues("not_joined").Inc()
				continue
			}

			content := strings.TrimSpace(m.Content)
			if content == "" || len(content) > maxChatMessageLen {
				metrics.WebSocketDroppedFrames.WithLabelValues("invalid_content").Inc()
				continue
			}

			if err := s.pipeline.Ingest(ctx, questionID, participantID, content); err != nil {
				slog.Error("Failed to ingest chat message",
					"error", err,
					"question_id", questionID,
					"participant_id", participantID)
			}
		}
	}
}

// replayHistory sends the recent chat history to a freshly joined connection.
// A failed replay degrades to an empty room; live traffic still flows.
func (s *Server) replayHistory(ctx context.Context, conn *websocket.Conn, questionID int64) {
	history, err := s.pipeline.History(ctx, questionID)
	if err != nil {
		slog.Warn("Failed to load chat history for replay", "error", err, "question_id", questionID)
		return
	}

	payload, err := json.Marshal(history)
	if err != nil {
		slog.Error("Failed to encode chat history", "error", err, "question_id", questionID)
		return
	}

	if err := s.broadcaster.Send(conn, payload); err != nil {
		slog.Warn("Failed to send chat history", "error", err, "question_id", questionID)
	}
}
