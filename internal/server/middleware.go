package server

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/scruffychan/polly/internal/correlation"
	apperrors "github.com/scruffychan/polly/internal/errors"
	"github.com/scruffychan/polly/internal/metrics"
)

// participantHeader carries the caller's identity on REST requests.
const participantHeader = "X-Participant-ID"

// requireParticipant resolves the caller's UUID from the identity header and
// stores it in the request context for handlers.
func (s *Server) requireParticipant(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := c.Request().Header.Get(participantHeader)
		if raw == "" {
			return apperrors.ValidationError("missing " + participantHeader + " header")
		}

		participantID, err := uuid.Parse(raw)
		if err != nil {
			return apperrors.ValidationError("invalid participant ID").WithField("participant_id", raw)
		}

		c.Set("participantID", participantID)
		return next(c)
	}
}

// correlate tags every request with a correlation ID so log lines from one
// request can be tied together. An inbound X-Request-ID is honored.
func correlate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get("X-Request-ID")
		if id == "" {
			id = correlation.NewID()
		}

		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set("X-Request-ID", id)
		return next(c)
	}
}

// requestMetrics records request latency by method, route, and status.
func requestMetrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		status := c.Response().Status
		if err != nil {
			if httpErr, ok := err.(*echo.HTTPError); ok {
				status = httpErr.Code
			}
		}

		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request().Method, c.Path(), strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
		return err
	}
}

func participantID(c echo.Context) (uuid.UUID, error) {
	id, ok := c.Get("participantID").(uuid.UUID)
	if !ok {
		return uuid.Nil, apperrors.InternalError("participant ID missing from context", nil)
	}
	return id, nil
}
