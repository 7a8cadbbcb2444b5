package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/scruffychan/polly/internal/domain"
	apperrors "github.com/scruffychan/polly/internal/errors"
)

const maxQuestionTextLen = 1000

// --- Wire representations ---

type userResponse struct {
	ID              uuid.UUID `json:"id"`
	Email           string    `json:"email"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	ProfileImageURL string    `json:"profileImageUrl"`
	IsAdmin         bool      `json:"isAdmin"`
}

type questionResponse struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Options   []string  `json:"options"`
	IsActive  bool      `json:"isActive"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

type voteResponse struct {
	QuestionID     int64     `json:"questionId"`
	SelectedOption string    `json:"selectedOption"`
	CreatedAt      time.Time `json:"createdAt"`
}

type paperResponse struct {
	ID               int64  `json:"id"`
	QuestionID       int64  `json:"questionId"`
	Title            string `json:"title"`
	Summary          string `json:"summary"`
	Source           string `json:"source"`
	Type             string `json:"type"`
	URL              string `json:"url"`
	Year             int    `json:"year"`
	CredibilityBadge string `json:"credibilityBadge"`
}

type feedbackResponse struct {
	ID              int64     `json:"id"`
	TopicSuggestion string    `json:"topicSuggestion"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"createdAt"`
}

func newUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:              u.ID,
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		ProfileImageURL: u.ProfileImageURL,
		IsAdmin:         u.IsAdmin,
	}
}

func newQuestionResponse(q *domain.Question) questionResponse {
	return questionResponse{
		ID:        q.ID,
		Text:      q.Text,
		Options:   q.Options,
		IsActive:  q.IsActive,
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
	}
}

func newPaperResponse(p *domain.ResearchPaper) paperResponse {
	return paperResponse{
		ID:               p.ID,
		QuestionID:       p.QuestionID,
		Title:            p.Title,
		Summary:          p.Summary,
		Source:           p.Source,
		Type:             p.Type,
		URL:              p.URL,
		Year:             p.Year,
		CredibilityBadge: p.CredibilityBadge,
	}
}

// mapDomainError translates domain sentinels into structured HTTP errors.
func mapDomainError(err error, fallback string) error {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return apperrors.NotFoundError("user not found")
	case errors.Is(err, domain.ErrQuestionNotFound):
		return apperrors.NotFoundError("question not found")
	case errors.Is(err, domain.ErrNoActiveQuestion):
		return apperrors.NotFoundError("no active question")
	case errors.Is(err, domain.ErrVoteNotFound):
		return apperrors.NotFoundError("no vote recorded")
	case errors.Is(err, domain.ErrAlreadyVoted):
		return apperrors.ConflictError("already voted on this question")
	case errors.Is(err, domain.ErrInvalidOption):
		return apperrors.ValidationError("option is not offered by this question")
	case errors.Is(err, domain.ErrAdminRequired):
		return apperrors.ForbiddenError("admin access required")
	default:
		return apperrors.InternalError(fallback, err)
	}
}

func questionIDParam(c echo.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apperrors.ValidationError("invalid question ID").WithField("question_id", raw)
	}
	return id, nil
}

// --- Participant handlers ---

func (s *Server) handleEnsureParticipant(c echo.Context) error {
	actorID, err := participantID(c)
	if err != nil {
		return err
	}

	var req struct {
		Email           string `json:"email"`
		FirstName       string `json:"firstName"`
		LastName        string `json:"lastName"`
		ProfileImageURL string `json:"profileImageUrl"`
	}
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed request body")
	}

	user, err := s.app.EnsureParticipant(c.Request().Context(), domain.User{
		ID:              actorID,
		Email:           req.Email,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		ProfileImageURL: req.ProfileImageURL,
	})
	if err != nil {
		return mapDomainError(err, "failed to register participant")
	}

	return c.JSON(200, newUserResponse(user))
}

// --- Question handlers ---

func (s *Server) handleActiveQuestion(c echo.Context) error {
	question, err := s.app.ActiveQuestion(c.Request().Context())
	if err != nil {
		return mapDomainError(err, "failed to load active question")
	}
	return c.JSON(200, newQuestionResponse(question))
}

func (s *Server) handleQuestionHistory(c echo.Context) error {
	questions, err := s.app.QuestionHistory(c.Request().Context())
	if err != nil {
		return mapDomainError(err, "failed to load question history")
	}

	resp := make([]questionResponse, 0, len(questions))
	for i := range questions {
		resp = append(resp, newQuestionResponse(&questions[i]))
	}
	return c.JSON(200, resp)
}

func (s *Server) handleCreateQuestion(c echo.Context) error {
	actorID, err := participantID(c)
	if err != nil {
		return err
	}

	var req struct {
		Text      string    `json:"text"`
		Options   []string  `json:"options"`
		StartDate time.Time `json:"startDate"`
		EndDate   time.Time `json:"endDate"`
	}
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed request body")
	}

	if strings.TrimSpace(req.Text) == "" {
		return apperrors.ValidationError("question text cannot be empty")
	}
	if len(req.Text) > maxQuestionTextLen {
		return apperrors.ValidationError("question text too long").WithField("max_length", maxQuestionTextLen)
	}
	if len(req.Options) < 2 {
		return apperrors.ValidationError("question needs at least two options")
	}
	if !req.EndDate.IsZero() && !req.EndDate.After(req.StartDate) {
		return apperrors.ValidationError("end date must be after start date")
	}

	question, err := s.app.CreateQuestion(c.Request().Context(), actorID, req.Text, req.Options, req.StartDate, req.EndDate)
	if err != nil {
		return mapDomainError(err, "failed to create question")
	}

	return c.JSON(201, newQuestionResponse(question))
}

func (s *Server) handleActivateQuestion(c echo.Context) error {
	actorID, err := participantID(c)
	if err != nil {
		return err
	}

	questionID, err := questionIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := s.app.ActivateQuestion(c.Request().Context(), actorID, questionID); err != nil {
		return mapDomainError(err, "failed to activate question")
	}

	return c.JSON(200, map[string]string{"status": "ok"})
}

// --- Chat history (REST mirror of the WebSocket replay) ---

func (s *Server) handleChatHistory(c echo.Context) error {
	questionID, err := questionIDParam(c, "questionId")
	if err != nil {
		return err
	}

	history, err := s.pipeline.History(c.Request().Context(), questionID)
	if err != nil {
		return apperrors.InternalError("failed to load chat history", err).
			WithField("question_id", questionID)
	}

	return c.JSON(200, history)
}

// --- Vote handlers ---

func (s *Server) handleCastVote(c echo.Context) error {
	actorID, err := participantID(c)
	if err != nil {
		return err
	}

	var req struct {
		QuestionID int64  `json:"questionId"`
		Option     string `json:"option"`
	}
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed request body")
	}
	if req.QuestionID < 1 {
		return apperrors.ValidationError("invalid question ID")
	}
	if req.Option == "" {
		return apperrors.ValidationError("option cannot be empty")
	}

	vote, err := s.app.CastVote(c.Request().Context(), actorID, req.QuestionID, req.Option)
	if err != nil {
		return mapDomainError(err, "failed to record vote")
	}

	return c.JSON(201, voteResponse{
		QuestionID:     vote.QuestionID,
		SelectedOption: vote.SelectedOption,
		CreatedAt:      vote.CreatedAt,
	})
}

func (s *Server) handleVoteStatus(c echo.Context) error {
	actorID, err := participantID(c)
	if err != nil {
		return err
	}

	questionID, err := questionIDParam(c, "questionId")
	if err != nil {
		return err
	}

	vote, err := s.app.VoteStatus(c.Request().Context(), actorID, questionID)
	if errors.Is(err, domain.ErrVoteNotFound) {
		return c.JSON(200, map[string]any{"hasVoted": false})
	}
	if err != nil {
		return mapDomainError(err, "failed to load vote status")
	}

	return c.JSON(200, map[string]any{
		"hasVoted": true,
		"vote": voteResponse{
			QuestionID:     vote.QuestionID,
			SelectedOption: vote.SelectedOption,
			CreatedAt:      vote.CreatedAt,
		},
	})
}

// --- Research paper handlers ---

func (s *Server) handlePapersForQuestion(c echo.Context) error {
	questionID, err := questionIDParam(c, "questionId")
	if err != nil {
		return err
	}

	papers, err := s.app.PapersForQuestion(c.Request().Context(), questionID)
	if err != nil {
		return mapDomainError(err, "failed to load research papers")
	}

	resp := make([]paperResponse, 0, len(papers))
	for i := range papers {
		resp = append(resp, newPaperResponse(&papers[i]))
	}
	return c.JSON(200, resp)
}

func (s *Server) handleAddPaper(c echo.Context) error {
	actorID, err := participantID(c)
	if err != nil {
		return err
	}

	var req struct {
		QuestionID       int64  `json:"questionId"`
		Title            string `json:"title"`
		Summary          string `json:"summary"`
		Source           string `json:"source"`
		Type             string `json:"type"`
		URL              string `json:"url"`
		Year             int    `json:"year"`
		CredibilityBadge string `json:"credibilityBadge"`
	}
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed request body")
	}
	if req.QuestionID < 1 {
		return apperrors.ValidationError("invalid question ID")
	}
	if strings.TrimSpace(req.Title) == "" {
		return apperrors.ValidationError("title cannot be empty")
	}

	paper, err := s.app.AddPaper(c.Request().Context(), actorID, domain.ResearchPaper{
		QuestionID:       req.QuestionID,
		Title:            req.Title,
		Summary:          req.Summary,
		Source:           req.Source,
		Type:             req.Type,
		URL:              req.URL,
		Year:             req.Year,
		CredibilityBadge: req.CredibilityBadge,
	})
	if err != nil {
		return mapDomainError(err, "failed to add research paper")
	}

	return c.JSON(201, newPaperResponse(paper))
}

// --- Feedback handlers ---

func (s *Server) handleSubmitFeedback(c echo.Context) error {
	actorID, err := participantID(c)
	if err != nil {
		return err
	}

	var req struct {
		TopicSuggestion string `json:"topicSuggestion"`
		Description     string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed request body")
	}
	if strings.TrimSpace(req.TopicSuggestion) == "" {
		return apperrors.ValidationError("topic suggestion cannot be empty")
	}

	fb, err := s.app.SubmitFeedback(c.Request().Context(), actorID, req.TopicSuggestion, req.Description)
	if err != nil {
		return mapDomainError(err, "failed to submit feedback")
	}

	return c.JSON(201, feedbackResponse{
		ID:              fb.ID,
		TopicSuggestion: fb.TopicSuggestion,
		Description:     fb.Description,
		CreatedAt:       fb.CreatedAt,
	})
}

func (s *Server) handleListFeedback(c echo.Context) error {
	actorID, err := participantID(c)
	if err != nil {
		return err
	}

	items, err := s.app.ListFeedback(c.Request().Context(), actorID)
	if err != nil {
		return mapDomainError(err, "failed to list feedback")
	}

	resp := make([]feedbackResponse, 0, len(items))
	for _, fb := range items {
		resp = append(resp, feedbackResponse{
			ID:              fb.ID,
			TopicSuggestion: fb.TopicSuggestion,
			Description:     fb.Description,
			CreatedAt:       fb.CreatedAt,
		})
	}
	return c.JSON(200, resp)
}
