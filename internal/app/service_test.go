package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scruffychan/polly/internal/domain"
)

type stubUsers struct {
	byID map[uuid.UUID]*domain.User
}

func (s *stubUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	if u, ok := s.byID[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (s *stubUsers) Upsert(_ context.Context, user domain.User) (*domain.User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if s.byID == nil {
		s.byID = make(map[uuid.UUID]*domain.User)
	}
	s.byID[user.ID] = &user
	return &user, nil
}

type stubQuestions struct {
	byID      map[int64]*domain.Question
	activated []int64
}

func (s *stubQuestions) GetActive(context.Context) (*domain.Question, error) {
	for _, q := range s.byID {
		if q.IsActive {
			return q, nil
		}
	}
	return nil, domain.ErrNoActiveQuestion
}

func (s *stubQuestions) GetByID(_ context.Context, id int64) (*domain.Question, error) {
	if q, ok := s.byID[id]; ok {
		return q, nil
	}
	return nil, domain.ErrQuestionNotFound
}

func (s *stubQuestions) History(context.Context) ([]domain.Question, error) {
	var all []domain.Question
	for _, q := range s.byID {
		all = append(all, *q)
	}
	return all, nil
}

func (s *stubQuestions) Create(_ context.Context, text string, options []string, startDate, endDate time.Time, createdBy uuid.UUID) (*domain.Question, error) {
	if s.byID == nil {
		s.byID = make(map[int64]*domain.Question)
	}
	q := &domain.Question{
		ID: int64(len(s.byID) + 1), Text: text, Options: options,
		StartDate: startDate, EndDate: endDate, CreatedBy: createdBy,
	}
	s.byID[q.ID] = q
	return q, nil
}

func (s *stubQuestions) Activate(_ context.Context, id int64) error {
	if _, ok := s.byID[id]; !ok {
		return domain.ErrQuestionNotFound
	}
	s.activated = append(s.activated, id)
	return nil
}

type stubVotes struct {
	votes map[string]*domain.Vote
}

func voteKey(userID uuid.UUID, questionID int64) string {
	return fmt.Sprintf("%s/%d", userID, questionID)
}

func (s *stubVotes) Create(_ context.Context, questionID int64, userID uuid.UUID, option string) (*domain.Vote, error) {
	if s.votes == nil {
		s.votes = make(map[string]*domain.Vote)
	}
	key := voteKey(userID, questionID)
	if _, ok := s.votes[key]; ok {
		return nil, domain.ErrAlreadyVoted
	}
	v := &domain.Vote{ID: int64(len(s.votes) + 1), QuestionID: questionID, UserID: userID, SelectedOption: option}
	s.votes[key] = v
	return v, nil
}

func (s *stubVotes) GetForParticipant(_ context.Context, userID uuid.UUID, questionID int64) (*domain.Vote, error) {
	if v, ok := s.votes[voteKey(userID, questionID)]; ok {
		return v, nil
	}
	return nil, domain.ErrVoteNotFound
}

type stubPapers struct {
	papers []domain.ResearchPaper
}

func (s *stubPapers) Create(_ context.Context, paper domain.ResearchPaper) (*domain.ResearchPaper, error) {
	paper.ID = int64(len(s.papers) + 1)
	s.papers = append(s.papers, paper)
	return &paper, nil
}

func (s *stubPapers) ListForQuestion(_ context.Context, questionID int64) ([]domain.ResearchPaper, error) {
	var out []domain.ResearchPaper
	for _, p := range s.papers {
		if p.QuestionID == questionID {
			out = append(out, p)
		}
	}
	return out, nil
}

type stubFeedback struct {
	entries []domain.Feedback
}

func (s *stubFeedback) Create(_ context.Context, userID uuid.UUID, topicSuggestion, description string) (*domain.Feedback, error) {
	fb := domain.Feedback{ID: int64(len(s.entries) + 1), UserID: userID, TopicSuggestion: topicSuggestion, Description: description}
	s.entries = append(s.entries, fb)
	return &fb, nil
}

func (s *stubFeedback) ListAll(context.Context) ([]domain.Feedback, error) {
	return s.entries, nil
}

type fixture struct {
	service   *Service
	users     *stubUsers
	questions *stubQuestions
	votes     *stubVotes
	papers    *stubPapers
	admin     *domain.User
	member    *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	users := &stubUsers{}
	questions := &stubQuestions{}
	votes := &stubVotes{}
	papers := &stubPapers{}
	feedback := &stubFeedback{}

	admin, err := users.Upsert(context.Background(), domain.User{FirstName: "Admin", IsAdmin: true})
	require.NoError(t, err)
	member, err := users.Upsert(context.Background(), domain.User{FirstName: "Member"})
	require.NoError(t, err)

	return &fixture{
		service:   NewService(users, questions, votes, papers, feedback),
		users:     users,
		questions: questions,
		votes:     votes,
		papers:    papers,
		admin:     admin,
		member:    member,
	}
}

func TestCreateQuestionRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	_, err := f.service.CreateQuestion(ctx, f.member.ID, "No way?", nil, now, now.Add(time.Hour))
	require.ErrorIs(t, err, domain.ErrAdminRequired)

	q, err := f.service.CreateQuestion(ctx, f.admin.ID, "Allowed?", []string{"Yes", "No"}, now, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, q.CreatedBy)
}

func TestActivateQuestionRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	q, err := f.service.CreateQuestion(ctx, f.admin.ID, "Activate me?", nil, now, now.Add(time.Hour))
	require.NoError(t, err)

	require.ErrorIs(t, f.service.ActivateQuestion(ctx, f.member.ID, q.ID), domain.ErrAdminRequired)
	require.NoError(t, f.service.ActivateQuestion(ctx, f.admin.ID, q.ID))
	assert.Equal(t, []int64{q.ID}, f.questions.activated)
}

func TestCastVoteValidatesOption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	q, err := f.service.CreateQuestion(ctx, f.admin.ID, "Pick one", []string{"Yes", "No"}, now, now.Add(time.Hour))
	require.NoError(t, err)

	_, err = f.service.CastVote(ctx, f.member.ID, q.ID, "Maybe")
	require.ErrorIs(t, err, domain.ErrInvalidOption)

	vote, err := f.service.CastVote(ctx, f.member.ID, q.ID, "Yes")
	require.NoError(t, err)
	assert.Equal(t, "Yes", vote.SelectedOption)

	_, err = f.service.CastVote(ctx, f.member.ID, q.ID, "No")
	require.ErrorIs(t, err, domain.ErrAlreadyVoted)
}

func TestCastVoteUnknownQuestion(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.CastVote(context.Background(), f.member.ID, 42, "Yes")
	require.ErrorIs(t, err, domain.ErrQuestionNotFound)
}

func TestVoteStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	q, err := f.service.CreateQuestion(ctx, f.admin.ID, "Pick one", []string{"Yes"}, now, now.Add(time.Hour))
	require.NoError(t, err)

	_, err = f.service.VoteStatus(ctx, f.member.ID, q.ID)
	require.ErrorIs(t, err, domain.ErrVoteNotFound)

	_, err = f.service.CastVote(ctx, f.member.ID, q.ID, "Yes")
	require.NoError(t, err)

	vote, err := f.service.VoteStatus(ctx, f.member.ID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "Yes", vote.SelectedOption)
}

func TestAddPaperRequiresAdminAndQuestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	q, err := f.service.CreateQuestion(ctx, f.admin.ID, "Researched?", nil, now, now.Add(time.Hour))
	require.NoError(t, err)

	paper := domain.ResearchPaper{QuestionID: q.ID, Title: "A Study"}
	_, err = f.service.AddPaper(ctx, f.member.ID, paper)
	require.ErrorIs(t, err, domain.ErrAdminRequired)

	paper.QuestionID = 999
	_, err = f.service.AddPaper(ctx, f.admin.ID, paper)
	require.ErrorIs(t, err, domain.ErrQuestionNotFound)

	paper.QuestionID = q.ID
	stored, err := f.service.AddPaper(ctx, f.admin.ID, paper)
	require.NoError(t, err)
	assert.Equal(t, "A Study", stored.Title)

	papers, err := f.service.PapersForQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.Len(t, papers, 1)
}

func TestListFeedbackRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.SubmitFeedback(ctx, f.member.ID, "Discuss transit", "more transit topics please")
	require.NoError(t, err)

	_, err = f.service.ListFeedback(ctx, f.member.ID)
	require.ErrorIs(t, err, domain.ErrAdminRequired)

	entries, err := f.service.ListFeedback(ctx, f.admin.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEnsureParticipantAssignsID(t *testing.T) {
	f := newFixture(t)

	user, err := f.service.EnsureParticipant(context.Background(), domain.User{FirstName: "New"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)

	stored, err := f.service.GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", stored.FirstName)
}
