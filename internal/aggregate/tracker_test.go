package aggregate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scruffychan/polly/internal/domain"
)

func TestComputeEmpty(t *testing.T) {
	assert.Equal(t, Summary{}, Compute(nil))
	assert.Equal(t, Summary{}, Compute([]float64{}))
}

func TestComputeRecencyWeighting(t *testing.T) {
	// 5 older messages at -0.5 followed by 20 recent ones at 0.5. The recent
	// block dominates: (2*20*0.5 + 5*-0.5) / (2*20 + 5).
	scores := make([]float64, 0, 25)
	for i := 0; i < 5; i++ {
		scores = append(scores, -0.5)
	}
	for i := 0; i < 20; i++ {
		scores = append(scores, 0.5)
	}

	summary := Compute(scores)
	assert.InDelta(t, 17.5/45.0, summary.AvgSentiment, 0.0001)
	assert.InDelta(t, 100*40.0/45.0, summary.PositivePercentage, 0.0001)
	assert.Equal(t, 25, summary.MessageCount)
}

func TestComputeFewerThanWindow(t *testing.T) {
	summary := Compute([]float64{0.2, 0.4, 0.6})
	assert.InDelta(t, 0.4, summary.AvgSentiment, 0.0001)
	assert.InDelta(t, 100.0, summary.PositivePercentage, 0.0001)
	assert.Equal(t, 3, summary.MessageCount)
}

func TestComputeNeutralHalfCredit(t *testing.T) {
	summary := Compute([]float64{0, 0, 0, 0})
	assert.InDelta(t, 0.0, summary.AvgSentiment, 0.0001)
	assert.InDelta(t, 50.0, summary.PositivePercentage, 0.0001)
}

func TestTrackerMatchesCompute(t *testing.T) {
	scores := make([]float64, 0, 73)
	for i := 0; i < 73; i++ {
		scores = append(scores, float64(i%13)/13.0-0.5)
	}

	tracker := &Tracker{}
	for i, s := range scores {
		tracker.Add(s)
		assert.Equal(t, Compute(scores[:i+1]), tracker.Summary(), "after %d scores", i+1)
	}
}

type stubMessageRepo struct {
	history []domain.MessageWithAuthor
	listErr error
	calls   atomic.Int32
}

func (s *stubMessageRepo) Create(context.Context, int64, uuid.UUID, string) (*domain.Message, error) {
	panic("not used")
}

func (s *stubMessageRepo) AttachSentiment(context.Context, uuid.UUID, float64) error {
	panic("not used")
}

func (s *stubMessageRepo) ListForQuestion(context.Context, int64) ([]domain.MessageWithAuthor, error) {
	s.calls.Add(1)
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.history, nil
}

func scoredMessage(score float64, createdAt time.Time) domain.MessageWithAuthor {
	return domain.MessageWithAuthor{
		Message: domain.Message{
			ID:        uuid.New(),
			Sentiment: &score,
			CreatedAt: createdAt,
		},
	}
}

func TestAggregatorSeedsFromHistory(t *testing.T) {
	now := time.Now()
	repo := &stubMessageRepo{
		// Newest first, as the repository returns it.
		history: []domain.MessageWithAuthor{
			scoredMessage(0.6, now),
			scoredMessage(0.4, now.Add(-time.Minute)),
			scoredMessage(-0.2, now.Add(-2*time.Minute)),
		},
	}
	agg := New(repo, clockwork.NewFakeClock())

	summary, err := agg.Record(context.Background(), 7, uuid.New(), 0.8)
	require.NoError(t, err)
	assert.Equal(t, Compute([]float64{-0.2, 0.4, 0.6, 0.8}), summary)

	// A second record must reuse the seeded tracker.
	_, err = agg.Record(context.Background(), 7, uuid.New(), 0.1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), repo.calls.Load())
}

func TestAggregatorSeedExcludesRecordedMessage(t *testing.T) {
	// The triggering message is already persisted and scored by the time the
	// tracker seeds, so the seed must leave it for Record to add.
	now := time.Now()
	triggering := scoredMessage(0.333, now)
	repo := &stubMessageRepo{
		history: []domain.MessageWithAuthor{
			triggering,
			scoredMessage(-0.5, now.Add(-time.Minute)),
		},
	}
	agg := New(repo, clockwork.NewFakeClock())

	summary, err := agg.Record(context.Background(), 7, triggering.ID, 0.333)
	require.NoError(t, err)
	assert.Equal(t, Compute([]float64{-0.5, 0.333}), summary)
	assert.Equal(t, 2, summary.MessageCount)
}

func TestAggregatorSkipsUnscoredHistory(t *testing.T) {
	now := time.Now()
	unscored := domain.MessageWithAuthor{Message: domain.Message{ID: uuid.New(), CreatedAt: now}}
	repo := &stubMessageRepo{
		history: []domain.MessageWithAuthor{unscored, scoredMessage(0.5, now.Add(-time.Minute))},
	}
	agg := New(repo, clockwork.NewFakeClock())

	summary, err := agg.Record(context.Background(), 3, uuid.New(), 0.1)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.MessageCount, "seeded score plus the recorded one")
}

func TestAggregatorSeedFailure(t *testing.T) {
	repo := &stubMessageRepo{listErr: errors.New("db down")}
	agg := New(repo, clockwork.NewFakeClock())

	_, err := agg.Record(context.Background(), 1, uuid.New(), 0.5)
	require.Error(t, err)

	// Failed seeds leave no tracker behind, the next call retries.
	repo.listErr = nil
	_, err = agg.Record(context.Background(), 1, uuid.New(), 0.5)
	require.NoError(t, err)
}

func TestAggregatorForget(t *testing.T) {
	repo := &stubMessageRepo{}
	agg := New(repo, clockwork.NewFakeClock())

	_, err := agg.Record(context.Background(), 9, uuid.New(), 0.5)
	require.NoError(t, err)
	agg.Forget(9)

	_, err = agg.Record(context.Background(), 9, uuid.New(), 0.5)
	require.NoError(t, err)
	assert.Equal(t, int32(2), repo.calls.Load())
}

func TestAggregatorReseedsWhenStale(t *testing.T) {
	now := time.Now()
	clock := clockwork.NewFakeClock()
	repo := &stubMessageRepo{
		history: []domain.MessageWithAuthor{scoredMessage(0.2, now)},
	}
	agg := New(repo, clock)

	_, err := agg.Record(context.Background(), 5, uuid.New(), 0.5)
	require.NoError(t, err)
	assert.Equal(t, int32(1), repo.calls.Load())

	// Before the seed expires the tracker runs on local updates alone.
	clock.Advance(maxSeedAge / 2)
	_, err = agg.Record(context.Background(), 5, uuid.New(), 0.6)
	require.NoError(t, err)
	assert.Equal(t, int32(1), repo.calls.Load())

	// Past the expiry the tracker is rebuilt from storage, dropping anything
	// the store never saw.
	clock.Advance(maxSeedAge)
	summary, err := agg.Record(context.Background(), 5, uuid.New(), 0.7)
	require.NoError(t, err)
	assert.Equal(t, int32(2), repo.calls.Load())
	assert.Equal(t, Compute([]float64{0.2, 0.7}), summary)
}
