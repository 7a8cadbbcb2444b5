package aggregate

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/scruffychan/polly/internal/domain"
)

// recentWindow is how many of the newest messages carry double weight.
const recentWindow = 20

// Weights and classification thresholds for the rolling summary.
const (
	recentWeight     = 2.0
	olderWeight      = 1.0
	positiveCutoff   = 0.1
	neutralCutoff    = -0.1
	neutralHalfValue = 0.5
)

// Summary is the rolling sentiment state of one question.
type Summary struct {
	// AvgSentiment is the recency-weighted mean score in [-1, 1].
	AvgSentiment float64
	// PositivePercentage is the weighted share of positive messages in
	// [0, 100], with neutral messages counting half.
	PositivePercentage float64
	// MessageCount is the number of scored messages observed.
	MessageCount int
}

// Compute derives a Summary from a full score history, oldest first. It is the
// reference calculation; Tracker produces identical results incrementally.
func Compute(scores []float64) Summary {
	t := &Tracker{}
	for _, s := range scores {
		t.Add(s)
	}
	return t.Summary()
}

// Tracker accumulates scores for one question. The newest recentWindow scores
// live in a ring; everything older is folded into running sums. Not safe for
// concurrent use, callers synchronize.
type Tracker struct {
	ring   [recentWindow]float64
	head   int
	filled int

	olderSum     float64
	olderCount   int
	olderPos     int
	olderNeutral int
}

// Add records one score, evicting the oldest ring entry into the older
// accumulators once the window is full.
func (t *Tracker) Add(score float64) {
	if t.filled == recentWindow {
		evicted := t.ring[t.head]
		t.olderSum += evicted
		t.olderCount++
		switch {
		case evicted > positiveCutoff:
			t.olderPos++
		case evicted >= neutralCutoff:
			t.olderNeutral++
		}
	} else {
		t.filled++
	}
	t.ring[t.head] = score
	t.head = (t.head + 1) % recentWindow
}

// Summary computes the current rolling state. An empty tracker yields the
// zero Summary.
func (t *Tracker) Summary() Summary {
	if t.filled == 0 && t.olderCount == 0 {
		return Summary{}
	}

	var recentSum float64
	var recentPos, recentNeutral int
	for i := 0; i < t.filled; i++ {
		s := t.ring[(t.head-t.filled+i+recentWindow)%recentWindow]
		recentSum += s
		switch {
		case s > positiveCutoff:
			recentPos++
		case s >= neutralCutoff:
			recentNeutral++
		}
	}

	totalWeight := recentWeight*float64(t.filled) + olderWeight*float64(t.olderCount)
	avg := (recentWeight*recentSum + olderWeight*t.olderSum) / totalWeight

	positiveCredit := recentWeight*(float64(recentPos)+neutralHalfValue*float64(recentNeutral)) +
		olderWeight*(float64(t.olderPos)+neutralHalfValue*float64(t.olderNeutral))

	return Summary{
		AvgSentiment:       avg,
		PositivePercentage: 100 * positiveCredit / totalWeight,
		MessageCount:       t.filled + t.olderCount,
	}
}

// maxSeedAge bounds how long a tracker runs on purely local updates before it
// is rebuilt from storage. Instances that ingest for the same question drift
// apart between rebuilds and converge again on the next one.
const maxSeedAge = time.Minute

// Aggregator owns per-question trackers and seeds them lazily from stored
// messages. Safe for concurrent use.
type Aggregator struct {
	messages domain.MessageRepository
	clock    clockwork.Clock

	mu       sync.Mutex
	trackers map[int64]*seededTracker
	seeds    singleflight.Group
}

type seededTracker struct {
	tracker  *Tracker
	seededAt time.Time
}

func New(messages domain.MessageRepository, clock clockwork.Clock) *Aggregator {
	return &Aggregator{
		messages: messages,
		clock:    clock,
		trackers: make(map[int64]*seededTracker),
	}
}

// Record folds a new score into the question's tracker and returns the
// updated summary. The first call for a question seeds the tracker from
// persisted history; concurrent first calls share a single load. messageID
// identifies the message the score belongs to, so a seed that already sees
// the persisted row does not count it a second time.
func (a *Aggregator) Record(ctx context.Context, questionID int64, messageID uuid.UUID, score float64) (Summary, error) {
	t, err := a.tracker(ctx, questionID, messageID)
	if err != nil {
		return Summary{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	t.Add(score)
	return t.Summary(), nil
}

// Forget drops the tracker for a question. Wired to the broadcaster's
// question-idle callback so idle questions don't pin memory; the next Record
// re-seeds from storage.
func (a *Aggregator) Forget(questionID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.trackers, questionID)
}

func (a *Aggregator) tracker(ctx context.Context, questionID int64, exclude uuid.UUID) (*Tracker, error) {
	a.mu.Lock()
	if e, ok := a.trackers[questionID]; ok {
		if a.clock.Since(e.seededAt) < maxSeedAge {
			a.mu.Unlock()
			return e.tracker, nil
		}
		delete(a.trackers, questionID)
	}
	a.mu.Unlock()

	v, err, _ := a.seeds.Do(strconv.FormatInt(questionID, 10), func() (any, error) {
		a.mu.Lock()
		if e, ok := a.trackers[questionID]; ok {
			a.mu.Unlock()
			return e.tracker, nil
		}
		a.mu.Unlock()

		history, err := a.messages.ListForQuestion(ctx, questionID)
		if err != nil {
			return nil, fmt.Errorf("seed sentiment tracker: %w", err)
		}

		t := &Tracker{}
		// History arrives newest first, the tracker wants oldest first. The
		// caller's own message is skipped, Record adds its score afterwards.
		for i := len(history) - 1; i >= 0; i-- {
			if history[i].ID == exclude {
				continue
			}
			if s := history[i].Sentiment; s != nil {
				t.Add(*s)
			}
		}

		a.mu.Lock()
		a.trackers[questionID] = &seededTracker{tracker: t, seededAt: a.clock.Now()}
		a.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Tracker), nil
}
