package redis

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/scruffychan/polly/internal/metrics"
)

func chatChannel(questionID int64) string {
	return "chat:" + strconv.FormatInt(questionID, 10)
}

// Fanout bridges chat broadcasts across instances. Publish pushes an encoded
// payload onto the question's channel; Follow subscribes and hands every
// payload (this instance's own included) to deliver, which feeds the local
// broadcaster. Implements domain.EventPublisher.
type Fanout struct {
	rdb     *goredis.Client
	deliver func(questionID int64, payload []byte)

	mu   sync.Mutex
	subs map[int64]*subscription
}

type subscription struct {
	sub    *goredis.PubSub
	cancel context.CancelFunc
}

// NewFanout creates a Fanout. deliver is called from a per-question goroutine
// for every payload received on a followed channel.
func NewFanout(client *Client, deliver func(questionID int64, payload []byte)) *Fanout {
	return &Fanout{
		rdb:     client.rdb,
		deliver: deliver,
		subs:    make(map[int64]*subscription),
	}
}

// Publish pushes a payload to the question's channel.
func (f *Fanout) Publish(ctx context.Context, questionID int64, payload []byte) error {
	return f.rdb.Publish(ctx, chatChannel(questionID), payload).Err()
}

// Follow starts forwarding the question's channel to deliver. Idempotent.
// Wired to the broadcaster's question-active callback.
func (f *Fanout) Follow(questionID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.subs[questionID]; exists {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := f.rdb.Subscribe(ctx, chatChannel(questionID))
	f.subs[questionID] = &subscription{sub: sub, cancel: cancel}
	metrics.RedisFollowedQuestions.Set(float64(len(f.subs)))

	go func() {
		msgCh := sub.Channel()
		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				f.deliver(questionID, []byte(msg.Payload))
			case <-ctx.Done():
				return
			}
		}
	}()

	slog.Debug("Following question channel", "question_id", questionID)
}

// Unfollow stops forwarding the question's channel. Idempotent. Wired to the
// broadcaster's question-idle callback.
func (f *Fanout) Unfollow(questionID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, exists := f.subs[questionID]
	if !exists {
		return
	}

	s.cancel()
	_ = s.sub.Close()
	delete(f.subs, questionID)
	metrics.RedisFollowedQuestions.Set(float64(len(f.subs)))
	slog.Debug("Unfollowed question channel", "question_id", questionID)
}

// Close drops every subscription.
func (f *Fanout) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for questionID, s := range f.subs {
		s.cancel()
		_ = s.sub.Close()
		delete(f.subs, questionID)
	}
	metrics.RedisFollowedQuestions.Set(0)
}
