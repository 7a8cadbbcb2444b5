package broadcast

import "context"

// LocalPublisher delivers payloads straight to this instance's connections.
// Implements domain.EventPublisher for single-instance deployments; with
// Redis enabled the Fanout takes its place and feeds Publish via Pub/Sub.
type LocalPublisher struct {
	b *Broadcaster
}

func NewLocalPublisher(b *Broadcaster) *LocalPublisher {
	return &LocalPublisher{b: b}
}

func (p *LocalPublisher) Publish(_ context.Context, questionID int64, payload []byte) error {
	p.b.Publish(questionID, payload)
	return nil
}
