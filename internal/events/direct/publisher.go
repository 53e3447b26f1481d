// Package direct provides an in-process event publisher. This is the
// default implementation for single-instance deployments.
package direct

import (
	"context"
	"log/slog"
	"sync"

	"github.com/infrasketch/sketchd/internal/events"
)

// Publisher implements events.Publisher by invoking in-process subscribers
// and logging each event at debug level.
type Publisher struct {
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers []func(events.Event)
}

var _ events.Publisher = (*Publisher)(nil)

// NewPublisher creates a new direct event publisher.
func NewPublisher(logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{logger: logger}
}

// Subscribe registers fn for every subsequent event. Subscribers run
// synchronously on the publishing goroutine and must not block.
func (p *Publisher) Subscribe(fn func(events.Event)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	p.logger.Debug("event published",
		slog.String("type", string(event.Type)),
		slog.String("session_id", event.SessionID))

	p.mu.RLock()
	subs := p.subscribers
	p.mu.RUnlock()

	for _, fn := range subs {
		fn(event)
	}
	return nil
}

// Close is a no-op for the direct publisher.
func (p *Publisher) Close() error {
	return nil
}
