// Package nats publishes lifecycle events to a NATS server so that other
// processes (exporters, notification fan-out) can consume them.
package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/infrasketch/sketchd/internal/events"
)

// Publisher implements events.Publisher over a NATS connection. Events go
// to "<prefix>.<event type>", e.g. "sketch.diagram.updated".
type Publisher struct {
	conn   *nats.Conn
	prefix string
}

var _ events.Publisher = (*Publisher)(nil)

// NewPublisher connects to the NATS server at url.
func NewPublisher(url, subjectPrefix string) (*Publisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	if subjectPrefix == "" {
		subjectPrefix = "sketch"
	}
	return &Publisher{conn: nc, prefix: subjectPrefix}, nil
}

func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("nats marshal event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", p.prefix, event.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("nats publish %q: %w", subject, err)
	}
	return nil
}

// Close drains the connection so queued events flush before shutdown.
func (p *Publisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}
