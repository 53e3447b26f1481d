package client

import (
	"context"
	"time"

	"github.com/infrasketch/sketchd/pkg/session"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultPollMax      = 30 * time.Second
	defaultPollFactor   = 2.0
)

// PollOptions tune the wait helpers. The zero value polls every 2s and
// backs off to 30s while the server is unreachable.
type PollOptions struct {
	// Interval between polls while the server keeps answering.
	Interval time.Duration
	// MaxInterval caps the backoff applied after transport errors.
	MaxInterval time.Duration
	// Multiplier grows the delay after each consecutive transport error.
	Multiplier float64
}

func (o PollOptions) withDefaults() PollOptions {
	if o.Interval <= 0 {
		o.Interval = defaultPollInterval
	}
	if o.MaxInterval < o.Interval {
		o.MaxInterval = defaultPollMax
		if o.MaxInterval < o.Interval {
			o.MaxInterval = o.Interval
		}
	}
	if o.Multiplier <= 1 {
		o.Multiplier = defaultPollFactor
	}
	return o
}

// backoff produces the delay sequence between polls: flat while answers
// arrive, growing toward max while they do not.
type backoff struct {
	initial    time.Duration
	max        time.Duration
	multiplier float64
	next       time.Duration
}

func newBackoff(initial, max time.Duration, multiplier float64) *backoff {
	return &backoff{initial: initial, max: max, multiplier: multiplier, next: initial}
}

// wait sleeps the current delay, grows it, and returns early with the
// context error on cancellation.
func (b *backoff) wait(ctx context.Context) error {
	d := b.next
	b.next = time.Duration(float64(b.next) * b.multiplier)
	if b.next > b.max {
		b.next = b.max
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (b *backoff) reset() {
	b.next = b.initial
}

// WaitForDiagram polls generation status until the session reaches a
// terminal state and returns that status. A failed generation is a
// normal return; callers branch on Status. Transport errors are treated
// as transient and polled through with capped backoff, so the only
// errors are context cancellation and server-reported ones such as
// not_found.
func (c *Client) WaitForDiagram(ctx context.Context, sessionID string, opts PollOptions) (*session.DiagramStatusResponse, error) {
	opts = opts.withDefaults()
	bo := newBackoff(opts.Interval, opts.MaxInterval, opts.Multiplier)

	for {
		resp, err := c.DiagramStatus(ctx, sessionID)
		switch {
		case err == nil:
			if resp.Status != session.StatusGenerating {
				return resp, nil
			}
			bo.reset()
		case session.IsNetwork(err):
			// Transient; keep polling.
		default:
			return nil, err
		}

		if err := bo.wait(ctx); err != nil {
			return nil, err
		}
	}
}

// WaitForDesignDoc polls design-document status until completed or
// failed, with the same transient-error handling as WaitForDiagram.
func (c *Client) WaitForDesignDoc(ctx context.Context, sessionID string, opts PollOptions) (*session.DesignDocStatusResponse, error) {
	opts = opts.withDefaults()
	bo := newBackoff(opts.Interval, opts.MaxInterval, opts.Multiplier)

	for {
		resp, err := c.DesignDocStatus(ctx, sessionID)
		switch {
		case err == nil:
			if resp.Status == session.DesignDocCompleted || resp.Status == session.DesignDocFailed {
				return resp, nil
			}
			bo.reset()
		case session.IsNetwork(err):
			// Transient; keep polling.
		default:
			return nil, err
		}

		if err := bo.wait(ctx); err != nil {
			return nil, err
		}
	}
}
