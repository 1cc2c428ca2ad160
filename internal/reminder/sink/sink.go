// Package sink delivers reminder messages. Every sink records what it sent in
// the outbox.
package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/doctrack/doctrack/internal/document"
	"github.com/doctrack/doctrack/internal/reminder/outbox"
)

// Sink delivers one message to destination and returns an identifier of the
// form "<kind>:<destination>". Failures wrap document.ErrSink.
type Sink interface {
	Send(ctx context.Context, destination, message string) (string, error)
	// Label describes destination for the dispatch result.
	Label(destination string) string
}

// Webhook records webhook reminders in the outbox without making an HTTP call.
type Webhook struct {
	outbox outbox.Writer
	now    func() time.Time
}

func NewWebhook(w outbox.Writer) *Webhook {
	return &Webhook{outbox: w, now: utcNow}
}

func (s *Webhook) Label(url string) string { return url }

func (s *Webhook) Send(ctx context.Context, url, message string) (string, error) {
	if err := s.outbox.Append(ctx, outbox.Entry{Kind: outbox.KindWebhook, Destination: url, Message: message, CreatedAt: s.now()}); err != nil {
		return "", fmt.Errorf("%w: recording webhook for %s: %w", document.ErrSink, url, err)
	}
	return "webhook:" + url, nil
}

func utcNow() time.Time { return time.Now().UTC() }
