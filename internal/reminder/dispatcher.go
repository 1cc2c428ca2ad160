// Package reminder selects due documents and hands one reminder per document
// to the email or webhook sink.
package reminder

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/doctrack/doctrack/internal/document"
	"github.com/doctrack/doctrack/internal/ratelimit"
	"github.com/doctrack/doctrack/internal/reminder/sink"
	"github.com/doctrack/doctrack/pkg/logger"
	"github.com/doctrack/doctrack/pkg/metrics"
)

type Mode string

const (
	ModeEmail   Mode = "email"
	ModeWebhook Mode = "webhook"
)

// Fallback targets used when neither the request nor the configuration names one.
const (
	FallbackEmail      = "test@example.com"
	FallbackWebhookURL = "https://example.invalid/webhook"
)

// Request is one dispatch. Empty Mode means email; empty Target means the
// configured default.
type Request struct {
	Days   int
	Mode   string
	Target string
}

// Result summarizes a dispatch. Details holds one sink id per due document,
// in due order.
type Result struct {
	Sent    int      `json:"sent"`
	Mode    Mode     `json:"mode"`
	Target  string   `json:"target"`
	Details []string `json:"details"`
}

// DueLister is the expiry query the dispatcher depends on.
type DueLister interface {
	ListExpiring(ctx context.Context, days int) ([]*document.Document, error)
}

type Config struct {
	DefaultEmail      string
	DefaultWebhookURL string
	// Scope is the admission budget for dispatches.
	Scope ratelimit.Scope
}

type Dispatcher struct {
	docs    DueLister
	limiter ratelimit.Limiter
	sinks   map[Mode]sink.Sink
	cfg     Config
}

// NewDispatcher wires the dispatcher. limiter may be nil for trusted callers
// such as the scheduled CLI trigger.
func NewDispatcher(docs DueLister, limiter ratelimit.Limiter, email, webhook sink.Sink, cfg Config) *Dispatcher {
	if cfg.DefaultEmail == "" {
		cfg.DefaultEmail = FallbackEmail
	}
	if cfg.DefaultWebhookURL == "" {
		cfg.DefaultWebhookURL = FallbackWebhookURL
	}
	if cfg.Scope.Name == "" {
		cfg.Scope.Name = ratelimit.ScopeReminders
	}
	return &Dispatcher{
		docs:    docs,
		limiter: limiter,
		sinks:   map[Mode]sink.Sink{ModeEmail: email, ModeWebhook: webhook},
		cfg:     cfg,
	}
}

// Send dispatches reminders for every document due within req.Days on behalf
// of client. A sink failure aborts the rest of the batch.
func (d *Dispatcher) Send(ctx context.Context, client string, req Request) (*Result, error) {
	if d.limiter != nil {
		if err := d.limiter.Allow(ctx, d.cfg.Scope, client); err != nil {
			return nil, err
		}
	}

	mode, err := ParseMode(req.Mode)
	if err != nil {
		return nil, err
	}
	if req.Target != "" {
		if err := ValidateTarget(mode, req.Target); err != nil {
			return nil, err
		}
	}
	target := d.resolveTarget(mode, req.Target)

	due, err := d.docs.ListExpiring(ctx, req.Days)
	if err != nil {
		return nil, fmt.Errorf("selecting due documents: %w", err)
	}

	s := d.sinks[mode]
	details := make([]string, 0, len(due))
	for _, doc := range due {
		id, err := s.Send(ctx, target, Message(doc))
		if err != nil {
			metrics.ReminderFailures.WithLabelValues(string(mode)).Inc()
			logger.Errorf("reminder dispatch aborted after %d/%d %s messages: %v", len(details), len(due), mode, err)
			return nil, err
		}
		details = append(details, id)
	}
	metrics.RemindersSent.WithLabelValues(string(mode)).Add(float64(len(details)))
	logger.Infof("dispatched %d %s reminders to %s", len(details), mode, target)

	return &Result{
		Sent:    len(due),
		Mode:    mode,
		Target:  s.Label(target),
		Details: details,
	}, nil
}

// Window is the admission window of the dispatch scope.
func (d *Dispatcher) Window() time.Duration {
	if d.cfg.Scope.Window <= 0 {
		return ratelimit.DefaultWindow
	}
	return d.cfg.Scope.Window
}

func (d *Dispatcher) resolveTarget(mode Mode, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if mode == ModeWebhook {
		return d.cfg.DefaultWebhookURL
	}
	return d.cfg.DefaultEmail
}

// Message is the reminder text for one document.
func Message(doc *document.Document) string {
	return fmt.Sprintf("Document %s expires %s", doc.Title, doc.ExpiryDate)
}

// ParseMode accepts email or webhook in any case; empty means email.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case "", ModeEmail:
		return ModeEmail, nil
	case ModeWebhook:
		return ModeWebhook, nil
	}
	return "", fmt.Errorf("%w: mode must be email or webhook", document.ErrValidation)
}

// ValidateTarget checks an explicit destination for mode.
func ValidateTarget(mode Mode, target string) error {
	switch mode {
	case ModeEmail:
		if !strings.Contains(target, "@") || strings.ContainsFunc(target, unicode.IsSpace) {
			return fmt.Errorf("%w: target must be an email address", document.ErrValidation)
		}
	case ModeWebhook:
		if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
			return fmt.Errorf("%w: target must start with http:// or https://", document.ErrValidation)
		}
	}
	return nil
}
