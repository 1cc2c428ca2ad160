package sink

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"golang.org/x/time/rate"

	"github.com/doctrack/doctrack/internal/document"
	"github.com/doctrack/doctrack/internal/reminder/outbox"
	"github.com/doctrack/doctrack/pkg/logger"
)

const emailSubject = "Document expiry reminder"

// TLS modes accepted in SMTPConfig.TLS.
const (
	TLSStartTLS = "starttls"
	TLSImplicit = "ssl"
	TLSNone     = "none"
)

// SMTPConfig configures the email transport. The transport is active only when
// Host is set and Disabled is false.
type SMTPConfig struct {
	Host         string
	Port         int
	Username     string
	Password     string
	From         string
	TLS          string
	Disabled     bool
	Timeout      time.Duration
	MaxPerSecond float64
}

func (c SMTPConfig) Enabled() bool {
	return !c.Disabled && c.Host != ""
}

// Email delivers reminders over SMTP when a transport is configured, and always
// records them in the outbox. Without a transport the outbox is the only
// destination.
type Email struct {
	cfg     SMTPConfig
	outbox  outbox.Writer
	limiter *rate.Limiter
	now     func() time.Time

	// deliver sends one message; replaced in tests.
	deliver func(ctx context.Context, msg *mail.Msg) error
}

func NewEmail(cfg SMTPConfig, w outbox.Writer) *Email {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	e := &Email{cfg: cfg, outbox: w, now: utcNow}
	if cfg.MaxPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.MaxPerSecond), 1)
	}
	e.deliver = e.dialAndSend
	return e
}

// Transport reports whether Send talks to an SMTP server.
func (e *Email) Transport() bool { return e.cfg.Enabled() }

// Label returns addr, plus the outbox location when no transport is configured
// so operators know where to look.
func (e *Email) Label(addr string) string {
	if e.Transport() {
		return addr
	}
	return fmt.Sprintf("%s (%s)", addr, e.outbox.Location())
}

func (e *Email) Send(ctx context.Context, addr, message string) (string, error) {
	if e.Transport() {
		if err := e.send(ctx, addr, message); err != nil {
			return "", fmt.Errorf("%w: email to %s: %w", document.ErrSink, addr, err)
		}
	}
	if err := e.outbox.Append(ctx, outbox.Entry{Kind: outbox.KindEmail, Destination: addr, Message: message, CreatedAt: e.now()}); err != nil {
		return "", fmt.Errorf("%w: recording email to %s: %w", document.ErrSink, addr, err)
	}
	return "email:" + addr, nil
}

func (e *Email) send(ctx context.Context, addr, message string) error {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	msg := mail.NewMsg()
	if err := msg.From(e.cfg.From); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(addr); err != nil {
		return fmt.Errorf("to address: %w", err)
	}
	msg.Subject(emailSubject)
	msg.SetBodyString(mail.TypeTextPlain, message)

	if err := e.deliver(ctx, msg); err != nil {
		return err
	}
	logger.Debugf("smtp: delivered reminder to %s via %s", addr, e.cfg.Host)
	return nil
}

func (e *Email) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(e.cfg.Host, e.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}

func (e *Email) clientOptions() []mail.Option {
	opts := []mail.Option{mail.WithTimeout(e.cfg.Timeout)}
	if e.cfg.Port > 0 {
		opts = append(opts, mail.WithPort(e.cfg.Port))
	}
	switch strings.ToLower(e.cfg.TLS) {
	case TLSImplicit:
		opts = append(opts, mail.WithSSL())
	case TLSNone:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if e.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(e.cfg.Username),
			mail.WithPassword(e.cfg.Password),
		)
	}
	return opts
}
