package reminder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doctrack/doctrack/internal/clock/clocktest"
	"github.com/doctrack/doctrack/internal/document"
	"github.com/doctrack/doctrack/internal/document/repository"
	"github.com/doctrack/doctrack/internal/document/service"
	"github.com/doctrack/doctrack/internal/ratelimit"
	"github.com/doctrack/doctrack/internal/reminder/outbox"
	"github.com/doctrack/doctrack/internal/reminder/sink"
	"github.com/doctrack/doctrack/pkg/metrics"
)

type fixture struct {
	svc    *service.DocumentService
	outbox *outbox.File
	email  *sink.Email
	d      *Dispatcher
}

func newFixture(t *testing.T, limiter ratelimit.Limiter, cfg Config) *fixture {
	t.Helper()
	ob, err := outbox.NewFile(filepath.Join(t.TempDir(), "outbox.log"))
	require.NoError(t, err)
	svc := service.New(repository.NewMemoryRepo(), clocktest.Fixed())
	email := sink.NewEmail(sink.SMTPConfig{Disabled: true}, ob)
	return &fixture{
		svc:    svc,
		outbox: ob,
		email:  email,
		d:      NewDispatcher(svc, limiter, email, sink.NewWebhook(ob), cfg),
	}
}

func (f *fixture) create(t *testing.T, title string, inDays int) *document.Document {
	t.Helper()
	doc, err := f.svc.Create(context.Background(), title, "passport", f.svc.Today().AddDays(inDays))
	require.NoError(t, err)
	return doc
}

func (f *fixture) lines(t *testing.T) []string {
	t.Helper()
	b, err := os.ReadFile(f.outbox.Location())
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
}

func TestSend_EndToEndPassport(t *testing.T) {
	f := newFixture(t, nil, Config{})
	passport := f.create(t, "Passport", 10)

	due, err := f.svc.ListExpiring(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, passport.ID, due[0].ID)

	res, err := f.d.Send(context.Background(), "ip:127.0.0.1", Request{Days: 30})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Sent, 1)
	assert.Equal(t, ModeEmail, res.Mode)
	assert.Equal(t, fmt.Sprintf("%s (%s)", FallbackEmail, f.outbox.Location()), res.Target)
	assert.Equal(t, []string{"email:" + FallbackEmail}, res.Details)
	assert.Equal(t, []string{"[EMAIL] to=test@example.com Document Passport expires 2024-01-25"}, f.lines(t))
}

func TestSend_DetailsFollowDueOrder(t *testing.T) {
	f := newFixture(t, nil, Config{DefaultWebhookURL: "https://hooks.example/doctrack"})
	f.create(t, "later", 25)
	f.create(t, "overdue", -3)
	f.create(t, "out-of-window", 90)
	f.create(t, "soon", 5)

	before := testutil.ToFloat64(metrics.RemindersSent.WithLabelValues("webhook"))
	res, err := f.d.Send(context.Background(), "c", Request{Days: 30, Mode: "WEBHOOK"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Sent)
	assert.Equal(t, ModeWebhook, res.Mode)
	assert.Equal(t, "https://hooks.example/doctrack", res.Target)
	require.Len(t, res.Details, 3)
	for _, id := range res.Details {
		assert.Equal(t, "webhook:https://hooks.example/doctrack", id)
	}
	assert.Equal(t, []string{
		"[WEBHOOK] url=https://hooks.example/doctrack Document overdue expires 2024-01-12",
		"[WEBHOOK] url=https://hooks.example/doctrack Document soon expires 2024-01-20",
		"[WEBHOOK] url=https://hooks.example/doctrack Document later expires 2024-02-09",
	}, f.lines(t))
	assert.Equal(t, before+3, testutil.ToFloat64(metrics.RemindersSent.WithLabelValues("webhook")))
}

func TestSend_NothingDue(t *testing.T) {
	f := newFixture(t, nil, Config{})
	f.create(t, "far", 200)

	res, err := f.d.Send(context.Background(), "c", Request{Days: 30})
	require.NoError(t, err)
	assert.Zero(t, res.Sent)
	assert.NotNil(t, res.Details)
	assert.Empty(t, res.Details)
	assert.Nil(t, f.lines(t))
}

func TestSend_TargetResolution(t *testing.T) {
	f := newFixture(t, nil, Config{DefaultEmail: "ops@example.com"})
	f.create(t, "Passport", 1)

	res, err := f.d.Send(context.Background(), "c", Request{Days: 30})
	require.NoError(t, err)
	assert.Equal(t, []string{"email:ops@example.com"}, res.Details)

	res, err = f.d.Send(context.Background(), "c", Request{Days: 30, Target: "me@example.org"})
	require.NoError(t, err)
	assert.Equal(t, []string{"email:me@example.org"}, res.Details)

	res, err = f.d.Send(context.Background(), "c", Request{Days: 30, Mode: "webhook"})
	require.NoError(t, err)
	assert.Equal(t, []string{"webhook:" + FallbackWebhookURL}, res.Details)
}

func TestSend_InvalidModeRejectedRegardlessOfDueDocuments(t *testing.T) {
	for _, withDocs := range []bool{false, true} {
		f := newFixture(t, nil, Config{})
		if withDocs {
			f.create(t, "Passport", 1)
		}
		_, err := f.d.Send(context.Background(), "c", Request{Days: 30, Mode: "carrier-pigeon"})
		require.ErrorIs(t, err, document.ErrValidation)
		assert.Nil(t, f.lines(t))
	}
}

func TestSend_InvalidTargets(t *testing.T) {
	f := newFixture(t, nil, Config{})
	f.create(t, "Passport", 1)

	cases := []Request{
		{Days: 30, Mode: "email", Target: "not-an-address"},
		{Days: 30, Mode: "email", Target: "ops @example.com"},
		{Days: 30, Mode: "email", Target: "ops@example.com\n"},
		{Days: 30, Mode: "webhook", Target: "ftp://hooks.example"},
		{Days: 30, Mode: "webhook", Target: "hooks.example/x"},
		{Days: 30, Mode: "webhook", Target: "HTTPS://hooks.example/x"},
		{Days: 30, Mode: "webhook", Target: "Http://hooks.example/x"},
	}
	for _, req := range cases {
		_, err := f.d.Send(context.Background(), "c", req)
		require.ErrorIs(t, err, document.ErrValidation, "%+v", req)
	}
	assert.Nil(t, f.lines(t))

	_, err := f.d.Send(context.Background(), "c", Request{Days: 30, Mode: "WEBHOOK", Target: "https://hooks.example/x"})
	require.NoError(t, err)
}

func TestSend_DaysOutOfRange(t *testing.T) {
	f := newFixture(t, nil, Config{})
	_, err := f.d.Send(context.Background(), "c", Request{Days: 0})
	require.ErrorIs(t, err, document.ErrValidation)
}

func TestSend_RateLimitedBeforeValidation(t *testing.T) {
	clk := clocktest.Fixed()
	lim := ratelimit.NewMemory(clk)
	f := newFixture(t, lim, Config{Scope: ratelimit.Scope{Name: ratelimit.ScopeReminders, Limit: 2, Window: time.Minute}})
	f.create(t, "Passport", 1)

	for i := 0; i < 2; i++ {
		_, err := f.d.Send(context.Background(), "ip:10.0.0.1", Request{Days: 30})
		require.NoError(t, err)
	}
	_, err := f.d.Send(context.Background(), "ip:10.0.0.1", Request{Days: 30, Mode: "carrier-pigeon"})
	require.ErrorIs(t, err, document.ErrRateLimited)

	_, err = f.d.Send(context.Background(), "ip:10.0.0.2", Request{Days: 30})
	require.NoError(t, err)

	clk.Advance(time.Minute + time.Second)
	_, err = f.d.Send(context.Background(), "ip:10.0.0.1", Request{Days: 30})
	require.NoError(t, err)
}

type flakySink struct {
	sent   []string
	failAt int
}

func (s *flakySink) Send(_ context.Context, dest, msg string) (string, error) {
	if len(s.sent) == s.failAt {
		return "", fmt.Errorf("%w: smtp: 554 rejected", document.ErrSink)
	}
	s.sent = append(s.sent, msg)
	return "email:" + dest, nil
}

func (s *flakySink) Label(dest string) string { return dest }

func TestSend_SinkFailureAbortsBatch(t *testing.T) {
	f := newFixture(t, nil, Config{})
	for i := 1; i <= 4; i++ {
		f.create(t, fmt.Sprintf("doc-%d", i), i)
	}
	flaky := &flakySink{failAt: 2}
	d := NewDispatcher(f.svc, nil, flaky, sink.NewWebhook(f.outbox), Config{})

	before := testutil.ToFloat64(metrics.ReminderFailures.WithLabelValues("email"))
	res, err := d.Send(context.Background(), "c", Request{Days: 30})
	require.ErrorIs(t, err, document.ErrSink)
	assert.Nil(t, res)
	assert.Len(t, flaky.sent, 2, "no sends after the failing one")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ReminderFailures.WithLabelValues("email")))
}

type failingLister struct{}

func (failingLister) ListExpiring(context.Context, int) ([]*document.Document, error) {
	return nil, fmt.Errorf("listing: %w", document.ErrStorage)
}

func TestSend_StorageFailure(t *testing.T) {
	f := newFixture(t, nil, Config{})
	d := NewDispatcher(failingLister{}, nil, f.email, sink.NewWebhook(f.outbox), Config{})
	_, err := d.Send(context.Background(), "c", Request{Days: 30})
	require.ErrorIs(t, err, document.ErrStorage)
	assert.False(t, errors.Is(err, document.ErrSink))
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeEmail, "email": ModeEmail, "Email": ModeEmail, "WEBHOOK": ModeWebhook} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("sms")
	require.ErrorIs(t, err, document.ErrValidation)
}
