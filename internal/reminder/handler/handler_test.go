package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doctrack/doctrack/internal/clock/clocktest"
	"github.com/doctrack/doctrack/internal/document/repository"
	"github.com/doctrack/doctrack/internal/document/service"
	"github.com/doctrack/doctrack/internal/ratelimit"
	"github.com/doctrack/doctrack/internal/reminder"
	"github.com/doctrack/doctrack/internal/reminder/outbox"
	"github.com/doctrack/doctrack/internal/reminder/sink"
)

func init() { gin.SetMode(gin.TestMode) }

func newRouter(t *testing.T, limit int) (*gin.Engine, *service.DocumentService, *outbox.File) {
	t.Helper()
	clk := clocktest.Fixed()
	ob, err := outbox.NewFile(filepath.Join(t.TempDir(), "outbox.log"))
	require.NoError(t, err)
	svc := service.New(repository.NewMemoryRepo(), clk)
	d := reminder.NewDispatcher(svc, ratelimit.NewMemory(clk),
		sink.NewEmail(sink.SMTPConfig{}, ob), sink.NewWebhook(ob),
		reminder.Config{Scope: ratelimit.Scope{Name: ratelimit.ScopeReminders, Limit: limit, Window: 45 * time.Second}})

	g := gin.New()
	RegisterReminderRoutes(g, d)
	return g, svc, ob
}

func post(g *gin.Engine, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest(http.MethodPost, url, nil))
	return w
}

func TestSendReminders_Email(t *testing.T) {
	g, svc, ob := newRouter(t, 5)
	_, err := svc.Create(context.Background(), "Passport", "passport", svc.Today().AddDays(10))
	require.NoError(t, err)

	w := post(g, "/reminders/send")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res reminder.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, reminder.ModeEmail, res.Mode)
	assert.Equal(t, "test@example.com ("+ob.Location()+")", res.Target)
	assert.Equal(t, []string{"email:test@example.com"}, res.Details)
}

func TestSendReminders_WebhookWithTarget(t *testing.T) {
	g, svc, _ := newRouter(t, 5)
	_, err := svc.Create(context.Background(), "Visa", "visa", svc.Today())
	require.NoError(t, err)

	w := post(g, "/reminders/send?days=1&mode=webhook&target=https://hooks.example/x")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"sent":1,"mode":"webhook","target":"https://hooks.example/x","details":["webhook:https://hooks.example/x"]}`, w.Body.String())
}

func TestSendReminders_Errors(t *testing.T) {
	g, _, _ := newRouter(t, 100)

	cases := map[string]int{
		"/reminders/send?mode=carrier-pigeon":              http.StatusBadRequest,
		"/reminders/send?mode=email&target=nobody":         http.StatusBadRequest,
		"/reminders/send?mode=webhook&target=ftp://x":      http.StatusBadRequest,
		"/reminders/send?days=0":                           http.StatusUnprocessableEntity,
		"/reminders/send?days=366":                         http.StatusUnprocessableEntity,
		"/reminders/send?days=many":                        http.StatusUnprocessableEntity,
		"/reminders/send?days=365&mode=Email&target=a@b.c": http.StatusOK,
	}
	for url, want := range cases {
		w := post(g, url)
		assert.Equal(t, want, w.Code, "%s: %s", url, w.Body.String())
	}
}

func TestSendReminders_RateLimited(t *testing.T) {
	g, _, _ := newRouter(t, 2)

	require.Equal(t, http.StatusOK, post(g, "/reminders/send").Code)
	require.Equal(t, http.StatusOK, post(g, "/reminders/send").Code)

	w := post(g, "/reminders/send")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "45", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"detail":"Rate limit exceeded"}`, w.Body.String())
}
