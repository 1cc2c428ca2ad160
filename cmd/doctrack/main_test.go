package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doctrack/doctrack/internal/app"
	"github.com/doctrack/doctrack/internal/config"
	"github.com/doctrack/doctrack/internal/document"
	"github.com/doctrack/doctrack/internal/document/service"
	"github.com/doctrack/doctrack/internal/reminder"
	"github.com/doctrack/doctrack/pkg/logger"
)

// setupEnv points the CLI at a throwaway sqlite file and outbox.
func setupEnv(t *testing.T) (dbPath, outboxPath string) {
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "documents.db")
	outboxPath = filepath.Join(dir, "outbox.log")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_PATH", dbPath)
	t.Setenv("REMINDER_OUTBOX_PATH", outboxPath)
	t.Setenv("REMINDER_EMAIL", "ops@example.com")
	t.Setenv("SMTP_HOST", "")
	t.Setenv("MONGODB_URI", "")
	t.Setenv("MINIO_ENDPOINT", "")
	t.Setenv("LOG_LEVEL", "error")
	return dbPath, outboxPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrate_ThenCheck(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "migrate", "--check")
	require.Error(t, err, "fresh database has no schema version")

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "sqlite schema migrated\n", out)

	out, err = run(t, "migrate", "--check")
	require.NoError(t, err)
	assert.Equal(t, "sqlite schema is up to date\n", out)
}

func TestRemind_PrintsResultAndWritesOutbox(t *testing.T) {
	dbPath, outboxPath := setupEnv(t)

	store, err := app.OpenStore(context.Background(), config.DatabaseConfig{Driver: config.DriverSQLite, Path: dbPath})
	require.NoError(t, err)
	svc := service.New(store, nil)
	expiry := document.DateOf(time.Now().UTC()).AddDays(3)
	_, err = svc.Create(context.Background(), "Passport", "passport", expiry)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "Lease", "contract", expiry.AddDays(200))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err := run(t, "remind", "--days", "7")
	require.NoError(t, err)

	var res reminder.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, reminder.ModeEmail, res.Mode)
	assert.Equal(t, []string{"email:ops@example.com"}, res.Details)

	b, err := os.ReadFile(outboxPath)
	require.NoError(t, err)
	assert.Equal(t, "[EMAIL] to=ops@example.com Document Passport expires "+expiry.String()+"\n", string(b))
}

func TestRemind_StdoutStaysJSONWhenLoggingInfo(t *testing.T) {
	setupEnv(t)
	t.Setenv("LOG_LEVEL", "info")
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"remind", "--days", "7"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.True(t, json.Valid(stdout.Bytes()), "stdout: %q", stdout.String())
	assert.Contains(t, stderr.String(), "[INFO] dispatched 0 email reminders")
}

func TestRemind_IgnoresRateLimit(t *testing.T) {
	setupEnv(t)
	t.Setenv("RATE_LIMIT_REMINDERS", "1")

	for i := 0; i < 3; i++ {
		_, err := run(t, "remind", "--mode", "webhook")
		require.NoError(t, err)
	}
}

func TestRemind_RejectsBadInput(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "remind", "--mode", "carrier-pigeon")
	require.ErrorIs(t, err, document.ErrValidation)

	_, err = run(t, "remind", "--days", "0")
	require.ErrorIs(t, err, document.ErrValidation)

	_, err = run(t, "remind", "--mode", "webhook", "--target", "ftp://nope")
	require.ErrorIs(t, err, document.ErrValidation)
}

func TestOutboxArchive_RequiresMinIO(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "outbox", "archive")
	require.ErrorContains(t, err, "MINIO_ENDPOINT")
}
