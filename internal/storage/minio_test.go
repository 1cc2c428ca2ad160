package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doctrack/doctrack/internal/config"
)

func TestArchiveKey(t *testing.T) {
	at := time.Date(2024, 1, 15, 10, 30, 5, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, "outbox/20240115T093005Z-outbox.log", ArchiveKey("/var/lib/doctrack/outbox.log", at))
}

func TestNewMinIOStorage_RequiresEndpoint(t *testing.T) {
	_, err := NewMinIOStorage(context.Background(), config.MinIOConfig{Bucket: "b"})
	require.Error(t, err)
}
