// Package outbox records every reminder handed to a sink as an append-only
// audit trail.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindEmail   Kind = "EMAIL"
	KindWebhook Kind = "WEBHOOK"
)

// Entry is one recorded reminder.
type Entry struct {
	Kind        Kind      `bson:"kind" json:"kind"`
	Destination string    `bson:"destination" json:"destination"`
	Message     string    `bson:"message" json:"message"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
}

// Line renders the entry in the log format, e.g.
// "[EMAIL] to=ops@example.com Document Passport expires 2024-01-25".
func (e Entry) Line() string {
	field := "to"
	if e.Kind == KindWebhook {
		field = "url"
	}
	return fmt.Sprintf("[%s] %s=%s %s", e.Kind, field, e.Destination, e.Message)
}

// Writer appends entries. Implementations must be safe for concurrent use.
type Writer interface {
	Append(ctx context.Context, e Entry) error
	// Location describes where entries end up, for operator-facing labels.
	Location() string
}

// Multi fans an entry out to every writer. The first writer is the primary:
// its Location is reported and all writers are attempted even if one fails.
type Multi []Writer

func (m Multi) Append(ctx context.Context, e Entry) error {
	var errs []error
	for _, w := range m {
		if err := w.Append(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Location() string {
	if len(m) == 0 {
		return ""
	}
	return m[0].Location()
}
