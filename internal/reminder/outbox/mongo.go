package outbox

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoCollection = "reminder_outbox"

// Mongo stores entries in a MongoDB collection so the audit trail survives
// across hosts.
type Mongo struct {
	client *mongo.Client
	col    *mongo.Collection
}

// OpenMongo connects to uri and returns a writer on databaseName.reminder_outbox.
// If uri is empty the function returns nil, nil.
func OpenMongo(ctx context.Context, uri, databaseName string, timeout time.Duration) (*Mongo, error) {
	if uri == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Mongo{client: client, col: client.Database(databaseName).Collection(mongoCollection)}, nil
}

func (m *Mongo) Location() string {
	return "mongodb:" + m.col.Database().Name() + "." + m.col.Name()
}

func (m *Mongo) Append(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if _, err := m.col.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("save outbox entry: %w", err)
	}
	return nil
}

func (m *Mongo) Close(ctx context.Context) error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}
