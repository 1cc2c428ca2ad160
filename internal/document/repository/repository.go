package repository

import (
	"context"

	"github.com/doctrack/doctrack/internal/document"
)

// TxManager runs a function inside one store transaction. Repository calls made
// with the context passed to fn participate in that transaction; calls made with
// any other context do not.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Repository is the persistence gateway for documents and their renewal history.
// Lookups of a missing document return an error wrapping document.ErrNotFound;
// store failures and unmappable rows wrap document.ErrStorage.
type Repository interface {
	TxManager

	Insert(ctx context.Context, doc *document.Document) error
	Get(ctx context.Context, id int64) (*document.Document, error)
	// List returns all documents by expiry date, then insertion order.
	List(ctx context.Context) ([]*document.Document, error)
	// ListDueBy returns documents with expiry_date <= cutoff, in List order.
	ListDueBy(ctx context.Context, cutoff document.Date) ([]*document.Document, error)
	Update(ctx context.Context, doc *document.Document) error
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) error
	Count(ctx context.Context) (int, error)

	AppendHistory(ctx context.Context, entry *document.HistoryEntry) error
	// ListHistory returns entries newest first.
	ListHistory(ctx context.Context, documentID int64) ([]*document.HistoryEntry, error)
	DeleteHistory(ctx context.Context, documentID int64) error
	DeleteAllHistory(ctx context.Context) error

	Ping(ctx context.Context) error
	Close() error
}
