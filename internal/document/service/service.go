package service

import (
	"context"
	"fmt"

	"github.com/doctrack/doctrack/internal/clock"
	"github.com/doctrack/doctrack/internal/document"
	"github.com/doctrack/doctrack/internal/document/repository"
)

const (
	MinExpiringDays     = 1
	MaxExpiringDays     = 365
	DefaultExpiringDays = 30
)

// Service defines the document business operations used by the handler layer
// and the reminder dispatcher.
type Service interface {
	Create(ctx context.Context, title, docType string, expiry document.Date) (*document.Document, error)
	Get(ctx context.Context, id int64) (*document.Document, error)
	Renew(ctx context.Context, id int64, newExpiry document.Date) (*document.Document, error)
	Delete(ctx context.Context, id int64) (int, error)
	ClearAll(ctx context.Context) (int, error)
	History(ctx context.Context, id int64) ([]*document.HistoryEntry, error)

	ListAll(ctx context.Context) ([]*document.Document, error)
	ListExpiring(ctx context.Context, days int) ([]*document.Document, error)
	ListByState(ctx context.Context, state document.State) ([]*document.Document, error)

	// Today is the current calendar date (UTC) used for every derived-state decision.
	Today() document.Date
}

// DocumentService implements Service on a Repository.
type DocumentService struct {
	repo  repository.Repository
	clock clock.Clock
}

func New(repo repository.Repository, clk clock.Clock) *DocumentService {
	if clk == nil {
		clk = clock.Real{}
	}
	return &DocumentService{repo: repo, clock: clk}
}

func (s *DocumentService) Today() document.Date {
	return document.DateOf(s.clock.Now().UTC())
}

func (s *DocumentService) now() document.Timestamp {
	return document.NewTimestamp(s.clock.Now())
}

// Create stores a new active document. Field lengths are checked by the
// transport layer; only the expiry date presence is re-checked here.
func (s *DocumentService) Create(ctx context.Context, title, docType string, expiry document.Date) (*document.Document, error) {
	if expiry.IsZero() {
		return nil, fmt.Errorf("%w: expiry_date is required", document.ErrValidation)
	}
	ts := s.now()
	doc := &document.Document{
		Title:      title,
		DocType:    docType,
		ExpiryDate: expiry,
		Status:     document.StatusActive,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
	if err := s.repo.Insert(ctx, doc); err != nil {
		return nil, fmt.Errorf("creating document: %w", err)
	}
	return doc, nil
}

func (s *DocumentService) Get(ctx context.Context, id int64) (*document.Document, error) {
	return s.repo.Get(ctx, id)
}

// Renew moves a document's expiry date and appends one history entry in the
// same transaction. Any new date is accepted, including past ones.
func (s *DocumentService) Renew(ctx context.Context, id int64, newExpiry document.Date) (*document.Document, error) {
	if newExpiry.IsZero() {
		return nil, fmt.Errorf("%w: new_expiry_date is required", document.ErrValidation)
	}

	var renewed *document.Document
	err := s.repo.RunInTx(ctx, func(ctx context.Context) error {
		doc, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		old := doc.ExpiryDate
		ts := s.now()

		doc.ExpiryDate = newExpiry
		doc.Status = document.StatusActive
		doc.UpdatedAt = ts
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}
		if err := s.repo.AppendHistory(ctx, &document.HistoryEntry{
			DocumentID:    id,
			OldExpiryDate: old,
			NewExpiryDate: newExpiry,
			UpdatedAt:     ts,
		}); err != nil {
			return err
		}
		renewed = doc
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("renewing document %d: %w", id, err)
	}
	return renewed, nil
}

// Delete removes a document and its history. It is not idempotent: a second
// call for the same id fails with document.ErrNotFound.
func (s *DocumentService) Delete(ctx context.Context, id int64) (int, error) {
	err := s.repo.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.Get(ctx, id); err != nil {
			return err
		}
		if err := s.repo.DeleteHistory(ctx, id); err != nil {
			return err
		}
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		return 0, fmt.Errorf("deleting document %d: %w", id, err)
	}
	return 1, nil
}

// ClearAll removes every document and history entry and returns how many
// documents existed before the call.
func (s *DocumentService) ClearAll(ctx context.Context) (int, error) {
	var n int
	err := s.repo.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		if n, err = s.repo.Count(ctx); err != nil {
			return err
		}
		if err := s.repo.DeleteAllHistory(ctx); err != nil {
			return err
		}
		return s.repo.DeleteAll(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("clearing documents: %w", err)
	}
	return n, nil
}

// History returns the renewal trail of a document, most recent first.
func (s *DocumentService) History(ctx context.Context, id int64) ([]*document.HistoryEntry, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, id)
}

func (s *DocumentService) ListAll(ctx context.Context) ([]*document.Document, error) {
	return s.repo.List(ctx)
}

// ListExpiring returns documents due on or before today+days. Overdue
// documents always match.
func (s *DocumentService) ListExpiring(ctx context.Context, days int) ([]*document.Document, error) {
	if days < MinExpiringDays || days > MaxExpiringDays {
		return nil, fmt.Errorf("%w: days must be between %d and %d", document.ErrValidation, MinExpiringDays, MaxExpiringDays)
	}
	return s.repo.ListDueBy(ctx, s.Today().AddDays(days))
}

// ListByState filters ListAll by the derived expiry state.
func (s *DocumentService) ListByState(ctx context.Context, state document.State) ([]*document.Document, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	today := s.Today()
	out := make([]*document.Document, 0, len(all))
	for _, d := range all {
		if document.StateOf(d.ExpiryDate, today) == state {
			out = append(out, d)
		}
	}
	return out, nil
}
