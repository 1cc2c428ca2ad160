package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/doctrack/doctrack/internal/document"
)

// MemoryRepo is an in-memory Repository used for unit tests and ephemeral runs.
// RunInTx holds the lock for the whole callback and restores a snapshot when
// the callback fails, giving the same all-or-nothing behavior as SQLStore.
type MemoryRepo struct {
	mu            sync.Mutex
	nextID        int64
	nextHistoryID int64
	docs          map[int64]document.Document
	history       []document.HistoryEntry
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{docs: make(map[int64]document.Document)}
}

type memTxKey struct{}

func inMemTx(ctx context.Context) bool {
	_, ok := ctx.Value(memTxKey{}).(bool)
	return ok
}

// lock acquires the store lock unless ctx is already inside RunInTx.
func (m *MemoryRepo) lock(ctx context.Context) func() {
	if inMemTx(ctx) {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *MemoryRepo) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inMemTx(ctx) {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docs := make(map[int64]document.Document, len(m.docs))
	for id, d := range m.docs {
		docs[id] = d
	}
	history := slices.Clone(m.history)
	nextID, nextHistoryID := m.nextID, m.nextHistoryID

	restore := func() {
		m.docs, m.history = docs, history
		m.nextID, m.nextHistoryID = nextID, nextHistoryID
	}
	defer func() {
		if r := recover(); r != nil {
			restore()
			panic(r)
		}
	}()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		restore()
		return err
	}
	return nil
}

func (m *MemoryRepo) Insert(ctx context.Context, doc *document.Document) error {
	defer m.lock(ctx)()
	m.nextID++
	doc.ID = m.nextID
	m.docs[doc.ID] = *doc
	return nil
}

func (m *MemoryRepo) Get(ctx context.Context, id int64) (*document.Document, error) {
	defer m.lock(ctx)()
	d, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %d: %w", id, document.ErrNotFound)
	}
	return &d, nil
}

func (m *MemoryRepo) List(ctx context.Context) ([]*document.Document, error) {
	defer m.lock(ctx)()
	return m.sorted(func(document.Document) bool { return true }), nil
}

func (m *MemoryRepo) ListDueBy(ctx context.Context, cutoff document.Date) ([]*document.Document, error) {
	defer m.lock(ctx)()
	return m.sorted(func(d document.Document) bool { return !d.ExpiryDate.After(cutoff) }), nil
}

func (m *MemoryRepo) sorted(keep func(document.Document) bool) []*document.Document {
	out := make([]*document.Document, 0, len(m.docs))
	for _, d := range m.docs {
		if keep(d) {
			d := d
			out = append(out, &d)
		}
	}
	slices.SortFunc(out, func(a, b *document.Document) int {
		if c := a.ExpiryDate.Compare(b.ExpiryDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (m *MemoryRepo) Update(ctx context.Context, doc *document.Document) error {
	defer m.lock(ctx)()
	current, ok := m.docs[doc.ID]
	if !ok {
		return fmt.Errorf("document %d: %w", doc.ID, document.ErrNotFound)
	}
	updated := *doc
	updated.CreatedAt = current.CreatedAt
	m.docs[doc.ID] = updated
	return nil
}

func (m *MemoryRepo) Delete(ctx context.Context, id int64) error {
	defer m.lock(ctx)()
	if _, ok := m.docs[id]; !ok {
		return fmt.Errorf("document %d: %w", id, document.ErrNotFound)
	}
	for _, h := range m.history {
		if h.DocumentID == id {
			return fmt.Errorf("document %d: %w: history rows still reference it", id, document.ErrStorage)
		}
	}
	delete(m.docs, id)
	return nil
}

func (m *MemoryRepo) DeleteAll(ctx context.Context) error {
	defer m.lock(ctx)()
	if len(m.history) > 0 {
		return fmt.Errorf("deleting documents: %w: history rows still reference them", document.ErrStorage)
	}
	m.docs = make(map[int64]document.Document)
	return nil
}

func (m *MemoryRepo) Count(ctx context.Context) (int, error) {
	defer m.lock(ctx)()
	return len(m.docs), nil
}

func (m *MemoryRepo) AppendHistory(ctx context.Context, entry *document.HistoryEntry) error {
	defer m.lock(ctx)()
	if _, ok := m.docs[entry.DocumentID]; !ok {
		return fmt.Errorf("appending history for document %d: %w", entry.DocumentID, document.ErrNotFound)
	}
	m.nextHistoryID++
	entry.ID = m.nextHistoryID
	m.history = append(m.history, *entry)
	return nil
}

func (m *MemoryRepo) ListHistory(ctx context.Context, documentID int64) ([]*document.HistoryEntry, error) {
	defer m.lock(ctx)()
	out := []*document.HistoryEntry{}
	for _, h := range m.history {
		if h.DocumentID == documentID {
			h := h
			out = append(out, &h)
		}
	}
	slices.SortFunc(out, func(a, b *document.HistoryEntry) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt.Time); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (m *MemoryRepo) DeleteHistory(ctx context.Context, documentID int64) error {
	defer m.lock(ctx)()
	m.history = slices.DeleteFunc(m.history, func(h document.HistoryEntry) bool {
		return h.DocumentID == documentID
	})
	return nil
}

func (m *MemoryRepo) DeleteAllHistory(ctx context.Context) error {
	defer m.lock(ctx)()
	m.history = nil
	return nil
}

func (m *MemoryRepo) Ping(context.Context) error { return nil }

func (m *MemoryRepo) Close() error { return nil }
