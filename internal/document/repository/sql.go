package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/doctrack/doctrack/internal/document"
)

const (
	documentsTable = "documents"
	historyTable   = "document_history"
)

var (
	documentColumns = []string{"id", "title", "doc_type", "expiry_date", "status", "created_at", "updated_at"}
	historyColumns  = []string{"id", "document_id", "old_expiry_date", "new_expiry_date", "updated_at"}
)

// Dialect selects the placeholder style of generated SQL.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// SQLStore implements Repository on database/sql. Dates and instants are
// stored as text (document.DateLayout / document.TimestampLayout), so the same
// queries serve SQLite and PostgreSQL.
type SQLStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// NewSQLStore wraps an open, migrated database. The store owns db from here on.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	var placeholder sq.PlaceholderFormat = sq.Question
	if dialect == DialectPostgres {
		placeholder = sq.Dollar
	}
	return &SQLStore{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(placeholder),
	}
}

type txKey struct{}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// RunInTx executes fn within a database transaction.
// On error from fn: rolls back and returns the error. On panic: rolls back and re-panics.
// A call made while ctx already carries a transaction joins it.
func (s *SQLStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w: %w", document.ErrStorage, err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w: %w", document.ErrStorage, err)
	}
	return nil
}

func (s *SQLStore) Insert(ctx context.Context, doc *document.Document) error {
	query, args, err := s.sb.Insert(documentsTable).
		Columns(documentColumns[1:]...).
		Values(doc.Title, doc.DocType, doc.ExpiryDate.String(), string(doc.Status), doc.CreatedAt.String(), doc.UpdatedAt.String()).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}
	if err := s.q(ctx).QueryRowContext(ctx, query, args...).Scan(&doc.ID); err != nil {
		return mapError(err, "inserting document")
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id int64) (*document.Document, error) {
	query, args, err := s.sb.Select(documentColumns...).
		From(documentsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}
	doc, err := scanDocument(s.q(ctx).QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("document %d", id))
	}
	return doc, nil
}

func (s *SQLStore) List(ctx context.Context) ([]*document.Document, error) {
	return s.listDocuments(ctx, s.sb.Select(documentColumns...).From(documentsTable))
}

func (s *SQLStore) ListDueBy(ctx context.Context, cutoff document.Date) ([]*document.Document, error) {
	return s.listDocuments(ctx, s.sb.Select(documentColumns...).
		From(documentsTable).
		Where(sq.LtOrEq{"expiry_date": cutoff.String()}))
}

func (s *SQLStore) listDocuments(ctx context.Context, b sq.SelectBuilder) ([]*document.Document, error) {
	query, args, err := b.OrderBy("expiry_date ASC", "id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "listing documents")
	}
	defer rows.Close()

	out := []*document.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, mapError(err, "listing documents")
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "listing documents")
	}
	return out, nil
}

func (s *SQLStore) Update(ctx context.Context, doc *document.Document) error {
	query, args, err := s.sb.Update(documentsTable).
		Set("title", doc.Title).
		Set("doc_type", doc.DocType).
		Set("expiry_date", doc.ExpiryDate.String()).
		Set("status", string(doc.Status)).
		Set("updated_at", doc.UpdatedAt.String()).
		Where(sq.Eq{"id": doc.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}
	return s.execOne(ctx, fmt.Sprintf("document %d", doc.ID), query, args)
}

func (s *SQLStore) Delete(ctx context.Context, id int64) error {
	query, args, err := s.sb.Delete(documentsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	return s.execOne(ctx, fmt.Sprintf("document %d", id), query, args)
}

func (s *SQLStore) DeleteAll(ctx context.Context) error {
	query, args, err := s.sb.Delete(documentsTable).ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	if _, err := s.q(ctx).ExecContext(ctx, query, args...); err != nil {
		return mapError(err, "deleting documents")
	}
	return nil
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	query, args, err := s.sb.Select("COUNT(*)").From(documentsTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count: %w", err)
	}
	var n int
	if err := s.q(ctx).QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, mapError(err, "counting documents")
	}
	return n, nil
}

func (s *SQLStore) AppendHistory(ctx context.Context, entry *document.HistoryEntry) error {
	query, args, err := s.sb.Insert(historyTable).
		Columns(historyColumns[1:]...).
		Values(entry.DocumentID, entry.OldExpiryDate.String(), entry.NewExpiryDate.String(), entry.UpdatedAt.String()).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}
	if err := s.q(ctx).QueryRowContext(ctx, query, args...).Scan(&entry.ID); err != nil {
		return mapError(err, fmt.Sprintf("appending history for document %d", entry.DocumentID))
	}
	return nil
}

func (s *SQLStore) ListHistory(ctx context.Context, documentID int64) ([]*document.HistoryEntry, error) {
	query, args, err := s.sb.Select(historyColumns...).
		From(historyTable).
		Where(sq.Eq{"document_id": documentID}).
		OrderBy("updated_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "listing history")
	}
	defer rows.Close()

	out := []*document.HistoryEntry{}
	for rows.Next() {
		entry, err := scanHistory(rows)
		if err != nil {
			return nil, mapError(err, "listing history")
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "listing history")
	}
	return out, nil
}

func (s *SQLStore) DeleteHistory(ctx context.Context, documentID int64) error {
	query, args, err := s.sb.Delete(historyTable).Where(sq.Eq{"document_id": documentID}).ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	if _, err := s.q(ctx).ExecContext(ctx, query, args...); err != nil {
		return mapError(err, fmt.Sprintf("deleting history for document %d", documentID))
	}
	return nil
}

func (s *SQLStore) DeleteAllHistory(ctx context.Context) error {
	query, args, err := s.sb.Delete(historyTable).ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	if _, err := s.q(ctx).ExecContext(ctx, query, args...); err != nil {
		return mapError(err, "deleting history")
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return mapError(err, "ping")
	}
	return nil
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) execOne(ctx context.Context, entity, query string, args []any) error {
	res, err := s.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err, entity)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err, entity)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", entity, document.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanDocument maps one documents row field by field.
func scanDocument(r rowScanner) (*document.Document, error) {
	var (
		doc                         document.Document
		expiry, status, created, up string
	)
	if err := r.Scan(&doc.ID, &doc.Title, &doc.DocType, &expiry, &status, &created, &up); err != nil {
		return nil, err
	}

	var err error
	if doc.ExpiryDate, err = document.ParseDate(expiry); err != nil {
		return nil, corruptRow("documents", doc.ID, "expiry_date", err)
	}
	if doc.CreatedAt, err = document.ParseTimestamp(created); err != nil {
		return nil, corruptRow("documents", doc.ID, "created_at", err)
	}
	if doc.UpdatedAt, err = document.ParseTimestamp(up); err != nil {
		return nil, corruptRow("documents", doc.ID, "updated_at", err)
	}
	doc.Status = document.Status(status)
	return &doc, nil
}

func scanHistory(r rowScanner) (*document.HistoryEntry, error) {
	var (
		entry                document.HistoryEntry
		oldExpiry, newExpiry string
		updated              string
	)
	if err := r.Scan(&entry.ID, &entry.DocumentID, &oldExpiry, &newExpiry, &updated); err != nil {
		return nil, err
	}

	var err error
	if entry.OldExpiryDate, err = document.ParseDate(oldExpiry); err != nil {
		return nil, corruptRow(historyTable, entry.ID, "old_expiry_date", err)
	}
	if entry.NewExpiryDate, err = document.ParseDate(newExpiry); err != nil {
		return nil, corruptRow(historyTable, entry.ID, "new_expiry_date", err)
	}
	if entry.UpdatedAt, err = document.ParseTimestamp(updated); err != nil {
		return nil, corruptRow(historyTable, entry.ID, "updated_at", err)
	}
	return &entry, nil
}

func corruptRow(table string, id int64, column string, err error) error {
	return fmt.Errorf("%w: %s row %d: column %s: %v", document.ErrStorage, table, id, column, err)
}

// mapError converts database/sql errors to document errors.
// context.DeadlineExceeded and context.Canceled pass through unmapped.
func mapError(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", entity, err)
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", entity, document.ErrNotFound)
	case errors.Is(err, document.ErrStorage):
		return fmt.Errorf("%s: %w", entity, err)
	}
	return fmt.Errorf("%s: %w: %w", entity, document.ErrStorage, err)
}
