package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/docufill/fieldcalc/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	schema_name TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'received',
	report      TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS field_values (
	document_id   TEXT NOT NULL REFERENCES documents(id),
	field_key     TEXT NOT NULL,
	value         REAL NOT NULL,
	confidence    TEXT NOT NULL,
	source        TEXT NOT NULL,
	used_group_id TEXT NOT NULL DEFAULT '',
	set_at        DATETIME NOT NULL,
	PRIMARY KEY (document_id, field_key)
);

CREATE TABLE IF NOT EXISTS review_queue (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id),
	field_key   TEXT NOT NULL,
	reason      TEXT NOT NULL,
	candidates  TEXT,
	note        TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'open',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	resolved_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_schema ON documents(schema_name);
CREATE INDEX IF NOT EXISTS idx_field_values_document ON field_values(document_id);
CREATE INDEX IF NOT EXISTS idx_review_queue_document ON review_queue(document_id);
CREATE INDEX IF NOT EXISTS idx_review_queue_status ON review_queue(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateDocument(ctx context.Context, name, schemaName, source string) (*model.Document, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, name, schema_name, source, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, name, schemaName, source, string(model.DocumentStatusReceived), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert document")
	}

	return &model.Document{
		ID:         id,
		Name:       name,
		SchemaName: schemaName,
		Source:     source,
		Status:     model.DocumentStatusReceived,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (s *SQLiteStore) UpdateDocumentStatus(ctx context.Context, docID string, status model.DocumentStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), docID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update document status %s", docID)
	}
	return checkRowsAffected(res, "document", docID)
}

func (s *SQLiteStore) SaveReport(ctx context.Context, docID string, report *model.FillReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET report = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(reportJSON), string(model.DocumentStatusFilled), time.Now().UTC(), docID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save report %s", docID)
	}
	return checkRowsAffected(res, "document", docID)
}

func (s *SQLiteStore) GetDocument(ctx context.Context, docID string) (*model.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, schema_name, source, status, report, created_at, updated_at FROM documents WHERE id = ?`,
		docID,
	)
	return scanDocument(row)
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error) {
	query := `SELECT id, name, schema_name, source, status, report, created_at, updated_at FROM documents WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.SchemaName != "" {
		query += ` AND schema_name = ?`
		args = append(args, filter.SchemaName)
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at > ?`
		args = append(args, filter.CreatedAfter)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list documents")
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, eris.Wrap(rows.Err(), "sqlite: list documents iterate")
}

func (s *SQLiteStore) UpsertValue(ctx context.Context, docID string, fv model.FieldValue) error {
	setAt := fv.SetAt
	if setAt.IsZero() {
		setAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO field_values (document_id, field_key, value, confidence, source, used_group_id, set_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (document_id, field_key) DO UPDATE SET
		   value = excluded.value, confidence = excluded.confidence,
		   source = excluded.source, used_group_id = excluded.used_group_id, set_at = excluded.set_at`,
		docID, fv.FieldKey, fv.Value, string(fv.Confidence), string(fv.Source), fv.UsedGroupID, setAt,
	)
	return eris.Wrapf(err, "sqlite: upsert value %s/%s", docID, fv.FieldKey)
}

func (s *SQLiteStore) UpsertValues(ctx context.Context, docID string, fvs []model.FieldValue) error {
	if len(fvs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin upsert values")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO field_values (document_id, field_key, value, confidence, source, used_group_id, set_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (document_id, field_key) DO UPDATE SET
		   value = excluded.value, confidence = excluded.confidence,
		   source = excluded.source, used_group_id = excluded.used_group_id, set_at = excluded.set_at`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare upsert values")
	}
	defer stmt.Close()

	for _, fv := range fvs {
		setAt := fv.SetAt
		if setAt.IsZero() {
			setAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, docID, fv.FieldKey, fv.Value, string(fv.Confidence), string(fv.Source), fv.UsedGroupID, setAt); err != nil {
			return eris.Wrapf(err, "sqlite: upsert value %s/%s", docID, fv.FieldKey)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit upsert values")
}

func (s *SQLiteStore) ListValues(ctx context.Context, docID string) ([]model.FieldValue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT field_key, value, confidence, source, used_group_id, set_at FROM field_values WHERE document_id = ? ORDER BY field_key`,
		docID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list values %s", docID)
	}
	defer rows.Close()

	var fvs []model.FieldValue
	for rows.Next() {
		var fv model.FieldValue
		if err := rows.Scan(&fv.FieldKey, &fv.Value, &fv.Confidence, &fv.Source, &fv.UsedGroupID, &fv.SetAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan value")
		}
		fvs = append(fvs, fv)
	}
	return fvs, eris.Wrap(rows.Err(), "sqlite: list values iterate")
}

func (s *SQLiteStore) AddReviewItem(ctx context.Context, item model.ReviewItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if item.Status == "" {
		item.Status = model.ReviewOpen
	}

	candidatesJSON, err := json.Marshal(item.Candidates)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal review candidates")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO review_queue (id, document_id, field_key, reason, candidates, note, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.DocumentID, item.FieldKey, item.Reason, string(candidatesJSON), item.Note, string(item.Status), item.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert review item")
}

func (s *SQLiteStore) GetReviewItem(ctx context.Context, id string) (*model.ReviewItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, field_key, reason, candidates, note, status, created_at, resolved_at
		 FROM review_queue WHERE id = ?`,
		id,
	)
	return scanReviewItem(row)
}

func (s *SQLiteStore) ListReviewItems(ctx context.Context, filter ReviewFilter) ([]model.ReviewItem, error) {
	query := `SELECT id, document_id, field_key, reason, candidates, note, status, created_at, resolved_at FROM review_queue WHERE 1=1`
	var args []any

	if filter.DocumentID != "" {
		query += ` AND document_id = ?`
		args = append(args, filter.DocumentID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list review items")
	}
	defer rows.Close()

	var items []model.ReviewItem
	for rows.Next() {
		item, err := scanReviewItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: list review items iterate")
}

func (s *SQLiteStore) SetReviewNote(ctx context.Context, id, note string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE review_queue SET note = ? WHERE id = ?`,
		note, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set review note %s", id)
	}
	return checkRowsAffected(res, "review_item", id)
}

func (s *SQLiteStore) ResolveReviewItem(ctx context.Context, id string, status model.ReviewStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE review_queue SET status = ?, resolved_at = ? WHERE id = ? AND status = 'open'`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: resolve review item %s", id)
	}
	return checkRowsAffected(res, "open review_item", id)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDocument(row scannable) (*model.Document, error) {
	var d model.Document
	var reportJSON sql.NullString

	err := row.Scan(&d.ID, &d.Name, &d.SchemaName, &d.Source, &d.Status, &reportJSON, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "document")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan document")
	}

	if reportJSON.Valid {
		d.Report = &model.FillReport{}
		if err := json.Unmarshal([]byte(reportJSON.String), d.Report); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal report")
		}
	}
	return &d, nil
}

func scanReviewItem(row scannable) (*model.ReviewItem, error) {
	var item model.ReviewItem
	var candidatesJSON sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(&item.ID, &item.DocumentID, &item.FieldKey, &item.Reason, &candidatesJSON, &item.Note, &item.Status, &item.CreatedAt, &resolvedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "review item")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan review item")
	}

	if candidatesJSON.Valid && candidatesJSON.String != "" && candidatesJSON.String != "null" {
		if err := json.Unmarshal([]byte(candidatesJSON.String), &item.Candidates); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal review candidates")
		}
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		item.ResolvedAt = &t
	}
	return &item, nil
}
