package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/docufill/fieldcalc/internal/db"
	"github.com/docufill/fieldcalc/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// bulkUpsertThreshold is the batch size at which UpsertValues switches from
// row-at-a-time statements to a COPY-based temp-table upsert.
const bulkUpsertThreshold = 20

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_document":    `INSERT INTO documents (id, name, schema_name, source, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"update_doc_status":  `UPDATE documents SET status = $1, updated_at = $2 WHERE id = $3`,
	"save_report":        `UPDATE documents SET report = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"get_document":       `SELECT id, name, schema_name, source, status, report, created_at, updated_at FROM documents WHERE id = $1`,
	"upsert_field_value": `INSERT INTO field_values (document_id, field_key, value, confidence, source, used_group_id, set_at) VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (document_id, field_key) DO UPDATE SET value = $3, confidence = $4, source = $5, used_group_id = $6, set_at = $7`,
	"list_field_values":  `SELECT field_key, value, confidence, source, used_group_id, set_at FROM field_values WHERE document_id = $1 ORDER BY field_key`,
	"insert_review_item": `INSERT INTO review_queue (id, document_id, field_key, reason, candidates, note, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	"get_review_item":    `SELECT id, document_id, field_key, reason, candidates, note, status, created_at, resolved_at FROM review_queue WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name        TEXT NOT NULL,
	schema_name TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'received',
	report      JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS field_values (
	document_id   TEXT NOT NULL REFERENCES documents(id),
	field_key     TEXT NOT NULL,
	value         DOUBLE PRECISION NOT NULL,
	confidence    TEXT NOT NULL,
	source        TEXT NOT NULL,
	used_group_id TEXT NOT NULL DEFAULT '',
	set_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (document_id, field_key)
);

CREATE TABLE IF NOT EXISTS review_queue (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	document_id TEXT NOT NULL REFERENCES documents(id),
	field_key   TEXT NOT NULL,
	reason      TEXT NOT NULL,
	candidates  JSONB,
	note        TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'open',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	resolved_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_schema ON documents(schema_name);
CREATE INDEX IF NOT EXISTS idx_field_values_document ON field_values(document_id);
CREATE INDEX IF NOT EXISTS idx_review_queue_document ON review_queue(document_id);
CREATE INDEX IF NOT EXISTS idx_review_queue_status ON review_queue(status);
CREATE INDEX IF NOT EXISTS idx_review_queue_doc_status ON review_queue(document_id, status);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, name, schemaName, source string) (*model.Document, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, name, schema_name, source, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, name, schemaName, source, string(model.DocumentStatusReceived), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert document")
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

func (s *PostgresStore) UpdateDocumentStatus(ctx context.Context, docID string, status model.DocumentStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), docID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update document status %s", docID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "document %s", docID)
	}
	return nil
}

func (s *PostgresStore) SaveReport(ctx context.Context, docID string, report *model.FillReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET report = $1, status = $2, updated_at = $3 WHERE id = $4`,
		reportJSON, string(model.DocumentStatusFilled), time.Now().UTC(), docID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save report %s", docID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "document %s", docID)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, docID string) (*model.Document, error) {
	var d model.Document
	var reportNull *[]byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, name, schema_name, source, status, report, created_at, updated_at FROM documents WHERE id = $1`,
		docID,
	).Scan(&d.ID, &d.Name, &d.SchemaName, &d.Source, &d.Status, &reportNull, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "document %s", docID)
		}
		return nil, eris.Wrapf(err, "postgres: get document %s", docID)
	}

	if reportNull != nil {
		d.Report = &model.FillReport{}
		if err := json.Unmarshal(*reportNull, d.Report); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal report")
		}
	}
	return &d, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error) {
	query := `SELECT id, name, schema_name, source, status, report, created_at, updated_at FROM documents WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.SchemaName != "" {
		query += fmt.Sprintf(` AND schema_name = $%d`, argIdx)
		args = append(args, filter.SchemaName)
		argIdx++
	}
	if !filter.CreatedAfter.IsZero() {
		query += fmt.Sprintf(` AND created_at > $%d`, argIdx)
		args = append(args, filter.CreatedAfter)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list documents")
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var d model.Document
		var reportNull *[]byte

		if err := rows.Scan(&d.ID, &d.Name, &d.SchemaName, &d.Source, &d.Status, &reportNull, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		if reportNull != nil {
			d.Report = &model.FillReport{}
			if err := json.Unmarshal(*reportNull, d.Report); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal report")
			}
		}
		docs = append(docs, d)
	}
	return docs, eris.Wrap(rows.Err(), "postgres: list documents iterate")
}

func (s *PostgresStore) UpsertValue(ctx context.Context, docID string, fv model.FieldValue) error {
	setAt := fv.SetAt
	if setAt.IsZero() {
		setAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO field_values (document_id, field_key, value, confidence, source, used_group_id, set_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (document_id, field_key) DO UPDATE SET
		   value = $3, confidence = $4, source = $5, used_group_id = $6, set_at = $7`,
		docID, fv.FieldKey, fv.Value, string(fv.Confidence), string(fv.Source), fv.UsedGroupID, setAt,
	)
	return eris.Wrapf(err, "postgres: upsert value %s/%s", docID, fv.FieldKey)
}

// UpsertValues writes a batch of field values. Large batches (spreadsheet
// imports) go through a COPY-based temp-table upsert; small ones reuse the
// prepared single-row statement.
func (s *PostgresStore) UpsertValues(ctx context.Context, docID string, fvs []model.FieldValue) error {
	if len(fvs) == 0 {
		return nil
	}

	if len(fvs) < bulkUpsertThreshold {
		for _, fv := range fvs {
			if err := s.UpsertValue(ctx, docID, fv); err != nil {
				return err
			}
		}
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, len(fvs))
	for i, fv := range fvs {
		setAt := fv.SetAt
		if setAt.IsZero() {
			setAt = now
		}
		rows[i] = []any{docID, fv.FieldKey, fv.Value, string(fv.Confidence), string(fv.Source), fv.UsedGroupID, setAt}
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "field_values",
		Columns:      []string{"document_id", "field_key", "value", "confidence", "source", "used_group_id", "set_at"},
		ConflictKeys: []string{"document_id", "field_key"},
	}, rows)
	return eris.Wrapf(err, "postgres: bulk upsert values %s", docID)
}

func (s *PostgresStore) ListValues(ctx context.Context, docID string) ([]model.FieldValue, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT field_key, value, confidence, source, used_group_id, set_at FROM field_values WHERE document_id = $1 ORDER BY field_key`,
		docID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list values %s", docID)
	}
	defer rows.Close()

	var fvs []model.FieldValue
	for rows.Next() {
		var fv model.FieldValue
		if err := rows.Scan(&fv.FieldKey, &fv.Value, &fv.Confidence, &fv.Source, &fv.UsedGroupID, &fv.SetAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan value")
		}
		fvs = append(fvs, fv)
	}
	return fvs, eris.Wrap(rows.Err(), "postgres: list values iterate")
}

func (s *PostgresStore) AddReviewItem(ctx context.Context, item model.ReviewItem) error {
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
		return eris.Wrap(err, "postgres: marshal review candidates")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO review_queue (id, document_id, field_key, reason, candidates, note, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		item.ID, item.DocumentID, item.FieldKey, item.Reason, candidatesJSON, item.Note, string(item.Status), item.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert review item")
}

func (s *PostgresStore) GetReviewItem(ctx context.Context, id string) (*model.ReviewItem, error) {
	item, err := scanPostgresReviewItem(s.pool.QueryRow(ctx,
		`SELECT id, document_id, field_key, reason, candidates, note, status, created_at, resolved_at
		 FROM review_queue WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get review item %s", id)
	}
	return item, nil
}

func (s *PostgresStore) ListReviewItems(ctx context.Context, filter ReviewFilter) ([]model.ReviewItem, error) {
	query := `SELECT id, document_id, field_key, reason, candidates, note, status, created_at, resolved_at FROM review_queue WHERE true`
	args := []any{}
	argIdx := 1

	if filter.DocumentID != "" {
		query += fmt.Sprintf(` AND document_id = $%d`, argIdx)
		args = append(args, filter.DocumentID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list review items")
	}
	defer rows.Close()

	var items []model.ReviewItem
	for rows.Next() {
		item, err := scanPostgresReviewItem(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan review item")
		}
		items = append(items, *item)
	}
	return items, eris.Wrap(rows.Err(), "postgres: list review items iterate")
}

func (s *PostgresStore) SetReviewNote(ctx context.Context, id, note string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE review_queue SET note = $1 WHERE id = $2`,
		note, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set review note %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "review item %s", id)
	}
	return nil
}

func (s *PostgresStore) ResolveReviewItem(ctx context.Context, id string, status model.ReviewStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE review_queue SET status = $1, resolved_at = $2 WHERE id = $3 AND status = 'open'`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: resolve review item %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "open review item %s", id)
	}
	return nil
}

// pgxScannable matches both pgx.Row and pgx.Rows.
type pgxScannable interface {
	Scan(dest ...any) error
}

func scanPostgresReviewItem(row pgxScannable) (*model.ReviewItem, error) {
	var item model.ReviewItem
	var candidatesNull *[]byte
	var resolvedAt *time.Time

	err := row.Scan(&item.ID, &item.DocumentID, &item.FieldKey, &item.Reason, &candidatesNull, &item.Note, &item.Status, &item.CreatedAt, &resolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrap(ErrNotFound, "review item")
		}
		return nil, err
	}

	if candidatesNull != nil && len(*candidatesNull) > 0 {
		if err := json.Unmarshal(*candidatesNull, &item.Candidates); err != nil {
			return nil, eris.Wrap(err, "unmarshal review candidates")
		}
	}
	item.ResolvedAt = resolvedAt
	return &item, nil
}
