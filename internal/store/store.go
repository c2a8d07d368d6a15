// Package store persists documents, their field values, and the human
// review queue. Two implementations exist: SQLite for single-machine use
// and Postgres for shared deployments.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/docufill/fieldcalc/internal/model"
)

// ErrNotFound is returned when a requested document or review item does not
// exist (or, for ResolveReviewItem, is no longer open). Callers check it
// with errors.Is.
var ErrNotFound = eris.New("not found")

// DocumentFilter specifies criteria for listing documents.
type DocumentFilter struct {
	Status       model.DocumentStatus `json:"status,omitempty"`
	SchemaName   string               `json:"schema_name,omitempty"`
	CreatedAfter time.Time            `json:"created_after,omitempty"`
	Limit        int                  `json:"limit,omitempty"`
	Offset       int                  `json:"offset,omitempty"`
}

// ReviewFilter specifies criteria for listing review items.
type ReviewFilter struct {
	DocumentID string             `json:"document_id,omitempty"`
	Status     model.ReviewStatus `json:"status,omitempty"`
	Limit      int                `json:"limit,omitempty"`
}

// Store defines the persistence interface for the form-filling workflow.
type Store interface {
	// Documents
	CreateDocument(ctx context.Context, name, schemaName, source string) (*model.Document, error)
	UpdateDocumentStatus(ctx context.Context, docID string, status model.DocumentStatus) error
	SaveReport(ctx context.Context, docID string, report *model.FillReport) error
	GetDocument(ctx context.Context, docID string) (*model.Document, error)
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]model.Document, error)

	// Field values
	UpsertValue(ctx context.Context, docID string, fv model.FieldValue) error
	UpsertValues(ctx context.Context, docID string, fvs []model.FieldValue) error
	ListValues(ctx context.Context, docID string) ([]model.FieldValue, error)

	// Review queue
	AddReviewItem(ctx context.Context, item model.ReviewItem) error
	GetReviewItem(ctx context.Context, id string) (*model.ReviewItem, error)
	ListReviewItems(ctx context.Context, filter ReviewFilter) ([]model.ReviewItem, error)
	SetReviewNote(ctx context.Context, id, note string) error
	ResolveReviewItem(ctx context.Context, id string, status model.ReviewStatus) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
