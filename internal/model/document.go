package model

import "time"

// DocumentStatus represents the processing state of an intake document.
type DocumentStatus string

const (
	DocumentStatusReceived   DocumentStatus = "received"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusFilled     DocumentStatus = "filled"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document represents one intake document (a scanned form, a spreadsheet,
// or a raw value dump) and the form-filling session attached to it.
type Document struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	SchemaName string         `json:"schema_name"`
	Source     string         `json:"source,omitempty"`
	Status     DocumentStatus `json:"status"`
	Report     *FillReport    `json:"report,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// ValueSource identifies where a field value came from.
type ValueSource string

const (
	SourceExtracted  ValueSource = "extracted"  // matched from document text
	SourceImported   ValueSource = "imported"   // spreadsheet/CSV import
	SourceCalculated ValueSource = "calculated" // derived by a calculation group
	SourceManual     ValueSource = "manual"     // entered or accepted by a reviewer
)

// FieldValue is one field's current value within a document session.
type FieldValue struct {
	FieldKey    string          `json:"field_key"`
	Value       float64         `json:"value"`
	Confidence  ConfidenceLevel `json:"confidence"`
	Source      ValueSource     `json:"source"`
	UsedGroupID string          `json:"used_group_id,omitempty"`
	SetAt       time.Time       `json:"set_at"`
}

// FieldState tracks where a field is in the resolution workflow.
// Unresolvable is not sticky: a later pass with more values retries the field.
type FieldState string

const (
	FieldUnresolved   FieldState = "unresolved"
	FieldAttempting   FieldState = "attempting"
	FieldResolved     FieldState = "resolved"
	FieldUnresolvable FieldState = "unresolvable"
)

// FieldOutcome records how a single field fared during auto-fill.
type FieldOutcome struct {
	State       FieldState      `json:"state"`
	Value       float64         `json:"value,omitempty"`
	Confidence  ConfidenceLevel `json:"confidence,omitempty"`
	UsedGroupID string          `json:"used_group_id,omitempty"`
}

// FillReport summarizes an auto-fill run over a document session.
type FillReport struct {
	Resolved     int                     `json:"resolved"`
	Unresolvable int                     `json:"unresolvable"`
	NeedsReview  int                     `json:"needs_review"`
	Passes       int                     `json:"passes"`
	Unmatched    []string                `json:"unmatched,omitempty"` // intake lines no field claimed
	Fields       map[string]FieldOutcome `json:"fields,omitempty"`
}

// ReviewStatus is the workflow state of a review item.
type ReviewStatus string

const (
	ReviewOpen     ReviewStatus = "open"
	ReviewAccepted ReviewStatus = "accepted"
	ReviewRejected ReviewStatus = "rejected"
)

// ReviewCandidate preserves one disagreeing calculation for the reviewer.
type ReviewCandidate struct {
	GroupID  string  `json:"group_id"`
	Priority int     `json:"priority"`
	Value    float64 `json:"value"`
}

// ReviewItem is a field flagged for human review, usually because
// alternative calculations disagreed on its value.
type ReviewItem struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	FieldKey   string            `json:"field_key"`
	Reason     string            `json:"reason"`
	Candidates []ReviewCandidate `json:"candidates,omitempty"`
	Note       string            `json:"note,omitempty"` // optional assistant-drafted summary
	Status     ReviewStatus      `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	ResolvedAt *time.Time        `json:"resolved_at,omitempty"`
}
