package db

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:        "field_values",
		Columns:      []string{"document_id", "field_key", "value"},
		ConflictKeys: []string{"document_id", "field_key"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:        "field_values",
		ConflictKeys: []string{"document_id"},
	}, [][]any{{"doc-1", "total"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:   "field_values",
		Columns: []string{"document_id", "field_key"},
	}, [][]any{{"doc-1", "total"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_BeginError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(assert.AnError)

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "field_values",
		Columns:      []string{"document_id", "field_key", "value"},
		ConflictKeys: []string{"document_id", "field_key"},
	}, [][]any{{"doc-1", "total", 108.25}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"field_values", `"field_values"`},
		{"audit.field_values", `"audit"."field_values"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := sanitizeTable(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"document_id", "field_key", "value"})
	assert.Equal(t, `"document_id", "field_key", "value"`, result)
}
