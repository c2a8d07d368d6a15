package session

import (
	"sort"
	"time"

	"github.com/docufill/fieldcalc/internal/model"
)

// Store is the mutable field-name to value mapping for one form-filling
// session. It satisfies resolve.FieldReader. A field is either absent or
// holds exactly one value at a time. The store is single-owner: callers
// that share one across goroutines must serialize access themselves, and
// must not mutate it while an evaluation is reading it.
type Store struct {
	values map[string]model.FieldValue
}

// NewStore creates an empty field store.
func NewStore() *Store {
	return &Store{values: make(map[string]model.FieldValue)}
}

// Value returns the numeric value for a field and whether one exists.
// This is the read surface the resolution engine uses.
func (s *Store) Value(name string) (float64, bool) {
	fv, ok := s.values[name]
	return fv.Value, ok
}

// Get returns the full field value record.
func (s *Store) Get(name string) (model.FieldValue, bool) {
	fv, ok := s.values[name]
	return fv, ok
}

// Set stores a field value, replacing any existing one.
func (s *Store) Set(fv model.FieldValue) {
	s.values[fv.FieldKey] = fv
}

// SetValue stores a bare numeric value with its source, stamping the
// current time. Intake adapters use this for extracted and imported values.
func (s *Store) SetValue(key string, value float64, source model.ValueSource) {
	s.values[key] = model.FieldValue{
		FieldKey:   key,
		Value:      value,
		Confidence: model.ConfidenceHigh,
		Source:     source,
		SetAt:      time.Now().UTC(),
	}
}

// Delete removes a field's value, returning it to the unknown state.
func (s *Store) Delete(name string) {
	delete(s.values, name)
}

// Names returns the populated field names, sorted.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.values))
	for n := range s.values {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of populated fields.
func (s *Store) Len() int { return len(s.values) }

// Snapshot returns a copy of all field values, for persistence or display.
func (s *Store) Snapshot() map[string]model.FieldValue {
	out := make(map[string]model.FieldValue, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
