package model

import "strings"

// FieldDef declares one numeric form field in a schema.
type FieldDef struct {
	Key      string   `json:"key"`
	Label    string   `json:"label,omitempty"`
	Keywords []string `json:"keywords,omitempty"` // intake matching hints
	Required bool     `json:"required,omitempty"`
}

// FieldRegistry is an indexed collection of field definitions.
type FieldRegistry struct {
	Fields   []FieldDef
	byKey    map[string]*FieldDef
	required []*FieldDef
}

// NewFieldRegistry creates a FieldRegistry with indexed lookups.
// Keywords are lowercased at load so intake matching is case-insensitive.
func NewFieldRegistry(fields []FieldDef) *FieldRegistry {
	r := &FieldRegistry{
		Fields: fields,
		byKey:  make(map[string]*FieldDef, len(fields)),
	}
	for i := range r.Fields {
		f := &r.Fields[i]
		for j, kw := range f.Keywords {
			f.Keywords[j] = strings.ToLower(strings.TrimSpace(kw))
		}
		r.byKey[f.Key] = f
		if f.Required {
			r.required = append(r.required, f)
		}
	}
	return r
}

// ByKey returns the field definition for the given key, or nil if not found.
func (r *FieldRegistry) ByKey(key string) *FieldDef {
	return r.byKey[key]
}

// Required returns all required field definitions.
func (r *FieldRegistry) Required() []*FieldDef {
	return r.required
}
