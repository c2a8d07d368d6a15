// Package schema loads form schemas: the field definitions and calculation
// groups, declared in a JSON hints file, that drive intake matching and
// auto-fill for one form type.
package schema

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/docufill/fieldcalc/internal/model"
	"github.com/docufill/fieldcalc/internal/resolve"
)

// Schema declares the fields of a form and the calculation groups that can
// derive them. Loaded once, immutable afterwards.
type Schema struct {
	Name   string                   `json:"name"`
	Fields []model.FieldDef         `json:"fields"`
	Groups []model.CalculationGroup `json:"groups,omitempty"`

	registry *model.FieldRegistry
	compiled []resolve.Group
	byTarget map[string][]resolve.Group
}

// Load reads a schema from a JSON hints file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: read %s", path)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: load %s", path)
	}
	return s, nil
}

// Parse decodes a schema from JSON and builds its lookup indexes. Groups
// whose formulas do not parse are excluded from evaluation (with a warning)
// rather than failing the load; run Validate for the strict report.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, eris.Wrap(err, "schema: parse json")
	}
	if err := s.index(); err != nil {
		return nil, err
	}
	return &s, nil
}

// New builds a schema from already-decoded definitions, e.g. a registry sync.
func New(name string, fields []model.FieldDef, groups []model.CalculationGroup) (*Schema, error) {
	s := Schema{Name: name, Fields: fields, Groups: groups}
	if err := s.index(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Schema) index() error {
	if s.Name == "" {
		return eris.New("schema: missing name")
	}
	if len(s.Fields) == 0 {
		return eris.New("schema: no fields declared")
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if f.Key == "" {
			return eris.New("schema: field with empty key")
		}
		if _, dup := seen[f.Key]; dup {
			return eris.Errorf("schema: duplicate field key %q", f.Key)
		}
		seen[f.Key] = struct{}{}
	}

	s.registry = model.NewFieldRegistry(s.Fields)
	s.compiled = resolve.CompileGroups(s.Groups)
	s.byTarget = make(map[string][]resolve.Group)
	for _, g := range s.compiled {
		s.byTarget[g.Target] = append(s.byTarget[g.Target], g)
	}
	return nil
}

// Registry returns the indexed field definitions.
func (s *Schema) Registry() *model.FieldRegistry { return s.registry }

// CompiledGroups returns every group that parsed cleanly.
func (s *Schema) CompiledGroups() []resolve.Group { return s.compiled }

// GroupsFor returns the compiled groups targeting the given field.
func (s *Schema) GroupsFor(target string) []resolve.Group { return s.byTarget[target] }

// Targets returns the distinct calculated fields, sorted, so auto-fill
// passes walk fields in a reproducible order.
func (s *Schema) Targets() []string {
	targets := make([]string, 0, len(s.byTarget))
	for t := range s.byTarget {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}
