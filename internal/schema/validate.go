package schema

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/docufill/fieldcalc/internal/formula"
)

// Validate checks that a schema is internally consistent, collecting every
// problem instead of stopping at the first. Errors make the schema unsafe
// to run (a formula that references a field it never declared would bypass
// dependency gating); warnings are merely suspicious, like a declared
// dependency the formula never uses.
func Validate(s *Schema) (warnings []string, err error) {
	var errs []string

	seenGroup := make(map[string]struct{}, len(s.Groups))
	for _, g := range s.Groups {
		if g.ID == "" {
			errs = append(errs, "group with empty id")
			continue
		}
		if _, dup := seenGroup[g.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate group id %q", g.ID))
		}
		seenGroup[g.ID] = struct{}{}

		f, perr := formula.Parse(g.Formula)
		if perr != nil {
			errs = append(errs, fmt.Sprintf("group %q: %v", g.ID, perr))
			continue
		}

		if s.registry.ByKey(f.Target) == nil {
			errs = append(errs, fmt.Sprintf("group %q targets undeclared field %q", g.ID, f.Target))
		}

		declared := make(map[string]struct{}, len(g.DependentFields))
		for _, dep := range g.DependentFields {
			declared[dep] = struct{}{}
			if s.registry.ByKey(dep) == nil {
				errs = append(errs, fmt.Sprintf("group %q depends on undeclared field %q", g.ID, dep))
			}
			if dep == f.Target {
				errs = append(errs, fmt.Sprintf("group %q: target %q listed as its own dependency", g.ID, f.Target))
			}
		}

		refs := f.FieldRefs()
		for _, ref := range refs {
			if ref == f.Target {
				errs = append(errs, fmt.Sprintf("group %q: formula references its own target %q", g.ID, f.Target))
				continue
			}
			if _, ok := declared[ref]; !ok {
				errs = append(errs, fmt.Sprintf("group %q: formula references %q which is not in dependent_fields", g.ID, ref))
			}
		}

		referenced := make(map[string]struct{}, len(refs))
		for _, ref := range refs {
			referenced[ref] = struct{}{}
		}
		for _, dep := range g.DependentFields {
			if _, ok := referenced[dep]; !ok && dep != f.Target {
				warnings = append(warnings, fmt.Sprintf("group %q declares dependency %q the formula never references", g.ID, dep))
			}
		}
	}

	if len(errs) > 0 {
		return warnings, eris.Errorf("schema %q: validation failed: %s", s.Name, strings.Join(errs, "; "))
	}
	return warnings, nil
}
