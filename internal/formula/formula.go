// Package formula parses and evaluates the small arithmetic language used by
// calculation groups. A formula has the shape "target = expr", where expr is
// built from field-name identifiers, numeric literals, the operators
// + - * /, and parentheses, with conventional precedence and left-to-right
// associativity. Parsing and evaluation are pure functions; a parsed Formula
// is immutable and safe to share across goroutines.
package formula

import "sort"

// Formula is a parsed calculation formula.
type Formula struct {
	// Target is the field the formula computes (the left-hand side).
	Target string
	// Expr is the right-hand side expression tree.
	Expr Expr

	text string
}

// String returns the original formula text.
func (f *Formula) String() string { return f.text }

// FieldRefs returns the distinct field names referenced by the expression,
// sorted for stable comparison. Used to cross-check a calculation group's
// declared dependent fields at schema-validation time.
func (f *Formula) FieldRefs() []string {
	set := make(map[string]struct{})
	collectRefs(f.Expr, set)
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func collectRefs(e Expr, set map[string]struct{}) {
	switch n := e.(type) {
	case *FieldRef:
		set[n.Name] = struct{}{}
	case *BinaryExpr:
		collectRefs(n.Left, set)
		collectRefs(n.Right, set)
	}
}
