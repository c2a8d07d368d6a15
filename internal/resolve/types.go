package resolve

import (
	"github.com/docufill/fieldcalc/internal/formula"
	"github.com/docufill/fieldcalc/internal/model"
)

// FieldReader is the narrow read surface the engine needs from a field
// store. The engine never mutates the store; writing results back is the
// caller's decision.
type FieldReader interface {
	// Value returns the current value for a field and whether one exists.
	Value(name string) (float64, bool)
}

// Group pairs a calculation group declaration with its parsed formula.
// Built once per schema by CompileGroups; immutable afterwards.
type Group struct {
	ID       string
	Target   string
	Formula  *formula.Formula
	Deps     []string
	Priority int

	declIndex int // position among the schema's declared groups, for tie-breaks
}

// Candidate is a single group's successfully computed value for a target
// field, before conflict resolution.
type Candidate struct {
	Value    float64
	GroupID  string
	Priority int

	declIndex int
}

// Result is the outcome of conflict resolution for one field.
type Result struct {
	Value      float64
	Confidence model.ConfidenceLevel
	// UsedGroupID names the group whose value won. Empty when candidates
	// disagreed and no single group can be credited.
	UsedGroupID string
}

// ReviewCandidates converts candidates into their persistable review form.
func ReviewCandidates(candidates []Candidate) []model.ReviewCandidate {
	if len(candidates) == 0 {
		return nil
	}
	out := make([]model.ReviewCandidate, len(candidates))
	for i, c := range candidates {
		out[i] = model.ReviewCandidate{GroupID: c.GroupID, Priority: c.Priority, Value: c.Value}
	}
	return out
}
