// Package resolve computes values for empty form fields from calculation
// groups. For a target field it evaluates every group whose dependencies are
// known, then resolves disagreements between the resulting candidates by
// group priority, reporting a confidence level that tells the caller whether
// the value is safe to auto-accept or needs human review.
package resolve

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/docufill/fieldcalc/internal/formula"
	"github.com/docufill/fieldcalc/internal/model"
)

// Engine evaluates calculation groups and resolves conflicts, one field at
// a time. It holds no per-session state: the same Engine can serve any
// number of sessions, concurrently, as long as each call gets a consistent
// view of its field store.
type Engine struct {
	policy Policy
}

// New creates an Engine with the given policy.
func New(policy Policy) *Engine {
	return &Engine{policy: policy}
}

// Policy returns the engine's resolution policy.
func (e *Engine) Policy() Policy { return e.policy }

// CompileGroups parses each declared group's formula. Groups whose formulas
// fail to parse are dropped with a warning and excluded from evaluation from
// then on; the rest of the schema stays usable.
func CompileGroups(groups []model.CalculationGroup) []Group {
	compiled := make([]Group, 0, len(groups))
	for i, g := range groups {
		f, err := formula.Parse(g.Formula)
		if err != nil {
			zap.L().Warn("resolve: unusable formula, group skipped",
				zap.String("group", g.ID),
				zap.String("formula", g.Formula),
				zap.Error(err),
			)
			continue
		}
		compiled = append(compiled, Group{
			ID:        g.ID,
			Target:    f.Target,
			Formula:   f,
			Deps:      g.DependentFields,
			Priority:  g.Priority,
			declIndex: i,
		})
	}
	return compiled
}

// EvaluateGroups produces one candidate per group that targets the field,
// has every declared dependent field present in the store, and evaluates
// cleanly. Division by zero and other arithmetic failures exclude the
// candidate without aborting the call. Candidates come back in stable
// order, priority ascending then declaration order, so Resolve tie-breaks
// are reproducible. The store is never mutated.
func (e *Engine) EvaluateGroups(target string, groups []Group, store FieldReader) []Candidate {
	applicable := make([]Group, 0, len(groups))
	for _, g := range groups {
		if g.Target == target {
			applicable = append(applicable, g)
		}
	}
	sort.SliceStable(applicable, func(i, j int) bool {
		if applicable[i].Priority != applicable[j].Priority {
			return applicable[i].Priority < applicable[j].Priority
		}
		return applicable[i].declIndex < applicable[j].declIndex
	})

	var candidates []Candidate
	for _, g := range applicable {
		if !depsSatisfied(g.Deps, store) {
			continue
		}
		v, err := g.Formula.Eval(store.Value)
		if err != nil {
			// Arithmetic failures exclude the candidate silently; the
			// trace is only interesting when debugging a schema.
			zap.L().Debug("resolve: candidate excluded",
				zap.String("field", target),
				zap.String("group", g.ID),
				zap.Error(err),
			)
			continue
		}
		candidates = append(candidates, Candidate{
			Value:     v,
			GroupID:   g.ID,
			Priority:  g.Priority,
			declIndex: g.declIndex,
		})
	}
	return candidates
}

func depsSatisfied(deps []string, store FieldReader) bool {
	for _, d := range deps {
		if _, ok := store.Value(d); !ok {
			return false
		}
	}
	return true
}

// Resolve picks the winning value from candidates and classifies its
// confidence. A nil result means no calculation was possible and the field
// stays unknown. With one candidate, or several that all agree within
// tolerance, confidence is high. When candidates disagree the lowest
// priority integer still supplies the value (first declared wins ties) but
// confidence drops to very low and no single group is credited.
// Deterministic: the same candidate list always yields the same result.
func (e *Engine) Resolve(candidates []Candidate) *Result {
	if len(candidates) == 0 {
		return nil
	}

	winner := candidates[0]
	for _, c := range candidates[1:] {
		if c.Priority < winner.Priority ||
			(c.Priority == winner.Priority && c.declIndex < winner.declIndex) {
			winner = c
		}
	}

	if len(candidates) == 1 {
		return &Result{
			Value:       winner.Value,
			Confidence:  model.ConfidenceHigh,
			UsedGroupID: winner.GroupID,
		}
	}

	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			if !e.agree(candidates[i].Value, candidates[j].Value) {
				return &Result{
					Value:      winner.Value,
					Confidence: model.ConfidenceVeryLow,
				}
			}
		}
	}

	return &Result{
		Value:       winner.Value,
		Confidence:  model.ConfidenceHigh,
		UsedGroupID: winner.GroupID,
	}
}

// ResolveField is the evaluate-then-resolve convenience used by sessions.
func (e *Engine) ResolveField(target string, groups []Group, store FieldReader) *Result {
	return e.Resolve(e.EvaluateGroups(target, groups, store))
}

// agree reports whether two candidate values count as the same number:
// within the absolute floor, or within the relative epsilon of the larger
// magnitude.
func (e *Engine) agree(a, b float64) bool {
	diff := math.Abs(a - b)
	if diff <= e.policy.AbsTolerance {
		return true
	}
	largest := math.Max(math.Abs(a), math.Abs(b))
	return diff <= largest*e.policy.Epsilon
}
