// Package session owns the form-filling workflow for one document: the
// field store, the per-field resolution states, and the auto-fill loop
// that keeps re-running the engine until no more fields can be computed.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docufill/fieldcalc/internal/model"
	"github.com/docufill/fieldcalc/internal/resolve"
	"github.com/docufill/fieldcalc/internal/schema"
)

// Session drives auto-fill for one document against one schema.
type Session struct {
	// DocID ties the session (and any review items it raises) back to the
	// intake document.
	DocID  string
	Schema *schema.Schema
	Store  *Store

	engine *resolve.Engine
	states map[string]model.FieldState
	review []model.ReviewItem
	now    func() time.Time
}

// New creates a session with an empty field store.
func New(docID string, sc *schema.Schema, eng *resolve.Engine) *Session {
	return &Session{
		DocID:  docID,
		Schema: sc,
		Store:  NewStore(),
		engine: eng,
		states: make(map[string]model.FieldState),
		now:    time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (s *Session) WithNow(fn func() time.Time) *Session {
	s.now = fn
	return s
}

// State reports where a field is in the resolution workflow. A field whose
// value is already in the store counts as resolved regardless of how it
// got there.
func (s *Session) State(field string) model.FieldState {
	if _, ok := s.Store.Value(field); ok {
		return model.FieldResolved
	}
	if st, ok := s.states[field]; ok {
		return st
	}
	return model.FieldUnresolved
}

// ReviewItems returns the review items raised by auto-fill, in the order
// they were raised.
func (s *Session) ReviewItems() []model.ReviewItem { return s.review }

// AutoFill computes every empty calculated field it can, re-running passes
// until a fixpoint: a value computed in one pass can satisfy another
// group's dependencies in the next. Fields whose candidates disagree are
// flagged for review and, under the default policy, left unwritten so a
// human decides. Unresolvable fields are retried each pass in case new
// values arrived; they are not retried across calls unless the store
// changed, since evaluation is deterministic.
func (s *Session) AutoFill(ctx context.Context) (*model.FillReport, error) {
	policy := s.engine.Policy()
	report := &model.FillReport{Fields: make(map[string]model.FieldOutcome)}
	targets := s.Schema.Targets()

	for pass := 1; pass <= policy.MaxPasses; pass++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Passes = pass
		progressed := false

		for _, target := range targets {
			if _, known := s.Store.Value(target); known {
				continue
			}
			if st := s.states[target]; st == model.FieldResolved {
				// Resolved earlier in this run but held back for review.
				continue
			}

			s.states[target] = model.FieldAttempting
			candidates := s.engine.EvaluateGroups(target, s.Schema.GroupsFor(target), s.Store)
			res := s.engine.Resolve(candidates)
			if res == nil {
				s.states[target] = model.FieldUnresolvable
				continue
			}

			s.states[target] = model.FieldResolved
			report.Fields[target] = model.FieldOutcome{
				State:       model.FieldResolved,
				Value:       res.Value,
				Confidence:  res.Confidence,
				UsedGroupID: res.UsedGroupID,
			}

			if res.Confidence.NeedsReview() {
				s.review = append(s.review, model.ReviewItem{
					ID:         uuid.New().String(),
					DocumentID: s.DocID,
					FieldKey:   target,
					Reason:     fmt.Sprintf("%d calculations disagree", len(candidates)),
					Candidates: resolve.ReviewCandidates(candidates),
					Status:     model.ReviewOpen,
					CreatedAt:  s.now().UTC(),
				})
				zap.L().Warn("session: conflicting calculations, field queued for review",
					zap.String("doc", s.DocID),
					zap.String("field", target),
					zap.Int("candidates", len(candidates)),
				)
			}

			writeBack := policy.WriteBack &&
				(!res.Confidence.NeedsReview() || policy.WriteBackVeryLow)
			if writeBack {
				s.Store.Set(model.FieldValue{
					FieldKey:    target,
					Value:       res.Value,
					Confidence:  res.Confidence,
					Source:      model.SourceCalculated,
					UsedGroupID: res.UsedGroupID,
					SetAt:       s.now().UTC(),
				})
				progressed = true
			}

			zap.L().Debug("session: field resolved",
				zap.String("doc", s.DocID),
				zap.String("field", target),
				zap.Float64("value", res.Value),
				zap.String("confidence", string(res.Confidence)),
				zap.Bool("written", writeBack),
			)
		}

		if !progressed {
			break
		}
	}

	for _, target := range targets {
		outcome, attempted := report.Fields[target]
		switch {
		case attempted && outcome.Confidence.NeedsReview():
			report.NeedsReview++
		case attempted:
			report.Resolved++
		case s.states[target] == model.FieldUnresolvable:
			report.Fields[target] = model.FieldOutcome{State: model.FieldUnresolvable}
			report.Unresolvable++
		}
	}

	return report, nil
}
