// Package pipeline runs the fill workflow for one document end to end:
// create the document record, extract values from the source, auto-fill
// the calculated fields, draft review notes, and persist the results.
// Both the CLI and the HTTP API drive it.
package pipeline

import (
	"context"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/docufill/fieldcalc/internal/assist"
	"github.com/docufill/fieldcalc/internal/intake"
	"github.com/docufill/fieldcalc/internal/model"
	"github.com/docufill/fieldcalc/internal/resolve"
	"github.com/docufill/fieldcalc/internal/schema"
	"github.com/docufill/fieldcalc/internal/session"
	"github.com/docufill/fieldcalc/internal/store"
)

// Pipeline orchestrates intake, auto-fill, review assist, and persistence.
type Pipeline struct {
	schema *schema.Schema
	engine *resolve.Engine
	intake *intake.Intake
	store  store.Store
	assist *assist.Assist
}

// New creates a Pipeline. The assist argument may be nil; review notes and
// match suggestions are then skipped.
func New(sc *schema.Schema, eng *resolve.Engine, in *intake.Intake, st store.Store, as *assist.Assist) *Pipeline {
	return &Pipeline{
		schema: sc,
		engine: eng,
		intake: in,
		store:  st,
		assist: as,
	}
}

// Request describes one document to fill. Source, Text, and Values may be
// combined; they are applied in that order, so an explicit value overrides
// anything extracted for the same field.
type Request struct {
	Name   string             `json:"name,omitempty"`
	Source string             `json:"source,omitempty"` // file path or http(s)/ftp URL
	Text   string             `json:"text,omitempty"`   // already-extracted document text
	Values map[string]float64 `json:"values,omitempty"` // directly supplied field values
}

// Outcome collects everything one fill run produced.
type Outcome struct {
	Document    *model.Document    `json:"document"`
	Report      *model.FillReport  `json:"report"`
	Values      []model.FieldValue `json:"values"`
	Review      []model.ReviewItem `json:"review,omitempty"`
	Suggestions map[string]string  `json:"suggestions,omitempty"` // unmatched line -> suggested field key
}

// Run fills one document. The document record is created up front so
// failures stay visible (status "failed"); on success the stored document
// carries its field values, review items, and fill report.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Outcome, error) {
	if req.Source == "" && strings.TrimSpace(req.Text) == "" && len(req.Values) == 0 {
		return nil, eris.New("pipeline: request has no source, text, or values")
	}

	name := req.Name
	if name == "" {
		name = displayName(req.Source)
	}

	log := zap.L().With(zap.String("document", name), zap.String("schema", p.schema.Name))
	log.Info("pipeline: filling document")

	doc, err := p.store.CreateDocument(ctx, name, p.schema.Name, req.Source)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create document")
	}

	setStatus := func(status model.DocumentStatus) {
		if statusErr := p.store.UpdateDocumentStatus(ctx, doc.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}
	setStatus(model.DocumentStatusProcessing)

	sess := session.New(doc.ID, p.schema, p.engine)
	var unmatched []string

	if req.Source != "" {
		res, srcErr := p.fromSource(ctx, req.Source)
		if srcErr != nil {
			setStatus(model.DocumentStatusFailed)
			return nil, srcErr
		}
		intake.ApplyValues(sess.Store, res.Values, model.SourceExtracted)
		unmatched = append(unmatched, res.Unmatched...)
	}
	if strings.TrimSpace(req.Text) != "" {
		res := p.intake.Mapper().MapText(req.Text)
		intake.ApplyValues(sess.Store, res.Values, model.SourceExtracted)
		unmatched = append(unmatched, res.Unmatched...)
	}
	for key, value := range req.Values {
		sess.Store.SetValue(key, value, model.SourceImported)
	}

	report, err := sess.AutoFill(ctx)
	if err != nil {
		setStatus(model.DocumentStatusFailed)
		return nil, eris.Wrap(err, "pipeline: auto-fill")
	}
	report.Unmatched = unmatched

	review := sess.ReviewItems()
	if p.assist.Enabled() {
		p.annotateReview(ctx, review, log)
	}

	values := storedValues(sess.Store)
	if err := p.store.UpsertValues(ctx, doc.ID, values); err != nil {
		setStatus(model.DocumentStatusFailed)
		return nil, eris.Wrap(err, "pipeline: persist values")
	}
	for _, item := range review {
		if err := p.store.AddReviewItem(ctx, item); err != nil {
			setStatus(model.DocumentStatusFailed)
			return nil, eris.Wrap(err, "pipeline: persist review item")
		}
	}
	// SaveReport also moves the document to "filled".
	if err := p.store.SaveReport(ctx, doc.ID, report); err != nil {
		setStatus(model.DocumentStatusFailed)
		return nil, eris.Wrap(err, "pipeline: save report")
	}
	doc.Status = model.DocumentStatusFilled
	doc.Report = report

	outcome := &Outcome{
		Document: doc,
		Report:   report,
		Values:   values,
		Review:   review,
	}
	if p.assist.Enabled() {
		outcome.Suggestions = p.suggestMatches(ctx, unmatched, log)
	}

	log.Info("pipeline: document filled",
		zap.String("doc_id", doc.ID),
		zap.Int("values", len(values)),
		zap.Int("resolved", report.Resolved),
		zap.Int("needs_review", report.NeedsReview),
		zap.Int("unresolvable", report.Unresolvable),
		zap.Int("passes", report.Passes),
	)

	return outcome, nil
}

// fromSource extracts values from a file path or a URL.
func (p *Pipeline) fromSource(ctx context.Context, source string) (*intake.Result, error) {
	if strings.Contains(source, "://") {
		return p.intake.FromURL(ctx, source)
	}
	return p.intake.FromFile(ctx, source)
}

// annotateReview drafts a reviewer note per item. Failures are logged and
// skipped; notes are a convenience, never a gate.
func (p *Pipeline) annotateReview(ctx context.Context, review []model.ReviewItem, log *zap.Logger) {
	for i := range review {
		note, err := p.assist.NoteForReview(ctx, review[i])
		if err != nil {
			log.Warn("pipeline: review note failed",
				zap.String("field", review[i].FieldKey),
				zap.Error(err),
			)
			continue
		}
		review[i].Note = note
	}
}

// suggestMatches asks the assistant which fields the unmatched lines might
// belong to. Suggestions are advisory and are not persisted.
func (p *Pipeline) suggestMatches(ctx context.Context, unmatched []string, log *zap.Logger) map[string]string {
	if len(unmatched) == 0 {
		return nil
	}
	suggestions, err := p.assist.SuggestMatches(ctx, unmatched, p.schema.Registry().Fields)
	if err != nil {
		log.Warn("pipeline: match suggestions failed", zap.Error(err))
		return nil
	}
	if len(suggestions) == 0 {
		return nil
	}
	log.Info("pipeline: assistant suggested matches for unmatched lines",
		zap.Int("lines", len(unmatched)),
		zap.Int("suggestions", len(suggestions)),
	)
	return suggestions
}

// storedValues snapshots the session store as a sorted slice.
func storedValues(st *session.Store) []model.FieldValue {
	names := st.Names()
	values := make([]model.FieldValue, 0, len(names))
	for _, n := range names {
		if fv, ok := st.Get(n); ok {
			values = append(values, fv)
		}
	}
	return values
}

// displayName derives a document name from its source: the base name of a
// path or URL, or "inline" for sources supplied in the request body.
func displayName(source string) string {
	if source == "" {
		return "inline"
	}
	if u, err := url.Parse(source); err == nil && u.Path != "" {
		if base := path.Base(u.Path); base != "." && base != "/" {
			return base
		}
	}
	return filepath.Base(source)
}
