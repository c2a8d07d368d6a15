package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/docufill/fieldcalc/internal/model"
	"github.com/docufill/fieldcalc/internal/store"
)

// ErrNoCandidate is returned when a review item is accepted without an
// explicit value and has no recorded candidates to fall back on.
var ErrNoCandidate = eris.New("no candidate value to accept")

// ResolveReview closes an open review item. Accepting writes the chosen
// value back to the document's fields as a manual entry; rejecting leaves
// the field empty. When accepting without an explicit value, the
// top-priority candidate wins. The returned item reflects the stored state
// after resolution. It needs only a store, not a full pipeline, so review
// queues can be worked without the source schema on hand.
func ResolveReview(ctx context.Context, st store.Store, id string, status model.ReviewStatus, value *float64, note string) (*model.ReviewItem, error) {
	if status != model.ReviewAccepted && status != model.ReviewRejected {
		return nil, eris.Errorf("pipeline: invalid review resolution %q", status)
	}

	item, err := st.GetReviewItem(ctx, id)
	if err != nil {
		return nil, err
	}

	accepted := value
	usedGroupID := ""
	if status == model.ReviewAccepted && accepted == nil {
		if len(item.Candidates) == 0 {
			return nil, eris.Wrapf(ErrNoCandidate, "review item %s", id)
		}
		accepted = &item.Candidates[0].Value
		usedGroupID = item.Candidates[0].GroupID
	}

	if note != "" {
		if err := st.SetReviewNote(ctx, id, note); err != nil {
			return nil, err
		}
	}
	if err := st.ResolveReviewItem(ctx, id, status); err != nil {
		return nil, err
	}

	if status == model.ReviewAccepted {
		fv := model.FieldValue{
			FieldKey:    item.FieldKey,
			Value:       *accepted,
			Confidence:  model.ConfidenceHigh,
			Source:      model.SourceManual,
			UsedGroupID: usedGroupID,
			SetAt:       time.Now().UTC(),
		}
		if err := st.UpsertValue(ctx, item.DocumentID, fv); err != nil {
			return nil, eris.Wrap(err, "pipeline: write accepted value")
		}
	}

	zap.L().Info("pipeline: review item resolved",
		zap.String("id", id),
		zap.String("doc", item.DocumentID),
		zap.String("field", item.FieldKey),
		zap.String("resolution", string(status)),
	)

	return st.GetReviewItem(ctx, id)
}
