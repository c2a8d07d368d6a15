package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/docufill/fieldcalc/internal/model"
	"github.com/docufill/fieldcalc/internal/pipeline"
	"github.com/docufill/fieldcalc/internal/store"
)

func (s *Server) handleListReview(w http.ResponseWriter, r *http.Request) {
	filter := store.ReviewFilter{
		DocumentID: r.URL.Query().Get("document_id"),
		Status:     model.ReviewStatus(r.URL.Query().Get("status")),
	}
	var ok bool
	if filter.Limit, ok = queryInt(w, r, "limit"); !ok {
		return
	}

	items, err := s.store.ListReviewItems(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleResolveReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Status model.ReviewStatus `json:"status"`
		Value  *float64           `json:"value,omitempty"`
		Note   string             `json:"note,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status != model.ReviewAccepted && req.Status != model.ReviewRejected {
		respondError(w, http.StatusBadRequest, `status must be "accepted" or "rejected"`)
		return
	}

	item, err := pipeline.ResolveReview(r.Context(), s.store, id, req.Status, req.Value, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			respondError(w, http.StatusNotFound, "open review item not found")
		case errors.Is(err, pipeline.ErrNoCandidate):
			respondError(w, http.StatusBadRequest, "value is required: item has no candidates")
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, item)
}
