package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/docufill/fieldcalc/internal/model"
	"github.com/docufill/fieldcalc/internal/pipeline"
	"github.com/docufill/fieldcalc/internal/store"
)

// handleCreateDocument fills a document from the request body. Requests
// carrying text or values are filled synchronously and answered with the
// full outcome. A request naming only a remote source is accepted and
// fetched in the background; the document turns up in the listing once
// processed.
func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Source == "" && strings.TrimSpace(req.Text) == "" && len(req.Values) == 0 {
		respondError(w, http.StatusBadRequest, "source, text, or values is required")
		return
	}

	if strings.TrimSpace(req.Text) == "" && len(req.Values) == 0 {
		// Source-only: the fetch may be slow, so run it detached from the
		// request. The request id survives for log correlation.
		ctx := context.WithoutCancel(r.Context())
		go func() {
			if _, err := s.pipeline.Run(ctx, req); err != nil {
				zap.L().Error("server: background fill failed",
					zap.String("source", req.Source),
					zap.Error(err),
				)
			}
		}()
		respondJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"source": req.Source,
		})
		return
	}

	outcome, err := s.pipeline.Run(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, outcome)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	filter := store.DocumentFilter{
		Status:     model.DocumentStatus(r.URL.Query().Get("status")),
		SchemaName: r.URL.Query().Get("schema"),
	}

	var ok bool
	if filter.Limit, ok = queryInt(w, r, "limit"); !ok {
		return
	}
	if filter.Offset, ok = queryInt(w, r, "offset"); !ok {
		return
	}

	docs, err := s.store.ListDocuments(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "document not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	values, err := s.store.ListValues(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"document": doc,
		"values":   values,
	})
}

// queryInt parses an optional non-negative integer query parameter,
// answering 400 itself when the value does not parse.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		respondError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return n, true
}
