package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/dvloznov/statement-review/internal/api/middleware"
	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/dvloznov/statement-review/internal/pipeline"
	"github.com/dvloznov/statement-review/internal/review"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// maxChecksBody bounds POST /api/checks/run bodies.
const maxChecksBody = 4 << 20

// ChecksHandler handles check endpoints.
type ChecksHandler struct {
	reviewer Reviewer
	log      zerolog.Logger
}

// NewChecksHandler creates a new checks handler.
func NewChecksHandler(reviewer Reviewer, log zerolog.Logger) *ChecksHandler {
	return &ChecksHandler{
		reviewer: reviewer,
		log:      log,
	}
}

// ListChecks handles GET /api/checks
func (h *ChecksHandler) ListChecks(w http.ResponseWriter, r *http.Request) {
	checks := h.reviewer.Checks()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"checks": checks,
		"count":  len(checks),
	})
}

// FileChecks handles GET /api/files/{id}/checks
func (h *ChecksHandler) FileChecks(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	report, err := h.reviewer.Evaluate(r.Context(), fileID)
	switch {
	case err == nil:
		middleware.WriteJSON(w, http.StatusOK, report)
	case errors.Is(err, domain.ErrFileNotFound):
		middleware.WriteError(w, http.StatusNotFound, "File not found")
	case errors.Is(err, review.ErrNotCompleted):
		middleware.WriteError(w, http.StatusConflict, "File extraction has not completed")
	default:
		h.log.Error().Err(err).Str("file_id", fileID).Msg("Failed to evaluate checks")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to evaluate checks")
	}
}

// RunChecks handles POST /api/checks/run. The body is a transaction list in
// the same {"transactions": [...]} shape the model produces.
func (h *ChecksHandler) RunChecks(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxChecksBody))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	txs, err := pipeline.ParseModelResponse(r.Context(), string(body))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid transactions payload")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, h.reviewer.EvaluateTransactions(r.Context(), txs))
}
