package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tskoli/kaiwa/internal/api/shared"
	"github.com/tskoli/kaiwa/internal/domain"
	"github.com/tskoli/kaiwa/internal/platform/logger"
)

// ReviewRequest is the body for POST /api/review/{id}.
type ReviewRequest struct {
	Quality int `json:"quality"`
}

// Reviewer applies review outcomes on behalf of the handler.
type Reviewer interface {
	ListDue(ctx context.Context, learnerID uuid.UUID, asOf time.Time) ([]*domain.ReviewItem, error)
	Review(ctx context.Context, itemID uuid.UUID, quality int, now time.Time) (*domain.ReviewItem, error)
}

// ReviewHandler handles the spaced-repetition endpoints.
type ReviewHandler struct {
	reviews Reviewer
	logger  *slog.Logger
}

// NewReviewHandler creates a ReviewHandler.
func NewReviewHandler(reviews Reviewer, log *slog.Logger) *ReviewHandler {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ReviewHandler")
	}

	return &ReviewHandler{
		reviews: reviews,
		logger:  log.With(slog.String("component", "review_handler")),
	}
}

// HandleListDue handles GET /api/review/due.
func (h *ReviewHandler) HandleListDue(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	learnerID, ok := learnerIDFromContext(w, r)
	if !ok {
		return
	}

	items, err := h.reviews.ListDue(r.Context(), learnerID, time.Now())
	if err != nil {
		handleServiceError(w, r, log, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]any{"items": items})
}

// HandleReview handles POST /api/review/{id}.
func (h *ReviewHandler) HandleReview(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	if _, ok := learnerIDFromContext(w, r); !ok {
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid item ID")
		return
	}

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	item, err := h.reviews.Review(r.Context(), itemID, req.Quality, time.Now())
	if err != nil {
		handleServiceError(w, r, log, err)
		return
	}
	if item == nil {
		// Unknown items are skipped, not failed.
		shared.RespondWithJSON(w, r, http.StatusNoContent, nil)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, item)
}
