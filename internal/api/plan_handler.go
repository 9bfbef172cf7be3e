package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tskoli/kaiwa/internal/api/shared"
	"github.com/tskoli/kaiwa/internal/platform/logger"
	"github.com/tskoli/kaiwa/internal/service"
)

// Planner serves the study-plan view.
type Planner interface {
	Plan(ctx context.Context, learnerID uuid.UUID, now time.Time) (*service.PlanView, error)
}

// StatsProvider serves the progress-stats view.
type StatsProvider interface {
	Stats(ctx context.Context, learnerID uuid.UUID) (*service.StatsView, error)
}

// PlanHandler serves the study-plan and progress-stats views.
type PlanHandler struct {
	plans  Planner
	stats  StatsProvider
	logger *slog.Logger
}

// NewPlanHandler creates a PlanHandler.
func NewPlanHandler(plans Planner, stats StatsProvider, log *slog.Logger) *PlanHandler {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for PlanHandler")
	}

	return &PlanHandler{
		plans:  plans,
		stats:  stats,
		logger: log.With(slog.String("component", "plan_handler")),
	}
}

// HandlePlan handles GET /api/plan.
func (h *PlanHandler) HandlePlan(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	learnerID, ok := learnerIDFromContext(w, r)
	if !ok {
		return
	}

	plan, err := h.plans.Plan(r.Context(), learnerID, time.Now())
	if err != nil {
		handleServiceError(w, r, log, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, plan)
}

// HandleStats handles GET /api/stats.
func (h *PlanHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	learnerID, ok := learnerIDFromContext(w, r)
	if !ok {
		return
	}

	stats, err := h.stats.Stats(r.Context(), learnerID)
	if err != nil {
		handleServiceError(w, r, log, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}
