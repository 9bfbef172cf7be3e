package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/tskoli/kaiwa/internal/api/shared"
	"github.com/tskoli/kaiwa/internal/domain"
	"github.com/tskoli/kaiwa/internal/platform/logger"
)

// ConfirmWipeHeader is the second step of the data wipe: the request must
// repeat the learner ID in this header.
const ConfirmWipeHeader = "X-Confirm-Wipe"

// SettingRequest is the body for the PUT /api/settings endpoints.
type SettingRequest struct {
	Value string `json:"value"`
}

// LearnerSettings mutates the learner profile on behalf of the handler.
type LearnerSettings interface {
	UpdateDailyPromptTime(ctx context.Context, learnerID uuid.UUID, value string) (*domain.LearnerProfile, error)
	UpdateMode(ctx context.Context, learnerID uuid.UUID, value string) (*domain.LearnerProfile, error)
	UpdateIntensity(ctx context.Context, learnerID uuid.UUID, value string) (*domain.LearnerProfile, error)
	Wipe(ctx context.Context, learnerID uuid.UUID, confirmed bool) error
}

// Rescheduler retimes the cadence jobs after the daily prompt time
// changes.
type Rescheduler interface {
	Reschedule(dailyTime string) error
}

// SettingsHandler handles profile settings and the data wipe.
type SettingsHandler struct {
	learners    LearnerSettings
	rescheduler Rescheduler
	logger      *slog.Logger
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(learners LearnerSettings, rescheduler Rescheduler, log *slog.Logger) *SettingsHandler {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for SettingsHandler")
	}

	return &SettingsHandler{
		learners:    learners,
		rescheduler: rescheduler,
		logger:      log.With(slog.String("component", "settings_handler")),
	}
}

// HandleDailyTime handles PUT /api/settings/daily-time.
func (h *SettingsHandler) HandleDailyTime(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	learnerID, ok := learnerIDFromContext(w, r)
	if !ok {
		return
	}

	req, ok := decodeSetting(w, r)
	if !ok {
		return
	}

	profile, err := h.learners.UpdateDailyPromptTime(r.Context(), learnerID, req.Value)
	if err != nil {
		handleServiceError(w, r, log, err)
		return
	}

	if err := h.rescheduler.Reschedule(profile.DailyPromptTime); err != nil {
		// The profile change is saved; the new time applies after restart.
		log.Error("failed to reschedule cadence jobs", slog.String("error", err.Error()))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, profile)
}

// HandleMode handles PUT /api/settings/mode.
func (h *SettingsHandler) HandleMode(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	learnerID, ok := learnerIDFromContext(w, r)
	if !ok {
		return
	}

	req, ok := decodeSetting(w, r)
	if !ok {
		return
	}

	profile, err := h.learners.UpdateMode(r.Context(), learnerID, req.Value)
	if err != nil {
		handleServiceError(w, r, log, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, profile)
}

// HandleIntensity handles PUT /api/settings/intensity. An empty value
// cycles to the next intensity level.
func (h *SettingsHandler) HandleIntensity(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	learnerID, ok := learnerIDFromContext(w, r)
	if !ok {
		return
	}

	req, ok := decodeSetting(w, r)
	if !ok {
		return
	}

	profile, err := h.learners.UpdateIntensity(r.Context(), learnerID, req.Value)
	if err != nil {
		handleServiceError(w, r, log, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, profile)
}

// HandleWipe handles DELETE /api/learner. The first request without the
// confirmation header changes nothing and explains the second step; only a
// request carrying the learner's own ID in X-Confirm-Wipe deletes.
func (h *SettingsHandler) HandleWipe(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	learnerID, ok := learnerIDFromContext(w, r)
	if !ok {
		return
	}

	confirmed := r.Header.Get(ConfirmWipeHeader) == learnerID.String()
	if err := h.learners.Wipe(r.Context(), learnerID, confirmed); err != nil {
		handleServiceError(w, r, log, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusNoContent, nil)
}

func decodeSetting(w http.ResponseWriter, r *http.Request) (SettingRequest, bool) {
	var req SettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return SettingRequest{}, false
	}
	return req, true
}
