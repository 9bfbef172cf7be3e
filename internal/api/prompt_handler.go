package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/tskoli/kaiwa/internal/api/shared"
	"github.com/tskoli/kaiwa/internal/domain"
	"github.com/tskoli/kaiwa/internal/platform/logger"
)

// Prompter produces on-demand practice material on behalf of the handler.
type Prompter interface {
	FreeTopic(ctx context.Context, learnerID uuid.UUID) (*domain.DailyPrompt, error)
	ReplayDrill(ctx context.Context, learnerID uuid.UUID) (string, error)
}

// PromptHandler serves on-demand practice material.
type PromptHandler struct {
	prompts Prompter
	logger  *slog.Logger
}

// NewPromptHandler creates a PromptHandler.
func NewPromptHandler(prompts Prompter, log *slog.Logger) *PromptHandler {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for PromptHandler")
	}

	return &PromptHandler{
		prompts: prompts,
		logger:  log.With(slog.String("component", "prompt_handler")),
	}
}

// HandleFreeTopic handles POST /api/prompts/free-topic.
func (h *PromptHandler) HandleFreeTopic(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	learnerID, ok := learnerIDFromContext(w, r)
	if !ok {
		return
	}

	prompt, err := h.prompts.FreeTopic(r.Context(), learnerID)
	if err != nil {
		handleServiceError(w, r, log, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, prompt)
}

// HandleDrillReplay handles POST /api/drill/replay.
func (h *PromptHandler) HandleDrillReplay(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	learnerID, ok := learnerIDFromContext(w, r)
	if !ok {
		return
	}

	drill, err := h.prompts.ReplayDrill(r.Context(), learnerID)
	if err != nil {
		handleServiceError(w, r, log, err)
		return
	}
	if drill == "" {
		shared.RespondWithJSON(w, r, http.StatusNoContent, nil)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"drill": drill})
}
