package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/tskoli/kaiwa/internal/api/shared"
	"github.com/tskoli/kaiwa/internal/platform/logger"
	"github.com/tskoli/kaiwa/internal/service"
)

// VoiceTurnRequest is the body for POST /api/turns.
type VoiceTurnRequest struct {
	AudioBase64     string `json:"audio_base64"`
	MimeType        string `json:"mime_type"`
	DurationSeconds int    `json:"duration_seconds"`
}

// TextTurnRequest is the body for POST /api/turns/text.
type TextTurnRequest struct {
	Text string `json:"text"`
}

// TurnRunner drives the turn pipeline on behalf of the handler.
type TurnRunner interface {
	HandleVoiceTurn(ctx context.Context, input service.VoiceTurnInput) (*service.TurnResult, error)
	HandleTextTurn(ctx context.Context, input service.TextTurnInput) (*service.TurnResult, error)
	EndSession(ctx context.Context, learnerID uuid.UUID) error
}

// TurnHandler handles turn submission and session end requests.
type TurnHandler struct {
	turns  TurnRunner
	logger *slog.Logger
}

// NewTurnHandler creates a TurnHandler.
func NewTurnHandler(turns TurnRunner, log *slog.Logger) *TurnHandler {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TurnHandler")
	}

	return &TurnHandler{
		turns:  turns,
		logger: log.With(slog.String("component", "turn_handler")),
	}
}

// HandleVoiceTurn handles POST /api/turns.
func (h *TurnHandler) HandleVoiceTurn(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	learnerID, ok := learnerIDFromContext(w, r)
	if !ok {
		return
	}

	var req VoiceTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	audio, err := base64.StdEncoding.DecodeString(req.AudioBase64)
	if err != nil || len(audio) == 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid or empty audio payload")
		return
	}

	result, err := h.turns.HandleVoiceTurn(r.Context(), service.VoiceTurnInput{
		LearnerID:       learnerID,
		Audio:           audio,
		MimeType:        req.MimeType,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		handleServiceError(w, r, log, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// HandleTextTurn handles POST /api/turns/text.
func (h *TurnHandler) HandleTextTurn(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	learnerID, ok := learnerIDFromContext(w, r)
	if !ok {
		return
	}

	var req TextTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.turns.HandleTextTurn(r.Context(), service.TextTurnInput{
		LearnerID: learnerID,
		Text:      req.Text,
	})
	if err != nil {
		handleServiceError(w, r, log, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// HandleEndSession handles POST /api/sessions/end.
func (h *TurnHandler) HandleEndSession(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	learnerID, ok := learnerIDFromContext(w, r)
	if !ok {
		return
	}

	if err := h.turns.EndSession(r.Context(), learnerID); err != nil {
		handleServiceError(w, r, log, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusNoContent, nil)
}

// learnerIDFromContext extracts the authorized learner ID set by the auth
// middleware, responding with 401 when missing.
func learnerIDFromContext(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	learnerID, ok := r.Context().Value(shared.LearnerIDContextKey).(uuid.UUID)
	if !ok || learnerID == uuid.Nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Learner ID not found in request context")
		return uuid.Nil, false
	}
	return learnerID, true
}
