package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tskoli/kaiwa/internal/api/shared"
	"github.com/tskoli/kaiwa/internal/domain/srs"
	"github.com/tskoli/kaiwa/internal/redact"
	"github.com/tskoli/kaiwa/internal/service"
	"github.com/tskoli/kaiwa/internal/store"
)

// handleServiceError maps service-layer failures to HTTP responses without
// leaking internals. Unmapped errors become a generic 500.
func handleServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrVoiceCapReached):
		shared.RespondWithError(w, r, http.StatusTooManyRequests, "Daily voice turn limit reached")
	case errors.Is(err, service.ErrAudioTooLong):
		shared.RespondWithError(w, r, http.StatusBadRequest, "Audio exceeds the maximum duration")
	case errors.Is(err, service.ErrEmptyTurn):
		shared.RespondWithError(w, r, http.StatusBadRequest, "Turn content is empty")
	case errors.Is(err, service.ErrInvalidSetting):
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid setting value")
	case errors.Is(err, service.ErrWipeNotConfirmed):
		shared.RespondWithError(w, r, http.StatusPreconditionRequired,
			"Wipe requires confirmation: repeat the request with the X-Confirm-Wipe header set to the learner ID")
	case errors.Is(err, srs.ErrInvalidQuality):
		shared.RespondWithError(w, r, http.StatusBadRequest, "Quality must be between 0 and 5")
	case errors.Is(err, store.ErrNotFound):
		shared.RespondWithError(w, r, http.StatusNotFound, "Not found")
	default:
		log.Error("unhandled service error", slog.String("error", redact.Error(err)))
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Internal server error")
	}
}
