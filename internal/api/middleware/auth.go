package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"
	"github.com/tskoli/kaiwa/internal/api/shared"
)

// LearnerIDHeader carries the caller's learner ID on every request.
const LearnerIDHeader = "X-Learner-ID"

// LearnerAuth authorizes requests by comparing the presented learner ID
// against the single recognized learner. There are no roles and no tokens:
// one principal, one equality check at the boundary.
type LearnerAuth struct {
	learnerID uuid.UUID
}

// NewLearnerAuth creates the authorization middleware for the given
// learner.
func NewLearnerAuth(learnerID uuid.UUID) *LearnerAuth {
	return &LearnerAuth{learnerID: learnerID}
}

// Authorize rejects requests whose learner ID header is missing, invalid,
// or not the recognized learner, and stores the ID in the context for
// handlers.
func (m *LearnerAuth) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(LearnerIDHeader)
		if raw == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Learner ID header required")
			return
		}

		presented, err := uuid.Parse(raw)
		if err != nil {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid learner ID")
			return
		}
		if subtle.ConstantTimeCompare(presented[:], m.learnerID[:]) != 1 {
			shared.RespondWithError(w, r, http.StatusForbidden, "Unknown learner")
			return
		}

		ctx := context.WithValue(r.Context(), shared.LearnerIDContextKey, presented)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
