package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/tskoli/kaiwa/internal/domain"
)

// SessionStore defines the interface for conversation session persistence.
// Sessions are keyed by (learner, session ID) where the ID encodes the
// calendar day, so the one-session-per-day invariant is a uniqueness
// constraint.
type SessionStore interface {
	// Create saves a new session.
	// Returns ErrDuplicate if the learner already has a session for that day.
	Create(ctx context.Context, session *domain.Session) error

	// Get retrieves a session by learner and session ID.
	// Returns ErrSessionNotFound if it does not exist.
	Get(ctx context.Context, learnerID uuid.UUID, id string) (*domain.Session, error)

	// End sets the optional end marker on a session.
	// Returns ErrSessionNotFound if it does not exist.
	End(ctx context.Context, learnerID uuid.UUID, id string, endedAt time.Time) error

	// WithTx returns a new SessionStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) SessionStore
}

// MessageStore defines the interface for conversation message persistence.
// Messages are append-only and immutable once written.
type MessageStore interface {
	// Create saves a new message.
	Create(ctx context.Context, message *domain.Message) error

	// ListRecent returns the last limit messages of a session in
	// chronological order (the adapter fetches most-recent-first and
	// reverses).
	ListRecent(ctx context.Context, sessionID string, limit int) ([]*domain.Message, error)

	// CountVoiceTurnsOn counts the learner's voice messages (learner role
	// with a transcript) created on the given calendar day. Used for the
	// daily rate cap.
	CountVoiceTurnsOn(ctx context.Context, learnerID uuid.UUID, day time.Time) (int, error)

	// WithTx returns a new MessageStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) MessageStore
}
