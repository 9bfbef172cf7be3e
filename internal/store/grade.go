package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/tskoli/kaiwa/internal/domain"
)

// GradeStore defines the interface for grade persistence. A grade
// references exactly one learner message; the message row is always written
// first in the same transaction, so a grade can never be orphaned.
type GradeStore interface {
	// Create saves a new grade. Issue and suggestion lists are serialized
	// to text by the adapter.
	Create(ctx context.Context, grade *domain.Grade) error

	// GetByMessage retrieves the grade attached to a message.
	// Returns ErrGradeNotFound if the message has no grade.
	GetByMessage(ctx context.Context, messageID uuid.UUID) (*domain.Grade, error)

	// ListRecent returns the learner's last limit grades, newest first.
	ListRecent(ctx context.Context, learnerID uuid.UUID, limit int) ([]*domain.Grade, error)

	// ListSince returns all of the learner's grades created at or after
	// since, newest first. Used for the weekly rollup window.
	ListSince(ctx context.Context, learnerID uuid.UUID, since time.Time) ([]*domain.Grade, error)

	// CountForLearner returns the learner's cumulative graded-turn count.
	CountForLearner(ctx context.Context, learnerID uuid.UUID) (int, error)

	// WithTx returns a new GradeStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) GradeStore
}
