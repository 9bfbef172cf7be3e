package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/tskoli/kaiwa/internal/domain"
)

// LearnerStore defines the interface for learner profile persistence.
type LearnerStore interface {
	// Create saves a new learner profile.
	// Returns ErrDuplicate if a profile with the same ID already exists.
	// Returns validation errors from the domain profile if data is invalid.
	Create(ctx context.Context, profile *domain.LearnerProfile) error

	// Get retrieves a learner profile by ID.
	// Returns ErrLearnerNotFound if the profile does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.LearnerProfile, error)

	// Update modifies an existing profile. Callers must load a fresh
	// profile immediately before mutating and updating, so concurrent
	// writers (turn pipeline vs. cadence jobs) do not clobber each other's
	// fields.
	// Returns ErrLearnerNotFound if the profile does not exist.
	Update(ctx context.Context, profile *domain.LearnerProfile) error

	// Delete removes the learner profile. Associated sessions, messages,
	// grades, review items, prompts, and summaries are removed through
	// database-level cascade deletes; this is the "full data wipe"
	// operation and cannot be undone.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new LearnerStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) LearnerStore
}
