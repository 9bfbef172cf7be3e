package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/tskoli/kaiwa/internal/domain"
)

// ReviewItemStore defines the interface for review item persistence.
type ReviewItemStore interface {
	// Create saves a new review item.
	Create(ctx context.Context, item *domain.ReviewItem) error

	// Get retrieves a review item by ID.
	// Returns ErrReviewItemNotFound if it does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.ReviewItem, error)

	// ListDue returns up to limit items whose next-due date has arrived as
	// of the given day, soonest due first.
	ListDue(ctx context.Context, learnerID uuid.UUID, asOf time.Time, limit int) ([]*domain.ReviewItem, error)

	// ListAll returns every item for the learner ordered by next-due date.
	ListAll(ctx context.Context, learnerID uuid.UUID) ([]*domain.ReviewItem, error)

	// UpdateSchedule persists the scheduling fields of a reviewed item —
	// easiness, interval, next-due date, last-reviewed date — atomically.
	// No other column is touched; the spaced-repetition transition is the
	// only mutation path for these fields.
	// Returns ErrReviewItemNotFound if the item does not exist.
	UpdateSchedule(ctx context.Context, item *domain.ReviewItem) error

	// WithTx returns a new ReviewItemStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) ReviewItemStore
}
