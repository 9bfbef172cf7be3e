package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/tskoli/kaiwa/internal/domain"
)

// PromptStore defines the interface for daily prompt persistence.
type PromptStore interface {
	// Create saves a new daily prompt.
	Create(ctx context.Context, prompt *domain.DailyPrompt) error

	// ListForDay returns the learner's prompts created on the given
	// calendar day, oldest first.
	ListForDay(ctx context.Context, learnerID uuid.UUID, day time.Time) ([]*domain.DailyPrompt, error)

	// ListUnansweredForDay returns the prompts from the given day that have
	// not yet been answered, oldest first.
	ListUnansweredForDay(ctx context.Context, learnerID uuid.UUID, day time.Time) ([]*domain.DailyPrompt, error)

	// MarkAnswered stamps the prompt's answered-at time. The write is
	// conditional on the prompt still being unanswered, so consumption is
	// at-most-once even under concurrent callers.
	// Returns ErrPromptNotFound if the prompt does not exist and
	// ErrPromptAlreadyAnswered if it was already consumed.
	MarkAnswered(ctx context.Context, id uuid.UUID, answeredAt time.Time) error

	// WithTx returns a new PromptStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) PromptStore
}

// SummaryStore defines the interface for weekly summary persistence.
// Summaries are append-only.
type SummaryStore interface {
	// Create saves a new weekly summary.
	Create(ctx context.Context, summary *domain.WeeklySummary) error

	// GetLatest retrieves the learner's most recent summary by week start.
	// Returns ErrSummaryNotFound if the learner has none.
	GetLatest(ctx context.Context, learnerID uuid.UUID) (*domain.WeeklySummary, error)

	// WithTx returns a new SummaryStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) SummaryStore
}
