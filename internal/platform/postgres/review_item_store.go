package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tskoli/kaiwa/internal/domain"
	"github.com/tskoli/kaiwa/internal/store"
)

// PostgresReviewItemStore implements the store.ReviewItemStore interface
// using a PostgreSQL database as the storage backend.
type PostgresReviewItemStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresReviewItemStore creates a new PostgreSQL implementation of the
// ReviewItemStore interface.
func NewPostgresReviewItemStore(db store.DBTX, logger *slog.Logger) *PostgresReviewItemStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresReviewItemStore{
		db:     db,
		logger: logger.With(slog.String("component", "review_item_store")),
	}
}

// Ensure PostgresReviewItemStore implements store.ReviewItemStore interface
var _ store.ReviewItemStore = (*PostgresReviewItemStore)(nil)

// WithTx implements store.ReviewItemStore.WithTx
func (s *PostgresReviewItemStore) WithTx(tx *sql.Tx) store.ReviewItemStore {
	return &PostgresReviewItemStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.ReviewItemStore.Create
func (s *PostgresReviewItemStore) Create(ctx context.Context, item *domain.ReviewItem) error {
	if err := item.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO review_items (
			id, learner_id, kind, content, easiness, interval_days,
			next_due_at, last_reviewed_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		item.ID,
		item.LearnerID,
		item.Kind,
		item.Content,
		item.Easiness,
		item.IntervalDays,
		item.NextDueAt,
		item.LastReviewedAt,
		item.CreatedAt,
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create review item",
			slog.String("item_id", item.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	return nil
}

const reviewItemColumns = `
	id, learner_id, kind, content, easiness, interval_days,
	next_due_at, last_reviewed_at, created_at
`

type reviewItemScanner interface {
	Scan(dest ...any) error
}

func scanReviewItem(row reviewItemScanner) (*domain.ReviewItem, error) {
	var item domain.ReviewItem
	var lastReviewedAt sql.NullTime

	err := row.Scan(
		&item.ID,
		&item.LearnerID,
		&item.Kind,
		&item.Content,
		&item.Easiness,
		&item.IntervalDays,
		&item.NextDueAt,
		&lastReviewedAt,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastReviewedAt.Valid {
		t := lastReviewedAt.Time
		item.LastReviewedAt = &t
	}
	return &item, nil
}

// Get implements store.ReviewItemStore.Get
func (s *PostgresReviewItemStore) Get(ctx context.Context, id uuid.UUID) (*domain.ReviewItem, error) {
	query := `SELECT ` + reviewItemColumns + ` FROM review_items WHERE id = $1`

	item, err := scanReviewItem(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if mapped := MapError(err); store.IsNotFoundError(mapped) {
			return nil, store.ErrReviewItemNotFound
		}
		s.logger.ErrorContext(ctx, "failed to get review item",
			slog.String("item_id", id.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return item, nil
}

func (s *PostgresReviewItemStore) listItems(ctx context.Context, query string, args ...any) ([]*domain.ReviewItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var items []*domain.ReviewItem
	for rows.Next() {
		item, err := scanReviewItem(rows)
		if err != nil {
			return nil, MapError(err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return items, nil
}

// ListDue implements store.ReviewItemStore.ListDue. An item is due once its
// next-due date falls on or before the given day.
func (s *PostgresReviewItemStore) ListDue(ctx context.Context, learnerID uuid.UUID, asOf time.Time, limit int) ([]*domain.ReviewItem, error) {
	dayEnd := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, asOf.Location()).AddDate(0, 0, 1)

	query := `
		SELECT ` + reviewItemColumns + `
		FROM review_items
		WHERE learner_id = $1 AND next_due_at < $2
		ORDER BY next_due_at ASC, created_at ASC
		LIMIT $3
	`
	items, err := s.listItems(ctx, query, learnerID, dayEnd, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list due review items",
			slog.String("learner_id", learnerID.String()),
			slog.String("error", err.Error()))
		return nil, err
	}
	return items, nil
}

// ListAll implements store.ReviewItemStore.ListAll
func (s *PostgresReviewItemStore) ListAll(ctx context.Context, learnerID uuid.UUID) ([]*domain.ReviewItem, error) {
	query := `
		SELECT ` + reviewItemColumns + `
		FROM review_items
		WHERE learner_id = $1
		ORDER BY next_due_at ASC, created_at ASC
	`
	items, err := s.listItems(ctx, query, learnerID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list review items",
			slog.String("learner_id", learnerID.String()),
			slog.String("error", err.Error()))
		return nil, err
	}
	return items, nil
}

// UpdateSchedule implements store.ReviewItemStore.UpdateSchedule. Only the
// scheduling columns are written; kind and content never change here.
func (s *PostgresReviewItemStore) UpdateSchedule(ctx context.Context, item *domain.ReviewItem) error {
	if err := item.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE review_items
		SET easiness = $2,
			interval_days = $3,
			next_due_at = $4,
			last_reviewed_at = $5
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		item.ID,
		item.Easiness,
		item.IntervalDays,
		item.NextDueAt,
		item.LastReviewedAt,
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to update review item schedule",
			slog.String("item_id", item.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "review item"); err != nil {
		return store.ErrReviewItemNotFound
	}
	return nil
}
