package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tskoli/kaiwa/internal/domain"
	"github.com/tskoli/kaiwa/internal/domain/srs"
	"github.com/tskoli/kaiwa/internal/platform/logger"
	"github.com/tskoli/kaiwa/internal/store"
)

// ReviewService applies spaced-repetition outcomes to review items. All
// scheduling math lives in the srs engine; this service only loads,
// delegates, and persists.
type ReviewService struct {
	items  store.ReviewItemStore
	engine srs.Engine
	limits TurnLimits
	logger *slog.Logger
}

// NewReviewService creates a ReviewService.
func NewReviewService(items store.ReviewItemStore, engine srs.Engine, limits TurnLimits, log *slog.Logger) *ReviewService {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ReviewService")
	}

	return &ReviewService{
		items:  items,
		engine: engine,
		limits: limits,
		logger: log.With(slog.String("component", "review_service")),
	}
}

// ListDue returns the bounded batch of items due as of now.
func (s *ReviewService) ListDue(ctx context.Context, learnerID uuid.UUID, asOf time.Time) ([]*domain.ReviewItem, error) {
	const op = "list_due"

	items, err := s.items.ListDue(ctx, learnerID, asOf, s.limits.DueItemBatchSize)
	if err != nil {
		return nil, NewServiceError(op, "failed to list due items", err)
	}
	return items, nil
}

// Review applies one review outcome with the given recall quality and
// persists the new schedule. Reviewing an unknown item is a logged no-op,
// not a failure: the item may have been wiped between listing and grading.
func (s *ReviewService) Review(ctx context.Context, itemID uuid.UUID, quality int, now time.Time) (*domain.ReviewItem, error) {
	const op = "review"
	log := logger.FromContextOrDefault(ctx, s.logger)

	item, err := s.items.Get(ctx, itemID)
	if errors.Is(err, store.ErrReviewItemNotFound) {
		log.Warn("review for unknown item skipped", slog.String("item_id", itemID.String()))
		return nil, nil
	}
	if err != nil {
		return nil, NewServiceError(op, "failed to load review item", err)
	}

	reviewed, err := s.engine.Review(item, quality, now)
	if err != nil {
		return nil, NewServiceError(op, "failed to compute review transition", err)
	}

	if err := s.items.UpdateSchedule(ctx, reviewed); err != nil {
		if errors.Is(err, store.ErrReviewItemNotFound) {
			log.Warn("review item vanished before schedule update", slog.String("item_id", itemID.String()))
			return nil, nil
		}
		return nil, NewServiceError(op, "failed to persist review schedule", err)
	}

	log.Debug("review applied",
		slog.String("item_id", itemID.String()),
		slog.Int("quality", quality),
		slog.Int("interval_days", reviewed.IntervalDays),
		slog.Float64("easiness", reviewed.Easiness))

	return reviewed, nil
}
