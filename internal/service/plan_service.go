package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tskoli/kaiwa/internal/domain"
	"github.com/tskoli/kaiwa/internal/platform/logger"
	"github.com/tskoli/kaiwa/internal/store"
)

// starterCurriculum seeds a fresh learner with a first batch of review
// material so the plan and the due queue are never empty on day one.
var starterCurriculum = []struct {
	Kind    domain.ItemKind
	Content string
}{
	{domain.ItemGrammar, "〜てもいいですか (asking permission)"},
	{domain.ItemGrammar, "〜たことがある (past experience)"},
	{domain.ItemGrammar, "〜ながら (doing two things at once)"},
	{domain.ItemVocab, "予定 (よてい) - plan, schedule"},
	{domain.ItemVocab, "最近 (さいきん) - recently"},
	{domain.ItemPhrase, "そう言えば (now that you mention it)"},
	{domain.ItemPhrase, "〜と思います (I think that...)"},
	{domain.ItemPronunciation, "long vowel contrast: おばさん / おばあさん"},
}

// PlanView is the study-plan snapshot returned to the learner.
type PlanView struct {
	DueToday      []*domain.ReviewItem `json:"due_today"`
	Upcoming      []*domain.ReviewItem `json:"upcoming"`
	MasteredCount int                  `json:"mastered_count"`
	TotalItems    int                  `json:"total_items"`
}

// PlanService owns curriculum seeding and the study-plan view.
type PlanService struct {
	items  store.ReviewItemStore
	logger *slog.Logger
}

// NewPlanService creates a PlanService.
func NewPlanService(items store.ReviewItemStore, log *slog.Logger) *PlanService {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for PlanService")
	}

	return &PlanService{
		items:  items,
		logger: log.With(slog.String("component", "plan_service")),
	}
}

// SeedCurriculum creates the starter review items for a learner with no
// material yet. Seeding a learner who already has items is a no-op.
func (s *PlanService) SeedCurriculum(ctx context.Context, learnerID uuid.UUID) (int, error) {
	const op = "seed_curriculum"
	log := logger.FromContextOrDefault(ctx, s.logger)

	existing, err := s.items.ListAll(ctx, learnerID)
	if err != nil {
		return 0, NewServiceError(op, "failed to check existing items", err)
	}
	if len(existing) > 0 {
		log.Debug("curriculum already seeded",
			slog.String("learner_id", learnerID.String()),
			slog.Int("item_count", len(existing)))
		return 0, nil
	}

	created := 0
	for _, seed := range starterCurriculum {
		item, err := domain.NewReviewItem(learnerID, seed.Kind, seed.Content)
		if err != nil {
			return created, NewServiceError(op, "failed to build starter item", err)
		}
		if err := s.items.Create(ctx, item); err != nil {
			return created, NewServiceError(op, "failed to create starter item", err)
		}
		created++
	}

	log.Info("seeded starter curriculum",
		slog.String("learner_id", learnerID.String()),
		slog.Int("item_count", created))
	return created, nil
}

// AddItem creates one review item from freshly surfaced material, due
// immediately.
func (s *PlanService) AddItem(ctx context.Context, learnerID uuid.UUID, kind domain.ItemKind, content string) (*domain.ReviewItem, error) {
	const op = "add_item"

	item, err := domain.NewReviewItem(learnerID, kind, content)
	if err != nil {
		return nil, NewServiceError(op, "invalid review item", err)
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, NewServiceError(op, "failed to create review item", err)
	}
	return item, nil
}

// Plan builds the study-plan view as of now: what is due today, what comes
// later, and how much material has reached mastery.
func (s *PlanService) Plan(ctx context.Context, learnerID uuid.UUID, now time.Time) (*PlanView, error) {
	const op = "plan"

	all, err := s.items.ListAll(ctx, learnerID)
	if err != nil {
		return nil, NewServiceError(op, "failed to list review items", err)
	}

	endOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)

	view := &PlanView{
		DueToday: make([]*domain.ReviewItem, 0, len(all)),
		Upcoming: make([]*domain.ReviewItem, 0, len(all)),
	}
	for _, item := range all {
		if item.Mastered() {
			view.MasteredCount++
		}
		if item.NextDueAt.Before(endOfToday) {
			view.DueToday = append(view.DueToday, item)
		} else {
			view.Upcoming = append(view.Upcoming, item)
		}
	}
	view.TotalItems = len(all)

	return view, nil
}
