package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Weekly summary validation errors.
var (
	ErrSummaryIDEmpty       = errors.New("weekly summary ID cannot be empty")
	ErrSummaryLearnerEmpty  = errors.New("weekly summary learner ID cannot be empty")
	ErrSummaryWeekStartZero = errors.New("weekly summary week start cannot be zero")
)

// WeeklySummary is the derived rollup for one calendar week. Summaries are
// append-only; a week with no graded turns produces no row at all.
type WeeklySummary struct {
	ID               uuid.UUID `json:"id"`
	LearnerID        uuid.UUID `json:"learner_id"`
	WeekStart        time.Time `json:"week_start"`
	Highlights       []string  `json:"highlights"`
	WeakAreas        []string  `json:"weak_areas"`
	Improvements     []string  `json:"improvements"`
	RecommendedFocus []string  `json:"recommended_focus"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewWeeklySummary creates a summary row for the week starting at weekStart.
func NewWeeklySummary(
	learnerID uuid.UUID,
	weekStart time.Time,
	highlights, weakAreas, improvements, recommendedFocus []string,
) (*WeeklySummary, error) {
	summary := &WeeklySummary{
		ID:               uuid.New(),
		LearnerID:        learnerID,
		WeekStart:        weekStart,
		Highlights:       highlights,
		WeakAreas:        weakAreas,
		Improvements:     improvements,
		RecommendedFocus: recommendedFocus,
		CreatedAt:        time.Now().UTC(),
	}
	if err := summary.Validate(); err != nil {
		return nil, err
	}
	return summary, nil
}

// Validate checks the summary's invariants.
func (s *WeeklySummary) Validate() error {
	if s.ID == uuid.Nil {
		return ErrSummaryIDEmpty
	}
	if s.LearnerID == uuid.Nil {
		return ErrSummaryLearnerEmpty
	}
	if s.WeekStart.IsZero() {
		return ErrSummaryWeekStartZero
	}
	return nil
}
