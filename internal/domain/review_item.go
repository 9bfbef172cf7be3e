package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ItemKind classifies one unit of review material.
type ItemKind string

const (
	ItemGrammar       ItemKind = "grammar"
	ItemVocab         ItemKind = "vocab"
	ItemPhrase        ItemKind = "phrase"
	ItemPronunciation ItemKind = "pronunciation"
)

// Review item validation errors.
var (
	ErrItemIDEmpty         = errors.New("review item ID cannot be empty")
	ErrItemLearnerEmpty    = errors.New("review item learner ID cannot be empty")
	ErrItemKindInvalid     = errors.New("review item kind is invalid")
	ErrItemContentEmpty    = errors.New("review item content cannot be empty")
	ErrItemEasinessTooLow  = errors.New("review item easiness cannot fall below the floor")
	ErrItemIntervalInvalid = errors.New("review item interval must be at least 1 day")
)

// MinEasiness is the floor for a review item's easiness factor. Clamping
// here keeps chronically failed items from sinking into impossible
// intervals.
const MinEasiness = 1.3

// DefaultEasiness is the easiness assigned to freshly created items.
const DefaultEasiness = 2.5

// ReviewItem is one durable unit of spaced-repetition material. The
// easiness factor, interval, and next-due date change only through the SRS
// transition function; every other mutation path is a bug.
type ReviewItem struct {
	ID             uuid.UUID  `json:"id"`
	LearnerID      uuid.UUID  `json:"learner_id"`
	Kind           ItemKind   `json:"kind"`
	Content        string     `json:"content"`
	Easiness       float64    `json:"easiness"`
	IntervalDays   int        `json:"interval_days"`
	NextDueAt      time.Time  `json:"next_due_at"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NewReviewItem creates an item due immediately with default easiness and a
// one-day interval.
func NewReviewItem(learnerID uuid.UUID, kind ItemKind, content string) (*ReviewItem, error) {
	now := time.Now().UTC()
	item := &ReviewItem{
		ID:           uuid.New(),
		LearnerID:    learnerID,
		Kind:         kind,
		Content:      content,
		Easiness:     DefaultEasiness,
		IntervalDays: 1,
		NextDueAt:    now,
		CreatedAt:    now,
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return item, nil
}

// Validate checks the item's invariants.
func (i *ReviewItem) Validate() error {
	if i.ID == uuid.Nil {
		return ErrItemIDEmpty
	}
	if i.LearnerID == uuid.Nil {
		return ErrItemLearnerEmpty
	}
	switch i.Kind {
	case ItemGrammar, ItemVocab, ItemPhrase, ItemPronunciation:
	default:
		return ErrItemKindInvalid
	}
	if i.Content == "" {
		return ErrItemContentEmpty
	}
	if i.Easiness < MinEasiness {
		return ErrItemEasinessTooLow
	}
	if i.IntervalDays < 1 {
		return ErrItemIntervalInvalid
	}
	return nil
}

// Mastered reports whether the item has reached a month-long interval.
func (i *ReviewItem) Mastered() bool {
	return i.IntervalDays >= 30
}
