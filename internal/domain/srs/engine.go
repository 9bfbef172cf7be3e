// Package srs implements the spaced-repetition scheduling engine: a pure
// SM-2 style transition from (item, review quality) to the item's next
// easiness, interval, and due date.
package srs

import (
	"errors"
	"time"

	"github.com/tskoli/kaiwa/internal/domain"
)

// Common errors.
var (
	ErrNilItem        = errors.New("review item cannot be nil")
	ErrInvalidQuality = errors.New("review quality must be between 0 and 5")
)

// Engine computes review transitions for items. Implementations are pure:
// they never touch storage and always return a new item rather than
// mutating the input.
type Engine interface {
	// Review applies one review outcome. quality is the 0-5 recall
	// strength; values outside that range are rejected before any state is
	// derived. today anchors the calendar-day due-date computation.
	Review(item *domain.ReviewItem, quality int, today time.Time) (*domain.ReviewItem, error)
}

type defaultEngine struct {
	params *Params
}

// NewDefaultEngine creates an Engine with the standard parameters.
func NewDefaultEngine() Engine {
	return &defaultEngine{params: NewDefaultParams()}
}

// NewEngineWithParams creates an Engine with custom parameters.
func NewEngineWithParams(params *Params) Engine {
	return &defaultEngine{params: params}
}

func (e *defaultEngine) Review(
	item *domain.ReviewItem,
	quality int,
	today time.Time,
) (*domain.ReviewItem, error) {
	if item == nil {
		return nil, ErrNilItem
	}
	if quality < MinQuality || quality > MaxQuality {
		return nil, ErrInvalidQuality
	}

	return nextItem(item, quality, today, e.params), nil
}
