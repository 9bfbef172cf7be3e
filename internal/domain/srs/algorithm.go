package srs

import (
	"math"
	"time"

	"github.com/tskoli/kaiwa/internal/domain"
)

// nextEasiness applies the SM-2 easiness update for the given quality and
// clamps the result to the configured floor. Quality 5 raises easiness by
// 0.1, quality 4 leaves it unchanged, everything below lowers it.
func nextEasiness(current float64, quality int, params *Params) float64 {
	miss := float64(MaxQuality - quality)
	next := current + (0.1 - miss*(0.08+miss*0.02))
	if next < params.MinEasiness {
		next = params.MinEasiness
	}
	return next
}

// nextInterval computes the new interval in days. A failing quality resets
// to the failure interval regardless of prior progress. Successful reviews
// walk the fixed early steps first, then scale by the easiness factor,
// rounded to the nearest whole day.
func nextInterval(current int, quality int, easiness float64, params *Params) int {
	if quality < PassingQuality {
		return params.FailureIntervalDays
	}

	steps := params.EarlyIntervalDays
	for i := 0; i < len(steps)-1; i++ {
		if current == steps[i] {
			return steps[i+1]
		}
	}

	return int(math.Round(float64(current) * easiness))
}

// nextItem produces the reviewed copy of the item. Only the scheduling
// fields change: easiness, interval, next-due date, and last-reviewed date.
// The due date is calendar-day based, not elapsed-time based.
func nextItem(item *domain.ReviewItem, quality int, today time.Time, params *Params) *domain.ReviewItem {
	reviewed := *item

	// Interval growth reads the pre-review easiness; the easiness update
	// applies afterwards and only affects the following review.
	reviewed.IntervalDays = nextInterval(item.IntervalDays, quality, item.Easiness, params)
	reviewed.Easiness = nextEasiness(item.Easiness, quality, params)

	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	reviewed.NextDueAt = day.AddDate(0, 0, reviewed.IntervalDays)
	reviewedAt := today
	reviewed.LastReviewedAt = &reviewedAt

	return &reviewed
}
