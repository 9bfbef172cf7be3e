package srs

import "github.com/tskoli/kaiwa/internal/domain"

// Quality bounds for a review outcome. 0 is total failure, 5 is perfect
// recall; anything below PassingQuality resets the item.
const (
	MinQuality     = 0
	MaxQuality     = 5
	PassingQuality = 3
)

// Params defines the configurable parameters of the scheduling algorithm.
type Params struct {
	// MinEasiness is the floor the easiness factor is clamped to.
	MinEasiness float64

	// FailureIntervalDays is the interval an item falls back to when the
	// review quality is below PassingQuality.
	FailureIntervalDays int

	// EarlyIntervalDays are the fixed interval steps applied to the first
	// successful reviews (1 -> 3 -> 7 by default). Once an item's interval
	// has moved past the last step, growth becomes multiplicative by the
	// easiness factor.
	EarlyIntervalDays []int
}

// ParamsConfig allows overriding the defaults when constructing Params.
type ParamsConfig struct {
	MinEasiness         float64
	FailureIntervalDays int
	EarlyIntervalDays   []int
}

// NewDefaultParams returns the standard SM-2 parameterization.
func NewDefaultParams() *Params {
	return &Params{
		MinEasiness:         domain.MinEasiness,
		FailureIntervalDays: 1,
		EarlyIntervalDays:   []int{1, 3, 7},
	}
}

// NewParams builds Params from the config, falling back to defaults for
// unset fields.
func NewParams(config ParamsConfig) *Params {
	params := NewDefaultParams()

	if config.MinEasiness > 0 {
		params.MinEasiness = config.MinEasiness
	}
	if config.FailureIntervalDays > 0 {
		params.FailureIntervalDays = config.FailureIntervalDays
	}
	if len(config.EarlyIntervalDays) > 0 {
		params.EarlyIntervalDays = config.EarlyIntervalDays
	}

	return params
}
