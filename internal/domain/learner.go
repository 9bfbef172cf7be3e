package domain

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// RegisterPreference controls which speech register the coach favors.
type RegisterPreference string

const (
	RegisterCasual RegisterPreference = "casual"
	RegisterPolite RegisterPreference = "polite"
	RegisterMixed  RegisterPreference = "mixed"
)

// CorrectionIntensity controls how aggressively the coach corrects errors.
type CorrectionIntensity string

const (
	CorrectionLight  CorrectionIntensity = "light"
	CorrectionNormal CorrectionIntensity = "normal"
	CorrectionStrict CorrectionIntensity = "strict"
)

// PracticeMode selects the overall style of a coaching session.
type PracticeMode string

const (
	ModeConversation PracticeMode = "conversation"
	ModeDrill        PracticeMode = "drill"
)

// DifficultyRamp controls how quickly material difficulty increases.
type DifficultyRamp string

const (
	RampGentle DifficultyRamp = "gentle"
	RampNormal DifficultyRamp = "normal"
	RampSteep  DifficultyRamp = "steep"
)

// Learner profile validation errors.
var (
	ErrLearnerIDEmpty             = errors.New("learner ID cannot be empty")
	ErrLearnerTimezoneInvalid     = errors.New("learner timezone is not a valid IANA zone name")
	ErrLearnerRegisterInvalid     = errors.New("invalid register preference")
	ErrLearnerIntensityInvalid    = errors.New("invalid correction intensity")
	ErrLearnerModeInvalid         = errors.New("invalid practice mode")
	ErrLearnerRampInvalid         = errors.New("invalid difficulty ramp")
	ErrLearnerStreakNegative      = errors.New("streak count cannot be negative")
	ErrLearnerPromptTimeInvalid   = errors.New("daily prompt time must be HH:MM")
	ErrLearnerSummaryTooLong      = errors.New("learner summary exceeds maximum length")
	ErrLearnerPatternKindInvalid  = errors.New("recurring error pattern has invalid issue kind")
	ErrLearnerPatternCountInvalid = errors.New("recurring error pattern count must be positive")
)

// MaxLearnerSummaryLength caps the free-text rolling summary.
const MaxLearnerSummaryLength = 1000

// LearnerProfile is the single durable record describing one learner: who
// they are, how they like to be coached, and the rolling state the coaching
// loop maintains about them (summary, recurring error patterns, streak).
// There is exactly one profile per learner; it is mutated by the turn
// pipeline and the cadence scheduler and deleted only by an explicit wipe.
type LearnerProfile struct {
	ID                     uuid.UUID           `json:"id"`
	DisplayName            string              `json:"display_name"`
	Locale                 string              `json:"locale"`
	Timezone               string              `json:"timezone"`
	CurrentLevel           string              `json:"current_level"`
	TargetLevel            string              `json:"target_level"`
	Register               RegisterPreference  `json:"register_preference"`
	Intensity              CorrectionIntensity `json:"correction_intensity"`
	Mode                   PracticeMode        `json:"practice_mode"`
	Ramp                   DifficultyRamp      `json:"difficulty_ramp"`
	LearnerSummary         string              `json:"learner_summary"`
	RecurringErrorPatterns map[IssueKind]int   `json:"recurring_error_patterns"`
	StreakCount            int                 `json:"streak_count"`
	DailyPromptTime        string              `json:"daily_prompt_time"`
	LastActiveAt           *time.Time          `json:"last_active_at,omitempty"`
	CreatedAt              time.Time           `json:"created_at"`
	UpdatedAt              time.Time           `json:"updated_at"`
}

// NewLearnerProfile creates a profile with the given identity and default
// personalization knobs: mixed register, normal correction intensity,
// conversation mode, normal ramp, morning prompt at 08:00.
func NewLearnerProfile(id uuid.UUID, displayName, timezone string) (*LearnerProfile, error) {
	now := time.Now().UTC()
	profile := &LearnerProfile{
		ID:                     id,
		DisplayName:            displayName,
		Locale:                 "en",
		Timezone:               timezone,
		CurrentLevel:           "beginner",
		TargetLevel:            "conversational",
		Register:               RegisterMixed,
		Intensity:              CorrectionNormal,
		Mode:                   ModeConversation,
		Ramp:                   RampNormal,
		RecurringErrorPatterns: map[IssueKind]int{},
		StreakCount:            0,
		DailyPromptTime:        "08:00",
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return profile, nil
}

// Validate checks the profile's invariants.
func (p *LearnerProfile) Validate() error {
	if p.ID == uuid.Nil {
		return ErrLearnerIDEmpty
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return ErrLearnerTimezoneInvalid
	}
	switch p.Register {
	case RegisterCasual, RegisterPolite, RegisterMixed:
	default:
		return ErrLearnerRegisterInvalid
	}
	switch p.Intensity {
	case CorrectionLight, CorrectionNormal, CorrectionStrict:
	default:
		return ErrLearnerIntensityInvalid
	}
	switch p.Mode {
	case ModeConversation, ModeDrill:
	default:
		return ErrLearnerModeInvalid
	}
	switch p.Ramp {
	case RampGentle, RampNormal, RampSteep:
	default:
		return ErrLearnerRampInvalid
	}
	if p.StreakCount < 0 {
		return ErrLearnerStreakNegative
	}
	if _, err := ParseClock(p.DailyPromptTime); err != nil {
		return ErrLearnerPromptTimeInvalid
	}
	if utf8.RuneCountInString(p.LearnerSummary) > MaxLearnerSummaryLength {
		return ErrLearnerSummaryTooLong
	}
	for kind, count := range p.RecurringErrorPatterns {
		if !kind.Valid() {
			return ErrLearnerPatternKindInvalid
		}
		if count <= 0 {
			return ErrLearnerPatternCountInvalid
		}
	}
	return nil
}

// Location resolves the learner's timezone. The profile is validated at
// construction, so a load failure here indicates corrupted stored data and
// falls back to UTC.
func (p *LearnerProfile) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NextIntensity cycles light -> normal -> strict -> light.
func (p *LearnerProfile) NextIntensity() CorrectionIntensity {
	switch p.Intensity {
	case CorrectionLight:
		return CorrectionNormal
	case CorrectionNormal:
		return CorrectionStrict
	default:
		return CorrectionLight
	}
}

// Clock is a time of day with minute resolution.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses a strict "HH:MM" 24-hour clock string.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, ErrLearnerPromptTimeInvalid
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}
