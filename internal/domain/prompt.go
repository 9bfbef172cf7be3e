package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Daily prompt validation errors.
var (
	ErrPromptIDEmpty      = errors.New("daily prompt ID cannot be empty")
	ErrPromptLearnerEmpty = errors.New("daily prompt learner ID cannot be empty")
	ErrPromptTextEmpty    = errors.New("daily prompt text cannot be empty")
)

// DailyPrompt is one generated practice question pushed to the learner by
// the morning cadence job. A prompt is marked answered at most once; the
// afternoon nudge only ever considers prompts still unanswered today.
type DailyPrompt struct {
	ID           uuid.UUID  `json:"id"`
	LearnerID    uuid.UUID  `json:"learner_id"`
	PromptText   string     `json:"prompt_text"`
	Gloss        string     `json:"gloss,omitempty"`
	TargetSkills []string   `json:"target_skills"`
	Difficulty   string     `json:"difficulty,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	AnsweredAt   *time.Time `json:"answered_at,omitempty"`
}

// NewDailyPrompt creates an unanswered prompt.
func NewDailyPrompt(learnerID uuid.UUID, text, gloss string, targetSkills []string, difficulty string) (*DailyPrompt, error) {
	prompt := &DailyPrompt{
		ID:           uuid.New(),
		LearnerID:    learnerID,
		PromptText:   text,
		Gloss:        gloss,
		TargetSkills: targetSkills,
		Difficulty:   difficulty,
		CreatedAt:    time.Now().UTC(),
	}
	if err := prompt.Validate(); err != nil {
		return nil, err
	}
	return prompt, nil
}

// Validate checks the prompt's invariants.
func (p *DailyPrompt) Validate() error {
	if p.ID == uuid.Nil {
		return ErrPromptIDEmpty
	}
	if p.LearnerID == uuid.Nil {
		return ErrPromptLearnerEmpty
	}
	if p.PromptText == "" {
		return ErrPromptTextEmpty
	}
	return nil
}

// Answered reports whether the prompt has already been consumed.
func (p *DailyPrompt) Answered() bool {
	return p.AnsweredAt != nil
}
