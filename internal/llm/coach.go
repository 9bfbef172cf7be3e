// Package llm defines the language-model collaborator contracts consumed by
// the core: grading a turn, generating daily questions, producing the
// weekly summary, and rewriting the rolling learner summary. The contracts
// are a boundary between the application core and external model services;
// implementations live under internal/platform.
package llm

import (
	"context"

	"github.com/tskoli/kaiwa/internal/domain"
)

// GradeRequest carries everything the grader needs for one learner turn.
type GradeRequest struct {
	Profile     *domain.LearnerProfile
	Context     []*domain.Message
	Transcript  string
	DueItems    []*domain.ReviewItem
	DailyPrompt string
}

// Drill is an optional micro-exercise attached to a graded reply.
type Drill struct {
	Type     string `json:"type"`
	Prompt   string `json:"prompt"`
	Expected string `json:"expected,omitempty"`
}

// VocabEntry is one key vocabulary item surfaced by the grader.
type VocabEntry struct {
	Word    string `json:"word"`
	Reading string `json:"reading,omitempty"`
	Gloss   string `json:"gloss"`
}

// GradeResponse is the single structured result of a grading call: the
// conversational reply, the structured correction set, and the six
// sub-scores, returned atomically. A response that does not parse into this
// shape is a contract violation (ErrInvalidResponse), not a transport
// failure.
type GradeResponse struct {
	ReplyText   string         `json:"reply"`
	FollowUp    string         `json:"follow_up,omitempty"`
	Corrections []domain.Issue `json:"corrections"`
	Suggestions []string       `json:"suggestions,omitempty"`
	Scores      domain.Scores  `json:"scores"`
	Drill       *Drill         `json:"drill,omitempty"`
	Praise      string         `json:"praise,omitempty"`
	KeyVocab    []VocabEntry   `json:"key_vocab,omitempty"`
}

// GeneratedQuestion is one daily practice question from the question
// generator.
type GeneratedQuestion struct {
	PromptText   string   `json:"prompt_text"`
	Gloss        string   `json:"gloss,omitempty"`
	TargetSkills []string `json:"target_skills"`
	Difficulty   string   `json:"difficulty,omitempty"`
}

// SummaryResponse is the weekly rollup produced from a grade window.
type SummaryResponse struct {
	Highlights       []string `json:"highlights"`
	WeakAreas        []string `json:"weak_areas"`
	Improvements     []string `json:"improvements"`
	RecommendedFocus []string `json:"recommended_focus"`
	StreakMessage    string   `json:"streak_message,omitempty"`
}

// MaxLearnerSummaryChars caps the rewritten learner summary.
const MaxLearnerSummaryChars = domain.MaxLearnerSummaryLength

// QuestionKind hints passed to GenerateQuestions to shape the daily set.
type QuestionKind string

const (
	QuestionEasyReview QuestionKind = "easy_review"
	QuestionWeakTag    QuestionKind = "weak_tag"
	QuestionReview     QuestionKind = "review"
	QuestionOpenTopic  QuestionKind = "open_topic"
)

// Coach is the language-model collaborator.
type Coach interface {
	// GradeTurn makes the single grading call for one learner turn.
	GradeTurn(ctx context.Context, req GradeRequest) (*GradeResponse, error)

	// GenerateQuestions produces daily practice questions of the requested
	// kinds, one question per kind entry.
	GenerateQuestions(ctx context.Context, profile *domain.LearnerProfile, kinds []QuestionKind) ([]GeneratedQuestion, error)

	// WeeklySummary produces the weekly rollup for a grade window.
	WeeklySummary(ctx context.Context, profile *domain.LearnerProfile, grades []*domain.Grade) (*SummaryResponse, error)

	// RewriteLearnerSummary rewrites the rolling learner summary from the
	// current summary and a recent grade window. The result is plain text
	// capped at MaxLearnerSummaryChars.
	RewriteLearnerSummary(ctx context.Context, current string, grades []*domain.Grade) (string, error)
}
