package domain

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// IssueKind classifies a correction raised by the grader.
type IssueKind string

const (
	IssueGrammar       IssueKind = "grammar"
	IssueVocab         IssueKind = "vocab"
	IssueNaturalness   IssueKind = "naturalness"
	IssuePronunciation IssueKind = "pronunciation"
	IssueFluency       IssueKind = "fluency"
)

// Valid reports whether the kind is one of the five recognized categories.
func (k IssueKind) Valid() bool {
	switch k {
	case IssueGrammar, IssueVocab, IssueNaturalness, IssuePronunciation, IssueFluency:
		return true
	default:
		return false
	}
}

// Issue is one structured correction: what the learner said, what they
// should have said, and why.
type Issue struct {
	Kind        IssueKind `json:"kind"`
	Original    string    `json:"original"`
	Corrected   string    `json:"corrected"`
	Explanation string    `json:"explanation,omitempty"`
}

// Score bounds for every sub-score and the overall score.
const (
	MinScore = 0
	MaxScore = 100
)

// Grade validation errors.
var (
	ErrGradeIDEmpty         = errors.New("grade ID cannot be empty")
	ErrGradeMessageEmpty    = errors.New("grade message ID cannot be empty")
	ErrGradeScoreOutOfRange = errors.New("grade scores must be between 0 and 100")
	ErrGradeIssueInvalid    = errors.New("grade issue has invalid kind")
)

// Scores are the six numeric sub-scores attached to a graded turn.
type Scores struct {
	Overall       int `json:"overall"`
	Grammar       int `json:"grammar"`
	Vocab         int `json:"vocab"`
	Pronunciation int `json:"pronunciation"`
	Fluency       int `json:"fluency"`
	Naturalness   int `json:"naturalness"`
}

// Weights used when the grader omits the overall score.
const (
	weightGrammar       = 0.25
	weightVocab         = 0.20
	weightPronunciation = 0.20
	weightFluency       = 0.20
	weightNaturalness   = 0.15
)

// WeightedOverall computes the weighted overall score from the sub-scores.
func (s Scores) WeightedOverall() int {
	total := float64(s.Grammar)*weightGrammar +
		float64(s.Vocab)*weightVocab +
		float64(s.Pronunciation)*weightPronunciation +
		float64(s.Fluency)*weightFluency +
		float64(s.Naturalness)*weightNaturalness
	return int(math.Round(total))
}

func (s Scores) inRange() bool {
	for _, v := range []int{s.Overall, s.Grammar, s.Vocab, s.Pronunciation, s.Fluency, s.Naturalness} {
		if v < MinScore || v > MaxScore {
			return false
		}
	}
	return true
}

// Grade is the evaluation of exactly one learner message. Grades are
// immutable once written and are never orphaned: the referenced message is
// always persisted first (same transaction).
type Grade struct {
	ID          uuid.UUID `json:"id"`
	MessageID   uuid.UUID `json:"message_id"`
	Scores      Scores    `json:"scores"`
	Issues      []Issue   `json:"issues"`
	Suggestions []string  `json:"suggestions"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewGrade creates a grade for a learner message. If scores.Overall is zero
// it is derived from the weighted sub-scores.
func NewGrade(messageID uuid.UUID, scores Scores, issues []Issue, suggestions []string) (*Grade, error) {
	if scores.Overall == 0 {
		scores.Overall = scores.WeightedOverall()
	}
	grade := &Grade{
		ID:          uuid.New(),
		MessageID:   messageID,
		Scores:      scores,
		Issues:      issues,
		Suggestions: suggestions,
		CreatedAt:   time.Now().UTC(),
	}
	if err := grade.Validate(); err != nil {
		return nil, err
	}
	return grade, nil
}

// Validate checks the grade's invariants.
func (g *Grade) Validate() error {
	if g.ID == uuid.Nil {
		return ErrGradeIDEmpty
	}
	if g.MessageID == uuid.Nil {
		return ErrGradeMessageEmpty
	}
	if !g.Scores.inRange() {
		return ErrGradeScoreOutOfRange
	}
	for _, issue := range g.Issues {
		if !issue.Kind.Valid() {
			return ErrGradeIssueInvalid
		}
	}
	return nil
}
