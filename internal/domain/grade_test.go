package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightedOverall(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		scores Scores
		want   int
	}{
		{
			name:   "uniform scores stay put",
			scores: Scores{Grammar: 80, Vocab: 80, Pronunciation: 80, Fluency: 80, Naturalness: 80},
			want:   80,
		},
		{
			name:   "grammar weighs heaviest",
			scores: Scores{Grammar: 100, Vocab: 0, Pronunciation: 0, Fluency: 0, Naturalness: 0},
			want:   25,
		},
		{
			name:   "naturalness weighs lightest",
			scores: Scores{Grammar: 0, Vocab: 0, Pronunciation: 0, Fluency: 0, Naturalness: 100},
			want:   15,
		},
		{
			name:   "mixed rounds to nearest",
			scores: Scores{Grammar: 90, Vocab: 70, Pronunciation: 85, Fluency: 60, Naturalness: 75},
			want:   77,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.scores.WeightedOverall())
		})
	}
}

func TestNewGrade(t *testing.T) {
	t.Parallel()

	scores := Scores{Overall: 80, Grammar: 85, Vocab: 75, Pronunciation: 80, Fluency: 78, Naturalness: 82}
	issues := []Issue{{Kind: IssueGrammar, Original: "行くでした", Corrected: "行きました"}}

	grade, err := NewGrade(uuid.New(), scores, issues, []string{"try 行ってきました"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, grade.ID)
	assert.Equal(t, scores, grade.Scores)
	assert.Len(t, grade.Issues, 1)
}

func TestGrade_Validate(t *testing.T) {
	t.Parallel()

	base := func() *Grade {
		return &Grade{
			ID:        uuid.New(),
			MessageID: uuid.New(),
			Scores:    Scores{Overall: 50, Grammar: 50, Vocab: 50, Pronunciation: 50, Fluency: 50, Naturalness: 50},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Grade)
		wantErr error
	}{
		{
			name:    "valid",
			mutate:  func(*Grade) {},
			wantErr: nil,
		},
		{
			name:    "missing message",
			mutate:  func(g *Grade) { g.MessageID = uuid.Nil },
			wantErr: ErrGradeMessageEmpty,
		},
		{
			name:    "score above range",
			mutate:  func(g *Grade) { g.Scores.Grammar = 101 },
			wantErr: ErrGradeScoreOutOfRange,
		},
		{
			name:    "score below range",
			mutate:  func(g *Grade) { g.Scores.Fluency = -1 },
			wantErr: ErrGradeScoreOutOfRange,
		},
		{
			name:    "issue with unknown kind",
			mutate:  func(g *Grade) { g.Issues = []Issue{{Kind: "spelling", Original: "a", Corrected: "b"}} },
			wantErr: ErrGradeIssueInvalid,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			grade := base()
			tc.mutate(grade)
			err := grade.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestAggregateIssuePatterns(t *testing.T) {
	t.Parallel()

	mk := func(kinds ...IssueKind) *Grade {
		issues := make([]Issue, 0, len(kinds))
		for _, k := range kinds {
			issues = append(issues, Issue{Kind: k, Original: "x", Corrected: "y"})
		}
		return &Grade{ID: uuid.New(), MessageID: uuid.New(), Issues: issues}
	}

	grades := []*Grade{
		mk(IssueGrammar, IssueVocab),
		mk(IssueGrammar),
		mk(IssueGrammar, IssueNaturalness),
	}

	patterns := AggregateIssuePatterns(grades)

	// Grammar recurs, vocab and naturalness are one-offs.
	assert.Equal(t, map[IssueKind]int{IssueGrammar: 3}, patterns)
}

func TestAggregateIssuePatterns_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, AggregateIssuePatterns(nil))
	assert.Empty(t, AggregateIssuePatterns([]*Grade{{ID: uuid.New(), MessageID: uuid.New()}}))
}
