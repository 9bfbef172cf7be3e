package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tskoli/kaiwa/internal/domain"
)

// seedGrades appends count grades with the given overall score. Timestamps
// advance one minute per grade across successive calls, so a later batch is
// strictly newer than an earlier one.
func seedGrades(grades *fakeGradeStore, count, overall int, issueKind domain.IssueKind) {
	offset := len(grades.grades)
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < count; i++ {
		g := &domain.Grade{
			ID:        uuid.New(),
			MessageID: uuid.New(),
			Scores: domain.Scores{
				Overall: overall,
				Grammar: overall,
				Vocab:   overall,
			},
			CreatedAt: base.Add(time.Duration(offset+i) * time.Minute),
		}
		if issueKind != "" {
			g.Issues = []domain.Issue{{Kind: issueKind, Original: "a", Corrected: "b"}}
		}
		grades.grades = append(grades.grades, g)
	}
}

func TestStatsService_Stats(t *testing.T) {
	t.Parallel()

	t.Run("no grades", func(t *testing.T) {
		t.Parallel()

		svc := NewStatsService(&fakeGradeStore{}, testLogger())
		view, err := svc.Stats(context.Background(), uuid.New())
		require.NoError(t, err)
		assert.Zero(t, view.GradedTurns)
		assert.Zero(t, view.WindowSize)
		assert.Empty(t, view.TopIssueKinds)
	})

	t.Run("single grade compares against itself", func(t *testing.T) {
		t.Parallel()

		grades := &fakeGradeStore{}
		seedGrades(grades, 1, 80, "")
		svc := NewStatsService(grades, testLogger())

		view, err := svc.Stats(context.Background(), uuid.New())
		require.NoError(t, err)
		assert.Equal(t, 1, view.GradedTurns)
		assert.InDelta(t, 80, view.Overall.Recent, 0.001)
		assert.InDelta(t, 0, view.Overall.Delta, 0.001)
	})

	t.Run("improving scores give a positive delta", func(t *testing.T) {
		t.Parallel()

		grades := &fakeGradeStore{}
		seedGrades(grades, 10, 60, "")
		seedGrades(grades, 10, 80, "")
		svc := NewStatsService(grades, testLogger())

		view, err := svc.Stats(context.Background(), uuid.New())
		require.NoError(t, err)
		assert.Equal(t, 20, view.GradedTurns)
		assert.Equal(t, 20, view.WindowSize)
		assert.InDelta(t, 80, view.Overall.Recent, 0.001)
		assert.InDelta(t, 60, view.Overall.Previous, 0.001)
		assert.InDelta(t, 20, view.Overall.Delta, 0.001)
		assert.InDelta(t, 20, view.BySkill["grammar"].Delta, 0.001)
	})

	t.Run("recurring issue kinds surface most frequent first", func(t *testing.T) {
		t.Parallel()

		grades := &fakeGradeStore{}
		seedGrades(grades, 5, 70, domain.IssueGrammar)
		seedGrades(grades, 3, 70, domain.IssueVocab)
		svc := NewStatsService(grades, testLogger())

		view, err := svc.Stats(context.Background(), uuid.New())
		require.NoError(t, err)
		require.NotEmpty(t, view.TopIssueKinds)
		assert.Equal(t, string(domain.IssueGrammar), view.TopIssueKinds[0])
	})
}

func TestTopKinds_Ordering(t *testing.T) {
	t.Parallel()

	got := topKinds(map[domain.IssueKind]int{
		domain.IssueVocab:       3,
		domain.IssueGrammar:     7,
		domain.IssueNaturalness: 3,
	})
	assert.Equal(t, []string{"grammar", "naturalness", "vocab"}, got)
}
