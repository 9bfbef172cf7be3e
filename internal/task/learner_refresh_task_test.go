package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tskoli/kaiwa/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type stubProfileService struct {
	profile *domain.LearnerProfile
	getErr  error

	appliedSummary  string
	appliedPatterns map[domain.IssueKind]int
	applied         bool
}

func (s *stubProfileService) GetProfile(context.Context, uuid.UUID) (*domain.LearnerProfile, error) {
	return s.profile, s.getErr
}

func (s *stubProfileService) ApplyRefresh(_ context.Context, _ uuid.UUID, summary string, patterns map[domain.IssueKind]int) error {
	s.applied = true
	s.appliedSummary = summary
	s.appliedPatterns = patterns
	return nil
}

type stubGradeReader struct {
	grades []*domain.Grade
	err    error
}

func (s *stubGradeReader) ListRecent(context.Context, uuid.UUID, int) ([]*domain.Grade, error) {
	return s.grades, s.err
}

type stubRewriter struct {
	summary string
	err     error
}

func (s *stubRewriter) RewriteLearnerSummary(context.Context, string, []*domain.Grade) (string, error) {
	return s.summary, s.err
}

func newRefreshFixture(t *testing.T) (*stubProfileService, *stubGradeReader, *stubRewriter, uuid.UUID) {
	t.Helper()

	learnerID := uuid.New()
	profile, err := domain.NewLearnerProfile(learnerID, "Aki", "UTC")
	require.NoError(t, err)

	grades := make([]*domain.Grade, 0, 4)
	for i := 0; i < 4; i++ {
		grades = append(grades, &domain.Grade{
			ID:        uuid.New(),
			MessageID: uuid.New(),
			Issues:    []domain.Issue{{Kind: domain.IssueGrammar, Original: "a", Corrected: "b"}},
			CreatedAt: time.Now().UTC(),
		})
	}

	return &stubProfileService{profile: profile},
		&stubGradeReader{grades: grades},
		&stubRewriter{summary: "Getting comfortable with past tense."},
		learnerID
}

func TestNewLearnerRefreshTask_Validation(t *testing.T) {
	t.Parallel()

	profiles, grades, rewriter, learnerID := newRefreshFixture(t)

	tests := []struct {
		name    string
		build   func() (*LearnerRefreshTask, error)
		wantErr error
	}{
		{
			name: "nil profile service",
			build: func() (*LearnerRefreshTask, error) {
				return NewLearnerRefreshTask(learnerID, nil, grades, rewriter, testLogger())
			},
			wantErr: ErrNilProfileService,
		},
		{
			name: "nil grade reader",
			build: func() (*LearnerRefreshTask, error) {
				return NewLearnerRefreshTask(learnerID, profiles, nil, rewriter, testLogger())
			},
			wantErr: ErrNilGradeReader,
		},
		{
			name: "nil rewriter",
			build: func() (*LearnerRefreshTask, error) {
				return NewLearnerRefreshTask(learnerID, profiles, grades, nil, testLogger())
			},
			wantErr: ErrNilRewriter,
		},
		{
			name: "nil logger",
			build: func() (*LearnerRefreshTask, error) {
				return NewLearnerRefreshTask(learnerID, profiles, grades, rewriter, nil)
			},
			wantErr: ErrNilLogger,
		},
		{
			name: "empty learner ID",
			build: func() (*LearnerRefreshTask, error) {
				return NewLearnerRefreshTask(uuid.Nil, profiles, grades, rewriter, testLogger())
			},
			wantErr: ErrEmptyLearnerID,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := tc.build()
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestLearnerRefreshTask_Execute(t *testing.T) {
	t.Parallel()

	t.Run("rewrites summary and replaces patterns", func(t *testing.T) {
		t.Parallel()

		profiles, grades, rewriter, learnerID := newRefreshFixture(t)
		task, err := NewLearnerRefreshTask(learnerID, profiles, grades, rewriter, testLogger())
		require.NoError(t, err)
		assert.Equal(t, TaskStatusPending, task.Status())

		require.NoError(t, task.Execute(context.Background()))
		assert.Equal(t, TaskStatusCompleted, task.Status())
		assert.True(t, profiles.applied)
		assert.Equal(t, "Getting comfortable with past tense.", profiles.appliedSummary)
		assert.Equal(t, 4, profiles.appliedPatterns[domain.IssueGrammar])
	})

	t.Run("no grades is a completed no-op", func(t *testing.T) {
		t.Parallel()

		profiles, grades, rewriter, learnerID := newRefreshFixture(t)
		grades.grades = nil
		task, err := NewLearnerRefreshTask(learnerID, profiles, grades, rewriter, testLogger())
		require.NoError(t, err)

		require.NoError(t, task.Execute(context.Background()))
		assert.Equal(t, TaskStatusCompleted, task.Status())
		assert.False(t, profiles.applied)
	})

	t.Run("rewrite failure marks the task failed", func(t *testing.T) {
		t.Parallel()

		profiles, grades, rewriter, learnerID := newRefreshFixture(t)
		rewriter.err = errors.New("model unavailable")
		task, err := NewLearnerRefreshTask(learnerID, profiles, grades, rewriter, testLogger())
		require.NoError(t, err)

		require.Error(t, task.Execute(context.Background()))
		assert.Equal(t, TaskStatusFailed, task.Status())
		assert.False(t, profiles.applied)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		profiles, grades, rewriter, learnerID := newRefreshFixture(t)
		task, err := NewLearnerRefreshTask(learnerID, profiles, grades, rewriter, testLogger())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.Error(t, task.Execute(ctx))
		assert.Equal(t, TaskStatusFailed, task.Status())
	})
}

func TestLearnerRefreshTaskFactory_Hydrate(t *testing.T) {
	t.Parallel()

	profiles, grades, rewriter, learnerID := newRefreshFixture(t)
	factory := NewLearnerRefreshTaskFactory(profiles, grades, rewriter, testLogger())

	original, err := factory.CreateTask(learnerID)
	require.NoError(t, err)

	t.Run("preserves ID and status", func(t *testing.T) {
		t.Parallel()

		hydrated, err := factory.Hydrate(original.ID(), TaskTypeLearnerRefresh, original.Payload(), TaskStatusProcessing)
		require.NoError(t, err)
		assert.Equal(t, original.ID(), hydrated.ID())
		assert.Equal(t, TaskStatusProcessing, hydrated.Status())
		assert.Equal(t, original.Payload(), hydrated.Payload())
	})

	t.Run("unknown task type", func(t *testing.T) {
		t.Parallel()

		_, err := factory.Hydrate(uuid.New(), "mystery", []byte(`{}`), TaskStatusPending)
		assert.ErrorIs(t, err, ErrUnknownTaskType)
	})

	t.Run("malformed payload", func(t *testing.T) {
		t.Parallel()

		_, err := factory.Hydrate(uuid.New(), TaskTypeLearnerRefresh, []byte(`{`), TaskStatusPending)
		assert.Error(t, err)
	})
}
