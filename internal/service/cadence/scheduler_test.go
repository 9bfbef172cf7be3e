package cadence

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tskoli/kaiwa/internal/domain"
	"github.com/tskoli/kaiwa/internal/events"
	"github.com/tskoli/kaiwa/internal/llm"
	"github.com/tskoli/kaiwa/internal/store"
	"github.com/tskoli/kaiwa/internal/task"
)

type stubLearnerStore struct {
	mu      sync.Mutex
	profile *domain.LearnerProfile
	getErr  error
}

func (s *stubLearnerStore) Create(context.Context, *domain.LearnerProfile) error { return nil }

func (s *stubLearnerStore) Get(context.Context, uuid.UUID) (*domain.LearnerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	cp := *s.profile
	return &cp, nil
}

func (s *stubLearnerStore) Update(_ context.Context, profile *domain.LearnerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *profile
	s.profile = &cp
	return nil
}

func (s *stubLearnerStore) Delete(context.Context, uuid.UUID) error { return nil }

func (s *stubLearnerStore) WithTx(*sql.Tx) store.LearnerStore { return s }

type stubPromptStore struct {
	mu        sync.Mutex
	created   []*domain.DailyPrompt
	pending   []*domain.DailyPrompt
	listedDay time.Time
}

func (s *stubPromptStore) Create(_ context.Context, prompt *domain.DailyPrompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *prompt
	s.created = append(s.created, &cp)
	return nil
}

func (s *stubPromptStore) ListForDay(context.Context, uuid.UUID, time.Time) ([]*domain.DailyPrompt, error) {
	return s.pending, nil
}

func (s *stubPromptStore) ListUnansweredForDay(_ context.Context, _ uuid.UUID, day time.Time) ([]*domain.DailyPrompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listedDay = day
	return s.pending, nil
}

func (s *stubPromptStore) MarkAnswered(context.Context, uuid.UUID, time.Time) error { return nil }

func (s *stubPromptStore) WithTx(*sql.Tx) store.PromptStore { return s }

type stubGradeStore struct {
	grades []*domain.Grade
}

func (s *stubGradeStore) Create(context.Context, *domain.Grade) error { return nil }

func (s *stubGradeStore) GetByMessage(context.Context, uuid.UUID) (*domain.Grade, error) {
	return nil, store.ErrGradeNotFound
}

func (s *stubGradeStore) ListRecent(context.Context, uuid.UUID, int) ([]*domain.Grade, error) {
	return s.grades, nil
}

func (s *stubGradeStore) ListSince(context.Context, uuid.UUID, time.Time) ([]*domain.Grade, error) {
	return s.grades, nil
}

func (s *stubGradeStore) CountForLearner(context.Context, uuid.UUID) (int, error) {
	return len(s.grades), nil
}

func (s *stubGradeStore) WithTx(*sql.Tx) store.GradeStore { return s }

type stubSummaryStore struct {
	mu      sync.Mutex
	created []*domain.WeeklySummary
}

func (s *stubSummaryStore) Create(_ context.Context, summary *domain.WeeklySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *summary
	s.created = append(s.created, &cp)
	return nil
}

func (s *stubSummaryStore) GetLatest(context.Context, uuid.UUID) (*domain.WeeklySummary, error) {
	return nil, store.ErrNotFound
}

func (s *stubSummaryStore) WithTx(*sql.Tx) store.SummaryStore { return s }

type stubCoach struct {
	mu        sync.Mutex
	lastKinds []llm.QuestionKind
	summaryResp *llm.SummaryResponse
}

func (c *stubCoach) GradeTurn(context.Context, llm.GradeRequest) (*llm.GradeResponse, error) {
	return nil, errors.New("not used")
}

func (c *stubCoach) GenerateQuestions(_ context.Context, _ *domain.LearnerProfile, kinds []llm.QuestionKind) ([]llm.GeneratedQuestion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastKinds = kinds
	out := make([]llm.GeneratedQuestion, len(kinds))
	for i, kind := range kinds {
		out[i] = llm.GeneratedQuestion{PromptText: "question for " + string(kind)}
	}
	return out, nil
}

func (c *stubCoach) WeeklySummary(context.Context, *domain.LearnerProfile, []*domain.Grade) (*llm.SummaryResponse, error) {
	if c.summaryResp != nil {
		return c.summaryResp, nil
	}
	return &llm.SummaryResponse{Highlights: []string{"good week"}}, nil
}

func (c *stubCoach) RewriteLearnerSummary(_ context.Context, current string, _ []*domain.Grade) (string, error) {
	return current, nil
}

type stubMessenger struct {
	mu    sync.Mutex
	texts []string
}

func (m *stubMessenger) SendText(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return nil
}

func (m *stubMessenger) SendVoice(context.Context, []byte, string, string) error { return nil }

type stubEmitter struct {
	mu     sync.Mutex
	events []*events.TaskRequestEvent
}

func (e *stubEmitter) EmitEvent(_ context.Context, event *events.TaskRequestEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

type fixture struct {
	learners  *stubLearnerStore
	prompts   *stubPromptStore
	grades    *stubGradeStore
	summaries *stubSummaryStore
	coach     *stubCoach
	messenger *stubMessenger
	emitter   *stubEmitter
	scheduler *Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	profile, err := domain.NewLearnerProfile(uuid.New(), "Aki", "UTC")
	require.NoError(t, err)

	f := &fixture{
		learners:  &stubLearnerStore{profile: profile},
		prompts:   &stubPromptStore{},
		grades:    &stubGradeStore{},
		summaries: &stubSummaryStore{},
		coach:     &stubCoach{},
		messenger: &stubMessenger{},
		emitter:   &stubEmitter{},
	}
	f.scheduler = NewScheduler(
		profile.ID,
		f.learners, f.prompts, f.grades, f.summaries,
		f.coach, f.messenger, f.emitter,
		Config{WeeklyClock: domain.Clock{Hour: 18}, NudgeOffsetHours: 6},
		slog.New(slog.NewJSONHandler(io.Discard, nil)),
	)
	return f
}

func TestAbsenceDays(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	ptr := func(t time.Time) *time.Time { return &t }

	tests := []struct {
		name string
		last *time.Time
		want int
	}{
		{name: "never active", last: nil, want: neverActiveDays},
		{name: "active earlier today", last: ptr(now.Add(-2 * time.Hour)), want: 0},
		{name: "active yesterday evening", last: ptr(time.Date(2026, 8, 28, 23, 50, 0, 0, time.UTC)), want: 1},
		{name: "three days quiet", last: ptr(now.AddDate(0, 0, -3)), want: 3},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, absenceDays(tc.last, now))
		})
	}
}

func TestRunDailyPrompt_ActiveLearner(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	lastActive := time.Now().UTC().Add(-20 * time.Hour)
	f.learners.profile.LastActiveAt = &lastActive
	f.learners.profile.StreakCount = 4

	f.scheduler.runDailyPrompt()

	// Full three-question set and an extended streak.
	assert.Equal(t, []llm.QuestionKind{llm.QuestionWeakTag, llm.QuestionReview, llm.QuestionOpenTopic}, f.coach.lastKinds)
	assert.Len(t, f.prompts.created, 3)
	assert.Equal(t, 5, f.learners.profile.StreakCount)

	require.Len(t, f.messenger.texts, 1)
	assert.Contains(t, f.messenger.texts[0], "Good morning!")
	assert.Contains(t, f.messenger.texts[0], "Streak: 5 days")
}

func TestRunDailyPrompt_AbsentLearner(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	lastActive := time.Now().UTC().AddDate(0, 0, -5)
	f.learners.profile.LastActiveAt = &lastActive
	f.learners.profile.StreakCount = 12

	f.scheduler.runDailyPrompt()

	// One gentle re-entry question, streak reset.
	assert.Equal(t, []llm.QuestionKind{llm.QuestionEasyReview}, f.coach.lastKinds)
	assert.Len(t, f.prompts.created, 1)
	assert.Equal(t, 1, f.learners.profile.StreakCount)
}

func TestRunDailyPrompt_NeverActive(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.scheduler.runDailyPrompt()

	assert.Equal(t, []llm.QuestionKind{llm.QuestionEasyReview}, f.coach.lastKinds)
	assert.Equal(t, 1, f.learners.profile.StreakCount)
}

func TestRunNudge(t *testing.T) {
	t.Parallel()

	t.Run("pending prompt", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		prompt, err := domain.NewDailyPrompt(f.learners.profile.ID, "今日の予定は？", "", nil, "")
		require.NoError(t, err)
		f.prompts.pending = []*domain.DailyPrompt{prompt}

		f.scheduler.runNudge()

		require.Len(t, f.messenger.texts, 1)
		assert.Contains(t, f.messenger.texts[0], "今日の予定は？")
	})

	t.Run("all answered is silent", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.scheduler.runNudge()
		assert.Empty(t, f.messenger.texts)
	})

	t.Run("queries the morning batch's day", func(t *testing.T) {
		t.Parallel()

		// With an evening prompt time the nudge fires after midnight;
		// the lookup must land on the day the prompts were created,
		// not the day the nudge runs.
		f := newFixture(t)
		f.scheduler.runNudge()

		want := time.Now().UTC().Add(-6 * time.Hour)
		assert.WithinDuration(t, want, f.prompts.listedDay, time.Minute)
	})
}

func TestRunWeeklySummary(t *testing.T) {
	t.Parallel()

	t.Run("quiet week sends a notice only", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.scheduler.runWeeklySummary()

		require.Len(t, f.messenger.texts, 1)
		assert.Contains(t, f.messenger.texts[0], "Quiet week")
		assert.Empty(t, f.summaries.created)
		assert.Empty(t, f.emitter.events)
	})

	t.Run("graded week persists and reports", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.grades.grades = []*domain.Grade{
			{ID: uuid.New(), MessageID: uuid.New(), Scores: domain.Scores{Overall: 75}, CreatedAt: time.Now().UTC()},
			{ID: uuid.New(), MessageID: uuid.New(), Scores: domain.Scores{Overall: 80}, CreatedAt: time.Now().UTC()},
		}

		f.scheduler.runWeeklySummary()

		require.Len(t, f.summaries.created, 1)
		require.Len(t, f.messenger.texts, 1)
		assert.Contains(t, f.messenger.texts[0], "Weekly report (2 graded turns)")

		require.Len(t, f.emitter.events, 1)
		assert.Equal(t, task.TaskTypeLearnerRefresh, f.emitter.events[0].Type)
	})
}

func TestScheduler_StartAndReschedule(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	// Reschedule before Start is refused.
	err := f.scheduler.Reschedule("09:00")
	require.Error(t, err)

	require.NoError(t, f.scheduler.Start(context.Background()))
	defer f.scheduler.Stop()

	require.NoError(t, f.scheduler.Reschedule("21:15"))

	err = f.scheduler.Reschedule("not-a-time")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLearnerPromptTimeInvalid)
}

func TestScheduler_StartInvalidPromptTime(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.learners.profile.DailyPromptTime = "24:99"

	err := f.scheduler.Start(context.Background())
	require.Error(t, err)
}
