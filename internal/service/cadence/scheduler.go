// Package cadence owns the time-driven coaching jobs: the morning prompt,
// the afternoon nudge, and the Sunday weekly summary. All timers run in
// the learner's timezone, and the daily pair can be rescheduled at runtime
// when the learner changes their prompt time.
package cadence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/tskoli/kaiwa/internal/domain"
	"github.com/tskoli/kaiwa/internal/events"
	"github.com/tskoli/kaiwa/internal/llm"
	"github.com/tskoli/kaiwa/internal/messenger"
	"github.com/tskoli/kaiwa/internal/service"
	"github.com/tskoli/kaiwa/internal/store"
	"github.com/tskoli/kaiwa/internal/task"
)

// jobTimeout bounds each cadence job run.
const jobTimeout = 2 * time.Minute

// absenceThreshold is the number of whole absent days after which the
// daily job switches to the single gentle re-entry question.
const absenceThreshold = 3

// neverActiveDays stands in for "infinite absence" when the profile has no
// recorded activity at all.
const neverActiveDays = 1 << 20

// Config carries the scheduler's fixed timing knobs. The daily prompt time
// itself comes from the learner profile and can change at runtime.
type Config struct {
	WeeklyClock      domain.Clock
	NudgeOffsetHours int
}

// Scheduler registers and runs the cadence jobs on a cron runner in the
// learner's timezone. Entry IDs for the daily pair are held so Reschedule
// can swap exactly those two without touching the weekly entry.
type Scheduler struct {
	learnerID uuid.UUID
	learners  store.LearnerStore
	prompts   store.PromptStore
	grades    store.GradeStore
	summaries store.SummaryStore
	coach     llm.Coach
	messenger messenger.Messenger
	emitter   events.EventEmitter
	config    Config
	logger    *slog.Logger

	mu          sync.Mutex
	cron        *cron.Cron
	dailyEntry  cron.EntryID
	nudgeEntry  cron.EntryID
	weeklyEntry cron.EntryID
}

// NewScheduler creates a Scheduler. Start must be called before any job
// fires.
func NewScheduler(
	learnerID uuid.UUID,
	learners store.LearnerStore,
	prompts store.PromptStore,
	grades store.GradeStore,
	summaries store.SummaryStore,
	coach llm.Coach,
	msgr messenger.Messenger,
	emitter events.EventEmitter,
	config Config,
	log *slog.Logger,
) *Scheduler {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for Scheduler")
	}

	return &Scheduler{
		learnerID: learnerID,
		learners:  learners,
		prompts:   prompts,
		grades:    grades,
		summaries: summaries,
		coach:     coach,
		messenger: msgr,
		emitter:   emitter,
		config:    config,
		logger:    log.With(slog.String("component", "cadence_scheduler")),
	}
}

// Start loads the learner's timezone and daily prompt time, registers the
// three jobs, and starts the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	profile, err := s.learners.Get(ctx, s.learnerID)
	if err != nil {
		return fmt.Errorf("failed to load learner profile: %w", err)
	}
	daily, err := domain.ParseClock(profile.DailyPromptTime)
	if err != nil {
		return fmt.Errorf("invalid daily prompt time %q: %w", profile.DailyPromptTime, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cron = cron.New(cron.WithLocation(profile.Location()))

	if err := s.registerDailyPair(daily); err != nil {
		return err
	}

	weeklySpec := fmt.Sprintf("%d %d * * 0", s.config.WeeklyClock.Minute, s.config.WeeklyClock.Hour)
	s.weeklyEntry, err = s.cron.AddFunc(weeklySpec, s.runWeeklySummary)
	if err != nil {
		return fmt.Errorf("failed to register weekly job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("cadence scheduler started",
		slog.String("timezone", profile.Timezone),
		slog.String("daily_prompt_time", profile.DailyPromptTime))
	return nil
}

// Stop halts the cron runner and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.logger.Info("cadence scheduler stopped")
}

// Reschedule swaps the daily prompt and nudge entries to a new time. The
// weekly entry is left untouched.
func (s *Scheduler) Reschedule(dailyTime string) error {
	daily, err := domain.ParseClock(dailyTime)
	if err != nil {
		return fmt.Errorf("invalid daily prompt time %q: %w", dailyTime, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return fmt.Errorf("scheduler not started")
	}

	s.cron.Remove(s.dailyEntry)
	s.cron.Remove(s.nudgeEntry)
	if err := s.registerDailyPair(daily); err != nil {
		return err
	}

	s.logger.Info("cadence rescheduled", slog.String("daily_prompt_time", dailyTime))
	return nil
}

// registerDailyPair adds the daily prompt entry and its nudge entry offset
// by the configured hours, wrapping past midnight. Caller holds s.mu.
func (s *Scheduler) registerDailyPair(daily domain.Clock) error {
	var err error

	dailySpec := fmt.Sprintf("%d %d * * *", daily.Minute, daily.Hour)
	s.dailyEntry, err = s.cron.AddFunc(dailySpec, s.runDailyPrompt)
	if err != nil {
		return fmt.Errorf("failed to register daily job: %w", err)
	}

	nudgeHour := (daily.Hour + s.config.NudgeOffsetHours) % 24
	nudgeSpec := fmt.Sprintf("%d %d * * *", daily.Minute, nudgeHour)
	s.nudgeEntry, err = s.cron.AddFunc(nudgeSpec, s.runNudge)
	if err != nil {
		return fmt.Errorf("failed to register nudge job: %w", err)
	}

	return nil
}

// runDailyPrompt sends the morning question set. Absence and streak are
// both derived from the same profile snapshot so the two rules cannot
// disagree about when the learner was last active.
func (s *Scheduler) runDailyPrompt() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	profile, err := s.learners.Get(ctx, s.learnerID)
	if err != nil {
		s.logger.Error("daily job: failed to load profile", slog.String("error", err.Error()))
		return
	}
	now := time.Now().In(profile.Location())

	absence := absenceDays(profile.LastActiveAt, now)
	if absence <= 1 {
		profile.StreakCount++
	} else {
		profile.StreakCount = 1
	}
	if err := s.learners.Update(ctx, profile); err != nil {
		s.logger.Error("daily job: failed to update streak", slog.String("error", err.Error()))
		return
	}

	kinds := []llm.QuestionKind{llm.QuestionWeakTag, llm.QuestionReview, llm.QuestionOpenTopic}
	if absence >= absenceThreshold {
		kinds = []llm.QuestionKind{llm.QuestionEasyReview}
	}

	questions, err := s.coach.GenerateQuestions(ctx, profile, kinds)
	if err != nil {
		s.logger.Error("daily job: question generation failed", slog.String("error", err.Error()))
		return
	}

	created := make([]*domain.DailyPrompt, 0, len(questions))
	for _, q := range questions {
		prompt, err := domain.NewDailyPrompt(s.learnerID, q.PromptText, q.Gloss, q.TargetSkills, q.Difficulty)
		if err != nil {
			s.logger.Error("daily job: generated question invalid", slog.String("error", err.Error()))
			continue
		}
		if err := s.prompts.Create(ctx, prompt); err != nil {
			s.logger.Error("daily job: failed to store prompt", slog.String("error", err.Error()))
			continue
		}
		created = append(created, prompt)
	}
	if len(created) == 0 {
		s.logger.Error("daily job: no prompts created")
		return
	}

	if err := s.messenger.SendText(ctx, service.FormatDailyPrompts(created, profile.StreakCount)); err != nil {
		s.logger.Error("daily job: failed to deliver prompts", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("daily prompts sent",
		slog.Int("count", len(created)),
		slog.Int("absence_days", absence),
		slog.Int("streak", profile.StreakCount))
}

// runNudge reminds the learner about the oldest prompt still unanswered
// from the morning batch. A fully answered batch is a silent no-op.
func (s *Scheduler) runNudge() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	profile, err := s.learners.Get(ctx, s.learnerID)
	if err != nil {
		s.logger.Error("nudge job: failed to load profile", slog.String("error", err.Error()))
		return
	}
	now := time.Now().In(profile.Location())

	// The nudge fires NudgeOffsetHours after the prompts were created,
	// which lands past midnight for evening schedules. Subtracting the
	// offset recovers the day the morning batch belongs to.
	promptDay := now.Add(-time.Duration(s.config.NudgeOffsetHours) * time.Hour)
	pending, err := s.prompts.ListUnansweredForDay(ctx, s.learnerID, promptDay)
	if err != nil {
		s.logger.Error("nudge job: failed to list prompts", slog.String("error", err.Error()))
		return
	}
	if len(pending) == 0 {
		return
	}

	if err := s.messenger.SendText(ctx, service.FormatNudge(pending[0])); err != nil {
		s.logger.Error("nudge job: failed to deliver nudge", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("nudge sent", slog.String("prompt_id", pending[0].ID.String()))
}

// runWeeklySummary rolls up the trailing seven days. A week with no graded
// turns sends a short notice and persists nothing.
func (s *Scheduler) runWeeklySummary() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	profile, err := s.learners.Get(ctx, s.learnerID)
	if err != nil {
		s.logger.Error("weekly job: failed to load profile", slog.String("error", err.Error()))
		return
	}
	now := time.Now().In(profile.Location())

	grades, err := s.grades.ListSince(ctx, s.learnerID, now.AddDate(0, 0, -7).UTC())
	if err != nil {
		s.logger.Error("weekly job: failed to load grades", slog.String("error", err.Error()))
		return
	}
	if len(grades) == 0 {
		notice := "Quiet week, nothing to report. A single voice message tomorrow restarts the engine."
		if err := s.messenger.SendText(ctx, notice); err != nil {
			s.logger.Error("weekly job: failed to deliver notice", slog.String("error", err.Error()))
		}
		return
	}

	resp, err := s.coach.WeeklySummary(ctx, profile, grades)
	if err != nil {
		s.logger.Error("weekly job: summary generation failed", slog.String("error", err.Error()))
		return
	}

	weekStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -6)
	summary, err := domain.NewWeeklySummary(
		s.learnerID, weekStart.UTC(),
		resp.Highlights, resp.WeakAreas, resp.Improvements, resp.RecommendedFocus,
	)
	if err != nil {
		s.logger.Error("weekly job: summary invalid", slog.String("error", err.Error()))
		return
	}
	if err := s.summaries.Create(ctx, summary); err != nil {
		s.logger.Error("weekly job: failed to store summary", slog.String("error", err.Error()))
		return
	}

	if err := s.messenger.SendText(ctx, service.FormatWeeklyReport(summary, resp.StreakMessage, len(grades))); err != nil {
		s.logger.Error("weekly job: failed to deliver report", slog.String("error", err.Error()))
	}

	s.emitRefresh(ctx)
	s.logger.Info("weekly summary sent", slog.Int("graded_turns", len(grades)))
}

// emitRefresh runs the same learner-refresh path as the post-turn hook.
func (s *Scheduler) emitRefresh(ctx context.Context) {
	event, err := events.NewTaskRequestEvent(task.TaskTypeLearnerRefresh, map[string]string{
		"learner_id": s.learnerID.String(),
	})
	if err != nil {
		s.logger.Error("weekly job: failed to build refresh event", slog.String("error", err.Error()))
		return
	}
	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		s.logger.Error("weekly job: failed to emit refresh event", slog.String("error", err.Error()))
	}
}

// absenceDays counts whole calendar days between the last activity and
// now, in the learner's timezone. A profile with no recorded activity
// counts as absent forever.
func absenceDays(lastActiveAt *time.Time, now time.Time) int {
	if lastActiveAt == nil {
		return neverActiveDays
	}
	last := lastActiveAt.In(now.Location())
	lastDay := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, now.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return int(today.Sub(lastDay).Hours() / 24)
}
