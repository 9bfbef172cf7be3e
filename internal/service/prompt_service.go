package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tskoli/kaiwa/internal/domain"
	"github.com/tskoli/kaiwa/internal/llm"
	"github.com/tskoli/kaiwa/internal/messenger"
	"github.com/tskoli/kaiwa/internal/platform/logger"
	"github.com/tskoli/kaiwa/internal/store"
)

// drillLookback is how many recent grades ReplayDrill scans for a
// correction to practice.
const drillLookback = 5

// PromptService handles on-demand practice material: free-topic questions
// and drill replays built from recent corrections.
type PromptService struct {
	learners  store.LearnerStore
	prompts   store.PromptStore
	grades    store.GradeStore
	coach     llm.Coach
	messenger messenger.Messenger
	logger    *slog.Logger
}

// NewPromptService creates a PromptService.
func NewPromptService(
	learners store.LearnerStore,
	prompts store.PromptStore,
	grades store.GradeStore,
	coach llm.Coach,
	msgr messenger.Messenger,
	log *slog.Logger,
) *PromptService {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for PromptService")
	}

	return &PromptService{
		learners:  learners,
		prompts:   prompts,
		grades:    grades,
		coach:     coach,
		messenger: msgr,
		logger:    log.With(slog.String("component", "prompt_service")),
	}
}

// FreeTopic generates one open conversation question on demand, stores it
// as an unanswered prompt, and sends it to the learner.
func (s *PromptService) FreeTopic(ctx context.Context, learnerID uuid.UUID) (*domain.DailyPrompt, error) {
	const op = "free_topic"
	log := logger.FromContextOrDefault(ctx, s.logger)

	profile, err := s.learners.Get(ctx, learnerID)
	if err != nil {
		return nil, NewServiceError(op, "failed to load learner profile", err)
	}

	questions, err := s.coach.GenerateQuestions(ctx, profile, []llm.QuestionKind{llm.QuestionOpenTopic})
	if err != nil {
		return nil, NewServiceError(op, "failed to generate question", err)
	}
	if len(questions) == 0 {
		return nil, NewServiceError(op, "generator returned no question", llm.ErrInvalidResponse)
	}
	q := questions[0]

	prompt, err := domain.NewDailyPrompt(learnerID, q.PromptText, q.Gloss, q.TargetSkills, q.Difficulty)
	if err != nil {
		return nil, NewServiceError(op, "generated question is invalid", err)
	}
	if err := s.prompts.Create(ctx, prompt); err != nil {
		return nil, NewServiceError(op, "failed to store prompt", err)
	}

	text := prompt.PromptText
	if prompt.Gloss != "" {
		text = fmt.Sprintf("%s\n(%s)", prompt.PromptText, prompt.Gloss)
	}
	if err := s.messenger.SendText(ctx, text); err != nil {
		log.Error("failed to deliver free-topic prompt", slog.String("error", err.Error()))
	}

	return prompt, nil
}

// ReplayDrill turns the most recent correction into a say-it-again drill
// and sends it. With no recent corrections the learner gets a short notice
// and no drill is produced.
func (s *PromptService) ReplayDrill(ctx context.Context, learnerID uuid.UUID) (string, error) {
	const op = "replay_drill"
	log := logger.FromContextOrDefault(ctx, s.logger)

	grades, err := s.grades.ListRecent(ctx, learnerID, drillLookback)
	if err != nil {
		return "", NewServiceError(op, "failed to load recent grades", err)
	}

	var issue *domain.Issue
	for _, g := range grades {
		if len(g.Issues) > 0 {
			issue = &g.Issues[0]
			break
		}
	}
	if issue == nil {
		notice := "No recent corrections to drill. Do a few voice turns first."
		if err := s.messenger.SendText(ctx, notice); err != nil {
			log.Warn("failed to deliver drill notice", slog.String("error", err.Error()))
		}
		return "", nil
	}

	drill := fmt.Sprintf("Drill: say this correctly.\n\n%s\n\nTarget: %s", issue.Original, issue.Corrected)
	if issue.Explanation != "" {
		drill = drill + "\n" + issue.Explanation
	}
	if err := s.messenger.SendText(ctx, drill); err != nil {
		return "", NewServiceError(op, "failed to deliver drill", err)
	}

	log.Debug("drill replayed",
		slog.String("learner_id", learnerID.String()),
		slog.String("kind", string(issue.Kind)))
	return drill, nil
}
