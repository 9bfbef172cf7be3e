package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tskoli/kaiwa/internal/domain"
	"github.com/tskoli/kaiwa/internal/platform/logger"
	"github.com/tskoli/kaiwa/internal/store"
)

// LearnerService manages the learner's profile and settings. Every update
// is a read-modify-write on a freshly loaded row so concurrent cadence jobs
// and turns never clobber each other's fields.
type LearnerService struct {
	learners store.LearnerStore
	logger   *slog.Logger
}

// NewLearnerService creates a LearnerService.
func NewLearnerService(learners store.LearnerStore, log *slog.Logger) *LearnerService {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for LearnerService")
	}

	return &LearnerService{
		learners: learners,
		logger:   log.With(slog.String("component", "learner_service")),
	}
}

// EnsureProfile returns the learner's profile, creating it with the given
// display name and timezone on first contact. A create that loses to a
// concurrent boot falls back to reading the winner's row.
func (s *LearnerService) EnsureProfile(ctx context.Context, learnerID uuid.UUID, displayName, timezone string) (*domain.LearnerProfile, error) {
	const op = "ensure_profile"

	profile, err := s.learners.Get(ctx, learnerID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, store.ErrLearnerNotFound) {
		return nil, NewServiceError(op, "failed to load learner profile", err)
	}

	profile, err = domain.NewLearnerProfile(learnerID, displayName, timezone)
	if err != nil {
		return nil, NewServiceError(op, "invalid learner profile settings", err)
	}
	if err := s.learners.Create(ctx, profile); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			existing, getErr := s.learners.Get(ctx, learnerID)
			if getErr != nil {
				return nil, NewServiceError(op, "failed to load learner profile", getErr)
			}
			return existing, nil
		}
		return nil, NewServiceError(op, "failed to create learner profile", err)
	}

	s.logger.Info("learner profile created",
		slog.String("learner_id", learnerID.String()),
		slog.String("timezone", timezone))
	return profile, nil
}

// GetProfile returns the learner's profile.
func (s *LearnerService) GetProfile(ctx context.Context, learnerID uuid.UUID) (*domain.LearnerProfile, error) {
	const op = "get_profile"

	profile, err := s.learners.Get(ctx, learnerID)
	if err != nil {
		return nil, NewServiceError(op, "failed to load learner profile", err)
	}
	return profile, nil
}

// ApplyRefresh replaces the rolling learner summary and the recurring
// error patterns in one write. The summary is clipped to the domain cap
// before validation.
func (s *LearnerService) ApplyRefresh(ctx context.Context, learnerID uuid.UUID, summary string, patterns map[domain.IssueKind]int) error {
	const op = "apply_refresh"

	return s.update(ctx, op, learnerID, func(profile *domain.LearnerProfile) error {
		runes := []rune(summary)
		if len(runes) > domain.MaxLearnerSummaryLength {
			summary = string(runes[:domain.MaxLearnerSummaryLength])
		}
		profile.LearnerSummary = summary
		profile.RecurringErrorPatterns = patterns
		return nil
	})
}

// UpdateDailyPromptTime changes when the morning prompt fires. The caller
// is responsible for rescheduling the cadence jobs afterwards.
func (s *LearnerService) UpdateDailyPromptTime(ctx context.Context, learnerID uuid.UUID, value string) (*domain.LearnerProfile, error) {
	const op = "update_daily_prompt_time"

	if _, err := domain.ParseClock(value); err != nil {
		return nil, NewServiceError(op, fmt.Sprintf("invalid time %q", value), ErrInvalidSetting)
	}

	return s.updateAndReturn(ctx, op, learnerID, func(profile *domain.LearnerProfile) error {
		profile.DailyPromptTime = value
		return nil
	})
}

// UpdateMode switches between conversation and drill practice.
func (s *LearnerService) UpdateMode(ctx context.Context, learnerID uuid.UUID, value string) (*domain.LearnerProfile, error) {
	const op = "update_mode"

	mode := domain.PracticeMode(value)
	switch mode {
	case domain.ModeConversation, domain.ModeDrill:
	default:
		return nil, NewServiceError(op, fmt.Sprintf("invalid mode %q", value), ErrInvalidSetting)
	}

	return s.updateAndReturn(ctx, op, learnerID, func(profile *domain.LearnerProfile) error {
		profile.Mode = mode
		return nil
	})
}

// UpdateIntensity sets the correction intensity. An empty value cycles to
// the next level in order light, normal, strict.
func (s *LearnerService) UpdateIntensity(ctx context.Context, learnerID uuid.UUID, value string) (*domain.LearnerProfile, error) {
	const op = "update_intensity"

	if value != "" {
		switch domain.CorrectionIntensity(value) {
		case domain.CorrectionLight, domain.CorrectionNormal, domain.CorrectionStrict:
		default:
			return nil, NewServiceError(op, fmt.Sprintf("invalid intensity %q", value), ErrInvalidSetting)
		}
	}

	return s.updateAndReturn(ctx, op, learnerID, func(profile *domain.LearnerProfile) error {
		if value == "" {
			profile.Intensity = profile.NextIntensity()
		} else {
			profile.Intensity = domain.CorrectionIntensity(value)
		}
		return nil
	})
}

// Wipe deletes the learner's profile and, through cascading deletes, every
// session, message, grade, review item, prompt, and summary. The confirmed
// flag is the second step of the two-step wipe; without it nothing is
// touched.
func (s *LearnerService) Wipe(ctx context.Context, learnerID uuid.UUID, confirmed bool) error {
	const op = "wipe"
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !confirmed {
		return NewServiceError(op, "confirmation step missing", ErrWipeNotConfirmed)
	}

	if err := s.learners.Delete(ctx, learnerID); err != nil {
		return NewServiceError(op, "failed to wipe learner data", err)
	}
	log.Info("learner data wiped", slog.String("learner_id", learnerID.String()))
	return nil
}

// update applies fn to a freshly loaded profile and persists it.
func (s *LearnerService) update(ctx context.Context, op string, learnerID uuid.UUID, fn func(*domain.LearnerProfile) error) error {
	_, err := s.updateAndReturn(ctx, op, learnerID, fn)
	return err
}

func (s *LearnerService) updateAndReturn(ctx context.Context, op string, learnerID uuid.UUID, fn func(*domain.LearnerProfile) error) (*domain.LearnerProfile, error) {
	profile, err := s.learners.Get(ctx, learnerID)
	if err != nil {
		return nil, NewServiceError(op, "failed to load learner profile", err)
	}
	if err := fn(profile); err != nil {
		return nil, NewServiceError(op, "failed to apply update", err)
	}
	if err := profile.Validate(); err != nil {
		return nil, NewServiceError(op, "update produced an invalid profile", err)
	}
	if err := s.learners.Update(ctx, profile); err != nil {
		return nil, NewServiceError(op, "failed to persist profile", err)
	}
	return profile, nil
}
