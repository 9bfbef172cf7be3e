package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tskoli/kaiwa/internal/domain"
)

// RefreshGradeWindow is how many recent grades feed a learner refresh.
const RefreshGradeWindow = 20

// Common errors
var (
	ErrNilProfileService = errors.New("profile service cannot be nil")
	ErrNilGradeReader    = errors.New("grade reader cannot be nil")
	ErrNilRewriter       = errors.New("summary rewriter cannot be nil")
	ErrNilLogger         = errors.New("logger cannot be nil")
	ErrEmptyLearnerID    = errors.New("learner ID cannot be empty")
	ErrUnknownTaskType   = errors.New("unknown task type")
)

// ProfileService defines the profile operations a refresh needs. The
// implementation reloads the profile fresh before writing so a refresh
// never clobbers fields the turn pipeline changed concurrently.
type ProfileService interface {
	// GetProfile retrieves the learner profile
	GetProfile(ctx context.Context, learnerID uuid.UUID) (*domain.LearnerProfile, error)

	// ApplyRefresh stores the rewritten summary and aggregated patterns
	ApplyRefresh(ctx context.Context, learnerID uuid.UUID, summary string, patterns map[domain.IssueKind]int) error
}

// GradeReader defines read access to recent grades
type GradeReader interface {
	ListRecent(ctx context.Context, learnerID uuid.UUID, limit int) ([]*domain.Grade, error)
}

// SummaryRewriter defines the model call that rewrites the rolling summary
type SummaryRewriter interface {
	RewriteLearnerSummary(ctx context.Context, current string, grades []*domain.Grade) (string, error)
}

// learnerRefreshPayload represents the serialized data stored in the task
type learnerRefreshPayload struct {
	LearnerID uuid.UUID `json:"learner_id"`
}

// LearnerRefreshTask implements the Task interface for rewriting the
// rolling learner summary and recurring error patterns.
type LearnerRefreshTask struct {
	id             uuid.UUID
	learnerID      uuid.UUID
	profileService ProfileService
	gradeReader    GradeReader
	rewriter       SummaryRewriter
	logger         *slog.Logger
	status         TaskStatus
}

// NewLearnerRefreshTask creates a new learner refresh task
func NewLearnerRefreshTask(
	learnerID uuid.UUID,
	profileService ProfileService,
	gradeReader GradeReader,
	rewriter SummaryRewriter,
	logger *slog.Logger,
) (*LearnerRefreshTask, error) {
	if profileService == nil {
		return nil, ErrNilProfileService
	}
	if gradeReader == nil {
		return nil, ErrNilGradeReader
	}
	if rewriter == nil {
		return nil, ErrNilRewriter
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if learnerID == uuid.Nil {
		return nil, ErrEmptyLearnerID
	}

	return &LearnerRefreshTask{
		id:             uuid.New(),
		learnerID:      learnerID,
		profileService: profileService,
		gradeReader:    gradeReader,
		rewriter:       rewriter,
		logger:         logger.With(slog.String("task_type", TaskTypeLearnerRefresh)),
		status:         TaskStatusPending,
	}, nil
}

// ID returns the task's unique identifier
func (t *LearnerRefreshTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *LearnerRefreshTask) Type() string {
	return TaskTypeLearnerRefresh
}

// Payload returns the task data as a byte slice
func (t *LearnerRefreshTask) Payload() []byte {
	data, err := json.Marshal(learnerRefreshPayload{LearnerID: t.learnerID})
	if err != nil {
		t.logger.Error("failed to marshal task payload", slog.String("error", err.Error()))
		return []byte{}
	}
	return data
}

// Status returns the current task status
func (t *LearnerRefreshTask) Status() TaskStatus {
	return t.status
}

// Execute rewrites the learner summary from the recent grade window and
// replaces the recurring error patterns with a fresh aggregation.
func (t *LearnerRefreshTask) Execute(ctx context.Context) error {
	t.status = TaskStatusProcessing
	log := t.logger.With(slog.String("learner_id", t.learnerID.String()))
	log.Info("starting learner refresh")

	if err := ctx.Err(); err != nil {
		t.status = TaskStatusFailed
		return fmt.Errorf("task cancelled by context: %w", err)
	}

	profile, err := t.profileService.GetProfile(ctx, t.learnerID)
	if err != nil {
		t.status = TaskStatusFailed
		return fmt.Errorf("failed to load learner profile: %w", err)
	}

	grades, err := t.gradeReader.ListRecent(ctx, t.learnerID, RefreshGradeWindow)
	if err != nil {
		t.status = TaskStatusFailed
		return fmt.Errorf("failed to load recent grades: %w", err)
	}
	if len(grades) == 0 {
		log.Info("no grades to refresh from, skipping")
		t.status = TaskStatusCompleted
		return nil
	}

	summary, err := t.rewriter.RewriteLearnerSummary(ctx, profile.LearnerSummary, grades)
	if err != nil {
		t.status = TaskStatusFailed
		return fmt.Errorf("failed to rewrite learner summary: %w", err)
	}

	patterns := domain.AggregateIssuePatterns(grades)

	if err := t.profileService.ApplyRefresh(ctx, t.learnerID, summary, patterns); err != nil {
		t.status = TaskStatusFailed
		return fmt.Errorf("failed to apply learner refresh: %w", err)
	}

	t.status = TaskStatusCompleted
	log.Info("learner refresh completed",
		slog.Int("grades_considered", len(grades)),
		slog.Int("recurring_patterns", len(patterns)))
	return nil
}

// LearnerRefreshTaskFactory creates refresh tasks and rehydrates them from
// persisted rows after a restart.
type LearnerRefreshTaskFactory struct {
	profileService ProfileService
	gradeReader    GradeReader
	rewriter       SummaryRewriter
	logger         *slog.Logger
}

// NewLearnerRefreshTaskFactory creates a new factory
func NewLearnerRefreshTaskFactory(
	profileService ProfileService,
	gradeReader GradeReader,
	rewriter SummaryRewriter,
	logger *slog.Logger,
) *LearnerRefreshTaskFactory {
	return &LearnerRefreshTaskFactory{
		profileService: profileService,
		gradeReader:    gradeReader,
		rewriter:       rewriter,
		logger:         logger,
	}
}

// CreateTask creates a new refresh task for the given learner
func (f *LearnerRefreshTaskFactory) CreateTask(learnerID uuid.UUID) (Task, error) {
	return NewLearnerRefreshTask(learnerID, f.profileService, f.gradeReader, f.rewriter, f.logger)
}

// Hydrate implements the Hydrator interface for recovered tasks. The
// persisted ID and status are preserved so the runner's bookkeeping lines
// up with the stored row.
func (f *LearnerRefreshTaskFactory) Hydrate(id uuid.UUID, taskType string, payload []byte, status TaskStatus) (Task, error) {
	if taskType != TaskTypeLearnerRefresh {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, taskType)
	}

	var decoded learnerRefreshPayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	t, err := NewLearnerRefreshTask(decoded.LearnerID, f.profileService, f.gradeReader, f.rewriter, f.logger)
	if err != nil {
		return nil, err
	}
	t.id = id
	t.status = status
	return t, nil
}

// Ensure LearnerRefreshTaskFactory implements Hydrator
var _ Hydrator = (*LearnerRefreshTaskFactory)(nil)
