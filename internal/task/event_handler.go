package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tskoli/kaiwa/internal/events"
)

// RefreshEventHandler implements the events.EventHandler interface: it
// turns learner refresh request events into persisted background tasks.
type RefreshEventHandler struct {
	factory *LearnerRefreshTaskFactory
	runner  *TaskRunner
	logger  *slog.Logger
}

// NewRefreshEventHandler creates a handler that builds tasks with the given
// factory and submits them to the runner.
func NewRefreshEventHandler(
	factory *LearnerRefreshTaskFactory,
	runner *TaskRunner,
	logger *slog.Logger,
) *RefreshEventHandler {
	return &RefreshEventHandler{
		factory: factory,
		runner:  runner,
		logger:  logger.With(slog.String("component", "refresh_event_handler")),
	}
}

// HandleEvent processes learner refresh request events. Events of any other
// type are ignored.
func (h *RefreshEventHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	if event.Type != TaskTypeLearnerRefresh {
		return nil
	}

	var payload struct {
		LearnerID string `json:"learner_id"`
	}
	if err := event.UnmarshalPayload(&payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	learnerID, err := uuid.Parse(payload.LearnerID)
	if err != nil {
		return fmt.Errorf("invalid learner ID: %w", err)
	}

	t, err := h.factory.CreateTask(learnerID)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := h.runner.Submit(ctx, t); err != nil {
		return fmt.Errorf("failed to submit task: %w", err)
	}

	h.logger.InfoContext(ctx, "learner refresh task submitted",
		slog.String("task_id", t.ID().String()),
		slog.String("learner_id", learnerID.String()),
		slog.String("event_id", event.ID.String()))
	return nil
}

// Ensure RefreshEventHandler implements events.EventHandler
var _ events.EventHandler = (*RefreshEventHandler)(nil)
