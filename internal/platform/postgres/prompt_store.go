package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tskoli/kaiwa/internal/domain"
	"github.com/tskoli/kaiwa/internal/store"
)

// PostgresPromptStore implements the store.PromptStore interface
// using a PostgreSQL database as the storage backend.
type PostgresPromptStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresPromptStore creates a new PostgreSQL implementation of the
// PromptStore interface.
func NewPostgresPromptStore(db store.DBTX, logger *slog.Logger) *PostgresPromptStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresPromptStore{
		db:     db,
		logger: logger.With(slog.String("component", "prompt_store")),
	}
}

// Ensure PostgresPromptStore implements store.PromptStore interface
var _ store.PromptStore = (*PostgresPromptStore)(nil)

// WithTx implements store.PromptStore.WithTx
func (s *PostgresPromptStore) WithTx(tx *sql.Tx) store.PromptStore {
	return &PostgresPromptStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.PromptStore.Create
func (s *PostgresPromptStore) Create(ctx context.Context, prompt *domain.DailyPrompt) error {
	if err := prompt.Validate(); err != nil {
		return err
	}

	targetSkills, err := marshalJSON(prompt.TargetSkills)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO daily_prompts (
			id, learner_id, prompt_text, gloss, target_skills,
			difficulty, created_at, answered_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.db.ExecContext(ctx, query,
		prompt.ID,
		prompt.LearnerID,
		prompt.PromptText,
		prompt.Gloss,
		targetSkills,
		prompt.Difficulty,
		prompt.CreatedAt,
		prompt.AnsweredAt,
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create daily prompt",
			slog.String("prompt_id", prompt.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	return nil
}

const promptColumns = `
	id, learner_id, prompt_text, gloss, target_skills,
	difficulty, created_at, answered_at
`

type promptScanner interface {
	Scan(dest ...any) error
}

func scanPrompt(row promptScanner) (*domain.DailyPrompt, error) {
	var prompt domain.DailyPrompt
	var targetSkills string
	var answeredAt sql.NullTime

	err := row.Scan(
		&prompt.ID,
		&prompt.LearnerID,
		&prompt.PromptText,
		&prompt.Gloss,
		&targetSkills,
		&prompt.Difficulty,
		&prompt.CreatedAt,
		&answeredAt,
	)
	if err != nil {
		return nil, err
	}

	prompt.TargetSkills, err = unmarshalStringList(targetSkills)
	if err != nil {
		return nil, err
	}
	if answeredAt.Valid {
		t := answeredAt.Time
		prompt.AnsweredAt = &t
	}
	return &prompt, nil
}

func (s *PostgresPromptStore) listPrompts(ctx context.Context, query string, args ...any) ([]*domain.DailyPrompt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var prompts []*domain.DailyPrompt
	for rows.Next() {
		prompt, err := scanPrompt(rows)
		if err != nil {
			return nil, MapError(err)
		}
		prompts = append(prompts, prompt)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return prompts, nil
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return start, start.AddDate(0, 0, 1)
}

// ListForDay implements store.PromptStore.ListForDay
func (s *PostgresPromptStore) ListForDay(ctx context.Context, learnerID uuid.UUID, day time.Time) ([]*domain.DailyPrompt, error) {
	dayStart, dayEnd := dayBounds(day)

	query := `
		SELECT ` + promptColumns + `
		FROM daily_prompts
		WHERE learner_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at ASC, id ASC
	`
	prompts, err := s.listPrompts(ctx, query, learnerID, dayStart, dayEnd)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list prompts for day",
			slog.String("learner_id", learnerID.String()),
			slog.String("error", err.Error()))
		return nil, err
	}
	return prompts, nil
}

// ListUnansweredForDay implements store.PromptStore.ListUnansweredForDay
func (s *PostgresPromptStore) ListUnansweredForDay(ctx context.Context, learnerID uuid.UUID, day time.Time) ([]*domain.DailyPrompt, error) {
	dayStart, dayEnd := dayBounds(day)

	query := `
		SELECT ` + promptColumns + `
		FROM daily_prompts
		WHERE learner_id = $1
		  AND created_at >= $2
		  AND created_at < $3
		  AND answered_at IS NULL
		ORDER BY created_at ASC, id ASC
	`
	prompts, err := s.listPrompts(ctx, query, learnerID, dayStart, dayEnd)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list unanswered prompts",
			slog.String("learner_id", learnerID.String()),
			slog.String("error", err.Error()))
		return nil, err
	}
	return prompts, nil
}

// MarkAnswered implements store.PromptStore.MarkAnswered. The WHERE clause
// requires the prompt to still be unanswered, so concurrent callers cannot
// both consume it.
func (s *PostgresPromptStore) MarkAnswered(ctx context.Context, id uuid.UUID, answeredAt time.Time) error {
	query := `
		UPDATE daily_prompts
		SET answered_at = $2
		WHERE id = $1 AND answered_at IS NULL
	`
	result, err := s.db.ExecContext(ctx, query, id, answeredAt)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to mark prompt answered",
			slog.String("prompt_id", id.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if rowsAffected == 0 {
		// Distinguish a missing prompt from one already consumed.
		var exists bool
		err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM daily_prompts WHERE id = $1)`, id,
		).Scan(&exists)
		if err != nil {
			return MapError(err)
		}
		if !exists {
			return store.ErrPromptNotFound
		}
		return store.ErrPromptAlreadyAnswered
	}
	return nil
}

// PostgresSummaryStore implements the store.SummaryStore interface
// using a PostgreSQL database as the storage backend.
type PostgresSummaryStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSummaryStore creates a new PostgreSQL implementation of the
// SummaryStore interface.
func NewPostgresSummaryStore(db store.DBTX, logger *slog.Logger) *PostgresSummaryStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSummaryStore{
		db:     db,
		logger: logger.With(slog.String("component", "summary_store")),
	}
}

// Ensure PostgresSummaryStore implements store.SummaryStore interface
var _ store.SummaryStore = (*PostgresSummaryStore)(nil)

// WithTx implements store.SummaryStore.WithTx
func (s *PostgresSummaryStore) WithTx(tx *sql.Tx) store.SummaryStore {
	return &PostgresSummaryStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.SummaryStore.Create
func (s *PostgresSummaryStore) Create(ctx context.Context, summary *domain.WeeklySummary) error {
	if err := summary.Validate(); err != nil {
		return err
	}

	highlights, err := marshalJSON(summary.Highlights)
	if err != nil {
		return err
	}
	weakAreas, err := marshalJSON(summary.WeakAreas)
	if err != nil {
		return err
	}
	improvements, err := marshalJSON(summary.Improvements)
	if err != nil {
		return err
	}
	recommendedFocus, err := marshalJSON(summary.RecommendedFocus)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO weekly_summaries (
			id, learner_id, week_start, highlights, weak_areas,
			improvements, recommended_focus, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.db.ExecContext(ctx, query,
		summary.ID,
		summary.LearnerID,
		summary.WeekStart,
		highlights,
		weakAreas,
		improvements,
		recommendedFocus,
		summary.CreatedAt,
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create weekly summary",
			slog.String("summary_id", summary.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	return nil
}

// GetLatest implements store.SummaryStore.GetLatest
func (s *PostgresSummaryStore) GetLatest(ctx context.Context, learnerID uuid.UUID) (*domain.WeeklySummary, error) {
	query := `
		SELECT id, learner_id, week_start, highlights, weak_areas,
			improvements, recommended_focus, created_at
		FROM weekly_summaries
		WHERE learner_id = $1
		ORDER BY week_start DESC
		LIMIT 1
	`

	var summary domain.WeeklySummary
	var highlights, weakAreas, improvements, recommendedFocus string
	err := s.db.QueryRowContext(ctx, query, learnerID).Scan(
		&summary.ID,
		&summary.LearnerID,
		&summary.WeekStart,
		&highlights,
		&weakAreas,
		&improvements,
		&recommendedFocus,
		&summary.CreatedAt,
	)
	if err != nil {
		if mapped := MapError(err); store.IsNotFoundError(mapped) {
			return nil, store.ErrSummaryNotFound
		}
		s.logger.ErrorContext(ctx, "failed to get latest weekly summary",
			slog.String("learner_id", learnerID.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	if summary.Highlights, err = unmarshalStringList(highlights); err != nil {
		return nil, err
	}
	if summary.WeakAreas, err = unmarshalStringList(weakAreas); err != nil {
		return nil, err
	}
	if summary.Improvements, err = unmarshalStringList(improvements); err != nil {
		return nil, err
	}
	if summary.RecommendedFocus, err = unmarshalStringList(recommendedFocus); err != nil {
		return nil, err
	}
	return &summary, nil
}
