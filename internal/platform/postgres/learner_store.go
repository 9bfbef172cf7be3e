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

// PostgresLearnerStore implements the store.LearnerStore interface
// using a PostgreSQL database as the storage backend.
type PostgresLearnerStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresLearnerStore creates a new PostgreSQL implementation of the
// LearnerStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
func NewPostgresLearnerStore(db store.DBTX, logger *slog.Logger) *PostgresLearnerStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresLearnerStore{
		db:     db,
		logger: logger.With(slog.String("component", "learner_store")),
	}
}

// Ensure PostgresLearnerStore implements store.LearnerStore interface
var _ store.LearnerStore = (*PostgresLearnerStore)(nil)

// WithTx implements store.LearnerStore.WithTx
func (s *PostgresLearnerStore) WithTx(tx *sql.Tx) store.LearnerStore {
	return &PostgresLearnerStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.LearnerStore.Create
func (s *PostgresLearnerStore) Create(ctx context.Context, profile *domain.LearnerProfile) error {
	if err := profile.Validate(); err != nil {
		return err
	}

	patterns, err := marshalJSON(profile.RecurringErrorPatterns)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO learner_profiles (
			id, display_name, locale, timezone, current_level, target_level,
			register_preference, correction_intensity, practice_mode,
			difficulty_ramp, learner_summary, recurring_error_patterns,
			streak_count, daily_prompt_time, last_active_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = s.db.ExecContext(ctx, query,
		profile.ID,
		profile.DisplayName,
		profile.Locale,
		profile.Timezone,
		profile.CurrentLevel,
		profile.TargetLevel,
		profile.Register,
		profile.Intensity,
		profile.Mode,
		profile.Ramp,
		profile.LearnerSummary,
		patterns,
		profile.StreakCount,
		profile.DailyPromptTime,
		profile.LastActiveAt,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create learner profile",
			slog.String("learner_id", profile.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	return nil
}

const learnerColumns = `
	id, display_name, locale, timezone, current_level, target_level,
	register_preference, correction_intensity, practice_mode,
	difficulty_ramp, learner_summary, recurring_error_patterns,
	streak_count, daily_prompt_time, last_active_at, created_at, updated_at
`

func scanLearner(row *sql.Row) (*domain.LearnerProfile, error) {
	var profile domain.LearnerProfile
	var patterns string
	var lastActiveAt sql.NullTime

	err := row.Scan(
		&profile.ID,
		&profile.DisplayName,
		&profile.Locale,
		&profile.Timezone,
		&profile.CurrentLevel,
		&profile.TargetLevel,
		&profile.Register,
		&profile.Intensity,
		&profile.Mode,
		&profile.Ramp,
		&profile.LearnerSummary,
		&patterns,
		&profile.StreakCount,
		&profile.DailyPromptTime,
		&lastActiveAt,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	profile.RecurringErrorPatterns, err = unmarshalPatterns(patterns)
	if err != nil {
		return nil, err
	}
	if lastActiveAt.Valid {
		t := lastActiveAt.Time
		profile.LastActiveAt = &t
	}
	return &profile, nil
}

// Get implements store.LearnerStore.Get
func (s *PostgresLearnerStore) Get(ctx context.Context, id uuid.UUID) (*domain.LearnerProfile, error) {
	query := `SELECT ` + learnerColumns + ` FROM learner_profiles WHERE id = $1`

	profile, err := scanLearner(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if mapped := MapError(err); store.IsNotFoundError(mapped) {
			return nil, store.ErrLearnerNotFound
		}
		s.logger.ErrorContext(ctx, "failed to get learner profile",
			slog.String("learner_id", id.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return profile, nil
}

// Update implements store.LearnerStore.Update
func (s *PostgresLearnerStore) Update(ctx context.Context, profile *domain.LearnerProfile) error {
	if err := profile.Validate(); err != nil {
		return err
	}

	patterns, err := marshalJSON(profile.RecurringErrorPatterns)
	if err != nil {
		return err
	}

	query := `
		UPDATE learner_profiles
		SET display_name = $2,
			locale = $3,
			timezone = $4,
			current_level = $5,
			target_level = $6,
			register_preference = $7,
			correction_intensity = $8,
			practice_mode = $9,
			difficulty_ramp = $10,
			learner_summary = $11,
			recurring_error_patterns = $12,
			streak_count = $13,
			daily_prompt_time = $14,
			last_active_at = $15,
			updated_at = $16
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		profile.ID,
		profile.DisplayName,
		profile.Locale,
		profile.Timezone,
		profile.CurrentLevel,
		profile.TargetLevel,
		profile.Register,
		profile.Intensity,
		profile.Mode,
		profile.Ramp,
		profile.LearnerSummary,
		patterns,
		profile.StreakCount,
		profile.DailyPromptTime,
		profile.LastActiveAt,
		time.Now().UTC(),
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to update learner profile",
			slog.String("learner_id", profile.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "learner profile"); err != nil {
		return store.ErrLearnerNotFound
	}
	return nil
}

// Delete implements store.LearnerStore.Delete. Sessions, messages, grades,
// review items, prompts, and summaries are removed through ON DELETE
// CASCADE on their learner foreign keys.
func (s *PostgresLearnerStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM learner_profiles WHERE id = $1`, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to delete learner profile",
			slog.String("learner_id", id.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "learner profile"); err != nil {
		return store.ErrLearnerNotFound
	}

	s.logger.InfoContext(ctx, "learner profile deleted with all associated data",
		slog.String("learner_id", id.String()))
	return nil
}
