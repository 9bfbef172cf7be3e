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

// PostgresGradeStore implements the store.GradeStore interface
// using a PostgreSQL database as the storage backend.
type PostgresGradeStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresGradeStore creates a new PostgreSQL implementation of the
// GradeStore interface.
func NewPostgresGradeStore(db store.DBTX, logger *slog.Logger) *PostgresGradeStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresGradeStore{
		db:     db,
		logger: logger.With(slog.String("component", "grade_store")),
	}
}

// Ensure PostgresGradeStore implements store.GradeStore interface
var _ store.GradeStore = (*PostgresGradeStore)(nil)

// WithTx implements store.GradeStore.WithTx
func (s *PostgresGradeStore) WithTx(tx *sql.Tx) store.GradeStore {
	return &PostgresGradeStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.GradeStore.Create. The learner reference is
// copied from the graded message in the same statement, so a grade can
// never point at a message that was not persisted first.
func (s *PostgresGradeStore) Create(ctx context.Context, grade *domain.Grade) error {
	if err := grade.Validate(); err != nil {
		return err
	}

	issues, err := marshalJSON(grade.Issues)
	if err != nil {
		return err
	}
	suggestions, err := marshalJSON(grade.Suggestions)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO grades (
			id, message_id, learner_id, overall, grammar, vocab,
			pronunciation, fluency, naturalness, issues, suggestions, created_at
		)
		SELECT $1, m.id, m.learner_id, $3, $4, $5, $6, $7, $8, $9, $10, $11
		FROM messages m
		WHERE m.id = $2
	`
	result, err := s.db.ExecContext(ctx, query,
		grade.ID,
		grade.MessageID,
		grade.Scores.Overall,
		grade.Scores.Grammar,
		grade.Scores.Vocab,
		grade.Scores.Pronunciation,
		grade.Scores.Fluency,
		grade.Scores.Naturalness,
		issues,
		suggestions,
		grade.CreatedAt,
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create grade",
			slog.String("grade_id", grade.ID.String()),
			slog.String("message_id", grade.MessageID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "graded message"); err != nil {
		return store.ErrMessageNotFound
	}
	return nil
}

const gradeColumns = `
	id, message_id, overall, grammar, vocab, pronunciation,
	fluency, naturalness, issues, suggestions, created_at
`

type gradeScanner interface {
	Scan(dest ...any) error
}

func scanGrade(row gradeScanner) (*domain.Grade, error) {
	var grade domain.Grade
	var issues, suggestions string

	err := row.Scan(
		&grade.ID,
		&grade.MessageID,
		&grade.Scores.Overall,
		&grade.Scores.Grammar,
		&grade.Scores.Vocab,
		&grade.Scores.Pronunciation,
		&grade.Scores.Fluency,
		&grade.Scores.Naturalness,
		&issues,
		&suggestions,
		&grade.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	grade.Issues, err = unmarshalIssues(issues)
	if err != nil {
		return nil, err
	}
	grade.Suggestions, err = unmarshalStringList(suggestions)
	if err != nil {
		return nil, err
	}
	return &grade, nil
}

// GetByMessage implements store.GradeStore.GetByMessage
func (s *PostgresGradeStore) GetByMessage(ctx context.Context, messageID uuid.UUID) (*domain.Grade, error) {
	query := `SELECT ` + gradeColumns + ` FROM grades WHERE message_id = $1`

	grade, err := scanGrade(s.db.QueryRowContext(ctx, query, messageID))
	if err != nil {
		if mapped := MapError(err); store.IsNotFoundError(mapped) {
			return nil, store.ErrGradeNotFound
		}
		s.logger.ErrorContext(ctx, "failed to get grade",
			slog.String("message_id", messageID.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return grade, nil
}

func (s *PostgresGradeStore) listGrades(ctx context.Context, query string, args ...any) ([]*domain.Grade, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var grades []*domain.Grade
	for rows.Next() {
		grade, err := scanGrade(rows)
		if err != nil {
			return nil, MapError(err)
		}
		grades = append(grades, grade)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return grades, nil
}

// ListRecent implements store.GradeStore.ListRecent
func (s *PostgresGradeStore) ListRecent(ctx context.Context, learnerID uuid.UUID, limit int) ([]*domain.Grade, error) {
	query := `
		SELECT ` + gradeColumns + `
		FROM grades
		WHERE learner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	grades, err := s.listGrades(ctx, query, learnerID, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list recent grades",
			slog.String("learner_id", learnerID.String()),
			slog.String("error", err.Error()))
		return nil, err
	}
	return grades, nil
}

// ListSince implements store.GradeStore.ListSince
func (s *PostgresGradeStore) ListSince(ctx context.Context, learnerID uuid.UUID, since time.Time) ([]*domain.Grade, error) {
	query := `
		SELECT ` + gradeColumns + `
		FROM grades
		WHERE learner_id = $1 AND created_at >= $2
		ORDER BY created_at DESC, id DESC
	`
	grades, err := s.listGrades(ctx, query, learnerID, since)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list grades since",
			slog.String("learner_id", learnerID.String()),
			slog.String("error", err.Error()))
		return nil, err
	}
	return grades, nil
}

// CountForLearner implements store.GradeStore.CountForLearner
func (s *PostgresGradeStore) CountForLearner(ctx context.Context, learnerID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM grades WHERE learner_id = $1`, learnerID,
	).Scan(&count)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to count grades",
			slog.String("learner_id", learnerID.String()),
			slog.String("error", err.Error()))
		return 0, MapError(err)
	}
	return count, nil
}
