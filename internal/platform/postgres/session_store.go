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

// PostgresSessionStore implements the store.SessionStore interface
// using a PostgreSQL database as the storage backend.
type PostgresSessionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSessionStore creates a new PostgreSQL implementation of the
// SessionStore interface.
func NewPostgresSessionStore(db store.DBTX, logger *slog.Logger) *PostgresSessionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSessionStore{
		db:     db,
		logger: logger.With(slog.String("component", "session_store")),
	}
}

// Ensure PostgresSessionStore implements store.SessionStore interface
var _ store.SessionStore = (*PostgresSessionStore)(nil)

// WithTx implements store.SessionStore.WithTx
func (s *PostgresSessionStore) WithTx(tx *sql.Tx) store.SessionStore {
	return &PostgresSessionStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.SessionStore.Create
func (s *PostgresSessionStore) Create(ctx context.Context, session *domain.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO sessions (id, learner_id, practice_mode, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.LearnerID,
		session.Mode,
		session.StartedAt,
		session.EndedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return MapError(err)
		}
		s.logger.ErrorContext(ctx, "failed to create session",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	return nil
}

// Get implements store.SessionStore.Get
func (s *PostgresSessionStore) Get(ctx context.Context, learnerID uuid.UUID, id string) (*domain.Session, error) {
	query := `
		SELECT id, learner_id, practice_mode, started_at, ended_at
		FROM sessions
		WHERE learner_id = $1 AND id = $2
	`

	var session domain.Session
	var endedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, learnerID, id).Scan(
		&session.ID,
		&session.LearnerID,
		&session.Mode,
		&session.StartedAt,
		&endedAt,
	)
	if err != nil {
		if mapped := MapError(err); store.IsNotFoundError(mapped) {
			return nil, store.ErrSessionNotFound
		}
		s.logger.ErrorContext(ctx, "failed to get session",
			slog.String("session_id", id),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	if endedAt.Valid {
		t := endedAt.Time
		session.EndedAt = &t
	}

	return &session, nil
}

// End implements store.SessionStore.End
func (s *PostgresSessionStore) End(ctx context.Context, learnerID uuid.UUID, id string, endedAt time.Time) error {
	query := `
		UPDATE sessions
		SET ended_at = $3
		WHERE learner_id = $1 AND id = $2
	`
	result, err := s.db.ExecContext(ctx, query, learnerID, id, endedAt)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to end session",
			slog.String("session_id", id),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "session"); err != nil {
		return store.ErrSessionNotFound
	}
	return nil
}

// PostgresMessageStore implements the store.MessageStore interface
// using a PostgreSQL database as the storage backend.
type PostgresMessageStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresMessageStore creates a new PostgreSQL implementation of the
// MessageStore interface.
func NewPostgresMessageStore(db store.DBTX, logger *slog.Logger) *PostgresMessageStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresMessageStore{
		db:     db,
		logger: logger.With(slog.String("component", "message_store")),
	}
}

// Ensure PostgresMessageStore implements store.MessageStore interface
var _ store.MessageStore = (*PostgresMessageStore)(nil)

// WithTx implements store.MessageStore.WithTx
func (s *PostgresMessageStore) WithTx(tx *sql.Tx) store.MessageStore {
	return &PostgresMessageStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.MessageStore.Create
func (s *PostgresMessageStore) Create(ctx context.Context, message *domain.Message) error {
	if err := message.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO messages (id, session_id, learner_id, role, text, transcript, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		message.ID,
		message.SessionID,
		message.LearnerID,
		message.Role,
		message.Text,
		message.Transcript,
		message.CreatedAt,
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create message",
			slog.String("message_id", message.ID.String()),
			slog.String("session_id", message.SessionID),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	return nil
}

// ListRecent implements store.MessageStore.ListRecent. It fetches the last
// limit messages newest first and reverses them into chronological order.
func (s *PostgresMessageStore) ListRecent(ctx context.Context, sessionID string, limit int) ([]*domain.Message, error) {
	query := `
		SELECT id, session_id, learner_id, role, text, transcript, created_at
		FROM messages
		WHERE session_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list recent messages",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*domain.Message
	for rows.Next() {
		var msg domain.Message
		var transcript sql.NullString
		if err := rows.Scan(
			&msg.ID,
			&msg.SessionID,
			&msg.LearnerID,
			&msg.Role,
			&msg.Text,
			&transcript,
			&msg.CreatedAt,
		); err != nil {
			return nil, MapError(err)
		}
		if transcript.Valid {
			t := transcript.String
			msg.Transcript = &t
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// CountVoiceTurnsOn implements store.MessageStore.CountVoiceTurnsOn. Voice
// turns are learner messages that carry a transcript.
func (s *PostgresMessageStore) CountVoiceTurnsOn(ctx context.Context, learnerID uuid.UUID, day time.Time) (int, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE learner_id = $1
		  AND role = $2
		  AND transcript IS NOT NULL
		  AND created_at >= $3
		  AND created_at < $4
	`
	var count int
	err := s.db.QueryRowContext(ctx, query, learnerID, domain.RoleLearner, dayStart, dayEnd).Scan(&count)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to count voice turns",
			slog.String("learner_id", learnerID.String()),
			slog.String("error", err.Error()))
		return 0, MapError(err)
	}
	return count, nil
}
