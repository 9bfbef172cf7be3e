package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies which side of the conversation produced a message.
type MessageRole string

const (
	RoleLearner MessageRole = "learner"
	RoleCoach   MessageRole = "coach"
)

// Session and message validation errors.
var (
	ErrSessionIDEmpty         = errors.New("session ID cannot be empty")
	ErrSessionLearnerEmpty    = errors.New("session learner ID cannot be empty")
	ErrSessionModeInvalid     = errors.New("session practice mode is invalid")
	ErrMessageIDEmpty         = errors.New("message ID cannot be empty")
	ErrMessageSessionEmpty    = errors.New("message session ID cannot be empty")
	ErrMessageRoleInvalid     = errors.New("message role must be learner or coach")
	ErrMessageTextEmpty       = errors.New("message text cannot be empty")
	ErrMessageCoachTranscript = errors.New("coach messages cannot carry a transcript")
)

// Session is one conversation day for one learner. Sessions are identified
// by calendar date in the learner's timezone and created lazily on the first
// turn of the day; they are never closed except by the optional end marker.
type Session struct {
	ID        string       `json:"id"`
	LearnerID uuid.UUID    `json:"learner_id"`
	Mode      PracticeMode `json:"mode"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   *time.Time   `json:"ended_at,omitempty"`
}

// SessionIDForDay derives the canonical session identifier for a calendar day.
func SessionIDForDay(day time.Time) string {
	return fmt.Sprintf("session_%s", day.Format("2006-01-02"))
}

// NewSession creates the session for the given calendar day.
func NewSession(learnerID uuid.UUID, day time.Time, mode PracticeMode) (*Session, error) {
	session := &Session{
		ID:        SessionIDForDay(day),
		LearnerID: learnerID,
		Mode:      mode,
		StartedAt: time.Now().UTC(),
	}
	if err := session.Validate(); err != nil {
		return nil, err
	}
	return session, nil
}

// Validate checks the session's invariants.
func (s *Session) Validate() error {
	if s.ID == "" {
		return ErrSessionIDEmpty
	}
	if s.LearnerID == uuid.Nil {
		return ErrSessionLearnerEmpty
	}
	switch s.Mode {
	case ModeConversation, ModeDrill:
		return nil
	default:
		return ErrSessionModeInvalid
	}
}

// Message is one turn half: a learner utterance or a coach reply. Messages
// are immutable once written and ordered by creation time within a session.
// Learner messages that came in as voice carry the transcript alongside the
// text; coach messages never do.
type Message struct {
	ID         uuid.UUID   `json:"id"`
	SessionID  string      `json:"session_id"`
	LearnerID  uuid.UUID   `json:"learner_id"`
	Role       MessageRole `json:"role"`
	Text       string      `json:"text"`
	Transcript *string     `json:"transcript,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// NewLearnerMessage creates a learner-side message. transcript is non-nil
// only for voice turns.
func NewLearnerMessage(sessionID string, learnerID uuid.UUID, text string, transcript *string) (*Message, error) {
	msg := &Message{
		ID:         uuid.New(),
		SessionID:  sessionID,
		LearnerID:  learnerID,
		Role:       RoleLearner,
		Text:       text,
		Transcript: transcript,
		CreatedAt:  time.Now().UTC(),
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// NewCoachMessage creates a coach-side message.
func NewCoachMessage(sessionID string, learnerID uuid.UUID, text string) (*Message, error) {
	msg := &Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		LearnerID: learnerID,
		Role:      RoleCoach,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// Validate checks the message's invariants.
func (m *Message) Validate() error {
	if m.ID == uuid.Nil {
		return ErrMessageIDEmpty
	}
	if m.SessionID == "" {
		return ErrMessageSessionEmpty
	}
	if m.Role != RoleLearner && m.Role != RoleCoach {
		return ErrMessageRoleInvalid
	}
	if m.Text == "" {
		return ErrMessageTextEmpty
	}
	if m.Role == RoleCoach && m.Transcript != nil {
		return ErrMessageCoachTranscript
	}
	return nil
}
