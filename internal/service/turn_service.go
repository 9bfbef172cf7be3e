package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tskoli/kaiwa/internal/domain"
	"github.com/tskoli/kaiwa/internal/events"
	"github.com/tskoli/kaiwa/internal/llm"
	"github.com/tskoli/kaiwa/internal/messenger"
	"github.com/tskoli/kaiwa/internal/platform/logger"
	"github.com/tskoli/kaiwa/internal/speech"
	"github.com/tskoli/kaiwa/internal/store"
	"github.com/tskoli/kaiwa/internal/task"
)

// RefreshEveryNGrades is the cadence of the post-turn learner-refresh hook:
// every time the cumulative graded count reaches an exact multiple of this
// value, a refresh event is emitted.
const RefreshEveryNGrades = 10

// retryNotice is sent when a turn aborts before anything was persisted.
const retryNotice = "Sorry, I couldn't process that one. Please try again."

// voiceFallbackNotice is sent when reply synthesis fails after the text
// feedback already went out.
const voiceFallbackNotice = "(Voice reply unavailable this time.)"

// TurnLimits are the guardrails applied before a voice turn enters the
// pipeline, plus the context and due-item batch bounds used inside it.
type TurnLimits struct {
	MaxDailyVoiceTurns int
	MaxAudioSeconds    int
	ContextWindowTurns int
	DueItemBatchSize   int
}

// VoiceTurnInput is one inbound voice turn.
type VoiceTurnInput struct {
	LearnerID       uuid.UUID
	Audio           []byte
	MimeType        string
	DurationSeconds int
}

// TextTurnInput is one inbound text turn.
type TextTurnInput struct {
	LearnerID uuid.UUID
	Text      string
}

// TurnResult reports what one completed turn produced.
type TurnResult struct {
	SessionID        string         `json:"session_id"`
	LearnerMessageID uuid.UUID      `json:"learner_message_id"`
	Transcript       string         `json:"transcript"`
	ReplyText        string         `json:"reply_text"`
	Scores           *domain.Scores `json:"scores,omitempty"`
	TextDelivered    bool           `json:"text_delivered"`
	VoiceDelivered   bool           `json:"voice_delivered"`
}

// TurnService drives the per-turn pipeline. Turns for one learner are
// serialized in arrival order; cadence jobs may overlap an in-flight turn,
// which is why every profile mutation re-loads the profile immediately
// before writing.
type TurnService struct {
	db          *sql.DB
	learners    store.LearnerStore
	sessions    store.SessionStore
	messages    store.MessageStore
	grades      store.GradeStore
	items       store.ReviewItemStore
	prompts     store.PromptStore
	coach       llm.Coach
	transcriber speech.Transcriber
	synthesizer speech.Synthesizer
	messenger   messenger.Messenger
	emitter     events.EventEmitter
	limits      TurnLimits
	logger      *slog.Logger

	// runTx wraps the persist phase in one database transaction.
	runTx func(ctx context.Context, fn store.TxFn) error

	mu        sync.Mutex
	turnLocks map[uuid.UUID]*sync.Mutex
}

// NewTurnService creates a TurnService with its collaborators.
func NewTurnService(
	db *sql.DB,
	learners store.LearnerStore,
	sessions store.SessionStore,
	messages store.MessageStore,
	grades store.GradeStore,
	items store.ReviewItemStore,
	prompts store.PromptStore,
	coach llm.Coach,
	transcriber speech.Transcriber,
	synthesizer speech.Synthesizer,
	msgr messenger.Messenger,
	emitter events.EventEmitter,
	limits TurnLimits,
	log *slog.Logger,
) *TurnService {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TurnService")
	}

	svc := &TurnService{
		db:          db,
		learners:    learners,
		sessions:    sessions,
		messages:    messages,
		grades:      grades,
		items:       items,
		prompts:     prompts,
		coach:       coach,
		transcriber: transcriber,
		synthesizer: synthesizer,
		messenger:   msgr,
		emitter:     emitter,
		limits:      limits,
		logger:      log.With(slog.String("component", "turn_service")),
		turnLocks:   make(map[uuid.UUID]*sync.Mutex),
	}
	svc.runTx = func(ctx context.Context, fn store.TxFn) error {
		return store.RunInTransaction(ctx, svc.db, fn)
	}
	return svc
}

// lockFor returns the mutex serializing turns for one learner.
func (s *TurnService) lockFor(learnerID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	mu, ok := s.turnLocks[learnerID]
	if !ok {
		mu = &sync.Mutex{}
		s.turnLocks[learnerID] = mu
	}
	return mu
}

// HandleVoiceTurn runs the full voice-turn pipeline: guards, transcription,
// context assembly, the single grading call, atomic persistence, and
// delivery. On any failure before persistence nothing is stored and the
// learner gets a retry notice.
func (s *TurnService) HandleVoiceTurn(ctx context.Context, input VoiceTurnInput) (*TurnResult, error) {
	const op = "handle_voice_turn"
	log := logger.FromContextOrDefault(ctx, s.logger)

	mu := s.lockFor(input.LearnerID)
	mu.Lock()
	defer mu.Unlock()

	profile, err := s.learners.Get(ctx, input.LearnerID)
	if err != nil {
		return nil, NewServiceError(op, "failed to load learner profile", err)
	}
	now := time.Now().In(profile.Location())

	// Guards run before any pipeline state is entered.
	if input.DurationSeconds > s.limits.MaxAudioSeconds {
		return nil, NewServiceError(op, fmt.Sprintf("audio longer than %ds", s.limits.MaxAudioSeconds), ErrAudioTooLong)
	}
	voiceTurns, err := s.messages.CountVoiceTurnsOn(ctx, input.LearnerID, now)
	if err != nil {
		return nil, NewServiceError(op, "failed to count today's voice turns", err)
	}
	if voiceTurns >= s.limits.MaxDailyVoiceTurns {
		return nil, NewServiceError(op, fmt.Sprintf("cap of %d voice turns reached", s.limits.MaxDailyVoiceTurns), ErrVoiceCapReached)
	}

	transcript, err := s.transcriber.Transcribe(ctx, input.Audio, input.MimeType)
	if err != nil {
		log.Error("transcription failed, aborting turn", slog.String("error", err.Error()))
		s.sendNotice(ctx, retryNotice, log)
		return nil, NewServiceError(op, "transcription failed", err)
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		s.sendNotice(ctx, retryNotice, log)
		return nil, NewServiceError(op, "empty transcript", speech.ErrEmptyTranscript)
	}

	session, err := s.resolveSession(ctx, profile, now)
	if err != nil {
		return nil, NewServiceError(op, "failed to resolve session", err)
	}
	history, err := s.messages.ListRecent(ctx, session.ID, s.limits.ContextWindowTurns)
	if err != nil {
		return nil, NewServiceError(op, "failed to load conversation context", err)
	}
	dueItems, err := s.items.ListDue(ctx, input.LearnerID, now, s.limits.DueItemBatchSize)
	if err != nil {
		return nil, NewServiceError(op, "failed to load due review items", err)
	}
	dailyPrompt, err := s.consumePrompt(ctx, input.LearnerID, now, log)
	if err != nil {
		return nil, NewServiceError(op, "failed to consume daily prompt", err)
	}

	resp, err := s.coach.GradeTurn(ctx, llm.GradeRequest{
		Profile:     profile,
		Context:     history,
		Transcript:  transcript,
		DueItems:    dueItems,
		DailyPrompt: dailyPrompt,
	})
	if err != nil {
		log.Error("grading failed, aborting turn", slog.String("error", err.Error()))
		s.sendNotice(ctx, retryNotice, log)
		return nil, NewServiceError(op, "grading call failed", err)
	}

	scores := resp.Scores
	if scores.Overall == 0 {
		scores.Overall = scores.WeightedOverall()
	}

	var (
		learnerMsg *domain.Message
		gradeCount int
	)
	err = s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		txMessages := s.messages.WithTx(tx)

		msg, err := domain.NewLearnerMessage(session.ID, input.LearnerID, transcript, &transcript)
		if err != nil {
			return err
		}
		if err := txMessages.Create(ctx, msg); err != nil {
			return err
		}
		learnerMsg = msg

		reply, err := domain.NewCoachMessage(session.ID, input.LearnerID, resp.ReplyText)
		if err != nil {
			return err
		}
		if err := txMessages.Create(ctx, reply); err != nil {
			return err
		}

		grade, err := domain.NewGrade(msg.ID, scores, resp.Corrections, resp.Suggestions)
		if err != nil {
			return err
		}
		txGrades := s.grades.WithTx(tx)
		if err := txGrades.Create(ctx, grade); err != nil {
			return err
		}

		if err := s.touchLastActive(ctx, s.learners.WithTx(tx), input.LearnerID, now); err != nil {
			return err
		}

		gradeCount, err = txGrades.CountForLearner(ctx, input.LearnerID)
		return err
	})
	if err != nil {
		log.Error("failed to persist graded turn",
			slog.String("error", err.Error()),
			slog.Int("overall", scores.Overall))
		return nil, NewServiceError(op, "failed to persist turn", err)
	}

	result := &TurnResult{
		SessionID:        session.ID,
		LearnerMessageID: learnerMsg.ID,
		Transcript:       transcript,
		ReplyText:        resp.ReplyText,
		Scores:           &scores,
	}

	// Text feedback goes out first and never waits on synthesis.
	if err := s.messenger.SendText(ctx, FormatFeedback(transcript, resp)); err != nil {
		log.Error("failed to deliver text feedback", slog.String("error", err.Error()))
	} else {
		result.TextDelivered = true
	}

	result.VoiceDelivered = s.deliverVoice(ctx, resp.ReplyText, log)

	if gradeCount > 0 && gradeCount%RefreshEveryNGrades == 0 {
		s.emitRefresh(ctx, input.LearnerID, log)
	}

	return result, nil
}

// HandleTextTurn runs the conversational path for a typed message: no
// guards, no transcription, no grade. The reply is generated from the same
// coach call but only the conversational part is used or delivered.
func (s *TurnService) HandleTextTurn(ctx context.Context, input TextTurnInput) (*TurnResult, error) {
	const op = "handle_text_turn"
	log := logger.FromContextOrDefault(ctx, s.logger)

	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, NewServiceError(op, "text is empty", ErrEmptyTurn)
	}

	mu := s.lockFor(input.LearnerID)
	mu.Lock()
	defer mu.Unlock()

	profile, err := s.learners.Get(ctx, input.LearnerID)
	if err != nil {
		return nil, NewServiceError(op, "failed to load learner profile", err)
	}
	now := time.Now().In(profile.Location())

	session, err := s.resolveSession(ctx, profile, now)
	if err != nil {
		return nil, NewServiceError(op, "failed to resolve session", err)
	}
	history, err := s.messages.ListRecent(ctx, session.ID, s.limits.ContextWindowTurns)
	if err != nil {
		return nil, NewServiceError(op, "failed to load conversation context", err)
	}

	resp, err := s.coach.GradeTurn(ctx, llm.GradeRequest{
		Profile:    profile,
		Context:    history,
		Transcript: text,
	})
	if err != nil {
		log.Error("reply generation failed", slog.String("error", err.Error()))
		s.sendNotice(ctx, retryNotice, log)
		return nil, NewServiceError(op, "reply generation failed", err)
	}

	var learnerMsg *domain.Message
	err = s.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		txMessages := s.messages.WithTx(tx)

		msg, err := domain.NewLearnerMessage(session.ID, input.LearnerID, text, nil)
		if err != nil {
			return err
		}
		if err := txMessages.Create(ctx, msg); err != nil {
			return err
		}
		learnerMsg = msg

		reply, err := domain.NewCoachMessage(session.ID, input.LearnerID, resp.ReplyText)
		if err != nil {
			return err
		}
		if err := txMessages.Create(ctx, reply); err != nil {
			return err
		}

		return s.touchLastActive(ctx, s.learners.WithTx(tx), input.LearnerID, now)
	})
	if err != nil {
		return nil, NewServiceError(op, "failed to persist turn", err)
	}

	replyText := resp.ReplyText
	if resp.FollowUp != "" {
		replyText = replyText + "\n\n" + resp.FollowUp
	}

	result := &TurnResult{
		SessionID:        session.ID,
		LearnerMessageID: learnerMsg.ID,
		Transcript:       text,
		ReplyText:        resp.ReplyText,
	}
	if err := s.messenger.SendText(ctx, replyText); err != nil {
		log.Error("failed to deliver reply", slog.String("error", err.Error()))
	} else {
		result.TextDelivered = true
	}

	return result, nil
}

// EndSession sets the end marker on today's session. Ending a session that
// was never started is a no-op.
func (s *TurnService) EndSession(ctx context.Context, learnerID uuid.UUID) error {
	const op = "end_session"
	log := logger.FromContextOrDefault(ctx, s.logger)

	profile, err := s.learners.Get(ctx, learnerID)
	if err != nil {
		return NewServiceError(op, "failed to load learner profile", err)
	}
	now := time.Now().In(profile.Location())

	err = s.sessions.End(ctx, learnerID, domain.SessionIDForDay(now), now.UTC())
	if errors.Is(err, store.ErrSessionNotFound) {
		log.Debug("no session to end today", slog.String("learner_id", learnerID.String()))
		return nil
	}
	if err != nil {
		return NewServiceError(op, "failed to end session", err)
	}
	return nil
}

// resolveSession returns today's session, creating it on first use. A
// concurrent create by another pipeline stage loses the race cleanly and
// re-reads the winner's row.
func (s *TurnService) resolveSession(ctx context.Context, profile *domain.LearnerProfile, now time.Time) (*domain.Session, error) {
	session, err := s.sessions.Get(ctx, profile.ID, domain.SessionIDForDay(now))
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, store.ErrSessionNotFound) {
		return nil, err
	}

	session, err = domain.NewSession(profile.ID, now, profile.Mode)
	if err != nil {
		return nil, err
	}
	err = s.sessions.Create(ctx, session)
	if errors.Is(err, store.ErrDuplicate) {
		return s.sessions.Get(ctx, profile.ID, session.ID)
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// consumePrompt marks the oldest unanswered prompt for today as answered
// and returns its text, or "" when no prompt is pending. Losing the
// answered race to another writer counts as no prompt.
func (s *TurnService) consumePrompt(ctx context.Context, learnerID uuid.UUID, now time.Time, log *slog.Logger) (string, error) {
	pending, err := s.prompts.ListUnansweredForDay(ctx, learnerID, now)
	if err != nil {
		return "", err
	}
	if len(pending) == 0 {
		return "", nil
	}

	oldest := pending[0]
	err = s.prompts.MarkAnswered(ctx, oldest.ID, now.UTC())
	if errors.Is(err, store.ErrPromptAlreadyAnswered) {
		log.Debug("prompt already answered by a concurrent turn", slog.String("prompt_id", oldest.ID.String()))
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return oldest.PromptText, nil
}

// touchLastActive stamps activity on a freshly loaded profile row.
func (s *TurnService) touchLastActive(ctx context.Context, learners store.LearnerStore, learnerID uuid.UUID, now time.Time) error {
	fresh, err := learners.Get(ctx, learnerID)
	if err != nil {
		return err
	}
	activeAt := now.UTC()
	fresh.LastActiveAt = &activeAt
	return learners.Update(ctx, fresh)
}

// deliverVoice synthesizes the reply and sends it. Synthesis and delivery
// are best-effort; either failure downgrades to a text fallback notice.
func (s *TurnService) deliverVoice(ctx context.Context, replyText string, log *slog.Logger) bool {
	audio, mimeType, err := s.synthesizer.Synthesize(ctx, replyText)
	if err != nil {
		log.Warn("voice synthesis failed, falling back to text", slog.String("error", err.Error()))
		s.sendNotice(ctx, voiceFallbackNotice, log)
		return false
	}
	if err := s.messenger.SendVoice(ctx, audio, mimeType, ""); err != nil {
		log.Warn("voice delivery failed, falling back to text", slog.String("error", err.Error()))
		s.sendNotice(ctx, voiceFallbackNotice, log)
		return false
	}
	return true
}

// emitRefresh publishes the learner-refresh event. Hook failures are logged
// and never affect the delivered turn.
func (s *TurnService) emitRefresh(ctx context.Context, learnerID uuid.UUID, log *slog.Logger) {
	event, err := events.NewTaskRequestEvent(task.TaskTypeLearnerRefresh, map[string]string{
		"learner_id": learnerID.String(),
	})
	if err != nil {
		log.Error("failed to build learner refresh event", slog.String("error", err.Error()))
		return
	}
	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		log.Error("failed to emit learner refresh event", slog.String("error", err.Error()))
		return
	}
	log.Debug("emitted learner refresh event", slog.String("learner_id", learnerID.String()))
}

// sendNotice delivers a short status message, logging delivery failures.
func (s *TurnService) sendNotice(ctx context.Context, text string, log *slog.Logger) {
	if err := s.messenger.SendText(ctx, text); err != nil {
		log.Warn("failed to deliver notice", slog.String("error", err.Error()))
	}
}
