package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tskoli/kaiwa/internal/domain"
	"github.com/tskoli/kaiwa/internal/llm"
	"github.com/tskoli/kaiwa/internal/store"
	"github.com/tskoli/kaiwa/internal/task"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testProfile(t *testing.T) *domain.LearnerProfile {
	t.Helper()
	profile, err := domain.NewLearnerProfile(uuid.New(), "Aki", "UTC")
	require.NoError(t, err)
	return profile
}

func testGradeResponse() *llm.GradeResponse {
	return &llm.GradeResponse{
		ReplyText: "いいですね。週末は何をしましたか？",
		FollowUp:  "Try answering in past tense.",
		Corrections: []domain.Issue{
			{Kind: domain.IssueGrammar, Original: "行くた", Corrected: "行った", Explanation: "past tense of 行く"},
		},
		Scores: domain.Scores{Grammar: 70, Vocab: 80, Pronunciation: 75, Fluency: 72, Naturalness: 68},
	}
}

// turnFixture bundles a TurnService with all of its fakes. The transaction
// seam is replaced so the persist phase runs against the in-memory stores
// without a database.
type turnFixture struct {
	profile     *domain.LearnerProfile
	learners    *fakeLearnerStore
	sessions    *fakeSessionStore
	messages    *fakeMessageStore
	grades      *fakeGradeStore
	items       *fakeReviewItemStore
	prompts     *fakePromptStore
	coach       *fakeCoach
	transcriber *fakeTranscriber
	synthesizer *fakeSynthesizer
	messenger   *fakeMessenger
	emitter     *fakeEmitter
	calls       *callLog
	svc         *TurnService
}

func newTurnFixture(t *testing.T) *turnFixture {
	t.Helper()

	calls := &callLog{}
	f := &turnFixture{
		profile:     testProfile(t),
		sessions:    newFakeSessionStore(),
		messages:    &fakeMessageStore{},
		grades:      &fakeGradeStore{},
		items:       newFakeReviewItemStore(),
		prompts:     &fakePromptStore{},
		coach:       &fakeCoach{gradeResp: testGradeResponse()},
		transcriber: &fakeTranscriber{text: "週末に映画を見ました"},
		synthesizer: &fakeSynthesizer{audio: []byte("ogg-bytes"), log: calls},
		messenger:   &fakeMessenger{log: calls},
		emitter:     &fakeEmitter{},
		calls:       calls,
	}
	f.learners = newFakeLearnerStore(f.profile)

	f.svc = NewTurnService(
		nil,
		f.learners, f.sessions, f.messages, f.grades, f.items, f.prompts,
		f.coach, f.transcriber, f.synthesizer, f.messenger, f.emitter,
		TurnLimits{
			MaxDailyVoiceTurns: 20,
			MaxAudioSeconds:    120,
			ContextWindowTurns: 10,
			DueItemBatchSize:   5,
		},
		testLogger(),
	)
	f.svc.runTx = func(ctx context.Context, fn store.TxFn) error {
		return fn(ctx, nil)
	}
	return f
}

func (f *turnFixture) voiceInput() VoiceTurnInput {
	return VoiceTurnInput{
		LearnerID:       f.profile.ID,
		Audio:           []byte("audio"),
		MimeType:        "audio/ogg",
		DurationSeconds: 30,
	}
}

func TestHandleVoiceTurn_Success(t *testing.T) {
	t.Parallel()

	f := newTurnFixture(t)
	result, err := f.svc.HandleVoiceTurn(context.Background(), f.voiceInput())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "週末に映画を見ました", result.Transcript)
	assert.Equal(t, f.coach.gradeResp.ReplyText, result.ReplyText)
	assert.True(t, result.TextDelivered)
	assert.True(t, result.VoiceDelivered)
	require.NotNil(t, result.Scores)
	assert.NotZero(t, result.Scores.Overall)

	// One learner message with a transcript, one coach message.
	require.Len(t, f.messages.messages, 2)
	learnerMsg := f.messages.messages[0]
	assert.Equal(t, domain.RoleLearner, learnerMsg.Role)
	require.NotNil(t, learnerMsg.Transcript)
	assert.Equal(t, "週末に映画を見ました", *learnerMsg.Transcript)
	assert.Equal(t, domain.RoleCoach, f.messages.messages[1].Role)

	require.Len(t, f.grades.grades, 1)
	assert.Equal(t, learnerMsg.ID, f.grades.grades[0].MessageID)

	updated, err := f.learners.Get(context.Background(), f.profile.ID)
	require.NoError(t, err)
	assert.NotNil(t, updated.LastActiveAt)

	texts := f.messenger.sentTexts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "You said:")
	assert.Equal(t, 1, f.messenger.voices)
}

func TestHandleVoiceTurn_TextDeliveredBeforeSynthesis(t *testing.T) {
	t.Parallel()

	f := newTurnFixture(t)
	_, err := f.svc.HandleVoiceTurn(context.Background(), f.voiceInput())
	require.NoError(t, err)

	// The written feedback must reach the learner before any synthesis
	// work starts, so a slow or failing voice pipeline never delays it.
	assert.Equal(t, []string{"send_text", "synthesize", "send_voice"}, f.calls.recorded())
}

func TestHandleVoiceTurn_AudioTooLong(t *testing.T) {
	t.Parallel()

	f := newTurnFixture(t)
	input := f.voiceInput()
	input.DurationSeconds = 121

	_, err := f.svc.HandleVoiceTurn(context.Background(), input)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAudioTooLong)
	assert.Empty(t, f.messages.messages)
	assert.Empty(t, f.grades.grades)
	assert.Equal(t, 0, f.coach.gradeCalls)
}

func TestHandleVoiceTurn_DailyCapReached(t *testing.T) {
	t.Parallel()

	f := newTurnFixture(t)
	f.svc.limits.MaxDailyVoiceTurns = 2
	transcript := "earlier turn"
	for i := 0; i < 2; i++ {
		f.messages.messages = append(f.messages.messages, &domain.Message{
			ID:         uuid.New(),
			SessionID:  domain.SessionIDForDay(time.Now().UTC()),
			LearnerID:  f.profile.ID,
			Role:       domain.RoleLearner,
			Text:       transcript,
			Transcript: &transcript,
			CreatedAt:  time.Now().UTC(),
		})
	}

	_, err := f.svc.HandleVoiceTurn(context.Background(), f.voiceInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVoiceCapReached)
	assert.Len(t, f.messages.messages, 2)
	assert.Empty(t, f.grades.grades)
}

func TestHandleVoiceTurn_TranscriptionFailureAborts(t *testing.T) {
	t.Parallel()

	f := newTurnFixture(t)
	f.transcriber.err = errors.New("stt unavailable")

	_, err := f.svc.HandleVoiceTurn(context.Background(), f.voiceInput())
	require.Error(t, err)

	// Nothing persisted, learner told to retry.
	assert.Empty(t, f.messages.messages)
	assert.Empty(t, f.grades.grades)
	assert.Empty(t, f.sessions.sessions)
	texts := f.messenger.sentTexts()
	require.Len(t, texts, 1)
	assert.Equal(t, retryNotice, texts[0])
}

func TestHandleVoiceTurn_EmptyTranscriptAborts(t *testing.T) {
	t.Parallel()

	f := newTurnFixture(t)
	f.transcriber.text = "   "

	_, err := f.svc.HandleVoiceTurn(context.Background(), f.voiceInput())
	require.Error(t, err)
	assert.Empty(t, f.messages.messages)
	texts := f.messenger.sentTexts()
	require.Len(t, texts, 1)
	assert.Equal(t, retryNotice, texts[0])
}

func TestHandleVoiceTurn_GradingFailureAborts(t *testing.T) {
	t.Parallel()

	f := newTurnFixture(t)
	f.coach.gradeErr = errors.New("model overloaded")

	_, err := f.svc.HandleVoiceTurn(context.Background(), f.voiceInput())
	require.Error(t, err)
	assert.Empty(t, f.messages.messages)
	assert.Empty(t, f.grades.grades)
	texts := f.messenger.sentTexts()
	require.Len(t, texts, 1)
	assert.Equal(t, retryNotice, texts[0])
}

func TestHandleVoiceTurn_PromptConsumedOnce(t *testing.T) {
	t.Parallel()

	f := newTurnFixture(t)
	prompt, err := domain.NewDailyPrompt(f.profile.ID, "今日の天気はどうですか？", "How's the weather today?", []string{"vocab"}, "easy")
	require.NoError(t, err)
	require.NoError(t, f.prompts.Create(context.Background(), prompt))

	_, err = f.svc.HandleVoiceTurn(context.Background(), f.voiceInput())
	require.NoError(t, err)
	assert.Equal(t, prompt.PromptText, f.coach.lastGradeReq.DailyPrompt)

	// Second turn finds no pending prompt.
	_, err = f.svc.HandleVoiceTurn(context.Background(), f.voiceInput())
	require.NoError(t, err)
	assert.Empty(t, f.coach.lastGradeReq.DailyPrompt)
}

func TestHandleVoiceTurn_DueItemsPassedToGrader(t *testing.T) {
	t.Parallel()

	f := newTurnFixture(t)
	item, err := domain.NewReviewItem(f.profile.ID, domain.ItemGrammar, "〜たことがある")
	require.NoError(t, err)
	require.NoError(t, f.items.Create(context.Background(), item))

	_, err = f.svc.HandleVoiceTurn(context.Background(), f.voiceInput())
	require.NoError(t, err)
	require.Len(t, f.coach.lastGradeReq.DueItems, 1)
	assert.Equal(t, item.ID, f.coach.lastGradeReq.DueItems[0].ID)
}

func TestHandleVoiceTurn_SynthesisFailureFallsBackToText(t *testing.T) {
	t.Parallel()

	f := newTurnFixture(t)
	f.synthesizer.err = errors.New("tts quota")

	result, err := f.svc.HandleVoiceTurn(context.Background(), f.voiceInput())
	require.NoError(t, err)
	assert.True(t, result.TextDelivered)
	assert.False(t, result.VoiceDelivered)
	assert.Equal(t, 0, f.messenger.voices)

	// Turn is still fully persisted.
	assert.Len(t, f.messages.messages, 2)
	assert.Len(t, f.grades.grades, 1)

	texts := f.messenger.sentTexts()
	require.Len(t, texts, 2)
	assert.Equal(t, voiceFallbackNotice, texts[1])
}

func TestHandleVoiceTurn_RefreshEmittedEveryTenthGrade(t *testing.T) {
	t.Parallel()

	f := newTurnFixture(t)
	for i := 0; i < RefreshEveryNGrades-1; i++ {
		f.grades.grades = append(f.grades.grades, &domain.Grade{
			ID:        uuid.New(),
			MessageID: uuid.New(),
			Scores:    domain.Scores{Overall: 70},
			CreatedAt: time.Now().UTC(),
		})
	}

	_, err := f.svc.HandleVoiceTurn(context.Background(), f.voiceInput())
	require.NoError(t, err)

	emitted := f.emitter.emitted()
	require.Len(t, emitted, 1)
	assert.Equal(t, task.TaskTypeLearnerRefresh, emitted[0].Type)

	// The next turn lands on count 11 and emits nothing.
	_, err = f.svc.HandleVoiceTurn(context.Background(), f.voiceInput())
	require.NoError(t, err)
	assert.Len(t, f.emitter.emitted(), 1)
}

func TestHandleVoiceTurn_ReusesTodaysSession(t *testing.T) {
	t.Parallel()

	f := newTurnFixture(t)
	first, err := f.svc.HandleVoiceTurn(context.Background(), f.voiceInput())
	require.NoError(t, err)
	second, err := f.svc.HandleVoiceTurn(context.Background(), f.voiceInput())
	require.NoError(t, err)

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Len(t, f.sessions.sessions, 1)
}

func TestHandleTextTurn_NoGradePersisted(t *testing.T) {
	t.Parallel()

	f := newTurnFixture(t)
	result, err := f.svc.HandleTextTurn(context.Background(), TextTurnInput{
		LearnerID: f.profile.ID,
		Text:      "最近どうですか？",
	})
	require.NoError(t, err)
	assert.True(t, result.TextDelivered)
	assert.False(t, result.VoiceDelivered)
	assert.Nil(t, result.Scores)

	// Messages persisted without transcript, no grade row.
	require.Len(t, f.messages.messages, 2)
	assert.Nil(t, f.messages.messages[0].Transcript)
	assert.Empty(t, f.grades.grades)

	// Reply plus follow-up, without the correction breakdown.
	texts := f.messenger.sentTexts()
	require.Len(t, texts, 1)
	assert.True(t, strings.HasPrefix(texts[0], f.coach.gradeResp.ReplyText))
	assert.Contains(t, texts[0], f.coach.gradeResp.FollowUp)
	assert.NotContains(t, texts[0], "You said:")

	updated, err := f.learners.Get(context.Background(), f.profile.ID)
	require.NoError(t, err)
	assert.NotNil(t, updated.LastActiveAt)
}

func TestHandleTextTurn_EmptyText(t *testing.T) {
	t.Parallel()

	f := newTurnFixture(t)
	_, err := f.svc.HandleTextTurn(context.Background(), TextTurnInput{
		LearnerID: f.profile.ID,
		Text:      "  \n ",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyTurn)
	assert.Empty(t, f.messages.messages)
}

func TestEndSession(t *testing.T) {
	t.Parallel()

	t.Run("ends today's session", func(t *testing.T) {
		t.Parallel()

		f := newTurnFixture(t)
		result, err := f.svc.HandleVoiceTurn(context.Background(), f.voiceInput())
		require.NoError(t, err)

		require.NoError(t, f.svc.EndSession(context.Background(), f.profile.ID))

		session, err := f.sessions.Get(context.Background(), f.profile.ID, result.SessionID)
		require.NoError(t, err)
		assert.NotNil(t, session.EndedAt)
	})

	t.Run("no-op without a session", func(t *testing.T) {
		t.Parallel()

		f := newTurnFixture(t)
		assert.NoError(t, f.svc.EndSession(context.Background(), f.profile.ID))
	})

	t.Run("unknown learner", func(t *testing.T) {
		t.Parallel()

		f := newTurnFixture(t)
		err := f.svc.EndSession(context.Background(), uuid.New())
		require.Error(t, err)
		assert.ErrorIs(t, err, store.ErrLearnerNotFound)
	})
}

func TestServiceError_Unwrap(t *testing.T) {
	t.Parallel()

	inner := errors.New("boom")
	err := NewServiceError("some_op", "it failed", inner)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "some_op")

	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "it failed", svcErr.Message)
}
