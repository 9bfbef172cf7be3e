package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tskoli/kaiwa/internal/domain"
	"github.com/tskoli/kaiwa/internal/events"
	"github.com/tskoli/kaiwa/internal/llm"
	"github.com/tskoli/kaiwa/internal/store"
)

// In-memory store fakes. WithTx returns the same fake so transactional and
// plain access observe one state.

type fakeLearnerStore struct {
	mu        sync.Mutex
	profiles  map[uuid.UUID]*domain.LearnerProfile
	updateErr error
}

func newFakeLearnerStore(profiles ...*domain.LearnerProfile) *fakeLearnerStore {
	s := &fakeLearnerStore{profiles: make(map[uuid.UUID]*domain.LearnerProfile)}
	for _, p := range profiles {
		cp := *p
		s.profiles[p.ID] = &cp
	}
	return s
}

func (s *fakeLearnerStore) Create(_ context.Context, profile *domain.LearnerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profile.ID]; ok {
		return store.ErrDuplicate
	}
	cp := *profile
	s.profiles[profile.ID] = &cp
	return nil
}

func (s *fakeLearnerStore) Get(_ context.Context, id uuid.UUID) (*domain.LearnerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, store.ErrLearnerNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakeLearnerStore) Update(_ context.Context, profile *domain.LearnerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.profiles[profile.ID]; !ok {
		return store.ErrLearnerNotFound
	}
	cp := *profile
	s.profiles[profile.ID] = &cp
	return nil
}

func (s *fakeLearnerStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[id]; !ok {
		return store.ErrLearnerNotFound
	}
	delete(s.profiles, id)
	return nil
}

func (s *fakeLearnerStore) WithTx(*sql.Tx) store.LearnerStore { return s }

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*domain.Session)}
}

func (s *fakeSessionStore) key(learnerID uuid.UUID, id string) string {
	return learnerID.String() + "/" + id
}

func (s *fakeSessionStore) Create(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.key(session.LearnerID, session.ID)
	if _, ok := s.sessions[k]; ok {
		return store.ErrDuplicate
	}
	cp := *session
	s.sessions[k] = &cp
	return nil
}

func (s *fakeSessionStore) Get(_ context.Context, learnerID uuid.UUID, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[s.key(learnerID, id)]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *fakeSessionStore) End(_ context.Context, learnerID uuid.UUID, id string, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[s.key(learnerID, id)]
	if !ok {
		return store.ErrSessionNotFound
	}
	sess.EndedAt = &endedAt
	return nil
}

func (s *fakeSessionStore) WithTx(*sql.Tx) store.SessionStore { return s }

type fakeMessageStore struct {
	mu        sync.Mutex
	messages  []*domain.Message
	createErr error
}

func (s *fakeMessageStore) Create(_ context.Context, message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	cp := *message
	s.messages = append(s.messages, &cp)
	return nil
}

func (s *fakeMessageStore) ListRecent(_ context.Context, sessionID string, limit int) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Message
	for _, m := range s.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *fakeMessageStore) CountVoiceTurnsOn(_ context.Context, learnerID uuid.UUID, _ time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, m := range s.messages {
		if m.LearnerID == learnerID && m.Role == domain.RoleLearner && m.Transcript != nil {
			count++
		}
	}
	return count, nil
}

func (s *fakeMessageStore) WithTx(*sql.Tx) store.MessageStore { return s }

type fakeGradeStore struct {
	mu     sync.Mutex
	grades []*domain.Grade
}

func (s *fakeGradeStore) Create(_ context.Context, grade *domain.Grade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *grade
	s.grades = append(s.grades, &cp)
	return nil
}

func (s *fakeGradeStore) GetByMessage(_ context.Context, messageID uuid.UUID) (*domain.Grade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.grades {
		if g.MessageID == messageID {
			cp := *g
			return &cp, nil
		}
	}
	return nil, store.ErrGradeNotFound
}

func (s *fakeGradeStore) ListRecent(_ context.Context, _ uuid.UUID, limit int) ([]*domain.Grade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Grade, len(s.grades))
	copy(out, s.grades)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeGradeStore) ListSince(_ context.Context, _ uuid.UUID, since time.Time) ([]*domain.Grade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Grade
	for _, g := range s.grades {
		if !g.CreatedAt.Before(since) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *fakeGradeStore) CountForLearner(context.Context, uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.grades), nil
}

func (s *fakeGradeStore) WithTx(*sql.Tx) store.GradeStore { return s }

type fakeReviewItemStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.ReviewItem
}

func newFakeReviewItemStore(items ...*domain.ReviewItem) *fakeReviewItemStore {
	s := &fakeReviewItemStore{items: make(map[uuid.UUID]*domain.ReviewItem)}
	for _, item := range items {
		cp := *item
		s.items[item.ID] = &cp
	}
	return s
}

func (s *fakeReviewItemStore) Create(_ context.Context, item *domain.ReviewItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *fakeReviewItemStore) Get(_ context.Context, id uuid.UUID) (*domain.ReviewItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrReviewItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *fakeReviewItemStore) ListDue(_ context.Context, _ uuid.UUID, asOf time.Time, limit int) ([]*domain.ReviewItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	end := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, asOf.Location()).AddDate(0, 0, 1)
	var out []*domain.ReviewItem
	for _, item := range s.items {
		if item.NextDueAt.Before(end) {
			cp := *item
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextDueAt.Before(out[j].NextDueAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeReviewItemStore) ListAll(_ context.Context, _ uuid.UUID) ([]*domain.ReviewItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.ReviewItem
	for _, item := range s.items {
		cp := *item
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextDueAt.Before(out[j].NextDueAt) })
	return out, nil
}

func (s *fakeReviewItemStore) UpdateSchedule(_ context.Context, item *domain.ReviewItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		return store.ErrReviewItemNotFound
	}
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *fakeReviewItemStore) WithTx(*sql.Tx) store.ReviewItemStore { return s }

type fakePromptStore struct {
	mu      sync.Mutex
	prompts []*domain.DailyPrompt
}

func (s *fakePromptStore) Create(_ context.Context, prompt *domain.DailyPrompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *prompt
	s.prompts = append(s.prompts, &cp)
	return nil
}

func (s *fakePromptStore) ListForDay(_ context.Context, _ uuid.UUID, _ time.Time) ([]*domain.DailyPrompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.DailyPrompt, len(s.prompts))
	copy(out, s.prompts)
	return out, nil
}

func (s *fakePromptStore) ListUnansweredForDay(_ context.Context, _ uuid.UUID, _ time.Time) ([]*domain.DailyPrompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.DailyPrompt
	for _, p := range s.prompts {
		if p.AnsweredAt == nil {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakePromptStore) MarkAnswered(_ context.Context, id uuid.UUID, answeredAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.prompts {
		if p.ID == id {
			if p.AnsweredAt != nil {
				return store.ErrPromptAlreadyAnswered
			}
			p.AnsweredAt = &answeredAt
			return nil
		}
	}
	return store.ErrPromptNotFound
}

func (s *fakePromptStore) WithTx(*sql.Tx) store.PromptStore { return s }

// Scripted collaborator fakes.

type fakeCoach struct {
	mu           sync.Mutex
	gradeResp    *llm.GradeResponse
	gradeErr     error
	gradeCalls   int
	lastGradeReq llm.GradeRequest
	questions    []llm.GeneratedQuestion
	questionsErr error
}

func (c *fakeCoach) GradeTurn(_ context.Context, req llm.GradeRequest) (*llm.GradeResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gradeCalls++
	c.lastGradeReq = req
	if c.gradeErr != nil {
		return nil, c.gradeErr
	}
	return c.gradeResp, nil
}

func (c *fakeCoach) GenerateQuestions(_ context.Context, _ *domain.LearnerProfile, kinds []llm.QuestionKind) ([]llm.GeneratedQuestion, error) {
	if c.questionsErr != nil {
		return nil, c.questionsErr
	}
	if c.questions != nil {
		return c.questions, nil
	}
	out := make([]llm.GeneratedQuestion, len(kinds))
	for i, kind := range kinds {
		out[i] = llm.GeneratedQuestion{PromptText: "question for " + string(kind)}
	}
	return out, nil
}

func (c *fakeCoach) WeeklySummary(context.Context, *domain.LearnerProfile, []*domain.Grade) (*llm.SummaryResponse, error) {
	return &llm.SummaryResponse{Highlights: []string{"kept the streak"}}, nil
}

func (c *fakeCoach) RewriteLearnerSummary(_ context.Context, current string, _ []*domain.Grade) (string, error) {
	return current, nil
}

// callLog records call order across collaborators so delivery-sequence
// assertions can span fakes. A nil log records nothing.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) record(name string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) recorded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return f.text, f.err
}

type fakeSynthesizer struct {
	audio []byte
	err   error
	log   *callLog
}

func (f *fakeSynthesizer) Synthesize(context.Context, string) ([]byte, string, error) {
	f.log.record("synthesize")
	if f.err != nil {
		return nil, "", f.err
	}
	return f.audio, "audio/mpeg", nil
}

type fakeMessenger struct {
	mu      sync.Mutex
	texts   []string
	voices  int
	textErr error
	log     *callLog
}

func (f *fakeMessenger) SendText(_ context.Context, text string) error {
	f.log.record("send_text")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.textErr != nil {
		return f.textErr
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeMessenger) SendVoice(context.Context, []byte, string, string) error {
	f.log.record("send_voice")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voices++
	return nil
}

func (f *fakeMessenger) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.texts))
	copy(out, f.texts)
	return out
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []*events.TaskRequestEvent
}

func (f *fakeEmitter) EmitEvent(_ context.Context, event *events.TaskRequestEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEmitter) emitted() []*events.TaskRequestEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*events.TaskRequestEvent, len(f.events))
	copy(out, f.events)
	return out
}
