package services

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/git-sakshii/RealPrep-AI-App/internal/ai"
	"github.com/git-sakshii/RealPrep-AI-App/internal/models"
)

type sessionStubStore struct {
	mu       sync.Mutex
	scratch  map[string][]models.EmotionSample
	results  map[string]*models.SessionResult
	profiles map[string]*models.UserProfile
	configs  map[string]*models.InterviewConfig
}

func newSessionStubStore() *sessionStubStore {
	return &sessionStubStore{
		scratch:  map[string][]models.EmotionSample{},
		results:  map[string]*models.SessionResult{},
		profiles: map[string]*models.UserProfile{},
		configs:  map[string]*models.InterviewConfig{},
	}
}

func (s *sessionStubStore) AddScratchSample(id string, sample models.EmotionSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scratch[id] = append(s.scratch[id], sample)
	return nil
}

func (s *sessionStubStore) ListScratchSamples(id string) ([]models.EmotionSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.EmotionSample(nil), s.scratch[id]...), nil
}

func (s *sessionStubStore) ClearScratchSamples(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scratch, id)
	return nil
}

func (s *sessionStubStore) PutResult(r *models.SessionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *r
	s.results[r.ID] = &copy
	return nil
}

func (s *sessionStubStore) GetResult(id string) (*models.SessionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.results[id]; ok {
		copy := *r
		return &copy, nil
	}
	return nil, nil
}

func (s *sessionStubStore) ListResultsByUser(uid string, limit int) ([]*models.SessionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.SessionResult
	for _, r := range s.results {
		if r.UserID == uid && len(out) < limit {
			copy := *r
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (s *sessionStubStore) GetProfile(uid string) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[uid]; ok {
		copy := *p
		return &copy, nil
	}
	return nil, nil
}

func (s *sessionStubStore) PutProfile(uid string, p *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *p
	s.profiles[uid] = &copy
	return nil
}

func (s *sessionStubStore) GetConfig(uid string) (*models.InterviewConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.configs[uid]; ok {
		copy := *c
		return &copy, nil
	}
	return nil, nil
}

func (s *sessionStubStore) PutConfig(uid string, c *models.InterviewConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *c
	s.configs[uid] = &copy
	return nil
}

type chatFunc func(ctx context.Context, messages []ai.ChatMessage, temperature float64, maxTokens int) (string, error)

func (f chatFunc) Complete(ctx context.Context, messages []ai.ChatMessage, temperature float64, maxTokens int) (string, error) {
	return f(ctx, messages, temperature, maxTokens)
}

type transcriberFunc func(ctx context.Context, clip []byte, filename string) (string, error)

func (f transcriberFunc) Transcribe(ctx context.Context, clip []byte, filename string) (string, error) {
	return f(ctx, clip, filename)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestService(store *sessionStubStore) *SessionService {
	gen := ai.NewGenerator(ai.MockChat{}, quietLogger())
	return NewSessionService(store, gen, ai.MockTranscriber{}, ai.MockSynthesizer{}, ai.MockEmotion{}, ai.MockRetriever{}, quietLogger())
}

// beginTurn walks the state machine from ai-speaking to user-speaking.
func beginTurn(t *testing.T, svc *SessionService, id string) {
	t.Helper()
	if err := svc.PlaybackDone(id); err != nil {
		t.Fatalf("PlaybackDone returned error: %v", err)
	}
	if err := svc.StartRecording(id); err != nil {
		t.Fatalf("StartRecording returned error: %v", err)
	}
}

func TestStartUsesFallbackQuestions(t *testing.T) {
	store := newSessionStubStore()
	svc := newTestService(store)

	res, err := svc.Start(context.Background(), "user-1", models.InterviewConfig{QuestionCount: 4, DurationMin: 20}, "")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	sess := res.Session
	if len(sess.Questions) != 4 {
		t.Fatalf("expected 4 questions, got %d", len(sess.Questions))
	}
	if sess.Questions[0].Text != ai.FallbackQuestions[0] {
		t.Fatalf("expected fallback question first, got %q", sess.Questions[0].Text)
	}
	if sess.State != models.StateAISpeaking {
		t.Fatalf("expected ai-speaking after intro synthesis, got %q", sess.State)
	}
	if len(res.Audio) == 0 {
		t.Fatalf("expected intro audio")
	}
	if len(sess.Messages) != 1 || sess.Messages[0].Sender != models.SenderInterviewer {
		t.Fatalf("expected one interviewer message, got %+v", sess.Messages)
	}
	if cfg := store.configs["user-1"]; cfg == nil || cfg.QuestionCount != 4 {
		t.Fatalf("last-used config not saved: %+v", cfg)
	}
}

func TestRecordingOnlyFromIdle(t *testing.T) {
	store := newSessionStubStore()
	svc := newTestService(store)

	res, err := svc.Start(context.Background(), "", models.InterviewConfig{}, "")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	id := res.Session.ID

	if err := svc.StartRecording(id); err == nil {
		t.Fatalf("expected rejection while interviewer is speaking")
	}
	if err := svc.PlaybackDone(id); err != nil {
		t.Fatalf("PlaybackDone returned error: %v", err)
	}
	if err := svc.StartRecording(id); err != nil {
		t.Fatalf("StartRecording from idle returned error: %v", err)
	}
	if err := svc.StartRecording(id); err == nil {
		t.Fatalf("expected rejection while already recording")
	}
	if err := svc.StartRecording("nope"); err == nil {
		t.Fatalf("expected not found for unknown session")
	}
}

func TestSubmitAnswerAdvancesIntro(t *testing.T) {
	store := newSessionStubStore()
	svc := newTestService(store)

	res, err := svc.Start(context.Background(), "user-1", models.InterviewConfig{QuestionCount: 3}, "")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	id := res.Session.ID
	beginTurn(t, svc, id)

	turn, err := svc.SubmitAnswer(id, []byte("clip"), "a.wav")
	if err != nil {
		t.Fatalf("SubmitAnswer returned error: %v", err)
	}
	if !turn.Advanced || turn.QuestionIndex != 1 {
		t.Fatalf("introduction answer must advance: %+v", turn)
	}
	if turn.Interviewer == nil || !strings.Contains(turn.Interviewer.Text, ai.FallbackQuestions[1]) {
		t.Fatalf("reply should carry the next question: %+v", turn.Interviewer)
	}
	if len(turn.Audio) == 0 {
		t.Fatalf("expected synthesized reply audio")
	}

	sess, err := svc.Get(id)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if sess.State != models.StateAISpeaking {
		t.Fatalf("expected ai-speaking after reply, got %q", sess.State)
	}
	if turn.Candidate.TurnID == "" || turn.Candidate.TurnID == turn.Interviewer.TurnID {
		t.Fatalf("answer and next question must belong to different turns")
	}
}

func TestFollowUpBudgetThenAdvance(t *testing.T) {
	store := newSessionStubStore()
	svc := newTestService(store)

	res, err := svc.Start(context.Background(), "", models.InterviewConfig{QuestionCount: 4}, "")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	id := res.Session.ID

	// Intro answer advances to question 1.
	beginTurn(t, svc, id)
	if _, err := svc.SubmitAnswer(id, []byte("clip"), "a.wav"); err != nil {
		t.Fatalf("SubmitAnswer returned error: %v", err)
	}

	// Two plain answers produce follow-ups without moving the index.
	for i := 0; i < models.MaxFollowUps; i++ {
		beginTurn(t, svc, id)
		turn, err := svc.SubmitAnswer(id, []byte("clip"), "a.wav")
		if err != nil {
			t.Fatalf("SubmitAnswer %d returned error: %v", i, err)
		}
		if turn.Advanced || turn.QuestionIndex != 1 {
			t.Fatalf("answer %d should stay on question 1: %+v", i, turn)
		}
	}
	sess, _ := svc.Get(id)
	if !sess.CurrentPrompt.FollowUp || sess.FollowUps != models.MaxFollowUps {
		t.Fatalf("expected follow-up prompt with spent budget: %+v", sess.CurrentPrompt)
	}

	// Budget spent: the next answer must advance.
	beginTurn(t, svc, id)
	turn, err := svc.SubmitAnswer(id, []byte("clip"), "a.wav")
	if err != nil {
		t.Fatalf("SubmitAnswer returned error: %v", err)
	}
	if !turn.Advanced || turn.QuestionIndex != 2 {
		t.Fatalf("expected advance after follow-up budget: %+v", turn)
	}
}

func TestMoveOnKeywordAdvances(t *testing.T) {
	store := newSessionStubStore()
	svc := newTestService(store)
	svc.stt = transcriberFunc(func(_ context.Context, _ []byte, _ string) (string, error) {
		return "I would rather move on, please.", nil
	})

	res, err := svc.Start(context.Background(), "", models.InterviewConfig{QuestionCount: 4}, "")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	id := res.Session.ID

	beginTurn(t, svc, id)
	if _, err := svc.SubmitAnswer(id, []byte("clip"), "a.wav"); err != nil {
		t.Fatalf("SubmitAnswer returned error: %v", err)
	}
	beginTurn(t, svc, id)
	turn, err := svc.SubmitAnswer(id, []byte("clip"), "a.wav")
	if err != nil {
		t.Fatalf("SubmitAnswer returned error: %v", err)
	}
	if !turn.Advanced || turn.QuestionIndex != 2 {
		t.Fatalf("move-on keyword should advance without follow-ups: %+v", turn)
	}
}

func TestTranscriptionFailureIsTurnLocal(t *testing.T) {
	store := newSessionStubStore()
	svc := newTestService(store)

	res, err := svc.Start(context.Background(), "", models.InterviewConfig{}, "")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	id := res.Session.ID
	beginTurn(t, svc, id)

	// Empty clip drives the transcriber's no-transcript path.
	if _, err := svc.SubmitAnswer(id, nil, "a.wav"); err == nil {
		t.Fatalf("expected error for empty recording")
	}
	sess, _ := svc.Get(id)
	if sess.State != models.StateIdle {
		t.Fatalf("failed turn must return to idle, got %q", sess.State)
	}
	if len(sess.Messages) != 1 {
		t.Fatalf("failed turn must not append messages: %d", len(sess.Messages))
	}

	// The candidate may simply try again.
	if err := svc.StartRecording(id); err != nil {
		t.Fatalf("retry StartRecording returned error: %v", err)
	}
	if _, err := svc.SubmitAnswer(id, []byte("clip"), "a.wav"); err != nil {
		t.Fatalf("retry SubmitAnswer returned error: %v", err)
	}
}

func TestCaptureFrameAttachesToNextAnswer(t *testing.T) {
	store := newSessionStubStore()
	svc := newTestService(store)

	res, err := svc.Start(context.Background(), "user-1", models.InterviewConfig{}, "")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	id := res.Session.ID

	scores, err := svc.CaptureFrame(id, []byte("jpeg"))
	if err != nil {
		t.Fatalf("CaptureFrame returned error: %v", err)
	}
	if len(scores) == 0 {
		t.Fatalf("expected scores from inference")
	}

	beginTurn(t, svc, id)
	turn, err := svc.SubmitAnswer(id, []byte("clip"), "a.wav")
	if err != nil {
		t.Fatalf("SubmitAnswer returned error: %v", err)
	}

	sess, _ := svc.Get(id)
	if len(sess.Samples) != 1 {
		t.Fatalf("expected one emotion sample, got %d", len(sess.Samples))
	}
	sample := sess.Samples[0]
	if sample.TurnID != turn.Candidate.TurnID {
		t.Fatalf("sample must carry the answer's turn id")
	}
	if sample.Answer != turn.Candidate.Text || len(sample.Scores) == 0 {
		t.Fatalf("sample incomplete: %+v", sample)
	}
	if cached := store.scratch[id]; len(cached) != 1 {
		t.Fatalf("sample must also be cached in the store, got %d", len(cached))
	}

	// A second answer without a new frame produces no second sample.
	beginTurn(t, svc, id)
	if _, err := svc.SubmitAnswer(id, []byte("clip"), "a.wav"); err != nil {
		t.Fatalf("SubmitAnswer returned error: %v", err)
	}
	sess, _ = svc.Get(id)
	if len(sess.Samples) != 1 {
		t.Fatalf("stale scores must not be reused: %d samples", len(sess.Samples))
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	store := newSessionStubStore()
	store.profiles["user-1"] = &models.UserProfile{Email: "u@example.com", InterviewsCompleted: 1}
	svc := newTestService(store)

	res, err := svc.Start(context.Background(), "user-1", models.InterviewConfig{}, "")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	id := res.Session.ID

	beginTurn(t, svc, id)
	if _, err := svc.SubmitAnswer(id, []byte("clip"), "a.wav"); err != nil {
		t.Fatalf("SubmitAnswer returned error: %v", err)
	}

	first, err := svc.Finish(id)
	if err != nil {
		t.Fatalf("Finish returned error: %v", err)
	}
	second, err := svc.Finish(id)
	if err != nil {
		t.Fatalf("second Finish returned error: %v", err)
	}
	if first == "" || first != second {
		t.Fatalf("finalization must be idempotent: %q vs %q", first, second)
	}

	result, err := svc.Result(first)
	if err != nil {
		t.Fatalf("Result returned error: %v", err)
	}
	if result.Summary == "" {
		t.Fatalf("expected a summary")
	}
	if len(result.Transcriptions) == 0 {
		t.Fatalf("expected transcriptions in result")
	}
	if len(store.scratch[id]) != 0 {
		t.Fatalf("scratch samples must be cleared after finalization")
	}
	if got := store.profiles["user-1"].InterviewsCompleted; got != 2 {
		t.Fatalf("interview counter not bumped: %d", got)
	}

	sess, _ := svc.Get(id)
	if sess.State != models.StateEnded {
		t.Fatalf("expected ended state, got %q", sess.State)
	}
	if err := svc.StartRecording(id); err == nil {
		t.Fatalf("expected rejection after session end")
	}
}

func TestSummaryPlaceholderOnChatFailure(t *testing.T) {
	store := newSessionStubStore()
	svc := newTestService(store)
	svc.gen = ai.NewGenerator(chatFunc(func(_ context.Context, _ []ai.ChatMessage, _ float64, _ int) (string, error) {
		return "", context.DeadlineExceeded
	}), quietLogger())

	res, err := svc.Start(context.Background(), "", models.InterviewConfig{}, "")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	resultID, err := svc.Finish(res.Session.ID)
	if err != nil {
		t.Fatalf("Finish returned error: %v", err)
	}
	result, err := svc.Result(resultID)
	if err != nil {
		t.Fatalf("Result returned error: %v", err)
	}
	if result.Summary != summaryPlaceholder {
		t.Fatalf("expected placeholder summary, got %q", result.Summary)
	}
}

func TestQuestionExhaustionEndsSession(t *testing.T) {
	store := newSessionStubStore()
	svc := newTestService(store)
	svc.stt = transcriberFunc(func(_ context.Context, _ []byte, _ string) (string, error) {
		return "next question please", nil
	})

	res, err := svc.Start(context.Background(), "", models.InterviewConfig{QuestionCount: 2}, "")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	id := res.Session.ID

	beginTurn(t, svc, id)
	if _, err := svc.SubmitAnswer(id, []byte("clip"), "a.wav"); err != nil {
		t.Fatalf("SubmitAnswer returned error: %v", err)
	}
	beginTurn(t, svc, id)
	turn, err := svc.SubmitAnswer(id, []byte("clip"), "a.wav")
	if err != nil {
		t.Fatalf("SubmitAnswer returned error: %v", err)
	}
	if !turn.Finalized || turn.ResultID == "" {
		t.Fatalf("exhausting the list must finalize: %+v", turn)
	}
	if _, err := svc.Result(turn.ResultID); err != nil {
		t.Fatalf("Result returned error: %v", err)
	}
}

func TestSessionClockEndsExpiredSession(t *testing.T) {
	store := newSessionStubStore()
	svc := newTestService(store)
	clock := &fakeClock{t: time.Unix(1000, 0).UTC()}
	svc.now = clock.Now
	svc.tick = 2 * time.Millisecond

	res, err := svc.Start(context.Background(), "", models.InterviewConfig{DurationMin: 1}, "")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	events, cancel, err := svc.Subscribe(res.Session.ID)
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	defer cancel()

	clock.Advance(2 * time.Minute)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == EventFinalized {
				if ev.ResultID == "" {
					t.Fatalf("finalized event without result id")
				}
				sess, _ := svc.Get(res.Session.ID)
				if sess.State != models.StateEnded || !sess.TimeUp {
					t.Fatalf("expected ended session with time up: %+v", sess.State)
				}
				return
			}
		case <-deadline:
			t.Fatalf("session clock did not finalize expired session")
		}
	}
}

func TestMergeSamplesDedupesByTurn(t *testing.T) {
	ts := time.Unix(2000, 0).UTC()
	inSession := []models.EmotionSample{
		{TurnID: "t1", Question: "Q1", Answer: "A1", Scores: []models.EmotionScore{{Name: "Calmness", Score: 0.7}}, Timestamp: ts},
	}
	scratch := []models.EmotionSample{
		{TurnID: "t1", Question: "Q1", Answer: "A1", Timestamp: ts},
		{TurnID: "t2", Question: "Q2", Answer: "A2", Timestamp: ts},
	}
	messages := []models.Message{
		{TurnID: "t1", Sender: models.SenderInterviewer, Text: "Q1"},
		{TurnID: "t1", Sender: models.SenderCandidate, Text: "A1"},
		{TurnID: "t3", Sender: models.SenderInterviewer, Text: "Q3"},
		{TurnID: "t3", Sender: models.SenderCandidate, Text: "A3"},
	}

	merged := mergeSamples(inSession, scratch, messages)
	if len(merged) != 3 {
		t.Fatalf("expected 3 samples, got %d: %+v", len(merged), merged)
	}
	if merged[0].TurnID != "t1" || len(merged[0].Scores) == 0 {
		t.Fatalf("scored in-session sample must win for its turn: %+v", merged[0])
	}
	if merged[2].TurnID != "t3" || merged[2].Question != "Q3" || merged[2].Answer != "A3" {
		t.Fatalf("uncaptured turn must be reconstructed from the transcript: %+v", merged[2])
	}
}

func TestCollectTranscriptionsDedupes(t *testing.T) {
	messages := []models.Message{
		{Sender: models.SenderInterviewer, Text: "Q1"},
		{Sender: models.SenderCandidate, Text: "same answer"},
		{Sender: models.SenderCandidate, Text: "same answer"},
		{Sender: models.SenderCandidate, Text: "other answer"},
	}
	scratch := []models.EmotionSample{{Answer: "same answer"}, {Answer: "third answer"}}

	got := collectTranscriptions(messages, scratch)
	want := []string{"same answer", "other answer", "third answer"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
