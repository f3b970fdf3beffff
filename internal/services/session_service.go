package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/git-sakshii/RealPrep-AI-App/internal/ai"
	"github.com/git-sakshii/RealPrep-AI-App/internal/models"
)

const (
	sessionTick       = time.Second
	questionTimeLimit = 120 * time.Second

	// After this many main questions, next-question generation is
	// redirected to the retrieval service.
	retrievalCutover = 5

	// How many recent messages the generator sees.
	historyWindow = 6

	defaultQuestionCount = 10
	defaultDurationMin   = 20
)

// moveOnKeywords advance to the next main question when found in the
// lower-cased transcript.
var moveOnKeywords = []string{
	"move on",
	"next question",
	"skip this",
	"let's continue",
	"i'm done",
	"that's all",
}

// SessionStore is what the orchestrator needs from persistence: the per-turn
// scratch samples, finalized results, the last-used configuration, and the
// profile interview counter.
type SessionStore interface {
	AddScratchSample(sessionID string, sample models.EmotionSample) error
	ListScratchSamples(sessionID string) ([]models.EmotionSample, error)
	ClearScratchSamples(sessionID string) error
	PutResult(r *models.SessionResult) error
	GetResult(id string) (*models.SessionResult, error)
	ListResultsByUser(uid string, limit int) ([]*models.SessionResult, error)
	GetProfile(uid string) (*models.UserProfile, error)
	PutProfile(uid string, p *models.UserProfile) error
	GetConfig(uid string) (*models.InterviewConfig, error)
	PutConfig(uid string, c *models.InterviewConfig) error
}

type EventType string

const (
	EventState     EventType = "state"
	EventMessage   EventType = "message"
	EventQuestion  EventType = "question"
	EventFinalized EventType = "finalized"
)

// Event is pushed to session subscribers (the websocket feed) on every
// state transition, message, question change, and at finalization.
type Event struct {
	Type     EventType           `json:"type"`
	State    models.SessionState `json:"state,omitempty"`
	Message  *models.Message     `json:"message,omitempty"`
	Question *models.Question    `json:"question,omitempty"`
	Audio    []byte              `json:"audio,omitempty"`
	ResultID string              `json:"result_id,omitempty"`
}

// sessionRuntime is the live, in-memory side of a session: the entity, the
// lifetime context its cloud calls are tied to, the most recent emotion
// capture awaiting its answer, and the subscriber set.
type sessionRuntime struct {
	mu     sync.Mutex
	s      *models.Session
	ctx    context.Context
	cancel context.CancelFunc

	turnID      string
	lastScores  []models.EmotionScore
	lastLatency int64

	subs      map[chan Event]struct{}
	finalized bool
	resultID  string
}

// SessionService runs the interview session state machine and sequences the
// cloud calls for each turn.
type SessionService struct {
	store     SessionStore
	gen       *ai.Generator
	stt       ai.Transcriber
	tts       ai.Synthesizer
	emotion   ai.EmotionClient
	retriever ai.QuestionRetriever
	log       *slog.Logger

	now   func() time.Time
	idGen func() string

	tick          time.Duration
	questionLimit time.Duration

	mu       sync.Mutex
	sessions map[string]*sessionRuntime
}

func NewSessionService(store SessionStore, gen *ai.Generator, stt ai.Transcriber, tts ai.Synthesizer, emotion ai.EmotionClient, retriever ai.QuestionRetriever, log *slog.Logger) *SessionService {
	if log == nil {
		log = slog.Default()
	}
	return &SessionService{
		store:         store,
		gen:           gen,
		stt:           stt,
		tts:           tts,
		emotion:       emotion,
		retriever:     retriever,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
		idGen:         uuid.NewString,
		tick:          sessionTick,
		questionLimit: questionTimeLimit,
		sessions:      map[string]*sessionRuntime{},
	}
}

// StartResult carries the new session snapshot plus the synthesized audio
// for the introduction question.
type StartResult struct {
	Session *models.Session
	Audio   []byte
}

// Start creates a session, generates (or falls back to) the question list,
// asks the introduction question, and begins the session clock.
func (s *SessionService) Start(ctx context.Context, userID string, cfg models.InterviewConfig, resume string) (*StartResult, error) {
	if cfg.QuestionCount <= 0 {
		cfg.QuestionCount = defaultQuestionCount
	}
	if cfg.DurationMin <= 0 {
		cfg.DurationMin = defaultDurationMin
	}
	if userID != "" {
		if err := s.store.PutConfig(userID, &cfg); err != nil {
			s.log.Warn("failed to save interview config", "user_id", userID, "error", err)
		}
	}

	questions := s.gen.Questions(ctx, resume, cfg.QuestionCount, cfg.Difficulty)
	now := s.now()
	sess := &models.Session{
		ID:            s.idGen(),
		UserID:        userID,
		Config:        cfg,
		StartedAt:     now,
		Questions:     questions,
		CurrentPrompt: questions[0],
		State:         models.StateIdle,
	}
	sess.MarkAsked(now)

	sessCtx, cancel := context.WithCancel(context.Background())
	rt := &sessionRuntime{
		s:      sess,
		ctx:    sessCtx,
		cancel: cancel,
		turnID: s.idGen(),
		subs:   map[chan Event]struct{}{},
	}

	intro := models.Message{
		ID:        s.idGen(),
		TurnID:    rt.turnID,
		Sender:    models.SenderInterviewer,
		Text:      sess.CurrentPrompt.Text,
		Timestamp: now,
	}
	sess.AppendMessage(intro)

	audio, err := s.tts.Synthesize(sessCtx, intro.Text)
	if err != nil {
		s.log.Warn("intro synthesis failed", "session_id", sess.ID, "error", err)
		audio = nil
	} else {
		sess.State = models.StateAISpeaking
	}

	s.mu.Lock()
	s.sessions[sess.ID] = rt
	s.mu.Unlock()

	go s.runClock(rt)

	s.log.Info("session started",
		"session_id", sess.ID,
		"user_id", userID,
		"questions", len(questions),
		"duration_min", cfg.DurationMin)

	return &StartResult{Session: snapshot(sess), Audio: audio}, nil
}

// Get returns a point-in-time copy of the session.
func (s *SessionService) Get(sessionID string) (*models.Session, error) {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return nil, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return snapshot(rt.s), nil
}

// StartRecording moves idle → user-speaking. It is rejected while the
// interviewer is speaking or thinking, and after the session has ended.
func (s *SessionService) StartRecording(sessionID string) error {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.finalized {
		return NewInvalidError("session has ended")
	}
	if rt.s.State != models.StateIdle {
		return NewBusyError("recording unavailable while interviewer is " + string(rt.s.State))
	}
	rt.s.State = models.StateUserSpeaking
	rt.emit(Event{Type: EventState, State: rt.s.State})
	return nil
}

// PlaybackDone moves ai-speaking → idle once the client finishes playing the
// synthesized reply.
func (s *SessionService) PlaybackDone(sessionID string) error {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.finalized || rt.s.State != models.StateAISpeaking {
		return nil
	}
	rt.s.State = models.StateIdle
	rt.emit(Event{Type: EventState, State: rt.s.State})
	return nil
}

// CaptureFrame runs best-effort emotion inference on a camera frame. The
// scores are held until the next answer arrives and are then attached to
// that turn's sample. Failures never affect the turn.
func (s *SessionService) CaptureFrame(sessionID string, image []byte) ([]models.EmotionScore, error) {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, NewInvalidError("empty frame")
	}
	started := s.now()
	scores, inferErr := s.emotion.Infer(rt.ctx, image)
	if inferErr != nil {
		s.log.Warn("emotion inference failed", "session_id", sessionID, "error", inferErr)
		return nil, nil
	}
	rt.mu.Lock()
	rt.lastScores = scores
	rt.lastLatency = s.now().Sub(started).Milliseconds()
	rt.mu.Unlock()
	return scores, nil
}

// TurnResult is what one answered turn produces.
type TurnResult struct {
	Candidate     models.Message
	Interviewer   *models.Message
	Audio         []byte
	QuestionIndex int
	Advanced      bool
	Finalized     bool
	ResultID      string
}

// SubmitAnswer runs the turn pipeline: transcribe the clip, attach the
// pending emotion capture, decide whether to advance or probe deeper,
// generate the interviewer's reply, and synthesize its speech. Every
// failure before the reply is turn-local: state returns to idle and the
// candidate may simply try again.
func (s *SessionService) SubmitAnswer(sessionID string, clip []byte, filename string) (*TurnResult, error) {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return nil, err
	}

	rt.mu.Lock()
	if rt.finalized {
		rt.mu.Unlock()
		return nil, NewInvalidError("session has ended")
	}
	if rt.s.State != models.StateUserSpeaking {
		rt.mu.Unlock()
		return nil, NewInvalidError("no recording in progress")
	}
	rt.s.State = models.StateAIThinking
	rt.emit(Event{Type: EventState, State: rt.s.State})
	turnID := rt.turnID
	prompt := rt.s.CurrentPrompt
	rt.mu.Unlock()

	submitted := s.now()
	transcript, err := s.stt.Transcribe(rt.ctx, clip, filename)
	if err != nil {
		s.backToIdle(rt)
		if errors.Is(err, ai.ErrNoTranscript) {
			return nil, NewInvalidError("no speech recognized in recording")
		}
		return nil, NewBadGatewayError("transcription failed: " + err.Error())
	}

	now := s.now()
	candidate := models.Message{
		ID:        s.idGen(),
		TurnID:    turnID,
		Sender:    models.SenderCandidate,
		Text:      transcript,
		Timestamp: now,
		LatencyMs: now.Sub(submitted).Milliseconds(),
	}

	rt.mu.Lock()
	rt.s.AppendMessage(candidate)
	rt.emit(Event{Type: EventMessage, Message: &candidate})
	if rt.lastScores != nil {
		sample := models.EmotionSample{
			TurnID:    turnID,
			Question:  prompt.Text,
			Answer:    transcript,
			Scores:    rt.lastScores,
			Timestamp: now,
			LatencyMs: rt.lastLatency,
			FollowUp:  prompt.FollowUp,
		}
		rt.s.AppendSample(sample)
		if err := s.store.AddScratchSample(rt.s.ID, sample); err != nil {
			s.log.Warn("failed to cache emotion sample", "session_id", rt.s.ID, "error", err)
		}
		rt.lastScores = nil
	}
	timeUp := rt.s.TimeUp
	rt.mu.Unlock()

	if timeUp {
		resultID := s.finalize(rt)
		return &TurnResult{Candidate: candidate, Finalized: true, ResultID: resultID}, nil
	}

	reply, question, advanced, exhausted := s.nextPrompt(rt, transcript, prompt)
	if exhausted {
		resultID := s.finalize(rt)
		return &TurnResult{Candidate: candidate, Finalized: true, ResultID: resultID}, nil
	}

	replyAt := s.now()
	interviewer := models.Message{
		ID:        s.idGen(),
		Sender:    models.SenderInterviewer,
		Text:      reply,
		Timestamp: replyAt,
		LatencyMs: replyAt.Sub(now).Milliseconds(),
	}

	audio, synthErr := s.tts.Synthesize(rt.ctx, reply)

	rt.mu.Lock()
	rt.turnID = s.idGen()
	interviewer.TurnID = rt.turnID
	rt.s.AppendMessage(interviewer)
	rt.s.MarkAsked(replyAt)
	if synthErr != nil {
		s.log.Warn("reply synthesis failed", "session_id", rt.s.ID, "error", synthErr)
		rt.s.State = models.StateIdle
	} else {
		rt.s.State = models.StateAISpeaking
	}
	rt.emit(Event{Type: EventMessage, Message: &interviewer})
	rt.emit(Event{Type: EventQuestion, Question: &question})
	rt.emit(Event{Type: EventState, State: rt.s.State})
	index := rt.s.CurrentIndex
	rt.mu.Unlock()

	return &TurnResult{
		Candidate:     candidate,
		Interviewer:   &interviewer,
		Audio:         audio,
		QuestionIndex: index,
		Advanced:      advanced,
	}, nil
}

// nextPrompt applies the advancement policy and produces the interviewer's
// next utterance. It returns the full reply text, the question now current,
// whether the main index advanced, and whether the list is exhausted. All
// cloud calls happen with the runtime unlocked.
func (s *SessionService) nextPrompt(rt *sessionRuntime, transcript string, prompt models.Question) (reply string, question models.Question, advanced, exhausted bool) {
	rt.mu.Lock()
	sess := rt.s
	intro := sess.CurrentIndex == 0 && !prompt.FollowUp
	elapsed := s.now().Sub(sess.QuestionStartedAt)
	moveOn := containsMoveOn(transcript) ||
		sess.FollowUps >= models.MaxFollowUps ||
		(sess.CurrentIndex > 0 && elapsed >= s.questionLimit)
	mainsAsked := sess.MainQuestionsAsked()
	history := chatHistory(sess.Messages, historyWindow)
	scores := ai.TopScores(lastSampleScores(sess), 3)
	techStack := sess.Config.TechStack
	previous := append([]string(nil), sess.AskedQuestions...)
	rt.mu.Unlock()

	// The introduction always advances: its job is done once answered.
	if intro {
		moveOn = true
	}

	ack, err := s.gen.Acknowledge(rt.ctx, transcript, intro)
	if err != nil {
		s.log.Warn("acknowledgment generation failed", "session_id", sess.ID, "error", err)
		ack = ""
	}

	// Generate replacement or follow-up text before touching session state.
	var genText string
	var genOK bool
	switch {
	case moveOn && mainsAsked >= retrievalCutover:
		genText, genOK = s.retrieveQuestion(rt, scores, techStack, previous, history)
	case !moveOn:
		if mainsAsked >= retrievalCutover {
			genText, genOK = s.retrieveQuestion(rt, scores, techStack, previous, history)
		} else if t, err := s.gen.FollowUp(rt.ctx, scores, history); err == nil {
			genText, genOK = t, true
		} else {
			s.log.Warn("follow-up generation failed", "session_id", sess.ID, "error", err)
		}
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.finalized {
		return "", models.Question{}, false, true
	}

	if moveOn {
		if !sess.Advance() {
			return "", models.Question{}, false, true
		}
		advanced = true
		if genOK {
			sess.Questions[sess.CurrentIndex].Text = genText
			sess.CurrentPrompt.Text = genText
		}
	} else if genOK {
		sess.AskFollowUp(models.Question{ID: s.idGen(), Text: genText})
	} else if sess.Advance() {
		// Could not generate a follow-up; fall forward to the next main
		// question rather than stalling the session.
		advanced = true
	} else {
		return "", models.Question{}, false, true
	}

	question = sess.CurrentPrompt
	reply = strings.TrimSpace(strings.TrimSpace(ack) + " " + question.Text)
	return reply, question, advanced, false
}

// retrieveQuestion consults the retrieval service and falls back to the
// chat generator. ok is false when both fail.
func (s *SessionService) retrieveQuestion(rt *sessionRuntime, scores []models.EmotionScore, techStack, previous []string, history []ai.ChatMessage) (string, bool) {
	emotion := "neutral"
	if len(scores) > 0 {
		emotion = scores[0].Name
	}
	if text, err := s.retriever.NextQuestion(rt.ctx, emotion, techStack, previous); err == nil {
		return text, true
	} else {
		s.log.Warn("retrieval service failed, falling back to generator", "session_id", rt.s.ID, "error", err)
	}
	if text, err := s.gen.FollowUp(rt.ctx, scores, history); err == nil {
		return text, true
	}
	return "", false
}

// Finish ends the session on request.
func (s *SessionService) Finish(sessionID string) (string, error) {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return "", err
	}
	return s.finalize(rt), nil
}

// Result returns a finalized session result.
func (s *SessionService) Result(id string) (*models.SessionResult, error) {
	r, err := s.store.GetResult(id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, NewNotFoundError("result not found")
	}
	return r, nil
}

// History lists the user's finalized results, newest first.
func (s *SessionService) History(uid string, limit int) ([]*models.SessionResult, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListResultsByUser(uid, limit)
}

// SavedConfig returns the user's last-used interview configuration.
func (s *SessionService) SavedConfig(uid string) (*models.InterviewConfig, error) {
	cfg, err := s.store.GetConfig(uid)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return &models.InterviewConfig{QuestionCount: defaultQuestionCount, DurationMin: defaultDurationMin}, nil
	}
	return cfg, nil
}

func (s *SessionService) SaveConfig(uid string, cfg models.InterviewConfig) error {
	if cfg.QuestionCount <= 0 || cfg.DurationMin <= 0 {
		return NewInvalidError("question count and duration must be positive")
	}
	return s.store.PutConfig(uid, &cfg)
}

// Subscribe returns a channel of session events plus a cancel func. Slow
// subscribers lose events rather than blocking the orchestrator.
func (s *SessionService) Subscribe(sessionID string) (<-chan Event, func(), error) {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan Event, 16)
	rt.mu.Lock()
	rt.subs[ch] = struct{}{}
	rt.mu.Unlock()
	cancel := func() {
		rt.mu.Lock()
		delete(rt.subs, ch)
		rt.mu.Unlock()
	}
	return ch, cancel, nil
}

// AttachTranscript appends an out-of-band transcript (spool watcher) to the
// session without driving the state machine.
func (s *SessionService) AttachTranscript(sessionID, text string) {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.finalized {
		return
	}
	msg := models.Message{
		ID:        s.idGen(),
		TurnID:    rt.turnID,
		Sender:    models.SenderCandidate,
		Text:      text,
		Timestamp: s.now(),
	}
	rt.s.AppendMessage(msg)
	rt.emit(Event{Type: EventMessage, Message: &msg})
}

// runClock drives the 1-second session ticker: it ends the session when the
// time budget is spent and auto-advances stalled questions.
func (s *SessionService) runClock(rt *sessionRuntime) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-rt.ctx.Done():
			return
		case <-ticker.C:
		}

		rt.mu.Lock()
		if rt.finalized {
			rt.mu.Unlock()
			return
		}
		now := s.now()
		budget := time.Duration(rt.s.Config.DurationMin) * time.Minute
		if now.Sub(rt.s.StartedAt) >= budget {
			rt.s.TimeUp = true
			// Mid-turn expiry is handled by SubmitAnswer itself.
			if rt.s.State != models.StateAIThinking {
				rt.mu.Unlock()
				s.finalize(rt)
				return
			}
			rt.mu.Unlock()
			continue
		}
		stalled := rt.s.State == models.StateIdle &&
			rt.s.CurrentIndex > 0 &&
			now.Sub(rt.s.QuestionStartedAt) >= s.questionLimit
		rt.mu.Unlock()

		if stalled {
			s.autoAdvance(rt)
		}
	}
}

// autoAdvance moves a stalled session to the next main question after the
// per-question time limit, the introduction excepted.
func (s *SessionService) autoAdvance(rt *sessionRuntime) {
	rt.mu.Lock()
	if rt.finalized || rt.s.State != models.StateIdle {
		rt.mu.Unlock()
		return
	}
	if !rt.s.Advance() {
		rt.mu.Unlock()
		s.finalize(rt)
		return
	}
	rt.s.State = models.StateAIThinking
	rt.emit(Event{Type: EventState, State: rt.s.State})
	text := rt.s.CurrentPrompt.Text
	rt.mu.Unlock()

	audio, err := s.tts.Synthesize(rt.ctx, text)
	now := s.now()

	rt.mu.Lock()
	rt.turnID = s.idGen()
	msg := models.Message{
		ID:        s.idGen(),
		TurnID:    rt.turnID,
		Sender:    models.SenderInterviewer,
		Text:      text,
		Timestamp: now,
	}
	rt.s.AppendMessage(msg)
	rt.s.MarkAsked(now)
	if err != nil {
		s.log.Warn("auto-advance synthesis failed", "session_id", rt.s.ID, "error", err)
		rt.s.State = models.StateIdle
	} else {
		rt.s.State = models.StateAISpeaking
	}
	question := rt.s.CurrentPrompt
	rt.emit(Event{Type: EventMessage, Message: &msg})
	rt.emit(Event{Type: EventQuestion, Question: &question, Audio: audio})
	rt.emit(Event{Type: EventState, State: rt.s.State})
	rt.mu.Unlock()

	s.log.Info("question time limit reached, advanced", "session_id", rt.s.ID, "question", question.Text)
}

func (s *SessionService) backToIdle(rt *sessionRuntime) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.finalized {
		return
	}
	rt.s.State = models.StateIdle
	rt.emit(Event{Type: EventState, State: rt.s.State})
}

func (s *SessionService) runtime(sessionID string) (*sessionRuntime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.sessions[sessionID]
	if !ok {
		return nil, NewNotFoundError("session not found")
	}
	return rt, nil
}

// emit requires rt.mu to be held.
func (rt *sessionRuntime) emit(ev Event) {
	for ch := range rt.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func containsMoveOn(transcript string) bool {
	lower := strings.ToLower(transcript)
	for _, kw := range moveOnKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// chatHistory converts the latest messages into chat-completion roles.
func chatHistory(messages []models.Message, limit int) []ai.ChatMessage {
	start := 0
	if len(messages) > limit {
		start = len(messages) - limit
	}
	out := make([]ai.ChatMessage, 0, len(messages)-start)
	for _, m := range messages[start:] {
		role := "user"
		if m.Sender == models.SenderInterviewer {
			role = "assistant"
		}
		out = append(out, ai.ChatMessage{Role: role, Content: m.Text})
	}
	return out
}

func lastSampleScores(sess *models.Session) []models.EmotionScore {
	if len(sess.Samples) == 0 {
		return nil
	}
	return sess.Samples[len(sess.Samples)-1].Scores
}

// snapshot copies the session so callers can serialize it without holding
// the runtime lock.
func snapshot(sess *models.Session) *models.Session {
	cp := *sess
	cp.Questions = append([]models.Question(nil), sess.Questions...)
	cp.AskedQuestions = append([]string(nil), sess.AskedQuestions...)
	cp.Messages = append([]models.Message(nil), sess.Messages...)
	cp.Samples = append([]models.EmotionSample(nil), sess.Samples...)
	return &cp
}
