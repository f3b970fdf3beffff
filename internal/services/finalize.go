package services

import (
	"context"
	"time"

	"github.com/git-sakshii/RealPrep-AI-App/internal/models"
)

const summaryPlaceholder = "Summary generation was unavailable for this session."

const summaryTimeout = 45 * time.Second

// finalize ends the session exactly once: it merges the emotion samples from
// every source, deduplicates the transcript, generates the performance
// summary, persists the result, and bumps the user's interview counter.
// Repeat calls return the same result ID.
func (s *SessionService) finalize(rt *sessionRuntime) string {
	rt.mu.Lock()
	if rt.finalized {
		id := rt.resultID
		rt.mu.Unlock()
		return id
	}
	rt.finalized = true
	rt.s.State = models.StateEnded
	rt.emit(Event{Type: EventState, State: rt.s.State})
	sess := snapshot(rt.s)
	resultID := s.idGen()
	rt.resultID = resultID
	rt.mu.Unlock()

	// The session context is about to be cancelled; the summary gets its
	// own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), summaryTimeout)
	defer cancel()

	summary, err := s.gen.Summary(ctx, chatHistory(sess.Messages, len(sess.Messages)))
	if err != nil {
		s.log.Warn("summary generation failed", "session_id", sess.ID, "error", err)
		summary = summaryPlaceholder
	}

	scratch, err := s.store.ListScratchSamples(sess.ID)
	if err != nil {
		s.log.Warn("failed to load cached emotion samples", "session_id", sess.ID, "error", err)
	}

	result := &models.SessionResult{
		ID:             resultID,
		UserID:         sess.UserID,
		Summary:        summary,
		Samples:        mergeSamples(sess.Samples, scratch, sess.Messages),
		Transcriptions: collectTranscriptions(sess.Messages, scratch),
		CreatedAt:      s.now(),
	}
	if err := s.store.PutResult(result); err != nil {
		s.log.Error("failed to persist session result", "session_id", sess.ID, "error", err)
	}
	if err := s.store.ClearScratchSamples(sess.ID); err != nil {
		s.log.Warn("failed to clear cached emotion samples", "session_id", sess.ID, "error", err)
	}
	s.bumpInterviewCount(sess.UserID)

	rt.mu.Lock()
	rt.emit(Event{Type: EventFinalized, ResultID: resultID})
	rt.mu.Unlock()
	rt.cancel()

	s.log.Info("session finalized",
		"session_id", sess.ID,
		"result_id", resultID,
		"samples", len(result.Samples),
		"messages", len(sess.Messages))
	return resultID
}

// mergeSamples combines the in-session samples, the persisted scratch
// samples, and question/answer pairs reconstructed from the transcript for
// turns that never produced a camera capture. One sample per turn wins.
func mergeSamples(inSession, scratch []models.EmotionSample, messages []models.Message) []models.EmotionSample {
	seen := map[string]bool{}
	out := make([]models.EmotionSample, 0, len(inSession)+len(scratch))

	add := func(sample models.EmotionSample) {
		key := sample.TurnID
		if key == "" {
			// Legacy samples without a turn ID fall back to question text.
			key = "q:" + sample.Question
		}
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, sample)
	}

	for _, sample := range inSession {
		add(sample)
	}
	for _, sample := range scratch {
		add(sample)
	}

	// Reconstruct scoreless samples from interviewer/candidate pairs that
	// share a turn.
	questions := map[string]string{}
	for _, m := range messages {
		if m.Sender == models.SenderInterviewer && m.TurnID != "" {
			questions[m.TurnID] = m.Text
		}
	}
	for _, m := range messages {
		if m.Sender != models.SenderCandidate || m.TurnID == "" {
			continue
		}
		q, ok := questions[m.TurnID]
		if !ok {
			continue
		}
		add(models.EmotionSample{
			TurnID:    m.TurnID,
			Question:  q,
			Answer:    m.Text,
			Timestamp: m.Timestamp,
		})
	}
	return out
}

// collectTranscriptions returns the candidate's utterances in order, exact
// duplicates dropped on first-seen basis.
func collectTranscriptions(messages []models.Message, scratch []models.EmotionSample) []string {
	seen := map[string]bool{}
	var out []string
	add := func(text string) {
		if text == "" || seen[text] {
			return
		}
		seen[text] = true
		out = append(out, text)
	}
	for _, m := range messages {
		if m.Sender == models.SenderCandidate {
			add(m.Text)
		}
	}
	for _, sample := range scratch {
		add(sample.Answer)
	}
	return out
}

func (s *SessionService) bumpInterviewCount(uid string) {
	if uid == "" {
		return
	}
	profile, err := s.store.GetProfile(uid)
	if err != nil || profile == nil {
		s.log.Warn("failed to load profile for interview count", "user_id", uid, "error", err)
		return
	}
	profile.InterviewsCompleted++
	if err := s.store.PutProfile(uid, profile); err != nil {
		s.log.Warn("failed to bump interview count", "user_id", uid, "error", err)
	}
}
