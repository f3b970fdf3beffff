package models

import "time"

// MaxFollowUps is the cap on generated follow-up questions per main question.
const MaxFollowUps = 2

// Session is one interview attempt. The question index only moves forward and
// the follow-up counter resets whenever it does; the message list is
// append-only. All mutation goes through the methods below so those
// invariants hold everywhere.
type Session struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id,omitempty"`
	Config    InterviewConfig `json:"config"`
	StartedAt time.Time       `json:"started_at"`

	// Questions is the main question list fixed at session start.
	Questions    []Question `json:"questions"`
	CurrentIndex int        `json:"current_index"`
	FollowUps    int        `json:"follow_ups"`

	// CurrentPrompt is what the interviewer last asked: either
	// Questions[CurrentIndex] or a generated follow-up.
	CurrentPrompt Question `json:"current_prompt"`

	// AskedQuestions records every prompt text in ask order, mains and
	// follow-ups alike.
	AskedQuestions []string `json:"asked_questions,omitempty"`

	State             SessionState `json:"state"`
	TimeUp            bool         `json:"time_up"`
	QuestionStartedAt time.Time    `json:"question_started_at"`

	Messages []Message       `json:"messages"`
	Samples  []EmotionSample `json:"samples,omitempty"`
}

func (s *Session) CurrentQuestion() Question { return s.CurrentPrompt }

// MarkAsked records the current prompt as asked.
func (s *Session) MarkAsked(now time.Time) {
	s.CurrentPrompt.Asked = true
	if s.CurrentIndex < len(s.Questions) && !s.CurrentPrompt.FollowUp {
		s.Questions[s.CurrentIndex].Asked = true
	}
	s.AskedQuestions = append(s.AskedQuestions, s.CurrentPrompt.Text)
	s.QuestionStartedAt = now
}

// Advance moves to the next main question and resets the follow-up counter.
// It reports false when the question list is exhausted.
func (s *Session) Advance() bool {
	if s.CurrentIndex+1 >= len(s.Questions) {
		return false
	}
	s.CurrentIndex++
	s.FollowUps = 0
	s.CurrentPrompt = s.Questions[s.CurrentIndex]
	return true
}

// AskFollowUp makes q the current prompt without moving the main index.
// It reports false when the per-question follow-up budget is spent.
func (s *Session) AskFollowUp(q Question) bool {
	if s.FollowUps >= MaxFollowUps {
		return false
	}
	s.FollowUps++
	q.FollowUp = true
	s.CurrentPrompt = q
	return true
}

func (s *Session) AppendMessage(m Message) {
	s.Messages = append(s.Messages, m)
}

func (s *Session) AppendSample(sm EmotionSample) {
	s.Samples = append(s.Samples, sm)
}

// MainQuestionsAsked counts main questions that have been put to the
// candidate so far.
func (s *Session) MainQuestionsAsked() int {
	n := 0
	for _, q := range s.Questions {
		if q.Asked {
			n++
		}
	}
	return n
}
