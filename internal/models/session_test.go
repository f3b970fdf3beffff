package models

import (
	"testing"
	"time"
)

func newTestSession(n int) *Session {
	qs := make([]Question, 0, n)
	for i := 0; i < n; i++ {
		qs = append(qs, Question{ID: string(rune('a' + i)), Text: "Q" + string(rune('1'+i))})
	}
	return &Session{ID: "s1", Questions: qs, CurrentPrompt: qs[0]}
}

func TestAdvanceIsMonotone(t *testing.T) {
	s := newTestSession(3)
	if !s.Advance() || s.CurrentIndex != 1 {
		t.Fatalf("expected advance to 1, got %d", s.CurrentIndex)
	}
	if !s.Advance() || s.CurrentIndex != 2 {
		t.Fatalf("expected advance to 2, got %d", s.CurrentIndex)
	}
	if s.Advance() {
		t.Fatalf("advance past the last question must fail")
	}
	if s.CurrentIndex != 2 {
		t.Fatalf("failed advance must not move the index, got %d", s.CurrentIndex)
	}
}

func TestAdvanceResetsFollowUps(t *testing.T) {
	s := newTestSession(2)
	if !s.AskFollowUp(Question{ID: "f1", Text: "why?"}) {
		t.Fatalf("first follow-up rejected")
	}
	if !s.AskFollowUp(Question{ID: "f2", Text: "how?"}) {
		t.Fatalf("second follow-up rejected")
	}
	if s.AskFollowUp(Question{ID: "f3", Text: "when?"}) {
		t.Fatalf("follow-up beyond budget accepted")
	}
	if !s.CurrentPrompt.FollowUp || s.CurrentPrompt.ID != "f2" {
		t.Fatalf("current prompt should be the last follow-up: %+v", s.CurrentPrompt)
	}

	if !s.Advance() {
		t.Fatalf("advance failed")
	}
	if s.FollowUps != 0 {
		t.Fatalf("advance must reset the follow-up counter, got %d", s.FollowUps)
	}
	if s.CurrentPrompt.FollowUp {
		t.Fatalf("current prompt must be the main question after advance")
	}
}

func TestMarkAskedRecordsHistory(t *testing.T) {
	s := newTestSession(2)
	now := time.Unix(100, 0)
	s.MarkAsked(now)
	if !s.Questions[0].Asked || !s.CurrentPrompt.Asked {
		t.Fatalf("main question not marked asked")
	}
	if s.QuestionStartedAt != now {
		t.Fatalf("question clock not started")
	}
	if len(s.AskedQuestions) != 1 || s.AskedQuestions[0] != "Q1" {
		t.Fatalf("asked history wrong: %v", s.AskedQuestions)
	}

	s.AskFollowUp(Question{ID: "f1", Text: "why?"})
	s.MarkAsked(now.Add(time.Minute))
	if s.Questions[0].Asked != true || s.Questions[1].Asked {
		t.Fatalf("follow-up must not mark main questions")
	}
	if len(s.AskedQuestions) != 2 || s.AskedQuestions[1] != "why?" {
		t.Fatalf("asked history wrong after follow-up: %v", s.AskedQuestions)
	}
	if s.MainQuestionsAsked() != 1 {
		t.Fatalf("expected 1 main question asked, got %d", s.MainQuestionsAsked())
	}
}
