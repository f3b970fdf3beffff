package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/git-sakshii/RealPrep-AI-App/internal/models"
)

const interviewerSystemPrompt = `
You are a professional technical interviewer running a mock interview.

Style:
- Speak directly to the candidate, one question or remark at a time.
- Keep remarks short: one or two sentences.
- Never mention that this is a simulation or that you are an AI.
`

// FallbackQuestions is the built-in list used when resume-driven generation
// fails or no resume is provided. The first entry is always the introduction.
var FallbackQuestions = []string{
	"Tell me about yourself and your background in software development.",
	"What interests you most about this role and our company?",
	"Describe a challenging project you've worked on recently.",
	"How do you handle tight deadlines and pressure?",
	"What's your experience with our tech stack?",
	"Tell me about a time you had to learn a new technology quickly.",
	"How do you approach debugging complex issues?",
	"Describe your ideal work environment and team dynamics.",
	"What are your career goals for the next 3-5 years?",
	"Do you have any questions for us?",
}

// Generator produces interviewer text through a chat-completion client:
// the initial question list, per-answer acknowledgments, follow-up
// questions, and the end-of-session narrative summary.
type Generator struct {
	chat ChatClient
	log  *slog.Logger
}

func NewGenerator(chat ChatClient, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.Default()
	}
	return &Generator{chat: chat, log: log}
}

// Questions asks for count interview questions tailored to the resume,
// expecting a JSON array of strings in the reply. On any failure it returns
// the built-in list truncated to count, so a session always starts.
func (g *Generator) Questions(ctx context.Context, resume string, count int, difficulty string) []models.Question {
	if count <= 0 {
		count = len(FallbackQuestions)
	}
	texts := g.fallback(count)
	if strings.TrimSpace(resume) != "" {
		if generated, err := g.generateQuestions(ctx, resume, count, difficulty); err != nil {
			g.log.Warn("question generation failed, using fallback list", "error", err)
		} else {
			texts = generated
		}
	}
	qs := make([]models.Question, 0, len(texts))
	for _, t := range texts {
		qs = append(qs, models.Question{ID: uuid.NewString(), Text: t})
	}
	return qs
}

func (g *Generator) generateQuestions(ctx context.Context, resume string, count int, difficulty string) ([]string, error) {
	if difficulty == "" {
		difficulty = "medium"
	}
	prompt := fmt.Sprintf(`Based on the resume below, write %d %s-difficulty interview questions.
The first question must ask the candidate to introduce themselves.
Reply with ONLY a JSON array of %d strings, no other text.

Resume:
%s`, count, difficulty, count, resume)

	reply, err := g.chat.Complete(ctx, []ChatMessage{
		{Role: "system", Content: interviewerSystemPrompt},
		{Role: "user", Content: prompt},
	}, 0.7, 1024)
	if err != nil {
		return nil, err
	}
	texts, err := parseQuestionArray(reply)
	if err != nil {
		return nil, err
	}
	if len(texts) > count {
		texts = texts[:count]
	}
	for len(texts) < count {
		texts = append(texts, FallbackQuestions[len(texts)%len(FallbackQuestions)])
	}
	return texts, nil
}

// parseQuestionArray extracts a JSON string array embedded anywhere in the
// model's reply.
func parseQuestionArray(reply string) ([]string, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in reply")
	}
	var texts []string
	if err := json.Unmarshal([]byte(reply[start:end+1]), &texts); err != nil {
		return nil, fmt.Errorf("parse question array: %w", err)
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty question array")
	}
	return texts, nil
}

func (g *Generator) fallback(count int) []string {
	if count > len(FallbackQuestions) {
		count = len(FallbackQuestions)
	}
	return append([]string(nil), FallbackQuestions[:count]...)
}

// Acknowledge produces a one-line reaction to the candidate's answer. The
// introduction gets a warmer welcome than later answers.
func (g *Generator) Acknowledge(ctx context.Context, answer string, intro bool) (string, error) {
	instruction := "Acknowledge the candidate's answer in one short sentence, then stop. Do not ask a question."
	if intro {
		instruction = "The candidate just introduced themselves. Welcome them briefly in one sentence, then stop. Do not ask a question."
	}
	return g.chat.Complete(ctx, []ChatMessage{
		{Role: "system", Content: interviewerSystemPrompt},
		{Role: "user", Content: instruction + "\n\nCandidate's answer:\n" + answer},
	}, 0.6, 120)
}

// FollowUp asks for a harder probing question on the current topic, steered
// by the candidate's strongest emotions and the recent exchange.
func (g *Generator) FollowUp(ctx context.Context, emotions []models.EmotionScore, history []ChatMessage) (string, error) {
	var sb strings.Builder
	sb.WriteString("Write ONE harder follow-up question that digs into the candidate's last answer. Reply with only the question.\n")
	if len(emotions) > 0 {
		sb.WriteString("The candidate currently appears: ")
		for i, e := range emotions {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s (%.2f)", e.Name, e.Score)
		}
		sb.WriteString(".\n")
	}
	msgs := []ChatMessage{{Role: "system", Content: interviewerSystemPrompt}}
	msgs = append(msgs, history...)
	msgs = append(msgs, ChatMessage{Role: "user", Content: sb.String()})
	return g.chat.Complete(ctx, msgs, 0.8, 200)
}

// Summary asks for the end-of-session narrative feedback.
func (g *Generator) Summary(ctx context.Context, history []ChatMessage) (string, error) {
	msgs := []ChatMessage{{Role: "system", Content: interviewerSystemPrompt}}
	msgs = append(msgs, history...)
	msgs = append(msgs, ChatMessage{Role: "user", Content: "The interview is over. Write a short narrative summary of how the candidate did: strengths, weaknesses, and one concrete suggestion. Address the candidate directly."})
	return g.chat.Complete(ctx, msgs, 0.5, 500)
}
