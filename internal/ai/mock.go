package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/git-sakshii/RealPrep-AI-App/internal/models"
)

// Deterministic stand-ins for the cloud services, selected by
// REALPREP_USE_MOCK_AI for local development without any API keys.

type MockChat struct{}

func (MockChat) Complete(_ context.Context, messages []ChatMessage, _ float64, _ int) (string, error) {
	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	if strings.Contains(last, "JSON array") {
		return `["Tell me about yourself.","What project are you most proud of?","How do you test your code?"]`, nil
	}
	return fmt.Sprintf("Understood. You said: %q.", truncate(last, 60)), nil
}

type MockTranscriber struct{}

func (MockTranscriber) Transcribe(_ context.Context, clip []byte, _ string) (string, error) {
	if len(clip) == 0 {
		return "", ErrNoTranscript
	}
	return fmt.Sprintf("(mock transcript of %d bytes)", len(clip)), nil
}

type MockSynthesizer struct{}

func (MockSynthesizer) Synthesize(_ context.Context, text string) ([]byte, error) {
	return []byte("MOCKAUDIO:" + text), nil
}

type MockEmotion struct{}

func (MockEmotion) Infer(_ context.Context, _ []byte) ([]models.EmotionScore, error) {
	return []models.EmotionScore{
		{Name: "Calmness", Score: 0.71},
		{Name: "Interest", Score: 0.55},
		{Name: "Doubt", Score: 0.12},
	}, nil
}

type MockRetriever struct{}

func (MockRetriever) NextQuestion(_ context.Context, emotion string, techStack []string, _ []string) (string, error) {
	stack := "software engineering"
	if len(techStack) > 0 {
		stack = strings.Join(techStack, ", ")
	}
	return fmt.Sprintf("Tell me about a project you're proud of using %s.", stack), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
