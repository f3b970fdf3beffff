// Package ai holds the clients for the cloud services the interview flow
// depends on: chat completion, speech-to-text, text-to-speech, facial
// emotion inference, and the local question-retrieval service. Every call
// takes a context tied to the owning session so nothing outlives it.
package ai

import (
	"context"
	"fmt"

	"github.com/git-sakshii/RealPrep-AI-App/internal/models"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatClient is the chat-completion endpoint.
type ChatClient interface {
	Complete(ctx context.Context, messages []ChatMessage, temperature float64, maxTokens int) (string, error)
}

// Transcriber turns a recorded clip into plain text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip []byte, filename string) (string, error)
}

// Synthesizer turns interviewer text into playable audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// EmotionClient infers affect scores from a single camera frame.
type EmotionClient interface {
	Infer(ctx context.Context, image []byte) ([]models.EmotionScore, error)
}

// QuestionRetriever is the secondary question service consulted after five
// main questions.
type QuestionRetriever interface {
	NextQuestion(ctx context.Context, emotion string, techStack []string, previous []string) (string, error)
}

// StatusError reports a non-2xx response from any of the cloud endpoints.
type StatusError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Endpoint, e.Status, e.Body)
}

// TopScores returns the n highest-scoring emotions in descending order.
func TopScores(scores []models.EmotionScore, n int) []models.EmotionScore {
	out := append([]models.EmotionScore(nil), scores...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Score > out[j-1].Score; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if len(out) > n {
		out = out[:n]
	}
	return out
}
