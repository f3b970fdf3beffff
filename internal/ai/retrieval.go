package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RetrievalClient asks the locally-run retrieval service for the next
// question. It is consulted only after five main questions have been asked;
// the caller falls back to the chat-completion generator when it fails.
type RetrievalClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRetrievalClient(baseURL string) *RetrievalClient {
	return &RetrievalClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type retrievalRequest struct {
	Emotion           string   `json:"emotion"`
	TechStack         []string `json:"tech_stack"`
	PreviousQuestions []string `json:"previous_questions"`
}

func (c *RetrievalClient) NextQuestion(ctx context.Context, emotion string, techStack []string, previous []string) (string, error) {
	if emotion == "" {
		emotion = "neutral"
	}
	if len(techStack) == 0 {
		techStack = []string{"software engineering"}
	}
	body, err := json.Marshal(retrievalRequest{Emotion: emotion, TechStack: techStack, PreviousQuestions: previous})
	if err != nil {
		return "", fmt.Errorf("encode retrieval request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/next-question", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build retrieval request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("retrieval: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read retrieval response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Endpoint: "retrieval", Status: resp.StatusCode, Body: string(raw)}
	}

	var parsed struct {
		Question string `json:"question"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse retrieval response: %w", err)
	}
	if parsed.Question == "" {
		return "", fmt.Errorf("retrieval returned empty question")
	}
	return parsed.Question, nil
}
