package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAzureChatClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/deployments/gpt-4o/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("api-version"); got != "2025-01-01-preview" {
			t.Errorf("unexpected api-version %q", got)
		}
		if r.Header.Get("api-key") != "secret" {
			t.Errorf("missing api-key header")
		}
		var req struct {
			Messages    []ChatMessage `json:"messages"`
			Temperature float64       `json:"temperature"`
			MaxTokens   int           `json:"max_tokens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		if req.MaxTokens != 100 {
			t.Errorf("unexpected max_tokens %d", req.MaxTokens)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Hello there."}},
			},
		})
	}))
	defer srv.Close()

	c := NewAzureChatClient(srv.URL, "secret", "gpt-4o", "2025-01-01-preview")
	got, err := c.Complete(context.Background(), []ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
	}, 0.7, 100)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if got != "Hello there." {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestAzureChatClientEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := NewAzureChatClient(srv.URL, "k", "gpt-4o", "v")
	if _, err := c.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, 0, 10); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}

func TestAzureChatClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewAzureChatClient(srv.URL, "k", "gpt-4o", "v")
	_, err := c.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, 0, 10)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected StatusError 401, got %v", err)
	}
}

func TestRetrievalClientDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/next-question" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req struct {
			Emotion           string   `json:"emotion"`
			TechStack         []string `json:"tech_stack"`
			PreviousQuestions []string `json:"previous_questions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Emotion != "neutral" {
			t.Errorf("empty emotion must default to neutral, got %q", req.Emotion)
		}
		if len(req.TechStack) != 1 || req.TechStack[0] != "software engineering" {
			t.Errorf("unexpected default stack %v", req.TechStack)
		}
		json.NewEncoder(w).Encode(map[string]string{"question": "What is a goroutine?"})
	}))
	defer srv.Close()

	c := NewRetrievalClient(srv.URL)
	q, err := c.NextQuestion(context.Background(), "", nil, []string{"earlier question"})
	if err != nil {
		t.Fatalf("NextQuestion returned error: %v", err)
	}
	if q != "What is a goroutine?" {
		t.Fatalf("unexpected question %q", q)
	}
}

func TestRetrievalClientEmptyQuestion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"question": ""})
	}))
	defer srv.Close()

	c := NewRetrievalClient(srv.URL)
	if _, err := c.NextQuestion(context.Background(), "joy", nil, nil); err == nil {
		t.Fatalf("expected error for empty question")
	}
}
