package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// ErrSpeechBusy is returned when a synthesis request arrives while another
// one is still in flight.
var ErrSpeechBusy = errors.New("speech synthesis already in progress")

// SpeechClient requests synthesized interviewer audio.
type SpeechClient struct {
	endpoint   string
	apiKey     string
	apiVersion string
	model      string
	voice      string
	httpClient *http.Client
}

func NewSpeechClient(endpoint, apiKey, apiVersion, model, voice string) *SpeechClient {
	return &SpeechClient{
		endpoint:   endpoint,
		apiKey:     apiKey,
		apiVersion: apiVersion,
		model:      model,
		voice:      voice,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type speechRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
}

func (c *SpeechClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(speechRequest{Model: c.model, Input: text, Voice: c.voice})
	if err != nil {
		return nil, fmt.Errorf("encode speech request: %w", err)
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/audio/speech?api-version=%s", c.endpoint, c.model, c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech synthesis: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read speech response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Endpoint: "speech synthesis", Status: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

// GatedSynthesizer admits one synthesis at a time so overlapping interviewer
// audio is never produced. The slot is released on every exit path, success
// or failure.
type GatedSynthesizer struct {
	inner Synthesizer
	busy  atomic.Bool
}

func NewGatedSynthesizer(inner Synthesizer) *GatedSynthesizer {
	return &GatedSynthesizer{inner: inner}
}

func (g *GatedSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if !g.busy.CompareAndSwap(false, true) {
		return nil, ErrSpeechBusy
	}
	defer g.busy.Store(false)
	return g.inner.Synthesize(ctx, text)
}

func (g *GatedSynthesizer) Busy() bool { return g.busy.Load() }
