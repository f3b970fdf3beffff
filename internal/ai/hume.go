package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/git-sakshii/RealPrep-AI-App/internal/models"
)

const (
	humePollInterval     = time.Second
	humeStatusAttempts   = 30
	humePredictAttempts  = 3
	humePredictionsDelay = time.Second
)

// HumeClient runs facial-emotion inference through the batch jobs API:
// submit a frame, poll the job until it completes, then fetch predictions.
type HumeClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHumeClient(baseURL, apiKey string) *HumeClient {
	return &HumeClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HumeClient) Infer(ctx context.Context, image []byte) ([]models.EmotionScore, error) {
	jobID, err := c.submitJob(ctx, image)
	if err != nil {
		return nil, err
	}

	_, err = PollUntil(ctx, humePollInterval, humeStatusAttempts, func(ctx context.Context) (string, bool, error) {
		status, err := c.jobStatus(ctx, jobID)
		if err != nil {
			// Transient status failures just burn an attempt.
			return "", false, nil
		}
		switch status {
		case "COMPLETED":
			return status, true, nil
		case "FAILED":
			return "", false, fmt.Errorf("emotion job %s failed", jobID)
		default:
			return "", false, nil
		}
	})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < humePredictAttempts; attempt++ {
		scores, err := c.predictions(ctx, jobID)
		if err == nil {
			return scores, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(humePredictionsDelay):
		}
	}
	return nil, fmt.Errorf("fetch predictions: %w", lastErr)
}

func (c *HumeClient) submitJob(ctx context.Context, image []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("json", `{"models":{"face":{}}}`)
	part, err := mw.CreateFormFile("file", "frame.png")
	if err != nil {
		return "", fmt.Errorf("build job body: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("write frame: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close job body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, &body)
	if err != nil {
		return "", fmt.Errorf("build job request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Hume-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit emotion job: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Endpoint: "emotion job submit", Status: resp.StatusCode, Body: string(raw)}
	}

	var parsed struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.JobID == "" {
		return "", fmt.Errorf("parse job id: %w", err)
	}
	return parsed.JobID, nil
}

func (c *HumeClient) jobStatus(ctx context.Context, jobID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+jobID, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Hume-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Endpoint: "emotion job status", Status: resp.StatusCode, Body: string(raw)}
	}

	var parsed struct {
		State struct {
			Status string `json:"status"`
		} `json:"state"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", err
	}
	return parsed.State.Status, nil
}

func (c *HumeClient) predictions(ctx context.Context, jobID string) ([]models.EmotionScore, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+jobID+"/predictions", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Hume-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Endpoint: "emotion predictions", Status: resp.StatusCode, Body: string(raw)}
	}

	var parsed []struct {
		Results struct {
			Predictions []struct {
				Models struct {
					Face struct {
						GroupedPredictions []struct {
							Predictions []struct {
								Emotions []struct {
									Name  string  `json:"name"`
									Score float64 `json:"score"`
								} `json:"emotions"`
							} `json:"predictions"`
						} `json:"grouped_predictions"`
					} `json:"face"`
				} `json:"models"`
			} `json:"predictions"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse predictions: %w", err)
	}

	for _, job := range parsed {
		for _, pred := range job.Results.Predictions {
			for _, group := range pred.Models.Face.GroupedPredictions {
				for _, face := range group.Predictions {
					scores := make([]models.EmotionScore, 0, len(face.Emotions))
					for _, e := range face.Emotions {
						scores = append(scores, models.EmotionScore{Name: e.Name, Score: e.Score})
					}
					if len(scores) > 0 {
						return scores, nil
					}
				}
			}
		}
	}
	return nil, fmt.Errorf("no face predictions in job %s", jobID)
}
