// Package inference provides the HTTP client for the hosted text-inference
// models (emotion distribution and sentiment). The upstream API is heavily
// rate limited, so all calls go through a shared minimum-interval gate and a
// retry loop that backs off fully on 503 responses while the model loads.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/przemek890/Praychain/internal/common"
	"github.com/przemek890/Praychain/internal/service"
)

const (
	defaultEmotionModel   = "j-hartmann/emotion-english-distilroberta-base"
	defaultSentimentModel = "cardiffnlp/twitter-roberta-base-sentiment-latest"
	defaultMinInterval    = 8 * time.Second
)

// Config holds configuration for the inference client.
type Config struct {
	BaseURL        string
	APIKey         string
	EmotionModel   string
	SentimentModel string
	MinInterval    time.Duration
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
}

// Client implements service.EmotionAnalyzer against a HuggingFace-style
// inference endpoint.
type Client struct {
	httpClient     *http.Client
	limiter        *MinInterval
	baseURL        string
	apiKey         string
	emotionModel   string
	sentimentModel string
	retryOpts      service.RetryOptions
}

// labelScore is one classification result from the inference API.
type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// NewClient creates an inference client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: inference base URL is required", common.ErrMissingConfig)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: inference API key is required", common.ErrMissingConfig)
	}

	if cfg.EmotionModel == "" {
		cfg.EmotionModel = defaultEmotionModel
	}
	if cfg.SentimentModel == "" {
		cfg.SentimentModel = defaultSentimentModel
	}
	if cfg.MinInterval == 0 {
		cfg.MinInterval = defaultMinInterval
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	return &Client{
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		emotionModel:   cfg.EmotionModel,
		sentimentModel: cfg.SentimentModel,
		limiter:        NewMinInterval(cfg.MinInterval),
		retryOpts:      retryOpts,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// Emotions returns the emotion probability distribution for the text.
func (c *Client) Emotions(ctx context.Context, text string) (map[string]float64, error) {
	scores, err := c.classify(ctx, c.emotionModel, text)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("%w: no emotions detected", common.ErrInferenceFailed)
	}

	emotions := make(map[string]float64, len(scores))
	for _, s := range scores {
		emotions[s.Label] = s.Score
	}
	return emotions, nil
}

// Sentiment returns the dominant sentiment label and its score.
func (c *Client) Sentiment(ctx context.Context, text string) (string, float64, error) {
	scores, err := c.classify(ctx, c.sentimentModel, text)
	if err != nil {
		return "", 0, err
	}
	if len(scores) == 0 {
		return "", 0, fmt.Errorf("%w: no sentiment returned", common.ErrInferenceFailed)
	}

	top := scores[0]
	for _, s := range scores[1:] {
		if s.Score > top.Score {
			top = s
		}
	}
	return top.Label, top.Score, nil
}

// classify runs one model call through the rate gate and retry loop.
func (c *Client) classify(ctx context.Context, model, text string) ([]labelScore, error) {
	var result []labelScore

	err := common.WithRetry(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return &common.RetryableError{Err: err, Retryable: false}
		}

		scores, err := c.doRequest(ctx, model, text)
		if err != nil {
			return err
		}
		result = scores
		return nil
	}, c.retryOpts)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *Client) doRequest(ctx context.Context, model, text string) ([]labelScore, error) {
	payload, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("inference request failed: %w", err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		// Model still loading upstream; back off the full delay.
		return nil, common.ErrRateLimit
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, common.ErrRateLimit
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d: %s", common.ErrInferenceFailed, resp.StatusCode, string(body))
	}

	return parseScores(body)
}

// parseScores accepts both [{"label":..}] and the nested [[{"label":..}]]
// shape the API returns for single-input requests.
func parseScores(body []byte) ([]labelScore, error) {
	var nested [][]labelScore
	if err := json.Unmarshal(body, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}

	var flat []labelScore
	if err := json.Unmarshal(body, &flat); err == nil {
		return flat, nil
	}

	return nil, fmt.Errorf("%w: unexpected response format: %s", common.ErrInferenceFailed, string(body))
}
