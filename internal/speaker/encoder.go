// Package speaker decides whether two audio samples come from the same
// speaker by comparing fixed-length voice embeddings.
package speaker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/przemek890/Praychain/internal/common"
)

// EncoderConfig configures the HTTP voice-embedding client.
type EncoderConfig struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPEncoder talks to an external embedding service (a GE2E-style encoder
// behind HTTP). The backing model loads lazily on the service side; the
// client verifies readiness once and caches the result. Safe for concurrent
// use.
type HTTPEncoder struct {
	baseURL    string
	httpClient *http.Client

	mu     sync.Mutex
	loaded bool
}

// NewHTTPEncoder creates an embedding client.
func NewHTTPEncoder(cfg EncoderConfig) (*HTTPEncoder, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: encoder base URL is required", common.ErrMissingConfig)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPEncoder{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// EnsureLoaded confirms the embedding model is ready. The first success is
// cached; a failed probe is retried on the next call rather than latched.
func (e *HTTPEncoder) EnsureLoaded(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loaded {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: encoder health check: %v", common.ErrDetectorUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: encoder unhealthy (status %d)", common.ErrDetectorUnavailable, resp.StatusCode)
	}

	e.loaded = true
	return nil
}

// Embed uploads the audio file and returns its voice embedding.
func (e *HTTPEncoder) Embed(ctx context.Context, audioRef string) ([]float64, error) {
	if err := e.EnsureLoaded(ctx); err != nil {
		return nil, err
	}

	f, err := os.Open(audioRef)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("audio_file", filepath.Base(audioRef))
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err = io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}
	if err = writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embed", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: embed request: %v", common.ErrDetectorUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read embed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: embed service error (status %d): %s",
			common.ErrDetectorUnavailable, resp.StatusCode, string(raw))
	}

	var parsed struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse embed response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("%w: embed service returned empty embedding", common.ErrDetectorUnavailable)
	}

	return parsed.Embedding, nil
}
