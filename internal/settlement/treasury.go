// Package settlement mirrors ledger awards onto the external PRAY treasury.
// Transfers are best-effort: a failed transfer never reverses or blocks the
// ledger award it settles.
package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/przemek890/Praychain/internal/common"
)

// TreasuryConfig holds configuration for the treasury transfer client.
type TreasuryConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPTreasury implements service.Transferrer against the treasury service,
// which holds the signing keys and submits the on-chain transfer.
type HTTPTreasury struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewHTTPTreasury creates a treasury transfer client.
func NewHTTPTreasury(cfg TreasuryConfig) (*HTTPTreasury, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: treasury base URL is required", common.ErrMissingConfig)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &HTTPTreasury{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// Transfer sends tokens from the treasury to the given wallet address and
// returns the transaction hash.
func (t *HTTPTreasury) Transfer(ctx context.Context, address string, amount int64) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"to_address": address,
		"amount":     amount,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/transfer", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transfer request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read transfer response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transfer failed: status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		TxHash string `json:"tx_hash"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode transfer response: %w", err)
	}
	if result.TxHash == "" {
		return "", fmt.Errorf("transfer response missing tx_hash")
	}

	return result.TxHash, nil
}
