package speaker

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/przemek890/Praychain/internal/service"
)

// Verifier compares two clips via embedding cosine similarity.
//
// The match threshold is specific to the embedding model behind the encoder:
// observed deployments range from 0.25 to 0.85 depending on the encoder in
// use. Calibrate it per model; there is no universal constant, which is why
// the value is required configuration.
type Verifier struct {
	encoder   service.Encoder
	threshold float64
}

// Result is the outcome of a speaker comparison.
type Result struct {
	Similarity float64
	Match      bool
}

// NewVerifier creates a speaker verifier with the given encoder and
// model-specific match threshold.
func NewVerifier(encoder service.Encoder, threshold float64) (*Verifier, error) {
	if encoder == nil {
		return nil, fmt.Errorf("encoder is required")
	}
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("speaker threshold must be in (0,1), got %v", threshold)
	}
	return &Verifier{encoder: encoder, threshold: threshold}, nil
}

// Verify embeds both clips and reports whether they share a speaker.
func (v *Verifier) Verify(ctx context.Context, audioRefA, audioRefB string) (Result, error) {
	embedA, err := v.encoder.Embed(ctx, audioRefA)
	if err != nil {
		return Result{}, fmt.Errorf("failed to embed first clip: %w", err)
	}

	embedB, err := v.encoder.Embed(ctx, audioRefB)
	if err != nil {
		return Result{}, fmt.Errorf("failed to embed second clip: %w", err)
	}

	sim, err := cosineSimilarity(embedA, embedB)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Similarity: sim,
		Match:      sim >= v.threshold,
	}, nil
}

// Threshold returns the configured match threshold.
func (v *Verifier) Threshold() float64 {
	return v.threshold
}

func cosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding dimensions differ: %d vs %d", len(a), len(b))
	}
	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("zero-magnitude embedding")
	}
	return floats.Dot(a, b) / (normA * normB), nil
}
