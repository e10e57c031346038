package speaker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEncoder returns canned embeddings keyed by audio ref.
type stubEncoder struct {
	embeddings map[string][]float64
	err        error
	calls      int
}

func (s *stubEncoder) EnsureLoaded(_ context.Context) error { return s.err }

func (s *stubEncoder) Embed(_ context.Context, ref string) ([]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	emb, ok := s.embeddings[ref]
	if !ok {
		return nil, fmt.Errorf("no embedding for %s", ref)
	}
	return emb, nil
}

func TestNewVerifier_Validation(t *testing.T) {
	enc := &stubEncoder{}

	_, err := NewVerifier(nil, 0.75)
	require.Error(t, err)

	_, err = NewVerifier(enc, 0)
	require.Error(t, err)

	_, err = NewVerifier(enc, 1)
	require.Error(t, err)

	v, err := NewVerifier(enc, 0.75)
	require.NoError(t, err)
	assert.Equal(t, 0.75, v.Threshold())
}

func TestVerifier_Verify(t *testing.T) {
	enc := &stubEncoder{embeddings: map[string][]float64{
		"a.wav":        {1, 0, 0},
		"same.wav":     {1, 0, 0},
		"close.wav":    {0.9, 0.1, 0},
		"opposite.wav": {0, 1, 0},
	}}
	v, err := NewVerifier(enc, 0.75)
	require.NoError(t, err)

	t.Run("identical embeddings match", func(t *testing.T) {
		res, err := v.Verify(context.Background(), "a.wav", "same.wav")
		require.NoError(t, err)
		assert.InDelta(t, 1.0, res.Similarity, 1e-9)
		assert.True(t, res.Match)
	})

	t.Run("orthogonal embeddings do not match", func(t *testing.T) {
		res, err := v.Verify(context.Background(), "a.wav", "opposite.wav")
		require.NoError(t, err)
		assert.InDelta(t, 0.0, res.Similarity, 1e-9)
		assert.False(t, res.Match)
	})

	t.Run("similar embeddings match", func(t *testing.T) {
		res, err := v.Verify(context.Background(), "a.wav", "close.wav")
		require.NoError(t, err)
		assert.Greater(t, res.Similarity, 0.75)
		assert.True(t, res.Match)
	})

	t.Run("encoder failure propagates", func(t *testing.T) {
		broken := &stubEncoder{err: fmt.Errorf("model not loaded")}
		bv, err := NewVerifier(broken, 0.75)
		require.NoError(t, err)

		_, err = bv.Verify(context.Background(), "a.wav", "same.wav")
		require.Error(t, err)
	})
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		a       []float64
		b       []float64
		want    float64
		wantErr bool
	}{
		{name: "identical", a: []float64{1, 2, 3}, b: []float64{1, 2, 3}, want: 1.0},
		{name: "opposite", a: []float64{1, 0}, b: []float64{-1, 0}, want: -1.0},
		{name: "orthogonal", a: []float64{1, 0}, b: []float64{0, 1}, want: 0.0},
		{name: "dimension mismatch", a: []float64{1, 2}, b: []float64{1}, wantErr: true},
		{name: "zero vector", a: []float64{0, 0}, b: []float64{1, 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cosineSimilarity(tt.a, tt.b)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestHTTPEncoder_Embed(t *testing.T) {
	embedding := []float64{0.1, 0.2, 0.3}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/embed":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			_, _, err := r.FormFile("audio_file")
			require.NoError(t, err)
			_ = json.NewEncoder(w).Encode(map[string]any{"embedding": embedding})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	enc, err := NewHTTPEncoder(EncoderConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFFfake"), 0o600))

	got, err := enc.Embed(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, embedding, got)
}

func TestHTTPEncoder_UnhealthyServiceFailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	enc, err := NewHTTPEncoder(EncoderConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	require.Error(t, enc.EnsureLoaded(context.Background()))

	// A later probe against a recovered service succeeds; failures are not latched.
	srv.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	require.NoError(t, enc.EnsureLoaded(context.Background()))
}
