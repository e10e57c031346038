package inference

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		MinInterval: time.Millisecond,
		MaxRetries:  3,
		RetryDelay:  time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{APIKey: "k"})
	require.Error(t, err)

	_, err = NewClient(Config{BaseURL: "http://example.com"})
	require.Error(t, err)
}

func TestClient_Emotions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[[{"label":"joy","score":0.7},{"label":"neutral","score":0.2},{"label":"sadness","score":0.1}]]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	emotions, err := c.Emotions(context.Background(), "rejoice and be glad")
	require.NoError(t, err)
	assert.InDelta(t, 0.7, emotions["joy"], 1e-9)
	assert.InDelta(t, 0.2, emotions["neutral"], 1e-9)
	assert.Len(t, emotions, 3)
}

func TestClient_Sentiment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[[{"label":"negative","score":0.1},{"label":"positive","score":0.85},{"label":"neutral","score":0.05}]]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	label, score, err := c.Sentiment(context.Background(), "this is wonderful")
	require.NoError(t, err)
	assert.Equal(t, "positive", label)
	assert.InDelta(t, 0.85, score, 1e-9)
}

func TestClient_RetriesWhileModelLoads(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[[{"label":"neutral","score":0.9}]]`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{
		BaseURL:     srv.URL,
		APIKey:      "test-key",
		MinInterval: time.Millisecond,
		MaxRetries:  3,
		RetryDelay:  time.Millisecond,
	})
	require.NoError(t, err)
	// Keep the 503 backoff short for the test.
	c.retryOpts.MaxDelay = 5 * time.Millisecond

	emotions, err := c.Emotions(context.Background(), "text")
	require.NoError(t, err)
	assert.InDelta(t, 0.9, emotions["neutral"], 1e-9)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_SurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad input", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.Emotions(context.Background(), "text")
	require.Error(t, err)
}

func TestParseScores(t *testing.T) {
	t.Run("nested", func(t *testing.T) {
		scores, err := parseScores([]byte(`[[{"label":"joy","score":0.5}]]`))
		require.NoError(t, err)
		require.Len(t, scores, 1)
		assert.Equal(t, "joy", scores[0].Label)
	})

	t.Run("flat", func(t *testing.T) {
		scores, err := parseScores([]byte(`[{"label":"joy","score":0.5}]`))
		require.NoError(t, err)
		require.Len(t, scores, 1)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := parseScores([]byte(`{"error":"oops"}`))
		require.Error(t, err)
	})
}

func TestMinInterval_EnforcesSpacing(t *testing.T) {
	m := NewMinInterval(50 * time.Millisecond)

	require.NoError(t, m.Wait(context.Background()))
	start := time.Now()
	require.NoError(t, m.Wait(context.Background()))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond,
		"second call must wait out the full minimum interval")
}

func TestMinInterval_FirstCallDoesNotWait(t *testing.T) {
	m := NewMinInterval(time.Hour)

	start := time.Now()
	require.NoError(t, m.Wait(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestMinInterval_CancellationReleasesCaller(t *testing.T) {
	m := NewMinInterval(time.Hour)
	require.NoError(t, m.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := m.Wait(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
