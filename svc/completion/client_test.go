package completion_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/creditgate/pkg/resilience"
	"github.com/dmitrymomot/creditgate/svc/completion"
)

func newClient(t *testing.T, url string, opts ...completion.Option) *completion.Client {
	t.Helper()
	cfg := completion.Config{
		APIKey:      "gsk_test",
		BaseURL:     url,
		Model:       "llama-3.1-8b-instant",
		MaxTokens:   2048,
		Temperature: 0.7,
		Timeout:     2 * time.Second,
		Retries:     2,
	}
	opts = append([]completion.Option{completion.WithBackoff(func() retry.Backoff {
		return retry.NewConstant(time.Millisecond)
	})}, opts...)
	c, err := completion.New(cfg, opts...)
	require.NoError(t, err)
	return c
}

func answer(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": text}}},
	})
}

func TestComplete(t *testing.T) {
	t.Parallel()

	var got struct {
		Model       string  `json:"model"`
		MaxTokens   int     `json:"max_tokens"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk_test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		answer(w, "use nmap -sV")
	}))
	t.Cleanup(srv.Close)

	text, err := newClient(t, srv.URL).Complete(t.Context(), completion.Request{
		Query:       "scan ports",
		Mode:        completion.ModeOperational,
		Environment: completion.Environment{Distro: "kali", Shell: "zsh"},
	})
	require.NoError(t, err)
	assert.Equal(t, "use nmap -sV", text)

	assert.Equal(t, "llama-3.1-8b-instant", got.Model)
	assert.Equal(t, 2048, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "MODE: OPERATIONAL")
	assert.Contains(t, got.Messages[0].Content, "- System: kali")
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "scan ports", got.Messages[1].Content)
}

func TestCompleteRetries(t *testing.T) {
	t.Parallel()

	t.Run("transient failures are retried", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			answer(w, "ok")
		}))
		t.Cleanup(srv.Close)

		text, err := newClient(t, srv.URL).Complete(t.Context(), completion.Request{Query: "q"})
		require.NoError(t, err)
		assert.Equal(t, "ok", text)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("dropped connections are retried", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				conn, _, err := w.(http.Hijacker).Hijack()
				require.NoError(t, err)
				_ = conn.Close()
				return
			}
			answer(w, "ok")
		}))
		t.Cleanup(srv.Close)

		text, err := newClient(t, srv.URL).Complete(t.Context(), completion.Request{Query: "q"})
		require.NoError(t, err)
		assert.Equal(t, "ok", text)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("retries stop at the configured cap", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		t.Cleanup(srv.Close)

		_, err := newClient(t, srv.URL).Complete(t.Context(), completion.Request{Query: "q"})
		require.ErrorIs(t, err, completion.ErrUnavailable)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		t.Cleanup(srv.Close)

		_, err := newClient(t, srv.URL).Complete(t.Context(), completion.Request{Query: "q"})
		require.ErrorIs(t, err, completion.ErrUnavailable)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("empty answer", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			answer(w, "  ")
		}))
		t.Cleanup(srv.Close)

		_, err := newClient(t, srv.URL).Complete(t.Context(), completion.Request{Query: "q"})
		require.ErrorIs(t, err, completion.ErrEmptyAnswer)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("open breaker short-circuits", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		t.Cleanup(srv.Close)

		c := newClient(t, srv.URL, completion.WithBreaker(resilience.NewBreaker(2, 1, time.Hour)))
		_, err := c.Complete(t.Context(), completion.Request{Query: "q"})
		require.ErrorIs(t, err, completion.ErrUnavailable)
		assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
		assert.Equal(t, int32(2), calls.Load())
	})
}

func TestCompleteValidation(t *testing.T) {
	t.Parallel()

	_, err := completion.New(completion.Config{})
	require.ErrorIs(t, err, completion.ErrNotConfigured)

	c := newClient(t, "http://127.0.0.1:1")
	_, err = c.Complete(t.Context(), completion.Request{Query: "   "})
	assert.ErrorIs(t, err, completion.ErrEmptyQuery)
}

func TestSystemPrompt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, completion.ModeOperational, completion.ModeFor(true))
	assert.Equal(t, completion.ModeConsultation, completion.ModeFor(false))

	p := completion.SystemPrompt(completion.ModeConsultation, completion.Environment{})
	assert.Contains(t, p, "MODE: CONSULTATION")
	assert.Contains(t, p, "- System: Linux")
	assert.Contains(t, p, "- Shell: bash")
	assert.Contains(t, p, "- Package manager: apt")
	assert.Contains(t, p, "require Premium")
}
