// Package completion talks to an OpenAI-compatible chat completion API on
// behalf of the query gate. Transient failures are retried with backoff
// behind a circuit breaker.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrymomot/creditgate/pkg/logger"
	"github.com/dmitrymomot/creditgate/pkg/resilience"
)

// Request is one user query.
type Request struct {
	Query       string
	Mode        Mode
	Environment Environment
}

// Client calls the chat completion endpoint.
type Client struct {
	cfg     Config
	http    *http.Client
	backoff func() retry.Backoff
	breaker *resilience.Breaker
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithBackoff replaces the retry schedule. The factory is called once per
// request because backoffs keep state; the attempt cap from Config.Retries
// is applied on top.
func WithBackoff(newBackoff func() retry.Backoff) Option {
	return func(cl *Client) {
		if newBackoff != nil {
			cl.backoff = newBackoff
		}
	}
}

// DefaultBackoff starts at 200ms, doubles with 20% jitter and caps at 5s.
func DefaultBackoff() retry.Backoff {
	b := retry.NewExponential(200 * time.Millisecond)
	b = retry.WithJitterPercent(20, b)
	return retry.WithCappedDuration(5*time.Second, b)
}

// WithBreaker replaces the circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(cl *Client) {
		if b != nil {
			cl.breaker = b
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.log = l
		}
	}
}

// New creates a client. It fails with ErrNotConfigured without an API key.
func New(cfg Config, opts ...Option) (*Client, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		backoff: DefaultBackoff,
		breaker: resilience.NewBreaker(5, 1, 30*time.Second),
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// statusError is a non-2xx answer.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("completion api returned status %d: %s", e.code, e.body)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= http.StatusInternalServerError
}

// Complete returns the assistant's answer to req.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Query) == "" {
		return "", ErrEmptyQuery
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []message{
			{Role: "system", Content: SystemPrompt(req.Mode, req.Environment)},
			{Role: "user", Content: req.Query},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	var answer string
	start := time.Now()
	backoff := retry.WithMaxRetries(uint64(max(c.cfg.Retries, 0)), c.backoff())
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.breaker.Do(func() error {
			a, err := c.call(ctx, body)
			if err != nil {
				return err
			}
			answer = a
			return nil
		}, countable)
		if transient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		c.log.ErrorContext(ctx, "completion failed",
			logger.Component("completion"), logger.Duration(time.Since(start)), logger.Error(err))
		if errors.Is(err, ErrEmptyAnswer) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return answer, nil
}

// transient reports whether another attempt may succeed: rate limits,
// server errors and transport failures.
func transient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.retryable()
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

// countable keeps client errors from tripping the breaker.
func countable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.retryable()
	}
	return !errors.Is(err, ErrEmptyAnswer)
}

func (c *Client) call(ctx context.Context, body []byte) (string, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.ReplaceAll(string(data), "\n", " ")
		if len(msg) > 200 {
			msg = msg[:200] + "..."
		}
		return "", &statusError{code: resp.StatusCode, body: msg}
	}

	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrEmptyAnswer
	}
	return out.Choices[0].Message.Content, nil
}
