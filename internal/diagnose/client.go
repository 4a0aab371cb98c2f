// Package diagnose forwards clinical text to the remote classification server.
package diagnose

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BonelessWater/aura/internal/config"
)

// ErrUnavailable is returned when the upstream server cannot be reached.
var ErrUnavailable = errors.New("inference server unavailable")

// UpstreamError is returned when the upstream server answers with a non-2xx status.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("inference server returned %d: %s", e.StatusCode, e.Body)
}

// Result is one classification.
type Result struct {
	Diagnosis     string  `json:"diagnosis"`
	InferenceTime float64 `json:"inference_time"`
	Cached        bool    `json:"cached,omitempty"`
}

// BatchResult holds the classifications of a batch, in request order.
type BatchResult struct {
	Results   []Result `json:"results"`
	TotalTime float64  `json:"total_time"`
}

// Client calls the upstream classification server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      Cache
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithCache sets a result cache consulted before calling upstream.
func WithCache(c Cache) Option {
	return func(cl *Client) { cl.cache = c }
}

// WithLogger sets a logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(cl *Client) { cl.httpClient = h }
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromConfig builds a client, attaching a Redis cache when one is configured.
func NewClientFromConfig(cfg *config.InferenceConfig, logger *zap.Logger) *Client {
	opts := []Option{WithLogger(logger)}
	if cfg.RedisAddr != "" {
		opts = append(opts, WithCache(NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTLDuration(), logger)))
	}
	return NewClient(cfg.UpstreamURL, cfg.Timeout(), opts...)
}

// Diagnose classifies text. Cached results are returned without contacting upstream.
func (c *Client) Diagnose(ctx context.Context, text string) (*Result, error) {
	if c.cache != nil {
		if r, ok := c.cache.Get(ctx, text); ok {
			r.Cached = true
			return r, nil
		}
	}
	var r Result
	if err := c.do(ctx, http.MethodPost, "/diagnose", map[string]string{"text": text}, &r); err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Set(ctx, text, &r)
	}
	return &r, nil
}

// DiagnoseBatch classifies each text in order. The first failure aborts the batch.
func (c *Client) DiagnoseBatch(ctx context.Context, texts []string) (*BatchResult, error) {
	start := time.Now()
	out := &BatchResult{Results: make([]Result, 0, len(texts))}
	for i, text := range texts {
		r, err := c.Diagnose(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		out.Results = append(out.Results, *r)
	}
	out.TotalTime = time.Since(start).Seconds()
	return out, nil
}

// Health returns the upstream health payload.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var payload map[string]any
	if err := c.do(ctx, http.MethodGet, "/health", nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("inference server unreachable", zap.String("url", c.baseURL+path), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode inference response: %w", err)
	}
	return nil
}
