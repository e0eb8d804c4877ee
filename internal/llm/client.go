// Package llm talks to the Ollama generate endpoint that performs the actual
// PII detection and rewriting.
package llm

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

	"github.com/raaihank/doc-sanitizer/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Defaults match the settings the prompts were tuned with
const (
	DefaultBaseURL     = "http://localhost:11434"
	DefaultModel       = "phi4:14b"
	DefaultTemperature = 0.1
	DefaultTopP        = 0.9
	DefaultNumPredict  = 8192
	DefaultTimeout     = 5 * time.Minute
)

// ErrModel wraps every failure talking to the model endpoint
var ErrModel = errors.New("model request failed")

// Options are the sampling parameters sent with each request
type Options struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

// DefaultOptions returns the tuned sampling parameters
func DefaultOptions() Options {
	return Options{
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
		NumPredict:  DefaultNumPredict,
	}
}

// Config contains client configuration
type Config struct {
	BaseURL   string
	Model     string
	Timeout   time.Duration
	Options   Options
	RateLimit float64 // requests per second, 0 disables
	Burst     int
}

// Generator produces a completion for a prompt
type Generator interface {
	Generate(ctx context.Context, model, prompt string, opts Options) (string, error)
}

// Client is an Ollama /api/generate client with client-side rate limiting
type Client struct {
	baseURL    string
	model      string
	options    Options
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logger.Logger
}

type generateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Options Options `json:"options"`
}

type generateResponse struct {
	Model         string `json:"model"`
	Response      string `json:"response"`
	Done          bool   `json:"done"`
	TotalDuration int64  `json:"total_duration"`
	EvalCount     int    `json:"eval_count"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// New creates a client; zero fields take the package defaults
func New(cfg Config, log *logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Options == (Options{}) {
		cfg.Options = DefaultOptions()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		options:    cfg.Options,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		logger:     log.WithComponent("llm"),
	}
}

// Model returns the configured default model
func (c *Client) Model() string {
	return c.model
}

// Options returns the configured sampling parameters
func (c *Client) Options() Options {
	return c.options
}

// BaseURL returns the endpoint root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Generate sends a non-streaming generate request and returns the completion
func (c *Client) Generate(ctx context.Context, model, prompt string, opts Options) (string, error) {
	if model == "" {
		model = c.model
	}
	if opts == (Options{}) {
		opts = c.options
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limit wait: %v", ErrModel, err)
	}

	body, err := json.Marshal(generateRequest{Model: model, Prompt: prompt, Stream: false, Options: opts})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrModel, err)
	}

	start := time.Now()
	var resp generateResponse
	if err := c.do(ctx, http.MethodPost, "/api/generate", body, &resp); err != nil {
		c.logger.Error("Model request failed",
			zap.String("model", model),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return "", err
	}

	c.logger.Info("Model request completed",
		zap.String("model", model),
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("eval_count", resp.EvalCount),
		zap.Duration("duration", time.Since(start)),
	)
	return resp.Response, nil
}

// ListModels returns the names of locally available models
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	var resp tagsResponse
	if err := c.do(ctx, http.MethodGet, "/api/tags", nil, &resp); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// CheckAvailability verifies the endpoint answers within a short timeout
func (c *Client) CheckAvailability(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.ListModels(ctx)
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrModel, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d: %s", ErrModel, resp.StatusCode, errorMessage(resp.Body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrModel, err)
	}
	return nil
}

// errorMessage extracts Ollama's {"error": "..."} body, falling back to raw text
func errorMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(data))
}
