package ai

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
)

// ErrDisabled signals that brief generation is switched off via configuration.
var ErrDisabled = errors.New("ai: generation disabled")

// DefaultTimeout bounds a single completion request.
const DefaultTimeout = 30 * time.Second

// Config holds the language model endpoint settings.
type Config struct {
	Enabled bool
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client talks to an Ollama-compatible completion endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient constructs a Client. The HTTP client may be overridden for tests
// via WithHTTPClient.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClientOption customises Client construction.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Model reports the configured model identifier.
func (c *Client) Model() string {
	return c.cfg.Model
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Complete sends a prompt to the model and returns the raw completion text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.cfg.Enabled {
		return "", ErrDisabled
	}

	payload := generateRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		Stream: false,
		Options: map[string]any{
			"temperature": 0.7,
			"top_p":       0.9,
			"top_k":       40,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ai: call model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ai: model endpoint returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ai: read response: %w", err)
	}

	// A 200 with a blank body is a reachable endpoint that produced nothing.
	// Return the empty completion and let the parser apply its defaults,
	// instead of reporting a transport failure.
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", nil
	}

	var result generateResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("ai: decode response: %w", err)
	}

	return result.Response, nil
}
