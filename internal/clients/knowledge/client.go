// Package knowledge provides a client for the external knowledge/search
// provider used by price discovery and market-signal enrichment. The
// provider speaks the OpenAI-compatible chat-completions protocol and
// answers natural-language questions with free-form text grounded in
// current web data.
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://api.perplexity.ai"

// transportCeiling caps a single HTTP exchange regardless of the caller's
// context deadline, so a wedged connection can never hang the pipeline.
const transportCeiling = 60 * time.Second

// Config holds provider connection settings.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
}

// chatMessage is one message in a chat-completions exchange.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the chat-completions request body. Temperature is always
// zero: valuation answers must be deterministic, not creative.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

// chatChoice is a single completion choice.
type chatChoice struct {
	Message chatMessage `json:"message"`
}

// chatResponse is the chat-completions response body.
type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

// apiError is the provider's structured error payload.
type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Client is the knowledge provider API client.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new knowledge provider client.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &Client{
		baseURL:   baseURL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: maxTokens,
		httpClient: &http.Client{
			Timeout: transportCeiling,
		},
		log: log.With().Str("component", "knowledge").Logger(),
	}
}

// Ask sends a single-prompt question and returns the provider's text
// answer. The caller's context carries the per-call deadline; discovery
// and enrichment enforce different ones. Empty answers, non-2xx statuses,
// and malformed bodies are all returned as errors so callers can degrade.
func (c *Client) Ask(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: 0,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Warn().
			Int("status", resp.StatusCode).
			Dur("elapsed", time.Since(start)).
			Msg("Provider returned non-success status")
		return "", fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse provider response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("provider error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("provider returned empty answer")
	}

	answer := parsed.Choices[0].Message.Content

	c.log.Debug().
		Int("prompt_len", len(prompt)).
		Int("answer_len", len(answer)).
		Dur("elapsed", time.Since(start)).
		Msg("Provider answered")

	return answer, nil
}
