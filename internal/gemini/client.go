package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"interview-insights-go/internal/synthesis"
)

// Config captures what the client needs to reach generateContent.
type Config struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// Client calls the Gemini generateContent API once per request; it never retries.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New returns nil when no API key is configured so callers can treat the
// service as absent.
func New(cfg Config) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil
	}
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content      `json:"contents"`
	GenerationConfig map[string]any `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Analyze sends the interview material and returns the model's text answer.
func (c *Client) Analyze(ctx context.Context, req synthesis.Request) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Parts: []part{{Text: BuildPrompt(req)}}}},
		GenerationConfig: map[string]any{"temperature": 0.2},
	})
	if err != nil {
		return "", err
	}

	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("gemini endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", c.cfg.APIKey)
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", redactKey(err, c.cfg.APIKey))
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	var parsed generateResponse
	decodeErr := json.Unmarshal(raw, &parsed)
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", fmt.Errorf("gemini %s: %s", parsed.Error.Status, parsed.Error.Message)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("gemini http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if decodeErr != nil {
		return "", fmt.Errorf("gemini decode: %w", decodeErr)
	}
	if parsed.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini blocked prompt: %s", parsed.PromptFeedback.BlockReason)
	}
	if len(parsed.Candidates) == 0 {
		return "", errors.New("gemini returned no candidates")
	}
	var b strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String(), nil
}

// redactKey keeps the API key (carried in the URL) out of error messages.
func redactKey(err error, key string) error {
	msg := err.Error()
	if !strings.Contains(msg, key) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, key, "REDACTED"))
}
