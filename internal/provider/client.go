// Package provider implements generator.Provider against
// OpenAI-compatible chat completion endpoints.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/wordparty/phraseforge/pkg/phraseforge/config"
	"github.com/wordparty/phraseforge/pkg/phraseforge/generator"
	"github.com/wordparty/phraseforge/pkg/phraseforge/internalerr"
)

// Client calls an OpenAI-compatible chat completion endpoint and
// parses the reply into candidate phrases.
type Client struct {
	ID      string
	BaseURL string
	APIKey  string
	Model   string

	HTTPClient *http.Client
}

// FromConfig builds a client from provider configuration. The API key
// is resolved from the configured environment variable.
func FromConfig(cfg config.Provider) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	apiKey := ""
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}
	return &Client{
		ID:         cfg.Name,
		BaseURL:    cfg.BaseURL,
		APIKey:     apiKey,
		Model:      cfg.Model,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Name implements generator.Provider.
func (c *Client) Name() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Model
}

// Generate requests one batch of candidate phrases. Transport and API
// errors are returned for provider fallback; a well-formed reply whose
// content cannot be parsed yields zero candidates without error, since
// that indicates a prompt/format issue rather than a transient fault.
func (c *Client) Generate(ctx context.Context, req generator.Request) (generator.Result, error) {
	if c.BaseURL == "" || c.Model == "" {
		return generator.Result{}, fmt.Errorf("provider %s: base URL and model required", c.Name())
	}

	prompt := req.PromptOverride
	if prompt == "" {
		prompt = fmt.Sprintf(
			"Generate %d short, well-known phrases for the party game category %q. Respond with a JSON array of strings and nothing else.",
			req.BatchSize, req.Category)
	}

	system := "You generate short phrases for a party guessing game. Every phrase must be a real, widely recognizable thing. Respond with a JSON array of strings only."
	payload, err := c.send(ctx, []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return generator.Result{}, err
	}
	if len(payload.Choices) == 0 {
		return generator.Result{}, fmt.Errorf("provider %s: empty response", c.Name())
	}

	model := payload.Model
	if model == "" {
		model = c.Model
	}
	result := generator.Result{ProviderID: c.Name(), ModelID: model}
	result.Candidates = parseCandidates(payload.Choices[0].Message.Content)
	return result, nil
}

func (c *Client) send(ctx context.Context, messages []chatMessage) (*chatResponse, error) {
	reqBody, err := json.Marshal(chatRequest{Model: c.Model, Messages: messages})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", internalerr.ErrProviderUnavailable, c.Name(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: %s returned status %d", internalerr.ErrProviderUnavailable, c.Name(), resp.StatusCode)
	}
	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Error != nil {
		return nil, fmt.Errorf("provider %s: %s", c.Name(), payload.Error.Message)
	}
	return &payload, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// parseCandidates extracts the phrase list from the model reply. The
// reply should be a JSON array of strings, possibly wrapped in prose
// or a code fence. Anything unparseable yields an empty list.
func parseCandidates(content string) []string {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil
	}

	var raw []string
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
