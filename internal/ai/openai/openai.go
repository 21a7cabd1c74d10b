package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kiliankoe/chaosdash/internal/ai"
)

const defaultBaseURL = "https://api.openai.com"

type Client struct {
	APIKey  string
	BaseURL string
	http    *http.Client
}

func New(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{APIKey: apiKey, BaseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: 20 * time.Second}}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// CompleteWithSystem runs a chat completion. Prompt writing wants variety, so
// the temperature sits above the usual default.
func (c *Client) CompleteWithSystem(ctx context.Context, model string, systemPrompt string, prompt string) (string, error) {
	if c.APIKey == "" {
		return "", errors.New("missing OPENAI_API_KEY")
	}
	req := chatRequest{
		Model: model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 1.0,
		MaxTokens:   80,
	}
	var out chatResponse
	headers := map[string]string{"Authorization": "Bearer " + c.APIKey}
	if err := ai.PostJSON(ctx, c.http, "openai", c.BaseURL+"/v1/chat/completions", headers, req, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", ai.ErrEmptyReply
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
