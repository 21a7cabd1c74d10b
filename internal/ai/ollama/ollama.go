package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kiliankoe/chaosdash/internal/ai"
)

type Client struct {
	Host string
	http *http.Client
}

func New(host string) *Client {
	if host == "" {
		host = "http://localhost:11434"
	}
	return &Client{Host: strings.TrimRight(host, "/"), http: &http.Client{Timeout: 20 * time.Second}}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatResponse struct {
	Message message `json:"message"`
}

func (c *Client) CompleteWithSystem(ctx context.Context, model string, systemPrompt string, prompt string) (string, error) {
	req := chatRequest{
		Model: model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	}
	var out chatResponse
	if err := ai.PostJSON(ctx, c.http, "ollama", c.Host+"/api/chat", nil, req, &out); err != nil {
		return "", err
	}
	text := strings.TrimSpace(out.Message.Content)
	if text == "" {
		return "", ai.ErrEmptyReply
	}
	return text, nil
}
