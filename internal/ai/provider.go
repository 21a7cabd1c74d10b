// Package ai holds the LLM clients used to generate fresh prompts.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Completer turns a system + user message pair into a single reply.
type Completer interface {
	CompleteWithSystem(ctx context.Context, model string, systemPrompt string, prompt string) (string, error)
}

var ErrEmptyReply = errors.New("empty completion")

// PostJSON sends payload to url and decodes the JSON reply into out.
// Non-2xx responses are reported as errors tagged with name.
func PostJSON(ctx context.Context, client *http.Client, name, url string, headers map[string]string, payload, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s status %d", name, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode reply: %w", name, err)
	}
	return nil
}
