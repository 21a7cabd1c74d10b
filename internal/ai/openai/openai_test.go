package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteWithSystem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		if !assert.Len(t, req.Messages, 2) {
			return
		}
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "write a prompt", req.Messages[1].Content)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  The best ____ ever.  "}}]}`))
	}))
	defer srv.Close()

	c := New("sk-test", srv.URL+"/")
	out, err := c.CompleteWithSystem(context.Background(), "gpt-4o-mini", "be brief", "write a prompt")
	require.NoError(t, err)
	assert.Equal(t, "The best ____ ever.", out)
}

func TestCompleteWithSystemErrors(t *testing.T) {
	_, err := New("", "").CompleteWithSystem(context.Background(), "m", "s", "p")
	require.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	_, err = New("k", srv.URL).CompleteWithSystem(context.Background(), "m", "s", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
