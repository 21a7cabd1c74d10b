package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kiliankoe/chaosdash/internal/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteWithSystem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"Never bring ____ to a picnic."}}`))
	}))
	defer srv.Close()

	out, err := New(srv.URL).CompleteWithSystem(context.Background(), "llama3", "sys", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Never bring ____ to a picnic.", out)
}

func TestCompleteWithSystemEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":{"content":"   "}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).CompleteWithSystem(context.Background(), "llama3", "sys", "prompt")
	assert.ErrorIs(t, err, ai.ErrEmptyReply)
}
