package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tahcohcat/meechain/config"
)

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(&config.OpenAIConfig{})
	assert.Error(t, err)
}

func TestComplete(t *testing.T) {
	reqs := make(chan chatRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		reqs <- body
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"summary\":\"ok\"}"}}],"usage":{"total_tokens":12}}`))
	}))
	defer srv.Close()

	c, err := NewClient(&config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: srv.URL, Timeout: 5})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "be brief", "analyze this")
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, out)

	got := <-reqs

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "analyze this", got.Messages[1].Content)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestCompleteSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(&config.OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "", "hi")
	assert.ErrorContains(t, err, "status 429")
	assert.ErrorContains(t, err, "slow down")
}

func TestIsModelAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"gpt-4o-mini"},{"id":"gpt-4o"}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(&config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.NoError(t, c.IsModelAvailable(context.Background()))

	c.config.Model = "gpt-5"
	assert.ErrorIs(t, c.IsModelAvailable(context.Background()), ErrModelNotFound)
}
