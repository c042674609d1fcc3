package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mindgrove/triage/llm"
	_ "github.com/mindgrove/triage/llm/providers" // Register providers
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastRetry keeps retry tests quick.
var fastRetry = llm.RetryConfig{
	MaxAttempts:       3,
	BackoffBase:       time.Millisecond,
	BackoffMultiplier: 1.0,
	MaxBackoff:        5 * time.Millisecond,
}

func openAISuccess(content string) map[string]any {
	return map[string]any{
		"id":    "chatcmpl-123",
		"model": "test-model",
		"choices": []map[string]any{
			{
				"index": 0,
				"message": map[string]string{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{
			"prompt_tokens":     10,
			"completion_tokens": 8,
			"total_tokens":      18,
		},
	}
}

func TestClient_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openAISuccess("Hello! How can I help you?"))
	}))
	defer server.Close()

	client, err := llm.NewClient([]llm.Endpoint{
		{Provider: "ollama", URL: server.URL, Model: "test-model"},
	})
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: "user", Content: "Hello"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help you?", resp.Content)
	assert.Equal(t, "test-model", resp.Model)
	assert.Equal(t, 18, resp.Usage.TotalTokens)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.NotEmpty(t, resp.RequestID)
}

func TestClient_Complete_RetryOnTransientError(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Service temporarily unavailable"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openAISuccess("Success after retries"))
	}))
	defer server.Close()

	client, err := llm.NewClient(
		[]llm.Endpoint{{Provider: "ollama", URL: server.URL, Model: "test-model"}},
		llm.WithRetryConfig(fastRetry),
	)
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: "user", Content: "Hello"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "Success after retries", resp.Content)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_Complete_FallbackChain(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openAISuccess("from fallback"))
	}))
	defer working.Close()

	client, err := llm.NewClient(
		[]llm.Endpoint{
			{Provider: "ollama", URL: broken.URL, Model: "primary"},
			{Provider: "ollama", URL: working.URL, Model: "fallback"},
		},
		llm.WithRetryConfig(fastRetry),
	)
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: "user", Content: "Hello"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "from fallback", resp.Content)
}

func TestClient_Complete_FatalErrorSkipsFallbacks(t *testing.T) {
	var fallbackCalled atomic.Bool

	unauthorized := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("bad api key"))
	}))
	defer unauthorized.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackCalled.Store(true)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openAISuccess("should not be reached"))
	}))
	defer fallback.Close()

	client, err := llm.NewClient(
		[]llm.Endpoint{
			{Provider: "ollama", URL: unauthorized.URL, Model: "primary"},
			{Provider: "ollama", URL: fallback.URL, Model: "fallback"},
		},
		llm.WithRetryConfig(fastRetry),
	)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: "user", Content: "Hello"}},
	})

	require.Error(t, err)
	assert.True(t, llm.IsFatal(err))
	assert.False(t, fallbackCalled.Load())
}

func TestClient_Complete_AllEndpointsFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := llm.NewClient(
		[]llm.Endpoint{{Provider: "ollama", URL: server.URL, Model: "test-model"}},
		llm.WithRetryConfig(fastRetry),
	)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: "user", Content: "Hello"}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "all endpoints failed")
}

func TestClient_Complete_RequiresMessages(t *testing.T) {
	client, err := llm.NewClient([]llm.Endpoint{
		{Provider: "ollama", URL: "http://localhost:1", Model: "test-model"},
	})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), llm.Request{})
	require.Error(t, err)
}

func TestClient_Complete_UnknownProviderIsFatal(t *testing.T) {
	client, err := llm.NewClient([]llm.Endpoint{
		{Provider: "does-not-exist", Model: "test-model"},
	})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: "user", Content: "Hello"}},
	})

	require.Error(t, err)
	assert.True(t, llm.IsFatal(err))
}

func TestNewClient_RequiresEndpoints(t *testing.T) {
	_, err := llm.NewClient(nil)
	require.Error(t, err)
}
