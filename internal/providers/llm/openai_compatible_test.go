package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sandevgo/reverie/internal/core"
	"github.com/stretchr/testify/require"
)

func TestComplete(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "<game>hello</game>"}}]}`))
	}))
	defer server.Close()

	client := NewOpenAICompatible(Config{BaseURL: server.URL, APIKey: "sk-test", Model: "test-model"})
	out, err := client.Complete(context.Background(), []core.Message{
		{Role: core.RoleUser, Content: "hi"},
	}, 0.7)
	require.NoError(t, err)
	require.Equal(t, "<game>hello</game>", out)

	require.Equal(t, "/v1/chat/completions", gotPath)
	require.Equal(t, "Bearer sk-test", gotAuth)
	require.Equal(t, "test-model", gotBody["model"])
	require.Equal(t, 0.7, gotBody["temperature"])
}

func TestCompleteHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewOpenAICompatible(Config{BaseURL: server.URL, Model: "test-model"})
	_, err := client.Complete(context.Background(), nil, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}

func TestCompleteEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	client := NewOpenAICompatible(Config{BaseURL: server.URL, Model: "test-model"})
	_, err := client.Complete(context.Background(), nil, 0)
	require.Error(t, err)
}

func TestModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data": [{"id": "model-a"}, {"id": "model-b"}]}`))
	}))
	defer server.Close()

	client := NewOpenAICompatible(Config{BaseURL: server.URL})
	models, err := client.Models(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"model-a", "model-b"}, models)
}
