package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestSendHandler_Success(t *testing.T) {
	var got *http.Request
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Write([]byte(`{"id":"m1","topic":"alerts"}`))
	}))
	defer backend.Close()

	client := NewNtfyClient(backend.URL, "alerts", "", testLogger())
	handler := sendHandler(client, testLogger())

	result, err := handler(context.Background(), callRequest(toolNameSend, map[string]any{
		"message":  "# Done\nsee https://example.com/report",
		"title":    "Job",
		"priority": "high",
		"tags":     []any{"tada"},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, `sent to topic "alerts"`)
	assert.Contains(t, text, "id m1")
	assert.Contains(t, text, "Markdown formatting enabled")
	assert.Contains(t, text, "Open example")

	assert.Equal(t, "yes", got.Header.Get("X-Markdown"))
	assert.Equal(t, "high", got.Header.Get("X-Priority"))
	assert.Equal(t, "tada", got.Header.Get("X-Tags"))
}

func TestSendHandler_MissingMessage(t *testing.T) {
	client := NewNtfyClient("https://ntfy.sh", "alerts", "", testLogger())
	handler := sendHandler(client, testLogger())

	result, err := handler(context.Background(), callRequest(toolNameSend, map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "message is required")
}

func TestSendHandler_ExplicitActions(t *testing.T) {
	var got *http.Request
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Write([]byte(`{"id":"m2"}`))
	}))
	defer backend.Close()

	client := NewNtfyClient(backend.URL, "alerts", "", testLogger())
	handler := sendHandler(client, testLogger())

	result, err := handler(context.Background(), callRequest(toolNameSend, map[string]any{
		"message": "check https://ignored.example.com",
		"actions": []any{
			map[string]any{"url": "https://grafana.example.net/d/1", "label": "Dashboard"},
		},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	assert.Equal(t, "view, Dashboard, https://grafana.example.net/d/1, clear=true", got.Header.Get("X-Actions"))
}

func TestSendHandler_EmptyActionsSuppresses(t *testing.T) {
	var got *http.Request
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Write([]byte(`{"id":"m3"}`))
	}))
	defer backend.Close()

	client := NewNtfyClient(backend.URL, "alerts", "", testLogger())
	handler := sendHandler(client, testLogger())

	result, err := handler(context.Background(), callRequest(toolNameSend, map[string]any{
		"message": "check https://example.com",
		"actions": []any{},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Empty(t, got.Header.Get("X-Actions"))
}

func TestSendHandler_BackendFailure(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer backend.Close()

	client := NewNtfyClient(backend.URL, "alerts", "", testLogger())
	handler := sendHandler(client, testLogger())

	result, err := handler(context.Background(), callRequest(toolNameSend, map[string]any{
		"message": "hello",
	}))
	require.NoError(t, err, "transport failures are tool errors, not protocol errors")
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "failed to send notification")
}

func TestFetchHandler_FormatsMessages(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fetchFixture))
	}))
	defer backend.Close()

	client := NewNtfyClient(backend.URL, "alerts", "", testLogger())
	handler := fetchHandler(client, testLogger())

	result, err := handler(context.Background(), callRequest(toolNameFetch, map[string]any{
		"limit": float64(2),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Found 2 message(s)")
	assert.Contains(t, text, "Build")
	assert.Contains(t, text, "build FAILED")
	assert.NotContains(t, text, "deploy finished")
}

func TestFetchHandler_NoMatches(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(""))
	}))
	defer backend.Close()

	client := NewNtfyClient(backend.URL, "alerts", "", testLogger())
	handler := fetchHandler(client, testLogger())

	result, err := handler(context.Background(), callRequest(toolNameFetch, map[string]any{}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "No cached messages matched")
}

func TestFetchHandler_BackendFailure(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer backend.Close()

	client := NewNtfyClient(backend.URL, "alerts", "", testLogger())
	handler := fetchHandler(client, testLogger())

	result, err := handler(context.Background(), callRequest(toolNameFetch, map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "failed to fetch messages")
}
