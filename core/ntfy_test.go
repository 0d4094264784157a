package core

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func boolPtr(value bool) *bool {
	return &value
}

func TestPublish_AutoDetectedHeaders(t *testing.T) {
	var got *http.Request
	var body string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.Write([]byte(`{"id":"abc123","time":1700000000,"event":"message","topic":"alerts"}`))
	}))
	defer backend.Close()

	client := NewNtfyClient(backend.URL, "alerts", "secret-token", testLogger())
	receipt, err := client.Publish(context.Background(), PublishRequest{
		Message:  "**Build failed** - see https://ci.example.com/run/42",
		Title:    "CI",
		Priority: "high",
		Tags:     []string{"warning", "ci"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/alerts", got.URL.Path)
	assert.Equal(t, "**Build failed** - see https://ci.example.com/run/42", body)
	assert.Equal(t, "Bearer secret-token", got.Header.Get("Authorization"))
	assert.Equal(t, "CI", got.Header.Get("X-Title"))
	assert.Equal(t, "high", got.Header.Get("X-Priority"))
	assert.Equal(t, "warning,ci", got.Header.Get("X-Tags"))
	assert.Equal(t, "yes", got.Header.Get("X-Markdown"))
	assert.Equal(t, "view, Open ci.example, https://ci.example.com/run/42, clear=true", got.Header.Get("X-Actions"))

	assert.Equal(t, "abc123", receipt.ID)
	assert.Equal(t, "alerts", receipt.Topic)
	assert.True(t, receipt.Markdown)
	require.Len(t, receipt.Actions, 1)
}

func TestPublish_DefaultPriority(t *testing.T) {
	var got *http.Request
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		io.Copy(io.Discard, r.Body)
		w.Write([]byte(`{"id":"abc123","event":"message","topic":"alerts"}`))
	}))
	defer backend.Close()

	client := NewNtfyClient(backend.URL, "alerts", "", testLogger())
	client.WithDefaultPriority("high")

	_, err := client.Publish(context.Background(), PublishRequest{Message: "disk almost full"})
	require.NoError(t, err)
	assert.Equal(t, "high", got.Header.Get("X-Priority"))

	// A priority on the request wins over the configured default.
	_, err = client.Publish(context.Background(), PublishRequest{Message: "disk almost full", Priority: "low"})
	require.NoError(t, err)
	assert.Equal(t, "low", got.Header.Get("X-Priority"))

	// The default level stays off the wire, the server assumes it anyway.
	client.WithDefaultPriority("default")
	_, err = client.Publish(context.Background(), PublishRequest{Message: "disk almost full"})
	require.NoError(t, err)
	assert.Empty(t, got.Header.Get("X-Priority"))
}

func TestPublish_ExplicitOverridesWin(t *testing.T) {
	var got *http.Request
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Write([]byte(`{"id":"x"}`))
	}))
	defer backend.Close()

	client := NewNtfyClient(backend.URL, "alerts", "", testLogger())
	receipt, err := client.Publish(context.Background(), PublishRequest{
		Message:  "**bold** with https://example.com inside",
		Markdown: boolPtr(false),
		Actions:  []ViewAction{},
	})
	require.NoError(t, err)

	assert.Empty(t, got.Header.Get("X-Markdown"))
	assert.Empty(t, got.Header.Get("X-Actions"))
	assert.Empty(t, got.Header.Get("Authorization"))
	assert.False(t, receipt.Markdown)
	assert.Empty(t, receipt.Actions)
}

func TestPublish_TopicOverrideAndPlainBody(t *testing.T) {
	var path string
	var markdownHeader string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		markdownHeader = r.Header.Get("X-Markdown")
		w.Write([]byte(`{"id":"y"}`))
	}))
	defer backend.Close()

	client := NewNtfyClient(backend.URL, "alerts", "", testLogger())
	receipt, err := client.Publish(context.Background(), PublishRequest{
		Topic:   "other",
		Message: "plain text, no formatting",
	})
	require.NoError(t, err)

	assert.Equal(t, "/other", path)
	assert.Empty(t, markdownHeader)
	assert.Equal(t, "other", receipt.Topic)
	assert.False(t, receipt.Markdown)
}

func TestPublish_NoTopic(t *testing.T) {
	client := NewNtfyClient("https://ntfy.sh", "", "", testLogger())
	_, err := client.Publish(context.Background(), PublishRequest{Message: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no topic")
}

func TestPublish_ServerError(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":40301,"error":"forbidden"}`, http.StatusForbidden)
	}))
	defer backend.Close()

	client := NewNtfyClient(backend.URL, "alerts", "", testLogger())
	_, err := client.Publish(context.Background(), PublishRequest{Message: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

const fetchFixture = `{"id":"a1","time":1700000100,"event":"message","topic":"alerts","title":"Deploy","message":"deploy finished","tags":["rocket"]}
{"id":"keep1","time":1700000200,"event":"open","topic":"alerts"}
{"id":"a2","time":1700000300,"event":"message","topic":"alerts","title":"Build","message":"build FAILED","priority":4,"tags":["warning"]}
{"id":"a3","time":1700000400,"event":"message","topic":"alerts","message":"all quiet"}
`

func TestFetch_ParsesAndFilters(t *testing.T) {
	var query string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		require.Equal(t, "/alerts/json", r.URL.Path)
		w.Write([]byte(fetchFixture))
	}))
	defer backend.Close()

	client := NewNtfyClient(backend.URL, "alerts", "", testLogger())

	messages, err := client.Fetch(context.Background(), FetchParams{})
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Contains(t, query, "poll=1")
	assert.Contains(t, query, "since=10m")
	assert.Equal(t, "a1", messages[0].ID)
	assert.Equal(t, "a3", messages[2].ID)

	messages, err = client.Fetch(context.Background(), FetchParams{MessageContains: "failed"})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "a2", messages[0].ID)

	messages, err = client.Fetch(context.Background(), FetchParams{Priority: "high"})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "a2", messages[0].ID)

	messages, err = client.Fetch(context.Background(), FetchParams{Priority: "default"})
	require.NoError(t, err)
	require.Len(t, messages, 2)

	messages, err = client.Fetch(context.Background(), FetchParams{Tag: "rocket"})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "a1", messages[0].ID)

	messages, err = client.Fetch(context.Background(), FetchParams{Limit: 2})
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "a2", messages[0].ID)
	assert.Equal(t, "a3", messages[1].ID)
}

func TestFetch_SincePassedThrough(t *testing.T) {
	var query string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte(""))
	}))
	defer backend.Close()

	client := NewNtfyClient(backend.URL, "alerts", "", testLogger())
	messages, err := client.Fetch(context.Background(), FetchParams{Since: "all"})
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.Contains(t, query, "since=all")
}

func TestFetch_ServerError(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer backend.Close()

	client := NewNtfyClient(backend.URL, "alerts", "", testLogger())
	_, err := client.Fetch(context.Background(), FetchParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
