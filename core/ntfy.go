package core

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

const publishTimeout = 30 * time.Second

// priorityLevels maps ntfy priority names to the numeric levels the service
// uses in cached-message JSON.
var priorityLevels = map[string]int{
	"min":     1,
	"low":     2,
	"default": 3,
	"high":    4,
	"max":     5,
}

// Message is a single message as cached by the ntfy server.
type Message struct {
	ID       string          `json:"id"`
	Time     int64           `json:"time"`
	Event    string          `json:"event"`
	Topic    string          `json:"topic"`
	Title    string          `json:"title,omitempty"`
	Message  string          `json:"message,omitempty"`
	Priority int             `json:"priority,omitempty"`
	Tags     []string        `json:"tags,omitempty"`
	Click    string          `json:"click,omitempty"`
	Actions  []MessageAction `json:"actions,omitempty"`
}

// MessageAction is an action button as reported back by the ntfy server.
type MessageAction struct {
	Action string `json:"action"`
	Label  string `json:"label"`
	URL    string `json:"url,omitempty"`
	Clear  bool   `json:"clear,omitempty"`
}

// PublishRequest describes one outgoing notification.
//
// Markdown and Actions are overrides. When Markdown is nil the body is run
// through HasMarkup; when Actions is nil the body is run through
// ExtractActions. A non-nil empty Actions slice suppresses action buttons
// entirely.
type PublishRequest struct {
	Topic    string
	Message  string
	Title    string
	Priority string
	Tags     []string
	Delay    string
	Click    string
	Icon     string
	Email    string
	Markdown *bool
	Actions  []ViewAction
}

// PublishReceipt reports what was actually sent, including the advisory
// verdicts that ended up on the wire.
type PublishReceipt struct {
	ID       string
	Topic    string
	Markdown bool
	Actions  []ViewAction
}

// FetchParams narrows which cached messages Fetch returns. All filters are
// optional; Since defaults to the last 10 minutes.
type FetchParams struct {
	Topic           string
	Since           string
	MessageContains string
	TitleContains   string
	Priority        string
	Tag             string
	Limit           int
}

// NtfyClient talks to a single ntfy server over its HTTP API.
type NtfyClient struct {
	serverURL string
	topic     string
	token     string
	priority  string
	http      *http.Client
	logger    *log.Logger
}

func NewNtfyClient(serverURL string, topic string, token string, logger *log.Logger) *NtfyClient {
	return &NtfyClient{
		serverURL: strings.TrimRight(serverURL, "/"),
		topic:     topic,
		token:     token,
		http:      &http.Client{Timeout: publishTimeout},
		logger:    logger,
	}
}

// WithDefaultPriority sets the priority used when a publish request does not
// carry one. Must be called before Publish.
func (client *NtfyClient) WithDefaultPriority(priority string) {
	client.priority = priority
}

func (client *NtfyClient) resolveTopic(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if client.topic != "" {
		return client.topic, nil
	}
	return "", fmt.Errorf("no topic configured and no topic given in the request")
}

func (client *NtfyClient) authorize(req *http.Request) {
	if client.token != "" {
		req.Header.Set("Authorization", "Bearer "+client.token)
	}
}

// Publish sends one notification. The markdown header and the action buttons
// are taken from the request when set there, otherwise derived from the
// message body.
func (client *NtfyClient) Publish(ctx context.Context, request PublishRequest) (*PublishReceipt, error) {
	topic, err := client.resolveTopic(request.Topic)
	if err != nil {
		return nil, err
	}

	markdown := false
	if request.Markdown != nil {
		markdown = *request.Markdown
	} else {
		markdown = HasMarkup(request.Message)
	}

	actions := request.Actions
	if actions == nil {
		actions = ExtractActions(request.Message)
	}

	endpoint, err := url.JoinPath(client.serverURL, topic)
	if err != nil {
		return nil, fmt.Errorf("invalid ntfy endpoint: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(request.Message))
	if err != nil {
		return nil, fmt.Errorf("error creating publish request: %w", err)
	}
	client.authorize(req)

	if request.Title != "" {
		req.Header.Set("X-Title", request.Title)
	}
	priority := request.Priority
	if priority == "" {
		priority = client.priority
	}
	// The server treats a missing priority as the default level already.
	if priority != "" && priority != defaultPriority {
		req.Header.Set("X-Priority", priority)
	}
	if len(request.Tags) > 0 {
		req.Header.Set("X-Tags", strings.Join(request.Tags, ","))
	}
	if request.Delay != "" {
		req.Header.Set("X-Delay", request.Delay)
	}
	if request.Click != "" {
		req.Header.Set("X-Click", request.Click)
	}
	if request.Icon != "" {
		req.Header.Set("X-Icon", request.Icon)
	}
	if request.Email != "" {
		req.Header.Set("X-Email", request.Email)
	}
	if markdown {
		req.Header.Set("X-Markdown", "yes")
	}
	if len(actions) > 0 {
		req.Header.Set("X-Actions", ActionsHeader(actions))
	}

	resp, err := client.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error publishing to topic %s: %w", topic, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ntfy rejected the message: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	// The server echoes the stored message as JSON. The receipt is still
	// valid if the body cannot be decoded, only the id is missing then.
	var published Message
	if err := json.NewDecoder(resp.Body).Decode(&published); err != nil {
		client.logger.Printf("Could not decode publish response: %v", err)
	}

	client.logger.Printf("Published message %s to topic %s (markdown=%v, actions=%d)",
		published.ID, topic, markdown, len(actions))

	return &PublishReceipt{
		ID:       published.ID,
		Topic:    topic,
		Markdown: markdown,
		Actions:  actions,
	}, nil
}

// Fetch polls the server's message cache and returns the matching messages in
// the order the server delivered them, oldest first.
func (client *NtfyClient) Fetch(ctx context.Context, params FetchParams) ([]Message, error) {
	topic, err := client.resolveTopic(params.Topic)
	if err != nil {
		return nil, err
	}

	since := params.Since
	if since == "" {
		since = defaultSince
	}

	endpoint, err := url.JoinPath(client.serverURL, topic, "json")
	if err != nil {
		return nil, fmt.Errorf("invalid ntfy endpoint: %w", err)
	}
	endpoint += "?poll=1&since=" + url.QueryEscape(since)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating fetch request: %w", err)
	}
	client.authorize(req)

	resp, err := client.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching from topic %s: %w", topic, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ntfy fetch failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	// The poll endpoint streams one JSON event per line.
	messages := make([]Message, 0)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var message Message
		if err := json.Unmarshal([]byte(line), &message); err != nil {
			client.logger.Printf("Skipping undecodable event line: %v", err)
			continue
		}
		if message.Event != "message" {
			continue
		}
		if !matchesFetchParams(message, params) {
			continue
		}
		messages = append(messages, message)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading fetch response: %w", err)
	}

	if params.Limit > 0 && len(messages) > params.Limit {
		// Keep the most recent messages
		messages = messages[len(messages)-params.Limit:]
	}

	return messages, nil
}

func matchesFetchParams(message Message, params FetchParams) bool {
	if params.MessageContains != "" &&
		!strings.Contains(strings.ToLower(message.Message), strings.ToLower(params.MessageContains)) {
		return false
	}
	if params.TitleContains != "" &&
		!strings.Contains(strings.ToLower(message.Title), strings.ToLower(params.TitleContains)) {
		return false
	}
	if params.Priority != "" {
		level, ok := priorityLevels[strings.ToLower(params.Priority)]
		// The server omits the priority field for default-priority messages.
		messageLevel := message.Priority
		if messageLevel == 0 {
			messageLevel = priorityLevels[defaultPriority]
		}
		if !ok || messageLevel != level {
			return false
		}
	}
	if params.Tag != "" && !slices.Contains(message.Tags, params.Tag) {
		return false
	}
	return true
}
