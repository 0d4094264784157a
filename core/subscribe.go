package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Subscriber streams live messages for one topic over the ntfy websocket
// endpoint. Each Listen call owns its own connection; dropped connections are
// redialed with capped exponential backoff until the context is cancelled.
type Subscriber struct {
	serverURL string
	topic     string
	token     string
	logger    *log.Logger
}

func NewSubscriber(serverURL string, topic string, token string, logger *log.Logger) *Subscriber {
	return &Subscriber{
		serverURL: strings.TrimRight(serverURL, "/"),
		topic:     topic,
		token:     token,
		logger:    logger,
	}
}

// Listen starts the subscription and returns the message channel. The channel
// is closed after the context is cancelled.
func (sub *Subscriber) Listen(ctx context.Context) (<-chan Message, error) {
	if sub.topic == "" {
		return nil, fmt.Errorf("no topic configured")
	}
	if _, err := sub.wsEndpoint(); err != nil {
		return nil, err
	}

	messages := make(chan Message)
	go sub.run(ctx, messages)
	return messages, nil
}

func (sub *Subscriber) run(ctx context.Context, messages chan<- Message) {
	defer close(messages)

	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		// Short connection id to correlate log lines across redials
		connID := uuid.NewString()[:8]

		started := time.Now()
		err := sub.stream(ctx, connID, messages)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			sub.logger.Printf("[%s] subscription dropped: %v", connID, err)
		}

		// A connection that lived for a while earns a fresh backoff.
		if time.Since(started) > maxBackoff {
			backoff = initialBackoff
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (sub *Subscriber) wsEndpoint() (string, error) {
	parsed, err := url.Parse(sub.serverURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid ntfy server url %q", sub.serverURL)
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q in ntfy server url", parsed.Scheme)
	}
	joined, err := url.JoinPath(parsed.String(), sub.topic, "ws")
	if err != nil {
		return "", fmt.Errorf("invalid ntfy endpoint: %w", err)
	}
	return joined, nil
}

func (sub *Subscriber) stream(ctx context.Context, connID string, messages chan<- Message) error {
	endpoint, err := sub.wsEndpoint()
	if err != nil {
		return err
	}

	header := http.Header{}
	if sub.token != "" {
		header.Set("Authorization", "Bearer "+sub.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial failed with status %s: %w", resp.Status, err)
		}
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	sub.logger.Printf("[%s] subscribed to topic %s", connID, sub.topic)

	// Closing the connection is the only way to unblock ReadMessage on
	// context cancellation.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read failed: %w", err)
		}

		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			sub.logger.Printf("[%s] skipping undecodable event: %v", connID, err)
			continue
		}
		// The stream also carries open and keepalive events
		if message.Event != "message" {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case messages <- message:
		}
	}
}
