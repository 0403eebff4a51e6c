package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// WebhookConfig configures the chat gateway.
type WebhookConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// WebhookChat posts chat messages to an HTTP gateway as JSON.
type WebhookChat struct {
	url    string
	token  string
	client *http.Client
}

// NewWebhookChat returns a chat sender for cfg.
func NewWebhookChat(cfg WebhookConfig) *WebhookChat {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebhookChat{
		url:   cfg.URL,
		token: cfg.Token,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatMessage struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

func (c *WebhookChat) SendChat(ctx context.Context, dialing, body string) error {
	if c.url == "" {
		return fmt.Errorf("chat: %w", ErrNotConfigured)
	}
	if dialing == "" {
		return ErrNoRecipient
	}

	payload, err := json.Marshal(chatMessage{Phone: dialing, Message: body})
	if err != nil {
		return fmt.Errorf("failed to marshal chat message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("chat gateway returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
