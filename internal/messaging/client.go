// Package messaging delivers rendered notifications to group chat webhooks.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"slamonitor_backend/platform/config"
	"slamonitor_backend/platform/logger"
)

// Client posts messages to the chat webhook endpoint. Each organization is
// routed to its own channel key; escalations go to the ops channel.
type Client struct {
	webhookURL  string
	channelKeys map[string]string
	defaultKey  string
	opsKey      string
	http        *http.Client
	log         *logger.Logger
}

type webhookRequest struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

type webhookText struct {
	Content string `json:"content"`
}

func NewClient(cfg config.MessagingConfig, log *logger.Logger) *Client {
	if cfg.GetChatWebhookURL() == "" {
		return nil
	}

	return &Client{
		webhookURL:  strings.TrimRight(cfg.GetChatWebhookURL(), "/"),
		channelKeys: cfg.GetChatChannelKeys(),
		defaultKey:  cfg.GetChatDefaultChannelKey(),
		opsKey:      cfg.GetOpsChannelKey(),
		http:        &http.Client{Timeout: 10 * time.Second},
		log:         log,
	}
}

// Send posts a message to the channel for the organization. With escalation
// set, the ops channel is used regardless of organization.
func (c *Client) Send(ctx context.Context, organization, message string, escalation bool) error {
	if c == nil {
		return nil
	}

	key := c.channelKey(organization, escalation)
	if key == "" {
		return fmt.Errorf("no chat channel configured for organization %q", organization)
	}

	body, err := json.Marshal(webhookRequest{
		MsgType: "text",
		Text:    webhookText{Content: message},
	})
	if err != nil {
		return fmt.Errorf("marshal chat payload: %w", err)
	}

	url := fmt.Sprintf("%s?key=%s", c.webhookURL, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("chat webhook request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chat webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("chat message sent", "organization", organization, "escalation", escalation)
	return nil
}

// Configured reports whether a message for the organization would have a
// channel to land on.
func (c *Client) Configured(organization string) bool {
	if c == nil {
		return false
	}
	return c.channelKey(organization, false) != ""
}

func (c *Client) channelKey(organization string, escalation bool) string {
	if escalation && c.opsKey != "" {
		return c.opsKey
	}
	if key, ok := c.channelKeys[organization]; ok && key != "" {
		return key
	}
	return c.defaultKey
}
