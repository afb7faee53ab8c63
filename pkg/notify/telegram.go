// Package notify delivers outbound chat notifications. Delivery is
// best effort: callers log failures and move on, assignments never roll
// back over a missed notification.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Notifier is the outbound message contract consumed by agent roles.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

const telegramDefaultHost = "https://api.telegram.org"

// Telegram sends messages through the Bot API.
type Telegram struct {
	botToken string
	host     string
	client   *http.Client
}

// NewTelegram creates a Telegram notifier. host overrides the default
// API endpoint when non-empty.
func NewTelegram(botToken, host string) *Telegram {
	if host == "" {
		host = telegramDefaultHost
	}
	return &Telegram{
		botToken: botToken,
		host:     host,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify sends one Markdown-formatted message to a chat.
func (t *Telegram) Notify(ctx context.Context, chatID int64, text string) error {
	payload := sendMessageRequest{ChatID: chatID, Text: text, ParseMode: "Markdown"}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.host, t.botToken)
	return t.post(ctx, url, payload)
}

// SetWebhook points the bot's webhook at the given public URL.
// Intended for one-time setup via the CLI.
func (t *Telegram) SetWebhook(ctx context.Context, webhookURL string) error {
	url := fmt.Sprintf("%s/bot%s/setWebhook", t.host, t.botToken)
	return t.post(ctx, url, map[string]string{"url": webhookURL})
}

func (t *Telegram) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var response telegramResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	if !response.OK {
		return fmt.Errorf("telegram API error: %s", response.Description)
	}
	return nil
}
