package notify

import (
	"context"
	"fmt"
	"net/http"
)

// DiscordSender delivers notifications through a Discord webhook.
type DiscordSender struct {
	webhookURL string
	username   string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for webhookURL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		username:   "emojibot",
		client:     newHTTPClient(),
	}
}

// Send posts "**title**\nmessage" to the webhook. Discord answers 204.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	payload := map[string]string{
		"username": d.username,
		"content":  fmt.Sprintf("**%s**\n%s", title, message),
	}
	if err := postJSON(ctx, d.client, d.webhookURL, payload); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

// Name returns "discord".
func (d *DiscordSender) Name() string {
	return "discord"
}
