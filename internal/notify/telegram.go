package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const telegramAPI = "https://api.telegram.org"

// TelegramSender delivers notifications through the Telegram Bot API.
type TelegramSender struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
}

// NewTelegramSender creates a TelegramSender for the given bot token and chat.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		apiBase: telegramAPI,
		token:   token,
		chatID:  chatID,
		client:  newHTTPClient(),
	}
}

// WithAPIBase points the sender at a different Bot API host.
func (t *TelegramSender) WithAPIBase(base string) *TelegramSender {
	t.apiBase = strings.TrimRight(base, "/")
	return t
}

// Send posts "*title*\nmessage" to the chat with Markdown parsing.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     fmt.Sprintf("*%s*\n%s", title, message),
		"parse_mode":               "Markdown",
		"disable_web_page_preview": true,
	}
	if err := postJSON(ctx, t.client, url, payload); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}

// Name returns "telegram".
func (t *TelegramSender) Name() string {
	return "telegram"
}
