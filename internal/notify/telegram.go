// Package notify sends one-off operator notifications.
package notify

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/llmrelay/llmrelay/internal/config"
)

// Notifier delivers operator alerts. A zero-value or disabled Notifier
// drops everything silently.
type Notifier struct {
	cfg config.TelegramConfig
}

// New creates a Notifier from configuration.
func New(cfg config.TelegramConfig) *Notifier {
	return &Notifier{cfg: cfg}
}

// Send delivers a Markdown message to the configured chat. Delivery is
// best-effort: failures are swallowed, alerts must never affect relaying.
func (n *Notifier) Send(text string) {
	if n == nil || !n.cfg.Enabled {
		return
	}
	Notify(n.cfg.BotToken, n.cfg.ChatID, text)
}

// Notify sends a one-off message without requiring a running bot instance.
func Notify(token string, chatID int64, text string) {
	token = strings.TrimSpace(token)
	if token == "" || chatID == 0 || strings.TrimSpace(text) == "" {
		return
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	_, _ = bot.Send(msg)
}
