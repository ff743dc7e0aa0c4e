package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier sends the "balance topped up" message through the bot the user paid from.
type Notifier struct {
	api *tgbotapi.BotAPI
	log *slog.Logger
}

// NewNotifier authenticates the bot token against endpoint (tgbotapi.APIEndpoint in production).
func NewNotifier(token, endpoint string, timeout time.Duration, log *slog.Logger) (*Notifier, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	log.Info("telegram notifier ready", "bot", api.Self.UserName)
	return &Notifier{api: api, log: log}, nil
}

func (n *Notifier) NotifyCredited(ctx context.Context, userID int64, lang string, credits, balance int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(userID, CreditedText(lang, credits, balance))
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send credit message: %w", err)
	}
	n.log.Debug("credit notification sent", "user_id", userID)
	return nil
}

// CreditedText renders the top-up message in the user's language, English by default.
func CreditedText(lang string, credits, balance int) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "ru":
		return fmt.Sprintf("✅ Оплата получена! Начислено песен: %d.\nТекущий баланс: %d.", credits, balance)
	default:
		return fmt.Sprintf("✅ Payment received! %d %s added.\nCurrent balance: %d.", credits, plural(credits, "song", "songs"), balance)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
