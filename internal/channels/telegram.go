package channels

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/coinsentry/coinsentry/internal/delivery"
	"github.com/coinsentry/coinsentry/internal/types"
)

// telegramAPI is the slice of the bot client the channel needs. Narrowed for
// test injection.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram delivers notifications to one chat.
type Telegram struct {
	logger *zap.Logger
	api    telegramAPI
	chatID int64
}

// NewTelegram builds the channel. Empty credentials yield an unconfigured
// channel, not an error; the router records it as not_configured.
func NewTelegram(logger *zap.Logger, botToken string, chatID int64) (*Telegram, error) {
	t := &Telegram{logger: logger.Named("telegram"), chatID: chatID}
	if botToken == "" || chatID == 0 {
		return t, nil
	}
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	t.api = api
	return t, nil
}

func (t *Telegram) Name() string       { return "telegram" }
func (t *Telegram) IsConfigured() bool { return t.api != nil }

func (t *Telegram) Send(ctx context.Context, n types.Notification) error {
	if err := ctx.Err(); err != nil {
		return delivery.Retryable(t.Name(), err)
	}

	msg := tgbotapi.NewMessage(t.chatID, renderText(n))
	if _, err := t.api.Send(msg); err != nil {
		if isTelegramPermanent(err) {
			return delivery.Permanent(t.Name(), err)
		}
		return delivery.Retryable(t.Name(), err)
	}
	return nil
}

// isTelegramPermanent recognizes API rejections that another attempt cannot
// fix: bad token, unknown chat, malformed request.
func isTelegramPermanent(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"unauthorized", "chat not found", "bad request", "forbidden"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// renderText is the shared plain-text body used by telegram and email.
func renderText(n types.Notification) string {
	var b strings.Builder
	b.WriteString(n.Summary())
	if url := n.Mention.Payload.URL; url != "" {
		b.WriteString("\n")
		b.WriteString(url)
	}
	if n.Analysis.Degraded {
		b.WriteString("\nanalysis degraded: scores are neutral placeholders")
	}
	return b.String()
}
