package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Mantene/tdf-alerts/internal/config"
)

// telegramChannel delivers alerts to a single chat through a bot.
type telegramChannel struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

func newTelegramChannel(cfg config.TelegramConfig, logger *slog.Logger) (*telegramChannel, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &telegramChannel{api: api, chatID: cfg.ChatID, logger: logger}, nil
}

func (*telegramChannel) Name() string { return "telegram" }

func (c *telegramChannel) Send(ctx context.Context, _, body string) error {
	msg := tgbotapi.NewMessage(c.chatID, body)
	msg.DisableWebPagePreview = true

	err := retry.Do(
		func() error {
			if _, sendErr := c.api.Send(msg); sendErr != nil {
				return fmt.Errorf("telegram send: %w", sendErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			c.logger.Info("Retrying telegram send after error", "attempt", n, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("after retries: %w", err)
	}

	c.logger.Info("Telegram message sent", "chat_id", c.chatID)
	return nil
}
