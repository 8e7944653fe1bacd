package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/baophamtd/reolink-automation/config"
	"github.com/baophamtd/reolink-automation/logger"
)

var _ Notifier = (*TelegramNotifier)(nil)

// TelegramNotifier sends run messages to a Telegram chat via the Bot API.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    logger.Logger
}

// NewTelegramNotifier creates a Telegram notifier. Construction validates the
// token against the Bot API.
func NewTelegramNotifier(cfg *config.NotifyConfig, log logger.Logger) (*TelegramNotifier, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("telegram is not configured")
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramNotifier{
		bot:    bot,
		chatID: cfg.TelegramChatID,
		log:    log,
	}, nil
}

// Notify sends the message to the configured chat. Errors are reported to the
// caller for logging but carry no other consequence.
func (t *TelegramNotifier) Notify(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, message)); err != nil {
		t.log.Warn("failed to send telegram message: %v", err)
		return err
	}
	t.log.Debug("telegram notification sent")
	return nil
}
