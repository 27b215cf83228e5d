package notify

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

// TelegramNotifier pushes alert summaries to a Telegram chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

func NewTelegramNotifier(token string, chatID int64, logger *slog.Logger) (*TelegramNotifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, common.NotificationError(err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID, logger: logger}, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, rec *entity.JobRecord) error {
	if err := ctx.Err(); err != nil {
		return common.NotificationError(err)
	}

	msg := tgbotapi.NewMessage(n.chatID, FormatAlertMessage(rec))
	if _, err := n.bot.Send(msg); err != nil {
		return common.NotificationError(err)
	}
	n.logger.Info("notify.telegram.sent", "job_id", rec.JobID, "alerts", len(rec.Alerts))
	return nil
}
