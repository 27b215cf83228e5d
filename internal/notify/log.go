package notify

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

// LogNotifier writes alert summaries to the structured log. Used when no
// external channel is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, rec *entity.JobRecord) error {
	n.logger.Warn("notify.alerts",
		"job_id", rec.JobID,
		"user_id", rec.UserID,
		"merchant", rec.Merchant,
		"alerts", len(rec.Alerts),
		"message", FormatAlertMessage(rec),
	)
	return nil
}
