package notify

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

// FormatAlertMessage renders the human-readable alert summary sent through
// every notifier channel.
func FormatAlertMessage(rec *entity.JobRecord) string {
	var b strings.Builder

	b.WriteString("Receipt alert\n")
	fmt.Fprintf(&b, "Job: %s\n", rec.JobID)
	fmt.Fprintf(&b, "Merchant: %s\n", orUnknown(rec.Merchant))
	if rec.PurchaseDate != "" {
		fmt.Fprintf(&b, "Date: %s\n", rec.PurchaseDate)
	}
	if rec.Total != nil {
		fmt.Fprintf(&b, "Total: $%.2f\n", *rec.Total)
	}

	b.WriteString("\nAlerts:\n")
	for _, a := range rec.Alerts {
		fmt.Fprintf(&b, "- [%s] %s\n", a.Type, a.Message)
	}
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}
