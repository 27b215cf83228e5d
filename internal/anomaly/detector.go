// Package anomaly evaluates parsed receipts against independent anomaly
// rules: high value, arithmetic inconsistency, duplicate submission.
package anomaly

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

const (
	DefaultHighTotalThreshold = 200.0
	totalConsistencyTolerance = 0.05 // 5% of total
)

// Detector runs the three anomaly checks in a fixed order. Checks are
// independent: every rule runs regardless of the others' outcomes. The
// duplicate cache is an injected capability, so the detector itself stays
// deterministic given the store's answers.
type Detector struct {
	threshold float64
	store     FingerprintStore
	logger    *slog.Logger
	now       func() time.Time
}

func NewDetector(threshold float64, store FingerprintStore, logger *slog.Logger) *Detector {
	if threshold <= 0 {
		threshold = DefaultHighTotalThreshold
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		threshold: threshold,
		store:     store,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Detect produces zero or more alerts for a receipt. The fingerprint store
// is a best-effort signal: a store failure logs and skips the duplicate
// rule rather than failing the job.
func (d *Detector) Detect(ctx context.Context, r entity.ParsedReceipt) []entity.AlertEvent {
	var alerts []entity.AlertEvent

	if a := d.checkHighTotal(r); a != nil {
		alerts = append(alerts, *a)
	}
	if a := d.checkTotalConsistency(r); a != nil {
		alerts = append(alerts, *a)
	}
	if a := d.checkDuplicate(ctx, r); a != nil {
		alerts = append(alerts, *a)
	}

	if len(alerts) > 0 {
		d.logger.Info("anomaly.detected", "job_id", r.JobID, "alerts", len(alerts))
	}
	return alerts
}

func (d *Detector) checkHighTotal(r entity.ParsedReceipt) *entity.AlertEvent {
	if r.Total == nil || *r.Total <= d.threshold {
		return nil
	}
	d.logger.Warn("anomaly.high_total", "job_id", r.JobID, "total", *r.Total, "threshold", d.threshold)
	return &entity.AlertEvent{
		Type:    constants.AlertHighTotal,
		Message: fmt.Sprintf("Receipt total $%.2f exceeds threshold of $%.2f", *r.Total, d.threshold),
	}
}

func (d *Detector) checkTotalConsistency(r entity.ParsedReceipt) *entity.AlertEvent {
	if r.Subtotal == nil || r.Tax == nil || r.Total == nil {
		return nil
	}

	expected := *r.Subtotal + *r.Tax
	difference := expected - *r.Total
	if difference < 0 {
		difference = -difference
	}
	tolerance := *r.Total * totalConsistencyTolerance
	if difference <= tolerance {
		return nil
	}

	d.logger.Warn("anomaly.total_inconsistency",
		"job_id", r.JobID,
		"subtotal", *r.Subtotal, "tax", *r.Tax, "total", *r.Total,
		"difference", difference,
	)
	return &entity.AlertEvent{
		Type: constants.AlertPossibleError,
		Message: fmt.Sprintf(
			"Subtotal ($%.2f) + Tax ($%.2f) = $%.2f, but receipt shows total of $%.2f. Difference: $%.2f",
			*r.Subtotal, *r.Tax, expected, *r.Total, difference,
		),
	}
}

func (d *Detector) checkDuplicate(ctx context.Context, r entity.ParsedReceipt) *entity.AlertEvent {
	fp := Fingerprint(r)

	prev, seen, err := d.store.CheckAndRecord(ctx, fp, snapshotOf(r, d.now()))
	if err != nil {
		d.logger.Warn("anomaly.fingerprint_store_error", "job_id", r.JobID, "error", err)
		return nil
	}
	if !seen {
		return nil
	}

	prevTotal := 0.0
	if prev.Total != nil {
		prevTotal = *prev.Total
	}
	d.logger.Warn("anomaly.duplicate_receipt",
		"job_id", r.JobID,
		"merchant", r.Merchant, "date", r.PurchaseDate,
	)
	return &entity.AlertEvent{
		Type: constants.AlertDuplicateReceipt,
		Message: fmt.Sprintf(
			"This receipt appears to be a duplicate. Previous submission: %s on %s for $%.2f",
			orPlaceholder(prev.Merchant, "UNKNOWN"), orPlaceholder(prev.PurchaseDate, "NO_DATE"), prevTotal,
		),
	}
}

func orPlaceholder(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}
