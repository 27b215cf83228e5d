package anomaly

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

// Snapshot is the slice of a receipt retained for duplicate reporting.
type Snapshot struct {
	Merchant     string    `json:"merchant"`
	PurchaseDate string    `json:"purchase_date"`
	Total        *float64  `json:"total,omitempty"`
	ItemCount    int       `json:"item_count"`
	SeenAt       time.Time `json:"seen_at"`
}

// Fingerprint derives the duplicate-detection key from a receipt's
// identity: merchant, date, total, item count. Absent fields use fixed
// placeholders so two receipts missing the same field still collide.
func Fingerprint(r entity.ParsedReceipt) string {
	merchant := r.Merchant
	if merchant == "" {
		merchant = "UNKNOWN"
	}
	date := r.PurchaseDate
	if date == "" {
		date = "NO_DATE"
	}
	total := "0.00"
	if r.Total != nil {
		total = fmt.Sprintf("%.2f", *r.Total)
	}

	key := strings.Join([]string{merchant, date, total, fmt.Sprint(len(r.Items))}, "|")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func snapshotOf(r entity.ParsedReceipt, now time.Time) Snapshot {
	return Snapshot{
		Merchant:     r.Merchant,
		PurchaseDate: r.PurchaseDate,
		Total:        r.Total,
		ItemCount:    len(r.Items),
		SeenAt:       now,
	}
}
