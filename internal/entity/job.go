package entity

import (
	"strings"
	"time"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
)

// JobTrigger is one unit of work: a single uploaded document to enrich.
// Delivery is at-least-once; the same trigger may arrive more than once.
type JobTrigger struct {
	JobID     string `json:"job_id"`
	UserID    string `json:"user_id"`
	SourceRef string `json:"source_reference"`
}

// Validate rejects malformed triggers before any processing starts.
func (t JobTrigger) Validate() error {
	if strings.TrimSpace(t.JobID) == "" {
		return common.ValidationErrorf("trigger missing job_id")
	}
	if strings.TrimSpace(t.UserID) == "" {
		return common.ValidationErrorf("trigger missing user_id")
	}
	if strings.TrimSpace(t.SourceRef) == "" {
		return common.ValidationErrorf("trigger missing source_reference")
	}
	return nil
}

// JobRecord is the persisted terminal state of a job, keyed by
// (user_id, job_id). Persisting is an unconditional overwrite so that
// redelivered triggers converge on the same record.
type JobRecord struct {
	UserID               string                         `json:"user_id"`
	JobID                string                         `json:"job_id"`
	Status               constants.JobStatus            `json:"status"`
	Merchant             string                         `json:"merchant,omitempty"`
	PurchaseDate         string                         `json:"purchase_date,omitempty"`
	Subtotal             *float64                       `json:"subtotal,omitempty"`
	Tax                  *float64                       `json:"tax,omitempty"`
	Total                *float64                       `json:"total,omitempty"`
	Currency             string                         `json:"currency,omitempty"`
	Category             string                         `json:"category,omitempty"`
	CategoryConfidence   float32                        `json:"category_confidence,omitempty"`
	CategorizationMethod constants.CategorizationMethod `json:"categorization_method,omitempty"`
	Alerts               []AlertEvent                   `json:"alerts,omitempty"`
	CreatedAt            time.Time                      `json:"created_at"`
	ProcessedAt          time.Time                      `json:"processed_at"`
	Error                string                         `json:"error,omitempty"`
}
