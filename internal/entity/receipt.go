package entity

import (
	"github.com/joseph-ayodele/receipt-pipeline/constants"
)

// Granularity tags a detected text fragment.
type Granularity string

const (
	GranularityLine Granularity = "LINE"
	GranularityWord Granularity = "WORD"
)

// Geometry is the bounding box of a fragment on the source image, in pixels.
type Geometry struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TextFragment is one piece of recognized text from the extraction provider.
// Fragments are ordered top-to-bottom as returned by the provider and are
// never persisted directly; a raw dump is written for audit instead.
type TextFragment struct {
	Granularity Granularity `json:"granularity"`
	Text        string      `json:"text"`
	Geometry    *Geometry   `json:"geometry,omitempty"`
	Confidence  float32     `json:"confidence,omitempty"`
}

// ReceiptItem is an individual line item on a receipt.
type ReceiptItem struct {
	Description        string   `json:"description"`
	Quantity           *float64 `json:"quantity,omitempty"`
	UnitPrice          *float64 `json:"unit_price,omitempty"`
	LineTotal          *float64 `json:"line_total,omitempty"`
	Category           string   `json:"category,omitempty"`
	CategoryConfidence *float32 `json:"category_confidence,omitempty"`
}

// ParsedReceipt is the structured receipt extracted from fragment text.
// Optional fields are absent when the text did not yield them; the only
// defined backfill is ReconcileTotals.
type ParsedReceipt struct {
	JobID          string        `json:"job_id"`
	UserID         string        `json:"user_id"`
	Merchant       string        `json:"merchant,omitempty"`
	PurchaseDate   string        `json:"purchase_date,omitempty"` // YYYY-MM-DD, or raw text when unparseable
	Subtotal       *float64      `json:"subtotal,omitempty"`
	Tax            *float64      `json:"tax,omitempty"`
	Total          *float64      `json:"total,omitempty"`
	Currency       string        `json:"currency"`
	Items          []ReceiptItem `json:"items"`
	RawArtifactRef string        `json:"raw_artifact_ref,omitempty"`
}

// ReconcileTotals backfills total from item line totals when the text had no
// total line. Subtotal defaults to total and tax to zero when also absent.
func (r *ParsedReceipt) ReconcileTotals() {
	if r.Total != nil || len(r.Items) == 0 {
		return
	}
	var sum float64
	for _, it := range r.Items {
		if it.LineTotal != nil {
			sum += *it.LineTotal
		}
	}
	r.Total = &sum
	if r.Subtotal == nil {
		sub := sum
		r.Subtotal = &sub
	}
	if r.Tax == nil {
		zero := 0.0
		r.Tax = &zero
	}
}

// ApplyCategory copies one category onto the receipt's items. The pipeline
// categorizes whole receipts; per-item scoring is a deliberate non-feature.
func (r *ParsedReceipt) ApplyCategory(category constants.Category, confidence float32) {
	for i := range r.Items {
		conf := confidence
		r.Items[i].Category = string(category)
		r.Items[i].CategoryConfidence = &conf
	}
}

// AlertEvent is an anomaly raised by the detector. Immutable once produced.
type AlertEvent struct {
	Type    constants.AlertType `json:"type"`
	Message string              `json:"message"`
}

// Categorization is the outcome of the categorization stage.
type Categorization struct {
	Category   constants.Category             `json:"category"`
	Confidence float32                        `json:"confidence"`
	Method     constants.CategorizationMethod `json:"method"`
}

// PipelineResult is the terminal output of one job execution.
type PipelineResult struct {
	Receipt        ParsedReceipt  `json:"receipt"`
	Categorization Categorization `json:"categorization"`
	Alerts         []AlertEvent   `json:"alerts"`
}
