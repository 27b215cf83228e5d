package constants

// AlertType identifies an anomaly class raised by the detector.
type AlertType string

const (
	AlertHighTotal        AlertType = "HIGH_TOTAL"
	AlertPossibleError    AlertType = "POSSIBLE_ERROR"
	AlertDuplicateReceipt AlertType = "DUPLICATE_RECEIPT"
)
