package categorize

import (
	"context"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
)

// MaxPromptItems caps how many item descriptions a remote request carries.
const MaxPromptItems = 10

// CoercedConfidence is assigned when a remote label falls outside the
// taxonomy and is coerced to Other.
const CoercedConfidence = 0.3

// Request carries the classification inputs for one receipt.
type Request struct {
	Merchant         string
	ItemDescriptions []string
}

// Result is one strategy's verdict. Category is always a taxonomy member.
type Result struct {
	Category   constants.Category
	Confidence float32
	Reasoning  string
	Method     constants.CategorizationMethod
}

// Strategy assigns a spending category to a receipt. Remote strategies
// surface transport and schema failures as typed errors; the orchestrator
// decides whether to fall back. Strategies never mutate parse data.
type Strategy interface {
	Name() string
	Categorize(ctx context.Context, req Request) (Result, error)
}

// resolveLabel validates a remote label against the closed taxonomy,
// coercing unknowns to Other with a fixed low confidence.
func resolveLabel(label string, confidence float32) (constants.Category, float32) {
	cat, ok := constants.Canonicalize(label)
	if !ok {
		return constants.Other, CoercedConfidence
	}
	return cat, clampConfidence(confidence)
}

func clampConfidence(c float32) float32 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// promptItems trims the description list to the remote request cap.
func promptItems(descriptions []string) []string {
	if len(descriptions) > MaxPromptItems {
		return descriptions[:MaxPromptItems]
	}
	return descriptions
}
