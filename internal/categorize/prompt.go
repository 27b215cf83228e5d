package categorize

import (
	"strings"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
)

// buildSystemPrompt composes the classification instructions with the
// closed taxonomy and strict output formatting rules.
func buildSystemPrompt() string {
	parts := []string{
		"You are a spending categorizer for receipts. Return ONLY JSON that matches the provided JSON Schema.",
		"You MUST include a 'category' and it MUST be exactly one of the allowed enum. " +
			"If uncertain, choose 'Other'. Allowed categories (enum): " +
			strings.Join(constants.AsStringSlice(), ", ") + ".",
		"Include a 'confidence' between 0 and 1 reflecting how sure you are.",
		"Include a short 'reasoning' (one sentence).",
		"Never output null. Do not wrap the JSON in markdown fences.",
	}
	return strings.Join(parts, " ")
}

// buildUserPrompt packages the merchant name and item descriptions.
func buildUserPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Merchant: ")
	if strings.TrimSpace(req.Merchant) != "" {
		b.WriteString(req.Merchant)
	} else {
		b.WriteString("Unknown")
	}
	b.WriteString("\nItems: ")
	items := promptItems(req.ItemDescriptions)
	if len(items) > 0 {
		b.WriteString(strings.Join(items, ", "))
	} else {
		b.WriteString("No items")
	}
	return b.String()
}
