// Package parser converts ordered OCR text fragments into a structured
// receipt. Parsing is pure and deterministic: malformed or missing data
// degrades to absent fields, never to an error.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

const DefaultCurrency = "USD"

// Line items outside this range are treated as OCR noise.
const (
	minItemPrice = 0.0
	maxItemPrice = 10000.0
)

var (
	// Standalone price: the whole line is one currency amount.
	rePrice = regexp.MustCompile(`^\$?(\d+\.\d{2})$`)

	reDigitsOnly  = regexp.MustCompile(`^\d+$`)
	reAddressLine = regexp.MustCompile(`^\d+\s`)
	reDateShaped  = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`)

	reQuantityPrefix  = regexp.MustCompile(`^\d+EA\s*`)
	reUnitPriceSuffix = regexp.MustCompile(`\s*@\s*\d+\.\d{2}/EA$`)

	// Ordered most-specific first: both four-digit-year shapes are tried
	// before the two-digit-year shape, so an ISO date like 2024-01-02 is
	// never bisected into a bogus YY-MM-DD match.
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d{1,2}[/-]\d{1,2}[/-]\d{4})`),
		regexp.MustCompile(`(\d{4}[/-]\d{1,2}[/-]\d{1,2})`),
		regexp.MustCompile(`(\d{1,2}[/-]\d{1,2}[/-]\d{2})`),
		regexp.MustCompile(`(?i)([A-Za-z]{3,9}\s+\d{1,2},?\s+\d{4})`),
		regexp.MustCompile(`(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})\s+\d{1,2}:\d{2}`),
	}

	// Month-first layouts are tried before day-first; time.Parse rejects
	// out-of-range months, so day-first dates fall through correctly.
	dateLayouts = []string{
		"1/2/2006", "1/2/06", "1-2-2006", "1-2-06",
		"2006-1-2", "2006/1/2",
		"2/1/2006", "2/1/06", "2-1-2006", "2-1-06",
		"January 2, 2006", "Jan 2, 2006", "January 2 2006", "Jan 2 2006",
	}

	reSubtotal = regexp.MustCompile(`(?:SUB\s*TOTAL|SUBTOTAL)\s*\$?(\d+\.\d{2})`)
	reTax      = regexp.MustCompile(`(?:TAX|SALES\s*TAX)\s*\$?(\d+\.\d{2})`)
	reTotal    = regexp.MustCompile(`(?:^TOTAL|GRAND\s*TOTAL|AMOUNT\s*DUE)\s*\$?(\d+\.\d{2})`)

	skipKeywords = []string{"TOTAL", "SUBTOTAL", "TAX", "BALANCE", "CHANGE", "CASH", "CREDIT", "DEBIT"}
)

// Parse builds a ParsedReceipt from the provider's ordered fragment list.
// PurchaseDate is left absent when no line carries a date; the display
// fallback is the orchestrator's call, not the parser's.
func Parse(jobID, userID string, fragments []entity.TextFragment) entity.ParsedReceipt {
	lines := extractLines(fragments)

	receipt := entity.ParsedReceipt{
		JobID:    jobID,
		UserID:   userID,
		Merchant: extractMerchant(lines),
		Currency: DefaultCurrency,
		Items:    extractItems(lines),
	}
	receipt.PurchaseDate = extractDate(lines)
	receipt.Subtotal, receipt.Tax, receipt.Total = extractTotals(lines)
	receipt.ReconcileTotals()
	return receipt
}

// extractLines keeps LINE-granularity fragments with non-empty trimmed
// text, preserving provider order (top-to-bottom reading order).
func extractLines(fragments []entity.TextFragment) []string {
	lines := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if f.Granularity != entity.GranularityLine {
			continue
		}
		text := strings.TrimSpace(f.Text)
		if text == "" {
			continue
		}
		lines = append(lines, text)
	}
	return lines
}

// extractMerchant scans the first five lines, discarding anything that
// looks like an address, a date, or mostly digits. Falls back to the very
// first line when nothing survives.
func extractMerchant(lines []string) string {
	if len(lines) == 0 {
		return ""
	}

	candidates := lines
	if len(candidates) > 5 {
		candidates = candidates[:5]
	}

	for _, line := range candidates {
		if digitFraction(line) > 0.5 {
			continue
		}
		if reAddressLine.MatchString(line) {
			continue
		}
		if reDateShaped.MatchString(line) {
			continue
		}
		return line
	}
	return lines[0]
}

func digitFraction(s string) float64 {
	runes := []rune(s)
	if len(runes) == 0 {
		return 0
	}
	digits := 0
	for _, r := range runes {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return float64(digits) / float64(len(runes))
}

// extractDate returns the first date-shaped substring normalized to
// YYYY-MM-DD, the raw match when no layout parses it, or "" when no line
// matches any pattern.
func extractDate(lines []string) string {
	for _, line := range lines {
		for _, pattern := range datePatterns {
			m := pattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			raw := m[1]
			for _, layout := range dateLayouts {
				if t, err := time.Parse(layout, raw); err == nil {
					return t.Format("2006-01-02")
				}
			}
			return raw
		}
	}
	return ""
}

// extractItems pairs standalone price lines with the nearest preceding
// description line, walking back at most three lines.
func extractItems(lines []string) []entity.ReceiptItem {
	var items []entity.ReceiptItem

	for i, line := range lines {
		m := rePrice.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		price, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}

		description := ""
		for j := 1; j <= 3 && i-j >= 0; j++ {
			prev := lines[i-j]
			if rePrice.MatchString(prev) {
				continue
			}
			if containsSkipKeyword(prev) {
				continue
			}
			if len(prev) < 3 || reDigitsOnly.MatchString(prev) {
				continue
			}
			description = prev
			break
		}
		if description == "" || price <= minItemPrice || price >= maxItemPrice {
			continue
		}

		description = reQuantityPrefix.ReplaceAllString(description, "")
		description = reUnitPriceSuffix.ReplaceAllString(description, "")

		total := price
		items = append(items, entity.ReceiptItem{
			Description: description,
			LineTotal:   &total,
		})
	}
	return items
}

func containsSkipKeyword(line string) bool {
	upper := strings.ToUpper(line)
	for _, kw := range skipKeywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

// extractTotals searches all lines case-insensitively for subtotal, tax,
// and total amounts. First match wins per field.
func extractTotals(lines []string) (subtotal, tax, total *float64) {
	for _, line := range lines {
		upper := strings.ToUpper(line)

		if subtotal == nil {
			if m := reSubtotal.FindStringSubmatch(upper); m != nil {
				subtotal = parseAmount(m[1])
			}
		}
		if tax == nil {
			if m := reTax.FindStringSubmatch(upper); m != nil {
				tax = parseAmount(m[1])
			}
		}
		if total == nil {
			if m := reTotal.FindStringSubmatch(upper); m != nil {
				total = parseAmount(m[1])
			}
		}
	}
	return subtotal, tax, total
}

func parseAmount(s string) *float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
