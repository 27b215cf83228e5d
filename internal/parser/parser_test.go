package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

func lineFragments(lines ...string) []entity.TextFragment {
	frags := make([]entity.TextFragment, 0, len(lines))
	for _, l := range lines {
		frags = append(frags, entity.TextFragment{Granularity: entity.GranularityLine, Text: l})
	}
	return frags
}

func TestParseFullReceipt(t *testing.T) {
	frags := lineFragments(
		"Walmart",
		"123 Main St",
		"01/02/2024",
		"Milk",
		"3.50",
		"Bread",
		"2.20",
		"SUBTOTAL 5.70",
		"TAX 0.40",
		"TOTAL 6.10",
	)

	r := Parse("job-1", "user-1", frags)

	assert.Equal(t, "Walmart", r.Merchant)
	assert.Equal(t, "2024-01-02", r.PurchaseDate)
	require.Len(t, r.Items, 2)
	assert.Equal(t, "Milk", r.Items[0].Description)
	assert.InDelta(t, 3.50, *r.Items[0].LineTotal, 0.001)
	assert.Equal(t, "Bread", r.Items[1].Description)
	assert.InDelta(t, 2.20, *r.Items[1].LineTotal, 0.001)
	require.NotNil(t, r.Subtotal)
	require.NotNil(t, r.Tax)
	require.NotNil(t, r.Total)
	assert.InDelta(t, 5.70, *r.Subtotal, 0.001)
	assert.InDelta(t, 0.40, *r.Tax, 0.001)
	assert.InDelta(t, 6.10, *r.Total, 0.001)
	assert.Equal(t, DefaultCurrency, r.Currency)
}

func TestParseEmptyFragments(t *testing.T) {
	r := Parse("job-2", "user-2", nil)

	assert.Empty(t, r.Merchant)
	assert.Empty(t, r.PurchaseDate, "parser reports absent dates; display fallback is applied downstream")
	assert.Empty(t, r.Items)
	assert.Nil(t, r.Subtotal)
	assert.Nil(t, r.Tax)
	assert.Nil(t, r.Total)
}

func TestParseIgnoresWordFragments(t *testing.T) {
	frags := []entity.TextFragment{
		{Granularity: entity.GranularityWord, Text: "Walmart"},
		{Granularity: entity.GranularityLine, Text: "Target"},
		{Granularity: entity.GranularityLine, Text: "   "},
	}

	r := Parse("j", "u", frags)
	assert.Equal(t, "Target", r.Merchant)
}

func TestMerchantSkipsAddressAndDateLines(t *testing.T) {
	r := Parse("j", "u", lineFragments(
		"12/24/2023",
		"456 Oak Avenue",
		"99801",
		"Trader Joe's",
	))
	assert.Equal(t, "Trader Joe's", r.Merchant)
}

func TestMerchantFallsBackToFirstLine(t *testing.T) {
	r := Parse("j", "u", lineFragments("123 Storefront Rd", "01/01/2024"))
	assert.Equal(t, "123 Storefront Rd", r.Merchant)
}

func TestDateFormats(t *testing.T) {
	cases := []struct {
		line string
		want string
	}{
		{"01/02/2024", "2024-01-02"},
		{"1/2/24", "2024-01-02"},
		{"2024-01-02", "2024-01-02"}, // ISO must not be bisected into a YY-MM-DD match
		{"2024/01/02", "2024-01-02"},
		{"January 2, 2024", "2024-01-02"},
		{"Jan 2 2024", "2024-01-02"},
		{"25/12/2023", "2023-12-25"}, // day-first falls through month-first layouts
		{"01/02/2024 13:45", "2024-01-02"},
	}
	for _, tc := range cases {
		r := Parse("j", "u", lineFragments("Some Shop", tc.line))
		assert.Equal(t, tc.want, r.PurchaseDate, "line %q", tc.line)
	}
}

func TestDateAbsentWhenNoMatch(t *testing.T) {
	r := Parse("j", "u", lineFragments("Corner Shop", "no dates here"))
	assert.Empty(t, r.PurchaseDate)
}

func TestItemDescriptionCleanup(t *testing.T) {
	r := Parse("j", "u", lineFragments(
		"Costco",
		"2EA Paper Towels @ 4.99/EA",
		"9.98",
	))
	require.Len(t, r.Items, 1)
	assert.Equal(t, "Paper Towels", r.Items[0].Description)
}

func TestItemPriceBounds(t *testing.T) {
	r := Parse("j", "u", lineFragments(
		"Dealer",
		"Very Expensive Thing",
		"10000.00",
		"Free Thing",
		"0.00",
		"Normal Thing",
		"9999.99",
	))
	require.Len(t, r.Items, 1)
	assert.Equal(t, "Normal Thing", r.Items[0].Description)
	for _, it := range r.Items {
		require.NotNil(t, it.LineTotal)
		assert.Greater(t, *it.LineTotal, 0.0)
		assert.Less(t, *it.LineTotal, 10000.0)
	}
}

func TestItemSkipsKeywordAndShortDescriptions(t *testing.T) {
	r := Parse("j", "u", lineFragments(
		"Shop",
		"SUBTOTAL",
		"42",
		"Sandwich Combo",
		"8.75",
	))
	require.Len(t, r.Items, 1)
	assert.Equal(t, "Sandwich Combo", r.Items[0].Description)
}

func TestReconcileTotalsFromItems(t *testing.T) {
	r := Parse("j", "u", lineFragments(
		"Bakery",
		"Croissant",
		"2.50",
		"Baguette",
		"3.00",
	))
	require.NotNil(t, r.Total)
	assert.InDelta(t, 5.50, *r.Total, 0.001)
	require.NotNil(t, r.Subtotal)
	assert.InDelta(t, 5.50, *r.Subtotal, 0.001)
	require.NotNil(t, r.Tax)
	assert.InDelta(t, 0.0, *r.Tax, 0.001)
}

func TestTotalsFirstMatchWins(t *testing.T) {
	r := Parse("j", "u", lineFragments(
		"Store",
		"TOTAL 10.00",
		"TOTAL 99.99",
	))
	require.NotNil(t, r.Total)
	assert.InDelta(t, 10.00, *r.Total, 0.001)
}
