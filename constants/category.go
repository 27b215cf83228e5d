package constants

import (
	"strings"
)

type Category string

const (
	Groceries      Category = "Groceries"
	Restaurants    Category = "Restaurants"
	Entertainment  Category = "Entertainment"
	Travel         Category = "Travel"
	Transportation Category = "Transportation"
	Gas            Category = "Gas"
	Shopping       Category = "Shopping"
	Health         Category = "Health"
	Utilities      Category = "Utilities"
	Subscriptions  Category = "Subscriptions"
	Education      Category = "Education"
	Home           Category = "Home"
	PersonalCare   Category = "Personal Care"
	Insurance      Category = "Insurance"
	Other          Category = "Other"
)

var allCategories = []Category{
	Groceries,
	Restaurants,
	Entertainment,
	Travel,
	Transportation,
	Gas,
	Shopping,
	Health,
	Utilities,
	Subscriptions,
	Education,
	Home,
	PersonalCare,
	Insurance,
	Other,
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// Canonicalize maps a free-form label onto the closed taxonomy.
// Returns (Other, false) when the label is unrecognized.
func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return Other, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]Category{
		"grocery":       Groceries,
		"supermarket":   Groceries,
		"dining":        Restaurants,
		"restaurant":    Restaurants,
		"food":          Restaurants,
		"fuel":          Gas,
		"gasoline":      Gas,
		"rideshare":     Transportation,
		"transit":       Transportation,
		"medical":       Health,
		"pharmacy":      Health,
		"subscription":  Subscriptions,
		"streaming":     Subscriptions,
		"retail":        Shopping,
		"clothing":      Shopping,
		"personal care": PersonalCare,
		"personalcare":  PersonalCare,
		"beauty":        PersonalCare,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	// check if it matches any category string
	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}

	return Other, false
}
