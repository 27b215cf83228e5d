package categorize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
)

// KeywordRule maps lowercase substrings to a taxonomy category.
type KeywordRule struct {
	Category constants.Category `yaml:"category"`
	Keywords []string           `yaml:"keywords"`
}

// RuleBasedStrategy is the deterministic fallback: merchant-name matching
// first, then item-description matching. It never fails.
type RuleBasedStrategy struct {
	rules []KeywordRule
	log   *slog.Logger
}

const (
	merchantMatchConfidence = 0.7
	itemMatchConfidence     = 0.5
	noMatchConfidence       = CoercedConfidence
)

func NewRuleBasedStrategy(rules []KeywordRule, logger *slog.Logger) *RuleBasedStrategy {
	if len(rules) == 0 {
		rules = defaultRules
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleBasedStrategy{rules: rules, log: logger}
}

func (s *RuleBasedStrategy) Name() string { return "rule-based" }

func (s *RuleBasedStrategy) Categorize(_ context.Context, req Request) (Result, error) {
	merchant := strings.ToLower(req.Merchant)
	if merchant != "" {
		for _, rule := range s.rules {
			for _, kw := range rule.Keywords {
				if strings.Contains(merchant, kw) {
					return Result{
						Category:   rule.Category,
						Confidence: merchantMatchConfidence,
						Reasoning:  "merchant name matched keyword " + kw,
						Method:     constants.MethodRuleBased,
					}, nil
				}
			}
		}
	}

	// Vote across item descriptions; the category with the most keyword
	// hits wins, earlier rules break ties.
	bestCategory := constants.Other
	bestHits := 0
	for _, rule := range s.rules {
		hits := 0
		for _, desc := range req.ItemDescriptions {
			lower := strings.ToLower(desc)
			for _, kw := range rule.Keywords {
				if strings.Contains(lower, kw) {
					hits++
					break
				}
			}
		}
		if hits > bestHits {
			bestHits = hits
			bestCategory = rule.Category
		}
	}
	if bestHits > 0 {
		return Result{
			Category:   bestCategory,
			Confidence: itemMatchConfidence,
			Reasoning:  fmt.Sprintf("%d item description(s) matched", bestHits),
			Method:     constants.MethodRuleBased,
		}, nil
	}

	return Result{
		Category:   constants.Other,
		Confidence: noMatchConfidence,
		Reasoning:  "no keyword matched",
		Method:     constants.MethodRuleBased,
	}, nil
}

// LoadRules reads a keyword-rule override file. Unknown category labels
// are rejected so typos don't silently bucket everything as Other.
func LoadRules(path string) ([]KeywordRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var doc struct {
		Rules []KeywordRule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	for i, rule := range doc.Rules {
		canon, ok := constants.Canonicalize(string(rule.Category))
		if !ok {
			return nil, fmt.Errorf("rule %d: unknown category %q", i, rule.Category)
		}
		doc.Rules[i].Category = canon
		for j, kw := range rule.Keywords {
			doc.Rules[i].Keywords[j] = strings.ToLower(strings.TrimSpace(kw))
		}
	}
	return doc.Rules, nil
}

var defaultRules = []KeywordRule{
	{Category: constants.Groceries, Keywords: []string{
		"walmart", "kroger", "safeway", "aldi", "trader joe", "whole foods",
		"grocery", "market", "milk", "bread", "eggs", "produce",
	}},
	{Category: constants.Restaurants, Keywords: []string{
		"mcdonald", "starbucks", "chipotle", "restaurant", "cafe", "diner",
		"pizza", "burger", "taco", "grill", "sushi",
	}},
	{Category: constants.Gas, Keywords: []string{
		"shell", "chevron", "exxon", "mobil", "bp ", "texaco", "fuel", "unleaded",
	}},
	{Category: constants.Transportation, Keywords: []string{
		"uber", "lyft", "metro", "transit", "parking", "toll",
	}},
	{Category: constants.Travel, Keywords: []string{
		"airline", "airways", "hotel", "hilton", "marriott", "airbnb", "hostel",
	}},
	{Category: constants.Health, Keywords: []string{
		"cvs", "walgreens", "pharmacy", "clinic", "dental", "rx ", "prescription",
	}},
	{Category: constants.Entertainment, Keywords: []string{
		"cinema", "theater", "theatre", "concert", "ticketmaster", "arcade",
	}},
	{Category: constants.Subscriptions, Keywords: []string{
		"netflix", "spotify", "hulu", "subscription", "membership",
	}},
	{Category: constants.Utilities, Keywords: []string{
		"electric", "water dept", "utility", "internet", "comcast", "verizon",
	}},
	{Category: constants.Education, Keywords: []string{
		"bookstore", "tuition", "course", "udemy", "textbook",
	}},
	{Category: constants.Home, Keywords: []string{
		"home depot", "lowe's", "lowes", "ikea", "furniture", "hardware",
	}},
	{Category: constants.PersonalCare, Keywords: []string{
		"salon", "barber", "spa ", "nails", "shampoo",
	}},
	{Category: constants.Insurance, Keywords: []string{
		"insurance", "geico", "allstate", "premium",
	}},
	{Category: constants.Shopping, Keywords: []string{
		"amazon", "target", "best buy", "macy", "nordstrom", "outlet",
	}},
}
