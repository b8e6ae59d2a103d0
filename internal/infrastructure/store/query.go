package store

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopsight/backend/internal/domain"
)

// Package-level compiled regex patterns for performance
var (
	sizePatternRegex    = regexp.MustCompile(`(?i)\b\d+\.?\d*\s*(?:fl\s*oz|oz|ml|liters?|l|grams?|g|kg|lbs?|pounds?|ct|count|pk|pack|ea|each)\b`)
	specialCharsRegex   = regexp.MustCompile(`[#%+@!^*()=\[\]{}<>|\\~` + "`" + `]`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
	priceValueRegex     = regexp.MustCompile(`\d{1,3}(?:[.,]\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?`)
)

// retailNoiseWords are marketing terms that add noise to store searches
var retailNoiseWords = []string{
	"party size", "family size", "value pack", "bonus size",
	"club pack", "mega size", "limited edition", "best seller",
	"new arrival", "free shipping",
}

// BuildQuery derives the search query a store adapter receives for one
// catalogue product. Retail noise is stripped so storefront search engines
// see a focused product phrase.
func BuildQuery(p domain.CatalogueProduct) domain.ProductQuery {
	name := cleanTitle(p.Name)

	// Prepend brand unless it already leads the name
	if p.Brand != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(p.Brand)) {
		name = p.Brand + " " + name
	}

	return domain.ProductQuery{
		ProductID: p.ID,
		Query:     strings.TrimSpace(name),
		Brand:     p.Brand,
	}
}

// cleanTitle strips size info, special characters and retail noise.
func cleanTitle(name string) string {
	// Take only text before first comma (strip size/packaging tail)
	if idx := strings.Index(name, ","); idx > 0 {
		name = name[:idx]
	}

	name = strings.ReplaceAll(name, "&", " and ")
	name = specialCharsRegex.ReplaceAllString(name, " ")
	name = sizePatternRegex.ReplaceAllString(name, " ")

	nameLower := strings.ToLower(name)
	for _, noise := range retailNoiseWords {
		if idx := strings.Index(nameLower, noise); idx >= 0 {
			name = name[:idx] + name[idx+len(noise):]
			nameLower = strings.ToLower(name)
		}
	}

	name = multipleSpacesRegex.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// parsePrice extracts a price value from scraped text such as "€ 1.299,00"
// or "$24.99". Returns 0 and false when no numeric value is present.
func parsePrice(text string) (float64, bool) {
	candidate := priceValueRegex.FindString(strings.TrimSpace(text))
	if candidate == "" {
		return 0, false
	}

	// The last '.' or ',' followed by at most two digits is the decimal
	// separator; every other separator is grouping.
	sep := strings.LastIndexAny(candidate, ".,")
	if sep >= 0 && len(candidate)-sep-1 <= 2 {
		candidate = dropSeparators(candidate[:sep]) + "." + candidate[sep+1:]
	} else {
		candidate = dropSeparators(candidate)
	}

	v, err := strconv.ParseFloat(candidate, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

func dropSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '.' || r == ',' {
			return -1
		}
		return r
	}, s)
}
