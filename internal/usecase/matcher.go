package usecase

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shopsight/backend/internal/domain"
)

// Package-level compiled regex patterns for performance
var (
	punctuationRegex = regexp.MustCompile(`[^\w\s]`)
	listingSizeRegex = regexp.MustCompile(`(?i)([0-9]+\.?[0-9]*)\s*(kg|g|grams?|ml|l|liters?|litres?|oz|fl\s*oz|lbs?|pounds?)\b`)
)

// fuzzyWeightFactor discounts tokens matched by edit distance rather than
// exactly.
const fuzzyWeightFactor = 0.8

// Scoring bonuses, all on the 0..1 confidence scale.
const (
	brandMatchBonus     = 0.10 // listing brand equals catalogue brand
	substringMatchBonus = 0.05 // one title contains the other
)

// matchStopWords are tokens carrying no matching signal: basic English
// stop words plus retail packaging noise.
var matchStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"of": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "with": true, "by": true, "from": true, "is": true,
	// Units
	"oz": true, "fl": true, "lb": true, "lbs": true, "ml": true,
	"kg": true, "gram": true, "grams": true, "liter": true, "litre": true,
	// Packaging
	"pack": true, "packs": true, "count": true, "ct": true, "pk": true,
	"box": true, "bag": true, "bottle": true, "set": true, "pcs": true,
	// Marketing
	"new": true, "sale": true, "free": true, "shipping": true,
	"official": true, "original": true, "genuine": true,
}

// MatcherConfig holds configuration for the product matcher.
type MatcherConfig struct {
	MinConfidence     float64 // acceptance threshold in [0,1]
	FuzzyEditDistance int
	SizeTolerance     float64 // fractional, e.g. 0.10 for ±10%
}

// Matcher associates normalized listings with catalogue products using
// token similarity plus attribute tolerance. Matching is greedy per
// listing: each listing is assigned to its single best product rather
// than solving a global assignment, trading a little accuracy for a
// linear pass over the candidate pairs.
type Matcher struct {
	minConfidence     float64
	fuzzyEditDistance int
	sizeTolerance     float64
}

// NewMatcher creates a matcher with the given configuration.
func NewMatcher(cfg MatcherConfig) *Matcher {
	threshold := cfg.MinConfidence
	if threshold <= 0 {
		threshold = 0.55
	}
	fuzzyDist := cfg.FuzzyEditDistance
	if fuzzyDist <= 0 {
		fuzzyDist = 1
	}
	tolerance := cfg.SizeTolerance
	if tolerance <= 0 {
		tolerance = 0.10
	}

	return &Matcher{
		minConfidence:     threshold,
		fuzzyEditDistance: fuzzyDist,
		sizeTolerance:     tolerance,
	}
}

// Match scores every listing against every product and returns accepted
// matches plus rejected listings kept as diagnostics. A listing yields at
// most one accepted match: highest confidence wins, ties broken by
// smaller price difference from the catalogue price, then by earliest
// scraped-at timestamp.
func (m *Matcher) Match(products []domain.CatalogueProduct, listings []domain.NormalizedListing) []domain.Match {
	matches := make([]domain.Match, 0, len(listings))

	for _, listing := range listings {
		var best *domain.Match
		var bestRejected *domain.Match

		for _, product := range products {
			confidence, matchedTokens := m.score(product, listing)

			candidate := domain.Match{
				ProductID:     product.ID,
				ListingID:     listing.ListingID,
				StoreID:       listing.StoreID,
				Confidence:    confidence,
				MatchedTokens: matchedTokens,
				Price:         listing.NormalizedPrice,
				PriceDiff:     math.Abs(listing.NormalizedPrice - product.CurrentPrice),
				ScrapedAt:     listing.ScrapedAt,
			}

			if reason := m.toleranceCheck(product, listing); reason != "" {
				candidate.Rejected = true
				candidate.RejectReason = reason
			} else if confidence < m.minConfidence {
				candidate.Rejected = true
				candidate.RejectReason = domain.RejectBelowThreshold
			}

			if candidate.Rejected {
				if bestRejected == nil || candidate.Confidence > bestRejected.Confidence {
					c := candidate
					bestRejected = &c
				}
				continue
			}

			if best == nil || betterMatch(candidate, *best) {
				c := candidate
				best = &c
			}
		}

		switch {
		case best != nil:
			matches = append(matches, *best)
		case bestRejected != nil:
			matches = append(matches, *bestRejected)
		default:
			matches = append(matches, domain.Match{
				ListingID:    listing.ListingID,
				StoreID:      listing.StoreID,
				Price:        listing.NormalizedPrice,
				ScrapedAt:    listing.ScrapedAt,
				Rejected:     true,
				RejectReason: domain.RejectNoCandidate,
			})
		}
	}

	return matches
}

// betterMatch reports whether a should displace b as the accepted match.
func betterMatch(a, b domain.Match) bool {
	const eps = 1e-9
	if math.Abs(a.Confidence-b.Confidence) > eps {
		return a.Confidence > b.Confidence
	}
	if math.Abs(a.PriceDiff-b.PriceDiff) > eps {
		return a.PriceDiff < b.PriceDiff
	}
	if !a.ScrapedAt.Equal(b.ScrapedAt) {
		return a.ScrapedAt.Before(b.ScrapedAt)
	}
	return a.ProductID < b.ProductID
}

// score computes similarity between a product fingerprint and a listing
// in [0,1]. Product-token coverage matters most; listing coverage and the
// Jaccard index refine it, with small bonuses for brand and substring
// agreement. Confidence is monotone in token similarity.
func (m *Matcher) score(product domain.CatalogueProduct, listing domain.NormalizedListing) (float64, []string) {
	productTokens := tokenize(product.Fingerprint)
	listingTokens := tokenize(listing.Title + " " + listing.Brand)

	if len(productTokens) == 0 || len(listingTokens) == 0 {
		return 0, nil
	}

	productMatched, matchedTokens := m.weightedIntersection(productTokens, listingTokens)
	productCoverage := productMatched / float64(len(productTokens))

	listingMatched, _ := m.weightedIntersection(listingTokens, productTokens)
	listingCoverage := listingMatched / float64(len(listingTokens))

	union := tokenUnion(productTokens, listingTokens)
	jaccard := productMatched / float64(union)

	score := productCoverage*0.60 + listingCoverage*0.20 + jaccard*0.20

	productLower := strings.ToLower(product.Fingerprint)
	listingLower := strings.ToLower(listing.Title)

	if product.Brand != "" && listing.Brand != "" &&
		strings.EqualFold(strings.TrimSpace(product.Brand), strings.TrimSpace(listing.Brand)) {
		score += brandMatchBonus
	}

	if len(productLower) > 3 && (strings.Contains(listingLower, productLower) || strings.Contains(productLower, listingLower)) {
		score += substringMatchBonus
	}

	if score > 1 {
		score = 1
	}

	return score, matchedTokens
}

// toleranceCheck applies the attribute guards: brand equality or
// near-equality, and size compatibility within the configured tolerance.
// Missing attributes on either side pass as neutral.
func (m *Matcher) toleranceCheck(product domain.CatalogueProduct, listing domain.NormalizedListing) string {
	productBrand := strings.ToLower(strings.TrimSpace(product.Brand))
	listingBrand := strings.ToLower(strings.TrimSpace(listing.Brand))
	if productBrand != "" && listingBrand != "" {
		if productBrand != listingBrand && levenshteinDistance(productBrand, listingBrand) > m.fuzzyEditDistance {
			return domain.RejectBrandMismatch
		}
	}

	if productSize, ok := baseUnits(product.SizeValue, product.SizeUnit); ok {
		if listingSize, ok := extractListingSize(listing); ok {
			ratio := listingSize / productSize
			if ratio < 1-m.sizeTolerance || ratio > 1+m.sizeTolerance {
				return domain.RejectSizeMismatch
			}
		}
	}

	return ""
}

// weightedIntersection counts product tokens found in the candidate set,
// weighting fuzzy matches below exact ones, and returns the matched tokens.
func (m *Matcher) weightedIntersection(tokens, candidates []string) (float64, []string) {
	set := make(map[string]bool, len(candidates))
	for _, t := range candidates {
		set[t] = true
	}

	total := 0.0
	var matched []string
	seen := make(map[string]bool)
	for _, t := range tokens {
		if seen[t] {
			continue
		}
		if set[t] {
			total += 1.0
			matched = append(matched, t)
			seen[t] = true
			continue
		}
		for c := range set {
			if fuzzyTokenMatch(t, c, m.fuzzyEditDistance) {
				total += fuzzyWeightFactor
				matched = append(matched, t)
				seen[t] = true
				break
			}
		}
	}

	return total, matched
}

// tokenUnion returns the count of unique tokens across both sets.
func tokenUnion(tokens1, tokens2 []string) int {
	set := make(map[string]bool)
	for _, t := range tokens1 {
		set[t] = true
	}
	for _, t := range tokens2 {
		set[t] = true
	}
	return len(set)
}

// tokenize splits a string into normalized lowercase tokens, dropping
// punctuation, stop words, single characters and pure numbers.
func tokenize(s string) []string {
	cleaned := punctuationRegex.ReplaceAllString(strings.ToLower(s), " ")

	var tokens []string
	for _, word := range strings.Fields(cleaned) {
		if len(word) <= 1 {
			continue
		}
		if matchStopWords[word] {
			continue
		}
		if isNumeric(word) {
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// isNumeric checks if a string contains only digits
func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// fuzzyTokenMatch checks if two tokens are similar within the edit
// distance threshold. Short tokens are excluded to avoid false positives.
func fuzzyTokenMatch(token1, token2 string, threshold int) bool {
	if token1 == token2 {
		return true
	}
	if len(token1) < 4 || len(token2) < 4 {
		return false
	}

	lenDiff := len(token1) - len(token2)
	if lenDiff < 0 {
		lenDiff = -lenDiff
	}
	if lenDiff > threshold {
		return false
	}

	return levenshteinDistance(token1, token2) <= threshold
}

// levenshteinDistance calculates the edit distance between two strings
// using two rolling rows.
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	r1 := []rune(s1)
	r2 := []rune(s2)
	n := len(r2)

	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}

// baseUnits converts a declared size to base units (grams or
// millilitres). Unknown units disable the size guard for the product.
func baseUnits(value float64, unit string) (float64, bool) {
	if value <= 0 {
		return 0, false
	}
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "g", "gram", "grams", "ml":
		return value, true
	case "kg", "l", "liter", "liters", "litre", "litres":
		return value * 1000, true
	case "oz":
		return value * 28.35, true
	case "lb", "lbs":
		return value * 453.59, true
	}
	return 0, false
}

// extractListingSize pulls a size in base units (grams or millilitres)
// from listing attributes or, failing that, the title text.
func extractListingSize(listing domain.NormalizedListing) (float64, bool) {
	if grams, ok := listing.Attributes["grams"]; ok {
		if v, err := strconv.ParseFloat(grams, 64); err == nil && v > 0 {
			return v, true
		}
	}

	match := listingSizeRegex.FindStringSubmatch(listing.Title)
	if match == nil {
		return 0, false
	}

	qty, err := strconv.ParseFloat(match[1], 64)
	if err != nil || qty <= 0 {
		return 0, false
	}

	switch strings.ToLower(strings.Join(strings.Fields(match[2]), " ")) {
	case "g", "gram", "grams", "ml":
		return qty, true
	case "kg", "l", "liter", "liters", "litre", "litres":
		return qty * 1000, true
	case "oz", "fl oz":
		return qty * 28.35, true
	case "lb", "lbs", "pound", "pounds":
		return qty * 453.59, true
	}
	return 0, false
}

// SortMatches orders matches deterministically for reporting: accepted
// before rejected, then by product id, then confidence descending.
func SortMatches(matches []domain.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Rejected != matches[j].Rejected {
			return !matches[i].Rejected
		}
		if matches[i].ProductID != matches[j].ProductID {
			return matches[i].ProductID < matches[j].ProductID
		}
		return matches[i].Confidence > matches[j].Confidence
	})
}
