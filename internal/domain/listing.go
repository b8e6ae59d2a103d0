package domain

import "time"

// Listing is one scraped competitor product observation, exactly as a
// store adapter produced it. Immutable once returned.
type Listing struct {
	StoreID    string            `json:"storeId"`
	ListingID  string            `json:"listingId"`
	Title      string            `json:"title"`
	Brand      string            `json:"brand,omitempty"`
	Price      float64           `json:"price"`
	Currency   string            `json:"currency"`
	URL        string            `json:"url"`
	ScrapedAt  time.Time         `json:"scrapedAt"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NormalizedListing is a Listing whose price has been converted to the
// reference currency. Derived from a Listing, never mutated afterwards.
type NormalizedListing struct {
	Listing
	NormalizedPrice float64   `json:"normalizedPrice"`
	Rate            float64   `json:"rate"`
	RateStale       bool      `json:"rateStale,omitempty"`
	ConvertedAt     time.Time `json:"convertedAt"`
}

// Match associates a listing with a catalogue product. A listing yields at
// most one accepted match; rejected candidates are retained as diagnostics.
type Match struct {
	ProductID     string    `json:"productId"`
	ListingID     string    `json:"listingId"`
	StoreID       string    `json:"storeId"`
	Confidence    float64   `json:"confidence"`
	MatchedTokens []string  `json:"matchedTokens,omitempty"`
	Price         float64   `json:"price"` // normalized price of the listing
	PriceDiff     float64   `json:"priceDiff"`
	ScrapedAt     time.Time `json:"scrapedAt"`
	Rejected      bool      `json:"rejected,omitempty"`
	RejectReason  string    `json:"rejectReason,omitempty"`
}

// Rejection reasons recorded on diagnostic matches.
const (
	RejectBelowThreshold = "below-threshold"
	RejectBrandMismatch  = "brand-mismatch"
	RejectSizeMismatch   = "size-mismatch"
	RejectNoCandidate    = "no-candidate"
)
