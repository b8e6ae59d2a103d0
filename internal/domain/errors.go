package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrPolitenessDenied is returned when the gate disallows an origin,
	// either by robots policy or because robots data could not be fetched.
	ErrPolitenessDenied = errors.New("origin disallowed by politeness gate")

	// ErrInvalidProduct is returned for catalogue products violating
	// ingestion invariants (empty fingerprint, negative cost).
	ErrInvalidProduct = errors.New("invalid catalogue product")

	// ErrEmptyCatalogue is returned when a run is started with no products.
	ErrEmptyCatalogue = errors.New("catalogue is empty")

	// ErrRateUnavailable is returned when no live or pinned exchange rate
	// exists for a currency pair.
	ErrRateUnavailable = errors.New("exchange rate unavailable")

	// ErrNormalizationFailed is returned when currency normalization failed
	// for every scraped listing; the run cannot proceed.
	ErrNormalizationFailed = errors.New("currency normalization failed for all listings")

	// ErrCacheMiss is returned when a key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")
)

// Scrape error reasons. Timeouts and server-side HTTP failures are
// transient and may be retried; rejected, parse and denied are not.
const (
	ScrapeReasonTimeout  = "timeout"
	ScrapeReasonHTTP     = "http"
	ScrapeReasonRejected = "rejected"
	ScrapeReasonParse    = "parse"
	ScrapeReasonDenied   = "denied"
)

// ScrapeError is the structured, non-fatal failure of one adapter call.
// Adapters never propagate raw transport or parse errors past their boundary.
type ScrapeError struct {
	StoreID string `json:"storeId"`
	Origin  string `json:"origin"`
	Reason  string `json:"reason"`
	Err     error  `json:"-"`
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scrape %s (%s): %s: %v", e.StoreID, e.Origin, e.Reason, e.Err)
	}
	return fmt.Sprintf("scrape %s (%s): %s", e.StoreID, e.Origin, e.Reason)
}

func (e *ScrapeError) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth retrying.
func (e *ScrapeError) Transient() bool {
	return e.Reason == ScrapeReasonTimeout || e.Reason == ScrapeReasonHTTP
}
