package domain

import (
	"context"
	"time"
)

// StoreAdapter is the scraping capability one partner store implements.
// Search re-scrapes on every call and returns a finite batch of listings.
// Every network fetch must pass through the injected Gate first.
type StoreAdapter interface {
	StoreID() string
	// Origin returns the scheme://host the adapter talks to, or "" for
	// offline adapters that perform no network access.
	Origin() string
	Search(ctx context.Context, query ProductQuery) ([]Listing, error)
}

// Enricher is the optional capability of adding detail-page fields to a
// listing. Adapters that cannot enrich simply do not implement it.
type Enricher interface {
	Enrich(ctx context.Context, listing Listing) (Listing, error)
}

// Gate enforces per-origin crawl rate and robots-exclusion compliance.
type Gate interface {
	// Acquire blocks until the origin's token bucket grants a permit or
	// the context is cancelled.
	Acquire(ctx context.Context, origin string) error
	// IsAllowed reports whether the origin's robots policy permits the
	// path. If robots data cannot be fetched the gate fails closed.
	IsAllowed(ctx context.Context, origin, path string) bool
}

// RateConverter converts listing amounts into the reference currency.
// stale is true when a pinned fallback rate was used instead of a live one.
type RateConverter interface {
	Convert(ctx context.Context, amount float64, from, to string, asOf time.Time) (converted, rate float64, stale bool, err error)
}

// PriorSource resolves category-level priors; it must always return a
// usable prior, falling back to a default row for unknown categories.
type PriorSource interface {
	Prior(category string) CategoryPrior
}
