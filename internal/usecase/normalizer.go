package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/shopsight/backend/internal/domain"
	"github.com/shopsight/backend/pkg/logger"
)

// Normalizer converts listing prices into the reference currency. When a
// market list is configured, listings in currencies outside it are
// dropped before conversion.
type Normalizer struct {
	converter domain.RateConverter
	reference string
	markets   map[string]bool
}

// NewNormalizer creates a normalizer targeting the reference currency.
// markets may be empty to accept every currency.
func NewNormalizer(converter domain.RateConverter, reference string, markets []string) *Normalizer {
	if reference == "" {
		reference = "USD"
	}
	set := make(map[string]bool, len(markets))
	for _, m := range markets {
		set[strings.ToUpper(strings.TrimSpace(m))] = true
	}
	return &Normalizer{converter: converter, reference: reference, markets: set}
}

// Normalize converts every listing price. Listings filtered out by the
// market list or the negative-price guard are dropped silently; only
// conversion failures count toward the fatal case, which is reached when
// conversion failed for every listing that was actually attempted.
func (n *Normalizer) Normalize(ctx context.Context, listings []domain.Listing) ([]domain.NormalizedListing, int, error) {
	normalized := make([]domain.NormalizedListing, 0, len(listings))
	dropped := 0
	attempted := 0
	failed := 0

	for _, l := range listings {
		if l.Price < 0 {
			dropped++
			continue
		}
		if len(n.markets) > 0 && !n.markets[strings.ToUpper(l.Currency)] {
			dropped++
			continue
		}

		attempted++
		converted, rate, stale, err := n.converter.Convert(ctx, l.Price, l.Currency, n.reference, l.ScrapedAt)
		if err != nil {
			logger.Warn().Str("listing", l.ListingID).Str("currency", l.Currency).Err(err).Msg("dropping unconvertible listing")
			dropped++
			failed++
			continue
		}

		normalized = append(normalized, domain.NormalizedListing{
			Listing:         l,
			NormalizedPrice: converted,
			Rate:            rate,
			RateStale:       stale,
			ConvertedAt:     time.Now(),
		})
	}

	if attempted > 0 && failed == attempted {
		return nil, dropped, domain.ErrNormalizationFailed
	}

	return normalized, dropped, nil
}
