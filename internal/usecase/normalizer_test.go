package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopsight/backend/internal/domain"
)

// stubConverter converts via a fixed rate table and reports the requested
// currencies for inspection.
type stubConverter struct {
	rates map[string]float64 // from-currency -> rate into the reference
	stale map[string]bool
}

func (c *stubConverter) Convert(ctx context.Context, amount float64, from, to string, asOf time.Time) (float64, float64, bool, error) {
	if from == to {
		return amount, 1.0, false, nil
	}
	rate, ok := c.rates[from]
	if !ok {
		return 0, 0, false, domain.ErrRateUnavailable
	}
	return amount * rate, rate, c.stale[from], nil
}

func rawListing(id, currency string, price float64) domain.Listing {
	return domain.Listing{
		ListingID: id,
		StoreID:   "store-a",
		Title:     "Ceramic Travel Mug",
		Price:     price,
		Currency:  currency,
		ScrapedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNormalizer_Normalize(t *testing.T) {
	converter := &stubConverter{
		rates: map[string]float64{"EUR": 1.10, "GBP": 1.25},
		stale: map[string]bool{"GBP": true},
	}
	normalizer := NewNormalizer(converter, "USD", nil)

	t.Run("converts into the reference currency", func(t *testing.T) {
		normalized, dropped, err := normalizer.Normalize(context.Background(), []domain.Listing{
			rawListing("l1", "USD", 20.00),
			rawListing("l2", "EUR", 10.00),
			rawListing("l3", "GBP", 8.00),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dropped != 0 {
			t.Errorf("expected no drops, got %d", dropped)
		}
		if len(normalized) != 3 {
			t.Fatalf("expected 3 normalized listings, got %d", len(normalized))
		}

		if normalized[0].NormalizedPrice != 20.00 || normalized[0].Rate != 1.0 {
			t.Errorf("same-currency listing altered: %+v", normalized[0])
		}
		if math.Abs(normalized[1].NormalizedPrice-11.00) > 1e-9 {
			t.Errorf("expected EUR listing at 11.00, got %f", normalized[1].NormalizedPrice)
		}
		if !normalized[2].RateStale {
			t.Error("expected stale-rate flag to propagate")
		}
	})

	t.Run("drops unconvertible and negative listings", func(t *testing.T) {
		normalized, dropped, err := normalizer.Normalize(context.Background(), []domain.Listing{
			rawListing("l1", "USD", 20.00),
			rawListing("l2", "CHF", 30.00),
			rawListing("l3", "USD", -1.00),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(normalized) != 1 || dropped != 2 {
			t.Errorf("expected 1 kept and 2 dropped, got %d kept %d dropped", len(normalized), dropped)
		}
	})

	t.Run("market filter drops out-of-market currencies", func(t *testing.T) {
		scoped := NewNormalizer(converter, "USD", []string{"USD", "EUR"})
		normalized, dropped, err := scoped.Normalize(context.Background(), []domain.Listing{
			rawListing("l1", "USD", 20.00),
			rawListing("l2", "GBP", 8.00),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(normalized) != 1 || dropped != 1 {
			t.Errorf("expected GBP listing dropped, got %d kept %d dropped", len(normalized), dropped)
		}
	})

	t.Run("all listings out of market is not an error", func(t *testing.T) {
		scoped := NewNormalizer(converter, "USD", []string{"USD"})
		normalized, dropped, err := scoped.Normalize(context.Background(), []domain.Listing{
			rawListing("l1", "EUR", 10.00),
			rawListing("l2", "EUR", 12.00),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(normalized) != 0 || dropped != 2 {
			t.Errorf("expected empty result with 2 drops, got %d kept %d dropped", len(normalized), dropped)
		}
	})

	t.Run("all negative prices is not an error", func(t *testing.T) {
		normalized, dropped, err := normalizer.Normalize(context.Background(), []domain.Listing{
			rawListing("l1", "USD", -5.00),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(normalized) != 0 || dropped != 1 {
			t.Errorf("expected empty result with 1 drop, got %d kept %d dropped", len(normalized), dropped)
		}
	})

	t.Run("total conversion failure is an error", func(t *testing.T) {
		_, dropped, err := normalizer.Normalize(context.Background(), []domain.Listing{
			rawListing("l1", "CHF", 30.00),
			rawListing("l2", "SEK", 40.00),
		})
		if !errors.Is(err, domain.ErrNormalizationFailed) {
			t.Fatalf("expected ErrNormalizationFailed, got %v", err)
		}
		if dropped != 2 {
			t.Errorf("expected 2 drops, got %d", dropped)
		}
	})

	t.Run("empty input is not an error", func(t *testing.T) {
		normalized, dropped, err := normalizer.Normalize(context.Background(), nil)
		if err != nil || dropped != 0 || len(normalized) != 0 {
			t.Errorf("expected clean empty result, got %v %d %v", normalized, dropped, err)
		}
	})
}
