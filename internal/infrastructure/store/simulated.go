package store

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/shopsight/backend/internal/domain"
)

// SimulatedAdapter produces deterministic competitor listings derived from
// the catalogue itself. It performs no network access (empty origin) and
// exists so the full pipeline can run offline for demos and tests.
type SimulatedAdapter struct {
	storeID   string
	currency  string
	catalogue map[string]domain.CatalogueProduct
	listings  int
}

// NewSimulated creates an offline adapter over the given catalogue.
func NewSimulated(storeID, currency string, catalogue []domain.CatalogueProduct) *SimulatedAdapter {
	byID := make(map[string]domain.CatalogueProduct, len(catalogue))
	for _, p := range catalogue {
		byID[p.ID] = p
	}
	if currency == "" {
		currency = "USD"
	}

	return &SimulatedAdapter{
		storeID:   storeID,
		currency:  currency,
		catalogue: byID,
		listings:  3,
	}
}

func (a *SimulatedAdapter) StoreID() string { return a.storeID }

// Origin is empty: the adapter is offline and exempt from the gate.
func (a *SimulatedAdapter) Origin() string { return "" }

// Search fabricates listings priced uniformly within ±20% of the
// product's current price, deterministic per (store, product).
func (a *SimulatedAdapter) Search(ctx context.Context, q domain.ProductQuery) ([]domain.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, scrapeErr(a.storeID, "", domain.ScrapeReasonTimeout, err)
	}

	p, ok := a.catalogue[q.ProductID]
	if !ok || p.CurrentPrice <= 0 {
		return nil, nil
	}

	rng := rand.New(rand.NewSource(a.seed(q.ProductID)))
	now := time.Now()

	listings := make([]domain.Listing, 0, a.listings)
	for i := 0; i < a.listings; i++ {
		price := p.CurrentPrice * (0.8 + 0.4*rng.Float64())
		listings = append(listings, domain.Listing{
			StoreID:   a.storeID,
			ListingID: fmt.Sprintf("%s:%s:%d", a.storeID, q.ProductID, i),
			Title:     p.Name,
			Brand:     p.Brand,
			Price:     float64(int(price*100)) / 100,
			Currency:  a.currency,
			URL:       fmt.Sprintf("https://%s.example/products/%s", a.storeID, q.ProductID),
			ScrapedAt: now,
		})
	}

	return listings, nil
}

// seed derives a stable per-(store, product) RNG seed.
func (a *SimulatedAdapter) seed(productID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(a.storeID))
	h.Write([]byte{0})
	h.Write([]byte(productID))
	return int64(h.Sum64())
}
