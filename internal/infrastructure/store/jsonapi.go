package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopsight/backend/internal/domain"
)

// JSONAPIConfig configures one storefront exposing the shared search JSON
// shape (a /search.json style endpoint with a products array).
type JSONAPIConfig struct {
	StoreID    string
	BaseURL    string
	SearchPath string // template containing {query}
	Currency   string
	UserAgent  string
}

// JSONAPIAdapter scrapes storefronts exposing a common JSON search API.
// One instance covers every store of that shape, configured per store.
type JSONAPIAdapter struct {
	cfg        JSONAPIConfig
	origin     string
	gate       domain.Gate
	httpClient *http.Client
}

// searchResponse is the shared storefront search payload.
type searchResponse struct {
	Products []struct {
		ID        json.Number `json:"id"`
		Title     string      `json:"title"`
		Vendor    string      `json:"vendor"`
		Handle    string      `json:"handle"`
		URL       string      `json:"url"`
		Price     json.Number `json:"price"`
		Currency  string      `json:"currency"`
		Available *bool       `json:"available"`
	} `json:"products"`
}

// detailResponse is the product detail payload used by Enrich.
type detailResponse struct {
	Product struct {
		ID             json.Number `json:"id"`
		Grams          float64     `json:"grams"`
		CompareAtPrice json.Number `json:"compare_at_price"`
		ProductType    string      `json:"product_type"`
	} `json:"product"`
}

// NewJSONAPI creates a shared-shape storefront adapter.
func NewJSONAPI(cfg JSONAPIConfig, gate domain.Gate) (*JSONAPIAdapter, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base URL for store %q: %q", cfg.StoreID, cfg.BaseURL)
	}
	if cfg.SearchPath == "" {
		cfg.SearchPath = "/products/search.json?q={query}"
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}

	return &JSONAPIAdapter{
		cfg:        cfg,
		origin:     parsed.Scheme + "://" + parsed.Host,
		gate:       gate,
		httpClient: newHTTPClient(),
	}, nil
}

func (a *JSONAPIAdapter) StoreID() string { return a.cfg.StoreID }
func (a *JSONAPIAdapter) Origin() string  { return a.origin }

// Search queries the storefront search endpoint and maps the products
// array into listings. Each call re-scrapes.
func (a *JSONAPIAdapter) Search(ctx context.Context, q domain.ProductQuery) ([]domain.Listing, error) {
	reqURL := a.origin + expandSearchPath(a.cfg.SearchPath, q.Query)

	body, serr := fetch(ctx, a.httpClient, a.gate, a.cfg.StoreID, a.origin, reqURL, a.cfg.UserAgent)
	if serr != nil {
		return nil, serr
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, scrapeErr(a.cfg.StoreID, a.origin, domain.ScrapeReasonParse, err)
	}

	now := time.Now()
	listings := make([]domain.Listing, 0, len(parsed.Products))
	for _, p := range parsed.Products {
		price, err := p.Price.Float64()
		if err != nil || price < 0 {
			continue
		}

		currency := p.Currency
		if currency == "" {
			currency = a.cfg.Currency
		}

		listingURL := p.URL
		if listingURL == "" && p.Handle != "" {
			listingURL = a.origin + "/products/" + p.Handle
		}

		attrs := map[string]string{}
		if p.Available != nil {
			attrs["available"] = fmt.Sprintf("%t", *p.Available)
		}

		listings = append(listings, domain.Listing{
			StoreID:    a.cfg.StoreID,
			ListingID:  fmt.Sprintf("%s:%s", a.cfg.StoreID, p.ID.String()),
			Title:      strings.TrimSpace(p.Title),
			Brand:      strings.TrimSpace(p.Vendor),
			Price:      price,
			Currency:   currency,
			URL:        listingURL,
			ScrapedAt:  now,
			Attributes: attrs,
		})
	}

	return listings, nil
}

// Enrich fetches the listing's detail JSON and folds extra fields into a
// copy of the listing. Failures leave the original listing usable.
func (a *JSONAPIAdapter) Enrich(ctx context.Context, listing domain.Listing) (domain.Listing, error) {
	if listing.URL == "" {
		return listing, nil
	}

	body, serr := fetch(ctx, a.httpClient, a.gate, a.cfg.StoreID, a.origin, listing.URL+".json", a.cfg.UserAgent)
	if serr != nil {
		return listing, serr
	}

	var parsed detailResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return listing, scrapeErr(a.cfg.StoreID, a.origin, domain.ScrapeReasonParse, err)
	}

	enriched := listing
	enriched.Attributes = make(map[string]string, len(listing.Attributes)+3)
	for k, v := range listing.Attributes {
		enriched.Attributes[k] = v
	}
	if parsed.Product.Grams > 0 {
		enriched.Attributes["grams"] = fmt.Sprintf("%.0f", parsed.Product.Grams)
	}
	if compareAt, err := parsed.Product.CompareAtPrice.Float64(); err == nil && compareAt > 0 {
		enriched.Attributes["compare_at_price"] = parsed.Product.CompareAtPrice.String()
	}
	if parsed.Product.ProductType != "" {
		enriched.Attributes["product_type"] = parsed.Product.ProductType
	}

	return enriched, nil
}
