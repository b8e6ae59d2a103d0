package store

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/shopsight/backend/internal/domain"
)

// HTMLConfig configures a static-page storefront scraped with CSS
// selectors. Selector keys: item, title, price, link, brand (optional).
type HTMLConfig struct {
	StoreID    string
	BaseURL    string
	SearchPath string // template containing {query}
	Currency   string
	UserAgent  string
	Selectors  map[string]string
}

// HTMLAdapter scrapes server-rendered storefront search pages.
type HTMLAdapter struct {
	cfg        HTMLConfig
	origin     string
	gate       domain.Gate
	httpClient *http.Client
}

// NewHTML creates a static-page store adapter.
func NewHTML(cfg HTMLConfig, gate domain.Gate) (*HTMLAdapter, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base URL for store %q: %q", cfg.StoreID, cfg.BaseURL)
	}
	if cfg.SearchPath == "" {
		cfg.SearchPath = "/search?q={query}"
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	for _, key := range []string{"item", "title", "price"} {
		if cfg.Selectors[key] == "" {
			return nil, fmt.Errorf("store %q missing selector %q", cfg.StoreID, key)
		}
	}

	return &HTMLAdapter{
		cfg:        cfg,
		origin:     parsed.Scheme + "://" + parsed.Host,
		gate:       gate,
		httpClient: newHTTPClient(),
	}, nil
}

func (a *HTMLAdapter) StoreID() string { return a.cfg.StoreID }
func (a *HTMLAdapter) Origin() string  { return a.origin }

// Search fetches the search results page and extracts listings with the
// configured selectors.
func (a *HTMLAdapter) Search(ctx context.Context, q domain.ProductQuery) ([]domain.Listing, error) {
	reqURL := a.origin + expandSearchPath(a.cfg.SearchPath, q.Query)

	body, serr := fetch(ctx, a.httpClient, a.gate, a.cfg.StoreID, a.origin, reqURL, a.cfg.UserAgent)
	if serr != nil {
		return nil, serr
	}

	listings, err := parseListingsHTML(body, a.cfg.StoreID, a.origin, a.cfg.Currency, a.cfg.Selectors)
	if err != nil {
		return nil, scrapeErr(a.cfg.StoreID, a.origin, domain.ScrapeReasonParse, err)
	}
	return listings, nil
}

// parseListingsHTML extracts listings from a results page. Shared with the
// rendered adapter, which obtains its HTML through a headless browser.
func parseListingsHTML(body []byte, storeID, origin, currency string, selectors map[string]string) ([]domain.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var listings []domain.Listing

	doc.Find(selectors["item"]).Each(func(i int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Find(selectors["title"]).First().Text())
		if title == "" {
			return
		}

		price, ok := parsePrice(s.Find(selectors["price"]).First().Text())
		if !ok {
			return
		}

		link := ""
		if sel := selectors["link"]; sel != "" {
			if href, exists := s.Find(sel).First().Attr("href"); exists {
				link = absoluteURL(origin, href)
			}
		}

		brand := ""
		if sel := selectors["brand"]; sel != "" {
			brand = strings.TrimSpace(s.Find(sel).First().Text())
		}

		listings = append(listings, domain.Listing{
			StoreID:   storeID,
			ListingID: fmt.Sprintf("%s:%d:%s", storeID, i, link),
			Title:     title,
			Brand:     brand,
			Price:     price,
			Currency:  currency,
			URL:       link,
			ScrapedAt: now,
		})
	})

	return listings, nil
}

// absoluteURL resolves a scraped href against the store origin.
func absoluteURL(origin, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return origin + href
}
