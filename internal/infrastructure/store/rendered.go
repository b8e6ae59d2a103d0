package store

import (
	"context"
	"fmt"
	"net/url"

	"github.com/chromedp/chromedp"

	"github.com/shopsight/backend/internal/domain"
)

// RenderedAdapter scrapes script-heavy storefronts whose search results
// only exist after client-side rendering. It drives a headless browser per
// search, then reuses the selector-based extraction of the HTML adapter.
// Enabled by the dynamic-page rendering toggle.
type RenderedAdapter struct {
	cfg    HTMLConfig
	origin string
	gate   domain.Gate
}

// NewRendered creates a rendered-page store adapter.
func NewRendered(cfg HTMLConfig, gate domain.Gate) (*RenderedAdapter, error) {
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

	return &RenderedAdapter{
		cfg:    cfg,
		origin: parsed.Scheme + "://" + parsed.Host,
		gate:   gate,
	}, nil
}

func (a *RenderedAdapter) StoreID() string { return a.cfg.StoreID }
func (a *RenderedAdapter) Origin() string  { return a.origin }

// Search renders the search results page in a fresh browser context and
// extracts listings from the rendered DOM.
func (a *RenderedAdapter) Search(ctx context.Context, q domain.ProductQuery) ([]domain.Listing, error) {
	path := expandSearchPath(a.cfg.SearchPath, q.Query)

	if !a.gate.IsAllowed(ctx, a.origin, path) {
		return nil, scrapeErr(a.cfg.StoreID, a.origin, domain.ScrapeReasonDenied, domain.ErrPolitenessDenied)
	}
	if err := a.gate.Acquire(ctx, a.origin); err != nil {
		return nil, scrapeErr(a.cfg.StoreID, a.origin, classifyFetchErr(err), err)
	}

	html, err := a.renderPage(ctx, a.origin+path)
	if err != nil {
		return nil, scrapeErr(a.cfg.StoreID, a.origin, classifyFetchErr(err), err)
	}

	listings, err := parseListingsHTML([]byte(html), a.cfg.StoreID, a.origin, a.cfg.Currency, a.cfg.Selectors)
	if err != nil {
		return nil, scrapeErr(a.cfg.StoreID, a.origin, domain.ScrapeReasonParse, err)
	}
	return listings, nil
}

// renderPage navigates a fresh headless-browser tab to the URL and returns
// the rendered document once the result items are present.
func (a *RenderedAdapter) renderPage(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(a.cfg.UserAgent),
		chromedp.WindowSize(1280, 900),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitVisible(a.cfg.Selectors["item"], chromedp.ByQuery),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", err
	}
	return html, nil
}
