package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopsight/backend/internal/domain"
)

// Registry holds the configured store adapters keyed by store id.
type Registry struct {
	adapters map[string]domain.StoreAdapter
	order    []string
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]domain.StoreAdapter)}
}

// Register adds an adapter; re-registering a store id replaces it.
func (r *Registry) Register(a domain.StoreAdapter) {
	if _, ok := r.adapters[a.StoreID()]; !ok {
		r.order = append(r.order, a.StoreID())
	}
	r.adapters[a.StoreID()] = a
}

// All returns the registered adapters in registration order.
func (r *Registry) All() []domain.StoreAdapter {
	out := make([]domain.StoreAdapter, 0, len(r.adapters))
	for _, id := range r.order {
		out = append(out, r.adapters[id])
	}
	return out
}

// Get returns the adapter for a store id.
func (r *Registry) Get(storeID string) (domain.StoreAdapter, bool) {
	a, ok := r.adapters[storeID]
	return a, ok
}

// scrapeErr builds the structured error all adapters report through.
func scrapeErr(storeID, origin, reason string, err error) *domain.ScrapeError {
	return &domain.ScrapeError{StoreID: storeID, Origin: origin, Reason: reason, Err: err}
}

// classifyFetchErr maps a transport error onto a scrape reason.
func classifyFetchErr(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ScrapeReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.ScrapeReasonTimeout
	}
	return domain.ScrapeReasonHTTP
}

// classifyStatus maps a non-200 response onto a scrape reason. Client
// statuses other than 429 will fail the same way on a retry, so they are
// reported as rejected rather than a retryable HTTP failure.
func classifyStatus(code int) string {
	if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
		return domain.ScrapeReasonRejected
	}
	return domain.ScrapeReasonHTTP
}

// fetch performs one politeness-gated GET and returns the body. Both the
// robots check and the token acquisition happen before the request; a
// denied origin is reported as ScrapeReasonDenied and must not be retried.
func fetch(ctx context.Context, client *http.Client, gate domain.Gate, storeID, origin, fullURL, userAgent string) ([]byte, *domain.ScrapeError) {
	parsed, err := url.Parse(fullURL)
	if err != nil {
		return nil, scrapeErr(storeID, origin, domain.ScrapeReasonParse, err)
	}
	path := parsed.Path
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}

	if !gate.IsAllowed(ctx, origin, path) {
		return nil, scrapeErr(storeID, origin, domain.ScrapeReasonDenied, domain.ErrPolitenessDenied)
	}
	if err := gate.Acquire(ctx, origin); err != nil {
		return nil, scrapeErr(storeID, origin, classifyFetchErr(err), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, scrapeErr(storeID, origin, domain.ScrapeReasonParse, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, scrapeErr(storeID, origin, classifyFetchErr(err), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, scrapeErr(storeID, origin, classifyFetchErr(err), err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, scrapeErr(storeID, origin, classifyStatus(resp.StatusCode),
			fmt.Errorf("status %d", resp.StatusCode))
	}

	return body, nil
}

// expandSearchPath substitutes the query into a search path template.
func expandSearchPath(template, query string) string {
	return strings.ReplaceAll(template, "{query}", url.QueryEscape(query))
}

// newHTTPClient is the default transport for network adapters. The
// timeout is a safety net under the orchestrator's per-task deadline.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
