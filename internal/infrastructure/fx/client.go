package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/shopsight/backend/internal/domain"
	"github.com/shopsight/backend/internal/infrastructure/cache"
	"github.com/shopsight/backend/pkg/logger"
)

const maxAttempts = 3

// Client fetches exchange rates from an open rates API and converts
// listing amounts into the reference currency. Rate tables are cached for
// the run with TTL; when the live API is unavailable the client falls back
// to a static pinned table and flags the conversion stale.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *rate.Limiter
	rates       *cache.Memory
	ttl         time.Duration
}

// ratesResponse is the wire shape of the open.er-api.com latest endpoint.
type ratesResponse struct {
	Result string             `json:"result"`
	Base   string             `json:"base_code"`
	Rates  map[string]float64 `json:"rates"`
}

// NewClient creates an exchange-rate client backed by the run-scoped cache.
func NewClient(baseURL string, ttl time.Duration, rates *cache.Memory) *Client {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		rateLimiter: rate.NewLimiter(rate.Limit(1), 5),
		rates:       rates,
		ttl:         ttl,
	}
}

// Convert converts amount from one currency to another as of the given
// time. stale is true when the pinned fallback table supplied the rate.
func (c *Client) Convert(ctx context.Context, amount float64, from, to string, asOf time.Time) (float64, float64, bool, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	if from == to {
		return amount, 1.0, false, nil
	}

	r, err := c.liveRate(ctx, from, to)
	if err == nil {
		return amount * r, r, false, nil
	}

	logger.Warn().Str("from", from).Str("to", to).Err(err).Msg("live rate unavailable, trying pinned table")

	if fb, ok := fallbackRate(from, to); ok {
		return amount * fb, fb, true, nil
	}

	return 0, 0, false, fmt.Errorf("%w: %s->%s", domain.ErrRateUnavailable, from, to)
}

// liveRate returns the live conversion rate for a pair, using a cached
// rate table when one is fresh.
func (c *Client) liveRate(ctx context.Context, from, to string) (float64, error) {
	table, err := c.rateTable(ctx, from)
	if err != nil {
		return 0, err
	}

	r, ok := table[to]
	if !ok || r <= 0 {
		return 0, fmt.Errorf("%w: no rate for %s in %s table", domain.ErrRateUnavailable, to, from)
	}
	return r, nil
}

// rateTable fetches the full rate table for a base currency, retrying
// transient failures with exponential backoff.
func (c *Client) rateTable(ctx context.Context, base string) (map[string]float64, error) {
	key := "fx:" + base
	if v, err := c.rates.Get(key); err == nil {
		if table, ok := v.(map[string]float64); ok {
			return table, nil
		}
	}

	reqURL := fmt.Sprintf("%s/v6/latest/%s", c.baseURL, base)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		table, err := c.fetchTable(ctx, reqURL)
		if err == nil {
			c.rates.Set(key, table, c.ttl)
			return table, nil
		}

		lastErr = err
		logger.Debug().Str("base", base).Int("attempt", attempt).Err(err).Msg("rate table fetch failed")

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(exponentialBackoff(attempt)):
			}
		}
	}

	return nil, lastErr
}

// fetchTable performs one HTTP GET of a rate table.
func (c *Client) fetchTable(ctx context.Context, reqURL string) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Shopsight/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRateUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrRateUnavailable, resp.StatusCode)
	}

	var parsed ratesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if parsed.Result != "success" || len(parsed.Rates) == 0 {
		return nil, fmt.Errorf("%w: result %q", domain.ErrRateUnavailable, parsed.Result)
	}

	return parsed.Rates, nil
}

// exponentialBackoff returns the delay before the next retry attempt.
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(250*(1<<(attempt-1))) * time.Millisecond
}
