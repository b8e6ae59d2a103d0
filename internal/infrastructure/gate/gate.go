package gate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"

	"github.com/shopsight/backend/internal/infrastructure/cache"
	"github.com/shopsight/backend/pkg/logger"
)

// Config holds politeness-gate settings.
type Config struct {
	RatePerSec float64
	Burst      int
	RobotsTTL  time.Duration
	UserAgent  string
}

// PolitenessGate enforces a per-origin token bucket and robots-exclusion
// compliance. The limiter map is the only state mutated concurrently
// across scrape tasks; it is guarded by a mutex and each limiter is
// internally synchronized.
type PolitenessGate struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	ratePerSec rate.Limit
	burst      int

	httpClient *http.Client
	robots     *cache.Memory
	robotsTTL  time.Duration
	userAgent  string
}

// robotsEntry is what the robots cache stores per origin. A nil data field
// marks a fetch failure; the gate fails closed for that origin until the
// entry expires.
type robotsEntry struct {
	data *robotstxt.RobotsData
}

// New creates a politeness gate backed by the given run-scoped cache.
func New(cfg Config, robots *cache.Memory) *PolitenessGate {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1.0
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	ttl := cfg.RobotsTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &PolitenessGate{
		limiters:   make(map[string]*rate.Limiter),
		ratePerSec: rate.Limit(rps),
		burst:      burst,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		robots:    robots,
		robotsTTL: ttl,
		userAgent: cfg.UserAgent,
	}
}

// Acquire blocks until the origin's bucket grants a token or the context
// is cancelled.
func (g *PolitenessGate) Acquire(ctx context.Context, origin string) error {
	return g.limiter(origin).Wait(ctx)
}

// IsAllowed reports whether the origin's robots policy permits the path.
// Robots data is fetched once per origin per run and cached with TTL.
// When the data cannot be fetched the gate fails closed: the origin is
// disallowed and adapters must skip it.
func (g *PolitenessGate) IsAllowed(ctx context.Context, origin, path string) bool {
	entry := g.rules(ctx, origin)
	if entry == nil || entry.data == nil {
		return false
	}
	if path == "" {
		path = "/"
	}
	return entry.data.FindGroup(g.userAgent).Test(path)
}

// limiter returns the token bucket for an origin, creating it on first use.
func (g *PolitenessGate) limiter(origin string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	l, ok := g.limiters[origin]
	if !ok {
		l = rate.NewLimiter(g.ratePerSec, g.burst)
		g.limiters[origin] = l
	}
	return l
}

// rules returns the cached robots entry for an origin, fetching on miss.
// A fetch that failed because the caller's context ended is not cached,
// so the next task with a live context re-probes the origin.
func (g *PolitenessGate) rules(ctx context.Context, origin string) *robotsEntry {
	key := "robots:" + origin
	if v, err := g.robots.Get(key); err == nil {
		if entry, ok := v.(*robotsEntry); ok {
			return entry
		}
	}

	entry := g.fetchRobots(ctx, origin)
	if entry.data == nil && ctx.Err() != nil {
		return entry
	}
	g.robots.Set(key, entry, g.robotsTTL)
	return entry
}

// fetchRobots retrieves and parses {origin}/robots.txt. The fetch itself
// consumes a token so the gate stays polite even when probing policy.
func (g *PolitenessGate) fetchRobots(ctx context.Context, origin string) *robotsEntry {
	if err := g.limiter(origin).Wait(ctx); err != nil {
		return &robotsEntry{}
	}

	reqURL := fmt.Sprintf("%s/robots.txt", origin)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &robotsEntry{}
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		logger.Warn().Str("origin", origin).Err(err).Msg("robots fetch failed, failing closed")
		return &robotsEntry{}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Warn().Str("origin", origin).Err(err).Msg("robots read failed, failing closed")
		return &robotsEntry{}
	}

	// 4xx means no policy is published (allow all); 5xx means we could not
	// determine the policy, so fail closed.
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		logger.Warn().Str("origin", origin).Int("status", resp.StatusCode).Err(err).Msg("robots parse failed, failing closed")
		return &robotsEntry{}
	}

	return &robotsEntry{data: data}
}
