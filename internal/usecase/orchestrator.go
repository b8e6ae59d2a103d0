package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopsight/backend/internal/domain"
	"github.com/shopsight/backend/internal/infrastructure/store"
	"github.com/shopsight/backend/pkg/logger"
)

// OrchestratorConfig holds fan-out settings for a scrape run.
type OrchestratorConfig struct {
	Concurrency int
	TaskTimeout time.Duration
	MaxRetries  int
}

// Orchestrator dispatches one scrape task per (product, adapter) pair on a
// bounded worker pool. Failures are isolated per task; partial results
// remain usable and cancellation stops dispatch while keeping what was
// already collected.
type Orchestrator struct {
	concurrency int
	taskTimeout time.Duration
	maxRetries  int
}

type scrapeTask struct {
	query   domain.ProductQuery
	adapter domain.StoreAdapter
}

type taskResult struct {
	listings []domain.Listing
	err      *domain.ScrapeError
}

// NewOrchestrator creates a scrape orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	timeout := cfg.TaskTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}

	return &Orchestrator{
		concurrency: concurrency,
		taskTimeout: timeout,
		maxRetries:  retries,
	}
}

// Run scrapes all adapters for all products and fans results back in.
// There is no ordering guarantee on listing arrival.
func (o *Orchestrator) Run(ctx context.Context, products []domain.CatalogueProduct, adapters []domain.StoreAdapter) ([]domain.Listing, []domain.ScrapeError) {
	tasks := make(chan scrapeTask)
	results := make(chan taskResult)

	var wg sync.WaitGroup
	for i := 0; i < o.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				results <- o.execute(ctx, task)
			}
		}()
	}

	// Dispatcher stops feeding as soon as the run is cancelled.
	go func() {
		defer close(tasks)
		for _, p := range products {
			query := store.BuildQuery(p)
			for _, adapter := range adapters {
				select {
				case tasks <- scrapeTask{query: query, adapter: adapter}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var listings []domain.Listing
	var scrapeErrs []domain.ScrapeError
	for r := range results {
		listings = append(listings, r.listings...)
		if r.err != nil {
			scrapeErrs = append(scrapeErrs, *r.err)
		}
	}

	return listings, scrapeErrs
}

// execute runs one task with a per-task timeout, retrying transient
// failures with exponential backoff. Politeness denials and parse errors
// are never retried.
func (o *Orchestrator) execute(ctx context.Context, task scrapeTask) taskResult {
	var lastErr *domain.ScrapeError

	for attempt := 1; attempt <= o.maxRetries; attempt++ {
		taskCtx, cancel := context.WithTimeout(ctx, o.taskTimeout)
		listings, err := task.adapter.Search(taskCtx, task.query)
		if err == nil {
			listings = o.enrich(taskCtx, task.adapter, listings)
			cancel()
			return taskResult{listings: listings}
		}
		cancel()

		lastErr = asScrapeError(task.adapter, err)
		if !lastErr.Transient() {
			break
		}

		logger.Debug().
			Str("store", task.adapter.StoreID()).
			Str("product", task.query.ProductID).
			Int("attempt", attempt).
			Err(err).
			Msg("scrape attempt failed")

		if attempt < o.maxRetries {
			select {
			case <-ctx.Done():
				return taskResult{err: lastErr}
			case <-time.After(retryBackoff(attempt)):
			}
		}
	}

	return taskResult{err: lastErr}
}

// enrich adds detail-page fields when the adapter supports it. Enrichment
// failure keeps the original listing; it never fails the task.
func (o *Orchestrator) enrich(ctx context.Context, adapter domain.StoreAdapter, listings []domain.Listing) []domain.Listing {
	enricher, ok := adapter.(domain.Enricher)
	if !ok {
		return listings
	}

	out := make([]domain.Listing, 0, len(listings))
	for _, l := range listings {
		enriched, err := enricher.Enrich(ctx, l)
		if err != nil {
			logger.Debug().Str("store", adapter.StoreID()).Str("listing", l.ListingID).Err(err).Msg("enrich failed")
			out = append(out, l)
			continue
		}
		out = append(out, enriched)
	}
	return out
}

// asScrapeError normalizes any adapter error into a ScrapeError. Adapters
// wrap at their boundary; anything else is treated as non-retryable.
func asScrapeError(adapter domain.StoreAdapter, err error) *domain.ScrapeError {
	var serr *domain.ScrapeError
	if errors.As(err, &serr) {
		return serr
	}

	reason := domain.ScrapeReasonParse
	if errors.Is(err, context.DeadlineExceeded) {
		reason = domain.ScrapeReasonTimeout
	}
	return &domain.ScrapeError{
		StoreID: adapter.StoreID(),
		Origin:  adapter.Origin(),
		Reason:  reason,
		Err:     err,
	}
}

// retryBackoff returns the delay before the next retry attempt.
func retryBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}
