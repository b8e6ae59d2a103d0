package usecase

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopsight/backend/internal/domain"
)

// stubAdapter is a scriptable in-memory store adapter.
type stubAdapter struct {
	id       string
	listings []domain.Listing
	err      error
	failures int32 // fail this many calls before succeeding
	calls    int32
	delay    time.Duration
}

func (s *stubAdapter) StoreID() string { return s.id }
func (s *stubAdapter) Origin() string  { return "https://" + s.id + ".example" }

func (s *stubAdapter) Search(ctx context.Context, query domain.ProductQuery) ([]domain.Listing, error) {
	call := atomic.AddInt32(&s.calls, 1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil && (s.failures == 0 || call <= s.failures) {
		return nil, s.err
	}
	out := make([]domain.Listing, len(s.listings))
	copy(out, s.listings)
	for i := range out {
		out[i].StoreID = s.id
		out[i].ListingID = s.id + ":" + query.ProductID
	}
	return out, nil
}

// enrichingAdapter decorates listings with a detail attribute.
type enrichingAdapter struct {
	stubAdapter
	enrichErr error
}

func (e *enrichingAdapter) Enrich(ctx context.Context, listing domain.Listing) (domain.Listing, error) {
	if e.enrichErr != nil {
		return domain.Listing{}, e.enrichErr
	}
	enriched := listing
	enriched.Attributes = map[string]string{"grams": "350"}
	return enriched, nil
}

func transientErr(storeID string) *domain.ScrapeError {
	return &domain.ScrapeError{StoreID: storeID, Reason: domain.ScrapeReasonHTTP, Err: errors.New("status 502")}
}

func deniedErr(storeID string) *domain.ScrapeError {
	return &domain.ScrapeError{StoreID: storeID, Reason: domain.ScrapeReasonDenied, Err: domain.ErrPolitenessDenied}
}

func TestOrchestrator_FanOut(t *testing.T) {
	orch := NewOrchestrator(OrchestratorConfig{Concurrency: 4, TaskTimeout: time.Second, MaxRetries: 1})

	baseListing := domain.Listing{Title: "Ceramic Travel Mug", Price: 19.99, Currency: "USD"}
	adapters := []domain.StoreAdapter{
		&stubAdapter{id: "store-a", listings: []domain.Listing{baseListing}},
		&stubAdapter{id: "store-b", listings: []domain.Listing{baseListing, baseListing}},
	}
	products := []domain.CatalogueProduct{
		testProduct("p1", "Ceramic Travel Mug", "", 20),
		testProduct("p2", "Linen Shirt", "", 40),
	}

	listings, scrapeErrs := orch.Run(context.Background(), products, adapters)

	if len(scrapeErrs) != 0 {
		t.Fatalf("expected no scrape errors, got %v", scrapeErrs)
	}
	// 2 products x (1 + 2 listings)
	if len(listings) != 6 {
		t.Fatalf("expected 6 listings, got %d", len(listings))
	}
	perStore := map[string]int{}
	for _, l := range listings {
		perStore[l.StoreID]++
	}
	if perStore["store-a"] != 2 || perStore["store-b"] != 4 {
		t.Errorf("unexpected per-store counts: %v", perStore)
	}
}

func TestOrchestrator_FailureIsolation(t *testing.T) {
	orch := NewOrchestrator(OrchestratorConfig{Concurrency: 2, TaskTimeout: time.Second, MaxRetries: 1})

	good := &stubAdapter{id: "store-a", listings: []domain.Listing{{Title: "Mug", Price: 10, Currency: "USD"}}}
	bad := &stubAdapter{id: "store-b", err: deniedErr("store-b")}

	listings, scrapeErrs := orch.Run(context.Background(),
		[]domain.CatalogueProduct{testProduct("p1", "Mug", "", 12)},
		[]domain.StoreAdapter{good, bad})

	if len(listings) != 1 {
		t.Errorf("expected the healthy store's listing, got %d", len(listings))
	}
	if len(scrapeErrs) != 1 {
		t.Fatalf("expected one scrape error, got %d", len(scrapeErrs))
	}
	if scrapeErrs[0].StoreID != "store-b" || scrapeErrs[0].Reason != domain.ScrapeReasonDenied {
		t.Errorf("unexpected scrape error: %+v", scrapeErrs[0])
	}
}

func TestOrchestrator_Retries(t *testing.T) {
	t.Run("transient failures retried", func(t *testing.T) {
		orch := NewOrchestrator(OrchestratorConfig{Concurrency: 1, TaskTimeout: time.Second, MaxRetries: 2})
		flaky := &stubAdapter{
			id:       "store-a",
			listings: []domain.Listing{{Title: "Mug", Price: 10, Currency: "USD"}},
			err:      transientErr("store-a"),
			failures: 1,
		}

		listings, scrapeErrs := orch.Run(context.Background(),
			[]domain.CatalogueProduct{testProduct("p1", "Mug", "", 12)},
			[]domain.StoreAdapter{flaky})

		if len(scrapeErrs) != 0 {
			t.Fatalf("expected recovery on retry, got %v", scrapeErrs)
		}
		if len(listings) != 1 {
			t.Errorf("expected 1 listing after retry, got %d", len(listings))
		}
		if got := atomic.LoadInt32(&flaky.calls); got != 2 {
			t.Errorf("expected 2 attempts, got %d", got)
		}
	})

	t.Run("permanent failures not retried", func(t *testing.T) {
		orch := NewOrchestrator(OrchestratorConfig{Concurrency: 1, TaskTimeout: time.Second, MaxRetries: 3})
		denied := &stubAdapter{id: "store-a", err: deniedErr("store-a")}

		_, scrapeErrs := orch.Run(context.Background(),
			[]domain.CatalogueProduct{testProduct("p1", "Mug", "", 12)},
			[]domain.StoreAdapter{denied})

		if len(scrapeErrs) != 1 {
			t.Fatalf("expected one scrape error, got %d", len(scrapeErrs))
		}
		if got := atomic.LoadInt32(&denied.calls); got != 1 {
			t.Errorf("expected a single attempt, got %d", got)
		}
	})
}

func TestOrchestrator_TaskTimeout(t *testing.T) {
	orch := NewOrchestrator(OrchestratorConfig{Concurrency: 1, TaskTimeout: 30 * time.Millisecond, MaxRetries: 1})
	slow := &stubAdapter{
		id:       "store-a",
		listings: []domain.Listing{{Title: "Mug", Price: 10, Currency: "USD"}},
		delay:    500 * time.Millisecond,
	}

	_, scrapeErrs := orch.Run(context.Background(),
		[]domain.CatalogueProduct{testProduct("p1", "Mug", "", 12)},
		[]domain.StoreAdapter{slow})

	if len(scrapeErrs) != 1 {
		t.Fatalf("expected a timeout scrape error, got %d", len(scrapeErrs))
	}
	if scrapeErrs[0].Reason != domain.ScrapeReasonTimeout {
		t.Errorf("expected timeout reason, got %s", scrapeErrs[0].Reason)
	}
}

func TestOrchestrator_Enrichment(t *testing.T) {
	t.Run("success merges attributes", func(t *testing.T) {
		orch := NewOrchestrator(OrchestratorConfig{Concurrency: 1, TaskTimeout: time.Second, MaxRetries: 1})
		adapter := &enrichingAdapter{stubAdapter: stubAdapter{
			id:       "store-a",
			listings: []domain.Listing{{Title: "Mug", Price: 10, Currency: "USD"}},
		}}

		listings, _ := orch.Run(context.Background(),
			[]domain.CatalogueProduct{testProduct("p1", "Mug", "", 12)},
			[]domain.StoreAdapter{adapter})

		if len(listings) != 1 {
			t.Fatalf("expected 1 listing, got %d", len(listings))
		}
		if listings[0].Attributes["grams"] != "350" {
			t.Errorf("expected enriched attribute, got %v", listings[0].Attributes)
		}
	})

	t.Run("failure keeps the original listing", func(t *testing.T) {
		orch := NewOrchestrator(OrchestratorConfig{Concurrency: 1, TaskTimeout: time.Second, MaxRetries: 1})
		adapter := &enrichingAdapter{
			stubAdapter: stubAdapter{
				id:       "store-a",
				listings: []domain.Listing{{Title: "Mug", Price: 10, Currency: "USD"}},
			},
			enrichErr: errors.New("detail page gone"),
		}

		listings, scrapeErrs := orch.Run(context.Background(),
			[]domain.CatalogueProduct{testProduct("p1", "Mug", "", 12)},
			[]domain.StoreAdapter{adapter})

		if len(scrapeErrs) != 0 {
			t.Fatalf("enrichment failure must not fail the task: %v", scrapeErrs)
		}
		if len(listings) != 1 || listings[0].Attributes != nil {
			t.Errorf("expected the bare listing, got %+v", listings)
		}
	})
}

func TestOrchestrator_Cancellation(t *testing.T) {
	orch := NewOrchestrator(OrchestratorConfig{Concurrency: 1, TaskTimeout: time.Second, MaxRetries: 1})
	slow := &stubAdapter{
		id:       "store-a",
		listings: []domain.Listing{{Title: "Mug", Price: 10, Currency: "USD"}},
		delay:    50 * time.Millisecond,
	}

	products := make([]domain.CatalogueProduct, 20)
	for i := range products {
		products[i] = testProduct("p"+strings.Repeat("x", i+1), "Mug", "", 12)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(75 * time.Millisecond)
		cancel()
	}()

	listings, _ := orch.Run(ctx, products, []domain.StoreAdapter{slow})

	if len(listings) >= len(products) {
		t.Errorf("expected dispatch to stop on cancellation, got %d listings", len(listings))
	}
}

func TestRetryBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
	}
	for _, tt := range tests {
		if got := retryBackoff(tt.attempt); got != tt.want {
			t.Errorf("retryBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
