package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/debuggin-limited/mflow/internal/core"
	"github.com/debuggin-limited/mflow/internal/services"
)

type fakeProvider struct {
	mu       sync.Mutex
	snap     services.Snapshot
	err      error
	computes int
	selects  []int64
}

func (f *fakeProvider) Compute(ctx context.Context, year int) (services.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.computes++
	if f.err != nil {
		return services.Snapshot{}, f.err
	}
	snap := f.snap
	snap.Year = year
	return snap, nil
}

func (f *fakeProvider) Select(budgetID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selects = append(f.selects, budgetID)
}

type fakePublisher struct {
	mu        sync.Mutex
	err       error
	published [][2]int64
}

func (f *fakePublisher) PublishRefresh(ctx context.Context, year int, budgetID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, [2]int64{int64(year), budgetID})
	return nil
}

func testSnapshot() services.Snapshot {
	selected := core.Budget{ID: 1, Name: "Household", Year: 2026}
	return services.Snapshot{
		Year:     2026,
		Budgets:  []services.BudgetOption{{ID: 1, Name: "Household"}, {ID: 2, Name: "Side projects"}},
		Selected: &selected,
		Categories: []services.CategoryView{
			{Name: "Groceries", AllocatedCents: 50000, SpentCents: 25000, Percentage: 50, BarWidth: 50},
		},
		Bills: []services.BillView{
			{ID: 1, Name: "Rent", Every: core.Monthly, AmountCents: 120000, PeriodEstimateCents: 122205},
		},
		TotalDebtCents:   340000,
		PeriodBillsCents: 150000,
		PeriodOK:         true,
		PeriodLabel:      "Jan 1 to Jan 31, 2026",
		ComputedAt:       time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC),
	}
}

type fakeBills struct {
	mu      sync.Mutex
	err     error
	created []core.Bill
}

func (f *fakeBills) CreateBill(ctx context.Context, b core.Bill) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.created = append(f.created, b)
	return int64(len(f.created)), nil
}

func newTestServer(t *testing.T, provider DashboardProvider, publisher RefreshPublisher) *Server {
	t.Helper()
	return newTestServerWithBills(t, provider, nil, publisher)
}

func newTestServerWithBills(t *testing.T, provider DashboardProvider, bills BillWriter, publisher RefreshPublisher) *Server {
	t.Helper()
	srv := NewServer(":0", provider, bills, publisher, Options{})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func TestIndexAndHealth(t *testing.T) {
	provider := &fakeProvider{snap: testSnapshot()}
	srv := newTestServer(t, provider, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("index status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Household") {
		t.Fatalf("index body missing selected budget: %s", rr.Body.String())
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != 200 {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestIndexComputeError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("db gone")}
	srv := newTestServer(t, provider, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestOverviewSwitchesBudget(t *testing.T) {
	provider := &fakeProvider{snap: testSnapshot()}
	srv := newTestServer(t, provider, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ui/overview?budget=2&year=2026", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("overview status=%d", rr.Code)
	}
	if len(provider.selects) != 1 || provider.selects[0] != 2 {
		t.Fatalf("Select calls = %v, want [2]", provider.selects)
	}

	// Wrong method
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/ui/overview", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestOverviewSnapshotCached(t *testing.T) {
	provider := &fakeProvider{snap: testSnapshot()}
	srv := newTestServer(t, provider, nil)

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ui/overview?year=2026", nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != 200 {
			t.Fatalf("overview status=%d", rr.Code)
		}
	}

	if provider.computes != 1 {
		t.Fatalf("Compute called %d times, want 1 (cached)", provider.computes)
	}
}

func TestRefreshPublishes(t *testing.T) {
	provider := &fakeProvider{snap: testSnapshot()}
	publisher := &fakePublisher{}
	srv := newTestServer(t, provider, publisher)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/refresh", strings.NewReader("year=2026&budget=2"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("refresh status=%d, want 202", rr.Code)
	}
	if len(publisher.published) != 1 || publisher.published[0] != [2]int64{2026, 2} {
		t.Fatalf("published = %v, want [[2026 2]]", publisher.published)
	}

	// Wrong method
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/refresh", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestRefreshPublishFailure(t *testing.T) {
	provider := &fakeProvider{snap: testSnapshot()}
	publisher := &fakePublisher{err: errors.New("broker down")}
	srv := newTestServer(t, provider, publisher)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("refresh status=%d, want 503", rr.Code)
	}
}

func TestRefreshWithoutPublisherInvalidatesCache(t *testing.T) {
	provider := &fakeProvider{snap: testSnapshot()}
	srv := newTestServer(t, provider, nil)

	// Warm the cache.
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ui/overview?year=2026", nil)
	srv.Handler.ServeHTTP(rr, req)
	if provider.computes != 1 {
		t.Fatalf("Compute called %d times after warm-up, want 1", provider.computes)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/refresh", strings.NewReader("year=2026"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("refresh status=%d, want 202", rr.Code)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ui/overview?year=2026", nil)
	srv.Handler.ServeHTTP(rr, req)
	if provider.computes != 2 {
		t.Fatalf("Compute called %d times after refresh, want 2", provider.computes)
	}
}

func TestCreateBillValidationAndSuccess(t *testing.T) {
	provider := &fakeProvider{snap: testSnapshot()}
	bills := &fakeBills{}
	srv := newTestServerWithBills(t, provider, bills, nil)

	post := func(body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/bills", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		srv.Handler.ServeHTTP(rr, req)
		return rr
	}

	// Wrong method
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/bills", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}

	// Invalid amount
	if rr := post("name=Rent&amount=abc&frequency=monthly"); rr.Code != 422 {
		t.Fatalf("expected 422 for bad amount, got %d", rr.Code)
	}

	// Unknown frequency
	if rr := post("name=Rent&amount=12.34&frequency=daily"); rr.Code != 422 {
		t.Fatalf("expected 422 for bad frequency, got %d", rr.Code)
	}

	// Missing name
	if rr := post("name=&amount=12.34&frequency=monthly"); rr.Code != 422 {
		t.Fatalf("expected 422 for empty name, got %d", rr.Code)
	}

	// Success
	rr = post("name=Rent&amount=12.34&frequency=monthly")
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "success") {
		t.Fatalf("expected success in body: %s", rr.Body.String())
	}
	if len(bills.created) != 1 {
		t.Fatalf("created %d bills, want 1", len(bills.created))
	}
	got := bills.created[0]
	if got.Name != "Rent" || got.Amount.Cents != 1234 || got.Every != core.Monthly || got.Status != core.BillActive {
		t.Fatalf("created bill = %+v", got)
	}
}

func TestCreateBillClearsSnapshotCache(t *testing.T) {
	provider := &fakeProvider{snap: testSnapshot()}
	bills := &fakeBills{}
	srv := newTestServerWithBills(t, provider, bills, nil)

	// Warm the cache.
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ui/overview?year=2026", nil)
	srv.Handler.ServeHTTP(rr, req)
	if provider.computes != 1 {
		t.Fatalf("Compute called %d times after warm-up, want 1", provider.computes)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/bills", strings.NewReader("name=Gym&amount=30&frequency=monthly"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("bill create status=%d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ui/overview?year=2026", nil)
	srv.Handler.ServeHTTP(rr, req)
	if provider.computes != 2 {
		t.Fatalf("Compute called %d times after bill create, want 2", provider.computes)
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	provider := &fakeProvider{snap: testSnapshot()}
	srv := newTestServer(t, provider, nil)

	// All requests come from httptest's fixed RemoteAddr, so the per-IP
	// budget applies across the loop.
	for i := 0; i < 60; i++ {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusAccepted {
			t.Fatalf("request %d status=%d, want 202", i+1, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("request 61 status=%d, want 429", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("Retry-After = %q, want 60", got)
	}
	if hits := atomic.LoadInt64(&srv.metrics.rateLimitHits); hits != 1 {
		t.Fatalf("rate limit hits = %d, want 1", hits)
	}

	// Reads stay unthrottled.
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ui/overview?year=2026", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("read after limit status=%d, want 200", rr.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	provider := &fakeProvider{snap: testSnapshot()}
	srv := newTestServer(t, provider, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	srv.Handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options = %q", got)
	}
}
