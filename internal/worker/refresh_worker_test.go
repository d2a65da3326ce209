package worker

import (
	"context"
	"testing"
	"time"

	"github.com/debuggin-limited/mflow/internal/amqp"
	"github.com/debuggin-limited/mflow/internal/core"
	"github.com/debuggin-limited/mflow/internal/period"
	"github.com/debuggin-limited/mflow/internal/services"
	"github.com/debuggin-limited/mflow/internal/storage"
)

type memStore struct {
	budgets []core.Budget
	saved   []storage.SnapshotRecord
}

func (m *memStore) BudgetsByYear(ctx context.Context, year int) ([]core.Budget, error) {
	return m.budgets, nil
}
func (m *memStore) ActiveDebts(ctx context.Context) ([]core.Debt, error) { return nil, nil }
func (m *memStore) ActiveBills(ctx context.Context) ([]core.Bill, error) { return nil, nil }
func (m *memStore) SaveSnapshot(ctx context.Context, rec storage.SnapshotRecord) error {
	m.saved = append(m.saved, rec)
	return nil
}

type staticCycle struct{}

func (staticCycle) CycleConfig(ctx context.Context) (period.CycleConfig, error) {
	return period.DefaultConfig(), nil
}

type fakeSource struct {
	msgs []*amqp.RefreshMessage
}

func (f *fakeSource) ConsumeRefreshWithReconnect(ctx context.Context, handler func(*amqp.RefreshMessage) error) error {
	for _, msg := range f.msgs {
		if err := handler(msg); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func newTestProcessor(store *memStore) *services.RefreshProcessor {
	dash := services.NewDashboardService(store, staticCycle{})
	return services.NewRefreshProcessor(store, dash, nil)
}

func TestRunInvalidCronSpec(t *testing.T) {
	store := &memStore{}
	w := NewRefreshWorker(nil, newTestProcessor(store), "not a cron spec")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := w.Run(ctx); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestRunCronOnlyModeStopsOnCancel(t *testing.T) {
	store := &memStore{budgets: []core.Budget{{ID: 1, Name: "Household", Year: time.Now().Year()}}}
	w := NewRefreshWorker(nil, newTestProcessor(store), "5 0 * * *")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v, want nil on cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}

	// The startup refresh should have produced one snapshot.
	if len(store.saved) != 1 {
		t.Fatalf("saved %d snapshots at startup, want 1", len(store.saved))
	}
}

func TestRunConsumesMessages(t *testing.T) {
	store := &memStore{budgets: []core.Budget{
		{ID: 1, Name: "Household", Year: 2026},
		{ID: 2, Name: "Side projects", Year: 2026},
	}}
	source := &fakeSource{msgs: []*amqp.RefreshMessage{
		amqp.NewRefreshMessage(2026, 2),
	}}
	w := NewRefreshWorker(source, newTestProcessor(store), "5 0 * * *")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}

	// Startup refresh covers both budgets for the current year; the message
	// adds one more snapshot for budget 2.
	var forBudget2 int
	for _, rec := range store.saved {
		if rec.BudgetID == 2 {
			forBudget2++
		}
	}
	if forBudget2 == 0 {
		t.Fatalf("expected a snapshot for budget 2, saved: %+v", store.saved)
	}
}
