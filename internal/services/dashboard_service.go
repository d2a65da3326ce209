// Package services holds the application logic between storage and the
// HTTP/worker surfaces: dashboard snapshot computation and refresh handling.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/debuggin-limited/mflow/internal/core"
	"github.com/debuggin-limited/mflow/internal/period"
)

// DataStore is the persistence the dashboard reads from.
type DataStore interface {
	BudgetsByYear(ctx context.Context, year int) ([]core.Budget, error)
	ActiveDebts(ctx context.Context) ([]core.Debt, error)
	ActiveBills(ctx context.Context) ([]core.Bill, error)
}

// CycleSource provides the user's billing cycle configuration.
type CycleSource interface {
	CycleConfig(ctx context.Context) (period.CycleConfig, error)
}

// fallbackPeriodLabel is shown when the billing cycle cannot be computed.
const fallbackPeriodLabel = "current month"

type BudgetOption struct {
	ID   int64
	Name string
}

type CategoryView struct {
	Name           string
	AllocatedCents int64
	SpentCents     int64
	Percentage     float64
	OverBudget     bool
	BarWidth       int
}

type BillView struct {
	ID                  int64
	Name                string
	Every               core.Frequency
	AmountCents         int64
	PeriodEstimateCents int64
}

// Snapshot is one fully computed dashboard state.
type Snapshot struct {
	Year             int
	Budgets          []BudgetOption
	Selected         *core.Budget
	Categories       []CategoryView
	TotalDebtCents   int64
	PeriodBillsCents int64
	Bills            []BillView
	Period           core.Period
	PeriodOK         bool
	PeriodLabel      string
	ComputedAt       time.Time
}

// DashboardService computes dashboard snapshots. It remembers which budget
// is selected across refreshes; everything else is re-derived every time.
type DashboardService struct {
	store DataStore
	prefs CycleSource
	now   func() time.Time

	mu       sync.Mutex
	selected int64 // 0 = nothing selected
}

func NewDashboardService(store DataStore, prefs CycleSource) *DashboardService {
	return &DashboardService{
		store: store,
		prefs: prefs,
		now:   time.Now,
	}
}

// Select records an explicit budget choice. Resolution against the actual
// budget list happens on the next Compute.
func (s *DashboardService) Select(id int64) {
	s.mu.Lock()
	s.selected = id
	s.mu.Unlock()
}

// Compute builds a snapshot for the given year. Storage failures propagate;
// a failed billing cycle does not, it switches the proration to fallbacks.
func (s *DashboardService) Compute(ctx context.Context, year int) (Snapshot, error) {
	budgets, err := s.store.BudgetsByYear(ctx, year)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load budgets: %w", err)
	}
	debts, err := s.store.ActiveDebts(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load debts: %w", err)
	}
	bills, err := s.store.ActiveBills(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load bills: %w", err)
	}

	p, ok := s.currentPeriod(ctx)

	snap := Snapshot{
		Year:             year,
		Selected:         s.resolveSelection(budgets),
		TotalDebtCents:   core.TotalDebtCents(debts),
		PeriodBillsCents: core.RoundCents(core.PeriodTotalCents(bills, p, ok)).Cents,
		Period:           p,
		PeriodOK:         ok,
		PeriodLabel:      periodLabel(p, ok),
		ComputedAt:       s.now(),
	}

	for _, b := range budgets {
		snap.Budgets = append(snap.Budgets, BudgetOption{ID: b.ID, Name: b.Name})
	}
	if snap.Selected != nil {
		for _, c := range snap.Selected.Categories {
			snap.Categories = append(snap.Categories, CategoryView{
				Name:           c.Name,
				AllocatedCents: c.EffectiveAllocation().Cents,
				SpentCents:     c.Spent.Cents,
				Percentage:     c.Percentage(),
				OverBudget:     c.IsOverBudget(),
				BarWidth:       c.BarWidth(),
			})
		}
	}
	for _, b := range bills {
		snap.Bills = append(snap.Bills, BillView{
			ID:                  b.ID,
			Name:                b.Name,
			Every:               b.Every,
			AmountCents:         b.Amount.Cents,
			PeriodEstimateCents: core.RoundCents(core.BillEstimateCents(b, p, ok)).Cents,
		})
	}

	return snap, nil
}

// Summary computes the exportable roll-up for a single budget, without
// touching the selection state. Used by the refresh worker.
func (s *DashboardService) Summary(ctx context.Context, b core.Budget) (core.PeriodSummary, error) {
	debts, err := s.store.ActiveDebts(ctx)
	if err != nil {
		return core.PeriodSummary{}, fmt.Errorf("load debts: %w", err)
	}
	bills, err := s.store.ActiveBills(ctx)
	if err != nil {
		return core.PeriodSummary{}, fmt.Errorf("load bills: %w", err)
	}

	p, ok := s.currentPeriod(ctx)

	return core.PeriodSummary{
		BudgetID:   b.ID,
		BudgetName: b.Name,
		Period:     p,
		PeriodOK:   ok,
		BillsTotal: core.RoundCents(core.PeriodTotalCents(bills, p, ok)),
		DebtTotal:  core.Money{Cents: core.TotalDebtCents(debts)},
		ComputedAt: s.now(),
	}, nil
}

// currentPeriod resolves the billing cycle. Any failure, config or
// computation, degrades to the fallback instead of propagating.
func (s *DashboardService) currentPeriod(ctx context.Context) (core.Period, bool) {
	cfg, err := s.prefs.CycleConfig(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Billing cycle config unavailable, using fallback", "error", err)
		return core.Period{}, false
	}
	p, err := period.Current(cfg, s.now())
	if err != nil {
		slog.WarnContext(ctx, "Billing cycle computation failed, using fallback", "error", err)
		return core.Period{}, false
	}
	return p, true
}

// resolveSelection applies the selection rules against the fresh budget list:
// an explicit choice wins when it still exists, a vanished choice clears the
// selection, and with nothing selected the first budget is picked.
func (s *DashboardService) resolveSelection(budgets []core.Budget) *core.Budget {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected != 0 {
		for i := range budgets {
			if budgets[i].ID == s.selected {
				return &budgets[i]
			}
		}
		s.selected = 0
		return nil
	}
	if len(budgets) > 0 {
		s.selected = budgets[0].ID
		return &budgets[0]
	}
	return nil
}

func periodLabel(p core.Period, ok bool) string {
	if !ok {
		return fallbackPeriodLabel
	}
	return fmt.Sprintf("%s to %s", p.Start.Format("Jan 2"), p.End.Format("Jan 2, 2006"))
}
