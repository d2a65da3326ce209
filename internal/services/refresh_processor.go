package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/debuggin-limited/mflow/internal/core"
	"github.com/debuggin-limited/mflow/internal/storage"
)

// SnapshotStore is the persistence the refresh worker writes to.
type SnapshotStore interface {
	BudgetsByYear(ctx context.Context, year int) ([]core.Budget, error)
	SaveSnapshot(ctx context.Context, rec storage.SnapshotRecord) error
}

// SummaryExporter pushes a computed period summary to an external sink.
type SummaryExporter interface {
	AppendPeriodSummary(ctx context.Context, s core.PeriodSummary) error
}

// RefreshProcessor recomputes and persists dashboard snapshots in response
// to refresh messages and cron ticks.
type RefreshProcessor struct {
	store     SnapshotStore
	dashboard *DashboardService
	exporter  SummaryExporter // nil when export is not configured
	now       func() time.Time
}

func NewRefreshProcessor(store SnapshotStore, dashboard *DashboardService, exporter SummaryExporter) *RefreshProcessor {
	return &RefreshProcessor{
		store:     store,
		dashboard: dashboard,
		exporter:  exporter,
		now:       time.Now,
	}
}

// HandleRefresh recomputes snapshots for the requested year. budgetID 0
// means every budget of that year; a year of 0 means the current year.
// An error here makes the message redeliverable, so only persistence
// failures return one; export failures are logged and dropped.
func (p *RefreshProcessor) HandleRefresh(ctx context.Context, year int, budgetID int64) error {
	if year == 0 {
		year = p.now().Year()
	}

	budgets, err := p.store.BudgetsByYear(ctx, year)
	if err != nil {
		return fmt.Errorf("load budgets for %d: %w", year, err)
	}

	processed := 0
	for _, b := range budgets {
		if budgetID != 0 && b.ID != budgetID {
			continue
		}

		summary, err := p.dashboard.Summary(ctx, b)
		if err != nil {
			return fmt.Errorf("summarize budget %d: %w", b.ID, err)
		}

		if err := p.store.SaveSnapshot(ctx, snapshotRecord(summary)); err != nil {
			return fmt.Errorf("persist snapshot for budget %d: %w", b.ID, err)
		}

		if p.exporter != nil {
			if err := p.exporter.AppendPeriodSummary(ctx, summary); err != nil {
				slog.WarnContext(ctx, "Period summary export failed",
					"budget_id", b.ID,
					"error", err)
			}
		}
		processed++
	}

	if budgetID != 0 && processed == 0 {
		slog.WarnContext(ctx, "Refresh requested for unknown budget",
			"year", year,
			"budget_id", budgetID)
	}

	slog.InfoContext(ctx, "Refresh completed",
		"year", year,
		"budget_id", budgetID,
		"snapshots", processed)
	return nil
}

func snapshotRecord(s core.PeriodSummary) storage.SnapshotRecord {
	rec := storage.SnapshotRecord{
		BudgetID:         s.BudgetID,
		PeriodBillsCents: s.BillsTotal.Cents,
		TotalDebtCents:   s.DebtTotal.Cents,
		ComputedAt:       s.ComputedAt,
	}
	if s.PeriodOK {
		start, end := s.Period.Start, s.Period.End
		rec.PeriodStart = &start
		rec.PeriodEnd = &end
	}
	return rec
}
