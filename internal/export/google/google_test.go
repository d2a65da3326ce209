package google

import (
	"context"
	"testing"
	"time"

	"github.com/debuggin-limited/mflow/internal/core"
)

func TestBuildSummaryRow(t *testing.T) {
	s := core.PeriodSummary{
		BudgetID:   3,
		BudgetName: "Household",
		Period: core.Period{
			Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		},
		PeriodOK:   true,
		BillsTotal: core.Money{Cents: 150025},
		DebtTotal:  core.Money{Cents: 340000},
		ComputedAt: time.Date(2026, 1, 20, 8, 30, 0, 0, time.UTC),
	}

	row := buildSummaryRow(s)
	if len(row) != 7 {
		t.Fatalf("row has %d columns, want 7", len(row))
	}
	if row[0] != "2026-01-20 08:30:00" {
		t.Errorf("computed at = %v", row[0])
	}
	if row[1] != "Household" {
		t.Errorf("budget name = %v", row[1])
	}
	if row[2] != "2026-01-01" || row[3] != "2026-01-31" {
		t.Errorf("period = %v to %v", row[2], row[3])
	}
	if row[4] != true {
		t.Errorf("period flag = %v", row[4])
	}
	if row[5] != 1500.25 {
		t.Errorf("bills total = %v", row[5])
	}
	if row[6] != 3400.0 {
		t.Errorf("debt total = %v", row[6])
	}
}

func TestBuildSummaryRowFallbackPeriod(t *testing.T) {
	s := core.PeriodSummary{
		BudgetName: "Household",
		PeriodOK:   false,
		BillsTotal: core.Money{Cents: 20825},
		ComputedAt: time.Date(2026, 1, 20, 8, 30, 0, 0, time.UTC),
	}

	row := buildSummaryRow(s)
	if row[2] != "" || row[3] != "" {
		t.Errorf("fallback period should have empty dates, got %v to %v", row[2], row[3])
	}
	if row[4] != false {
		t.Errorf("period flag = %v, want false", row[4])
	}
}

func TestNewFromEnvMissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	if _, err := NewFromEnv(context.Background()); err == nil {
		t.Fatal("expected error without GOOGLE_SPREADSHEET_ID")
	}
}
