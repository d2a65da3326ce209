// Package storage persists budgets, debts, bills, settings, and computed
// dashboard snapshots in a local SQLite database.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/debuggin-limited/mflow/internal/core"

	_ "modernc.org/sqlite"
)

// dateLayout is how snapshot period boundaries are stored.
const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateBudget inserts a budget and returns it with its assigned ID.
func (r *SQLiteRepository) CreateBudget(ctx context.Context, name string, year int) (core.Budget, error) {
	b, err := r.queries.CreateBudget(ctx, CreateBudgetParams{Name: name, Year: int64(year)})
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}

	slog.InfoContext(ctx, "Budget created", "id", b.ID, "name", b.Name, "year", b.Year)

	return core.Budget{ID: b.ID, Name: b.Name, Year: int(b.Year)}, nil
}

// AddCategory attaches a category to a budget.
func (r *SQLiteRepository) AddCategory(ctx context.Context, budgetID int64, c core.Category) error {
	var periodAlloc sql.NullInt64
	if c.PeriodAllocated != nil {
		periodAlloc = sql.NullInt64{Int64: c.PeriodAllocated.Cents, Valid: true}
	}

	_, err := r.queries.CreateCategory(ctx, CreateCategoryParams{
		BudgetID:             budgetID,
		Name:                 c.Name,
		AllocatedCents:       c.Allocated.Cents,
		PeriodAllocatedCents: periodAlloc,
		SpentCents:           c.Spent.Cents,
	})
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// UpdateCategorySpent overwrites a category's spent amount.
func (r *SQLiteRepository) UpdateCategorySpent(ctx context.Context, budgetID int64, name string, spent core.Money) error {
	err := r.queries.UpdateCategorySpent(ctx, UpdateCategorySpentParams{
		SpentCents: spent.Cents,
		BudgetID:   budgetID,
		Name:       name,
	})
	if err != nil {
		return fmt.Errorf("update category spent: %w", err)
	}
	return nil
}

// BudgetsByYear returns all budgets for the year with their categories,
// ordered by insertion. No budgets is an empty slice, not an error.
func (r *SQLiteRepository) BudgetsByYear(ctx context.Context, year int) ([]core.Budget, error) {
	rows, err := r.queries.GetBudgetsByYear(ctx, int64(year))
	if err != nil {
		return nil, fmt.Errorf("get budgets by year: %w", err)
	}

	budgets := make([]core.Budget, 0, len(rows))
	for _, b := range rows {
		cats, err := r.queries.GetCategoriesByBudget(ctx, b.ID)
		if err != nil {
			return nil, fmt.Errorf("get categories for budget %d: %w", b.ID, err)
		}

		budget := core.Budget{ID: b.ID, Name: b.Name, Year: int(b.Year)}
		for _, c := range cats {
			cat := core.Category{
				Name:      c.Name,
				Allocated: core.Money{Cents: c.AllocatedCents},
				Spent:     core.Money{Cents: c.SpentCents},
			}
			if c.PeriodAllocatedCents.Valid {
				cat.PeriodAllocated = &core.Money{Cents: c.PeriodAllocatedCents.Int64}
			}
			budget.Categories = append(budget.Categories, cat)
		}
		budgets = append(budgets, budget)
	}
	return budgets, nil
}

func (r *SQLiteRepository) CreateDebt(ctx context.Context, d core.Debt) (int64, error) {
	if err := d.Validate(); err != nil {
		return 0, err
	}
	status := d.Status
	if status == "" {
		status = core.DebtActive
	}

	row, err := r.queries.CreateDebt(ctx, CreateDebtParams{
		Name:                d.Name,
		CurrentBalanceCents: d.CurrentBalance.Cents,
		Status:              string(status),
	})
	if err != nil {
		return 0, fmt.Errorf("create debt: %w", err)
	}
	return row.ID, nil
}

// ActiveDebts returns debts with status active. None is an empty slice.
func (r *SQLiteRepository) ActiveDebts(ctx context.Context) ([]core.Debt, error) {
	rows, err := r.queries.GetActiveDebts(ctx)
	if err != nil {
		return nil, fmt.Errorf("get active debts: %w", err)
	}

	debts := make([]core.Debt, len(rows))
	for i, d := range rows {
		debts[i] = core.Debt{
			ID:             d.ID,
			Name:           d.Name,
			CurrentBalance: core.Money{Cents: d.CurrentBalanceCents},
			Status:         core.DebtStatus(d.Status),
		}
	}
	return debts, nil
}

// MarkDebtPaid flips a debt to paid so it no longer counts in the total.
func (r *SQLiteRepository) MarkDebtPaid(ctx context.Context, id int64) error {
	err := r.queries.SetDebtStatus(ctx, SetDebtStatusParams{Status: string(core.DebtPaid), ID: id})
	if err != nil {
		return fmt.Errorf("mark debt paid: %w", err)
	}

	slog.InfoContext(ctx, "Debt marked as paid", "id", id)
	return nil
}

func (r *SQLiteRepository) CreateBill(ctx context.Context, b core.Bill) (int64, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}
	status := b.Status
	if status == "" {
		status = core.BillActive
	}

	row, err := r.queries.CreateBill(ctx, CreateBillParams{
		Name:        b.Name,
		AmountCents: b.Amount.Cents,
		Frequency:   string(b.Every),
		Status:      string(status),
	})
	if err != nil {
		return 0, fmt.Errorf("create bill: %w", err)
	}
	return row.ID, nil
}

// ActiveBills returns bills with status active. None is an empty slice.
func (r *SQLiteRepository) ActiveBills(ctx context.Context) ([]core.Bill, error) {
	rows, err := r.queries.GetActiveBills(ctx)
	if err != nil {
		return nil, fmt.Errorf("get active bills: %w", err)
	}

	bills := make([]core.Bill, len(rows))
	for i, b := range rows {
		bills[i] = core.Bill{
			ID:     b.ID,
			Name:   b.Name,
			Amount: core.Money{Cents: b.AmountCents},
			Every:  core.Frequency(b.Frequency),
			Status: core.BillStatus(b.Status),
		}
	}
	return bills, nil
}

// DeactivateBill removes a bill from proration without deleting its history.
func (r *SQLiteRepository) DeactivateBill(ctx context.Context, id int64) error {
	err := r.queries.SetBillStatus(ctx, SetBillStatusParams{Status: string(core.BillInactive), ID: id})
	if err != nil {
		return fmt.Errorf("deactivate bill: %w", err)
	}
	return nil
}

// GetSetting implements prefs.Store. A missing key is (found=false), not an error.
func (r *SQLiteRepository) GetSetting(ctx context.Context, key string) (string, bool, error) {
	value, err := r.queries.GetSetting(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting implements prefs.Store.
func (r *SQLiteRepository) SetSetting(ctx context.Context, key, value string) error {
	if err := r.queries.UpsertSetting(ctx, UpsertSettingParams{Key: key, Value: value}); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// SnapshotRecord is one persisted dashboard computation. Period boundaries
// are nil when the snapshot was computed under the period-failure fallback.
type SnapshotRecord struct {
	BudgetID         int64
	PeriodStart      *time.Time
	PeriodEnd        *time.Time
	PeriodBillsCents int64
	TotalDebtCents   int64
	ComputedAt       time.Time
}

func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, rec SnapshotRecord) error {
	row, err := r.queries.InsertSnapshot(ctx, InsertSnapshotParams{
		BudgetID:         rec.BudgetID,
		PeriodStart:      nullDate(rec.PeriodStart),
		PeriodEnd:        nullDate(rec.PeriodEnd),
		PeriodBillsCents: rec.PeriodBillsCents,
		TotalDebtCents:   rec.TotalDebtCents,
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot saved",
		"id", row.ID,
		"budget_id", row.BudgetID,
		"period_bills_cents", row.PeriodBillsCents,
		"total_debt_cents", row.TotalDebtCents)
	return nil
}

// LatestSnapshot returns the most recent snapshot for the budget, or nil
// when none exists yet.
func (r *SQLiteRepository) LatestSnapshot(ctx context.Context, budgetID int64) (*SnapshotRecord, error) {
	row, err := r.queries.GetLatestSnapshot(ctx, budgetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}

	rec := SnapshotRecord{
		BudgetID:         row.BudgetID,
		PeriodBillsCents: row.PeriodBillsCents,
		TotalDebtCents:   row.TotalDebtCents,
		ComputedAt:       row.ComputedAt,
	}
	if t, ok := parseDate(row.PeriodStart); ok {
		rec.PeriodStart = &t
	}
	if t, ok := parseDate(row.PeriodEnd); ok {
		rec.PeriodEnd = &t
	}
	return &rec, nil
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}

func parseDate(s sql.NullString) (time.Time, bool) {
	if !s.Valid {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
