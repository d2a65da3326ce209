package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is the subset of *sql.DB / *sql.Tx the query layer needs.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

type Budget struct {
	ID        int64
	Name      string
	Year      int64
	CreatedAt time.Time
}

type BudgetCategory struct {
	ID                   int64
	BudgetID             int64
	Name                 string
	AllocatedCents       int64
	PeriodAllocatedCents sql.NullInt64
	SpentCents           int64
}

type Debt struct {
	ID                  int64
	Name                string
	CurrentBalanceCents int64
	Status              string
}

type Bill struct {
	ID          int64
	Name        string
	AmountCents int64
	Frequency   string
	Status      string
}

type Snapshot struct {
	ID               int64
	BudgetID         int64
	PeriodStart      sql.NullString
	PeriodEnd        sql.NullString
	PeriodBillsCents int64
	TotalDebtCents   int64
	ComputedAt       time.Time
}

type CreateBudgetParams struct {
	Name string
	Year int64
}

func (q *Queries) CreateBudget(ctx context.Context, arg CreateBudgetParams) (Budget, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO budgets (name, year)
		VALUES (?, ?)
		RETURNING id, name, year, created_at`,
		arg.Name, arg.Year)
	var b Budget
	err := row.Scan(&b.ID, &b.Name, &b.Year, &b.CreatedAt)
	return b, err
}

func (q *Queries) GetBudgetsByYear(ctx context.Context, year int64) ([]Budget, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, name, year, created_at
		FROM budgets
		WHERE year = ?
		ORDER BY id`,
		year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var budgets []Budget
	for rows.Next() {
		var b Budget
		if err := rows.Scan(&b.ID, &b.Name, &b.Year, &b.CreatedAt); err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

type CreateCategoryParams struct {
	BudgetID             int64
	Name                 string
	AllocatedCents       int64
	PeriodAllocatedCents sql.NullInt64
	SpentCents           int64
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (BudgetCategory, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO budget_categories (budget_id, name, allocated_cents, period_allocated_cents, spent_cents)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id, budget_id, name, allocated_cents, period_allocated_cents, spent_cents`,
		arg.BudgetID, arg.Name, arg.AllocatedCents, arg.PeriodAllocatedCents, arg.SpentCents)
	var c BudgetCategory
	err := row.Scan(&c.ID, &c.BudgetID, &c.Name, &c.AllocatedCents, &c.PeriodAllocatedCents, &c.SpentCents)
	return c, err
}

func (q *Queries) GetCategoriesByBudget(ctx context.Context, budgetID int64) ([]BudgetCategory, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, budget_id, name, allocated_cents, period_allocated_cents, spent_cents
		FROM budget_categories
		WHERE budget_id = ?
		ORDER BY id`,
		budgetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []BudgetCategory
	for rows.Next() {
		var c BudgetCategory
		if err := rows.Scan(&c.ID, &c.BudgetID, &c.Name, &c.AllocatedCents, &c.PeriodAllocatedCents, &c.SpentCents); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

type UpdateCategorySpentParams struct {
	SpentCents int64
	BudgetID   int64
	Name       string
}

func (q *Queries) UpdateCategorySpent(ctx context.Context, arg UpdateCategorySpentParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE budget_categories
		SET spent_cents = ?
		WHERE budget_id = ? AND name = ?`,
		arg.SpentCents, arg.BudgetID, arg.Name)
	return err
}

type CreateDebtParams struct {
	Name                string
	CurrentBalanceCents int64
	Status              string
}

func (q *Queries) CreateDebt(ctx context.Context, arg CreateDebtParams) (Debt, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO debts (name, current_balance_cents, status)
		VALUES (?, ?, ?)
		RETURNING id, name, current_balance_cents, status`,
		arg.Name, arg.CurrentBalanceCents, arg.Status)
	var d Debt
	err := row.Scan(&d.ID, &d.Name, &d.CurrentBalanceCents, &d.Status)
	return d, err
}

func (q *Queries) GetActiveDebts(ctx context.Context) ([]Debt, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, name, current_balance_cents, status
		FROM debts
		WHERE status = 'active'
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var debts []Debt
	for rows.Next() {
		var d Debt
		if err := rows.Scan(&d.ID, &d.Name, &d.CurrentBalanceCents, &d.Status); err != nil {
			return nil, err
		}
		debts = append(debts, d)
	}
	return debts, rows.Err()
}

type SetDebtStatusParams struct {
	Status string
	ID     int64
}

func (q *Queries) SetDebtStatus(ctx context.Context, arg SetDebtStatusParams) error {
	_, err := q.db.ExecContext(ctx, `UPDATE debts SET status = ? WHERE id = ?`, arg.Status, arg.ID)
	return err
}

type CreateBillParams struct {
	Name        string
	AmountCents int64
	Frequency   string
	Status      string
}

func (q *Queries) CreateBill(ctx context.Context, arg CreateBillParams) (Bill, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO bills (name, amount_cents, frequency, status)
		VALUES (?, ?, ?, ?)
		RETURNING id, name, amount_cents, frequency, status`,
		arg.Name, arg.AmountCents, arg.Frequency, arg.Status)
	var b Bill
	err := row.Scan(&b.ID, &b.Name, &b.AmountCents, &b.Frequency, &b.Status)
	return b, err
}

func (q *Queries) GetActiveBills(ctx context.Context) ([]Bill, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, name, amount_cents, frequency, status
		FROM bills
		WHERE status = 'active'
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bills []Bill
	for rows.Next() {
		var b Bill
		if err := rows.Scan(&b.ID, &b.Name, &b.AmountCents, &b.Frequency, &b.Status); err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

type SetBillStatusParams struct {
	Status string
	ID     int64
}

func (q *Queries) SetBillStatus(ctx context.Context, arg SetBillStatusParams) error {
	_, err := q.db.ExecContext(ctx, `UPDATE bills SET status = ? WHERE id = ?`, arg.Status, arg.ID)
	return err
}

func (q *Queries) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := q.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	return value, err
}

type UpsertSettingParams struct {
	Key   string
	Value string
}

func (q *Queries) UpsertSetting(ctx context.Context, arg UpsertSettingParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		arg.Key, arg.Value)
	return err
}

type InsertSnapshotParams struct {
	BudgetID         int64
	PeriodStart      sql.NullString
	PeriodEnd        sql.NullString
	PeriodBillsCents int64
	TotalDebtCents   int64
}

func (q *Queries) InsertSnapshot(ctx context.Context, arg InsertSnapshotParams) (Snapshot, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO snapshots (budget_id, period_start, period_end, period_bills_cents, total_debt_cents)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id, budget_id, period_start, period_end, period_bills_cents, total_debt_cents, computed_at`,
		arg.BudgetID, arg.PeriodStart, arg.PeriodEnd, arg.PeriodBillsCents, arg.TotalDebtCents)
	var s Snapshot
	err := row.Scan(&s.ID, &s.BudgetID, &s.PeriodStart, &s.PeriodEnd, &s.PeriodBillsCents, &s.TotalDebtCents, &s.ComputedAt)
	return s, err
}

func (q *Queries) GetLatestSnapshot(ctx context.Context, budgetID int64) (Snapshot, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, budget_id, period_start, period_end, period_bills_cents, total_debt_cents, computed_at
		FROM snapshots
		WHERE budget_id = ?
		ORDER BY computed_at DESC, id DESC
		LIMIT 1`,
		budgetID)
	var s Snapshot
	err := row.Scan(&s.ID, &s.BudgetID, &s.PeriodStart, &s.PeriodEnd, &s.PeriodBillsCents, &s.TotalDebtCents, &s.ComputedAt)
	return s, err
}
