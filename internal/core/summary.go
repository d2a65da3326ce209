package core

import "time"

// PeriodSummary is a compact roll-up of one computed dashboard snapshot,
// suitable for persistence and export.
type PeriodSummary struct {
	BudgetID   int64
	BudgetName string
	Period     Period
	PeriodOK   bool
	BillsTotal Money
	DebtTotal  Money
	ComputedAt time.Time
}
