package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Monthly   Frequency = "monthly"
	Weekly    Frequency = "weekly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

const (
	BillActive   BillStatus = "active"
	BillInactive BillStatus = "inactive"

	DebtActive DebtStatus = "active"
	DebtPaid   DebtStatus = "paid"
)

type (
	// Frequency is the closed set of recurrence intervals a bill can have.
	Frequency string

	BillStatus string

	DebtStatus string

	Money struct {
		Cents int64
	}

	// Bill is a recurring obligation: rent, a subscription, insurance.
	Bill struct {
		ID     int64
		Name   string
		Amount Money
		Every  Frequency
		Status BillStatus
	}

	Debt struct {
		ID             int64
		Name           string
		CurrentBalance Money
		Status         DebtStatus
	}

	// Category is a budget subdivision. PeriodAllocated, when set, overrides
	// Allocated for the current billing cycle.
	Category struct {
		Name            string
		Allocated       Money
		PeriodAllocated *Money
		Spent           Money
	}

	Budget struct {
		ID         int64
		Name       string
		Year       int
		Categories []Category
	}

	// Period is a billing cycle as an inclusive date range.
	Period struct {
		Start time.Time
		End   time.Time
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidPeriod    = errors.New("period end before start")
)

// IsValid reports whether f is one of the known recurrence intervals.
func (f Frequency) IsValid() bool {
	switch f {
	case Monthly, Weekly, Quarterly, Yearly:
		return true
	default:
		return false
	}
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (b Bill) Validate() error {
	if len(strings.TrimSpace(b.Name)) == 0 {
		return ErrEmptyName
	}
	if len(b.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if !b.Every.IsValid() {
		return ErrInvalidFrequency
	}
	return nil
}

func (d Debt) Validate() error {
	if len(strings.TrimSpace(d.Name)) == 0 {
		return ErrEmptyName
	}
	return d.CurrentBalance.Validate()
}

func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return errors.New("period dates cannot be zero")
	}
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// EffectiveAllocation returns the period override when present, otherwise
// the regular allocation.
func (c Category) EffectiveAllocation() Money {
	if c.PeriodAllocated != nil {
		return *c.PeriodAllocated
	}
	return c.Allocated
}

// Percentage returns spent as a percentage of the effective allocation.
// A zero or negative allocation yields 0, never a division by zero.
func (c Category) Percentage() float64 {
	alloc := c.EffectiveAllocation()
	if alloc.Cents <= 0 {
		return 0
	}
	return float64(c.Spent.Cents) / float64(alloc.Cents) * 100
}

// IsOverBudget reports whether spending exceeds the effective allocation.
// The percentage itself is not capped, only the displayed bar is.
func (c Category) IsOverBudget() bool {
	return c.Percentage() > 100
}

// BarWidth returns the progress bar width as a whole percentage, capped at 100.
func (c Category) BarWidth() int {
	pct := c.Percentage()
	if pct >= 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return int(pct)
}

// TotalDebtCents sums the current balances of active debts.
// An empty or nil slice totals zero.
func TotalDebtCents(debts []Debt) int64 {
	var total int64
	for _, d := range debts {
		if d.Status != DebtActive {
			continue
		}
		total += d.CurrentBalance.Cents
	}
	return total
}
