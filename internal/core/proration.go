package core

import (
	"math"
	"time"
)

// avgDaysPerMonth is 365.25 / 12, used to scale a monthly equivalent to an
// arbitrary billing period.
const avgDaysPerMonth = 30.44

// weeksPerMonth approximates how many weekly charges land in one month.
const weeksPerMonth = 4.33

// MonthlyEquivalentCents normalizes a bill amount to a monthly figure in
// fractional cents. Unknown frequencies contribute nothing rather than
// poisoning a total.
func MonthlyEquivalentCents(amount Money, every Frequency) float64 {
	switch every {
	case Monthly:
		return float64(amount.Cents)
	case Weekly:
		return float64(amount.Cents) * weeksPerMonth
	case Quarterly:
		return float64(amount.Cents) / 3
	case Yearly:
		return float64(amount.Cents) / 12
	default:
		return 0
	}
}

// Days returns the inclusive day count of the period. Both endpoints count,
// so a period starting and ending on the same day is one day long.
func (p Period) Days() int {
	return int(math.Ceil(p.End.Sub(p.Start).Hours()/24)) + 1
}

// Ratio returns the period length relative to an average month.
// A full calendar month comes out close to 1.
func (p Period) Ratio() float64 {
	return float64(p.Days()) / avgDaysPerMonth
}

// Contains reports whether t falls within the period, endpoints included.
func (p Period) Contains(t time.Time) bool {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return !day.Before(p.Start) && !day.After(p.End)
}

// ProratedCents estimates what the bill costs over the given period, in
// fractional cents. Rounding is left to the caller so that sums do not
// accumulate per-bill rounding error.
func ProratedCents(b Bill, p Period) float64 {
	return MonthlyEquivalentCents(b.Amount, b.Every) * p.Ratio()
}

// PeriodTotalCents sums the estimated cost of all active bills over the
// period. When the period is unavailable (ok=false) the unscaled monthly
// equivalents are summed instead.
func PeriodTotalCents(bills []Bill, p Period, ok bool) float64 {
	var total float64
	for _, b := range bills {
		if b.Status != BillActive {
			continue
		}
		if ok {
			total += ProratedCents(b, p)
		} else {
			total += MonthlyEquivalentCents(b.Amount, b.Every)
		}
	}
	return total
}

// BillEstimateCents is the per-bill figure shown in the bills list. Without a
// period it falls back to the bill's raw nominal amount, not the monthly
// equivalent the aggregate falls back to.
func BillEstimateCents(b Bill, p Period, ok bool) float64 {
	if !ok {
		return float64(b.Amount.Cents)
	}
	return ProratedCents(b, p)
}

// RoundCents rounds fractional cents half away from zero into Money.
func RoundCents(v float64) Money {
	return Money{Cents: int64(math.Round(v))}
}
