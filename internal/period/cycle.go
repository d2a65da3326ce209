// Package period computes the user's billing cycle: a custom monthly window
// that starts on a configurable day of the month instead of the 1st.
package period

import (
	"fmt"
	"time"

	"github.com/debuggin-limited/mflow/internal/core"
)

// CycleConfig describes the cycle. StartDay 1 is a plain calendar month;
// StartDay 15 runs from the 15th to the 14th of the next month.
type CycleConfig struct {
	StartDay int
	Timezone string
}

func DefaultConfig() CycleConfig {
	return CycleConfig{StartDay: 1, Timezone: "UTC"}
}

func (c CycleConfig) Validate() error {
	if c.StartDay < 1 || c.StartDay > 31 {
		return fmt.Errorf("cycle start day %d out of range 1..31", c.StartDay)
	}
	if c.Timezone == "" {
		return fmt.Errorf("cycle timezone is empty")
	}
	return nil
}

// Current returns the billing cycle containing now, as midnight dates in the
// configured timezone. The start day clamps to the last day of short months,
// so StartDay 31 reads as "last day" in February.
//
// Invalid configs and unknown timezones come back as errors; callers decide
// the fallback, this package never guesses one.
func Current(cfg CycleConfig, now time.Time) (core.Period, error) {
	if err := cfg.Validate(); err != nil {
		return core.Period{}, err
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return core.Period{}, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	now = now.In(loc)

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	start := cycleStart(now.Year(), int(now.Month()), cfg.StartDay, loc)
	if today.Before(start) {
		start = cycleStart(now.Year(), int(now.Month())-1, cfg.StartDay, loc)
	}
	next := cycleStart(start.Year(), int(start.Month())+1, cfg.StartDay, loc)

	p := core.Period{Start: start, End: next.AddDate(0, 0, -1)}
	if err := p.Validate(); err != nil {
		return core.Period{}, fmt.Errorf("compute cycle: %w", err)
	}
	return p, nil
}

// cycleStart returns the cycle start date for the given month, clamped to the
// month's last day. Out-of-range months normalize the way time.Date does.
func cycleStart(year, month, startDay int, loc *time.Location) time.Time {
	day := startDay
	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
}

func lastDayOfMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
