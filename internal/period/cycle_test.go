package period

import (
	"testing"
	"time"

	"github.com/debuggin-limited/mflow/internal/core"
)

func TestCycleConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     CycleConfig
		wantErr bool
	}{
		{"default is valid", DefaultConfig(), false},
		{"mid-month start", CycleConfig{StartDay: 15, Timezone: "UTC"}, false},
		{"day 31 is valid", CycleConfig{StartDay: 31, Timezone: "UTC"}, false},
		{"day zero", CycleConfig{StartDay: 0, Timezone: "UTC"}, true},
		{"day 32", CycleConfig{StartDay: 32, Timezone: "UTC"}, true},
		{"negative day", CycleConfig{StartDay: -1, Timezone: "UTC"}, true},
		{"empty timezone", CycleConfig{StartDay: 1, Timezone: ""}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCurrent(t *testing.T) {
	utc := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		name string
		cfg  CycleConfig
		now  time.Time
		want core.Period
	}{
		{
			name: "start day 1 is the calendar month",
			cfg:  CycleConfig{StartDay: 1, Timezone: "UTC"},
			now:  utc(2026, time.January, 15),
			want: core.Period{Start: utc(2026, time.January, 1), End: utc(2026, time.January, 31)},
		},
		{
			name: "mid-month start after the boundary",
			cfg:  CycleConfig{StartDay: 15, Timezone: "UTC"},
			now:  utc(2026, time.January, 20),
			want: core.Period{Start: utc(2026, time.January, 15), End: utc(2026, time.February, 14)},
		},
		{
			name: "mid-month start before the boundary reaches into last month",
			cfg:  CycleConfig{StartDay: 15, Timezone: "UTC"},
			now:  utc(2026, time.January, 10),
			want: core.Period{Start: utc(2025, time.December, 15), End: utc(2026, time.January, 14)},
		},
		{
			name: "boundary day belongs to the new cycle",
			cfg:  CycleConfig{StartDay: 15, Timezone: "UTC"},
			now:  utc(2026, time.January, 15),
			want: core.Period{Start: utc(2026, time.January, 15), End: utc(2026, time.February, 14)},
		},
		{
			name: "start day 31 clamps in february",
			cfg:  CycleConfig{StartDay: 31, Timezone: "UTC"},
			now:  utc(2026, time.February, 15),
			want: core.Period{Start: utc(2026, time.January, 31), End: utc(2026, time.February, 27)},
		},
		{
			name: "year rollover",
			cfg:  CycleConfig{StartDay: 25, Timezone: "UTC"},
			now:  utc(2026, time.January, 2),
			want: core.Period{Start: utc(2025, time.December, 25), End: utc(2026, time.January, 24)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Current(tt.cfg, tt.now)
			if err != nil {
				t.Fatalf("Current() error = %v", err)
			}
			if !got.Start.Equal(tt.want.Start) || !got.End.Equal(tt.want.End) {
				t.Errorf("Current() = %v..%v, want %v..%v", got.Start, got.End, tt.want.Start, tt.want.End)
			}
		})
	}
}

func TestCurrentTimezone(t *testing.T) {
	// 02:00 UTC on Jan 1 is still Dec 31 in New York, so the cycle is December.
	cfg := CycleConfig{StartDay: 1, Timezone: "America/New_York"}
	now := time.Date(2026, time.January, 1, 2, 0, 0, 0, time.UTC)

	got, err := Current(cfg, now)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if got.Start.Year() != 2025 || got.Start.Month() != time.December || got.Start.Day() != 1 {
		t.Errorf("Current() start = %v, want Dec 1 2025 local", got.Start)
	}
	if got.End.Month() != time.December || got.End.Day() != 31 {
		t.Errorf("Current() end = %v, want Dec 31 2025 local", got.End)
	}
}

func TestCurrentErrors(t *testing.T) {
	now := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)

	if _, err := Current(CycleConfig{StartDay: 0, Timezone: "UTC"}, now); err == nil {
		t.Error("expected error for start day 0")
	}
	if _, err := Current(CycleConfig{StartDay: 1, Timezone: "Mars/Olympus"}, now); err == nil {
		t.Error("expected error for unknown timezone")
	}
}
