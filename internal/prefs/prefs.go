// Package prefs reads and writes user preferences stored as key/value
// settings, currently the billing cycle configuration.
package prefs

import (
	"context"
	"fmt"
	"strconv"

	"github.com/debuggin-limited/mflow/internal/period"
)

const (
	KeyCycleStartDay = "cycle.start_day"
	KeyCycleTimezone = "cycle.timezone"
)

// Store is the settings persistence the service needs.
type Store interface {
	GetSetting(ctx context.Context, key string) (value string, found bool, err error)
	SetSetting(ctx context.Context, key, value string) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// CycleConfig assembles the billing cycle config from settings, filling
// defaults for unset keys. A malformed stored value is an error: the caller
// treats it the same as a failed cycle computation.
func (s *Service) CycleConfig(ctx context.Context) (period.CycleConfig, error) {
	cfg := period.DefaultConfig()

	if raw, found, err := s.store.GetSetting(ctx, KeyCycleStartDay); err != nil {
		return period.CycleConfig{}, fmt.Errorf("read %s: %w", KeyCycleStartDay, err)
	} else if found {
		day, err := strconv.Atoi(raw)
		if err != nil {
			return period.CycleConfig{}, fmt.Errorf("parse %s=%q: %w", KeyCycleStartDay, raw, err)
		}
		cfg.StartDay = day
	}

	if raw, found, err := s.store.GetSetting(ctx, KeyCycleTimezone); err != nil {
		return period.CycleConfig{}, fmt.Errorf("read %s: %w", KeyCycleTimezone, err)
	} else if found {
		cfg.Timezone = raw
	}

	return cfg, nil
}

// SetCycleConfig validates and persists the billing cycle config.
func (s *Service) SetCycleConfig(ctx context.Context, cfg period.CycleConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid cycle config: %w", err)
	}
	if err := s.store.SetSetting(ctx, KeyCycleStartDay, strconv.Itoa(cfg.StartDay)); err != nil {
		return fmt.Errorf("save %s: %w", KeyCycleStartDay, err)
	}
	if err := s.store.SetSetting(ctx, KeyCycleTimezone, cfg.Timezone); err != nil {
		return fmt.Errorf("save %s: %w", KeyCycleTimezone, err)
	}
	return nil
}
