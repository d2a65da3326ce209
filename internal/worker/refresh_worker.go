// Package worker runs the background snapshot recompute loop: AMQP-driven
// refreshes plus a cron schedule as the safety net when messages are lost.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/debuggin-limited/mflow/internal/amqp"
	"github.com/debuggin-limited/mflow/internal/services"
)

// RefreshSource consumes refresh messages. Satisfied by *amqp.Client.
type RefreshSource interface {
	ConsumeRefreshWithReconnect(ctx context.Context, handler func(*amqp.RefreshMessage) error) error
}

type RefreshWorker struct {
	source    RefreshSource // nil when AMQP is not configured
	processor *services.RefreshProcessor
	cronSpec  string
}

func NewRefreshWorker(source RefreshSource, processor *services.RefreshProcessor, cronSpec string) *RefreshWorker {
	return &RefreshWorker{
		source:    source,
		processor: processor,
		cronSpec:  cronSpec,
	}
}

// Run blocks until ctx is cancelled. It recomputes everything once at
// startup to recover from missed messages, then serves the consume loop and
// the cron schedule concurrently.
func (w *RefreshWorker) Run(ctx context.Context) error {
	if err := w.refresh(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup refresh failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if w.source != nil {
		g.Go(func() error {
			err := w.source.ConsumeRefreshWithReconnect(ctx, func(msg *amqp.RefreshMessage) error {
				return w.processor.HandleRefresh(ctx, msg.Year, msg.BudgetID)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		slog.InfoContext(ctx, "AMQP not configured, running in cron-only mode")
	}

	g.Go(func() error {
		return w.runCron(ctx)
	})

	return g.Wait()
}

func (w *RefreshWorker) runCron(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(w.cronSpec, func() {
		if err := w.refresh(ctx); err != nil {
			slog.ErrorContext(ctx, "Scheduled refresh failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("parse cron spec %q: %w", w.cronSpec, err)
	}

	c.Start()
	slog.InfoContext(ctx, "Refresh schedule started", "spec", w.cronSpec)

	<-ctx.Done()
	stopped := c.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(30 * time.Second):
		slog.WarnContext(ctx, "Timed out waiting for running cron jobs")
	}
	return nil
}

// refresh recomputes all budgets of the current year.
func (w *RefreshWorker) refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Minute)
	defer cancel()
	return w.processor.HandleRefresh(ctx, 0, 0)
}
