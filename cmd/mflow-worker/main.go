package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/debuggin-limited/mflow/internal/amqp"
	"github.com/debuggin-limited/mflow/internal/cli"
	"github.com/debuggin-limited/mflow/internal/export/google"
	"github.com/debuggin-limited/mflow/internal/log"
	"github.com/debuggin-limited/mflow/internal/prefs"
	"github.com/debuggin-limited/mflow/internal/services"
	"github.com/debuggin-limited/mflow/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)

	logger.Info("Starting mflow-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	prefsSvc := prefs.NewService(repo)
	dashboard := services.NewDashboardService(repo, prefsSvc)

	// Google Sheets export is optional.
	var exporter services.SummaryExporter
	if cfg.SheetsExportEnabled() {
		exp, err := google.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", "error", err)
			os.Exit(1)
		}
		exporter = exp
		logger.Info("Google Sheets exporter initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	processor := services.NewRefreshProcessor(repo, dashboard, exporter)

	// AMQP is optional: without it the worker runs on the cron schedule only.
	var source worker.RefreshSource
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		source = client
		logger.Info("AMQP consumer initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - running on the cron schedule only")
	}

	w := worker.NewRefreshWorker(source, processor, cfg.RefreshCron)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Worker stopped with error", "error", err)
			os.Exit(1)
		}
		return
	}

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Worker shutdown error", "error", err)
		}
		logger.Info("Worker shutdown complete")
	case <-time.After(30 * time.Second):
		logger.Warn("Shutdown timeout reached")
	}
}
