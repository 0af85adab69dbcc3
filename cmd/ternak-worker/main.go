package main

import (
	"context"
	"errors"
	"os"
	"time"

	"ternak/internal/amqp"
	"ternak/internal/backup"
	"ternak/internal/cli"
	applog "ternak/internal/log"
	"ternak/internal/sheets"
	gsheet "ternak/internal/sheets/google"
	"ternak/internal/sheets/memory"
	"ternak/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker)

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	var mirror sheets.AssetMirror
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), gsheet.Credentials{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets mirror ready", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		mirror = memory.New()
		logger.Info("No GOOGLE_SPREADSHEET_ID, mirroring in memory")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(backup.NewExporter(repo), mirror, cfg.SyncInterval).WithReloader(repo)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := syncWorker.Stop(ctx); err != nil {
			logger.Error("Sync worker stop error", applog.FieldError, err)
		}
	})

	if err := syncWorker.Start(ctx); err != nil {
		logger.Error("Failed to start sync worker", applog.FieldError, err)
		os.Exit(1)
	}

	go func() {
		err := amqpClient.ConsumeLedgerEvents(ctx, syncWorker.HandleLedgerEvent)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Ledger event consumption stopped", applog.FieldError, err)
		}
	}()

	logger.Info("Worker started", "queue", cfg.AMQPQueue, "sync_interval", cfg.SyncInterval)
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
