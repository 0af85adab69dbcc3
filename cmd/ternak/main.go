package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"ternak/internal/amqp"
	"ternak/internal/backup"
	"ternak/internal/cli"
	"ternak/internal/core"
	apphttp "ternak/internal/http"
	applog "ternak/internal/log"
	"ternak/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentApp)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	if cfg.SeedFile != "" {
		result, err := backup.SeedFile(context.Background(), repo, cfg.SeedFile, core.DefaultAssetID)
		if err != nil {
			logger.Error("Seeding failed", applog.FieldError, err, applog.FieldOperation, applog.OpSeed, applog.FieldFile, cfg.SeedFile)
		} else {
			logger.Info("Seed file applied",
				applog.FieldFile, cfg.SeedFile,
				"inserted", result.Inserted.Total(),
				"skipped", result.Skipped.Total())
		}
	}

	// Events are best effort: the server runs without a broker.
	var (
		ledgerPub services.Publisher
		importPub backup.Publisher
	)
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, ledger events disabled", applog.FieldError, err)
		} else {
			defer client.Close()
			ledgerPub, importPub = client, client
			logger.Info("AMQP publisher ready", "exchange", cfg.AMQPExchange)
		}
	}

	ledger := services.NewLedgerService(repo, ledgerPub, cfg.PageSize)
	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:           cfg.Addr(),
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger.WithComponent(applog.ComponentHTTP),
	}, ledger, backup.NewExporter(repo), backup.NewImporter(repo, importPub), repo)
	if err != nil {
		logger.Error("Failed to build HTTP server", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	})

	logger.Info("Starting ternak server", "addr", cfg.Addr(), "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "addr", cfg.Addr())
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
