package main

import (
	"context"
	"flag"
	"os"
	"time"

	"ternak/internal/backup"
	"ternak/internal/cli"
	applog "ternak/internal/log"
)

func main() {
	once := flag.Bool("once", false, "write one backup and exit")
	flag.Parse()

	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentScheduler)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	scheduler, err := backup.NewScheduler(backup.NewExporter(repo), cfg.BackupDir, cfg.BackupSchedule, cfg.BackupRetain)
	if err != nil {
		logger.Error("Invalid backup schedule", applog.FieldError, err)
		os.Exit(1)
	}

	if *once {
		snap, err := scheduler.RunOnce(context.Background())
		if err != nil {
			logger.Error("Backup failed", applog.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Backup written", "json", snap.JSONPath, "db", snap.DBPath)
		return
	}

	ctx, done := cli.GracefulShutdown(logger, time.Minute, func(ctx context.Context) {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Warn("Backup still running at shutdown", applog.FieldError, err)
		}
	})

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start backup scheduler", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
