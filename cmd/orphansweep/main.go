// Command orphansweep retries deletion of storage objects left behind when an
// experience or image was removed but its object could not be.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"experienceboard/internal/bootstrap"
	"experienceboard/internal/config"
	"experienceboard/internal/platform/database"
	"experienceboard/internal/platform/gcs"
	"experienceboard/internal/platform/logger"
	"experienceboard/internal/repository"
	"experienceboard/internal/worker"
)

func main() {
	var limit int
	var dryRun bool
	flag.IntVar(&limit, "limit", 100, "max orphans processed, 0 for all")
	flag.BoolVar(&dryRun, "dry-run", false, "print planned deletions without deleting")
	flag.Parse()

	if err := run(limit, dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "orphansweep: %v\n", err)
		os.Exit(1)
	}
}

func run(limit int, dryRun bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	zlog, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer zlog.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.Database.Driver, cfg.DatabaseDSN())
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	bucket, err := gcs.New(ctx, zlog, bootstrap.StorageConfig(cfg))
	if err != nil {
		return err
	}
	defer bucket.Close()

	sweeper := worker.NewOrphanSweeper(repository.NewOrphanRepository(db), bucket, zlog)
	report, err := sweeper.Sweep(ctx, limit, dryRun)
	fmt.Printf("scanned=%d resolved=%d skipped=%d failed=%d dry_run=%v\n",
		report.Scanned, report.Resolved, report.Skipped, report.Failed, dryRun)
	return err
}
