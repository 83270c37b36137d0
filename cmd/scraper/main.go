// Command scraper runs one sync pass over every registered source and
// exits. Scheduling (cron, systemd timers) is the caller's concern.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"mangatrack/internal/config"
	"mangatrack/internal/source"
	"mangatrack/internal/tracker"
	"mangatrack/pkg/database"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	limit := flag.Int("limit", 0, "recent updates per source (0 = config default)")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall run timeout")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *limit <= 0 {
		*limit = cfg.Sync.Limit
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := database.Open(database.Config{Path: cfg.DB.Path})
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}

	svc := tracker.NewService(tracker.NewRepo(db), logger, buildSources(cfg, logger)...)

	failed := false
	for _, name := range svc.SourceNames() {
		res, err := svc.SyncRecentUpdates(ctx, name, *limit)
		if err != nil {
			logger.Error("sync failed", zap.String("source", name), zap.Error(err))
			failed = true
			continue
		}
		logger.Info("sync complete",
			zap.String("source", name),
			zap.Int("imported", res.Imported),
			zap.Int("updated", res.Updated),
			zap.Int("failed", res.Failed))
	}
	if failed {
		os.Exit(1)
	}
}

func buildSources(cfg config.Config, logger *zap.Logger) []source.Source {
	client := source.NewHTTPClient(cfg.Timeout())

	var sources []source.Source
	if cfg.Sources.MangaDex.Enabled {
		sources = append(sources, source.NewMangaDex(source.MangaDexConfig{
			BaseURL: cfg.Sources.MangaDex.BaseURL,
			Delay:   cfg.Sources.MangaDex.Delay(),
			Timeout: cfg.Timeout(),
			Retries: cfg.HTTP.MaxRetries,
		}, client, logger))
	}
	if cfg.Sources.WebScan.Enabled {
		sources = append(sources, source.NewWebScan(source.WebScanConfig{
			Name:    cfg.Sources.WebScanName,
			BaseURL: cfg.Sources.WebScan.BaseURL,
			Delay:   cfg.Sources.WebScan.Delay(),
			Timeout: cfg.Timeout(),
			Retries: cfg.HTTP.MaxRetries,
		}, client, logger))
	}
	return sources
}
