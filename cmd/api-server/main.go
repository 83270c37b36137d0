package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mangatrack/internal/config"
	"mangatrack/internal/source"
	"mangatrack/internal/tracker"
	"mangatrack/pkg/database"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	defer logger.Sync()

	db, err := database.Open(database.Config{Path: cfg.DB.Path})
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}

	svc := tracker.NewService(tracker.NewRepo(db), logger, buildSources(cfg, logger)...)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "db_error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": cfg.DB.Path})
	})

	tracker.NewHandler(svc).RegisterRoutes(router.Group("/api"))

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API server listening", zap.Int("port", cfg.Server.Port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(cfg config.Config) *zap.Logger {
	var logger *zap.Logger
	var err error
	if cfg.Logging.Development {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
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
