package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	httpapi "github.com/i474232898/pm25-data-api/internal/api/http"
	"github.com/i474232898/pm25-data-api/internal/config"
	"github.com/i474232898/pm25-data-api/internal/dataset"
	"github.com/i474232898/pm25-data-api/internal/pm25"
	"github.com/i474232898/pm25-data-api/internal/scheduler"
	"github.com/i474232898/pm25-data-api/internal/store"
)

func main() {
	ll := &slog.LevelVar{}
	ll.Set(slog.LevelInfo)
	slog.SetDefault(slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})))

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	ll.Set(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Fetch the dataset when it is not on disk yet.
	fetchCfg := dataset.DefaultFetchConfig(&http.Client{Timeout: cfg.HTTPTimeout})
	if err := dataset.EnsureFile(ctx, fetchCfg, cfg.DatasetURL, cfg.DataFile); err != nil {
		slog.Error("failed to fetch dataset", "err", err)
		os.Exit(1)
	}

	tbl, err := dataset.Load(cfg.DataFile, cfg.Load)
	if err != nil {
		slog.Error("failed to load dataset", "err", err)
		os.Exit(1)
	}

	memStore := store.NewMemoryStore(tbl)
	service := pm25.NewService(memStore)

	sched := scheduler.New(cfg.StatsInterval, service)
	if err := sched.Start(); err != nil {
		slog.Error("failed to start scheduler", "err", err)
		os.Exit(1)
	}
	defer sched.Stop()

	app := httpapi.NewApp(service, httpapi.Options{
		WriteRateLimit: cfg.WriteRateLimit,
		WriteRateBurst: cfg.WriteRateBurst,
		AccessLog:      true,
	})

	go func() {
		slog.Info("listening", "port", cfg.Port, "records", service.Len())
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("fiber server stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("error during shutdown", "err", err)
	}
}
