package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ericfisherdev/xertbridge/internal/adapter/driven/homeassistant"
	sqliteadapter "github.com/ericfisherdev/xertbridge/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/xertbridge/internal/adapter/driven/xert"
	"github.com/ericfisherdev/xertbridge/internal/adapter/driving/httpapi"
	"github.com/ericfisherdev/xertbridge/internal/application"
	"github.com/ericfisherdev/xertbridge/internal/config"
	"github.com/ericfisherdev/xertbridge/internal/domain/model"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Level(),
	})))
	slog.Info("config loaded",
		"ha_url", cfg.HAURL,
		"training_info_interval", cfg.TrainingInfoInterval,
		"activities_interval", cfg.ActivitiesInterval,
		"lookback_days", cfg.LookbackDays,
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open token database and run migrations.
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("token database ready", "path", cfg.DBPath, "encrypted", cfg.SecretKey != nil)

	// 4. Wire adapters and services.
	tokenStore := sqliteadapter.NewTokenRepo(db, cfg.SecretKey)
	exchanger := xert.NewExchanger(cfg.Username, cfg.Password)
	auth := application.NewAuthManager(exchanger, tokenStore, cfg.TokenRefreshMargin)

	detector := application.NewChangeDetector()
	health := application.NewHealthService()
	poller := application.NewPollService(
		auth,
		xert.NewClient(),
		homeassistant.NewSender(cfg.HAURL, cfg.HAWebhookID, cfg.HAToken),
		detector,
		health,
		[]application.DomainSchedule{
			{Domain: model.DomainTrainingInfo, Interval: cfg.TrainingInfoInterval},
			{Domain: model.DomainActivities, Interval: cfg.ActivitiesInterval},
		},
		cfg.LookbackDays,
	)

	// 5. Serve health + metrics.
	handler := httpapi.NewHandler(health, slog.Default())
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpapi.NewServeMux(handler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
		}
	}()
	slog.Info("xertbridge started", "listen_addr", cfg.ListenAddr)

	// 6. Run the poll loops until a shutdown signal arrives.
	poller.Start(ctx)

	// 7. Graceful shutdown with a 10s drain for the HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
