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

	"github.com/punchamoorthee/dealledger/internal/api"
	"github.com/punchamoorthee/dealledger/internal/config"
	"github.com/punchamoorthee/dealledger/internal/service"
	"github.com/punchamoorthee/dealledger/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})).
		With(slog.String("env", cfg.Env))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.NewStore(ctx, cfg.DBSource)
	if err != nil {
		logger.Error("unable to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		logger.Error("migrate", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize Layers
	svc := service.New(st, service.Options{
		Policy:    cfg.Policy,
		Logger:    logger,
		TxTimeout: cfg.TxTimeout,
	})
	handler := api.NewHandler(svc, logger)

	if cfg.AlertScanInterval > 0 {
		go svc.RunAlertScanner(ctx, cfg.AlertScanInterval)
		logger.Info("alert scanner started", slog.Duration("interval", cfg.AlertScanInterval))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler, cfg.AuthToken, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.TxTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server starting", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.TxTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}
}
