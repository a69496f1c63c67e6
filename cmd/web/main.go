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

	"audiofetch/internal/config"
	"audiofetch/internal/download"
	"audiofetch/internal/extractor"
	"audiofetch/internal/handlers"
	"audiofetch/internal/registry"
	"audiofetch/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := config.Load()
	for _, dir := range []string{cfg.DownloadDir, cfg.StaticDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("failed to create directory", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	jobs := store.New()
	conns := registry.New()
	orch := download.NewOrchestrator(logger, jobs, extractor.NewService(logger), cfg.DownloadDir)
	app := handlers.NewApp(logger, orch, jobs, conns, cfg)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// No write timeout: the streaming endpoint keeps connections open
		// for the whole extraction.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logger.Info("server started", "addr", cfg.Addr, "download_dir", cfg.DownloadDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		_ = srv.Close()
	}

	conns.CloseAll()
	logger.Info("server stopped")
}
