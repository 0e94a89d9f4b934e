package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rhythmcoach/engine/internal/auth"
	"github.com/rhythmcoach/engine/internal/config"
	"github.com/rhythmcoach/engine/internal/httpapi"
	"github.com/rhythmcoach/engine/internal/session"
	"github.com/rhythmcoach/engine/internal/storage"
)

func main() {
	cfg := config.Parse()

	// Setup structured logger
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Error("failed to create data directory", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	// Open database
	db, err := storage.Open(cfg.DataDir, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	authCfg := auth.Config{Enabled: cfg.AuthEnabled, Secret: cfg.AuthSecret}

	// Session protocol listener: one goroutine per accepted connection,
	// each running the length-prefixed binary/JSON frame loop.
	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		logger.Error("failed to listen", "addr", cfg.Listen, "error", err)
		os.Exit(1)
	}

	// Ambient HTTP host: health probe, CORS, read-only session listing.
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewServer(logger, db).Handler(),
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("shutting down", "signal", sig)
		lis.Close()
		if err := httpServer.Shutdown(context.Background()); err != nil {
			logger.Warn("http server shutdown error", "error", err)
		}
	}()

	go func() {
		logger.Info("starting ambient http host", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	logger.Info("starting session engine",
		"listen", cfg.Listen,
		"data_dir", cfg.DataDir,
		"auth_enabled", cfg.AuthEnabled,
	)

	var wg sync.WaitGroup
	for {
		conn, err := lis.Accept()
		if err != nil {
			// lis.Close() from the shutdown goroutine lands here.
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			session.Handle(conn, logger, authCfg, db, cfg.DataDir)
		}()
	}

	wg.Wait()
	logger.Info("engine stopped")
}
