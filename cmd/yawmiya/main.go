package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"yawmiya/internal/amqp"
	"yawmiya/internal/auth"
	"yawmiya/internal/cache"
	"yawmiya/internal/config"
	"yawmiya/internal/gateway"
	apphttp "yawmiya/internal/http"
	"yawmiya/internal/ledger"
	applog "yawmiya/internal/log"
	"yawmiya/internal/store"
	"yawmiya/internal/store/memory"
	"yawmiya/internal/store/sqlite"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	var records store.RecordStore
	switch cfg.DataBackend {
	case "sqlite":
		repo, err := sqlite.NewRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite store", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
		records = repo
		logger.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath)
	default:
		records = memory.New()
		logger.Info("Initialized memory backend")
	}

	ledgerSvc := ledger.NewService(records)

	manager := cache.NewManager()
	ledgerSvc.RegisterCaches(manager)
	manager.StartCleanup(cfg.CacheCleanupInterval)
	defer manager.Stop()

	// AMQP is optional: without a broker the gateway still mutates, it
	// just announces nothing.
	var events gateway.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		events = client
		logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	gw := gateway.New(records, ledgerSvc, events)
	authSvc := auth.NewService(records, []byte(cfg.JWTSecret), cfg.TokenTTL)

	srv := apphttp.NewServer(":"+cfg.Port, records, ledgerSvc, gw, authSvc, logger.WithComponent(applog.ComponentHTTP))

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting yawmiya server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
