// Rebate - Rebate calculation engine.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/opensource-finance/rebate/internal/api"
	"github.com/opensource-finance/rebate/internal/bus"
	"github.com/opensource-finance/rebate/internal/cache"
	"github.com/opensource-finance/rebate/internal/domain"
	"github.com/opensource-finance/rebate/internal/processor"
	"github.com/opensource-finance/rebate/internal/repository"
	"github.com/opensource-finance/rebate/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// A missing .env file is fine; the environment may already be set
	_ = godotenv.Load()

	cfg, err := domain.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg.Logging))

	slog.Info("starting rebated",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"profile", cfg.Profile,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"worker", cfg.Worker.Enabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	sqlRepo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer sqlRepo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	var repo domain.Repository = sqlRepo
	var cacheImpl domain.Cache
	if cfg.Cache.Type != "none" {
		cacheImpl, err = cache.New(cfg.Cache)
		if err != nil {
			slog.Error("failed to initialize cache", "error", err)
			os.Exit(1)
		}
		defer cacheImpl.Close()
		repo = repository.NewCached(sqlRepo, cacheImpl, cfg.Cache.LookupTTL)
		slog.Info("cache initialized", "type", cfg.Cache.Type, "lookup_ttl", cfg.Cache.LookupTTL)
	}

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Processor
	proc, err := processor.NewProcessor(repo, repo)
	if err != nil {
		slog.Error("failed to initialize processor", "error", err)
		os.Exit(1)
	}
	proc.Events = busImpl

	// Initialize async Worker
	var asyncWorker *worker.Worker
	if cfg.Worker.Enabled {
		asyncWorker = worker.NewWorker(busImpl, proc)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
			asyncWorker = nil
		}
	}

	// Initialize Server
	handler := api.NewHandler(repo, cacheImpl, busImpl, proc, proc.Conditions, Version)
	srv := api.NewServer(cfg.Server, handler)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("rebated is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("rebated shutdown complete")
}

// newLogger builds the process logger from the logging settings.
func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  +-------------------------------------------+")
	fmt.Println("  |                 REBATED                   |")
	fmt.Println("  |        Rebate Calculation Engine          |")
	fmt.Println("  +-------------------------------------------+")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Profile:  %s\n", cfg.Profile)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST   /calculations                - Calculate a rebate")
	fmt.Println("    POST   /calculations/async          - Queue a calculation on the event bus")
	fmt.Println("    GET    /rebates                     - List rebates")
	fmt.Println("    POST   /rebates                     - Create or replace a rebate")
	fmt.Println("    GET    /rebates/{id}                - Get a rebate")
	fmt.Println("    DELETE /rebates/{id}                - Delete a rebate")
	fmt.Println("    GET    /rebates/{id}/calculation    - Latest stored calculation")
	fmt.Println("    GET    /products                    - List products")
	fmt.Println("    POST   /products                    - Create or replace a product")
	fmt.Println("    GET    /products/{id}               - Get a product")
	fmt.Println("    DELETE /products/{id}               - Delete a product")
	fmt.Println("    GET    /health                      - Health check")
	fmt.Println()
}
