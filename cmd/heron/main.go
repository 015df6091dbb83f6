// Heron - Claim pre-authorization auditing that deploys in 60 seconds.
// Copyright (c) 2025 opensource.health
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

	"github.com/opensource-health/heron/internal/api"
	"github.com/opensource-health/heron/internal/bus"
	"github.com/opensource-health/heron/internal/cache"
	"github.com/opensource-health/heron/internal/config"
	"github.com/opensource-health/heron/internal/domain"
	"github.com/opensource-health/heron/internal/engine"
	"github.com/opensource-health/heron/internal/flagrules"
	"github.com/opensource-health/heron/internal/history"
	"github.com/opensource-health/heron/internal/policy"
	"github.com/opensource-health/heron/internal/repository"
	"github.com/opensource-health/heron/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Load configuration
	configPath := os.Getenv("HERON_CONFIG")
	if configPath == "" {
		configPath = "./heron.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: config.LogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))

	// Log startup
	slog.Info("starting heron",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Policy Table
	// A broken policy source is a warning, not a fatal error: an empty
	// table routes every claim to manual review instead of approving.
	table, err := policy.LoadFile(cfg.Policy.Path)
	if err != nil {
		slog.Warn("failed to load policy table", "path", cfg.Policy.Path, "error", err)
	}
	for _, warning := range table.Validate() {
		slog.Warn("policy table validation", "warning", warning)
	}
	slog.Info("policy table initialized", "packages", table.Count())

	// Initialize History Service
	historySvc := history.NewService(repo, cacheImpl)
	slog.Info("history service initialized")

	// Initialize Flag Rule Engine with history getter
	flags, err := flagrules.NewEngine(historySvc.GetHistoryGetter(), 100)
	if err != nil {
		slog.Error("failed to initialize flag rule engine", "error", err)
		os.Exit(1)
	}

	// Load flag rules from database (no hardcoded defaults - configure via API)
	if err := loadFlagRulesFromDatabase(ctx, repo, flags); err != nil {
		slog.Error("failed to load flag rules", "error", err)
		os.Exit(1)
	}
	slog.Info("flag rule engine initialized", "rules_count", flags.RulesCount())

	// Initialize Adjudication Processor
	processor := engine.NewProcessor(engine.New(table), flags)
	slog.Info("adjudication processor initialized", "engine_version", engine.EngineVersion)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("HERON_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, processor)

		// Get tenant IDs to process (from environment or default)
		tenantIDs := []string{}
		if envTenants := os.Getenv("HERON_TENANTS"); envTenants != "" {
			for _, t := range strings.Split(envTenants, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tenantIDs = append(tenantIDs, t)
				}
			}
		}

		workerCfg := worker.Config{
			TenantIDs:   tenantIDs,
			WorkerCount: 5,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, table, flags, processor, cfg.Policy.Path, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("heron is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
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

	slog.Info("heron shutdown complete")
}

// GlobalTenantID is used for flag rules that apply to all tenants.
const GlobalTenantID = "*"

// loadFlagRulesFromDatabase loads flag rules from the database into the engine.
// All rules must be configured via POST /rules API - no hardcoded defaults.
func loadFlagRulesFromDatabase(ctx context.Context, repo domain.Repository, flags *flagrules.Engine) error {
	dbRules, err := repo.ListFlagRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list flag rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading flag rules from database", "count", len(dbRules))
		return flags.LoadRules(dbRules)
	}

	slog.Info("no flag rules in database - configure via POST /rules API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🪶 HERON                    ║")
	fmt.Println("  ║      Claim Adjudication Engine            ║")
	fmt.Println("  ║      Every claim, audited first.          ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /claims/adjudicate        - Adjudicate a claim synchronously")
	fmt.Println("    POST /claims/submit            - Submit a claim for async processing")
	fmt.Println("    GET  /claims/{id}              - Get claim by ID")
	fmt.Println("    GET  /claims/{id}/adjudications - List adjudication runs for a claim")
	fmt.Println("    GET  /adjudications/{id}       - Get adjudication by ID")
	fmt.Println("    GET  /policy/packages          - List coverage packages")
	fmt.Println("    POST /policy/reload            - Hot-reload the policy table")
	fmt.Println("    GET  /rules                    - List all flag rules")
	fmt.Println("    POST /rules                    - Create a new flag rule")
	fmt.Println("    POST /rules/reload             - Hot-reload flag rules from database")
	fmt.Println("    GET  /health                   - Health check")
	fmt.Println()
}
