package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ledgerworks/ledgercore/internal/app"
	"github.com/ledgerworks/ledgercore/internal/transport/httpapi"
	"github.com/ledgerworks/ledgercore/internal/transport/httpapi/handler"
	"github.com/ledgerworks/ledgercore/internal/transport/httpapi/middleware"
	"github.com/ledgerworks/ledgercore/pkg/config"
	"github.com/ledgerworks/ledgercore/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Create context that listens for termination signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewDefault(cfg.Env)
	log.Info("Starting ledgercore API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"version", version,
	)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// Seed the chart of accounts (idempotent)
	if cfg.ChartSeedPath != "" {
		res, err := a.Seed(ctx, cfg.ChartSeedPath)
		if err != nil {
			log.Error("Failed to seed chart of accounts", "path", cfg.ChartSeedPath, "error", err)
			os.Exit(1)
		}
		log.Info("Chart of accounts seeded", "created", res.Created, "existing", res.Existing)
	}

	// Health checks: the database gates readiness, the cache only degrades
	handler.Version = version
	health := handler.NewHealthHandler()
	if a.DB != nil {
		health.Add("database", a.DB, true)
	}
	if a.Cache != nil {
		health.Add("redis", a.Cache, false)
	}

	var jwtMiddleware func(http.Handler) http.Handler
	if cfg.JWTSecret != "" {
		jwtMiddleware = middleware.JWTMiddleware(middleware.NewJWTService(cfg.JWTSecret))
	} else {
		log.Warn("JWT_SECRET not configured, API is unauthenticated")
	}

	// Create HTTP router
	r := httpapi.NewRouter(httpapi.Config{
		Logger:               log,
		AllowedOrigins:       cfg.AllowedOrigins,
		AccountHandler:       handler.NewAccountHandler(a.Ledger, log),
		JournalHandler:       handler.NewJournalHandler(a.Ledger, log),
		DocumentHandler:      handler.NewDocumentHandler(a.Ledger, log),
		ReportHandler:        handler.NewReportHandler(a.Ledger, log),
		TaxHandler:           handler.NewTaxHandler(log),
		ConsolidationHandler: handler.NewConsolidationHandler(a.Consolidation, log),
		HealthHandler:        health,
		JWTMiddleware:        jwtMiddleware,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()
	log.Info("Shutdown signal received")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("Server stopped gracefully")
}
