// Package app assembles the ledger services from configuration. Both the API
// server and the admin CLI start from here.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/ledgerworks/ledgercore/internal/consolidation"
	"github.com/ledgerworks/ledgercore/internal/infra/memory"
	"github.com/ledgerworks/ledgercore/internal/infra/postgres"
	infraRedis "github.com/ledgerworks/ledgercore/internal/infra/redis"
	"github.com/ledgerworks/ledgercore/internal/ledger"
	"github.com/ledgerworks/ledgercore/internal/ledger/seed"
	"github.com/ledgerworks/ledgercore/internal/module/bill"
	"github.com/ledgerworks/ledgercore/internal/module/invoice"
	"github.com/ledgerworks/ledgercore/internal/module/payment"
	"github.com/ledgerworks/ledgercore/pkg/config"
	"github.com/ledgerworks/ledgercore/pkg/logger"
)

// App holds the wired services and the connections they depend on
type App struct {
	Ledger        *ledger.Service
	Consolidation *consolidation.Service

	// nil when running on the in-memory store
	DB *postgres.DB
	// nil when no Redis URL is configured
	Cache *infraRedis.ReportCache

	redis  *redis.Client
	logger *logger.Logger
}

// New connects to the configured stores and builds the services. An empty
// database URL selects the in-memory store, an empty Redis URL disables the
// report cache.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{logger: log}

	var (
		ledgerRepo ledger.Repository
		consRepo   consolidation.Repository
	)
	if cfg.UsesPostgres() {
		db, err := postgres.NewPool(ctx, postgres.Config{URL: cfg.DatabaseURL}, log)
		if err != nil {
			return nil, err
		}
		a.DB = db
		ledgerRepo = postgres.NewLedgerRepository(db.Pool)
		consRepo = postgres.NewConsolidationRepository(db.Pool)
	} else {
		log.Warn("DATABASE_URL not set, using the in-memory store; data is lost on exit")
		ledgerRepo = memory.NewLedgerRepository()
		consRepo = memory.NewConsolidationRepository()
	}

	opts := []ledger.Option{
		ledger.WithLockTimeout(cfg.PostingLockTimeout),
		ledger.WithMaxDepth(cfg.MaxAccountDepth),
	}

	if cfg.RedisURL != "" {
		client, err := newRedisClient(cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		a.Cache = infraRedis.NewReportCache(client, cfg.ReportCacheTTL, log)

		// the cache is an optimisation: run without it rather than fail
		if err := a.Cache.Health(ctx); err != nil {
			log.Warn("Redis unreachable at startup, reports will be computed until it recovers", "error", err)
		} else {
			log.Info("Redis report cache enabled", "ttl", cfg.ReportCacheTTL)
		}
		opts = append(opts, ledger.WithReportCache(a.Cache))
	}

	registry := ledger.NewRegistry()
	a.Ledger = ledger.NewService(ledgerRepo, registry, log, opts...)

	// document handlers resolve account codes through the ledger itself
	for _, h := range []ledger.Handler{
		invoice.NewSalesInvoiceHandler(a.Ledger, invoice.DefaultAccounts(), log),
		bill.NewPurchaseBillHandler(a.Ledger, bill.DefaultAccounts(), log),
		payment.NewReceivedHandler(a.Ledger, payment.DefaultAccounts(), log),
		payment.NewMadeHandler(a.Ledger, payment.DefaultAccounts(), log),
	} {
		if err := registry.Register(h); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to register %s handler: %w", h.Type(), err)
		}
	}

	cons, err := consolidation.NewService(consRepo, consolidation.Thresholds{
		Warning:  cfg.AlertWarningThreshold,
		Critical: cfg.AlertCriticalThreshold,
	}, cfg.ConsolidationTopN, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Consolidation = cons

	return a, nil
}

// Seed applies the chart of accounts at path. Existing codes are left alone.
func (a *App) Seed(ctx context.Context, path string) (seed.Result, error) {
	if path == "" {
		return seed.Result{}, errors.New("no chart seed path configured")
	}
	return seed.New(a.Ledger, a.logger).ApplyFile(ctx, path)
}

// Close releases the database pool and the Redis client
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close Redis client", "error", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// newRedisClient accepts either a redis:// URL or a bare host:port address
func newRedisClient(url, password string) (*redis.Client, error) {
	if strings.Contains(url, "://") {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		if password != "" {
			opts.Password = password
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     url,
		Password: password,
	}), nil
}
