package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgerworks/ledgercore/pkg/logger"
)

const (
	// DefaultLockTimeout bounds how long a posting waits for its accounts
	DefaultLockTimeout = 5 * time.Second
	// DefaultMaxDepth bounds the chart-of-accounts depth (roots have depth 1)
	DefaultMaxDepth = 10
	// DefaultPageSize is the keyset page size used by the ledger projection
	DefaultPageSize = 500
)

// Service orchestrates the ledger operations: the account registry, the journal
// engine, the ledger projection and the trial balance reporter.
type Service struct {
	repo        Repository
	registry    *Registry
	locker      *accountLocker
	cache       ReportCache
	logger      *logger.Logger
	lockTimeout time.Duration
	maxDepth    int
	pageSize    int
	now         func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithReportCache enables read-through caching of trial balances
func WithReportCache(cache ReportCache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithLockTimeout sets how long a posting waits for per-account locks
func WithLockTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// WithMaxDepth sets the maximum chart-of-accounts depth
func WithMaxDepth(depth int) Option {
	return func(s *Service) {
		if depth > 0 {
			s.maxDepth = depth
		}
	}
}

// WithPageSize sets the ledger projection page size
func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new ledger service
func NewService(repo Repository, registry *Registry, log *logger.Logger, opts ...Option) *Service {
	if registry == nil {
		registry = NewRegistry()
	}
	s := &Service{
		repo:        repo,
		registry:    registry,
		locker:      newAccountLocker(),
		logger:      log.WithField("component", "ledger"),
		lockTimeout: DefaultLockTimeout,
		maxDepth:    DefaultMaxDepth,
		pageSize:    DefaultPageSize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the document handler registry
func (s *Service) Registry() *Registry {
	return s.registry
}

// inTx runs fn inside one repository transaction, rolling back on any error
func (s *Service) inTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	txCtx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			// the operation already failed; a rollback error adds nothing
			_ = s.repo.RollbackTx(txCtx)
		}
	}()

	if err := fn(txCtx); err != nil {
		return err
	}

	if err := s.repo.CommitTx(txCtx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	committed = true
	return nil
}

// invalidateReports bumps the report cache generation after a committed change
func (s *Service) invalidateReports(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WithContext(ctx).Warn("report cache invalidation failed", "error", err)
	}
}
