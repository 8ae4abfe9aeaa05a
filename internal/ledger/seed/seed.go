// Package seed creates the chart of accounts described by a YAML seed file.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ledgerworks/ledgercore/internal/ledger"
	"github.com/ledgerworks/ledgercore/pkg/config"
	"github.com/ledgerworks/ledgercore/pkg/logger"
)

// AccountStore is the part of the ledger service the seeder needs
type AccountStore interface {
	GetAccountByCode(ctx context.Context, code string) (*ledger.Account, error)
	CreateAccount(ctx context.Context, in ledger.CreateAccountInput) (*ledger.Account, error)
}

// Result counts what a seeding run did
type Result struct {
	Created  int
	Existing int
}

// Seeder applies a chart config. Accounts whose code already exists are left
// untouched, so running it twice is harmless.
type Seeder struct {
	store  AccountStore
	logger *logger.Logger
}

// New creates a seeder
func New(store AccountStore, log *logger.Logger) *Seeder {
	return &Seeder{store: store, logger: log.WithField("component", "seed")}
}

// Apply creates every missing account of chart, parents before children
func (s *Seeder) Apply(ctx context.Context, chart *config.ChartConfig) (Result, error) {
	var (
		res Result
		err error
		ids = make(map[*config.ChartAccount]uuid.UUID)
	)

	chart.Walk(func(acc *config.ChartAccount, parent *config.ChartAccount) {
		if err != nil {
			return
		}

		existing, getErr := s.store.GetAccountByCode(ctx, acc.Code)
		switch {
		case getErr == nil:
			ids[acc] = existing.ID
			res.Existing++
			return
		case !errors.Is(getErr, ledger.ErrAccountNotFound):
			err = fmt.Errorf("failed to look up %s: %w", acc.Code, getErr)
			return
		}

		in := ledger.CreateAccountInput{
			Code:           acc.Code,
			Name:           acc.Name,
			Type:           ledger.AccountType(acc.Type),
			IsGroup:        acc.Group,
			OpeningBalance: acc.OpeningBalance,
			Description:    acc.Description,
		}
		if parent != nil {
			parentID := ids[parent]
			in.ParentID = &parentID
		}

		created, createErr := s.store.CreateAccount(ctx, in)
		if createErr != nil {
			err = fmt.Errorf("failed to create %s: %w", acc.Code, createErr)
			return
		}
		ids[acc] = created.ID
		res.Created++
	})
	if err != nil {
		return res, err
	}

	s.logger.WithContext(ctx).Info("chart of accounts seeded", "created", res.Created, "existing", res.Existing)
	return res, nil
}

// ApplyFile loads the chart at path and applies it
func (s *Seeder) ApplyFile(ctx context.Context, path string) (Result, error) {
	chart, err := config.LoadChartConfig(path)
	if err != nil {
		return Result{}, err
	}
	return s.Apply(ctx, chart)
}
