package ledger

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TrialBalanceRow is the balance of one leaf account presented on one side
type TrialBalanceRow struct {
	AccountID uuid.UUID       `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Type      AccountType     `json:"type"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

// TrialBalance lists every leaf account as of a date with column totals
type TrialBalance struct {
	AsOf        time.Time         `json:"as_of"`
	Rows        []TrialBalanceRow `json:"rows"`
	TotalDebit  decimal.Decimal   `json:"total_debit"`
	TotalCredit decimal.Decimal   `json:"total_credit"`
	Difference  decimal.Decimal   `json:"difference"`
	Balanced    bool              `json:"balanced"`
}

// BuildTrialBalance computes the report from the chart and the per-account
// movements dated on or before asOf. A positive balance is shown on the account
// type's normal side, a negative one on the opposite side. Balanced means the
// totals are exactly equal.
func BuildTrialBalance(asOf time.Time, accounts []*Account, movements map[uuid.UUID]Movement) *TrialBalance {
	tb := &TrialBalance{
		AsOf:        DateOnly(asOf),
		Rows:        []TrialBalanceRow{},
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
	}

	for _, a := range accounts {
		if a.IsGroup {
			continue
		}

		balance := a.OpeningBalance
		if m, ok := movements[a.ID]; ok {
			balance = balance.Add(signedTotal(a.Type, m))
		}

		row := TrialBalanceRow{
			AccountID: a.ID,
			Code:      a.Code,
			Name:      a.Name,
			Type:      a.Type,
			Debit:     decimal.Zero,
			Credit:    decimal.Zero,
		}

		side := a.Type.NormalSide()
		if balance.IsNegative() {
			side = opposite(side)
		}
		if side == SideDebit {
			row.Debit = balance.Abs()
		} else {
			row.Credit = balance.Abs()
		}

		tb.TotalDebit = tb.TotalDebit.Add(row.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(row.Credit)
		tb.Rows = append(tb.Rows, row)
	}

	slices.SortStableFunc(tb.Rows, func(a, b TrialBalanceRow) int {
		return strings.Compare(a.Code, b.Code)
	})

	tb.Difference = tb.TotalDebit.Sub(tb.TotalCredit).Abs()
	tb.Balanced = tb.Difference.IsZero()
	return tb
}

func opposite(side Side) Side {
	if side == SideDebit {
		return SideCredit
	}
	return SideDebit
}

// TrialBalance reports every leaf account's balance as of the end of asOf's day.
// Results are served from the report cache when one is configured.
func (s *Service) TrialBalance(ctx context.Context, asOf time.Time) (*TrialBalance, error) {
	asOf = DateOnly(asOf)
	log := s.logger.WithContext(ctx)

	// the generation is read before computing so a posting that commits
	// meanwhile makes this result unreachable instead of stale
	var generation int64
	cached := false
	if s.cache != nil {
		gen, err := s.cache.Generation(ctx)
		if err != nil {
			log.Warn("report cache unavailable", "error", err)
		} else {
			generation = gen
			cached = true
			tb, hit, err := s.cache.GetTrialBalance(ctx, generation, asOf)
			if err != nil {
				log.Warn("report cache read failed", "error", err)
			} else if hit {
				return tb, nil
			}
		}
	}

	accounts, err := s.repo.ListAccounts(ctx, AccountFilters{})
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	movements, err := s.repo.SumLedgerEntries(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger entries: %w", err)
	}

	tb := BuildTrialBalance(asOf, accounts, movements)
	if !tb.Balanced {
		log.Error("trial balance out of balance",
			"as_of", asOf.Format(time.DateOnly),
			"difference", tb.Difference.StringFixed(2),
		)
	}

	if cached {
		if err := s.cache.SetTrialBalance(ctx, generation, tb); err != nil {
			log.Warn("report cache write failed", "error", err)
		}
	}

	return tb, nil
}
