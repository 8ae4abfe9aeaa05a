package ledger

import (
	"context"
	"fmt"
	"iter"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerworks/ledgercore/pkg/money"
)

// EntriesFor returns the posted ledger entries of an account within r, ordered
// by (date, sequence). The sequence is lazy: entries are fetched in keyset pages
// while the caller ranges over it, and ranging again re-queries from the start.
// A failure is yielded once as a non-nil error, ending the sequence.
func (s *Service) EntriesFor(ctx context.Context, accountID uuid.UUID, r DateRange) iter.Seq2[*LedgerEntry, error] {
	return func(yield func(*LedgerEntry, error) bool) {
		if err := r.Validate(); err != nil {
			yield(nil, err)
			return
		}

		filters := LedgerFilters{
			AccountID: accountID,
			From:      r.From,
			To:        r.To,
			Limit:     s.pageSize,
		}

		for {
			page, err := s.repo.ListLedgerEntries(ctx, filters)
			if err != nil {
				yield(nil, fmt.Errorf("failed to list ledger entries: %w", err))
				return
			}

			for _, e := range page {
				if !yield(e, nil) {
					return
				}
			}

			if len(page) < filters.Limit {
				return
			}
			last := page[len(page)-1]
			filters.After = &LedgerCursor{Date: last.Date, Sequence: last.Sequence}
		}
	}
}

// Statement is the materialised ledger of one account over a period
type Statement struct {
	Account        *Account
	Range          DateRange
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
	TotalDebit     decimal.Decimal
	TotalCredit    decimal.Decimal
	Entries        []*LedgerEntry
}

// AccountStatement collects the entries of an account in r together with the
// balance carried into the period and the balance at its end.
func (s *Service) AccountStatement(ctx context.Context, accountID uuid.UUID, r DateRange) (*Statement, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.IsGroup {
		return nil, referenceError(ErrInvalidAccount, "account_id", accountID.String())
	}

	st := &Statement{
		Account:        account,
		Range:          r,
		OpeningBalance: account.OpeningBalance,
		TotalDebit:     decimal.Zero,
		TotalCredit:    decimal.Zero,
	}

	// the balance carried in is the running balance of the last entry before From
	if r.From != nil {
		before := r.From.AddDate(0, 0, -1)
		for e, err := range s.EntriesFor(ctx, accountID, DateRange{To: &before}) {
			if err != nil {
				return nil, err
			}
			st.OpeningBalance = e.RunningBalance
		}
	}

	st.ClosingBalance = st.OpeningBalance
	for e, err := range s.EntriesFor(ctx, accountID, r) {
		if err != nil {
			return nil, err
		}
		st.Entries = append(st.Entries, e)
		st.TotalDebit = st.TotalDebit.Add(e.Debit)
		st.TotalCredit = st.TotalCredit.Add(e.Credit)
		st.ClosingBalance = e.RunningBalance
	}

	return st, nil
}

// Reconcile replays every ledger entry of an account from its opening balance
// and checks each stored running balance and the cached account balance.
func (s *Service) Reconcile(ctx context.Context, accountID uuid.UUID) error {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return err
	}

	balance := account.OpeningBalance
	count := 0
	for e, err := range s.EntriesFor(ctx, accountID, DateRange{}) {
		if err != nil {
			return err
		}
		balance = balance.Add(signedTotal(account.Type, Movement{Debit: e.Debit, Credit: e.Credit}))
		if !balance.Equal(e.RunningBalance) {
			return NewError(KindComputation, fmt.Errorf(
				"%w: entry %d expected %s, stored %s",
				ErrBalanceMismatch, e.Sequence, money.Format(balance), money.Format(e.RunningBalance),
			), "running_balance", accountID.String())
		}
		count++
	}

	if !balance.Equal(account.Balance) {
		return NewError(KindComputation, fmt.Errorf(
			"%w: replayed %s, cached %s",
			ErrBalanceMismatch, money.Format(balance), money.Format(account.Balance),
		), "balance", accountID.String())
	}

	s.logger.WithContext(ctx).Debug("account reconciled", "account_id", accountID, "entries", count)
	return nil
}
