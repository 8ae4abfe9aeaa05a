package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerworks/ledgercore/internal/ledger"
)

func newAccount(code string) *ledger.Account {
	return &ledger.Account{
		ID:             uuid.New(),
		Code:           code,
		Name:           "Account " + code,
		Type:           ledger.AccountTypeAsset,
		OpeningBalance: decimal.Zero,
		Balance:        decimal.Zero,
		IsActive:       true,
	}
}

func TestLedgerRepository_UpdateAccount_KeepsCommittedBalance(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository()
	cash := newAccount("1000")
	require.NoError(t, repo.CreateAccount(ctx, cash))

	txCtx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	stale, err := repo.GetAccount(txCtx, cash.ID)
	require.NoError(t, err)

	// another writer moves the balance after the read
	require.NoError(t, repo.UpdateAccountBalance(ctx, cash.ID, decimal.NewFromInt(100)))

	stale.Name = "Petty cash"
	require.NoError(t, repo.UpdateAccount(txCtx, stale))
	require.NoError(t, repo.CommitTx(txCtx))

	got, err := repo.GetAccount(ctx, cash.ID)
	require.NoError(t, err)
	assert.Equal(t, "Petty cash", got.Name)
	assert.True(t, decimal.NewFromInt(100).Equal(got.Balance), "balance was %s", got.Balance)
}

func TestLedgerRepository_UpdateAccountBalance_KeepsCommittedAttributes(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository()
	cash := newAccount("1000")
	require.NoError(t, repo.CreateAccount(ctx, cash))

	txCtx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateAccountBalance(txCtx, cash.ID, decimal.NewFromInt(40)))

	renamed := *cash
	renamed.Name = "Petty cash"
	require.NoError(t, repo.UpdateAccount(ctx, &renamed))
	require.NoError(t, repo.CommitTx(txCtx))

	got, err := repo.GetAccount(ctx, cash.ID)
	require.NoError(t, err)
	assert.Equal(t, "Petty cash", got.Name)
	assert.True(t, decimal.NewFromInt(40).Equal(got.Balance))
}

func TestLedgerRepository_GetJournalEntryForUpdate_HoldsRowUntilCommit(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository()
	entry := &ledger.JournalEntry{ID: uuid.New(), Date: time.Now().UTC(), Status: ledger.EntryStatusDraft}
	require.NoError(t, repo.CreateJournalEntry(ctx, entry))

	first, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	_, err = repo.GetJournalEntryForUpdate(first, entry.ID)
	require.NoError(t, err)

	second, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	waitCtx, cancel := context.WithTimeout(second, 20*time.Millisecond)
	defer cancel()
	_, err = repo.GetJournalEntryForUpdate(waitCtx, entry.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	edited := *entry
	edited.Reference = "INV-1"
	require.NoError(t, repo.UpdateJournalEntry(first, &edited))
	require.NoError(t, repo.CommitTx(first))

	got, err := repo.GetJournalEntryForUpdate(second, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-1", got.Reference)
	require.NoError(t, repo.RollbackTx(second))
}

func TestLedgerRepository_CommitTx_RejectsPostedEntryRevertingToDraft(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository()
	entry := &ledger.JournalEntry{ID: uuid.New(), Date: time.Now().UTC(), Status: ledger.EntryStatusDraft}
	require.NoError(t, repo.CreateJournalEntry(ctx, entry))

	txCtx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	draft, err := repo.GetJournalEntry(txCtx, entry.ID)
	require.NoError(t, err)

	posted := *entry
	posted.Status = ledger.EntryStatusPosted
	require.NoError(t, repo.UpdateJournalEntry(ctx, &posted))

	draft.Reference = "late edit"
	require.NoError(t, repo.UpdateJournalEntry(txCtx, draft))
	err = repo.CommitTx(txCtx)
	assert.ErrorIs(t, err, ledger.ErrAlreadyPosted)

	got, err := repo.GetJournalEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPosted())
	assert.Empty(t, got.Reference)
}

func TestLedgerRepository_CreateLedgerEntries_RejectsCommittedDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository()
	accountID, journalID := uuid.New(), uuid.New()
	le := func() *ledger.LedgerEntry {
		return &ledger.LedgerEntry{
			ID:             uuid.New(),
			AccountID:      accountID,
			JournalEntryID: journalID,
			Date:           time.Now().UTC(),
			Debit:          decimal.NewFromInt(1),
			Credit:         decimal.Zero,
			RunningBalance: decimal.NewFromInt(1),
		}
	}

	require.NoError(t, repo.CreateLedgerEntries(ctx, []*ledger.LedgerEntry{le()}))
	assert.Error(t, repo.CreateLedgerEntries(ctx, []*ledger.LedgerEntry{le()}))

	count, err := repo.CountLedgerEntries(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
