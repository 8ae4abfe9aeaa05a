package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository defines the interface for ledger persistence operations.
// Lookups of missing rows return ErrAccountNotFound / ErrEntryNotFound (wrapped).
type Repository interface {
	// Account operations
	CreateAccount(ctx context.Context, account *Account) error
	UpdateAccount(ctx context.Context, account *Account) error
	DeleteAccount(ctx context.Context, id uuid.UUID) error
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
	GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*Account, error)
	GetAccountByCode(ctx context.Context, code string) (*Account, error)
	ListAccounts(ctx context.Context, filters AccountFilters) ([]*Account, error)
	UpdateAccountBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error

	// LockHierarchy serializes chart-of-accounts structure changes for the
	// duration of the current transaction.
	LockHierarchy(ctx context.Context) error

	// Journal entry operations
	CreateJournalEntry(ctx context.Context, entry *JournalEntry) error
	UpdateJournalEntry(ctx context.Context, entry *JournalEntry) error
	GetJournalEntry(ctx context.Context, id uuid.UUID) (*JournalEntry, error)
	GetJournalEntryForUpdate(ctx context.Context, id uuid.UUID) (*JournalEntry, error)
	ListJournalEntries(ctx context.Context, filters JournalFilters) ([]*JournalEntry, error)

	// Ledger entry operations (append-only)
	CreateLedgerEntries(ctx context.Context, entries []*LedgerEntry) error
	ListLedgerEntries(ctx context.Context, filters LedgerFilters) ([]*LedgerEntry, error)
	LastLedgerEntry(ctx context.Context, accountID uuid.UUID) (*LedgerEntry, error)
	CountLedgerEntries(ctx context.Context, accountID uuid.UUID) (int, error)
	SumLedgerEntries(ctx context.Context, asOf time.Time) (map[uuid.UUID]Movement, error)

	// Transaction management
	BeginTx(ctx context.Context) (context.Context, error)
	CommitTx(ctx context.Context) error
	RollbackTx(ctx context.Context) error
}

// ReportCache stores computed trial balances. Entries are keyed by a generation
// counter that is bumped whenever the ledger or the chart changes.
type ReportCache interface {
	Generation(ctx context.Context) (int64, error)
	GetTrialBalance(ctx context.Context, generation int64, asOf time.Time) (*TrialBalance, bool, error)
	SetTrialBalance(ctx context.Context, generation int64, tb *TrialBalance) error
	Invalidate(ctx context.Context) error
}
