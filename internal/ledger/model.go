package ledger

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerworks/ledgercore/pkg/money"
)

// AccountType represents the type of ledger account
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// Side is one column of a double-entry movement.
type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

// normalSides is the side on which each account type increases.
var normalSides = map[AccountType]Side{
	AccountTypeAsset:     SideDebit,
	AccountTypeExpense:   SideDebit,
	AccountTypeLiability: SideCredit,
	AccountTypeEquity:    SideCredit,
	AccountTypeRevenue:   SideCredit,
}

// AllAccountTypes returns every account type in chart order.
func AllAccountTypes() []AccountType {
	return []AccountType{
		AccountTypeAsset,
		AccountTypeLiability,
		AccountTypeEquity,
		AccountTypeRevenue,
		AccountTypeExpense,
	}
}

// IsValid checks if the account type is known
func (t AccountType) IsValid() bool {
	_, ok := normalSides[t]
	return ok
}

// NormalSide returns the side on which the account type increases
func (t AccountType) NormalSide() Side {
	return normalSides[t]
}

// SignedEffect returns the change a movement makes to the balance of an account of type t.
func SignedEffect(t AccountType, debit, credit decimal.Decimal) decimal.Decimal {
	if t.NormalSide() == SideDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// Account is a node of the chart of accounts.
// Group accounts hold no postings; their balance is the roll-up of their leaves.
type Account struct {
	ID             uuid.UUID
	Code           string
	Name           string
	Type           AccountType
	IsGroup        bool
	ParentID       *uuid.UUID
	OpeningBalance decimal.Decimal
	Balance        decimal.Decimal // mutated only by posting
	IsActive       bool
	Description    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate validates the account's own fields. Parent and uniqueness rules need
// the registry and are checked by the service.
func (a *Account) Validate() error {
	if strings.TrimSpace(a.Code) == "" {
		return validationError(ErrInvalidAccountCode, "code")
	}

	if strings.TrimSpace(a.Name) == "" {
		return validationError(ErrInvalidAccountName, "name")
	}

	if !a.Type.IsValid() {
		return validationError(fmt.Errorf("%w: %q", ErrInvalidAccountType, a.Type), "type")
	}

	if !money.HasScale(a.OpeningBalance) {
		return validationError(ErrInvalidAmount, "opening_balance")
	}

	if a.IsGroup && !a.OpeningBalance.IsZero() {
		return validationError(ErrGroupOpeningBalance, "opening_balance")
	}

	return nil
}

// IsPostable reports whether lines may reference the account
func (a *Account) IsPostable() bool {
	return a.IsActive && !a.IsGroup
}

// EntryStatus represents the lifecycle state of a journal entry
type EntryStatus string

const (
	EntryStatusDraft  EntryStatus = "draft"
	EntryStatusPosted EntryStatus = "posted"
)

// IsValid checks if the status is known
func (s EntryStatus) IsValid() bool {
	return s == EntryStatusDraft || s == EntryStatusPosted
}

// Line is one debit or credit row of a journal entry
type Line struct {
	AccountID   uuid.UUID
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// Validate checks that exactly one side carries a positive amount at money scale
func (l Line) Validate(index int) error {
	field := fmt.Sprintf("lines[%d]", index)

	if l.AccountID == uuid.Nil {
		return referenceError(ErrInvalidAccount, field+".account_id", "")
	}

	if l.Debit.IsNegative() || l.Credit.IsNegative() {
		return validationError(ErrInvalidLine, field)
	}

	if l.Debit.IsZero() == l.Credit.IsZero() {
		return validationError(ErrInvalidLine, field)
	}

	if !money.HasScale(l.Debit) || !money.HasScale(l.Credit) {
		return validationError(ErrInvalidAmount, field)
	}

	return nil
}

// JournalEntry is a balanced set of lines representing one business event.
// Posted entries are immutable; corrections are new offsetting entries.
type JournalEntry struct {
	ID          uuid.UUID
	Number      int64 // human-facing sequence, assigned by the repository
	Date        time.Time
	Reference   string
	Description string
	Status      EntryStatus
	Lines       []Line
	ReversalOf  *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PostedAt    *time.Time
}

// Totals returns the sums of the debit and credit columns
func (e *JournalEntry) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range e.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// Validate checks line shape and the balance invariant
func (e *JournalEntry) Validate() error {
	if len(e.Lines) == 0 {
		return validationError(ErrEmptyEntry, "lines")
	}

	for i, l := range e.Lines {
		if err := l.Validate(i); err != nil {
			return err
		}
	}

	debit, credit := e.Totals()
	if !debit.Equal(credit) {
		return validationError(fmt.Errorf(
			"%w: debit=%s, credit=%s",
			ErrUnbalanced,
			money.Format(debit),
			money.Format(credit),
		), "lines")
	}

	return nil
}

// IsPosted returns true once the entry has reached the ledger
func (e *JournalEntry) IsPosted() bool {
	return e.Status == EntryStatusPosted
}

// AccountIDs returns the distinct accounts referenced by the lines, sorted
func (e *JournalEntry) AccountIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(e.Lines))
	for _, l := range e.Lines {
		ids = append(ids, l.AccountID)
	}
	return sortedUnique(ids)
}

// movement is the net of all lines of one entry that touch one account
type movement struct {
	accountID uuid.UUID
	debit     decimal.Decimal
	credit    decimal.Decimal
}

// movements folds lines per account, ordered by account id the same way the
// posting locks are taken
func (e *JournalEntry) movements() []*movement {
	byAccount := make(map[uuid.UUID]*movement, len(e.Lines))
	var out []*movement
	for _, l := range e.Lines {
		m, ok := byAccount[l.AccountID]
		if !ok {
			m = &movement{accountID: l.AccountID, debit: decimal.Zero, credit: decimal.Zero}
			byAccount[l.AccountID] = m
			out = append(out, m)
		}
		m.debit = m.debit.Add(l.Debit)
		m.credit = m.credit.Add(l.Credit)
	}
	slices.SortFunc(out, func(a, b *movement) int {
		return strings.Compare(a.accountID.String(), b.accountID.String())
	})
	return out
}

// LedgerEntry is the posted effect of one journal entry on one account.
// IMMUTABLE: created only by posting, never updated or deleted.
type LedgerEntry struct {
	ID             uuid.UUID
	Sequence       int64 // global insertion order, assigned by the repository
	AccountID      uuid.UUID
	JournalEntryID uuid.UUID
	Date           time.Time
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	RunningBalance decimal.Decimal
	Description    string
	CreatedAt      time.Time
}

// Movement is the debit and credit total for an account over some period
type Movement struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// DateRange bounds a ledger query. Nil ends are open. Both ends are inclusive.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Validate rejects inverted ranges
func (r DateRange) Validate() error {
	if r.From != nil && r.To != nil && r.From.After(*r.To) {
		return validationError(ErrInvalidRange, "from")
	}
	return nil
}

// AccountFilters defines filters for listing accounts
type AccountFilters struct {
	Type     *AccountType
	IsActive *bool
	IsGroup  *bool
}

// JournalFilters defines filters for listing journal entries
type JournalFilters struct {
	Status    *EntryStatus
	AccountID *uuid.UUID
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// LedgerCursor is the keyset position after which a ledger page starts
type LedgerCursor struct {
	Date     time.Time
	Sequence int64
}

// LedgerFilters defines a page of ledger entries for one account
type LedgerFilters struct {
	AccountID uuid.UUID
	From      *time.Time
	To        *time.Time
	After     *LedgerCursor
	Limit     int
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sortedUnique(ids []uuid.UUID) []uuid.UUID {
	out := slices.Clone(ids)
	slices.SortFunc(out, func(a, b uuid.UUID) int {
		return strings.Compare(a.String(), b.String())
	})
	return slices.Compact(out)
}
