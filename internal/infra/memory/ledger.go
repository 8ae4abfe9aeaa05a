// Package memory provides in-process repositories used when no database is
// configured and by the service tests.
package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerworks/ledgercore/internal/ledger"
)

var errNoTx = errors.New("no transaction in context")

type txKey struct{}

// ledgerTx stages writes until commit. Reads inside the transaction see the
// staged state layered over the committed one.
type ledgerTx struct {
	accounts        map[uuid.UUID]*ledger.Account
	deletedAccounts map[uuid.UUID]struct{}
	entries         map[uuid.UUID]*ledger.JournalEntry
	ledgerEntries   []*ledger.LedgerEntry
	// columns written per staged account; commit merges only these onto the
	// committed row
	writes          map[uuid.UUID]columns
	rows            []uuid.UUID
	hierarchyLocked bool
	done            bool
}

type columns struct {
	attrs   bool
	balance bool
}

// LedgerRepository is an in-memory ledger.Repository.
// Committed state changes only under the write lock, so readers observe a
// transaction entirely or not at all.
type LedgerRepository struct {
	mu            sync.RWMutex
	accounts      map[uuid.UUID]*ledger.Account
	entries       map[uuid.UUID]*ledger.JournalEntry
	ledgerEntries []*ledger.LedgerEntry
	byAccount     map[uuid.UUID][]*ledger.LedgerEntry

	hierarchy chan struct{}
	rows      *rowLocks
	number    atomic.Int64
	sequence  atomic.Int64
}

var _ ledger.Repository = (*LedgerRepository)(nil)

// NewLedgerRepository creates an empty repository
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{
		accounts:  make(map[uuid.UUID]*ledger.Account),
		entries:   make(map[uuid.UUID]*ledger.JournalEntry),
		byAccount: make(map[uuid.UUID][]*ledger.LedgerEntry),
		hierarchy: make(chan struct{}, 1),
		rows:      &rowLocks{slots: make(map[uuid.UUID]chan struct{})},
	}
}

func txFrom(ctx context.Context) *ledgerTx {
	tx, _ := ctx.Value(txKey{}).(*ledgerTx)
	return tx
}

// BeginTx starts a transaction carried by the returned context
func (r *LedgerRepository) BeginTx(ctx context.Context) (context.Context, error) {
	tx := &ledgerTx{
		accounts:        make(map[uuid.UUID]*ledger.Account),
		deletedAccounts: make(map[uuid.UUID]struct{}),
		entries:         make(map[uuid.UUID]*ledger.JournalEntry),
		writes:          make(map[uuid.UUID]columns),
	}
	return context.WithValue(ctx, txKey{}, tx), nil
}

// CommitTx applies the staged writes atomically
func (r *LedgerRepository) CommitTx(ctx context.Context) error {
	tx := txFrom(ctx)
	if tx == nil || tx.done {
		return errNoTx
	}
	defer r.finish(tx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkCodes(tx); err != nil {
		return err
	}

	// a posted entry never goes back to draft
	for id, e := range tx.entries {
		if prev, ok := r.entries[id]; ok && prev.IsPosted() && !e.IsPosted() {
			return fmt.Errorf("%w: %s", ledger.ErrAlreadyPosted, id)
		}
	}

	for id := range tx.deletedAccounts {
		delete(r.accounts, id)
	}
	for id, a := range tx.accounts {
		r.accounts[id] = mergeAccount(r.accounts[id], a, tx.writes[id])
	}
	for id, e := range tx.entries {
		r.entries[id] = e
	}
	for _, le := range tx.ledgerEntries {
		r.ledgerEntries = append(r.ledgerEntries, le)
		r.byAccount[le.AccountID] = append(r.byAccount[le.AccountID], le)
	}
	return nil
}

// RollbackTx discards the staged writes
func (r *LedgerRepository) RollbackTx(ctx context.Context) error {
	tx := txFrom(ctx)
	if tx == nil || tx.done {
		return errNoTx
	}
	r.finish(tx)
	return nil
}

func (r *LedgerRepository) finish(tx *ledgerTx) {
	tx.done = true
	if tx.hierarchyLocked {
		tx.hierarchyLocked = false
		<-r.hierarchy
	}
	for _, id := range tx.rows {
		r.rows.release(id)
	}
	tx.rows = nil
}

// mergeAccount lays the staged columns over the committed row so that
// concurrent transactions writing different columns do not undo each other
func mergeAccount(committed, staged *ledger.Account, written columns) *ledger.Account {
	if committed == nil {
		return staged
	}
	merged := cloneAccount(committed)
	if written.attrs {
		balance := merged.Balance
		merged = cloneAccount(staged)
		merged.Balance = balance
	}
	if written.balance {
		merged.Balance = staged.Balance
		if staged.UpdatedAt.After(merged.UpdatedAt) {
			merged.UpdatedAt = staged.UpdatedAt
		}
	}
	return merged
}

// rowLocks hands out one exclusive slot per row, held by a transaction until
// it ends. Slots are never dropped; the store keeps every row anyway.
type rowLocks struct {
	mu    sync.Mutex
	slots map[uuid.UUID]chan struct{}
}

func (l *rowLocks) slot(id uuid.UUID) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[id]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[id] = ch
	}
	return ch
}

func (l *rowLocks) release(id uuid.UUID) {
	<-l.slot(id)
}

// lockRow takes the row lock for the context transaction. Outside a
// transaction there is nothing to hold it for, so it is a no-op.
func (r *LedgerRepository) lockRow(ctx context.Context, id uuid.UUID) error {
	tx := txFrom(ctx)
	if tx == nil {
		return nil
	}
	if tx.done {
		return errNoTx
	}
	if slices.Contains(tx.rows, id) {
		return nil
	}
	select {
	case r.rows.slot(id) <- struct{}{}:
		tx.rows = append(tx.rows, id)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LockHierarchy holds the chart structure lock until the transaction ends
func (r *LedgerRepository) LockHierarchy(ctx context.Context) error {
	tx := txFrom(ctx)
	if tx == nil {
		return errNoTx
	}
	if tx.hierarchyLocked {
		return nil
	}
	select {
	case r.hierarchy <- struct{}{}:
		tx.hierarchyLocked = true
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// checkCodes enforces case-insensitive code uniqueness over the merged state
func (r *LedgerRepository) checkCodes(tx *ledgerTx) error {
	owner := make(map[string]uuid.UUID, len(r.accounts)+len(tx.accounts))
	for id, a := range r.accounts {
		if _, gone := tx.deletedAccounts[id]; gone {
			continue
		}
		if staged, ok := tx.accounts[id]; ok {
			a = staged
		}
		owner[strings.ToLower(a.Code)] = id
	}
	for id, a := range tx.accounts {
		key := strings.ToLower(a.Code)
		if other, ok := owner[key]; ok && other != id {
			return fmt.Errorf("%w: %s", ledger.ErrDuplicateCode, a.Code)
		}
		owner[key] = id
	}
	return nil
}

// write runs fn against the context transaction, or a one-shot one
func (r *LedgerRepository) write(ctx context.Context, fn func(tx *ledgerTx) error) error {
	if tx := txFrom(ctx); tx != nil {
		if tx.done {
			return errNoTx
		}
		return r.stage(tx, fn)
	}
	txCtx, _ := r.BeginTx(ctx)
	if err := r.stage(txFrom(txCtx), fn); err != nil {
		_ = r.RollbackTx(txCtx)
		return err
	}
	return r.CommitTx(txCtx)
}

func (r *LedgerRepository) stage(tx *ledgerTx, fn func(tx *ledgerTx) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fn(tx)
}

// Account operations

func (r *LedgerRepository) CreateAccount(ctx context.Context, account *ledger.Account) error {
	return r.write(ctx, func(tx *ledgerTx) error {
		if _, err := r.lookupAccount(tx, account.ID); err == nil {
			return fmt.Errorf("account %s already exists", account.ID)
		}
		if existing, err := r.lookupByCode(tx, account.Code); err == nil && existing.ID != account.ID {
			return fmt.Errorf("%w: %s", ledger.ErrDuplicateCode, account.Code)
		}
		tx.accounts[account.ID] = cloneAccount(account)
		tx.writes[account.ID] = columns{attrs: true, balance: true}
		return nil
	})
}

// UpdateAccount writes every column except the balance, which only
// UpdateAccountBalance moves
func (r *LedgerRepository) UpdateAccount(ctx context.Context, account *ledger.Account) error {
	return r.write(ctx, func(tx *ledgerTx) error {
		current, err := r.lookupAccount(tx, account.ID)
		if err != nil {
			return err
		}
		if existing, err := r.lookupByCode(tx, account.Code); err == nil && existing.ID != account.ID {
			return fmt.Errorf("%w: %s", ledger.ErrDuplicateCode, account.Code)
		}
		updated := cloneAccount(account)
		updated.Balance = current.Balance
		tx.accounts[account.ID] = updated
		w := tx.writes[account.ID]
		w.attrs = true
		tx.writes[account.ID] = w
		return nil
	})
}

func (r *LedgerRepository) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	return r.write(ctx, func(tx *ledgerTx) error {
		if _, err := r.lookupAccount(tx, id); err != nil {
			return err
		}
		delete(tx.accounts, id)
		tx.deletedAccounts[id] = struct{}{}
		return nil
	})
}

func (r *LedgerRepository) GetAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, err := r.lookupAccount(txFrom(ctx), id)
	if err != nil {
		return nil, err
	}
	return cloneAccount(a), nil
}

// GetAccountForUpdate locks the account row until the transaction ends, then
// reads it
func (r *LedgerRepository) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	if err := r.lockRow(ctx, id); err != nil {
		return nil, err
	}
	return r.GetAccount(ctx, id)
}

func (r *LedgerRepository) GetAccountByCode(ctx context.Context, code string) (*ledger.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, err := r.lookupByCode(txFrom(ctx), code)
	if err != nil {
		return nil, err
	}
	return cloneAccount(a), nil
}

func (r *LedgerRepository) ListAccounts(ctx context.Context, filters ledger.AccountFilters) ([]*ledger.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*ledger.Account
	for _, a := range r.mergedAccounts(txFrom(ctx)) {
		if filters.Type != nil && a.Type != *filters.Type {
			continue
		}
		if filters.IsActive != nil && a.IsActive != *filters.IsActive {
			continue
		}
		if filters.IsGroup != nil && a.IsGroup != *filters.IsGroup {
			continue
		}
		out = append(out, cloneAccount(a))
	}
	slices.SortFunc(out, func(a, b *ledger.Account) int { return strings.Compare(a.Code, b.Code) })
	return out, nil
}

func (r *LedgerRepository) UpdateAccountBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	return r.write(ctx, func(tx *ledgerTx) error {
		a, err := r.lookupAccount(tx, id)
		if err != nil {
			return err
		}
		updated := cloneAccount(a)
		updated.Balance = balance
		updated.UpdatedAt = time.Now().UTC()
		tx.accounts[id] = updated
		w := tx.writes[id]
		w.balance = true
		tx.writes[id] = w
		return nil
	})
}

// lookup helpers expect r.mu to be held in either mode
func (r *LedgerRepository) lookupAccount(tx *ledgerTx, id uuid.UUID) (*ledger.Account, error) {
	if tx != nil {
		if _, gone := tx.deletedAccounts[id]; gone {
			return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, id)
		}
		if a, ok := tx.accounts[id]; ok {
			return a, nil
		}
	}
	if a, ok := r.accounts[id]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, id)
}

func (r *LedgerRepository) lookupByCode(tx *ledgerTx, code string) (*ledger.Account, error) {
	for _, a := range r.mergedAccounts(tx) {
		if strings.EqualFold(a.Code, code) {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, code)
}

func (r *LedgerRepository) mergedAccounts(tx *ledgerTx) map[uuid.UUID]*ledger.Account {
	if tx == nil {
		return r.accounts
	}
	merged := make(map[uuid.UUID]*ledger.Account, len(r.accounts)+len(tx.accounts))
	for id, a := range r.accounts {
		if _, gone := tx.deletedAccounts[id]; !gone {
			merged[id] = a
		}
	}
	for id, a := range tx.accounts {
		merged[id] = a
	}
	return merged
}

// Journal entry operations

func (r *LedgerRepository) CreateJournalEntry(ctx context.Context, entry *ledger.JournalEntry) error {
	return r.write(ctx, func(tx *ledgerTx) error {
		entry.Number = r.number.Add(1)
		tx.entries[entry.ID] = cloneEntry(entry)
		return nil
	})
}

func (r *LedgerRepository) UpdateJournalEntry(ctx context.Context, entry *ledger.JournalEntry) error {
	return r.write(ctx, func(tx *ledgerTx) error {
		if _, err := r.lookupEntry(tx, entry.ID); err != nil {
			return err
		}
		tx.entries[entry.ID] = cloneEntry(entry)
		return nil
	})
}

func (r *LedgerRepository) GetJournalEntry(ctx context.Context, id uuid.UUID) (*ledger.JournalEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, err := r.lookupEntry(txFrom(ctx), id)
	if err != nil {
		return nil, err
	}
	return cloneEntry(e), nil
}

// GetJournalEntryForUpdate locks the entry row until the transaction ends,
// then reads it
func (r *LedgerRepository) GetJournalEntryForUpdate(ctx context.Context, id uuid.UUID) (*ledger.JournalEntry, error) {
	if err := r.lockRow(ctx, id); err != nil {
		return nil, err
	}
	return r.GetJournalEntry(ctx, id)
}

func (r *LedgerRepository) ListJournalEntries(ctx context.Context, filters ledger.JournalFilters) ([]*ledger.JournalEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tx := txFrom(ctx)
	merged := make(map[uuid.UUID]*ledger.JournalEntry, len(r.entries))
	for id, e := range r.entries {
		merged[id] = e
	}
	if tx != nil {
		for id, e := range tx.entries {
			merged[id] = e
		}
	}

	var out []*ledger.JournalEntry
	for _, e := range merged {
		if !matchesJournal(e, filters) {
			continue
		}
		out = append(out, cloneEntry(e))
	}
	slices.SortFunc(out, func(a, b *ledger.JournalEntry) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.Number, b.Number)
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(out) {
			return []*ledger.JournalEntry{}, nil
		}
		out = out[filters.Offset:]
	}
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

func matchesJournal(e *ledger.JournalEntry, f ledger.JournalFilters) bool {
	if f.Status != nil && e.Status != *f.Status {
		return false
	}
	if f.From != nil && e.Date.Before(ledger.DateOnly(*f.From)) {
		return false
	}
	if f.To != nil && e.Date.After(ledger.DateOnly(*f.To)) {
		return false
	}
	if f.AccountID != nil && !slices.Contains(e.AccountIDs(), *f.AccountID) {
		return false
	}
	return true
}

func (r *LedgerRepository) lookupEntry(tx *ledgerTx, id uuid.UUID) (*ledger.JournalEntry, error) {
	if tx != nil {
		if e, ok := tx.entries[id]; ok {
			return e, nil
		}
	}
	if e, ok := r.entries[id]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %s", ledger.ErrEntryNotFound, id)
}

// Ledger entry operations

func (r *LedgerRepository) CreateLedgerEntries(ctx context.Context, entries []*ledger.LedgerEntry) error {
	return r.write(ctx, func(tx *ledgerTx) error {
		for _, e := range entries {
			existing := slices.Concat(r.byAccount[e.AccountID], tx.ledgerEntries)
			for _, staged := range existing {
				if staged.AccountID == e.AccountID && staged.JournalEntryID == e.JournalEntryID {
					return fmt.Errorf("ledger entry for account %s and journal entry %s already exists",
						e.AccountID, e.JournalEntryID)
				}
			}
			e.Sequence = r.sequence.Add(1)
			c := *e
			tx.ledgerEntries = append(tx.ledgerEntries, &c)
		}
		return nil
	})
}

func (r *LedgerRepository) ListLedgerEntries(ctx context.Context, filters ledger.LedgerFilters) ([]*ledger.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.accountEntries(txFrom(ctx), filters.AccountID)

	out := make([]*ledger.LedgerEntry, 0, min(len(all), max(filters.Limit, 0)))
	for _, e := range all {
		if filters.From != nil && e.Date.Before(ledger.DateOnly(*filters.From)) {
			continue
		}
		if filters.To != nil && e.Date.After(ledger.DateOnly(*filters.To)) {
			continue
		}
		if filters.After != nil && compareEntry(e, filters.After.Date, filters.After.Sequence) <= 0 {
			continue
		}
		c := *e
		out = append(out, &c)
		if filters.Limit > 0 && len(out) == filters.Limit {
			break
		}
	}
	return out, nil
}

func (r *LedgerRepository) LastLedgerEntry(ctx context.Context, accountID uuid.UUID) (*ledger.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.accountEntries(txFrom(ctx), accountID)
	if len(all) == 0 {
		return nil, nil
	}
	c := *all[len(all)-1]
	return &c, nil
}

func (r *LedgerRepository) CountLedgerEntries(ctx context.Context, accountID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.accountEntries(txFrom(ctx), accountID)), nil
}

func (r *LedgerRepository) SumLedgerEntries(ctx context.Context, asOf time.Time) (map[uuid.UUID]ledger.Movement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cutoff := ledger.DateOnly(asOf)
	sums := make(map[uuid.UUID]ledger.Movement)
	for _, e := range r.ledgerEntries {
		if e.Date.After(cutoff) {
			continue
		}
		m, ok := sums[e.AccountID]
		if !ok {
			m = ledger.Movement{Debit: decimal.Zero, Credit: decimal.Zero}
		}
		m.Debit = m.Debit.Add(e.Debit)
		m.Credit = m.Credit.Add(e.Credit)
		sums[e.AccountID] = m
	}
	return sums, nil
}

// accountEntries returns committed plus staged entries of an account in (date, sequence) order
func (r *LedgerRepository) accountEntries(tx *ledgerTx, accountID uuid.UUID) []*ledger.LedgerEntry {
	all := slices.Clone(r.byAccount[accountID])
	if tx != nil {
		for _, e := range tx.ledgerEntries {
			if e.AccountID == accountID {
				all = append(all, e)
			}
		}
	}
	slices.SortStableFunc(all, func(a, b *ledger.LedgerEntry) int {
		return compareEntry(a, b.Date, b.Sequence)
	})
	return all
}

func compareEntry(e *ledger.LedgerEntry, date time.Time, sequence int64) int {
	if c := e.Date.Compare(date); c != 0 {
		return c
	}
	return cmp.Compare(e.Sequence, sequence)
}

func cloneAccount(a *ledger.Account) *ledger.Account {
	c := *a
	if a.ParentID != nil {
		parent := *a.ParentID
		c.ParentID = &parent
	}
	return &c
}

func cloneEntry(e *ledger.JournalEntry) *ledger.JournalEntry {
	c := *e
	c.Lines = slices.Clone(e.Lines)
	return &c
}
