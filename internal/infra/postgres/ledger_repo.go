package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ledgerworks/ledgercore/internal/ledger"
)

// hierarchyLockKey is the advisory lock serializing chart-of-accounts structure changes
const hierarchyLockKey int64 = 0x6c6564676572

// LedgerRepository implements ledger.Repository using PostgreSQL
type LedgerRepository struct {
	pool *pgxpool.Pool
}

var _ ledger.Repository = (*LedgerRepository)(nil)

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// Transaction management

func (r *LedgerRepository) BeginTx(ctx context.Context) (context.Context, error) {
	return beginTx(ctx, r.pool)
}

func (r *LedgerRepository) CommitTx(ctx context.Context) error {
	return commitTx(ctx)
}

func (r *LedgerRepository) RollbackTx(ctx context.Context) error {
	return rollbackTx(ctx)
}

// LockHierarchy takes a transaction-scoped advisory lock
func (r *LedgerRepository) LockHierarchy(ctx context.Context) error {
	if txFromContext(ctx) == nil {
		return fmt.Errorf("hierarchy lock requires a transaction")
	}
	if _, err := queryer(ctx, r.pool).Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, hierarchyLockKey); err != nil {
		return fmt.Errorf("failed to lock hierarchy: %w", mapError(err))
	}
	return nil
}

// Account operations

const accountColumns = `id, code, name, type, is_group, parent_id, opening_balance::text, balance::text,
	is_active, description, created_at, updated_at`

func (r *LedgerRepository) CreateAccount(ctx context.Context, account *ledger.Account) error {
	query := `
		INSERT INTO accounts (id, code, name, type, is_group, parent_id, opening_balance, balance,
			is_active, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := queryer(ctx, r.pool).Exec(ctx, query,
		account.ID,
		account.Code,
		string(account.Type),
		account.IsGroup,
		account.ParentID,
		account.OpeningBalance.String(),
		account.Balance.String(),
		account.IsActive,
		account.Description,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", mapError(err))
	}
	return nil
}

// UpdateAccount writes the descriptive and structural fields. The cached
// balance is owned by posting and changes only through UpdateAccountBalance.
func (r *LedgerRepository) UpdateAccount(ctx context.Context, account *ledger.Account) error {
	query := `
		UPDATE accounts
		SET code = $2, name = $3, type = $4, parent_id = $5, is_active = $6, description = $7, updated_at = $8
		WHERE id = $1
	`

	tag, err := queryer(ctx, r.pool).Exec(ctx, query,
		account.ID,
		account.Code,
		string(account.Type),
		account.ParentID,
		account.IsActive,
		account.Description,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, account.ID)
	}
	return nil
}

func (r *LedgerRepository) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	tag, err := queryer(ctx, r.pool).Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation {
			return fmt.Errorf("%w: %w", ledger.ErrAccountInUse, err)
		}
		return fmt.Errorf("failed to delete account: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, id)
	}
	return nil
}

func (r *LedgerRepository) GetAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	row := queryer(ctx, r.pool).QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return r.scanAccountRow(row, id.String())
}

// GetAccountForUpdate reads the account and row-locks it until the transaction ends
func (r *LedgerRepository) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	if txFromContext(ctx) == nil {
		return nil, fmt.Errorf("row lock requires a transaction")
	}
	row := queryer(ctx, r.pool).QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
	return r.scanAccountRow(row, id.String())
}

func (r *LedgerRepository) GetAccountByCode(ctx context.Context, code string) (*ledger.Account, error) {
	row := queryer(ctx, r.pool).QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE lower(code) = lower($1)`, code)
	return r.scanAccountRow(row, code)
}

func (r *LedgerRepository) ListAccounts(ctx context.Context, filters ledger.AccountFilters) ([]*ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE 1=1`

	args := make([]interface{}, 0, 3)
	argPos := 1

	if filters.Type != nil {
		query += fmt.Sprintf(" AND type = $%d", argPos)
		args = append(args, string(*filters.Type))
		argPos++
	}

	if filters.IsActive != nil {
		query += fmt.Sprintf(" AND is_active = $%d", argPos)
		args = append(args, *filters.IsActive)
		argPos++
	}

	if filters.IsGroup != nil {
		query += fmt.Sprintf(" AND is_group = $%d", argPos)
		args = append(args, *filters.IsGroup)
	}

	query += ` ORDER BY code COLLATE "C"`

	rows, err := queryer(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*ledger.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

func (r *LedgerRepository) UpdateAccountBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	tag, err := queryer(ctx, r.pool).Exec(ctx,
		`UPDATE accounts SET balance = $2, updated_at = NOW() WHERE id = $1`,
		id, balance.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, id)
	}
	return nil
}

func (r *LedgerRepository) scanAccountRow(row pgx.Row, key string) (*ledger.Account, error) {
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, key)
		}
		return nil, err
	}
	return account, nil
}

func scanAccount(row pgx.Row) (*ledger.Account, error) {
	var (
		account                ledger.Account
		accountType            string
		openingStr, balanceStr string
	)

	err := row.Scan(
		&account.ID,
		&account.Code,
		&account.Name,
		&accountType,
		&account.IsGroup,
		&account.ParentID,
		&openingStr,
		&balanceStr,
		&account.IsActive,
		&account.Description,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	account.Type = ledger.AccountType(accountType)

	if account.OpeningBalance, err = parseAmount("opening_balance", openingStr); err != nil {
		return nil, err
	}
	if account.Balance, err = parseAmount("balance", balanceStr); err != nil {
		return nil, err
	}

	return &account, nil
}

// Journal entry operations

const journalColumns = `id, number, date, reference, description, status, reversal_of, created_at, updated_at, posted_at`

// CreateJournalEntry inserts the header and its lines; the generated number is written back
func (r *LedgerRepository) CreateJournalEntry(ctx context.Context, entry *ledger.JournalEntry) error {
	return withTx(ctx, r.pool, func(q pgx.Tx) error {
		query := `
			INSERT INTO journal_entries (id, date, reference, description, status, reversal_of, created_at, updated_at, posted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING number
		`
		err := q.QueryRow(ctx, query,
			entry.ID,
			entry.Date,
			entry.Reference,
			entry.Description,
			string(entry.Status),
			entry.ReversalOf,
			entry.CreatedAt,
			entry.UpdatedAt,
			entry.PostedAt,
		).Scan(&entry.Number)
		if err != nil {
			return fmt.Errorf("failed to create journal entry: %w", mapError(err))
		}

		return insertLines(ctx, q, entry)
	})
}

// UpdateJournalEntry rewrites the header and replaces the lines
func (r *LedgerRepository) UpdateJournalEntry(ctx context.Context, entry *ledger.JournalEntry) error {
	return withTx(ctx, r.pool, func(q pgx.Tx) error {
		query := `
			UPDATE journal_entries
			SET date = $2, reference = $3, description = $4, status = $5, updated_at = $6, posted_at = $7
			WHERE id = $1
		`
		tag, err := q.Exec(ctx, query,
			entry.ID,
			entry.Date,
			entry.Reference,
			entry.Description,
			string(entry.Status),
			entry.UpdatedAt,
			entry.PostedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update journal entry: %w", mapError(err))
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ledger.ErrEntryNotFound, entry.ID)
		}

		if _, err := q.Exec(ctx, `DELETE FROM journal_lines WHERE journal_entry_id = $1`, entry.ID); err != nil {
			return fmt.Errorf("failed to clear journal lines: %w", err)
		}
		return insertLines(ctx, q, entry)
	})
}

func insertLines(ctx context.Context, tx pgx.Tx, entry *ledger.JournalEntry) error {
	batch := &pgx.Batch{}
	for i, l := range entry.Lines {
		batch.Queue(`
			INSERT INTO journal_lines (journal_entry_id, position, account_id, debit, credit, description)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, entry.ID, i, l.AccountID, l.Debit.String(), l.Credit.String(), l.Description)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := range entry.Lines {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert line %d: %w", i, mapError(err))
		}
	}
	return nil
}

func (r *LedgerRepository) GetJournalEntry(ctx context.Context, id uuid.UUID) (*ledger.JournalEntry, error) {
	return r.getJournalEntry(ctx, id, false)
}

// GetJournalEntryForUpdate reads the entry and row-locks its header
func (r *LedgerRepository) GetJournalEntryForUpdate(ctx context.Context, id uuid.UUID) (*ledger.JournalEntry, error) {
	if txFromContext(ctx) == nil {
		return nil, fmt.Errorf("row lock requires a transaction")
	}
	return r.getJournalEntry(ctx, id, true)
}

func (r *LedgerRepository) getJournalEntry(ctx context.Context, id uuid.UUID, forUpdate bool) (*ledger.JournalEntry, error) {
	query := `SELECT ` + journalColumns + ` FROM journal_entries WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	q := queryer(ctx, r.pool)
	entry, err := scanJournalEntry(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ledger.ErrEntryNotFound, id)
		}
		return nil, err
	}

	if err := r.loadLines(ctx, q, []*ledger.JournalEntry{entry}); err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *LedgerRepository) ListJournalEntries(ctx context.Context, filters ledger.JournalFilters) ([]*ledger.JournalEntry, error) {
	query := `SELECT ` + journalColumns + ` FROM journal_entries WHERE 1=1`

	args := make([]interface{}, 0, 6)
	argPos := 1

	if filters.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, string(*filters.Status))
		argPos++
	}

	if filters.From != nil {
		query += fmt.Sprintf(" AND date >= $%d", argPos)
		args = append(args, ledger.DateOnly(*filters.From))
		argPos++
	}

	if filters.To != nil {
		query += fmt.Sprintf(" AND date <= $%d", argPos)
		args = append(args, ledger.DateOnly(*filters.To))
		argPos++
	}

	if filters.AccountID != nil {
		query += fmt.Sprintf(
			" AND EXISTS (SELECT 1 FROM journal_lines l WHERE l.journal_entry_id = journal_entries.id AND l.account_id = $%d)",
			argPos)
		args = append(args, *filters.AccountID)
		argPos++
	}

	query += " ORDER BY date, number"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, filters.Limit)
		argPos++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argPos)
		args = append(args, filters.Offset)
	}

	q := queryer(ctx, r.pool)
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}

	entries := make([]*ledger.JournalEntry, 0)
	for rows.Next() {
		entry, err := scanJournalEntry(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		entries = append(entries, entry)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal entries: %w", err)
	}

	if err := r.loadLines(ctx, q, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// loadLines fills in the lines of every entry with one query
func (r *LedgerRepository) loadLines(ctx context.Context, q querier, entries []*ledger.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*ledger.JournalEntry, len(entries))
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		byID[e.ID] = e
		ids[i] = e.ID
		e.Lines = []ledger.Line{}
	}

	rows, err := q.Query(ctx, `
		SELECT journal_entry_id, account_id, debit::text, credit::text, description
		FROM journal_lines
		WHERE journal_entry_id = ANY($1)
		ORDER BY journal_entry_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load journal lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entryID             uuid.UUID
			line                ledger.Line
			debitStr, creditStr string
		)
		if err := rows.Scan(&entryID, &line.AccountID, &debitStr, &creditStr, &line.Description); err != nil {
			return fmt.Errorf("failed to scan journal line: %w", err)
		}
		if line.Debit, err = parseAmount("debit", debitStr); err != nil {
			return err
		}
		if line.Credit, err = parseAmount("credit", creditStr); err != nil {
			return err
		}
		e := byID[entryID]
		e.Lines = append(e.Lines, line)
	}
	return rows.Err()
}

func scanJournalEntry(row pgx.Row) (*ledger.JournalEntry, error) {
	var (
		entry  ledger.JournalEntry
		status string
	)

	err := row.Scan(
		&entry.ID,
		&entry.Number,
		&entry.Date,
		&entry.Reference,
		&entry.Description,
		&status,
		&entry.ReversalOf,
		&entry.CreatedAt,
		&entry.UpdatedAt,
		&entry.PostedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan journal entry: %w", err)
	}
	entry.Status = ledger.EntryStatus(status)
	entry.Date = ledger.DateOnly(entry.Date)

	return &entry, nil
}

// Ledger entry operations (append-only)

const ledgerColumns = `id, sequence, account_id, journal_entry_id, date, debit::text, credit::text,
	running_balance::text, description, created_at`

// CreateLedgerEntries appends entries; the generated sequence is written back to each
func (r *LedgerRepository) CreateLedgerEntries(ctx context.Context, entries []*ledger.LedgerEntry) error {
	return withTx(ctx, r.pool, func(q pgx.Tx) error {
		query := `
			INSERT INTO ledger_entries (id, account_id, journal_entry_id, date, debit, credit,
				running_balance, description, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING sequence
		`
		for _, e := range entries {
			err := q.QueryRow(ctx, query,
				e.ID,
				e.AccountID,
				e.JournalEntryID,
				e.Date,
				e.Debit.String(),
				e.Credit.String(),
				e.RunningBalance.String(),
				e.Description,
				e.CreatedAt,
			).Scan(&e.Sequence)
			if err != nil {
				return fmt.Errorf("failed to create ledger entry: %w", mapError(err))
			}
		}
		return nil
	})
}

// ListLedgerEntries returns one keyset page ordered by (date, sequence)
func (r *LedgerRepository) ListLedgerEntries(ctx context.Context, filters ledger.LedgerFilters) ([]*ledger.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE account_id = $1`

	args := []interface{}{filters.AccountID}
	argPos := 2

	if filters.From != nil {
		query += fmt.Sprintf(" AND date >= $%d", argPos)
		args = append(args, ledger.DateOnly(*filters.From))
		argPos++
	}

	if filters.To != nil {
		query += fmt.Sprintf(" AND date <= $%d", argPos)
		args = append(args, ledger.DateOnly(*filters.To))
		argPos++
	}

	if filters.After != nil {
		query += fmt.Sprintf(" AND (date, sequence) > ($%d::date, $%d::bigint)", argPos, argPos+1)
		args = append(args, filters.After.Date, filters.After.Sequence)
		argPos += 2
	}

	query += " ORDER BY date, sequence"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argPos)
		args = append(args, filters.Limit)
	}

	rows, err := queryer(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*ledger.LedgerEntry, 0)
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}

// LastLedgerEntry returns the latest entry of the account, or nil when it has none
func (r *LedgerRepository) LastLedgerEntry(ctx context.Context, accountID uuid.UUID) (*ledger.LedgerEntry, error) {
	row := queryer(ctx, r.pool).QueryRow(ctx, `
		SELECT `+ledgerColumns+`
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY date DESC, sequence DESC
		LIMIT 1
	`, accountID)

	e, err := scanLedgerEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

func (r *LedgerRepository) CountLedgerEntries(ctx context.Context, accountID uuid.UUID) (int, error) {
	var count int
	err := queryer(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM ledger_entries WHERE account_id = $1`, accountID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	return count, nil
}

// SumLedgerEntries totals debits and credits per account for entries dated on or before asOf
func (r *LedgerRepository) SumLedgerEntries(ctx context.Context, asOf time.Time) (map[uuid.UUID]ledger.Movement, error) {
	rows, err := queryer(ctx, r.pool).Query(ctx, `
		SELECT account_id, SUM(debit)::text, SUM(credit)::text
		FROM ledger_entries
		WHERE date <= $1
		GROUP BY account_id
	`, ledger.DateOnly(asOf))
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	defer rows.Close()

	sums := make(map[uuid.UUID]ledger.Movement)
	for rows.Next() {
		var (
			accountID           uuid.UUID
			debitStr, creditStr string
			m                   ledger.Movement
		)
		if err := rows.Scan(&accountID, &debitStr, &creditStr); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		if m.Debit, err = parseAmount("debit", debitStr); err != nil {
			return nil, err
		}
		if m.Credit, err = parseAmount("credit", creditStr); err != nil {
			return nil, err
		}
		sums[accountID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating movements: %w", err)
	}
	return sums, nil
}

func scanLedgerEntry(row pgx.Row) (*ledger.LedgerEntry, error) {
	var (
		e                               ledger.LedgerEntry
		debitStr, creditStr, runningStr string
	)

	err := row.Scan(
		&e.ID,
		&e.Sequence,
		&e.AccountID,
		&e.JournalEntryID,
		&e.Date,
		&debitStr,
		&creditStr,
		&runningStr,
		&e.Description,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
	}
	e.Date = ledger.DateOnly(e.Date)

	if e.Debit, err = parseAmount("debit", debitStr); err != nil {
		return nil, err
	}
	if e.Credit, err = parseAmount("credit", creditStr); err != nil {
		return nil, err
	}
	if e.RunningBalance, err = parseAmount("running_balance", runningStr); err != nil {
		return nil, err
	}
	return &e, nil
}

// parseAmount parses a NUMERIC column read as text
func parseAmount(column, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse %s %q: %w", column, s, err)
	}
	return d, nil
}
