package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DraftInput describes the content of a draft journal entry
type DraftInput struct {
	Date        time.Time
	Reference   string
	Description string
	Lines       []Line
}

// DocumentInput is a business document to be turned into a journal entry
type DocumentInput struct {
	Date        time.Time
	Reference   string
	Description string
	Data        map[string]interface{}
	Post        bool
}

// CreateDraft validates lines and stores them as a draft entry
func (s *Service) CreateDraft(ctx context.Context, in DraftInput) (*JournalEntry, error) {
	now := s.now()
	entry := &JournalEntry{
		ID:          uuid.New(),
		Date:        DateOnly(in.Date),
		Reference:   strings.TrimSpace(in.Reference),
		Description: in.Description,
		Status:      EntryStatusDraft,
		Lines:       slices.Clone(in.Lines),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.validateDraft(ctx, entry); err != nil {
		s.logger.WithContext(ctx).Warn("draft rejected", "error", err)
		return nil, err
	}

	if err := s.inTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.CreateJournalEntry(txCtx, entry); err != nil {
			return fmt.Errorf("failed to create journal entry: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Debug("draft created",
		"journal_entry_id", entry.ID,
		"lines", len(entry.Lines),
	)
	return entry, nil
}

// UpdateDraft replaces the content of a draft entry
func (s *Service) UpdateDraft(ctx context.Context, id uuid.UUID, in DraftInput) (*JournalEntry, error) {
	var entry *JournalEntry

	err := s.inTx(ctx, func(txCtx context.Context) error {
		current, err := s.getEntry(txCtx, id, true)
		if err != nil {
			return err
		}
		if current.IsPosted() {
			return stateError(ErrAlreadyPosted, id.String())
		}

		updated := *current
		updated.Date = DateOnly(in.Date)
		updated.Reference = strings.TrimSpace(in.Reference)
		updated.Description = in.Description
		updated.Lines = slices.Clone(in.Lines)
		updated.UpdatedAt = s.now()

		if err := s.validateDraft(txCtx, &updated); err != nil {
			return err
		}
		if err := s.repo.UpdateJournalEntry(txCtx, &updated); err != nil {
			return fmt.Errorf("failed to update journal entry: %w", err)
		}
		entry = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Post moves a draft to the ledger. Every touched account gets exactly one
// ledger entry, its cached balance moves to the new running balance and the
// entry becomes posted; all of it commits together or not at all.
//
// Running balances follow date order, so an entry dated before the latest
// ledger entry of any account it touches is rejected with ErrBackdatedPosting
// even when it balances.
//
// At most one posting is in flight per account: the service holds a lock for
// each touched account until the transaction ends. Account rows are locked in
// id order.
func (s *Service) Post(ctx context.Context, id uuid.UUID) (*JournalEntry, error) {
	start := time.Now()

	draft, err := s.getEntry(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if draft.IsPosted() {
		return nil, stateError(ErrAlreadyPosted, id.String())
	}
	accountIDs := draft.AccountIDs()

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	release, err := s.locker.acquire(lockCtx, accountIDs)
	if err != nil {
		s.logger.WithContext(ctx).Warn("posting lock wait failed",
			"journal_entry_id", id,
			"accounts", len(accountIDs),
			"error", err,
		)
		return nil, NewError(KindConcurrency, fmt.Errorf("%w: %w", ErrPostingConflict, err), "", id.String())
	}
	defer release()

	var posted *JournalEntry
	err = s.inTx(ctx, func(txCtx context.Context) error {
		entry, err := s.getEntry(txCtx, id, true)
		if err != nil {
			return err
		}
		if entry.IsPosted() {
			return stateError(ErrAlreadyPosted, id.String())
		}
		// the draft was edited between the first read and the lock
		if !slices.Equal(entry.AccountIDs(), accountIDs) {
			return NewError(KindConcurrency, ErrPostingConflict, "", id.String())
		}

		if err := entry.Validate(); err != nil {
			return err
		}

		now := s.now()
		moves := entry.movements()
		ledgerEntries := make([]*LedgerEntry, 0, len(moves))

		for _, m := range moves {
			account, err := s.repo.GetAccountForUpdate(txCtx, m.accountID)
			if err != nil {
				if errors.Is(err, ErrAccountNotFound) {
					return referenceError(ErrInvalidAccount, "account_id", m.accountID.String())
				}
				return fmt.Errorf("failed to lock account: %w", err)
			}
			if !account.IsPostable() {
				return referenceError(ErrInvalidAccount, "account_id", m.accountID.String())
			}

			last, err := s.repo.LastLedgerEntry(txCtx, m.accountID)
			if err != nil {
				return fmt.Errorf("failed to read latest ledger entry: %w", err)
			}
			if last != nil && entry.Date.Before(last.Date) {
				return stateError(fmt.Errorf("%w: account %s has entries dated %s",
					ErrBackdatedPosting, account.Code, last.Date.Format(time.DateOnly)), id.String())
			}

			balance := account.Balance.Add(SignedEffect(account.Type, m.debit, m.credit))
			if err := s.repo.UpdateAccountBalance(txCtx, account.ID, balance); err != nil {
				return fmt.Errorf("failed to update account balance: %w", err)
			}

			ledgerEntries = append(ledgerEntries, &LedgerEntry{
				ID:             uuid.New(),
				AccountID:      account.ID,
				JournalEntryID: entry.ID,
				Date:           entry.Date,
				Debit:          m.debit,
				Credit:         m.credit,
				RunningBalance: balance,
				Description:    entry.Description,
				CreatedAt:      now,
			})
		}

		if err := s.repo.CreateLedgerEntries(txCtx, ledgerEntries); err != nil {
			return fmt.Errorf("failed to create ledger entries: %w", err)
		}

		entry.Status = EntryStatusPosted
		entry.PostedAt = &now
		entry.UpdatedAt = now
		if err := s.repo.UpdateJournalEntry(txCtx, entry); err != nil {
			return fmt.Errorf("failed to mark entry posted: %w", err)
		}

		posted = entry
		return nil
	})
	if err != nil {
		// storage-level lock and serialization failures surface unclassified
		if KindOf(err) == "" && errors.Is(err, ErrPostingConflict) {
			err = NewError(KindConcurrency, err, "", id.String())
		}
		if KindOf(err) == KindValidation || KindOf(err) == KindReference {
			s.logger.WithContext(ctx).Warn("posting rejected", "journal_entry_id", id, "error", err)
		}
		return nil, err
	}

	s.invalidateReports(ctx)
	s.logger.WithContext(ctx).WithDuration(time.Since(start)).Info("journal entry posted",
		"journal_entry_id", posted.ID,
		"number", posted.Number,
		"accounts", len(accountIDs),
	)

	return posted, nil
}

// Reverse creates a draft that offsets a posted entry line by line
func (s *Service) Reverse(ctx context.Context, id uuid.UUID, date time.Time) (*JournalEntry, error) {
	original, err := s.getEntry(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if !original.IsPosted() {
		return nil, stateError(ErrNotPosted, id.String())
	}

	lines := make([]Line, len(original.Lines))
	for i, l := range original.Lines {
		lines[i] = Line{
			AccountID:   l.AccountID,
			Debit:       l.Credit,
			Credit:      l.Debit,
			Description: l.Description,
		}
	}

	now := s.now()
	entry := &JournalEntry{
		ID:          uuid.New(),
		Date:        DateOnly(date),
		Reference:   original.Reference,
		Description: fmt.Sprintf("Reversal of entry %d", original.Number),
		Status:      EntryStatusDraft,
		Lines:       lines,
		ReversalOf:  &original.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.validateDraft(ctx, entry); err != nil {
		return nil, err
	}
	if err := s.inTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.CreateJournalEntry(txCtx, entry); err != nil {
			return fmt.Errorf("failed to create journal entry: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Info("reversal drafted", "journal_entry_id", entry.ID, "reversal_of", id)
	return entry, nil
}

// RecordDocument turns a business document into a draft entry through the
// handler registered for docType, posting it when in.Post is set.
func (s *Service) RecordDocument(ctx context.Context, docType DocumentType, in DocumentInput) (*JournalEntry, error) {
	lines, err := s.registry.Handle(ctx, docType, in.Data)
	if err != nil {
		if KindOf(err) == "" {
			// handler payload errors are the caller's to fix
			err = validationError(err, "data")
		}
		return nil, err
	}

	entry, err := s.CreateDraft(ctx, DraftInput{
		Date:        in.Date,
		Reference:   in.Reference,
		Description: in.Description,
		Lines:       lines,
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Info("document recorded",
		"document_type", docType,
		"journal_entry_id", entry.ID,
		"reference", entry.Reference,
	)

	if !in.Post {
		return entry, nil
	}
	return s.Post(ctx, entry.ID)
}

// GetJournalEntry retrieves a journal entry with its lines
func (s *Service) GetJournalEntry(ctx context.Context, id uuid.UUID) (*JournalEntry, error) {
	return s.getEntry(ctx, id, false)
}

// ListJournalEntries lists entries by date then number
func (s *Service) ListJournalEntries(ctx context.Context, filters JournalFilters) ([]*JournalEntry, error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, validationError(fmt.Errorf("unknown status %q", *filters.Status), "status")
	}
	if err := (DateRange{From: filters.From, To: filters.To}).Validate(); err != nil {
		return nil, err
	}

	entries, err := s.repo.ListJournalEntries(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	return entries, nil
}

// validateDraft checks entry shape and that every line references a postable account
func (s *Service) validateDraft(ctx context.Context, entry *JournalEntry) error {
	if entry.Date.IsZero() {
		return validationError(errors.New("date is required"), "date")
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	for i, l := range entry.Lines {
		account, err := s.repo.GetAccount(ctx, l.AccountID)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return referenceError(ErrInvalidAccount, fmt.Sprintf("lines[%d].account_id", i), l.AccountID.String())
			}
			return fmt.Errorf("failed to get account: %w", err)
		}
		if !account.IsPostable() {
			return referenceError(ErrInvalidAccount, fmt.Sprintf("lines[%d].account_id", i), l.AccountID.String())
		}
	}
	return nil
}

func (s *Service) getEntry(ctx context.Context, id uuid.UUID, forUpdate bool) (*JournalEntry, error) {
	get := s.repo.GetJournalEntry
	if forUpdate {
		get = s.repo.GetJournalEntryForUpdate
	}
	entry, err := get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil, referenceError(ErrEntryNotFound, "id", id.String())
		}
		return nil, fmt.Errorf("failed to get journal entry: %w", err)
	}
	return entry, nil
}

// signedTotal is the net effect of a set of movements on an account of type t
func signedTotal(t AccountType, moves ...Movement) decimal.Decimal {
	total := decimal.Zero
	for _, m := range moves {
		total = total.Add(SignedEffect(t, m.Debit, m.Credit))
	}
	return total
}
