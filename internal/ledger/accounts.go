package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateAccountInput describes a new account
type CreateAccountInput struct {
	Code           string
	Name           string
	Type           AccountType
	IsGroup        bool
	ParentID       *uuid.UUID
	OpeningBalance decimal.Decimal
	Description    string
}

// UpdateAccountInput holds the mutable fields of an account. Nil fields are left alone.
type UpdateAccountInput struct {
	Code        *string
	Name        *string
	Type        *AccountType
	Description *string
	IsActive    *bool
}

// CreateAccount adds an account to the chart. Its balance starts at the opening balance.
func (s *Service) CreateAccount(ctx context.Context, in CreateAccountInput) (*Account, error) {
	now := s.now()
	account := &Account{
		ID:             uuid.New(),
		Code:           strings.TrimSpace(in.Code),
		Name:           strings.TrimSpace(in.Name),
		Type:           in.Type,
		IsGroup:        in.IsGroup,
		ParentID:       in.ParentID,
		OpeningBalance: in.OpeningBalance,
		Balance:        in.OpeningBalance,
		IsActive:       true,
		Description:    in.Description,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := account.Validate(); err != nil {
		return nil, err
	}

	err := s.inTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.LockHierarchy(txCtx); err != nil {
			return fmt.Errorf("failed to lock hierarchy: %w", err)
		}

		if err := s.ensureCodeAvailable(txCtx, account.Code, uuid.Nil); err != nil {
			return err
		}

		if account.ParentID != nil {
			idx, err := s.loadIndex(txCtx)
			if err != nil {
				return err
			}
			if err := idx.checkParent(account.ID, *account.ParentID, 1, s.maxDepth); err != nil {
				return err
			}
		}

		if err := s.repo.CreateAccount(txCtx, account); err != nil {
			if errors.Is(err, ErrDuplicateCode) {
				return validationError(ErrDuplicateCode, "code")
			}
			return fmt.Errorf("failed to create account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateReports(ctx)
	s.logger.WithContext(ctx).Info("account created",
		"account_id", account.ID,
		"code", account.Code,
		"type", account.Type,
		"group", account.IsGroup,
	)

	return account, nil
}

// Reparent moves an account (and its subtree) under newParentID, or to the root when nil.
func (s *Service) Reparent(ctx context.Context, accountID uuid.UUID, newParentID *uuid.UUID) (*Account, error) {
	var account *Account

	err := s.inTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.LockHierarchy(txCtx); err != nil {
			return fmt.Errorf("failed to lock hierarchy: %w", err)
		}

		idx, err := s.loadIndex(txCtx)
		if err != nil {
			return err
		}

		current, ok := idx.byID[accountID]
		if !ok {
			return referenceError(ErrAccountNotFound, "id", accountID.String())
		}

		if newParentID != nil {
			if err := idx.checkParent(accountID, *newParentID, idx.height(accountID), s.maxDepth); err != nil {
				return err
			}
		}

		updated := *current
		updated.ParentID = newParentID
		updated.UpdatedAt = s.now()
		if err := s.repo.UpdateAccount(txCtx, &updated); err != nil {
			return fmt.Errorf("failed to update account: %w", err)
		}
		account = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateReports(ctx)
	s.logger.WithContext(ctx).Info("account reparented", "account_id", accountID, "parent_id", newParentID)

	return account, nil
}

// UpdateAccount changes name, description, active flag and, while the account
// has no ledger entries, its code and type.
func (s *Service) UpdateAccount(ctx context.Context, id uuid.UUID, in UpdateAccountInput) (*Account, error) {
	var account *Account

	err := s.inTx(ctx, func(txCtx context.Context) error {
		current, err := s.repo.GetAccountForUpdate(txCtx, id)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return referenceError(ErrAccountNotFound, "id", id.String())
			}
			return fmt.Errorf("failed to lock account: %w", err)
		}
		updated := *current

		if in.Code != nil || in.Type != nil {
			count, err := s.repo.CountLedgerEntries(txCtx, id)
			if err != nil {
				return fmt.Errorf("failed to count ledger entries: %w", err)
			}
			codeChanged := in.Code != nil && strings.TrimSpace(*in.Code) != current.Code
			typeChanged := in.Type != nil && *in.Type != current.Type
			if count > 0 && (codeChanged || typeChanged) {
				return stateError(ErrImmutableAccount, id.String())
			}
			if in.Code != nil {
				updated.Code = strings.TrimSpace(*in.Code)
			}
			if in.Type != nil {
				updated.Type = *in.Type
			}
		}
		if in.Name != nil {
			updated.Name = strings.TrimSpace(*in.Name)
		}
		if in.Description != nil {
			updated.Description = *in.Description
		}
		if in.IsActive != nil {
			updated.IsActive = *in.IsActive
		}

		if err := updated.Validate(); err != nil {
			return err
		}

		if !strings.EqualFold(updated.Code, current.Code) {
			if err := s.ensureCodeAvailable(txCtx, updated.Code, id); err != nil {
				return err
			}
		}

		updated.UpdatedAt = s.now()
		if err := s.repo.UpdateAccount(txCtx, &updated); err != nil {
			if errors.Is(err, ErrDuplicateCode) {
				return validationError(ErrDuplicateCode, "code")
			}
			return fmt.Errorf("failed to update account: %w", err)
		}
		account = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateReports(ctx)
	return account, nil
}

// ArchiveAccount deactivates an account. Archived accounts keep their history
// but can no longer be referenced by new lines.
func (s *Service) ArchiveAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	inactive := false
	return s.UpdateAccount(ctx, id, UpdateAccountInput{IsActive: &inactive})
}

// DeleteAccount removes an account that never received a posting and has no children
func (s *Service) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	err := s.inTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.LockHierarchy(txCtx); err != nil {
			return fmt.Errorf("failed to lock hierarchy: %w", err)
		}

		idx, err := s.loadIndex(txCtx)
		if err != nil {
			return err
		}
		if _, ok := idx.byID[id]; !ok {
			return referenceError(ErrAccountNotFound, "id", id.String())
		}
		if len(idx.children[id]) > 0 {
			return stateError(ErrAccountInUse, id.String())
		}

		count, err := s.repo.CountLedgerEntries(txCtx, id)
		if err != nil {
			return fmt.Errorf("failed to count ledger entries: %w", err)
		}
		if count > 0 {
			return stateError(ErrAccountInUse, id.String())
		}

		if err := s.repo.DeleteAccount(txCtx, id); err != nil {
			// still referenced by draft lines
			if errors.Is(err, ErrAccountInUse) {
				return stateError(ErrAccountInUse, id.String())
			}
			return fmt.Errorf("failed to delete account: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateReports(ctx)
	s.logger.WithContext(ctx).Info("account deleted", "account_id", id)
	return nil
}

// GetAccount retrieves an account by ID
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.getAccount(ctx, id)
}

// GetAccountByCode retrieves an account by code (case-insensitive)
func (s *Service) GetAccountByCode(ctx context.Context, code string) (*Account, error) {
	account, err := s.repo.GetAccountByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, referenceError(ErrAccountNotFound, "code", code)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// ListAccounts lists accounts ordered by code
func (s *Service) ListAccounts(ctx context.Context, filters AccountFilters) ([]*Account, error) {
	accounts, err := s.repo.ListAccounts(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

func (s *Service) getAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	account, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, referenceError(ErrAccountNotFound, "id", id.String())
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// ensureCodeAvailable fails when another account (other than self) owns code
func (s *Service) ensureCodeAvailable(ctx context.Context, code string, self uuid.UUID) error {
	existing, err := s.repo.GetAccountByCode(ctx, code)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("failed to check account code: %w", err)
	case existing.ID != self:
		return validationError(fmt.Errorf("%w: %s", ErrDuplicateCode, code), "code")
	}
	return nil
}

func (s *Service) loadIndex(ctx context.Context) (*accountIndex, error) {
	accounts, err := s.repo.ListAccounts(ctx, AccountFilters{})
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return newAccountIndex(accounts), nil
}
