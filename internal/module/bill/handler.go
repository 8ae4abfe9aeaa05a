package bill

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ledgerworks/ledgercore/internal/ledger"
	"github.com/ledgerworks/ledgercore/internal/tax"
	"github.com/ledgerworks/ledgercore/pkg/logger"
	"github.com/ledgerworks/ledgercore/pkg/money"
)

// AccountLookup resolves account codes to accounts
type AccountLookup interface {
	GetAccountByCode(ctx context.Context, code string) (*ledger.Account, error)
}

// PurchaseBillHandler turns a supplier bill into expense and input tax credit against a payable
type PurchaseBillHandler struct {
	ledger.BaseHandler
	accounts AccountLookup
	codes    Accounts
	logger   *logger.Logger
}

// NewPurchaseBillHandler creates a new purchase bill handler
func NewPurchaseBillHandler(accounts AccountLookup, codes Accounts, log *logger.Logger) *PurchaseBillHandler {
	return &PurchaseBillHandler{
		BaseHandler: ledger.NewBaseHandler(ledger.DocTypePurchaseBill),
		accounts:    accounts,
		codes:       codes,
		logger:      log.WithField("component", "bill"),
	}
}

// Handle generates the journal lines for a purchase bill
func (h *PurchaseBillHandler) Handle(ctx context.Context, data map[string]interface{}) ([]ledger.Line, error) {
	b, err := h.unmarshalData(data)
	if err != nil {
		return nil, err
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}

	totals, err := tax.Summarize(b.Items, b.InterState)
	if err != nil {
		return nil, err
	}
	if !totals.Total.IsPositive() {
		return nil, ledger.NewError(ledger.KindValidation, ErrZeroTotal, "items", "")
	}

	codes := h.codes.withOverrides(b)
	memo := fmt.Sprintf("Bill %s from %s", b.Number, b.Supplier)

	lines := make([]ledger.Line, 0, 5)
	add := func(code, label string, debit, credit decimal.Decimal) error {
		if debit.IsZero() && credit.IsZero() {
			return nil
		}
		account, err := h.accounts.GetAccountByCode(ctx, code)
		if err != nil {
			return fmt.Errorf("resolve %s account: %w", label, err)
		}
		lines = append(lines, ledger.Line{
			AccountID:   account.ID,
			Debit:       debit,
			Credit:      credit,
			Description: memo + " " + label,
		})
		return nil
	}

	// DEBIT expense and each input tax component, CREDIT payable for the total
	steps := []struct {
		code, label   string
		debit, credit decimal.Decimal
	}{
		{codes.Expense, "expense", totals.Taxable, decimal.Zero},
		{codes.CGST, "input CGST", totals.Tax.CGST, decimal.Zero},
		{codes.SGST, "input SGST", totals.Tax.SGST, decimal.Zero},
		{codes.IGST, "input IGST", totals.Tax.IGST, decimal.Zero},
		{codes.Payable, "payable", decimal.Zero, totals.Total},
	}
	for _, s := range steps {
		if err := add(s.code, s.label, s.debit, s.credit); err != nil {
			return nil, err
		}
	}

	h.logger.Debug("bill lines generated",
		"number", b.Number,
		"total", money.Format(totals.Total),
		"line_count", len(lines),
	)

	return lines, nil
}

// ValidateData validates the bill payload
func (h *PurchaseBillHandler) ValidateData(ctx context.Context, data map[string]interface{}) error {
	b, err := h.unmarshalData(data)
	if err != nil {
		return err
	}
	return b.Validate()
}

func (h *PurchaseBillHandler) unmarshalData(data map[string]interface{}) (*PurchaseBill, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bill data: %w", err)
	}

	var b PurchaseBill
	if err := json.Unmarshal(jsonData, &b); err != nil {
		return nil, ledger.NewError(ledger.KindValidation, fmt.Errorf("malformed bill: %w", err), "data", "")
	}

	return &b, nil
}
