package invoice

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

// SalesInvoiceHandler turns a sales invoice into a receivable against revenue and output tax
type SalesInvoiceHandler struct {
	ledger.BaseHandler
	accounts AccountLookup
	codes    Accounts
	logger   *logger.Logger
}

// NewSalesInvoiceHandler creates a new sales invoice handler
func NewSalesInvoiceHandler(accounts AccountLookup, codes Accounts, log *logger.Logger) *SalesInvoiceHandler {
	return &SalesInvoiceHandler{
		BaseHandler: ledger.NewBaseHandler(ledger.DocTypeSalesInvoice),
		accounts:    accounts,
		codes:       codes,
		logger:      log.WithField("component", "invoice"),
	}
}

// Handle generates the journal lines for a sales invoice
func (h *SalesInvoiceHandler) Handle(ctx context.Context, data map[string]interface{}) ([]ledger.Line, error) {
	inv, err := h.unmarshalData(data)
	if err != nil {
		return nil, err
	}

	if err := inv.Validate(); err != nil {
		return nil, err
	}

	totals, err := tax.Summarize(inv.Items, inv.InterState)
	if err != nil {
		return nil, err
	}
	if !totals.Total.IsPositive() {
		return nil, ledger.NewError(ledger.KindValidation, ErrZeroTotal, "items", "")
	}

	lines, err := h.generateLines(ctx, inv, totals)
	if err != nil {
		return nil, err
	}

	h.logger.Debug("invoice lines generated",
		"number", inv.Number,
		"taxable", money.Format(totals.Taxable),
		"tax", money.Format(totals.Tax.Total),
		"line_count", len(lines),
	)

	return lines, nil
}

// ValidateData validates the invoice payload
func (h *SalesInvoiceHandler) ValidateData(ctx context.Context, data map[string]interface{}) error {
	inv, err := h.unmarshalData(data)
	if err != nil {
		return err
	}
	return inv.Validate()
}

// generateLines builds the invoice entry:
// DEBIT receivable (total), CREDIT revenue (taxable), CREDIT each nonzero output tax component
func (h *SalesInvoiceHandler) generateLines(ctx context.Context, inv *SalesInvoice, totals tax.DocumentTotals) ([]ledger.Line, error) {
	codes := h.codes.withOverrides(inv)
	memo := fmt.Sprintf("Invoice %s to %s", inv.Number, inv.Customer)

	postings := []struct {
		code   string
		amount decimal.Decimal
		debit  bool
		label  string
	}{
		{codes.Receivable, totals.Total, true, "receivable"},
		{codes.Revenue, totals.Taxable, false, "revenue"},
		{codes.CGST, totals.Tax.CGST, false, "CGST"},
		{codes.SGST, totals.Tax.SGST, false, "SGST"},
		{codes.IGST, totals.Tax.IGST, false, "IGST"},
	}

	lines := make([]ledger.Line, 0, len(postings))
	for _, p := range postings {
		if p.amount.IsZero() {
			continue
		}

		account, err := h.accounts.GetAccountByCode(ctx, p.code)
		if err != nil {
			return nil, fmt.Errorf("resolve %s account: %w", p.label, err)
		}

		line := ledger.Line{
			AccountID:   account.ID,
			Debit:       decimal.Zero,
			Credit:      decimal.Zero,
			Description: memo + " " + p.label,
		}
		if p.debit {
			line.Debit = p.amount
		} else {
			line.Credit = p.amount
		}
		lines = append(lines, line)
	}

	return lines, nil
}

// unmarshalData converts the raw payload into a SalesInvoice
func (h *SalesInvoiceHandler) unmarshalData(data map[string]interface{}) (*SalesInvoice, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invoice data: %w", err)
	}

	var inv SalesInvoice
	if err := json.Unmarshal(jsonData, &inv); err != nil {
		return nil, ledger.NewError(ledger.KindValidation, fmt.Errorf("malformed invoice: %w", err), "data", "")
	}

	return &inv, nil
}
