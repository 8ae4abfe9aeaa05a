package payment

import (
	"context"
	"fmt"

	"github.com/ledgerworks/ledgercore/internal/ledger"
	"github.com/ledgerworks/ledgercore/pkg/logger"
	"github.com/ledgerworks/ledgercore/pkg/money"
)

// MadeHandler records money paid to a supplier
// DEBIT payable, CREDIT cash/bank
type MadeHandler struct {
	ledger.BaseHandler
	accounts AccountLookup
	codes    Accounts
	logger   *logger.Logger
}

// NewMadeHandler creates a new payment made handler
func NewMadeHandler(accounts AccountLookup, codes Accounts, log *logger.Logger) *MadeHandler {
	return &MadeHandler{
		BaseHandler: ledger.NewBaseHandler(ledger.DocTypePaymentMade),
		accounts:    accounts,
		codes:       codes,
		logger:      log.WithField("component", "payment"),
	}
}

// Handle generates the journal lines for a payment made
func (h *MadeHandler) Handle(ctx context.Context, data map[string]interface{}) ([]ledger.Line, error) {
	p, err := parsePayment(data)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	memo := fmt.Sprintf("Payment %s made to %s", p.Number, p.Party)
	lines, err := transfer(ctx, h.accounts, h.codes.Payable, h.codes.moneyAccount(p), p.Amount, memo)
	if err != nil {
		return nil, err
	}

	h.logger.Debug("payment made lines generated", "number", p.Number, "amount", money.Format(p.Amount))
	return lines, nil
}

// ValidateData validates the payment payload
func (h *MadeHandler) ValidateData(ctx context.Context, data map[string]interface{}) error {
	p, err := parsePayment(data)
	if err != nil {
		return err
	}
	return p.Validate()
}
