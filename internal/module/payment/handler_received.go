package payment

import (
	"context"
	"fmt"

	"github.com/ledgerworks/ledgercore/internal/ledger"
	"github.com/ledgerworks/ledgercore/pkg/logger"
	"github.com/ledgerworks/ledgercore/pkg/money"
)

// ReceivedHandler records money collected from a customer
// DEBIT cash/bank, CREDIT receivable
type ReceivedHandler struct {
	ledger.BaseHandler
	accounts AccountLookup
	codes    Accounts
	logger   *logger.Logger
}

// NewReceivedHandler creates a new payment received handler
func NewReceivedHandler(accounts AccountLookup, codes Accounts, log *logger.Logger) *ReceivedHandler {
	return &ReceivedHandler{
		BaseHandler: ledger.NewBaseHandler(ledger.DocTypePaymentReceived),
		accounts:    accounts,
		codes:       codes,
		logger:      log.WithField("component", "payment"),
	}
}

// Handle generates the journal lines for a received payment
func (h *ReceivedHandler) Handle(ctx context.Context, data map[string]interface{}) ([]ledger.Line, error) {
	p, err := parsePayment(data)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	memo := fmt.Sprintf("Payment %s received from %s", p.Number, p.Party)
	lines, err := transfer(ctx, h.accounts, h.codes.moneyAccount(p), h.codes.Receivable, p.Amount, memo)
	if err != nil {
		return nil, err
	}

	h.logger.Debug("payment received lines generated", "number", p.Number, "amount", money.Format(p.Amount))
	return lines, nil
}

// ValidateData validates the payment payload
func (h *ReceivedHandler) ValidateData(ctx context.Context, data map[string]interface{}) error {
	p, err := parsePayment(data)
	if err != nil {
		return err
	}
	return p.Validate()
}
