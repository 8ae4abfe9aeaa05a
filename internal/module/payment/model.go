package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ledgerworks/ledgercore/internal/ledger"
	"github.com/ledgerworks/ledgercore/pkg/money"
)

// Method is how money moved
type Method string

const (
	MethodCash Method = "cash"
	MethodBank Method = "bank"
)

// Payment is the payload of payment_received and payment_made documents
type Payment struct {
	Number string          `json:"number"`
	Party  string          `json:"party"`
	Amount decimal.Decimal `json:"amount"`
	Method Method          `json:"method"` // defaults to bank

	// Optional override of the cash or bank account code
	Account string `json:"account,omitempty"`
}

// Validate validates the payment payload
func (p *Payment) Validate() error {
	if strings.TrimSpace(p.Party) == "" {
		return ledger.NewError(ledger.KindValidation, ErrMissingParty, "party", "")
	}

	if !p.Amount.IsPositive() || !money.HasScale(p.Amount) {
		return ledger.NewError(ledger.KindValidation, ErrInvalidAmount, "amount", "")
	}

	switch p.Method {
	case "", MethodCash, MethodBank:
	default:
		return ledger.NewError(ledger.KindValidation, ErrInvalidMethod, "method", "")
	}

	return nil
}

// Accounts holds the account codes payments post to
type Accounts struct {
	Cash       string
	Bank       string
	Receivable string
	Payable    string
}

// DefaultAccounts returns the codes used by the bundled chart of accounts
func DefaultAccounts() Accounts {
	return Accounts{
		Cash:       "1110",
		Bank:       "1120",
		Receivable: "1200",
		Payable:    "2100",
	}
}

// moneyAccount picks the cash or bank code for p
func (a Accounts) moneyAccount(p *Payment) string {
	if code := strings.TrimSpace(p.Account); code != "" {
		return code
	}
	if p.Method == MethodCash {
		return a.Cash
	}
	return a.Bank
}

// AccountLookup resolves account codes to accounts
type AccountLookup interface {
	GetAccountByCode(ctx context.Context, code string) (*ledger.Account, error)
}

func parsePayment(data map[string]interface{}) (*Payment, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment data: %w", err)
	}

	var p Payment
	if err := json.Unmarshal(jsonData, &p); err != nil {
		return nil, ledger.NewError(ledger.KindValidation, fmt.Errorf("malformed payment: %w", err), "data", "")
	}

	return &p, nil
}

// transfer builds a two-line entry moving amount from the credit account to the debit account
func transfer(ctx context.Context, lookup AccountLookup, debitCode, creditCode string, amount decimal.Decimal, memo string) ([]ledger.Line, error) {
	debitAccount, err := lookup.GetAccountByCode(ctx, debitCode)
	if err != nil {
		return nil, fmt.Errorf("resolve debit account: %w", err)
	}

	creditAccount, err := lookup.GetAccountByCode(ctx, creditCode)
	if err != nil {
		return nil, fmt.Errorf("resolve credit account: %w", err)
	}

	return []ledger.Line{
		{AccountID: debitAccount.ID, Debit: amount, Credit: decimal.Zero, Description: memo},
		{AccountID: creditAccount.ID, Debit: decimal.Zero, Credit: amount, Description: memo},
	}, nil
}
