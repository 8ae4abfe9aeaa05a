package bill

import (
	"strings"

	"github.com/ledgerworks/ledgercore/internal/ledger"
	"github.com/ledgerworks/ledgercore/internal/tax"
)

// PurchaseBill is the payload of a purchase_bill document
type PurchaseBill struct {
	Number     string         `json:"number"`
	Supplier   string         `json:"supplier"`
	InterState bool           `json:"inter_state"`
	Items      []tax.LineItem `json:"items"`

	PayableAccount string `json:"payable_account,omitempty"`
	ExpenseAccount string `json:"expense_account,omitempty"`
}

// Validate validates the bill payload
func (b *PurchaseBill) Validate() error {
	if strings.TrimSpace(b.Supplier) == "" {
		return ledger.NewError(ledger.KindValidation, ErrMissingSupplier, "supplier", "")
	}

	if len(b.Items) == 0 {
		return ledger.NewError(ledger.KindValidation, ErrNoItems, "items", "")
	}

	return nil
}

// Accounts holds the account codes a bill posts to. Tax codes are input tax
// credit (asset) accounts.
type Accounts struct {
	Payable string
	Expense string
	CGST    string
	SGST    string
	IGST    string
}

// DefaultAccounts returns the codes used by the bundled chart of accounts
func DefaultAccounts() Accounts {
	return Accounts{
		Payable: "2100",
		Expense: "5100",
		CGST:    "1310",
		SGST:    "1320",
		IGST:    "1330",
	}
}

func (a Accounts) withOverrides(b *PurchaseBill) Accounts {
	if code := strings.TrimSpace(b.PayableAccount); code != "" {
		a.Payable = code
	}
	if code := strings.TrimSpace(b.ExpenseAccount); code != "" {
		a.Expense = code
	}
	return a
}
