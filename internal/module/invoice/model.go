package invoice

import (
	"strings"

	"github.com/ledgerworks/ledgercore/internal/ledger"
	"github.com/ledgerworks/ledgercore/internal/tax"
)

// SalesInvoice is the payload of a sales_invoice document
type SalesInvoice struct {
	Number     string         `json:"number"`
	Customer   string         `json:"customer"`
	InterState bool           `json:"inter_state"`
	Items      []tax.LineItem `json:"items"`

	// Optional overrides of the configured account codes
	ReceivableAccount string `json:"receivable_account,omitempty"`
	RevenueAccount    string `json:"revenue_account,omitempty"`
}

// Validate validates the invoice payload
func (inv *SalesInvoice) Validate() error {
	if strings.TrimSpace(inv.Customer) == "" {
		return ledger.NewError(ledger.KindValidation, ErrMissingCustomer, "customer", "")
	}

	if len(inv.Items) == 0 {
		return ledger.NewError(ledger.KindValidation, ErrNoItems, "items", "")
	}

	return nil
}

// Accounts holds the account codes an invoice posts to
type Accounts struct {
	Receivable string
	Revenue    string
	CGST       string
	SGST       string
	IGST       string
}

// DefaultAccounts returns the codes used by the bundled chart of accounts
func DefaultAccounts() Accounts {
	return Accounts{
		Receivable: "1200",
		Revenue:    "4100",
		CGST:       "2210",
		SGST:       "2220",
		IGST:       "2230",
	}
}

func (a Accounts) withOverrides(inv *SalesInvoice) Accounts {
	if code := strings.TrimSpace(inv.ReceivableAccount); code != "" {
		a.Receivable = code
	}
	if code := strings.TrimSpace(inv.RevenueAccount); code != "" {
		a.Revenue = code
	}
	return a
}
