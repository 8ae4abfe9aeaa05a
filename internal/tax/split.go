// Package tax splits GST between its central, state and integrated components.
package tax

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ledgerworks/ledgercore/internal/ledger"
	"github.com/ledgerworks/ledgercore/pkg/money"
)

var (
	ErrNegativeRate     = errors.New("tax rate cannot be negative")
	ErrNegativeQuantity = errors.New("quantity cannot be negative")
	ErrNegativePrice    = errors.New("unit price cannot be negative")
	ErrInvalidDiscount  = errors.New("discount must be between 0 and 100 percent")
	ErrSplitInvariant   = errors.New("tax components do not add up to the total")
)

var hundred = decimal.NewFromInt(100)

// Split is the tax on one amount broken into its components.
// CGST+SGST+IGST always equals Total.
type Split struct {
	CGST  decimal.Decimal `json:"cgst"`
	SGST  decimal.Decimal `json:"sgst"`
	IGST  decimal.Decimal `json:"igst"`
	Total decimal.Decimal `json:"total"`
}

// Add returns the component-wise sum of two splits
func (s Split) Add(o Split) Split {
	return Split{
		CGST:  s.CGST.Add(o.CGST),
		SGST:  s.SGST.Add(o.SGST),
		IGST:  s.IGST.Add(o.IGST),
		Total: s.Total.Add(o.Total),
	}
}

func zeroSplit() Split {
	return Split{CGST: decimal.Zero, SGST: decimal.Zero, IGST: decimal.Zero, Total: decimal.Zero}
}

// SplitTax computes the tax on base at ratePercent.
//
// The total is rounded half away from zero to 2 places. An inter-state supply
// carries it all as IGST. Otherwise it is halved between CGST and SGST; an odd
// minor unit goes to CGST.
func SplitTax(base, ratePercent decimal.Decimal, interState bool) (Split, error) {
	if ratePercent.IsNegative() {
		return Split{}, ledger.NewError(ledger.KindValidation, ErrNegativeRate, "rate", "")
	}

	total := money.ApplyRate(base, ratePercent)
	split := zeroSplit()
	split.Total = total

	if interState {
		split.IGST = total
	} else {
		split.SGST = total.Div(decimal.NewFromInt(2)).Truncate(money.Scale)
		split.CGST = total.Sub(split.SGST)
	}

	if err := split.check(); err != nil {
		return Split{}, err
	}
	return split, nil
}

func (s Split) check() error {
	sum := s.CGST.Add(s.SGST).Add(s.IGST)
	if !sum.Equal(s.Total) || !money.HasScale(s.CGST) || !money.HasScale(s.SGST) {
		return ledger.NewError(ledger.KindComputation, fmt.Errorf(
			"%w: cgst=%s sgst=%s igst=%s total=%s",
			ErrSplitInvariant,
			money.Format(s.CGST), money.Format(s.SGST), money.Format(s.IGST), money.Format(s.Total),
		), "total", "")
	}
	return nil
}

// LineItem is one priced line of an invoice or bill
type LineItem struct {
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
}

// LineTotals is the computed value of a line item
type LineTotals struct {
	Taxable decimal.Decimal `json:"taxable"`
	Tax     Split           `json:"tax"`
	Total   decimal.Decimal `json:"total"`
}

// ComputeLine prices a line: taxable = round(qty*price*(1-discount/100)), then tax on taxable.
func ComputeLine(item LineItem, interState bool) (LineTotals, error) {
	if item.Quantity.IsNegative() {
		return LineTotals{}, ledger.NewError(ledger.KindValidation, ErrNegativeQuantity, "quantity", "")
	}
	if item.UnitPrice.IsNegative() {
		return LineTotals{}, ledger.NewError(ledger.KindValidation, ErrNegativePrice, "unit_price", "")
	}
	if item.DiscountPercent.IsNegative() || item.DiscountPercent.GreaterThan(hundred) {
		return LineTotals{}, ledger.NewError(ledger.KindValidation, ErrInvalidDiscount, "discount_percent", "")
	}

	gross := item.Quantity.Mul(item.UnitPrice)
	taxable := money.Round(gross.Mul(hundred.Sub(item.DiscountPercent)).Div(hundred))

	split, err := SplitTax(taxable, item.TaxRate, interState)
	if err != nil {
		return LineTotals{}, err
	}

	return LineTotals{
		Taxable: taxable,
		Tax:     split,
		Total:   taxable.Add(split.Total),
	}, nil
}

// DocumentTotals sums the lines of one document
type DocumentTotals struct {
	Lines   []LineTotals    `json:"lines"`
	Taxable decimal.Decimal `json:"taxable"`
	Tax     Split           `json:"tax"`
	Total   decimal.Decimal `json:"total"`
}

// Summarize computes every line and sums them. Tax is split per line and the
// splits are summed, never re-split on the document total.
func Summarize(items []LineItem, interState bool) (DocumentTotals, error) {
	totals := DocumentTotals{
		Lines:   make([]LineTotals, 0, len(items)),
		Taxable: decimal.Zero,
		Tax:     zeroSplit(),
		Total:   decimal.Zero,
	}

	for i, item := range items {
		line, err := ComputeLine(item, interState)
		if err != nil {
			var le *ledger.Error
			if errors.As(err, &le) {
				le.Field = fmt.Sprintf("items[%d].%s", i, le.Field)
			}
			return DocumentTotals{}, err
		}
		totals.Lines = append(totals.Lines, line)
		totals.Taxable = totals.Taxable.Add(line.Taxable)
		totals.Tax = totals.Tax.Add(line.Tax)
		totals.Total = totals.Total.Add(line.Total)
	}

	return totals, nil
}
