package bill_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ledgerworks/ledgercore/internal/ledger"
	"github.com/ledgerworks/ledgercore/internal/module/bill"
	"github.com/ledgerworks/ledgercore/internal/tax"
	"github.com/ledgerworks/ledgercore/pkg/logger"
)

type MockAccountLookup struct {
	mock.Mock
}

func (m *MockAccountLookup) GetAccountByCode(ctx context.Context, code string) (*ledger.Account, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Account), args.Error(1)
}

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPurchaseBillHandler_Lines(t *testing.T) {
	lookup := new(MockAccountLookup)
	ids := map[string]uuid.UUID{}
	for _, code := range []string{"5100", "1310", "1320", "2100"} {
		ids[code] = uuid.New()
		lookup.On("GetAccountByCode", mock.Anything, code).Return(&ledger.Account{ID: ids[code], Code: code}, nil)
	}

	h := bill.NewPurchaseBillHandler(lookup, bill.DefaultAccounts(), logger.Discard())
	assert.Equal(t, ledger.DocTypePurchaseBill, h.Type())

	data := map[string]interface{}{
		"number":   "B-77",
		"supplier": "Paper Co",
		"items": []interface{}{
			// 999.99 * 18% = 179.9982 -> 180.00, split 90.00 / 90.00
			map[string]interface{}{"quantity": 1, "unit_price": "999.99", "tax_rate": 18},
			// 10.10 * 5% = 0.505 -> 0.51, odd cent to CGST
			map[string]interface{}{"quantity": 1, "unit_price": "10.10", "tax_rate": 5},
		},
	}

	lines, err := h.Handle(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, lines, 4)

	assert.Equal(t, ids["5100"], lines[0].AccountID)
	assert.True(t, amt("1010.09").Equal(lines[0].Debit))
	assert.Equal(t, ids["1310"], lines[1].AccountID)
	assert.True(t, amt("90.26").Equal(lines[1].Debit))
	assert.Equal(t, ids["1320"], lines[2].AccountID)
	assert.True(t, amt("90.25").Equal(lines[2].Debit))
	assert.Equal(t, ids["2100"], lines[3].AccountID)
	assert.True(t, amt("1190.60").Equal(lines[3].Credit))

	assert.NoError(t, (&ledger.JournalEntry{Lines: lines}).Validate())
	lookup.AssertExpectations(t)
}

func TestPurchaseBillHandler_ExpenseOverride(t *testing.T) {
	lookup := new(MockAccountLookup)
	rent := uuid.New()
	lookup.On("GetAccountByCode", mock.Anything, "5200").Return(&ledger.Account{ID: rent, Code: "5200"}, nil)
	lookup.On("GetAccountByCode", mock.Anything, mock.Anything).Return(&ledger.Account{ID: uuid.New()}, nil)

	h := bill.NewPurchaseBillHandler(lookup, bill.DefaultAccounts(), logger.Discard())
	lines, err := h.Handle(context.Background(), map[string]interface{}{
		"supplier":        "Landlord",
		"inter_state":     true,
		"expense_account": "5200",
		"items":           []interface{}{map[string]interface{}{"quantity": 1, "unit_price": "500", "tax_rate": 18}},
	})
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, rent, lines[0].AccountID)
	assert.True(t, amt("90").Equal(lines[1].Debit), "inter-state tax is all IGST")
}

func TestPurchaseBillHandler_Validation(t *testing.T) {
	h := bill.NewPurchaseBillHandler(new(MockAccountLookup), bill.DefaultAccounts(), logger.Discard())

	err := h.ValidateData(context.Background(), map[string]interface{}{"items": []interface{}{}})
	assert.ErrorIs(t, err, bill.ErrMissingSupplier)

	err = h.ValidateData(context.Background(), map[string]interface{}{"supplier": "X"})
	assert.ErrorIs(t, err, bill.ErrNoItems)
	assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))

	_, err = h.Handle(context.Background(), map[string]interface{}{
		"supplier": "X",
		"items":    []interface{}{map[string]interface{}{"quantity": 1, "unit_price": "10", "tax_rate": -1}},
	})
	assert.ErrorIs(t, err, tax.ErrNegativeRate)
}
