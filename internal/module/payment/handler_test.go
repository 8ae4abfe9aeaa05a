package payment_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ledgerworks/ledgercore/internal/ledger"
	"github.com/ledgerworks/ledgercore/internal/module/payment"
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

func chart(m *MockAccountLookup) map[string]uuid.UUID {
	ids := map[string]uuid.UUID{}
	for _, code := range []string{"1110", "1120", "1200", "2100"} {
		ids[code] = uuid.New()
		m.On("GetAccountByCode", mock.Anything, code).Return(&ledger.Account{ID: ids[code], Code: code}, nil).Maybe()
	}
	return ids
}

func TestReceivedHandler_DefaultsToBank(t *testing.T) {
	lookup := new(MockAccountLookup)
	ids := chart(lookup)
	h := payment.NewReceivedHandler(lookup, payment.DefaultAccounts(), logger.Discard())
	assert.Equal(t, ledger.DocTypePaymentReceived, h.Type())

	lines, err := h.Handle(context.Background(), map[string]interface{}{
		"number": "R-1",
		"party":  "Acme",
		"amount": "1180.00",
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, ids["1120"], lines[0].AccountID)
	assert.True(t, decimal.RequireFromString("1180").Equal(lines[0].Debit))
	assert.Equal(t, ids["1200"], lines[1].AccountID)
	assert.True(t, decimal.RequireFromString("1180").Equal(lines[1].Credit))
	assert.NoError(t, (&ledger.JournalEntry{Lines: lines}).Validate())
}

func TestMadeHandler_Cash(t *testing.T) {
	lookup := new(MockAccountLookup)
	ids := chart(lookup)
	h := payment.NewMadeHandler(lookup, payment.DefaultAccounts(), logger.Discard())
	assert.Equal(t, ledger.DocTypePaymentMade, h.Type())

	lines, err := h.Handle(context.Background(), map[string]interface{}{
		"party":  "Paper Co",
		"amount": 250.5,
		"method": "cash",
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, ids["2100"], lines[0].AccountID)
	assert.True(t, decimal.RequireFromString("250.50").Equal(lines[0].Debit))
	assert.Equal(t, ids["1110"], lines[1].AccountID)
	assert.True(t, decimal.RequireFromString("250.50").Equal(lines[1].Credit))
}

func TestPayment_Validation(t *testing.T) {
	h := payment.NewReceivedHandler(new(MockAccountLookup), payment.DefaultAccounts(), logger.Discard())

	tests := []struct {
		name string
		data map[string]interface{}
		err  error
	}{
		{"missing party", map[string]interface{}{"amount": "10"}, payment.ErrMissingParty},
		{"zero amount", map[string]interface{}{"party": "A", "amount": "0"}, payment.ErrInvalidAmount},
		{"negative amount", map[string]interface{}{"party": "A", "amount": "-5"}, payment.ErrInvalidAmount},
		{"too precise", map[string]interface{}{"party": "A", "amount": "1.005"}, payment.ErrInvalidAmount},
		{"bad method", map[string]interface{}{"party": "A", "amount": "1", "method": "cheque"}, payment.ErrInvalidMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.ValidateData(context.Background(), tt.data)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))
		})
	}
}

func TestPayment_AccountOverride(t *testing.T) {
	lookup := new(MockAccountLookup)
	ids := chart(lookup)
	petty := uuid.New()
	lookup.On("GetAccountByCode", mock.Anything, "1130").Return(&ledger.Account{ID: petty, Code: "1130"}, nil)

	h := payment.NewMadeHandler(lookup, payment.DefaultAccounts(), logger.Discard())
	lines, err := h.Handle(context.Background(), map[string]interface{}{
		"party":   "Courier",
		"amount":  "12",
		"account": "1130",
	})
	require.NoError(t, err)
	assert.Equal(t, ids["2100"], lines[0].AccountID)
	assert.Equal(t, petty, lines[1].AccountID)
}
