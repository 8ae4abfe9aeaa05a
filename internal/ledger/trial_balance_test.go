package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTrialBalance(t *testing.T) {
	asOf := time.Date(2026, 6, 30, 15, 0, 0, 0, time.UTC)

	group := &Account{ID: uuid.New(), Code: "1000", Name: "Assets", Type: AccountTypeAsset, IsGroup: true, OpeningBalance: decimal.Zero}
	cash := &Account{ID: uuid.New(), Code: "1100", Name: "Cash", Type: AccountTypeAsset, OpeningBalance: amt("500")}
	loan := &Account{ID: uuid.New(), Code: "2100", Name: "Loan", Type: AccountTypeLiability, OpeningBalance: decimal.Zero}
	capital := &Account{ID: uuid.New(), Code: "3100", Name: "Capital", Type: AccountTypeEquity, OpeningBalance: amt("500")}
	sales := &Account{ID: uuid.New(), Code: "4100", Name: "Sales", Type: AccountTypeRevenue, OpeningBalance: decimal.Zero}
	overdraft := &Account{ID: uuid.New(), Code: "1200", Name: "Bank", Type: AccountTypeAsset, OpeningBalance: decimal.Zero}

	movements := map[uuid.UUID]Movement{
		cash.ID:      {Debit: amt("300"), Credit: amt("0")},
		sales.ID:     {Debit: amt("0"), Credit: amt("300")},
		overdraft.ID: {Debit: amt("0"), Credit: amt("75")},
		loan.ID:      {Debit: amt("75"), Credit: amt("0")},
	}

	tb := BuildTrialBalance(asOf, []*Account{sales, loan, group, cash, capital, overdraft}, movements)

	assert.Equal(t, time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC), tb.AsOf)
	require.Len(t, tb.Rows, 5, "group accounts are excluded")

	codes := make([]string, len(tb.Rows))
	for i, r := range tb.Rows {
		codes[i] = r.Code
	}
	assert.Equal(t, []string{"1100", "1200", "2100", "3100", "4100"}, codes)

	byCode := make(map[string]TrialBalanceRow)
	for _, r := range tb.Rows {
		byCode[r.Code] = r
	}

	// asset with positive balance on the debit side
	assert.True(t, amt("800").Equal(byCode["1100"].Debit))
	assert.True(t, byCode["1100"].Credit.IsZero())
	// overdrawn asset flips to the credit side
	assert.True(t, byCode["1200"].Debit.IsZero())
	assert.True(t, amt("75").Equal(byCode["1200"].Credit))
	// liability paid below zero flips to the debit side
	assert.True(t, amt("75").Equal(byCode["2100"].Debit))
	assert.True(t, amt("500").Equal(byCode["3100"].Credit))
	assert.True(t, amt("300").Equal(byCode["4100"].Credit))

	assert.True(t, amt("875").Equal(tb.TotalDebit))
	assert.True(t, amt("875").Equal(tb.TotalCredit))
	assert.True(t, tb.Difference.IsZero())
	assert.True(t, tb.Balanced)
}

func TestBuildTrialBalance_Unbalanced(t *testing.T) {
	cash := &Account{ID: uuid.New(), Code: "1100", Name: "Cash", Type: AccountTypeAsset, OpeningBalance: amt("0.01")}

	tb := BuildTrialBalance(time.Now(), []*Account{cash}, nil)

	assert.False(t, tb.Balanced, "any nonzero difference is out of balance")
	assert.True(t, amt("0.01").Equal(tb.Difference))
}

func TestBuildTrialBalance_Empty(t *testing.T) {
	tb := BuildTrialBalance(time.Now(), nil, nil)
	assert.NotNil(t, tb.Rows)
	assert.Empty(t, tb.Rows)
	assert.True(t, tb.Balanced)
}
