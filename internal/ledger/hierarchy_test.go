package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chartFixture struct {
	assets, current, cash, bank, receivables, equity, capital *Account
	all                                                       []*Account
}

func newChartFixture() *chartFixture {
	mk := func(code string, t AccountType, group bool, parent *Account, balance string) *Account {
		a := &Account{
			ID:             uuid.New(),
			Code:           code,
			Name:           code,
			Type:           t,
			IsGroup:        group,
			IsActive:       true,
			OpeningBalance: decimal.Zero,
			Balance:        amt(balance),
		}
		if parent != nil {
			a.ParentID = &parent.ID
		}
		return a
	}

	f := &chartFixture{}
	f.assets = mk("1000", AccountTypeAsset, true, nil, "0")
	f.current = mk("1100", AccountTypeAsset, true, f.assets, "0")
	f.cash = mk("1110", AccountTypeAsset, false, f.current, "150.25")
	f.bank = mk("1120", AccountTypeAsset, false, f.current, "1000")
	f.receivables = mk("1200", AccountTypeAsset, false, f.assets, "49.75")
	f.equity = mk("3000", AccountTypeEquity, true, nil, "0")
	f.capital = mk("3100", AccountTypeEquity, false, f.equity, "1200")
	// deliberately out of code order
	f.all = []*Account{f.capital, f.bank, f.equity, f.receivables, f.cash, f.assets, f.current}
	return f
}

func TestAccountIndex_Forest(t *testing.T) {
	f := newChartFixture()
	forest := newAccountIndex(f.all).forest()

	require.Len(t, forest, 2)
	assert.Equal(t, "1000", forest[0].Code)
	assert.Equal(t, "3000", forest[1].Code)

	assets := forest[0]
	require.Len(t, assets.Children, 2)
	assert.Equal(t, "1100", assets.Children[0].Code)
	assert.Equal(t, "1200", assets.Children[1].Code)
	assert.Equal(t, []string{"1110", "1120"}, []string{
		assets.Children[0].Children[0].Code,
		assets.Children[0].Children[1].Code,
	})

	assert.True(t, amt("1200").Equal(assets.Rollup))
	assert.True(t, amt("1150.25").Equal(assets.Children[0].Rollup))
	assert.True(t, amt("1200").Equal(forest[1].Rollup))
}

func TestAccountIndex_Rollup(t *testing.T) {
	f := newChartFixture()
	idx := newAccountIndex(f.all)

	assert.True(t, amt("1200").Equal(idx.rollup(f.assets.ID)))
	assert.True(t, amt("1150.25").Equal(idx.rollup(f.current.ID)))
	assert.True(t, amt("150.25").Equal(idx.rollup(f.cash.ID)))
}

func TestAccountIndex_DepthAndHeight(t *testing.T) {
	f := newChartFixture()
	idx := newAccountIndex(f.all)

	assert.Equal(t, 1, idx.depth(f.assets.ID))
	assert.Equal(t, 2, idx.depth(f.current.ID))
	assert.Equal(t, 3, idx.depth(f.cash.ID))

	assert.Equal(t, 3, idx.height(f.assets.ID))
	assert.Equal(t, 2, idx.height(f.current.ID))
	assert.Equal(t, 1, idx.height(f.cash.ID))
}

func TestAccountIndex_CheckParent(t *testing.T) {
	f := newChartFixture()
	idx := newAccountIndex(f.all)

	tests := []struct {
		name     string
		id       uuid.UUID
		parent   uuid.UUID
		maxDepth int
		err      error
		kind     Kind
	}{
		{name: "valid move", id: f.receivables.ID, parent: f.current.ID, maxDepth: 10},
		{name: "self", id: f.assets.ID, parent: f.assets.ID, maxDepth: 10, err: ErrCycleDetected, kind: KindState},
		{name: "into own child", id: f.assets.ID, parent: f.current.ID, maxDepth: 10, err: ErrCycleDetected, kind: KindState},
		{name: "leaf parent", id: f.receivables.ID, parent: f.cash.ID, maxDepth: 10, err: ErrInvalidParent, kind: KindReference},
		{name: "unknown parent", id: f.receivables.ID, parent: uuid.New(), maxDepth: 10, err: ErrInvalidParent, kind: KindReference},
		{name: "too deep", id: f.equity.ID, parent: f.current.ID, maxDepth: 3, err: ErrHierarchyTooDeep, kind: KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := idx.checkParent(tt.id, tt.parent, idx.height(tt.id), tt.maxDepth)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestAccountIndex_DanglingParentBecomesRoot(t *testing.T) {
	missing := uuid.New()
	orphan := &Account{ID: uuid.New(), Code: "9000", Type: AccountTypeExpense, ParentID: &missing, Balance: amt("3")}

	forest := newAccountIndex([]*Account{orphan}).forest()
	require.Len(t, forest, 1)
	assert.Equal(t, "9000", forest[0].Code)
}
