package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerworks/ledgercore/internal/app"
	"github.com/ledgerworks/ledgercore/internal/ledger"
	"github.com/ledgerworks/ledgercore/internal/ledger/seed"
	"github.com/ledgerworks/ledgercore/pkg/config"
	"github.com/ledgerworks/ledgercore/pkg/logger"
)

const defaultChart = "../../configs/chart.yaml"

func memoryConfig() *config.Config {
	return &config.Config{
		Env:                    "development",
		PostingLockTimeout:     time.Second,
		MaxAccountDepth:        10,
		AlertWarningThreshold:  decimal.NewFromInt(75),
		AlertCriticalThreshold: decimal.NewFromInt(90),
		ConsolidationTopN:      5,
	}
}

func TestNew_InMemory(t *testing.T) {
	ctx := context.Background()
	a, err := app.New(ctx, memoryConfig(), logger.Discard())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.DB)
	assert.Nil(t, a.Cache)
	assert.ElementsMatch(t, ledger.AllDocumentTypes(), a.Ledger.Registry().Types())

	res, err := a.Seed(ctx, defaultChart)
	require.NoError(t, err)
	assert.Equal(t, seed.Result{Created: 20}, res)

	res, err = a.Seed(ctx, defaultChart)
	require.NoError(t, err)
	assert.Equal(t, seed.Result{Existing: 20}, res)

	_, err = a.Seed(ctx, "")
	assert.Error(t, err)
}

func TestNew_InvalidRedisURL(t *testing.T) {
	cfg := memoryConfig()
	cfg.RedisURL = "redis://:bad port"

	_, err := app.New(context.Background(), cfg, logger.Discard())
	assert.ErrorContains(t, err, "Redis URL")
}

// The bundled chart carries every code the document handlers post to.
func TestDefaultChart_DocumentFlow(t *testing.T) {
	ctx := context.Background()
	a, err := app.New(ctx, memoryConfig(), logger.Discard())
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Seed(ctx, defaultChart)
	require.NoError(t, err)

	date := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	docs := []struct {
		docType ledger.DocumentType
		data    map[string]interface{}
	}{
		{ledger.DocTypeSalesInvoice, map[string]interface{}{
			"customer": "Acme Traders",
			"items": []interface{}{
				map[string]interface{}{"description": "Widget", "quantity": "2", "unit_price": "500.00", "tax_rate": "18"},
			},
		}},
		{ledger.DocTypePaymentReceived, map[string]interface{}{"party": "Acme Traders", "amount": "1180.00"}},
		{ledger.DocTypePurchaseBill, map[string]interface{}{
			"supplier": "Paper Co",
			"items": []interface{}{
				map[string]interface{}{"description": "Paper", "quantity": "1", "unit_price": "100.00", "tax_rate": "18"},
			},
		}},
		{ledger.DocTypePaymentMade, map[string]interface{}{"party": "Paper Co", "amount": "118.00"}},
	}
	for _, d := range docs {
		entry, err := a.Ledger.RecordDocument(ctx, d.docType, ledger.DocumentInput{
			Date: date,
			Data: d.data,
			Post: true,
		})
		require.NoError(t, err, d.docType)
		assert.Equal(t, ledger.EntryStatusPosted, entry.Status)
	}

	tb, err := a.Ledger.TrialBalance(ctx, date.AddDate(0, 0, 21))
	require.NoError(t, err)
	assert.True(t, tb.Balanced)
	assert.Equal(t, "1180.00", tb.TotalDebit.StringFixed(2))

	byCode := make(map[string]ledger.TrialBalanceRow)
	for _, row := range tb.Rows {
		byCode[row.Code] = row
	}
	assert.Equal(t, "1062.00", byCode["1120"].Debit.StringFixed(2))
	assert.True(t, byCode["1200"].Debit.IsZero())
	assert.True(t, byCode["2100"].Credit.IsZero())
	assert.Equal(t, "90.00", byCode["2210"].Credit.StringFixed(2))
	assert.Equal(t, "9.00", byCode["1320"].Debit.StringFixed(2))
}
