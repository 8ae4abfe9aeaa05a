package config_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerworks/ledgercore/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.UsesPostgres())
	assert.Equal(t, 5*time.Second, cfg.PostingLockTimeout)
	assert.Equal(t, 10, cfg.MaxAccountDepth)
	assert.True(t, cfg.AlertWarningThreshold.Equal(decimal.NewFromInt(75)))
	assert.True(t, cfg.AlertCriticalThreshold.Equal(decimal.NewFromInt(90)))
	assert.Equal(t, 5, cfg.ConsolidationTopN)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("POSTING_LOCK_TIMEOUT", "250ms")
	t.Setenv("ALERT_WARNING_THRESHOLD", "60.5")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 250*time.Millisecond, cfg.PostingLockTimeout)
	assert.Equal(t, "60.5", cfg.AlertWarningThreshold.String())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"short jwt secret", map[string]string{"JWT_SECRET": "short"}, "at least 32"},
		{"production needs database", map[string]string{"ENV": "production", "DATABASE_URL": ""}, "DATABASE_URL"},
		{"warning above critical", map[string]string{"ALERT_WARNING_THRESHOLD": "95"}, "below ALERT_CRITICAL_THRESHOLD"},
		{"zero depth", map[string]string{"MAX_ACCOUNT_DEPTH": "0"}, "MAX_ACCOUNT_DEPTH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

const chartYAML = `
accounts:
  - code: "1000"
    name: Assets
    type: asset
    group: true
    children:
      - code: "1100"
        name: Cash
        opening_balance: "250.00"
      - code: "1200"
        name: Receivables
  - code: "2000"
    name: GST Payable
    type: liability
`

func TestParseChartConfig(t *testing.T) {
	chart, err := config.ParseChartConfig([]byte(chartYAML))
	require.NoError(t, err)

	assert.Equal(t, 4, chart.Count())

	cash, ok := chart.GetAccount("1100")
	require.True(t, ok)
	assert.Equal(t, "asset", cash.Type, "children inherit the parent's type")
	assert.Equal(t, "250", cash.OpeningBalance.String())

	var order []string
	chart.Walk(func(acc *config.ChartAccount, _ *config.ChartAccount) {
		order = append(order, acc.Code)
	})
	assert.Equal(t, []string{"1000", "1100", "1200", "2000"}, order)
}

func TestParseChartConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "accounts: []"},
		{"duplicate code", "accounts:\n  - {code: A, name: a, type: asset}\n  - {code: a, name: b, type: asset}"},
		{"bad type", "accounts:\n  - {code: A, name: a, type: cash}"},
		{"group opening balance", "accounts:\n  - {code: A, name: a, type: asset, group: true, opening_balance: '1'}"},
		{"leaf with children", "accounts:\n  - code: A\n    name: a\n    type: asset\n    children:\n      - {code: B, name: b}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.ParseChartConfig([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}
