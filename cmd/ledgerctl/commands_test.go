package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerworks/ledgercore/internal/app"
	"github.com/ledgerworks/ledgercore/internal/ledger"
	"github.com/ledgerworks/ledgercore/internal/transport/httpapi/middleware"
	"github.com/ledgerworks/ledgercore/pkg/config"
	"github.com/ledgerworks/ledgercore/pkg/logger"
)

func seededApp(t *testing.T) *app.App {
	t.Helper()
	a, err := app.New(context.Background(), &config.Config{
		Env:                    "development",
		PostingLockTimeout:     time.Second,
		MaxAccountDepth:        10,
		AlertWarningThreshold:  decimal.NewFromInt(75),
		AlertCriticalThreshold: decimal.NewFromInt(90),
		ConsolidationTopN:      5,
	}, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	var out bytes.Buffer
	require.NoError(t, runSeed(context.Background(), a, &out, "../../configs/chart.yaml"))
	assert.Equal(t, "created 20 accounts, 0 already present\n", out.String())
	return a
}

func postCapital(t *testing.T, a *app.App, amount string) {
	t.Helper()
	ctx := context.Background()
	bank, err := a.Ledger.GetAccountByCode(ctx, "1120")
	require.NoError(t, err)
	capital, err := a.Ledger.GetAccountByCode(ctx, "3100")
	require.NoError(t, err)

	entry, err := a.Ledger.CreateDraft(ctx, ledger.DraftInput{
		Date:      time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Reference: "CAP-1",
		Lines: []ledger.Line{
			{AccountID: bank.ID, Debit: decimal.RequireFromString(amount)},
			{AccountID: capital.ID, Credit: decimal.RequireFromString(amount)},
		},
	})
	require.NoError(t, err)
	_, err = a.Ledger.Post(ctx, entry.ID)
	require.NoError(t, err)
}

func TestRunTrialBalance(t *testing.T) {
	a := seededApp(t)
	postCapital(t, a, "5000")

	var out bytes.Buffer
	err := runTrialBalance(context.Background(), a.Ledger, &out, time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Trial balance as of 2026-04-30")
	assert.Contains(t, text, "Bank")
	assert.Contains(t, text, "5000.00")
	assert.NotContains(t, text, "OUT OF BALANCE")

	// before the entry date only zero balances remain
	out.Reset()
	err = runTrialBalance(context.Background(), a.Ledger, &out, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.NotContains(t, out.String(), "5000.00")
}

func TestRunReconcile(t *testing.T) {
	a := seededApp(t)
	postCapital(t, a, "250.50")
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runReconcile(ctx, a.Ledger, &out, ""))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 13, "one line per leaf account")
	for _, l := range lines {
		assert.True(t, strings.HasPrefix(l, "ok "), l)
	}

	out.Reset()
	require.NoError(t, runReconcile(ctx, a.Ledger, &out, "1120"))
	assert.Equal(t, "ok    1120 Bank\n", out.String())

	err := runReconcile(ctx, a.Ledger, &out, "9999")
	assert.Equal(t, ledger.KindReference, ledger.KindOf(err))
}

type brokenLedger struct {
	accounts []*ledger.Account
}

func (b *brokenLedger) GetAccountByCode(context.Context, string) (*ledger.Account, error) {
	return b.accounts[0], nil
}

func (b *brokenLedger) ListAccounts(context.Context, ledger.AccountFilters) ([]*ledger.Account, error) {
	return b.accounts, nil
}

func (b *brokenLedger) Reconcile(_ context.Context, id uuid.UUID) error {
	if id == b.accounts[0].ID {
		return ledger.NewError(ledger.KindComputation, fmt.Errorf("%w: replayed 1.00, cached 2.00", ledger.ErrBalanceMismatch), "balance", id.String())
	}
	return nil
}

func TestRunReconcile_Mismatch(t *testing.T) {
	svc := &brokenLedger{accounts: []*ledger.Account{
		{ID: uuid.New(), Code: "1110", Name: "Cash"},
		{ID: uuid.New(), Code: "1120", Name: "Bank"},
	}}

	var out bytes.Buffer
	err := runReconcile(context.Background(), svc, &out, "")
	require.ErrorIs(t, err, ErrUnreconciled)
	assert.Contains(t, err.Error(), "1 of 2 accounts")
	assert.Contains(t, out.String(), "FAIL  1110 Cash")
	assert.Contains(t, out.String(), "ok    1120 Bank")
}

func TestRunToken(t *testing.T) {
	svc := middleware.NewJWTService(strings.Repeat("k", 32))

	var out bytes.Buffer
	require.NoError(t, runToken(svc, &out, "ops", "Ops Team", time.Hour))

	claims, err := svc.ValidateToken(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, "Ops Team", claims.Name)

	assert.Error(t, runToken(svc, &out, "ops", "", 0))
	assert.True(t, errors.Is(runToken(svc, &out, "", "", time.Hour), middleware.ErrMissingSubject))
}

func TestRootCmd(t *testing.T) {
	t.Run("version", func(t *testing.T) {
		var out bytes.Buffer
		cmd := newRootCmd(&out, &out)
		cmd.SetArgs([]string{"--version"})
		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "ledgerctl version dev")
	})

	t.Run("bad as-of", func(t *testing.T) {
		var out bytes.Buffer
		cmd := newRootCmd(&out, &out)
		cmd.SetArgs([]string{"trial-balance", "--as-of", "31/12/2026"})
		err := cmd.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "YYYY-MM-DD")
	})

	t.Run("token needs a secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		t.Setenv("ENV", "development")
		var out bytes.Buffer
		cmd := newRootCmd(&out, &out)
		cmd.SetArgs([]string{"token", "--subject", "ops"})
		err := cmd.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JWT_SECRET")
	})

	t.Run("token requires subject", func(t *testing.T) {
		var out bytes.Buffer
		cmd := newRootCmd(&out, &out)
		cmd.SetArgs([]string{"token"})
		assert.Error(t, cmd.Execute())
	})
}
