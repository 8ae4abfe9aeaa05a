package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ledgerworks/ledgercore/internal/app"
	"github.com/ledgerworks/ledgercore/internal/ledger"
	"github.com/ledgerworks/ledgercore/internal/transport/httpapi/middleware"
	"github.com/ledgerworks/ledgercore/pkg/config"
	"github.com/ledgerworks/ledgercore/pkg/logger"
	"github.com/ledgerworks/ledgercore/pkg/money"
)

var version = "dev"

const dateLayout = "2006-01-02"

// ErrUnreconciled is returned when at least one account failed reconciliation
var ErrUnreconciled = errors.New("ledger projections do not reconcile")

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:     "ledgerctl",
		Short:   "Administrative tasks for the ledger store",
		Version: version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.AddCommand(
		newSeedCmd(),
		newTrialBalanceCmd(),
		newReconcileCmd(),
		newTokenCmd(),
	)
	return root
}

// withApp loads configuration, wires the services and runs fn with them
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, cfg *config.Config) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Env, cmd.ErrOrStderr())

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a, cfg)
}

func newSeedCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the chart of accounts from a YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, cfg *config.Config) error {
				if path == "" {
					path = cfg.ChartSeedPath
				}
				return runSeed(ctx, a, cmd.OutOrStdout(), path)
			})
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "chart YAML (defaults to CHART_SEED_PATH)")
	return cmd
}

func runSeed(ctx context.Context, a *app.App, out io.Writer, path string) error {
	res, err := a.Seed(ctx, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created %d accounts, %d already present\n", res.Created, res.Existing)
	return nil
}

func newTrialBalanceCmd() *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "Print the trial balance as of a date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			date := time.Now().UTC()
			if asOf != "" {
				var err error
				if date, err = time.Parse(dateLayout, asOf); err != nil {
					return fmt.Errorf("invalid --as-of %q: expected YYYY-MM-DD", asOf)
				}
			}
			return withApp(cmd, func(ctx context.Context, a *app.App, _ *config.Config) error {
				return runTrialBalance(ctx, a.Ledger, cmd.OutOrStdout(), date)
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "report date, YYYY-MM-DD (defaults to today)")
	return cmd
}

type trialBalancer interface {
	TrialBalance(ctx context.Context, asOf time.Time) (*ledger.TrialBalance, error)
}

func runTrialBalance(ctx context.Context, svc trialBalancer, out io.Writer, asOf time.Time) error {
	tb, err := svc.TrialBalance(ctx, asOf)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "Trial balance as of %s\t\t\t\n", tb.AsOf.Format(dateLayout))
	fmt.Fprintln(w, "code\tname\tdebit\tcredit\t")
	for _, row := range tb.Rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", row.Code, row.Name, money.Format(row.Debit), money.Format(row.Credit))
	}
	fmt.Fprintf(w, "\ttotal\t%s\t%s\t\n", money.Format(tb.TotalDebit), money.Format(tb.TotalCredit))
	if err := w.Flush(); err != nil {
		return err
	}

	if !tb.Balanced {
		fmt.Fprintf(out, "OUT OF BALANCE by %s\n", money.Format(tb.Difference))
	}
	return nil
}

func newReconcileCmd() *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Replay ledger entries and compare them with stored balances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App, _ *config.Config) error {
				return runReconcile(ctx, a.Ledger, cmd.OutOrStdout(), code)
			})
		},
	}
	cmd.Flags().StringVar(&code, "account", "", "account code (defaults to every leaf account)")
	return cmd
}

type reconciler interface {
	GetAccountByCode(ctx context.Context, code string) (*ledger.Account, error)
	ListAccounts(ctx context.Context, filters ledger.AccountFilters) ([]*ledger.Account, error)
	Reconcile(ctx context.Context, accountID uuid.UUID) error
}

func runReconcile(ctx context.Context, svc reconciler, out io.Writer, code string) error {
	var accounts []*ledger.Account
	if code != "" {
		account, err := svc.GetAccountByCode(ctx, code)
		if err != nil {
			return err
		}
		accounts = append(accounts, account)
	} else {
		leaf := false
		all, err := svc.ListAccounts(ctx, ledger.AccountFilters{IsGroup: &leaf})
		if err != nil {
			return err
		}
		accounts = all
	}

	failed := 0
	for _, account := range accounts {
		err := svc.Reconcile(ctx, account.ID)
		switch {
		case err == nil:
			fmt.Fprintf(out, "ok    %s %s\n", account.Code, account.Name)
		case ledger.KindOf(err) == ledger.KindComputation:
			failed++
			fmt.Fprintf(out, "FAIL  %s %s: %v\n", account.Code, account.Name, err)
		default:
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d accounts", ErrUnreconciled, failed, len(accounts))
	}
	return nil
}

func newTokenCmd() *cobra.Command {
	var (
		subject string
		name    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is not configured")
			}
			return runToken(middleware.NewJWTService(cfg.JWTSecret), cmd.OutOrStdout(), subject, name, ttl)
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "caller identity recorded in request logs")
	cmd.Flags().StringVar(&name, "name", "", "display name of the caller")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

type tokenGenerator interface {
	GenerateToken(subject, name string, ttl time.Duration) (string, error)
}

func runToken(gen tokenGenerator, out io.Writer, subject, name string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("--ttl must be positive")
	}
	token, err := gen.GenerateToken(subject, name, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}
