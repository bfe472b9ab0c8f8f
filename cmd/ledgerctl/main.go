// Command ledgerctl runs maintenance tasks against the ledger database.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/castfund/backend/internal/audit"
	"github.com/castfund/backend/internal/config"
	"github.com/castfund/backend/internal/database"
	"github.com/castfund/backend/internal/events"
	"github.com/castfund/backend/internal/logger"
	"github.com/castfund/backend/internal/services"
	"github.com/castfund/backend/internal/store/postgres"
)

var errDrift = errors.New("ledger drift detected")

func main() {
	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Ledger maintenance for the castfund backend",
	}
	var envFile string
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "config file")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		config.Init(envFile)
	}

	root.AddCommand(newMigrateCommand(), newReconcileCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "migrate",
		Short:        "Apply pending schema migrations",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New(config.LoadServerConfig().Env)
			db, err := database.InitDB(log)
			if err != nil {
				return err
			}
			defer db.Close()
			return database.RunMigrations(cmd.Context(), db, log)
		},
	}
}

func newReconcileCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Check every balance and reputation against the completed ledger",
		Long: `Recomputes each account's balance and reputation from its completed
transactions and compares them with the stored totals. Exits non-zero when
any account disagrees.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New(config.LoadServerConfig().Env)
			db, err := database.InitDB(log)
			if err != nil {
				return err
			}
			st := postgres.New(db)
			defer st.Close()

			ledger := services.NewLedgerService(st, noopPublisher{}, config.LoadRetryConfig(), audit.NewLogger(log), log)
			drifts, err := ledger.Reconcile(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if err := json.NewEncoder(out).Encode(drifts); err != nil {
					return err
				}
			} else {
				for _, d := range drifts {
					fmt.Fprintf(out, "%s\tbalance %d (ledger %d)\treputation %d (ledger %d)\n",
						d.AccountID, d.Balance, d.LedgerBalance, d.Reputation, d.LedgerReputation)
				}
				if len(drifts) == 0 {
					fmt.Fprintln(out, "ledger consistent")
				}
			}
			if len(drifts) > 0 {
				return fmt.Errorf("%w: %d account(s)", errDrift, len(drifts))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print drifts as JSON")
	return cmd
}

// noopPublisher: reconcile reads only.
type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, events.Event) error { return nil }
