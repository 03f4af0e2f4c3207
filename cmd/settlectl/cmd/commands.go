package cmd

import (
	"fmt"

	"github.com/punchamoorthee/dealledger/internal/store"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the ledger schema",
	Long: `Create tables, indexes and append-only triggers. Every statement is
idempotent, so running it against an up-to-date database is a no-op.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.NewStore(cmd.Context(), dbSource)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
		return nil
	},
}

var scanAlertsCmd = &cobra.Command{
	Use:   "scan-alerts",
	Short: "Run one alert scanner sweep",
	Long: `Raise alerts for delayed shipments and stale KYC reviews and resolve
alerts whose condition has cleared.

Example:
  settlectl scan-alerts --policy policy.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, svc, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := svc.ScanAlerts(cmd.Context(), operator())
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance <user-id>",
	Short: "Print a wallet's derived balance and recent entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, svc, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		resp, err := svc.Balance(cmd.Context(), operator(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, resp)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, scanAlertsCmd, balanceCmd)
}
