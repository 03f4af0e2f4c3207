package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/punchamoorthee/dealledger/internal/config"
	"github.com/punchamoorthee/dealledger/internal/domain"
	"github.com/punchamoorthee/dealledger/internal/service"
	"github.com/punchamoorthee/dealledger/internal/store"
	"github.com/spf13/cobra"
)

var (
	dbSource   string
	policyPath string
	actorID    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "settlectl",
	Short: "Operator tooling for the deal settlement ledger",
	Long: `settlectl runs maintenance tasks against the settlement database.

It provides commands for:
  - Applying the ledger schema
  - Running an alert scan outside the API process
  - Inspecting a wallet's derived balance

The database is read from --db or DB_SOURCE (a .env file is honoured).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		if dbSource == "" {
			dbSource = os.Getenv("DB_SOURCE")
		}
		if policyPath == "" {
			policyPath = os.Getenv("POLICY_FILE")
		}
		if dbSource == "" {
			return errors.New("database not configured: pass --db or set DB_SOURCE")
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbSource, "db", "", "Postgres connection string (default $DB_SOURCE)")
	rootCmd.PersistentFlags().StringVar(&policyPath, "policy", "", "YAML policy file (default $POLICY_FILE)")
	rootCmd.PersistentFlags().StringVar(&actorID, "actor", "settlectl", "actor id recorded in the audit trail")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log service events to stderr")
}

func operator() domain.Actor {
	return domain.Actor{ID: actorID, Role: domain.RoleAdmin}
}

// openService connects to the database and builds the settlement service.
// The caller closes the returned store.
func openService(ctx context.Context) (*store.Store, *service.Service, error) {
	policy := config.DefaultPolicy()
	if policyPath != "" {
		var err error
		if policy, err = config.LoadPolicy(policyPath); err != nil {
			return nil, nil, err
		}
	}

	st, err := store.NewStore(ctx, dbSource)
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = io.Discard
	if verbose {
		out = os.Stderr
	}
	svc := service.New(st, service.Options{
		Policy: policy,
		Logger: slog.New(slog.NewTextHandler(out, nil)),
	})
	return st, svc, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
