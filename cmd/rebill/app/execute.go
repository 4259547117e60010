package app

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xraph/rebill"
	"github.com/xraph/rebill/extension"
	"github.com/xraph/rebill/reconcile"
	"github.com/xraph/rebill/store"
)

// Execute runs the CLI with the given arguments.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "rebill",
		Short:   "Billing history reconciliation",
		Version: a.version,
		Long: `rebill rebuilds the billed timeline of a subscription from its history of
charges and repairs, and drafts invoices for whatever the history has not
billed yet.

History is read from a store (memory, sqlite, postgres or mongo) or, for
the reconcile command, from a YAML fixture file.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	rootCmd.SetOut(a.out)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is ./.rebill.yaml or $HOME/.rebill.yaml)")
	flags.String("log-level", a.config.LogLevel, "log level: debug, info, warn, error")
	flags.StringP("format", "o", a.config.Format, "output format: table, json")
	flags.String("collision", a.config.Collision, "collision policy: merge, first-wins, last-wins")
	flags.Int("workers", a.config.Workers, "subscriptions reconciled at once")
	flags.String("store-driver", a.config.Store.Driver, "store driver: memory, sqlite, postgres, mongo")
	flags.String("dsn", a.config.Store.DSN, "store connection string or sqlite file")
	flags.String("database", a.config.Store.Database, "mongo database name")

	rootCmd.SetVersionTemplate("rebill {{.Version}}\n")

	rootCmd.AddCommand(
		a.newReconcileCommand(),
		a.newInvoiceCommand(),
		a.newVoidCommand(),
		a.newMigrateCommand(),
		a.newVersionCommand(),
	)
	return rootCmd
}

// setupCommand reloads the config file named by --config and lets flags the
// user set override it.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	if flags.Changed("config") {
		path, _ := flags.GetString("config")
		config, err := LoadConfig(path)
		if err != nil {
			return fmt.Errorf("load config %s: %w", path, err)
		}
		a.config = config
	}

	if flags.Changed("log-level") {
		a.config.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("format") {
		a.config.Format, _ = flags.GetString("format")
	}
	if flags.Changed("collision") {
		a.config.Collision, _ = flags.GetString("collision")
	}
	if flags.Changed("workers") {
		a.config.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("store-driver") {
		a.config.Store.Driver, _ = flags.GetString("store-driver")
	}
	if flags.Changed("dsn") {
		a.config.Store.DSN, _ = flags.GetString("dsn")
	}
	if flags.Changed("database") {
		a.config.Store.Database, _ = flags.GetString("database")
	}

	if flags.Changed("log-level") || flags.Changed("config") {
		a.logger = NewLogger(a.config.LogLevel, os.Stderr)
	}

	switch a.config.Format {
	case FormatTable, FormatJSON:
	default:
		return fmt.Errorf("unknown output format %q", a.config.Format)
	}
	return nil
}

// engineOptions builds the engine options shared by every command.
func (a *App) engineOptions() ([]rebill.Option, error) {
	collision, ok := reconcile.ParseCollision(a.config.Collision)
	if !ok {
		return nil, fmt.Errorf("unknown collision policy %q", a.config.Collision)
	}
	return []rebill.Option{
		rebill.WithLogger(a.logger),
		rebill.WithWorkers(a.config.Workers),
		rebill.WithCollision(collision),
	}, nil
}

// openEngine starts an engine on the given store, or on the configured one
// when s is nil. The caller stops it.
func (a *App) openEngine(ctx context.Context, s store.Store) (*rebill.Engine, error) {
	opts, err := a.engineOptions()
	if err != nil {
		return nil, err
	}
	if s == nil {
		s, err = extension.OpenStore(ctx, a.config.Store)
		if err != nil {
			return nil, err
		}
	}

	eng := rebill.New(s, opts...)
	if err := eng.Start(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return eng, nil
}

func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(a.out, "rebill %s (commit %s)\n", a.version, a.commit)
			return err
		},
	}
}
