package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/xraph/rebill"
	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/store/memory"
)

// ──────────────────────────────────────────────────
// reconcile
// ──────────────────────────────────────────────────

func (a *App) newReconcileCommand() *cobra.Command {
	var (
		file string
		subs []string
		all  bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Rebuild the billed timeline of subscriptions",
		Long: `Reconcile rebuilds the billed timeline from history and shows which pieces
are new, which charges they supersede and which repairs were absorbed.

With --file the history comes from a YAML fixture and nothing is stored.
Otherwise the configured store is read for each --subscription, or for
every subscription it holds with --all.`,
		Example: `  rebill reconcile --file history.yaml
  rebill reconcile --store-driver sqlite --dsn rebill.db --subscription sub_01h455vb4pex5vsknk084sn02q
  rebill reconcile --store-driver postgres --dsn postgres://localhost/rebill --all -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			switch {
			case file != "":
				eng, subID, err := a.openFixture(ctx, file)
				if err != nil {
					return err
				}
				defer a.stop(eng)
				return a.reconcileOne(ctx, eng, subID)

			case len(subs) == 0 && !all:
				return errors.New("one of --file, --subscription or --all is required")
			}

			subIDs, err := parseSubscriptions(subs)
			if err != nil {
				return err
			}
			eng, err := a.openEngine(ctx, nil)
			if err != nil {
				return err
			}
			defer a.stop(eng)

			if len(subIDs) == 1 {
				return a.reconcileOne(ctx, eng, subIDs[0])
			}
			return a.reconcileMany(ctx, eng, subIDs)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML history fixture")
	cmd.Flags().StringSliceVarP(&subs, "subscription", "s", nil, "subscription to reconcile (repeatable)")
	cmd.Flags().BoolVar(&all, "all", false, "reconcile every subscription in the store")
	cmd.MarkFlagsMutuallyExclusive("file", "subscription")
	cmd.MarkFlagsMutuallyExclusive("file", "all")
	cmd.MarkFlagsMutuallyExclusive("subscription", "all")
	return cmd
}

func (a *App) reconcileOne(ctx context.Context, eng *rebill.Engine, subID id.SubscriptionID) error {
	res, err := eng.Reconcile(ctx, subID)
	if err != nil {
		return fmt.Errorf("reconcile %s: %w", subID, err)
	}
	return a.render(res, func(w io.Writer) error { return writeResult(w, res) })
}

func (a *App) reconcileMany(ctx context.Context, eng *rebill.Engine, subIDs []id.SubscriptionID) error {
	results, runErr := eng.ReconcileAll(ctx, subIDs...)

	ordered := make([]*rebill.Result, 0, len(results))
	for _, res := range results {
		ordered = append(ordered, res)
	}
	slices.SortFunc(ordered, func(x, y *rebill.Result) int {
		return x.SubscriptionID.Compare(y.SubscriptionID)
	})

	err := a.render(ordered, func(w io.Writer) error {
		for i, res := range ordered {
			if i > 0 {
				if _, err := fmt.Fprintln(w); err != nil {
					return err
				}
			}
			if err := writeResult(w, res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return runErr
}

// ──────────────────────────────────────────────────
// invoice
// ──────────────────────────────────────────────────

func (a *App) newInvoiceCommand() *cobra.Command {
	var (
		file string
		sub  string
	)

	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Draft an invoice for what a subscription has not been billed",
		Long: `Invoice reconciles a subscription and drafts an invoice that settles each
replaced Charge against what was already billed for it. Running it again
without new history drafts nothing.

With --file the invoice is drafted against an in-memory copy of the
fixture, which previews the invoice without storing it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var (
				eng   *rebill.Engine
				subID id.SubscriptionID
				err   error
			)
			if file != "" {
				eng, subID, err = a.openFixture(ctx, file)
			} else {
				if sub == "" {
					return errors.New("one of --file or --subscription is required")
				}
				if subID, err = id.ParseSubscriptionID(sub); err != nil {
					return err
				}
				eng, err = a.openEngine(ctx, nil)
			}
			if err != nil {
				return err
			}
			defer a.stop(eng)

			inv, err := eng.Invoice(ctx, subID)
			if err != nil {
				return fmt.Errorf("invoice %s: %w", subID, err)
			}
			if inv == nil {
				_, err := fmt.Fprintf(a.out, "Nothing to invoice for %s\n", subID)
				return err
			}
			return a.render(inv, func(w io.Writer) error { return writeInvoice(w, inv) })
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML history fixture")
	cmd.Flags().StringVarP(&sub, "subscription", "s", "", "subscription to invoice")
	cmd.MarkFlagsMutuallyExclusive("file", "subscription")
	return cmd
}

func (a *App) newVoidCommand() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "void <invoice-id>",
		Short: "Void a stored invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			invID, err := id.ParseInvoiceID(args[0])
			if err != nil {
				return err
			}
			eng, err := a.openEngine(ctx, nil)
			if err != nil {
				return err
			}
			defer a.stop(eng)

			if err := eng.VoidInvoice(ctx, invID, reason); err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "Voided %s\n", invID)
			return err
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "why the invoice is voided")
	return cmd
}

// ──────────────────────────────────────────────────
// migrate
// ──────────────────────────────────────────────────

func (a *App) newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := a.openEngine(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer a.stop(eng)

			_, err = fmt.Fprintf(a.out, "Migrated %s store\n", a.config.Store.Driver)
			return err
		},
	}
}

// ──────────────────────────────────────────────────
// helpers
// ──────────────────────────────────────────────────

// openFixture loads a fixture into a fresh memory store and returns the
// started engine with the fixture's subscription.
func (a *App) openFixture(ctx context.Context, path string) (*rebill.Engine, id.SubscriptionID, error) {
	fx, err := LoadFixture(path)
	if err != nil {
		return nil, id.Nil, err
	}
	subID, err := fx.SubscriptionID()
	if err != nil {
		return nil, id.Nil, err
	}
	history, err := fx.History(subID, fixtureEpoch)
	if err != nil {
		return nil, id.Nil, fmt.Errorf("%s: %w", path, err)
	}

	eng, err := a.openEngine(ctx, memory.New())
	if err != nil {
		return nil, id.Nil, err
	}
	if _, err := eng.RecordItems(ctx, history...); err != nil {
		a.stop(eng)
		return nil, id.Nil, fmt.Errorf("%s: %w", path, err)
	}
	return eng, subID, nil
}

func (a *App) stop(eng *rebill.Engine) {
	if err := eng.Stop(); err != nil {
		a.logger.Warn("stop engine", "error", err)
	}
}

func parseSubscriptions(raw []string) ([]id.SubscriptionID, error) {
	subIDs := make([]id.SubscriptionID, 0, len(raw))
	for _, s := range raw {
		subID, err := id.ParseSubscriptionID(s)
		if err != nil {
			return nil, err
		}
		subIDs = append(subIDs, subID)
	}
	return subIDs, nil
}
