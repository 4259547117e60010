package rebill

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/invoice"
	"github.com/xraph/rebill/item"
	"github.com/xraph/rebill/plugin"
	"github.com/xraph/rebill/reconcile"
	"github.com/xraph/rebill/store"
)

// DefaultWorkers is the number of subscriptions ReconcileAll works on at once.
const DefaultWorkers = 8

// Engine reconciles subscription histories held in a store.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	// Configuration
	workers   int
	collision reconcile.Collision
	amountFor reconcile.AmountFunc
	now       func() time.Time

	// invoicing holds a *sync.Mutex per subscription so that two Invoice
	// calls for one subscription never draft from the same state.
	invoicing sync.Map

	stopped atomic.Bool
}

// Result is the outcome of reconciling one subscription.
type Result struct {
	RunID          id.RunID          `json:"run_id"`
	SubscriptionID id.SubscriptionID `json:"subscription_id"`
	// Items is the number of history items reconciled.
	Items    int           `json:"items"`
	Timeline []item.Item   `json:"timeline"`
	Delta    invoice.Delta `json:"delta"`
	Elapsed  time.Duration `json:"elapsed"`
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:   s,
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
		workers: DefaultWorkers,
		now:     func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithWorkers bounds how many subscriptions ReconcileAll works on at once.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithCollision sets how items sharing a range are resolved.
func WithCollision(c reconcile.Collision) Option {
	return func(e *Engine) {
		e.collision = c
	}
}

// WithAmountFunc replaces the proration used for split pieces.
func WithAmountFunc(fn reconcile.AmountFunc) Option {
	return func(e *Engine) {
		e.amountFor = fn
	}
}

// WithClock sets the time source for created timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("rebill started",
		"workers", e.workers,
		"collision", e.collision.String(),
		"plugins", e.plugins.Count(),
	)
	return nil
}

// Stop shuts down the Engine. Later calls fail with ErrEngineStopped.
func (e *Engine) Stop() error {
	if !e.stopped.CompareAndSwap(false, true) {
		return nil
	}

	e.plugins.EmitShutdown(context.Background())

	return e.store.Close()
}

// ──────────────────────────────────────────────────
// History
// ──────────────────────────────────────────────────

// RecordItems appends items to history. Missing IDs and creation times are
// filled in; every item must name its subscription. The batch is written
// atomically.
func (e *Engine) RecordItems(ctx context.Context, items ...item.Item) ([]item.Item, error) {
	if e.stopped.Load() {
		return nil, ErrEngineStopped
	}
	if len(items) == 0 {
		return nil, nil
	}

	now := e.now()
	recorded := make([]item.Item, len(items))
	for i, it := range items {
		if it.SubscriptionID.IsNil() {
			return nil, ValidationError{Field: "subscription_id", Message: fmt.Sprintf("item %d has no subscription", i)}
		}
		if it.IsPiece() {
			return nil, ValidationError{Field: "source_id", Message: fmt.Sprintf("item %d is a reconciled piece, not history", i)}
		}
		if it.ID.IsNil() {
			it.ID = id.NewItemID()
		}
		if it.CreatedAt.IsZero() {
			it.CreatedAt = now
		}
		if err := it.Validate(); err != nil {
			return nil, err
		}
		recorded[i] = it
	}

	if err := e.store.AppendItems(ctx, recorded); err != nil {
		return nil, err
	}

	e.plugins.EmitItemsRecorded(ctx, recorded)
	e.logger.Debug("items recorded", "items", len(recorded))
	return recorded, nil
}

// History returns a subscription's stored items.
func (e *Engine) History(ctx context.Context, subID id.SubscriptionID) ([]item.Item, error) {
	if e.stopped.Load() {
		return nil, ErrEngineStopped
	}
	return e.store.ListItems(ctx, subID)
}

// ──────────────────────────────────────────────────
// Reconciliation
// ──────────────────────────────────────────────────

// Reconcile rebuilds the billed timeline of one subscription from its
// stored history and reports what changed relative to that history.
func (e *Engine) Reconcile(ctx context.Context, subID id.SubscriptionID) (*Result, error) {
	if e.stopped.Load() {
		return nil, ErrEngineStopped
	}
	start := time.Now()

	history, err := e.store.ListItems(ctx, subID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, ErrSubscriptionNotFound
	}

	invoices, err := e.store.ListInvoices(ctx, subID, invoice.ListOpts{})
	if err != nil {
		return nil, err
	}

	timeline, err := e.build(subID, history)
	elapsed := time.Since(start)
	if err != nil {
		e.plugins.EmitReconcileFailed(ctx, subID, err, elapsed)
		e.logger.Warn("reconcile failed",
			"subscription_id", subID.String(),
			"items", len(history),
			"error", err,
		)
		return nil, err
	}

	res := &Result{
		RunID:          id.NewRunID(),
		SubscriptionID: subID,
		Items:          len(history),
		Timeline:       timeline,
		Delta:          invoice.Diff(timeline, history, invoices),
		Elapsed:        elapsed,
	}

	e.plugins.EmitReconciled(ctx, &plugin.Run{
		ID:             res.RunID,
		SubscriptionID: subID,
		Items:          res.Items,
		Timeline:       res.Timeline,
		Delta:          res.Delta,
		Elapsed:        elapsed,
	})
	e.logger.Debug("reconciled",
		"subscription_id", subID.String(),
		"run_id", res.RunID.String(),
		"items", res.Items,
		"timeline", len(timeline),
		"added", len(res.Delta.Added),
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return res, nil
}

func (e *Engine) build(subID id.SubscriptionID, history []item.Item) ([]item.Item, error) {
	r := reconcile.New(subID,
		reconcile.WithLogger(e.logger),
		reconcile.WithCollision(e.collision),
		reconcile.WithAmountFunc(e.amountFor),
	)
	for _, it := range history {
		if err := r.AddItem(it); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidBillingHistory, err)
		}
	}
	return r.Build()
}

// ReconcileAll reconciles every listed subscription, or every subscription
// in the store when none are given, with at most the configured number of
// workers. One subscription failing does not stop the others: the results
// of those that succeeded are returned together with a MultiError holding a
// *SubscriptionError per failure.
func (e *Engine) ReconcileAll(ctx context.Context, subIDs ...id.SubscriptionID) (map[id.SubscriptionID]*Result, error) {
	if e.stopped.Load() {
		return nil, ErrEngineStopped
	}
	if len(subIDs) == 0 {
		all, err := e.store.ListSubscriptions(ctx)
		if err != nil {
			return nil, err
		}
		subIDs = all
	}

	var (
		mu      sync.Mutex
		results = make(map[id.SubscriptionID]*Result, len(subIDs))
		errs    MultiError
	)

	var g errgroup.Group
	g.SetLimit(e.workers)
	for _, subID := range subIDs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				mu.Lock()
				errs.Add(&SubscriptionError{SubscriptionID: subID, Err: err})
				mu.Unlock()
				return nil
			}

			res, err := e.Reconcile(ctx, subID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs.Add(&SubscriptionError{SubscriptionID: subID, Err: err})
				return nil
			}
			results[subID] = res
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers report through errs

	e.logger.Info("reconciled subscriptions",
		"subscriptions", len(subIDs),
		"failed", len(errs.Errors),
	)

	if errs.HasErrors() {
		return results, errs
	}
	return results, nil
}

// ──────────────────────────────────────────────────
// Invoices
// ──────────────────────────────────────────────────

// Invoice reconciles a subscription and drafts an invoice settling every
// superseded Charge whose range is now owed more or less than was billed
// for it. Invoices of one subscription are drafted one at a time, and a
// drafted invoice counts as billed, so invoicing again without new history
// yields nil.
func (e *Engine) Invoice(ctx context.Context, subID id.SubscriptionID) (*invoice.Invoice, error) {
	unlock := e.lockSubscription(subID)
	defer unlock()

	res, err := e.Reconcile(ctx, subID)
	if err != nil {
		return nil, err
	}

	inv := invoice.Draft(subID, res.Delta, e.now())
	if inv == nil {
		return nil, nil
	}
	inv.Metadata = map[string]string{"run_id": res.RunID.String()}

	if err := e.store.CreateInvoice(ctx, inv); err != nil {
		return nil, err
	}

	e.plugins.EmitInvoiceDrafted(ctx, inv)
	e.logger.Info("invoice drafted",
		"subscription_id", subID.String(),
		"invoice_id", inv.ID.String(),
		"lines", len(inv.LineItems),
		"total", inv.Total.String(),
	)
	return inv, nil
}

func (e *Engine) lockSubscription(subID id.SubscriptionID) func() {
	v, _ := e.invoicing.LoadOrStore(subID, &sync.Mutex{})
	mu := v.(*sync.Mutex) //nolint:forcetypeassert // only *sync.Mutex is stored
	mu.Lock()
	return mu.Unlock
}

// GetInvoice retrieves an invoice by ID.
func (e *Engine) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	if e.stopped.Load() {
		return nil, ErrEngineStopped
	}
	return e.store.GetInvoice(ctx, invID)
}

// ListInvoices lists a subscription's invoices.
func (e *Engine) ListInvoices(ctx context.Context, subID id.SubscriptionID, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	if e.stopped.Load() {
		return nil, ErrEngineStopped
	}
	return e.store.ListInvoices(ctx, subID, opts)
}

// VoidInvoice voids an invoice. A voided invoice no longer counts as
// billed, so the next Invoice drafts its adjustments again.
func (e *Engine) VoidInvoice(ctx context.Context, invID id.InvoiceID, reason string) error {
	if e.stopped.Load() {
		return ErrEngineStopped
	}
	if err := e.store.VoidInvoice(ctx, invID, reason); err != nil {
		return err
	}
	e.plugins.EmitInvoiceVoided(ctx, invID, reason)
	return nil
}
