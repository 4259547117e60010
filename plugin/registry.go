package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/invoice"
	"github.com/xraph/rebill/item"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit            []OnInit
	onShutdown        []OnShutdown
	onItemsRecorded   []OnItemsRecorded
	onReconciled      []OnReconciled
	onReconcileFailed []OnReconcileFailed
	onInvoiceDrafted  []OnInvoiceDrafted
	onInvoiceVoided   []OnInvoiceVoided
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets how long a single hook may run.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnItemsRecorded); ok {
		r.onItemsRecorded = append(r.onItemsRecorded, v)
	}
	if v, ok := p.(OnReconciled); ok {
		r.onReconciled = append(r.onReconciled, v)
	}
	if v, ok := p.(OnReconcileFailed); ok {
		r.onReconcileFailed = append(r.onReconcileFailed, v)
	}
	if v, ok := p.(OnInvoiceDrafted); ok {
		r.onInvoiceDrafted = append(r.onInvoiceDrafted, v)
	}
	if v, ok := p.(OnInvoiceVoided); ok {
		r.onInvoiceVoided = append(r.onInvoiceVoided, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	iface reflect.Type
	name  string
}{
	{reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit"},
	{reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown"},
	{reflect.TypeOf((*OnItemsRecorded)(nil)).Elem(), "OnItemsRecorded"},
	{reflect.TypeOf((*OnReconciled)(nil)).Elem(), "OnReconciled"},
	{reflect.TypeOf((*OnReconcileFailed)(nil)).Elem(), "OnReconcileFailed"},
	{reflect.TypeOf((*OnInvoiceDrafted)(nil)).Elem(), "OnInvoiceDrafted"},
	{reflect.TypeOf((*OnInvoiceVoided)(nil)).Elem(), "OnInvoiceVoided"},
}

// implementedInterfaces returns the hooks implemented by the plugin.
func implementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.iface) {
			interfaces = append(interfaces, h.name)
		}
	}
	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnInit", func() error {
			return p.OnInit(ctx, engine)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnShutdown", func() error {
			return p.OnShutdown(ctx)
		})
	}
}

// EmitItemsRecorded emits an items recorded event.
func (r *Registry) EmitItemsRecorded(ctx context.Context, items []item.Item) {
	r.mu.RLock()
	plugins := r.onItemsRecorded
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnItemsRecorded", func() error {
			return p.OnItemsRecorded(ctx, items)
		})
	}
}

// EmitReconciled emits a reconciled event.
func (r *Registry) EmitReconciled(ctx context.Context, run *Run) {
	r.mu.RLock()
	plugins := r.onReconciled
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnReconciled", func() error {
			return p.OnReconciled(ctx, run)
		})
	}
}

// EmitReconcileFailed emits a reconcile failed event.
func (r *Registry) EmitReconcileFailed(ctx context.Context, subID id.SubscriptionID, err error, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onReconcileFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnReconcileFailed", func() error {
			return p.OnReconcileFailed(ctx, subID, err, elapsed)
		})
	}
}

// EmitInvoiceDrafted emits an invoice drafted event.
func (r *Registry) EmitInvoiceDrafted(ctx context.Context, inv *invoice.Invoice) {
	r.mu.RLock()
	plugins := r.onInvoiceDrafted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnInvoiceDrafted", func() error {
			return p.OnInvoiceDrafted(ctx, inv)
		})
	}
}

// EmitInvoiceVoided emits an invoice voided event.
func (r *Registry) EmitInvoiceVoided(ctx context.Context, invID id.InvoiceID, reason string) {
	r.mu.RLock()
	plugins := r.onInvoiceVoided
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnInvoiceVoided", func() error {
			return p.OnInvoiceVoided(ctx, invID, reason)
		})
	}
}

// call runs one hook and logs its failure. Hook errors never reach the
// caller.
func (r *Registry) call(ctx context.Context, pluginName, hook string, fn func() error) {
	if err := r.callWithTimeout(ctx, pluginName, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", pluginName,
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the reconciliation pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
