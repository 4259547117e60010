// Package plugin provides an extensible plugin system for rebill.
// Plugins can hook into the engine's lifecycle and reconciliation events.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/invoice"
	"github.com/xraph/rebill/item"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// History hooks
// ──────────────────────────────────────────────────

// OnItemsRecorded is called after items are appended to a subscription's
// history.
type OnItemsRecorded interface {
	Plugin
	OnItemsRecorded(ctx context.Context, items []item.Item) error
}

// ──────────────────────────────────────────────────
// Reconciliation hooks
// ──────────────────────────────────────────────────

// Run describes one finished reconciliation.
type Run struct {
	ID             id.RunID
	SubscriptionID id.SubscriptionID
	Items          int
	Timeline       []item.Item
	Delta          invoice.Delta
	Elapsed        time.Duration
}

// OnReconciled is called after a subscription's history was reconciled.
type OnReconciled interface {
	Plugin
	OnReconciled(ctx context.Context, run *Run) error
}

// OnReconcileFailed is called when a history could not be reconciled.
type OnReconcileFailed interface {
	Plugin
	OnReconcileFailed(ctx context.Context, subID id.SubscriptionID, err error, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Invoice lifecycle hooks
// ──────────────────────────────────────────────────

// OnInvoiceDrafted is called when a reconciliation produced a new invoice.
type OnInvoiceDrafted interface {
	Plugin
	OnInvoiceDrafted(ctx context.Context, inv *invoice.Invoice) error
}

// OnInvoiceVoided is called when an invoice is voided.
type OnInvoiceVoided interface {
	Plugin
	OnInvoiceVoided(ctx context.Context, invID id.InvoiceID, reason string) error
}
