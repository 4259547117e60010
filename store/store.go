// Package store defines the persistence boundary of rebill: the billing
// history a reconciliation reads and the invoices it produces.
package store

import (
	"context"

	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/invoice"
	"github.com/xraph/rebill/item"
)

// Store is the unified storage interface for all rebill entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// History methods

	// AppendItems persists items atomically. Every item needs an ID and a
	// subscription; an ID already stored fails the whole batch with
	// rebill.ErrAlreadyExists.
	AppendItems(ctx context.Context, items []item.Item) error
	GetItem(ctx context.Context, itemID id.ItemID) (*item.Item, error)
	// ListItems returns a subscription's history ordered by creation time
	// then ID. An unknown subscription yields an empty slice.
	ListItems(ctx context.Context, subID id.SubscriptionID) ([]item.Item, error)
	ListSubscriptions(ctx context.Context) ([]id.SubscriptionID, error)

	// Invoice methods
	CreateInvoice(ctx context.Context, inv *invoice.Invoice) error
	GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error)
	ListInvoices(ctx context.Context, subID id.SubscriptionID, opts invoice.ListOpts) ([]*invoice.Invoice, error)
	VoidInvoice(ctx context.Context, invID id.InvoiceID, reason string) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var _ invoice.Store = Store(nil)
