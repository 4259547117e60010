package invoice

import (
	"context"

	"github.com/xraph/rebill/id"
)

type Store interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, invID id.InvoiceID) (*Invoice, error)
	ListInvoices(ctx context.Context, subID id.SubscriptionID, opts ListOpts) ([]*Invoice, error)
	VoidInvoice(ctx context.Context, invID id.InvoiceID, reason string) error
}

type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
