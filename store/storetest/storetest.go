// Package storetest is a conformance suite run against every store backend.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/rebill"
	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/invoice"
	"github.com/xraph/rebill/item"
	"github.com/xraph/rebill/store"
	"github.com/xraph/rebill/types"
)

// Factory returns an empty, migrated store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run exercises the full store.Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"AppendAndList", testAppendAndList},
		{"AppendIsAtomic", testAppendIsAtomic},
		{"AppendRejectsInvalid", testAppendRejectsInvalid},
		{"GetItem", testGetItem},
		{"Invoices", testInvoices},
		{"VoidInvoice", testVoidInvoice},
		{"Ping", testPing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

var base = time.Date(2014, 2, 1, 9, 30, 0, 0, time.UTC)

func history(sub id.SubscriptionID) (a, r, b item.Item) {
	jan := types.MustInterval(types.Date(2014, 1, 1), types.Date(2014, 2, 1))
	tail := types.MustInterval(types.Date(2014, 1, 23), types.Date(2014, 2, 1))

	a = item.NewCharge(id.NewItemID(), jan, "pistol", "evergreen", types.USD(1200), types.USD(1200))
	a.SubscriptionID = sub
	a.InvoiceID = id.NewInvoiceID()
	a.CreatedAt = base

	r = item.NewRepair(id.NewItemID(), tail, types.USD(-348), a.ID)
	r.SubscriptionID = sub
	r.CreatedAt = base.Add(time.Hour)

	b = item.NewCharge(id.NewItemID(), tail, "shotgun", "", types.USD(1485), types.USD(431))
	b.SubscriptionID = sub
	b.CreatedAt = base.Add(2 * time.Hour)
	return a, r, b
}

// RequireItemEqual compares items, treating times as instants.
func RequireItemEqual(t *testing.T, want, got item.Item) {
	t.Helper()
	require.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at: want %s, got %s", want.CreatedAt, got.CreatedAt)
	require.True(t, want.Period.Equal(got.Period), "period: want %s, got %s", want.Period, got.Period)
	want.CreatedAt, got.CreatedAt = time.Time{}, time.Time{}
	want.Period, got.Period = types.Interval{}, types.Interval{}
	require.Equal(t, want, got)
}

func testAppendAndList(t *testing.T, s store.Store) {
	ctx := context.Background()
	sub1, sub2 := id.NewSubscriptionID(), id.NewSubscriptionID()
	a, r, b := history(sub1)
	other, _, _ := history(sub2)

	require.NoError(t, s.AppendItems(ctx, []item.Item{b, a}))
	require.NoError(t, s.AppendItems(ctx, []item.Item{other, r}))

	got, err := s.ListItems(ctx, sub1)
	require.NoError(t, err)
	require.Len(t, got, 3)
	RequireItemEqual(t, a, got[0])
	RequireItemEqual(t, r, got[1])
	RequireItemEqual(t, b, got[2])

	subs, err := s.ListSubscriptions(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []id.SubscriptionID{sub1, sub2}, subs)

	empty, err := s.ListItems(ctx, id.NewSubscriptionID())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testAppendIsAtomic(t *testing.T, s store.Store) {
	ctx := context.Background()
	sub := id.NewSubscriptionID()
	a, r, _ := history(sub)

	require.NoError(t, s.AppendItems(ctx, []item.Item{a}))
	err := s.AppendItems(ctx, []item.Item{r, a})
	require.ErrorIs(t, err, rebill.ErrAlreadyExists)

	got, err := s.ListItems(ctx, sub)
	require.NoError(t, err)
	assert.Len(t, got, 1, "a failed batch must not be partially written")
}

func testAppendRejectsInvalid(t *testing.T, s store.Store) {
	ctx := context.Background()
	a, _, _ := history(id.NewSubscriptionID())

	orphan := a
	orphan.SubscriptionID = id.Nil
	assert.ErrorIs(t, s.AppendItems(ctx, []item.Item{orphan}), item.ErrInvalidItem)

	reversed := a
	reversed.Period = types.Interval{Start: a.Period.End, End: a.Period.Start}
	assert.ErrorIs(t, s.AppendItems(ctx, []item.Item{reversed}), types.ErrInvalidInterval)
}

func testGetItem(t *testing.T, s store.Store) {
	ctx := context.Background()
	a, r, _ := history(id.NewSubscriptionID())
	piece := a.Piece(types.MustInterval(types.Date(2014, 1, 1), types.Date(2014, 1, 23)), types.USD(852))
	piece.ID = id.NewItemID()
	piece.CreatedAt = base.Add(3 * time.Hour)
	require.NoError(t, s.AppendItems(ctx, []item.Item{a, r, piece}))

	for _, want := range []item.Item{a, r, piece} {
		got, err := s.GetItem(ctx, want.ID)
		require.NoError(t, err)
		RequireItemEqual(t, want, *got)
	}

	_, err := s.GetItem(ctx, id.NewItemID())
	assert.True(t, rebill.IsNotFound(err), "got %v", err)
}

func draft(sub id.SubscriptionID, created time.Time, total int64) *invoice.Invoice {
	inv := &invoice.Invoice{
		ID:             id.NewInvoiceID(),
		SubscriptionID: sub,
		Status:         invoice.StatusDraft,
		Currency:       "usd",
		Total:          types.USD(total),
		PeriodStart:    types.Date(2014, 1, 1),
		PeriodEnd:      types.Date(2014, 1, 23),
		CreatedAt:      created,
		Metadata:       map[string]string{"run": "test"},
	}
	inv.LineItems = []invoice.LineItem{{
		ID:          id.NewLineItemID(),
		InvoiceID:   inv.ID,
		ItemID:      id.NewItemID(),
		SourceID:    id.NewItemID(),
		Type:        invoice.LineItemCharge,
		Description: "pistol (evergreen) [2014-01-01,2014-01-23)",
		Period:      types.MustInterval(types.Date(2014, 1, 1), types.Date(2014, 1, 23)),
		Amount:      types.USD(total),
	}}
	return inv
}

func testInvoices(t *testing.T, s store.Store) {
	ctx := context.Background()
	sub := id.NewSubscriptionID()
	first := draft(sub, base, 852)
	second := draft(sub, base.Add(time.Hour), 431)
	second.Status = invoice.StatusPending

	require.NoError(t, s.CreateInvoice(ctx, second))
	require.NoError(t, s.CreateInvoice(ctx, first))
	assert.ErrorIs(t, s.CreateInvoice(ctx, first), rebill.ErrAlreadyExists)

	got, err := s.GetInvoice(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, first.Total, got.Total)
	assert.Equal(t, first.Metadata, got.Metadata)
	assert.True(t, first.PeriodStart.Equal(got.PeriodStart))
	require.Len(t, got.LineItems, 1)
	assert.Equal(t, first.LineItems[0].ItemID, got.LineItems[0].ItemID)
	assert.Equal(t, first.LineItems[0].SourceID, got.LineItems[0].SourceID)
	assert.Equal(t, first.LineItems[0].Amount, got.LineItems[0].Amount)
	assert.True(t, first.LineItems[0].Period.Equal(got.LineItems[0].Period))

	all, err := s.ListInvoices(ctx, sub, invoice.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, second.ID, all[1].ID)

	pending, err := s.ListInvoices(ctx, sub, invoice.ListOpts{Status: invoice.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	page, err := s.ListInvoices(ctx, sub, invoice.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, second.ID, page[0].ID)

	_, err = s.GetInvoice(ctx, id.NewInvoiceID())
	assert.True(t, rebill.IsNotFound(err), "got %v", err)
}

func testVoidInvoice(t *testing.T, s store.Store) {
	ctx := context.Background()
	inv := draft(id.NewSubscriptionID(), base, 852)
	require.NoError(t, s.CreateInvoice(ctx, inv))

	require.NoError(t, s.VoidInvoice(ctx, inv.ID, "history corrected"))
	got, err := s.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusVoided, got.Status)
	assert.Equal(t, "history corrected", got.VoidReason)
	assert.NotNil(t, got.VoidedAt)

	assert.ErrorIs(t, s.VoidInvoice(ctx, inv.ID, "again"), rebill.ErrInvoiceVoided)
	assert.True(t, rebill.IsNotFound(s.VoidInvoice(ctx, id.NewInvoiceID(), "missing")))
}

func testPing(t *testing.T, s store.Store) {
	assert.NoError(t, s.Ping(context.Background()))
}
