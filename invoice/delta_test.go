package invoice_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/invoice"
	"github.com/xraph/rebill/item"
	"github.com/xraph/rebill/types"
)

type fixture struct {
	sub      id.SubscriptionID
	a, b, r  item.Item
	head     item.Item
	timeline []item.Item
	history  []item.Item
}

func newFixture() fixture {
	f := fixture{sub: id.NewSubscriptionID()}
	jan := types.MustInterval(types.Date(2014, 1, 1), types.Date(2014, 2, 1))
	tail := types.MustInterval(types.Date(2014, 1, 23), types.Date(2014, 2, 1))
	f.a = item.NewCharge(id.NewItemID(), jan, "pistol", "evergreen", types.USD(1200), types.USD(1200))
	f.b = item.NewCharge(id.NewItemID(), tail, "shotgun", "evergreen", types.USD(1485), types.USD(431))
	f.r = item.NewRepair(id.NewItemID(), tail, types.USD(-348), f.a.ID)
	f.head = f.a.Piece(types.MustInterval(jan.Start, tail.Start), types.USD(852))
	f.timeline = []item.Item{f.head, f.b}
	f.history = []item.Item{f.a, f.r, f.b}
	return f
}

func TestDiff(t *testing.T) {
	f := newFixture()
	d := invoice.Diff(f.timeline, f.history, nil)

	assert.Equal(t, []item.Item{f.head}, d.Added)
	assert.Equal(t, []item.Item{f.a}, d.Superseded)
	assert.Equal(t, []item.Item{f.r}, d.Absorbed)
	assert.True(t, d.IsEmpty(), "the repair already credited the replaced days")
	assert.Equal(t, types.USD(0), d.Total())
}

func TestDiffUnchangedHistory(t *testing.T) {
	f := newFixture()
	d := invoice.Diff([]item.Item{f.a}, []item.Item{f.a}, nil)

	assert.True(t, d.IsEmpty())
	assert.Empty(t, d.Superseded)
	assert.Equal(t, types.USD(0), d.Total())
}

// unrepaired is the fixture without its repair: the tail was billed twice.
func unrepaired(f fixture) ([]item.Item, []item.Item) {
	return f.timeline, []item.Item{f.a, f.b}
}

func TestDiffSettlesSupersededCharge(t *testing.T) {
	f := newFixture()
	timeline, history := unrepaired(f)
	d := invoice.Diff(timeline, history, nil)

	require.Len(t, d.Adjustments, 1)
	adj := d.Adjustments[0]
	assert.Equal(t, f.a, adj.Source)
	assert.Equal(t, types.USD(852), adj.Owed)
	assert.Equal(t, types.USD(1200), adj.Billed)
	assert.Equal(t, types.USD(-348), adj.Amount)
	assert.Equal(t, types.USD(-348), d.Total())
}

func TestDiffSupersededWithoutPieces(t *testing.T) {
	f := newFixture()
	// A newer charge for the same range replaces a without a repair.
	dup := item.NewCharge(id.NewItemID(), f.a.Period, "rifle", "", types.USD(1000), types.USD(1000))
	d := invoice.Diff([]item.Item{dup}, []item.Item{f.a, dup}, nil)

	require.Len(t, d.Adjustments, 1)
	assert.Equal(t, types.USD(0), d.Adjustments[0].Owed)
	assert.Equal(t, types.USD(-1200), d.Total())
}

func TestLines(t *testing.T) {
	f := newFixture()
	timeline, history := unrepaired(f)
	lines := invoice.Diff(timeline, history, nil).Lines()

	require.Len(t, lines, 1)
	assert.Equal(t, invoice.LineItemAdjustment, lines[0].Type)
	assert.Equal(t, f.a.ID, lines[0].SourceID)
	assert.Equal(t, "Adjustment for pistol (evergreen) [2014-01-01,2014-02-01)", lines[0].Description)
	assert.Equal(t, f.a.Period, lines[0].Period)
	assert.Equal(t, types.USD(-348), lines[0].Amount)
}

func TestDraft(t *testing.T) {
	f := newFixture()
	now := time.Date(2014, 2, 1, 12, 0, 0, 0, time.UTC)
	timeline, history := unrepaired(f)

	inv := invoice.Draft(f.sub, invoice.Diff(timeline, history, nil), now)
	require.NotNil(t, inv)
	assert.Equal(t, invoice.StatusDraft, inv.Status)
	assert.Equal(t, f.sub, inv.SubscriptionID)
	assert.Equal(t, "usd", inv.Currency)
	assert.Equal(t, types.USD(-348), inv.Total)
	assert.Equal(t, types.Date(2014, 1, 1), inv.PeriodStart)
	assert.Equal(t, types.Date(2014, 2, 1), inv.PeriodEnd)

	require.Len(t, inv.LineItems, 1)
	assert.Equal(t, inv.ID, inv.LineItems[0].InvoiceID)
	assert.False(t, inv.LineItems[0].ID.IsNil())

	// Once drafted, the invoice counts as billed.
	again := invoice.Diff(timeline, history, []*invoice.Invoice{inv})
	assert.True(t, again.IsEmpty())
	assert.Nil(t, invoice.Draft(f.sub, again, now))

	// Voiding it brings the adjustment back.
	inv.Status = invoice.StatusVoided
	redo := invoice.Diff(timeline, history, []*invoice.Invoice{inv})
	assert.Equal(t, types.USD(-348), redo.Total())
}
