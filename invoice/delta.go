// Package invoice turns a reconciled timeline into invoice lines.
//
// History items are facts that were billed when they were recorded. A
// reconciliation only changes what is owed where a Charge was split or
// replaced, so an invoice bills the difference, per superseded Charge,
// between what its range is owed now and what history and earlier
// invoices have billed for it.
package invoice

import (
	"fmt"
	"time"

	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/item"
	"github.com/xraph/rebill/types"
)

// Delta is the difference between a reconciled timeline and the history it
// was built from.
type Delta struct {
	// Added holds timeline entries that are not in history, the split
	// pieces.
	Added []item.Item `json:"added"`
	// Superseded holds history Charges that no longer appear verbatim.
	Superseded []item.Item `json:"superseded"`
	// Absorbed holds history Repairs folded into a replacement Charge.
	Absorbed []item.Item `json:"absorbed"`
	// Adjustments holds the non-zero settlements of Superseded Charges.
	// These are what a new invoice bills.
	Adjustments []Adjustment `json:"adjustments"`
}

// Adjustment settles one superseded Charge.
type Adjustment struct {
	Source item.Item `json:"source"`
	// Owed is the sum of the Charge's pieces in the timeline.
	Owed types.Money `json:"owed"`
	// Billed is the Charge's amount plus the Repairs targeting it and the
	// lines of earlier invoices settling it.
	Billed types.Money `json:"billed"`
	// Amount is Owed minus Billed.
	Amount types.Money `json:"amount"`
}

// Diff compares a timeline with the history it was reconciled from and the
// subscription's invoices. An entry matches history only by ID, so pieces
// are always Added. Voided invoices are ignored.
func Diff(timeline, history []item.Item, invoices []*Invoice) Delta {
	inTimeline := make(map[id.ItemID]bool, len(timeline))
	known := make(map[id.ItemID]bool, len(history))
	for _, it := range timeline {
		if !it.ID.IsNil() {
			inTimeline[it.ID] = true
		}
	}
	for _, it := range history {
		known[it.ID] = true
	}

	var d Delta
	owed := make(map[id.ItemID]types.Money)
	for _, it := range timeline {
		if it.ID.IsNil() || !known[it.ID] {
			d.Added = append(d.Added, it)
			if it.IsPiece() {
				owed[it.SourceID] = owed[it.SourceID].Add(it.Amount)
			}
		}
	}

	billed := make(map[id.ItemID]types.Money)
	for _, it := range history {
		if it.IsRepair() {
			billed[it.TargetID] = billed[it.TargetID].Add(it.Amount)
		}
		if inTimeline[it.ID] {
			continue
		}
		switch it.Kind {
		case item.KindCharge:
			d.Superseded = append(d.Superseded, it)
		case item.KindRepair:
			d.Absorbed = append(d.Absorbed, it)
		}
	}
	for _, inv := range invoices {
		if inv.Status == StatusVoided {
			continue
		}
		for _, li := range inv.LineItems {
			if !li.SourceID.IsNil() {
				billed[li.SourceID] = billed[li.SourceID].Add(li.Amount)
			}
		}
	}

	for _, c := range d.Superseded {
		adj := Adjustment{
			Source: c,
			Owed:   types.Zero(c.Amount.Currency).Add(owed[c.ID]),
			Billed: c.Amount.Add(billed[c.ID]),
		}
		adj.Amount = adj.Owed.Subtract(adj.Billed)
		if !adj.Amount.IsZero() {
			d.Adjustments = append(d.Adjustments, adj)
		}
	}
	return d
}

// IsEmpty reports whether there is nothing new to bill.
func (d Delta) IsEmpty() bool { return len(d.Adjustments) == 0 }

// Total sums the adjustment amounts.
func (d Delta) Total() types.Money {
	amounts := make([]types.Money, len(d.Adjustments))
	for i, adj := range d.Adjustments {
		amounts[i] = adj.Amount
	}
	return types.Sum(amounts...)
}

// Lines renders the adjustments as unsaved invoice lines.
func (d Delta) Lines() []LineItem {
	lines := make([]LineItem, 0, len(d.Adjustments))
	for _, adj := range d.Adjustments {
		lines = append(lines, LineItem{
			SourceID:    adj.Source.ID,
			Type:        LineItemAdjustment,
			Description: fmt.Sprintf("Adjustment for %s", adj.Source.Description()),
			Period:      adj.Source.Period,
			Amount:      adj.Amount,
		})
	}
	return lines
}

// Draft builds a draft invoice for the delta's adjustments. It returns nil
// when there is nothing to bill.
func Draft(subID id.SubscriptionID, d Delta, now time.Time) *Invoice {
	if d.IsEmpty() {
		return nil
	}

	total := d.Total()
	inv := &Invoice{
		ID:             id.NewInvoiceID(),
		SubscriptionID: subID,
		Status:         StatusDraft,
		Currency:       total.Currency,
		Total:          total,
		LineItems:      d.Lines(),
		CreatedAt:      now,
	}
	for i := range inv.LineItems {
		li := &inv.LineItems[i]
		li.ID = id.NewLineItemID()
		li.InvoiceID = inv.ID
		if inv.PeriodStart.IsZero() || li.Period.Start.Before(inv.PeriodStart) {
			inv.PeriodStart = li.Period.Start
		}
		if li.Period.End.After(inv.PeriodEnd) {
			inv.PeriodEnd = li.Period.End
		}
	}
	return inv
}
