// Package item defines the billing items that a subscription's invoice
// history is made of.
//
// An Item is a tagged variant: Kind selects which of the fields are
// meaningful. Charges carry plan, phase and rate; Repairs carry the ID of the
// item they correct. Code that consumes items switches on Kind and treats any
// other value as an error.
package item

import (
	"errors"
	"fmt"
	"time"

	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/types"
)

// ErrInvalidItem is returned for an item whose variant fields are malformed.
var ErrInvalidItem = errors.New("rebill: invalid item")

// Kind tags the variant an Item holds.
type Kind string

const (
	// KindCharge is a billed sub-period at a fixed plan, phase and price.
	KindCharge Kind = "charge"
	// KindRepair cancels a sub-range previously billed by another item.
	KindRepair Kind = "repair"
)

// Valid reports whether k is a known variant.
func (k Kind) Valid() bool { return k == KindCharge || k == KindRepair }

// Item is one billing record of a subscription.
type Item struct {
	ID             id.ItemID         `json:"id"`
	Kind           Kind              `json:"kind"`
	SubscriptionID id.SubscriptionID `json:"subscription_id"`
	InvoiceID      id.InvoiceID      `json:"invoice_id,omitempty"`
	Period         types.Interval    `json:"period"`
	Amount         types.Money       `json:"amount"`

	// Charge fields.
	PlanName  string      `json:"plan_name,omitempty"`
	PhaseName string      `json:"phase_name,omitempty"`
	Rate      types.Money `json:"rate"`

	// TargetID is the item a Repair corrects.
	TargetID id.ItemID `json:"target_id,omitempty"`

	// SourceID is set on pieces split out of a Charge during reconciliation
	// and names that Charge. Pieces have no ID of their own until persisted.
	SourceID id.ItemID `json:"source_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewCharge builds a Charge item.
func NewCharge(itemID id.ItemID, period types.Interval, planName, phaseName string, rate, amount types.Money) Item {
	return Item{
		ID:        itemID,
		Kind:      KindCharge,
		Period:    period,
		PlanName:  planName,
		PhaseName: phaseName,
		Rate:      rate,
		Amount:    amount,
	}
}

// NewRepair builds a Repair item correcting target over period.
func NewRepair(itemID id.ItemID, period types.Interval, amount types.Money, target id.ItemID) Item {
	return Item{
		ID:       itemID,
		Kind:     KindRepair,
		Period:   period,
		Amount:   amount,
		TargetID: target,
	}
}

// IsCharge reports whether the item is a Charge.
func (it Item) IsCharge() bool { return it.Kind == KindCharge }

// IsRepair reports whether the item is a Repair.
func (it Item) IsRepair() bool { return it.Kind == KindRepair }

// IsPiece reports whether the item was split out of a Charge.
func (it Item) IsPiece() bool { return !it.SourceID.IsNil() }

// Piece returns a copy of a Charge restricted to sub with the given amount.
// The copy keeps plan, phase and rate, drops the ID and records the source.
func (it Item) Piece(sub types.Interval, amount types.Money) Item {
	p := it
	p.ID = id.Nil
	p.InvoiceID = id.Nil
	p.SourceID = it.ID
	if it.IsPiece() {
		p.SourceID = it.SourceID
	}
	p.Period = sub
	p.Amount = amount
	return p
}

// Validate checks the variant-level shape of an item.
func (it Item) Validate() error {
	if err := it.Period.Validate(); err != nil {
		return fmt.Errorf("item %s: %w", it.ID, err)
	}
	switch it.Kind {
	case KindCharge:
		return nil
	case KindRepair:
		if it.TargetID.IsNil() {
			return fmt.Errorf("%w: repair %s has no target", ErrInvalidItem, it.ID)
		}
		return nil
	default:
		return fmt.Errorf("%w: item %s has unknown kind %q", ErrInvalidItem, it.ID, it.Kind)
	}
}

// Description renders a short human label, used for invoice lines.
func (it Item) Description() string {
	switch it.Kind {
	case KindCharge:
		if it.PhaseName != "" {
			return fmt.Sprintf("%s (%s) %s", it.PlanName, it.PhaseName, it.Period)
		}
		return fmt.Sprintf("%s %s", it.PlanName, it.Period)
	case KindRepair:
		return fmt.Sprintf("Adjustment %s", it.Period)
	default:
		return string(it.Kind)
	}
}

func (it Item) String() string {
	return fmt.Sprintf("%s%s %s", it.Kind, it.Period, it.Amount)
}
