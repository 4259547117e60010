package item_test

import (
	"errors"
	"testing"

	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/item"
	"github.com/xraph/rebill/types"
)

var january = types.MustInterval(types.Date(2014, 1, 1), types.Date(2014, 2, 1))

func TestValidate(t *testing.T) {
	charge := item.NewCharge(id.NewItemID(), january, "pistol", "evergreen", types.USD(1200), types.USD(1200))
	tail := types.MustInterval(types.Date(2014, 1, 23), types.Date(2014, 2, 1))

	tests := []struct {
		name    string
		it      item.Item
		wantErr bool
	}{
		{"charge", charge, false},
		{"repair", item.NewRepair(id.NewItemID(), tail, types.USD(-348), charge.ID), false},
		{"repair without target", item.NewRepair(id.NewItemID(), tail, types.USD(-348), id.Nil), true},
		{"reversed period", item.Item{Kind: item.KindCharge, Period: types.Interval{Start: tail.End, End: tail.Start}}, true},
		{"unknown kind", item.Item{Kind: "credit", Period: january}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.it.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSentinels(t *testing.T) {
	bad := item.Item{Kind: "credit", Period: january}
	if err := bad.Validate(); !errors.Is(err, item.ErrInvalidItem) {
		t.Errorf("unknown kind: got %v, want ErrInvalidItem", err)
	}
	reversed := item.Item{Kind: item.KindCharge, Period: types.Interval{Start: january.End, End: january.Start}}
	if err := reversed.Validate(); !errors.Is(err, types.ErrInvalidInterval) {
		t.Errorf("reversed period: got %v, want ErrInvalidInterval", err)
	}
}

func TestPiece(t *testing.T) {
	charge := item.NewCharge(id.NewItemID(), january, "pistol", "evergreen", types.USD(1200), types.USD(1200))
	head := types.MustInterval(types.Date(2014, 1, 1), types.Date(2014, 1, 23))

	p := charge.Piece(head, types.USD(852))
	if !p.ID.IsNil() {
		t.Error("piece should not carry an ID")
	}
	if p.SourceID != charge.ID {
		t.Errorf("SourceID: got %s, want %s", p.SourceID, charge.ID)
	}
	if !p.Period.Equal(head) || !p.Amount.Equal(types.USD(852)) {
		t.Errorf("unexpected piece %v", p)
	}
	if p.PlanName != "pistol" || !p.Rate.Equal(types.USD(1200)) {
		t.Error("piece should keep plan metadata")
	}

	again := p.Piece(types.MustInterval(types.Date(2014, 1, 1), types.Date(2014, 1, 10)), types.USD(348))
	if again.SourceID != charge.ID {
		t.Error("a piece of a piece should point at the original charge")
	}
}
