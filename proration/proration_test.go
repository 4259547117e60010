package proration

import (
	"errors"
	"testing"

	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/item"
	"github.com/xraph/rebill/types"
)

func day(d int) types.Interval {
	return types.MustInterval(types.Date(2014, 1, d), types.Date(2014, 1, d+1))
}

func TestByDays(t *testing.T) {
	january := types.MustInterval(types.Date(2014, 1, 1), types.Date(2014, 2, 1))
	charge := item.NewCharge(id.NewItemID(), january, "pistol", "evergreen", types.USD(1200), types.USD(1200))

	tests := []struct {
		name string
		sub  types.Interval
		want types.Money
	}{
		{"head", types.MustInterval(types.Date(2014, 1, 1), types.Date(2014, 1, 23)), types.USD(852)},
		{"tail", types.MustInterval(types.Date(2014, 1, 23), types.Date(2014, 2, 1)), types.USD(348)},
		{"whole", january, types.USD(1200)},
		{"one day", day(5), types.USD(39)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ByDays(charge, tt.sub)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBySeconds(t *testing.T) {
	week := types.MustInterval(types.Date(2014, 1, 1), types.Date(2014, 1, 8))
	charge := item.NewCharge(id.NewItemID(), week, "pistol", "", types.USD(700), types.USD(700))

	got, err := BySeconds(charge, day(3))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(types.USD(100)) {
		t.Errorf("got %v, want %v", got, types.USD(100))
	}
}

func TestOutsidePeriod(t *testing.T) {
	week := types.MustInterval(types.Date(2014, 1, 1), types.Date(2014, 1, 8))
	charge := item.NewCharge(id.NewItemID(), week, "pistol", "", types.USD(700), types.USD(700))

	if _, err := ByDays(charge, day(10)); !errors.Is(err, ErrOutsidePeriod) {
		t.Errorf("got %v, want ErrOutsidePeriod", err)
	}
	if _, err := ByDays(charge, types.Interval{Start: week.End, End: week.Start}); !errors.Is(err, types.ErrInvalidInterval) {
		t.Errorf("got %v, want ErrInvalidInterval", err)
	}
}
