// Package proration computes the amount owed for part of a billed period.
//
// The functions here match reconcile.AmountFunc and are the engine's
// stock choices; callers with a rate catalog supply their own.
package proration

import (
	"errors"
	"fmt"

	"github.com/xraph/rebill/item"
	"github.com/xraph/rebill/types"
)

// ErrOutsidePeriod is returned when the sub-interval is not within the
// item's period.
var ErrOutsidePeriod = errors.New("rebill: sub-interval outside item period")

// ByDays prorates the item's amount by calendar days:
// amount * days(sub) / days(period), rounded half-even.
func ByDays(it item.Item, sub types.Interval) (types.Money, error) {
	if err := check(it, sub); err != nil {
		return types.Money{}, err
	}
	return it.Amount.Prorate(sub.Days(), it.Period.Days())
}

// BySeconds prorates by elapsed time rather than whole days. Use it for
// periods that do not fall on day boundaries.
func BySeconds(it item.Item, sub types.Interval) (types.Money, error) {
	if err := check(it, sub); err != nil {
		return types.Money{}, err
	}
	return it.Amount.Prorate(int64(sub.Duration().Seconds()), int64(it.Period.Duration().Seconds()))
}

func check(it item.Item, sub types.Interval) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	if !it.Period.Contains(sub) {
		return fmt.Errorf("%w: %s not within %s", ErrOutsidePeriod, sub, it.Period)
	}
	return nil
}
