package rebill

import (
	"github.com/xraph/rebill/item"
	"github.com/xraph/rebill/types"
)

// Re-export common types for convenience so users don't have to import the
// leaf packages for everyday use.

// Money is re-exported from types package.
type Money = types.Money

// Interval is re-exported from types package.
type Interval = types.Interval

// Item is re-exported from item package.
type Item = item.Item

// Re-export Money constructors
var (
	USD  = types.USD
	EUR  = types.EUR
	Zero = types.Zero
	Sum  = types.Sum
)

// Re-export Interval and Item constructors
var (
	NewInterval  = types.NewInterval
	MustInterval = types.MustInterval
	Date         = types.Date
	NewCharge    = item.NewCharge
	NewRepair    = item.NewRepair
)
