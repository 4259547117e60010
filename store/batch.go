package store

import (
	"fmt"
	"slices"

	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/item"
)

// CheckItems validates a batch before a backend writes any of it.
func CheckItems(items []item.Item) error {
	seen := make(map[id.ItemID]bool, len(items))
	for _, it := range items {
		if it.ID.IsNil() {
			return fmt.Errorf("%w: %s has no id", item.ErrInvalidItem, it)
		}
		if it.SubscriptionID.IsNil() {
			return fmt.Errorf("%w: item %s has no subscription", item.ErrInvalidItem, it.ID)
		}
		if err := it.Validate(); err != nil {
			return err
		}
		if seen[it.ID] {
			return fmt.Errorf("%w: item %s appears twice in batch", item.ErrInvalidItem, it.ID)
		}
		seen[it.ID] = true
	}
	return nil
}

// SortHistory orders items by creation time, then ID.
func SortHistory(items []item.Item) {
	slices.SortFunc(items, func(a, b item.Item) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
}
