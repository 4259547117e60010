package reconcile

import (
	"slices"

	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/item"
	"github.com/xraph/rebill/tree"
)

// bucket holds every item added for one exact range. Items arrive in any
// order, so everything read out of a bucket is sorted first.
type bucket struct {
	items []item.Item
}

func newBucket(it item.Item) *bucket { return &bucket{items: []item.Item{it}} }

// charges returns the bucket's Charges, oldest first.
func (b *bucket) charges() []item.Item { return b.sorted(item.KindCharge) }

// repairs returns the bucket's Repairs, oldest first.
func (b *bucket) repairs() []item.Item { return b.sorted(item.KindRepair) }

func (b *bucket) sorted(k item.Kind) []item.Item {
	var out []item.Item
	for _, it := range b.items {
		if it.Kind == k {
			out = append(out, it)
		}
	}
	slices.SortFunc(out, byCreation)
	return out
}

// live returns the Charge in force on this range: the newest Charge that
// no Repair in the same bucket cancels.
func (b *bucket) live() (item.Item, bool) {
	cancelled := make(map[id.ItemID]bool)
	for _, r := range b.repairs() {
		cancelled[r.TargetID] = true
	}
	var (
		winner item.Item
		found  bool
	)
	for _, c := range b.charges() {
		if !cancelled[c.ID] {
			winner, found = c, true
		}
	}
	return winner, found
}

func byCreation(a, b item.Item) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return a.ID.Compare(b.ID)
}

// ──────────────────────────────────────────────────
// Collision policies
// ──────────────────────────────────────────────────

// mergeBuckets folds the incoming bucket into the existing node.
func mergeBuckets() tree.Policy[*bucket] {
	return tree.PolicyFuncs[*bucket]{
		OnExisting: func(t *tree.Tree[*bucket], existing tree.NodeID, incoming *bucket) bool {
			b := t.Payload(existing)
			b.items = append(b.items, incoming.items...)
			return false
		},
	}
}

func policyFor(c Collision) tree.Policy[*bucket] {
	switch c {
	case CollisionFirstWins:
		return tree.KeepExisting[*bucket]()
	case CollisionLastWins:
		return tree.ReplaceExisting[*bucket]()
	default:
		return mergeBuckets()
	}
}
