// Package reconcile merges a subscription's billing history into the
// timeline of what was actually billed.
//
// A Reconciler is fed every Charge and Repair recorded for one subscription,
// in any order, and Build flattens them into a chronological list of
// non-overlapping items. Items that cover the same range share a tree node,
// so a Repair and the Charge that replaced the repaired range are resolved
// together:
//
//   - a Repair targeting a Charge on its own range cancels that Charge and
//     is emitted verbatim;
//   - a Repair targeting an enclosing Charge is absorbed when a replacement
//     Charge shares its range, and emitted verbatim otherwise;
//   - of several live Charges on one range, the newest wins.
//
// Absorbed Repairs do not appear in the output, so a Repair in the input
// appears at most once rather than exactly once. Callers that account for
// every Repair should diff the output against the input, as invoice.Diff
// does with its Absorbed list.
//
// Ranges of an enclosing Charge not covered by a nested node are emitted as
// pieces carrying the Charge's plan metadata and a prorated amount.
//
// A Reconciler is single-use and not safe for concurrent use.
package reconcile

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/item"
	"github.com/xraph/rebill/proration"
	"github.com/xraph/rebill/tree"
	"github.com/xraph/rebill/types"
)

// Reconciler accumulates one subscription's items and builds its timeline.
type Reconciler struct {
	subscriptionID id.SubscriptionID

	tree      *tree.Tree[*bucket]
	policy    tree.Policy[*bucket]
	collision Collision
	amountFor AmountFunc
	logger    *slog.Logger

	added int
	// err is the first structural failure seen by AddItem. It is reported
	// by Build, which is the only place a history is judged as a whole.
	err error

	built    bool
	result   []item.Item
	buildErr error
}

// New returns an empty Reconciler for one subscription.
func New(subscriptionID id.SubscriptionID, opts ...Option) *Reconciler {
	r := &Reconciler{
		subscriptionID: subscriptionID,
		tree:           tree.New[*bucket](),
		amountFor:      proration.ByDays,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.policy = policyFor(r.collision)
	return r
}

// SubscriptionID returns the subscription being reconciled.
func (r *Reconciler) SubscriptionID() id.SubscriptionID { return r.subscriptionID }

// Len returns the number of items accepted by AddItem.
func (r *Reconciler) Len() int { return r.added }

// AddItem inserts one item. It fails with types.ErrInvalidInterval when the
// period is empty or reversed and with item.ErrInvalidItem for a malformed
// variant; in both cases nothing is inserted. A partial overlap with an
// earlier item is not reported here but makes Build fail.
func (r *Reconciler) AddItem(it item.Item) error {
	if r.built {
		return ErrReconcilerBuilt
	}
	if err := it.Validate(); err != nil {
		return err
	}
	if !r.subscriptionID.IsNil() && !it.SubscriptionID.IsNil() && it.SubscriptionID != r.subscriptionID {
		return fmt.Errorf("%w: item %s belongs to subscription %s, not %s",
			item.ErrInvalidItem, it.ID, it.SubscriptionID, r.subscriptionID)
	}

	b := newBucket(it)
	n, err := r.tree.Insert(it.Period, b, r.policy)
	if err != nil {
		if r.err == nil {
			r.err = fmt.Errorf("item %s: %w", it.ID, err)
		}
		r.logger.Debug("reconcile: overlapping item",
			"subscription_id", r.subscriptionID.String(),
			"item_id", it.ID.String(),
			"error", err,
		)
		return nil
	}
	r.added++

	if n != tree.NoNode && r.tree.Payload(n) != b {
		r.logger.Debug("reconcile: range collision",
			"subscription_id", r.subscriptionID.String(),
			"item_id", it.ID.String(),
			"period", it.Period.String(),
			"policy", r.collision.String(),
		)
	}
	return nil
}

// Build returns the reconciled timeline in chronological order. A failure
// wraps ErrInvalidBillingHistory together with its cause and yields no
// items. Build is terminal: later calls return the same result and AddItem
// is refused.
func (r *Reconciler) Build() ([]item.Item, error) {
	if !r.built {
		r.built = true
		r.result, r.buildErr = r.flatten()
		if r.buildErr != nil {
			r.result = nil
			r.logger.Debug("reconcile: build failed",
				"subscription_id", r.subscriptionID.String(),
				"items", r.added,
				"error", r.buildErr,
			)
		} else {
			r.logger.Debug("reconcile: built",
				"subscription_id", r.subscriptionID.String(),
				"items", r.added,
				"nodes", r.tree.Len(),
				"timeline", len(r.result),
			)
		}
	}
	return slices.Clone(r.result), r.buildErr
}

// String renders the current tree shape, one range per line.
func (r *Reconciler) String() string { return r.tree.String() }

func (r *Reconciler) flatten() ([]item.Item, error) {
	if r.err != nil {
		return nil, invalidHistory(r.err)
	}
	w := &walker{r: r, enclosing: make(map[id.ItemID]int)}
	for _, n := range r.tree.Children(tree.Root) {
		if err := w.visit(n); err != nil {
			return nil, err
		}
	}
	return w.out, nil
}

// ──────────────────────────────────────────────────
// Flattening walk
// ──────────────────────────────────────────────────

type walker struct {
	r   *Reconciler
	out []item.Item
	// enclosing counts the Charges on the current node and its ancestors.
	enclosing map[id.ItemID]int
}

func (w *walker) visit(n tree.NodeID) error {
	b := w.r.tree.Payload(n)
	charges := b.charges()
	repairs := b.repairs()

	for _, c := range charges {
		w.enclosing[c.ID]++
	}
	defer func() {
		for _, c := range charges {
			if w.enclosing[c.ID]--; w.enclosing[c.ID] == 0 {
				delete(w.enclosing, c.ID)
			}
		}
	}()

	for _, rep := range repairs {
		if w.enclosing[rep.TargetID] == 0 {
			return invalidHistory(&OrphanRepairError{
				RepairID: rep.ID,
				TargetID: rep.TargetID,
				Period:   rep.Period,
			})
		}
	}

	charge, ok := b.live()
	if !ok {
		// Nothing is billed on this range. With no Charge of its own the
		// Repairs are holes and stand as recorded; otherwise only the Repairs
		// cancelling this range's own Charges do.
		w.out = append(w.out, standing(charges, repairs)...)
		for _, c := range w.r.tree.Children(n) {
			if err := w.visit(c); err != nil {
				return err
			}
		}
		return nil
	}

	if len(repairs) > 0 {
		w.r.logger.Debug("reconcile: repairs absorbed by replacement charge",
			"subscription_id", w.r.subscriptionID.String(),
			"charge_id", charge.ID.String(),
			"repairs", len(repairs),
		)
	}

	kids := w.r.tree.Children(n)
	if len(kids) == 0 {
		w.out = append(w.out, charge)
		return nil
	}

	cursor := charge.Period.Start
	for _, c := range kids {
		civ := w.r.tree.Interval(c)
		if cursor.Before(civ.Start) {
			if err := w.piece(charge, types.Interval{Start: cursor, End: civ.Start}); err != nil {
				return err
			}
		}
		if err := w.visit(c); err != nil {
			return err
		}
		cursor = civ.End
	}
	if cursor.Before(charge.Period.End) {
		return w.piece(charge, types.Interval{Start: cursor, End: charge.Period.End})
	}
	return nil
}

func standing(charges, repairs []item.Item) []item.Item {
	if len(charges) == 0 {
		return repairs
	}
	own := make(map[id.ItemID]bool, len(charges))
	for _, c := range charges {
		own[c.ID] = true
	}
	var out []item.Item
	for _, r := range repairs {
		if own[r.TargetID] {
			out = append(out, r)
		}
	}
	return out
}

func (w *walker) piece(charge item.Item, sub types.Interval) error {
	amount, err := w.r.amountFor(charge, sub)
	if err != nil {
		return fmt.Errorf("rebill: amount for %s over %s: %w", charge.ID, sub, err)
	}
	w.out = append(w.out, charge.Piece(sub, amount))
	return nil
}
