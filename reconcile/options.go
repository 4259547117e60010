package reconcile

import (
	"log/slog"

	"github.com/xraph/rebill/item"
	"github.com/xraph/rebill/types"
)

// AmountFunc returns the amount owed for sub, a sub-range of the Charge it.
// It is called once per split piece; pass-through items keep their amount.
type AmountFunc func(it item.Item, sub types.Interval) (types.Money, error)

// Collision selects what happens when two items cover the identical range.
type Collision int

const (
	// CollisionMerge keeps every item on the shared range and resolves them
	// at Build: a Repair cancels the Charge it targets, and the newest live
	// Charge wins. This is the default.
	CollisionMerge Collision = iota
	// CollisionFirstWins keeps whichever item was added first and discards
	// the rest. Results then depend on insertion order for colliding ranges.
	CollisionFirstWins
	// CollisionLastWins keeps whichever item was added last.
	CollisionLastWins
)

func (c Collision) String() string {
	switch c {
	case CollisionMerge:
		return "merge"
	case CollisionFirstWins:
		return "first-wins"
	case CollisionLastWins:
		return "last-wins"
	default:
		return "unknown"
	}
}

// ParseCollision maps a config string to a Collision. Unknown values fall
// back to CollisionMerge and report false.
func ParseCollision(s string) (Collision, bool) {
	switch s {
	case "", "merge":
		return CollisionMerge, true
	case "first-wins", "first":
		return CollisionFirstWins, true
	case "last-wins", "last":
		return CollisionLastWins, true
	default:
		return CollisionMerge, false
	}
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger for insert and resolution decisions.
// Everything is logged at Debug.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// WithAmountFunc sets the proration function used for split pieces.
func WithAmountFunc(fn AmountFunc) Option {
	return func(r *Reconciler) {
		if fn != nil {
			r.amountFor = fn
		}
	}
}

// WithCollision sets the equal-range collision policy.
func WithCollision(c Collision) Option {
	return func(r *Reconciler) { r.collision = c }
}
