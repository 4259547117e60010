package reconcile

import (
	"errors"
	"fmt"

	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/types"
)

var (
	// ErrInvalidBillingHistory is wrapped by every Build failure together
	// with the specific cause.
	ErrInvalidBillingHistory = errors.New("rebill: invalid billing history")

	// ErrOrphanRepair is returned when a Repair's target is not a Charge
	// covering the Repair's range.
	ErrOrphanRepair = errors.New("rebill: orphan repair")

	// ErrReconcilerBuilt is returned by AddItem once Build has run.
	ErrReconcilerBuilt = errors.New("rebill: reconciler already built")
)

// OrphanRepairError names the Repair whose target could not be matched.
type OrphanRepairError struct {
	RepairID id.ItemID
	TargetID id.ItemID
	Period   types.Interval
}

func (e *OrphanRepairError) Error() string {
	return fmt.Sprintf("rebill: orphan repair %s over %s: target %s is not an enclosing charge",
		e.RepairID, e.Period, e.TargetID)
}

// Is reports ErrOrphanRepair.
func (e *OrphanRepairError) Is(target error) bool { return target == ErrOrphanRepair }

func invalidHistory(cause error) error {
	return fmt.Errorf("%w: %w", ErrInvalidBillingHistory, cause)
}
