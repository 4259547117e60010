package rebill

import (
	"errors"
	"fmt"

	"github.com/xraph/rebill/item"
	"github.com/xraph/rebill/reconcile"
	"github.com/xraph/rebill/tree"
	"github.com/xraph/rebill/types"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("rebill: not found")
	ErrAlreadyExists = errors.New("rebill: already exists")
	ErrInvalidInput  = errors.New("rebill: invalid input")

	// History errors
	ErrItemNotFound         = errors.New("rebill: item not found")
	ErrSubscriptionNotFound = errors.New("rebill: subscription has no history")

	// Invoice errors
	ErrInvoiceNotFound = errors.New("rebill: invoice not found")
	ErrInvoiceVoided   = errors.New("rebill: invoice is voided")

	// Store errors
	ErrStoreNotReady   = errors.New("rebill: store not ready")
	ErrStoreClosed     = errors.New("rebill: store is closed")
	ErrMigrationFailed = errors.New("rebill: migration failed")

	// Engine errors
	ErrEngineStopped = errors.New("rebill: engine stopped")
)

// Reconciliation errors, re-exported from the packages that return them.
var (
	ErrInvalidInterval       = types.ErrInvalidInterval
	ErrInvalidItem           = item.ErrInvalidItem
	ErrUnresolvableOverlap   = tree.ErrUnresolvableOverlap
	ErrOrphanRepair          = reconcile.ErrOrphanRepair
	ErrInvalidBillingHistory = reconcile.ErrInvalidBillingHistory
	ErrReconcilerBuilt       = reconcile.ErrReconcilerBuilt
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("rebill: validation failed for %s: %s", e.Field, e.Message)
}

// Is reports ErrInvalidInput.
func (e ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "rebill: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("rebill: %d errors occurred", len(e.Errors))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// SubscriptionError ties a failure to the subscription it happened on.
type SubscriptionError struct {
	SubscriptionID ID
	Err            error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("rebill: subscription %s: %v", e.SubscriptionID, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrInvoiceNotFound)
}

// IsInvalidHistory returns true if the stored history cannot be reconciled.
// Such failures need the history fixed; running again will not help.
func IsInvalidHistory(err error) bool {
	return errors.Is(err, ErrInvalidBillingHistory) ||
		errors.Is(err, ErrUnresolvableOverlap) ||
		errors.Is(err, ErrOrphanRepair)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
// Reconciliation failures are structural and never retryable.
func IsRetryable(err error) bool {
	if IsInvalidHistory(err) {
		return false
	}
	return errors.Is(err, ErrStoreNotReady)
}
