package audithook

// Action constants for audit events.
const (
	// History actions
	ActionItemsRecorded = "items.recorded"

	// Reconciliation actions
	ActionReconciled      = "reconcile.completed"
	ActionReconcileFailed = "reconcile.failed"

	// Invoice actions
	ActionInvoiceDrafted = "invoice.drafted"
	ActionInvoiceVoided  = "invoice.voided"
)

// Resource constants for audit events.
const (
	ResourceSubscription = "subscription"
	ResourceInvoice      = "invoice"
)

// Category constants for audit events.
const (
	CategoryHistory   = "history"
	CategoryReconcile = "reconcile"
	CategoryBilling   = "billing"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
