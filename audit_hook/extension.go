// Package audithook bridges rebill lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on a
// particular audit store. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/invoice"
	"github.com/xraph/rebill/item"
	"github.com/xraph/rebill/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin            = (*Extension)(nil)
	_ plugin.OnItemsRecorded   = (*Extension)(nil)
	_ plugin.OnReconciled      = (*Extension)(nil)
	_ plugin.OnReconcileFailed = (*Extension)(nil)
	_ plugin.OnInvoiceDrafted  = (*Extension)(nil)
	_ plugin.OnInvoiceVoided   = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges rebill lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// History hooks
// ──────────────────────────────────────────────────

// OnItemsRecorded implements plugin.OnItemsRecorded. One event is recorded
// per subscription in the batch.
func (e *Extension) OnItemsRecorded(ctx context.Context, items []item.Item) error {
	type counts struct{ charges, repairs int }
	bySub := make(map[id.SubscriptionID]*counts)
	var order []id.SubscriptionID
	for _, it := range items {
		c, ok := bySub[it.SubscriptionID]
		if !ok {
			c = &counts{}
			bySub[it.SubscriptionID] = c
			order = append(order, it.SubscriptionID)
		}
		if it.IsRepair() {
			c.repairs++
		} else {
			c.charges++
		}
	}

	for _, subID := range order {
		c := bySub[subID]
		if err := e.record(ctx, ActionItemsRecorded, SeverityInfo, OutcomeSuccess,
			ResourceSubscription, subID.String(), CategoryHistory, nil,
			"charges", c.charges,
			"repairs", c.repairs,
		); err != nil {
			return err
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Reconciliation hooks
// ──────────────────────────────────────────────────

// OnReconciled implements plugin.OnReconciled.
func (e *Extension) OnReconciled(ctx context.Context, run *plugin.Run) error {
	return e.record(ctx, ActionReconciled, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, run.SubscriptionID.String(), CategoryReconcile, nil,
		"run_id", run.ID.String(),
		"items", run.Items,
		"timeline", len(run.Timeline),
		"added", len(run.Delta.Added),
		"superseded", len(run.Delta.Superseded),
		"absorbed", len(run.Delta.Absorbed),
		"elapsed_ms", run.Elapsed.Milliseconds(),
	)
}

// OnReconcileFailed implements plugin.OnReconcileFailed.
func (e *Extension) OnReconcileFailed(ctx context.Context, subID id.SubscriptionID, err error, elapsed time.Duration) error {
	return e.record(ctx, ActionReconcileFailed, SeverityError, OutcomeFailure,
		ResourceSubscription, subID.String(), CategoryReconcile, err,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Invoice lifecycle hooks
// ──────────────────────────────────────────────────

// OnInvoiceDrafted implements plugin.OnInvoiceDrafted.
func (e *Extension) OnInvoiceDrafted(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoiceDrafted, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryBilling, nil,
		"subscription_id", inv.SubscriptionID.String(),
		"lines", len(inv.LineItems),
		"total", inv.Total.String(),
	)
}

// OnInvoiceVoided implements plugin.OnInvoiceVoided.
func (e *Extension) OnInvoiceVoided(ctx context.Context, invID id.InvoiceID, reason string) error {
	return e.record(ctx, ActionInvoiceVoided, SeverityWarning, OutcomeSuccess,
		ResourceInvoice, invID.String(), CategoryBilling, nil,
		"void_reason", reason,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
