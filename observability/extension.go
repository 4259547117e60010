// Package observability provides a metrics extension for rebill that records
// reconciliation and invoice counts through a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/invoice"
	"github.com/xraph/rebill/item"
	"github.com/xraph/rebill/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin            = (*MetricsExtension)(nil)
	_ plugin.OnInit            = (*MetricsExtension)(nil)
	_ plugin.OnItemsRecorded   = (*MetricsExtension)(nil)
	_ plugin.OnReconciled      = (*MetricsExtension)(nil)
	_ plugin.OnReconcileFailed = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceDrafted  = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceVoided   = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a rebill plugin to automatically track reconciliation metrics.
type MetricsExtension struct {
	factory MetricFactory

	// History metrics
	ChargesRecorded Counter
	RepairsRecorded Counter

	// Reconciliation metrics
	ReconcileRuns     Counter
	ReconcileFailures Counter
	ReconcileLatency  Histogram
	HistorySize       Histogram
	PiecesEmitted     Counter
	ChargesSuperseded Counter
	RepairsAbsorbed   Counter

	// Invoice metrics
	InvoiceDrafted Counter
	InvoiceVoided  Counter
	InvoiceTotal   Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions or NewPrometheusFactory elsewhere.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// History metrics
		ChargesRecorded: factory.Counter("rebill.items.charges.recorded"),
		RepairsRecorded: factory.Counter("rebill.items.repairs.recorded"),

		// Reconciliation metrics
		ReconcileRuns:     factory.Counter("rebill.reconcile.runs"),
		ReconcileFailures: factory.Counter("rebill.reconcile.failures"),
		ReconcileLatency:  factory.Histogram("rebill.reconcile.latency_ms"),
		HistorySize:       factory.Histogram("rebill.reconcile.history.size"),
		PiecesEmitted:     factory.Counter("rebill.reconcile.pieces"),
		ChargesSuperseded: factory.Counter("rebill.reconcile.charges.superseded"),
		RepairsAbsorbed:   factory.Counter("rebill.reconcile.repairs.absorbed"),

		// Invoice metrics
		InvoiceDrafted: factory.Counter("rebill.invoice.drafted"),
		InvoiceVoided:  factory.Counter("rebill.invoice.voided"),
		InvoiceTotal:   factory.Histogram("rebill.invoice.total_amount"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// History hooks
// ──────────────────────────────────────────────────

// OnItemsRecorded implements plugin.OnItemsRecorded.
func (m *MetricsExtension) OnItemsRecorded(_ context.Context, items []item.Item) error {
	for _, it := range items {
		if it.IsRepair() {
			m.RepairsRecorded.Inc()
		} else {
			m.ChargesRecorded.Inc()
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Reconciliation hooks
// ──────────────────────────────────────────────────

// OnReconciled implements plugin.OnReconciled.
func (m *MetricsExtension) OnReconciled(_ context.Context, run *plugin.Run) error {
	m.ReconcileRuns.Inc()
	m.ReconcileLatency.Observe(float64(run.Elapsed.Milliseconds()))
	m.HistorySize.Observe(float64(run.Items))
	m.PiecesEmitted.Add(float64(len(run.Delta.Added)))
	m.ChargesSuperseded.Add(float64(len(run.Delta.Superseded)))
	m.RepairsAbsorbed.Add(float64(len(run.Delta.Absorbed)))
	return nil
}

// OnReconcileFailed implements plugin.OnReconcileFailed.
func (m *MetricsExtension) OnReconcileFailed(_ context.Context, _ id.SubscriptionID, _ error, elapsed time.Duration) error {
	m.ReconcileRuns.Inc()
	m.ReconcileFailures.Inc()
	m.ReconcileLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// ──────────────────────────────────────────────────
// Invoice lifecycle hooks
// ──────────────────────────────────────────────────

// OnInvoiceDrafted implements plugin.OnInvoiceDrafted.
func (m *MetricsExtension) OnInvoiceDrafted(_ context.Context, inv *invoice.Invoice) error {
	m.InvoiceDrafted.Inc()
	m.InvoiceTotal.Observe(float64(inv.Total.Amount))
	return nil
}

// OnInvoiceVoided implements plugin.OnInvoiceVoided.
func (m *MetricsExtension) OnInvoiceVoided(_ context.Context, _ id.InvoiceID, _ string) error {
	m.InvoiceVoided.Inc()
	return nil
}
