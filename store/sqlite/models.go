package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/invoice"
	"github.com/xraph/rebill/item"
	"github.com/xraph/rebill/types"
)

// timeLayout is fixed-width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }

// ──────────────────────────────────────────────────
// Item model
// ──────────────────────────────────────────────────

const itemColumns = `id, kind, subscription_id, invoice_id, period_start, period_end,
amount_cents, amount_currency, plan_name, phase_name, rate_cents, rate_currency,
target_id, source_id, created_at`

func itemArgs(it item.Item) []any {
	return []any{
		it.ID, string(it.Kind), it.SubscriptionID, it.InvoiceID,
		formatTime(it.Period.Start), formatTime(it.Period.End),
		it.Amount.Amount, it.Amount.Currency,
		it.PlanName, it.PhaseName,
		it.Rate.Amount, it.Rate.Currency,
		it.TargetID, it.SourceID,
		formatTime(it.CreatedAt),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (item.Item, error) {
	var (
		it                 item.Item
		kind               string
		start, end, create string
	)
	err := row.Scan(
		&it.ID, &kind, &it.SubscriptionID, &it.InvoiceID,
		&start, &end,
		&it.Amount.Amount, &it.Amount.Currency,
		&it.PlanName, &it.PhaseName,
		&it.Rate.Amount, &it.Rate.Currency,
		&it.TargetID, &it.SourceID,
		&create,
	)
	if err != nil {
		return item.Item{}, err
	}
	it.Kind = item.Kind(kind)
	if it.Period.Start, err = parseTime(start); err != nil {
		return item.Item{}, fmt.Errorf("period_start: %w", err)
	}
	if it.Period.End, err = parseTime(end); err != nil {
		return item.Item{}, fmt.Errorf("period_end: %w", err)
	}
	if it.CreatedAt, err = parseTime(create); err != nil {
		return item.Item{}, fmt.Errorf("created_at: %w", err)
	}
	return it, nil
}

// ──────────────────────────────────────────────────
// Invoice model
// ──────────────────────────────────────────────────

const invoiceColumns = `id, subscription_id, status, currency, total_amount_cents, total_currency,
line_items, period_start, period_end, voided_at, void_reason, metadata, created_at`

func invoiceArgs(inv *invoice.Invoice) ([]any, error) {
	lineItems, err := json.Marshal(inv.LineItems)
	if err != nil {
		return nil, fmt.Errorf("line_items: %w", err)
	}
	metadata, err := json.Marshal(inv.Metadata)
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	var voidedAt sql.NullString
	if inv.VoidedAt != nil {
		voidedAt = sql.NullString{String: formatTime(*inv.VoidedAt), Valid: true}
	}
	return []any{
		inv.ID, inv.SubscriptionID, string(inv.Status), inv.Currency,
		inv.Total.Amount, inv.Total.Currency,
		string(lineItems),
		formatTime(inv.PeriodStart), formatTime(inv.PeriodEnd),
		voidedAt, inv.VoidReason,
		string(metadata),
		formatTime(inv.CreatedAt),
	}, nil
}

func scanInvoice(row rowScanner) (*invoice.Invoice, error) {
	var (
		inv                 invoice.Invoice
		status              string
		lineItems, metadata string
		start, end, created string
		voidedAt            sql.NullString
		totalCents          int64
		totalCurrency       string
		invID, subID        id.ID
	)
	err := row.Scan(
		&invID, &subID, &status, &inv.Currency,
		&totalCents, &totalCurrency,
		&lineItems, &start, &end,
		&voidedAt, &inv.VoidReason,
		&metadata, &created,
	)
	if err != nil {
		return nil, err
	}
	inv.ID = invID
	inv.SubscriptionID = subID
	inv.Status = invoice.Status(status)
	inv.Total = types.Money{Amount: totalCents, Currency: totalCurrency}

	if err := json.Unmarshal([]byte(lineItems), &inv.LineItems); err != nil {
		return nil, fmt.Errorf("line_items: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &inv.Metadata); err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	if inv.PeriodStart, err = parseTime(start); err != nil {
		return nil, fmt.Errorf("period_start: %w", err)
	}
	if inv.PeriodEnd, err = parseTime(end); err != nil {
		return nil, fmt.Errorf("period_end: %w", err)
	}
	if inv.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	if voidedAt.Valid {
		t, err := parseTime(voidedAt.String)
		if err != nil {
			return nil, fmt.Errorf("voided_at: %w", err)
		}
		inv.VoidedAt = &t
	}
	return &inv, nil
}
