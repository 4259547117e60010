package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/invoice"
	"github.com/xraph/rebill/item"
	"github.com/xraph/rebill/types"
)

// ──────────────────────────────────────────────────
// Item model
// ──────────────────────────────────────────────────

const itemColumns = `id, kind, subscription_id, invoice_id, period_start, period_end,
amount_cents, amount_currency, plan_name, phase_name, rate_cents, rate_currency,
target_id, source_id, created_at`

type itemModel struct {
	ID             string
	Kind           string
	SubscriptionID string
	InvoiceID      *string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	AmountCents    int64
	AmountCurrency string
	PlanName       string
	PhaseName      string
	RateCents      int64
	RateCurrency   string
	TargetID       *string
	SourceID       *string
	CreatedAt      time.Time
}

func toItemModel(it item.Item) itemModel {
	return itemModel{
		ID:             it.ID.String(),
		Kind:           string(it.Kind),
		SubscriptionID: it.SubscriptionID.String(),
		InvoiceID:      optionalID(it.InvoiceID),
		PeriodStart:    it.Period.Start,
		PeriodEnd:      it.Period.End,
		AmountCents:    it.Amount.Amount,
		AmountCurrency: it.Amount.Currency,
		PlanName:       it.PlanName,
		PhaseName:      it.PhaseName,
		RateCents:      it.Rate.Amount,
		RateCurrency:   it.Rate.Currency,
		TargetID:       optionalID(it.TargetID),
		SourceID:       optionalID(it.SourceID),
		CreatedAt:      it.CreatedAt,
	}
}

func (m itemModel) args() []any {
	return []any{
		m.ID, m.Kind, m.SubscriptionID, m.InvoiceID, m.PeriodStart, m.PeriodEnd,
		m.AmountCents, m.AmountCurrency, m.PlanName, m.PhaseName, m.RateCents, m.RateCurrency,
		m.TargetID, m.SourceID, m.CreatedAt,
	}
}

func scanItemModel(row pgx.CollectableRow) (itemModel, error) {
	var m itemModel
	err := row.Scan(
		&m.ID, &m.Kind, &m.SubscriptionID, &m.InvoiceID, &m.PeriodStart, &m.PeriodEnd,
		&m.AmountCents, &m.AmountCurrency, &m.PlanName, &m.PhaseName, &m.RateCents, &m.RateCurrency,
		&m.TargetID, &m.SourceID, &m.CreatedAt,
	)
	return m, err
}

func fromItemModel(m itemModel) (item.Item, error) {
	var (
		it  item.Item
		err error
	)
	if it.ID, err = id.ParseItemID(m.ID); err != nil {
		return item.Item{}, err
	}
	if it.SubscriptionID, err = id.ParseSubscriptionID(m.SubscriptionID); err != nil {
		return item.Item{}, err
	}
	if it.InvoiceID, err = parseOptional(m.InvoiceID, id.PrefixInvoice); err != nil {
		return item.Item{}, err
	}
	if it.TargetID, err = parseOptional(m.TargetID, id.PrefixItem); err != nil {
		return item.Item{}, err
	}
	if it.SourceID, err = parseOptional(m.SourceID, id.PrefixItem); err != nil {
		return item.Item{}, err
	}
	it.Kind = item.Kind(m.Kind)
	it.Period = types.Interval{Start: m.PeriodStart.UTC(), End: m.PeriodEnd.UTC()}
	it.Amount = types.Money{Amount: m.AmountCents, Currency: m.AmountCurrency}
	it.PlanName = m.PlanName
	it.PhaseName = m.PhaseName
	it.Rate = types.Money{Amount: m.RateCents, Currency: m.RateCurrency}
	it.CreatedAt = m.CreatedAt.UTC()
	return it, nil
}

// ──────────────────────────────────────────────────
// Invoice model
// ──────────────────────────────────────────────────

const invoiceColumns = `id, subscription_id, status, currency, total_amount_cents, total_currency,
line_items, period_start, period_end, voided_at, void_reason, metadata, created_at`

type invoiceModel struct {
	ID               string
	SubscriptionID   string
	Status           string
	Currency         string
	TotalAmountCents int64
	TotalCurrency    string
	LineItems        []byte
	PeriodStart      time.Time
	PeriodEnd        time.Time
	VoidedAt         *time.Time
	VoidReason       string
	Metadata         []byte
	CreatedAt        time.Time
}

func toInvoiceModel(inv *invoice.Invoice) (invoiceModel, error) {
	lineItems, err := json.Marshal(inv.LineItems)
	if err != nil {
		return invoiceModel{}, fmt.Errorf("line_items: %w", err)
	}
	metadata, err := json.Marshal(inv.Metadata)
	if err != nil {
		return invoiceModel{}, fmt.Errorf("metadata: %w", err)
	}
	return invoiceModel{
		ID:               inv.ID.String(),
		SubscriptionID:   inv.SubscriptionID.String(),
		Status:           string(inv.Status),
		Currency:         inv.Currency,
		TotalAmountCents: inv.Total.Amount,
		TotalCurrency:    inv.Total.Currency,
		LineItems:        lineItems,
		PeriodStart:      inv.PeriodStart,
		PeriodEnd:        inv.PeriodEnd,
		VoidedAt:         inv.VoidedAt,
		VoidReason:       inv.VoidReason,
		Metadata:         metadata,
		CreatedAt:        inv.CreatedAt,
	}, nil
}

func (m invoiceModel) args() []any {
	return []any{
		m.ID, m.SubscriptionID, m.Status, m.Currency, m.TotalAmountCents, m.TotalCurrency,
		m.LineItems, m.PeriodStart, m.PeriodEnd, m.VoidedAt, m.VoidReason, m.Metadata, m.CreatedAt,
	}
}

func scanInvoiceModel(row pgx.CollectableRow) (invoiceModel, error) {
	var m invoiceModel
	err := row.Scan(
		&m.ID, &m.SubscriptionID, &m.Status, &m.Currency, &m.TotalAmountCents, &m.TotalCurrency,
		&m.LineItems, &m.PeriodStart, &m.PeriodEnd, &m.VoidedAt, &m.VoidReason, &m.Metadata, &m.CreatedAt,
	)
	return m, err
}

func fromInvoiceModel(m invoiceModel) (*invoice.Invoice, error) {
	invID, err := id.ParseInvoiceID(m.ID)
	if err != nil {
		return nil, err
	}
	subID, err := id.ParseSubscriptionID(m.SubscriptionID)
	if err != nil {
		return nil, err
	}

	inv := &invoice.Invoice{
		ID:             invID,
		SubscriptionID: subID,
		Status:         invoice.Status(m.Status),
		Currency:       m.Currency,
		Total:          types.Money{Amount: m.TotalAmountCents, Currency: m.TotalCurrency},
		PeriodStart:    m.PeriodStart.UTC(),
		PeriodEnd:      m.PeriodEnd.UTC(),
		VoidedAt:       m.VoidedAt,
		VoidReason:     m.VoidReason,
		CreatedAt:      m.CreatedAt.UTC(),
	}
	if err := json.Unmarshal(m.LineItems, &inv.LineItems); err != nil {
		return nil, fmt.Errorf("line_items: %w", err)
	}
	if err := json.Unmarshal(m.Metadata, &inv.Metadata); err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	return inv, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func optionalID(i id.ID) *string {
	if i.IsNil() {
		return nil
	}
	s := i.String()
	return &s
}

func parseOptional(s *string, prefix id.Prefix) (id.ID, error) {
	if s == nil || *s == "" {
		return id.Nil, nil
	}
	return id.ParseWithPrefix(*s, prefix)
}
