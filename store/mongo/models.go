package mongo

import (
	"time"

	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/invoice"
	"github.com/xraph/rebill/item"
	"github.com/xraph/rebill/types"
)

// ==================== Item models ====================

type itemModel struct {
	ID             string    `bson:"_id"`
	Kind           string    `bson:"kind"`
	SubscriptionID string    `bson:"subscription_id"`
	InvoiceID      string    `bson:"invoice_id,omitempty"`
	PeriodStart    time.Time `bson:"period_start"`
	PeriodEnd      time.Time `bson:"period_end"`
	AmountCents    int64     `bson:"amount_cents"`
	AmountCurrency string    `bson:"amount_currency"`
	PlanName       string    `bson:"plan_name,omitempty"`
	PhaseName      string    `bson:"phase_name,omitempty"`
	RateCents      int64     `bson:"rate_cents"`
	RateCurrency   string    `bson:"rate_currency"`
	TargetID       string    `bson:"target_id,omitempty"`
	SourceID       string    `bson:"source_id,omitempty"`
	CreatedAt      time.Time `bson:"created_at"`
}

func toItemModel(it item.Item) *itemModel {
	return &itemModel{
		ID:             it.ID.String(),
		Kind:           string(it.Kind),
		SubscriptionID: it.SubscriptionID.String(),
		InvoiceID:      it.InvoiceID.String(),
		PeriodStart:    it.Period.Start,
		PeriodEnd:      it.Period.End,
		AmountCents:    it.Amount.Amount,
		AmountCurrency: it.Amount.Currency,
		PlanName:       it.PlanName,
		PhaseName:      it.PhaseName,
		RateCents:      it.Rate.Amount,
		RateCurrency:   it.Rate.Currency,
		TargetID:       it.TargetID.String(),
		SourceID:       it.SourceID.String(),
		CreatedAt:      it.CreatedAt,
	}
}

func fromItemModel(m *itemModel) (item.Item, error) {
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

// ==================== Invoice models ====================

type invoiceModel struct {
	ID               string            `bson:"_id"`
	SubscriptionID   string            `bson:"subscription_id"`
	Status           string            `bson:"status"`
	Currency         string            `bson:"currency"`
	TotalAmountCents int64             `bson:"total_amount_cents"`
	TotalCurrency    string            `bson:"total_currency"`
	LineItems        []lineItemModel   `bson:"line_items"`
	PeriodStart      time.Time         `bson:"period_start"`
	PeriodEnd        time.Time         `bson:"period_end"`
	VoidedAt         *time.Time        `bson:"voided_at,omitempty"`
	VoidReason       string            `bson:"void_reason"`
	Metadata         map[string]string `bson:"metadata,omitempty"`
	CreatedAt        time.Time         `bson:"created_at"`
}

type lineItemModel struct {
	ID             string    `bson:"id"`
	InvoiceID      string    `bson:"invoice_id"`
	ItemID         string    `bson:"item_id,omitempty"`
	SourceID       string    `bson:"source_id,omitempty"`
	Type           string    `bson:"type"`
	Description    string    `bson:"description"`
	PeriodStart    time.Time `bson:"period_start"`
	PeriodEnd      time.Time `bson:"period_end"`
	AmountCents    int64     `bson:"amount_cents"`
	AmountCurrency string    `bson:"amount_currency"`
}

func toInvoiceModel(inv *invoice.Invoice) *invoiceModel {
	lines := make([]lineItemModel, len(inv.LineItems))
	for i, li := range inv.LineItems {
		lines[i] = lineItemModel{
			ID:             li.ID.String(),
			InvoiceID:      li.InvoiceID.String(),
			ItemID:         li.ItemID.String(),
			SourceID:       li.SourceID.String(),
			Type:           string(li.Type),
			Description:    li.Description,
			PeriodStart:    li.Period.Start,
			PeriodEnd:      li.Period.End,
			AmountCents:    li.Amount.Amount,
			AmountCurrency: li.Amount.Currency,
		}
	}
	return &invoiceModel{
		ID:               inv.ID.String(),
		SubscriptionID:   inv.SubscriptionID.String(),
		Status:           string(inv.Status),
		Currency:         inv.Currency,
		TotalAmountCents: inv.Total.Amount,
		TotalCurrency:    inv.Total.Currency,
		LineItems:        lines,
		PeriodStart:      inv.PeriodStart,
		PeriodEnd:        inv.PeriodEnd,
		VoidedAt:         inv.VoidedAt,
		VoidReason:       inv.VoidReason,
		Metadata:         inv.Metadata,
		CreatedAt:        inv.CreatedAt,
	}
}

func fromInvoiceModel(m *invoiceModel) (*invoice.Invoice, error) {
	invID, err := id.ParseInvoiceID(m.ID)
	if err != nil {
		return nil, err
	}
	subID, err := id.ParseSubscriptionID(m.SubscriptionID)
	if err != nil {
		return nil, err
	}

	lines := make([]invoice.LineItem, len(m.LineItems))
	for i, lm := range m.LineItems {
		li := invoice.LineItem{
			Type:        invoice.LineItemType(lm.Type),
			Description: lm.Description,
			Period:      types.Interval{Start: lm.PeriodStart.UTC(), End: lm.PeriodEnd.UTC()},
			Amount:      types.Money{Amount: lm.AmountCents, Currency: lm.AmountCurrency},
		}
		if li.ID, err = parseOptional(lm.ID, id.PrefixLineItem); err != nil {
			return nil, err
		}
		if li.InvoiceID, err = parseOptional(lm.InvoiceID, id.PrefixInvoice); err != nil {
			return nil, err
		}
		if li.ItemID, err = parseOptional(lm.ItemID, id.PrefixItem); err != nil {
			return nil, err
		}
		if li.SourceID, err = parseOptional(lm.SourceID, id.PrefixItem); err != nil {
			return nil, err
		}
		lines[i] = li
	}

	inv := &invoice.Invoice{
		ID:             invID,
		SubscriptionID: subID,
		Status:         invoice.Status(m.Status),
		Currency:       m.Currency,
		Total:          types.Money{Amount: m.TotalAmountCents, Currency: m.TotalCurrency},
		LineItems:      lines,
		PeriodStart:    m.PeriodStart.UTC(),
		PeriodEnd:      m.PeriodEnd.UTC(),
		VoidReason:     m.VoidReason,
		Metadata:       m.Metadata,
		CreatedAt:      m.CreatedAt.UTC(),
	}
	if m.VoidedAt != nil {
		t := m.VoidedAt.UTC()
		inv.VoidedAt = &t
	}
	return inv, nil
}

func parseOptional(s string, prefix id.Prefix) (id.ID, error) {
	if s == "" {
		return id.Nil, nil
	}
	return id.ParseWithPrefix(s, prefix)
}
