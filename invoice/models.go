package invoice

import (
	"time"

	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/types"
)

type Status string

const (
	StatusDraft   Status = "draft"
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusVoided  Status = "voided"
)

// Invoice collects the lines produced by one reconciliation pass.
type Invoice struct {
	ID             id.InvoiceID      `json:"id"`
	SubscriptionID id.SubscriptionID `json:"subscription_id"`
	Status         Status            `json:"status"`
	Currency       string            `json:"currency"`
	Total          types.Money       `json:"total"`
	LineItems      []LineItem        `json:"line_items"`
	PeriodStart    time.Time         `json:"period_start"`
	PeriodEnd      time.Time         `json:"period_end"`
	CreatedAt      time.Time         `json:"created_at"`
	VoidedAt       *time.Time        `json:"voided_at,omitempty"`
	VoidReason     string            `json:"void_reason,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type LineItem struct {
	ID          id.LineItemID  `json:"id"`
	InvoiceID   id.InvoiceID   `json:"invoice_id"`
	ItemID      id.ItemID      `json:"item_id"`
	SourceID    id.ItemID      `json:"source_id,omitempty"`
	Type        LineItemType   `json:"type"`
	Description string         `json:"description"`
	Period      types.Interval `json:"period"`
	Amount      types.Money    `json:"amount"`
}

type LineItemType string

const (
	LineItemCharge LineItemType = "charge"
	LineItemRepair LineItemType = "repair"
	// LineItemAdjustment settles a superseded Charge against what was
	// already billed for it.
	LineItemAdjustment LineItemType = "adjustment"
)
