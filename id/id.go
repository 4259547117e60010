// Package id defines TypeID-based identifiers for rebill entities.
//
// Every identifier carries a prefix naming what it points at, so a Repair's
// target ("item_...") cannot be confused with the subscription it belongs to
// ("sub_..."). IDs are K-sortable (UUIDv7) and URL-safe.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

const (
	PrefixSubscription Prefix = "sub"  // Subscription being reconciled
	PrefixItem         Prefix = "item" // Charge or Repair billing item
	PrefixInvoice      Prefix = "inv"  // Invoice an item was billed on
	PrefixLineItem     Prefix = "li"   // Rendered invoice line
	PrefixRun          Prefix = "rcn"  // One reconciliation pass
)

// ID wraps a TypeID. The zero value is Nil.
//
//nolint:recvcheck // value receivers for reads, pointer receivers for decoding.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// Aliases that document intent at call sites.
type (
	SubscriptionID = ID
	ItemID         = ID
	InvoiceID      = ID
	LineItemID     = ID
	RunID          = ID
)

// New generates an ID with the given prefix. It panics on an invalid prefix.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

func NewSubscriptionID() ID { return New(PrefixSubscription) }
func NewItemID() ID         { return New(PrefixItem) }
func NewInvoiceID() ID      { return New(PrefixInvoice) }
func NewLineItemID() ID     { return New(PrefixLineItem) }
func NewRunID() ID          { return New(PrefixRun) }

// Parse parses "prefix_suffix" into an ID.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and checks its prefix.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}
	return parsed, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}
	return parsed
}

func ParseSubscriptionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixSubscription) }
func ParseItemID(s string) (ID, error)         { return ParseWithPrefix(s, PrefixItem) }
func ParseInvoiceID(s string) (ID, error)      { return ParseWithPrefix(s, PrefixInvoice) }

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the prefix component.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether i is the zero value.
func (i ID) IsNil() bool { return !i.valid }

// Compare orders IDs by their string form, which is K-sortable by creation
// time. Nil sorts first.
func (i ID) Compare(o ID) int {
	a, b := i.String(), o.String()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input yields Nil.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer; Nil stores as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // NULL for optional references
	}
	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
