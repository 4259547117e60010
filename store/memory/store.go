package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/xraph/rebill"
	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/invoice"
	"github.com/xraph/rebill/item"
	"github.com/xraph/rebill/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// History storage
	items     map[string]item.Item
	bySub     map[string][]string
	subsOrder []id.SubscriptionID

	// Invoice storage
	invoices map[string]*invoice.Invoice

	closed bool
}

func New() *Store {
	return &Store{
		items:    make(map[string]item.Item),
		bySub:    make(map[string][]string),
		invoices: make(map[string]*invoice.Invoice),
	}
}

// History Store implementation
func (s *Store) AppendItems(_ context.Context, items []item.Item) error {
	if err := store.CheckItems(items); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return rebill.ErrStoreClosed
	}
	for _, it := range items {
		if _, exists := s.items[it.ID.String()]; exists {
			return rebill.ErrAlreadyExists
		}
	}
	for _, it := range items {
		key := it.SubscriptionID.String()
		if _, ok := s.bySub[key]; !ok {
			s.subsOrder = append(s.subsOrder, it.SubscriptionID)
		}
		s.items[it.ID.String()] = it
		s.bySub[key] = append(s.bySub[key], it.ID.String())
	}
	return nil
}

func (s *Store) GetItem(_ context.Context, itemID id.ItemID) (*item.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if it, ok := s.items[itemID.String()]; ok {
		return &it, nil
	}
	return nil, rebill.ErrItemNotFound
}

func (s *Store) ListItems(_ context.Context, subID id.SubscriptionID) ([]item.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.bySub[subID.String()]
	result := make([]item.Item, 0, len(keys))
	for _, k := range keys {
		result = append(result, s.items[k])
	}
	store.SortHistory(result)
	return result, nil
}

func (s *Store) ListSubscriptions(_ context.Context) ([]id.SubscriptionID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.subsOrder), nil
}

// Invoice Store implementation
func (s *Store) CreateInvoice(_ context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invoices[inv.ID.String()]; exists {
		return rebill.ErrAlreadyExists
	}
	s.invoices[inv.ID.String()] = cloneInvoice(inv)
	return nil
}

func (s *Store) GetInvoice(_ context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if inv, ok := s.invoices[invID.String()]; ok {
		return cloneInvoice(inv), nil
	}
	return nil, rebill.ErrInvoiceNotFound
}

func (s *Store) ListInvoices(_ context.Context, subID id.SubscriptionID, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*invoice.Invoice, 0)
	for _, inv := range s.invoices {
		if inv.SubscriptionID == subID {
			if opts.Status == "" || inv.Status == opts.Status {
				result = append(result, cloneInvoice(inv))
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID.Compare(result[j].ID) < 0
	})
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) VoidInvoice(_ context.Context, invID id.InvoiceID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[invID.String()]
	if !ok {
		return rebill.ErrInvoiceNotFound
	}
	if inv.Status == invoice.StatusVoided {
		return rebill.ErrInvoiceVoided
	}
	inv.Status = invoice.StatusVoided
	now := time.Now().UTC()
	inv.VoidedAt = &now
	inv.VoidReason = reason
	return nil
}

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return rebill.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// Helper functions
func cloneInvoice(inv *invoice.Invoice) *invoice.Invoice {
	c := *inv
	c.LineItems = slices.Clone(inv.LineItems)
	c.Metadata = maps.Clone(inv.Metadata)
	if inv.VoidedAt != nil {
		t := *inv.VoidedAt
		c.VoidedAt = &t
	}
	return &c
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > len(items) {
		offset = len(items)
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
