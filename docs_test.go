package rebill_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/xraph/rebill"
	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/reconcile"
	"github.com/xraph/rebill/store/memory"
	"github.com/xraph/rebill/types"
)

// TestDocumentationExamples verifies that the package documentation examples
// compile and behave as described.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		engine := rebill.New(store,
			rebill.WithLogger(slog.Default()),
			rebill.WithWorkers(4),
		)

		ctx := context.Background()
		if err := engine.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer engine.Stop()

		subID := id.NewSubscriptionID()
		jan := rebill.MustInterval(rebill.Date(2014, 1, 1), rebill.Date(2014, 2, 1))
		tail := rebill.MustInterval(rebill.Date(2014, 1, 23), rebill.Date(2014, 2, 1))

		a := rebill.NewCharge(id.NewItemID(), jan, "pistol", "evergreen", rebill.USD(1200), rebill.USD(1200))
		a.SubscriptionID = subID
		if _, err := engine.RecordItems(ctx, a); err != nil {
			t.Fatal(err)
		}

		// The upgrade was charged without a repair, so the tail of January
		// was billed twice.
		b := rebill.NewCharge(id.NewItemID(), tail, "shotgun", "", rebill.USD(1485), rebill.USD(431))
		b.SubscriptionID = subID
		if _, err := engine.RecordItems(ctx, b); err != nil {
			t.Fatal(err)
		}

		res, err := engine.Reconcile(ctx, subID)
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Timeline) != 2 {
			t.Fatalf("expected 2 timeline items, got %d", len(res.Timeline))
		}

		inv, err := engine.Invoice(ctx, subID)
		if err != nil {
			t.Fatal(err)
		}
		if got := inv.Total.String(); got != "$-3.48" {
			t.Errorf("invoice total: got %s, want $-3.48", got)
		}

		// Once credited, there is nothing left to bill.
		again, err := engine.Invoice(ctx, subID)
		if err != nil {
			t.Fatal(err)
		}
		if again != nil {
			t.Errorf("expected no invoice, got total %s", again.Total)
		}
	})

	t.Run("ReconcilerExample", func(t *testing.T) {
		subID := id.NewSubscriptionID()
		jan := types.MustInterval(types.Date(2014, 1, 1), types.Date(2014, 2, 1))

		r := reconcile.New(subID)
		charge := types.USD(1200)
		if err := r.AddItem(rebill.NewCharge(id.NewItemID(), jan, "pistol", "evergreen", charge, charge)); err != nil {
			t.Fatal(err)
		}
		timeline, err := r.Build()
		if err != nil {
			t.Fatal(err)
		}
		if len(timeline) != 1 || !timeline[0].Amount.Equal(charge) {
			t.Errorf("unexpected timeline %v", timeline)
		}
	})

	t.Run("MoneyExamples", func(t *testing.T) {
		// Constructors
		_ = types.USD(4900)   // $49.00
		_ = types.EUR(9900)   // €99.00
		_ = types.Zero("usd") // $0.00

		// Arithmetic
		m1 := types.USD(100)
		m2 := types.USD(200)
		_ = m1.Add(m2)            // $3.00
		_ = m1.Subtract(m2)       // $-1.00
		_, _ = m1.Prorate(22, 31) // $0.71

		// Formatting
		if got := m1.String(); got != "$1.00" {
			t.Errorf("got %s", got)
		}
	})
}
