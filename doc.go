// Package rebill reconciles a subscription's billing history into the
// timeline of what was actually billed.
//
// A subscription's history is a set of Charges, each billing a period at a
// plan, phase and price, and Repairs, each cancelling a sub-range of an
// earlier Charge when the subscription changed mid-period. Rebill nests
// every item by period in an interval tree and flattens it into a
// chronological list of non-overlapping items: surviving Charges, the
// Repairs that still stand, and prorated pieces of Charges that were only
// partly repaired.
//
// Rebill is designed as a library, not a service. It provides:
//
//   - Order-independent reconciliation of Charges and Repairs
//   - Prorated pieces with banker's rounding on integer minor units
//   - Invoices that settle replaced Charges against what was already billed
//   - Memory, SQLite, PostgreSQL and MongoDB history stores
//   - Plugin hooks for audit trails and metrics
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/rebill"
//	    "github.com/xraph/rebill/store/postgres"
//	)
//
//	s, err := postgres.Open(ctx, databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	engine := rebill.New(s)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Core Concepts
//
// Charges bill a period; Repairs cancel part of one:
//
//	jan := rebill.MustInterval(rebill.Date(2014, 1, 1), rebill.Date(2014, 2, 1))
//	tail := rebill.MustInterval(rebill.Date(2014, 1, 23), rebill.Date(2014, 2, 1))
//
//	a := rebill.NewCharge(id.NewItemID(), jan, "pistol", "evergreen", rebill.USD(1200), rebill.USD(1200))
//	r := rebill.NewRepair(id.NewItemID(), tail, rebill.USD(-348), a.ID)
//
// Recorded items count as billed. Reconcile rebuilds the timeline; Invoice
// bills, per replaced Charge, what its range is owed now less what history
// and earlier invoices billed for it:
//
//	res, err := engine.Reconcile(ctx, subID)
//	inv, err := engine.Invoice(ctx, subID)
//
// The reconcile package can also be used directly, without a store:
//
//	r := reconcile.New(subID)
//	for _, it := range history {
//	    if err := r.AddItem(it); err != nil {
//	        return err
//	    }
//	}
//	timeline, err := r.Build()
//
// All monetary calculations use integer arithmetic to avoid floating-point
// precision issues. The Money type represents amounts in the smallest currency
// unit (cents for USD, pence for GBP, etc).
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	sub_01h2xcejqtf2nbrexx3vqjhp41   // Subscription ID
//	item_01h2xcejqtf2nbrexx3vqjhp41  // Item ID
//	inv_01h455vb4pex5vsknk084sn02q   // Invoice ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package rebill
