package reconcile_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/item"
	"github.com/xraph/rebill/reconcile"
	"github.com/xraph/rebill/tree"
	"github.com/xraph/rebill/types"
)

var (
	sub   = id.NewSubscriptionID()
	epoch = time.Date(2014, 3, 1, 0, 0, 0, 0, time.UTC)
	seq   int
)

func period(start, end string) types.Interval {
	s, err := types.ParseDate(start)
	if err != nil {
		panic(err)
	}
	e, err := types.ParseDate(end)
	if err != nil {
		panic(err)
	}
	return types.Interval{Start: s, End: e}
}

// stamp gives each fixture a distinct, increasing creation time.
func stamp(it item.Item) item.Item {
	seq++
	it.SubscriptionID = sub
	it.CreatedAt = epoch.Add(time.Duration(seq) * time.Minute)
	return it
}

func charge(p types.Interval, plan string, rate int64) item.Item {
	amount, err := types.USD(rate).Prorate(p.Days(), 31)
	if err != nil {
		panic(err)
	}
	return stamp(item.NewCharge(id.NewItemID(), p, plan, "evergreen", types.USD(rate), amount))
}

func repair(p types.Interval, amount int64, target item.Item) item.Item {
	return stamp(item.NewRepair(id.NewItemID(), p, types.USD(amount), target.ID))
}

func permutations(n int, fn func(order []int)) {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	var generate func(k int)
	generate = func(k int) {
		if k == 1 {
			fn(order)
			return
		}
		generate(k - 1)
		for i := 0; i < k-1; i++ {
			if k%2 == 0 {
				order[i], order[k-1] = order[k-1], order[i]
			} else {
				order[0], order[k-1] = order[k-1], order[0]
			}
			generate(k - 1)
		}
	}
	generate(n)
}

func build(t *testing.T, items []item.Item, order []int, opts ...reconcile.Option) []item.Item {
	t.Helper()
	r := reconcile.New(sub, opts...)
	for _, i := range order {
		require.NoError(t, r.AddItem(items[i]))
	}
	out, err := r.Build()
	require.NoError(t, err, "order %v", order)
	return out
}

// forEachOrder builds items in every insertion order and checks that all
// orders agree, returning the common timeline.
func forEachOrder(t *testing.T, items []item.Item) []item.Item {
	t.Helper()
	var want []item.Item
	permutations(len(items), func(order []int) {
		got := build(t, items, order)
		if want == nil {
			want = got
			return
		}
		require.Equal(t, want, got, "order %v", order)
	})
	return want
}

// requireTiles checks that the timeline is chronological and covers span
// without gaps or overlaps.
func requireTiles(t *testing.T, out []item.Item, span types.Interval) {
	t.Helper()
	require.NotEmpty(t, out)
	assert.Equal(t, span.Start, out[0].Period.Start)
	assert.Equal(t, span.End, out[len(out)-1].Period.End)
	for i := 1; i < len(out); i++ {
		assert.Equal(t, out[i-1].Period.End, out[i].Period.Start,
			"gap or overlap between %s and %s", out[i-1].Period, out[i].Period)
	}
}

func describe(out []item.Item) []string {
	s := make([]string, len(out))
	for i, it := range out {
		s[i] = fmt.Sprintf("%s%s %s", it.Kind, it.Period, it.Amount)
	}
	return s
}

// ──────────────────────────────────────────────────
// Scenarios
// ──────────────────────────────────────────────────

func TestSingleCharge(t *testing.T) {
	a := charge(period("2014-01-01", "2014-02-01"), "pistol", 1200)

	out := build(t, []item.Item{a}, []int{0})
	require.Len(t, out, 1)
	assert.Equal(t, a, out[0])
}

func TestSimpleRepair(t *testing.T) {
	a := charge(period("2014-01-01", "2014-02-01"), "pistol", 1200)
	b := charge(period("2014-01-23", "2014-02-01"), "shotgun", 1485)
	r := repair(period("2014-01-23", "2014-02-01"), -1200, a)

	out := forEachOrder(t, []item.Item{a, b, r})

	require.Len(t, out, 2)
	head := out[0]
	assert.Equal(t, period("2014-01-01", "2014-01-23"), head.Period)
	assert.Equal(t, "pistol", head.PlanName)
	assert.Equal(t, types.USD(1200), head.Rate)
	assert.Equal(t, types.USD(852), head.Amount)
	assert.Equal(t, a.ID, head.SourceID)
	assert.True(t, head.ID.IsNil())
	assert.Equal(t, b, out[1])
	requireTiles(t, out, a.Period)
}

func TestCascadingRepairs(t *testing.T) {
	a := charge(period("2014-01-01", "2014-02-01"), "pistol", 1200)
	r1 := repair(period("2014-01-10", "2014-02-01"), -852, a)
	b := charge(period("2014-01-10", "2014-02-01"), "shotgun", 1485)
	r2 := repair(period("2014-01-20", "2014-02-01"), -575, b)
	c := charge(period("2014-01-20", "2014-02-01"), "assault-rifle", 2495)

	out := forEachOrder(t, []item.Item{a, r1, b, r2, c})

	require.Len(t, out, 3)
	requireTiles(t, out, a.Period)
	assert.Equal(t, []types.Money{types.USD(1200), types.USD(1485), types.USD(2495)},
		[]types.Money{out[0].Rate, out[1].Rate, out[2].Rate})
	assert.Equal(t, a.ID, out[0].SourceID)
	assert.Equal(t, b.ID, out[1].SourceID)
	assert.Equal(t, c, out[2])
	for _, it := range out {
		assert.True(t, it.IsCharge())
	}
}

func TestCascadingRepairsThreeChanges(t *testing.T) {
	a := charge(period("2014-01-01", "2014-02-01"), "pistol", 1200)
	r1 := repair(period("2014-01-08", "2014-02-01"), -929, a)
	b := charge(period("2014-01-08", "2014-02-01"), "shotgun", 1485)
	r2 := repair(period("2014-01-15", "2014-02-01"), -814, b)
	c := charge(period("2014-01-15", "2014-02-01"), "assault-rifle", 2495)
	r3 := repair(period("2014-01-22", "2014-02-01"), -805, c)
	d := charge(period("2014-01-22", "2014-02-01"), "blowdart", 999)

	items := []item.Item{a, r1, b, r2, c, r3, d}
	out := forEachOrder(t, items)

	require.Len(t, out, 4)
	requireTiles(t, out, a.Period)
	assert.Equal(t, d, out[3])
}

func TestBlockedBilling(t *testing.T) {
	a := charge(period("2014-01-01", "2014-02-01"), "pistol", 1200)
	hole1 := repair(period("2014-01-08", "2014-01-10"), -77, a)
	hole2 := repair(period("2014-01-17", "2014-01-23"), -232, a)

	out := forEachOrder(t, []item.Item{a, hole1, hole2})

	assert.Equal(t, []string{
		"charge[2014-01-01,2014-01-08) $2.71",
		"repair[2014-01-08,2014-01-10) $-0.77",
		"charge[2014-01-10,2014-01-17) $2.71",
		"repair[2014-01-17,2014-01-23) $-2.32",
		"charge[2014-01-23,2014-02-01) $3.48",
	}, describe(out))
	assert.Equal(t, hole1, out[1])
	assert.Equal(t, hole2, out[3])
	requireTiles(t, out, a.Period)
}

func TestMalformedInterval(t *testing.T) {
	a := charge(period("2014-01-01", "2014-02-01"), "pistol", 1200)
	bad := a
	bad.ID = id.NewItemID()
	bad.Period = types.Interval{Start: types.Date(2014, 1, 10), End: types.Date(2014, 1, 5)}

	r := reconcile.New(sub)
	require.NoError(t, r.AddItem(a))
	err := r.AddItem(bad)
	require.ErrorIs(t, err, types.ErrInvalidInterval)
	assert.Equal(t, 1, r.Len())

	out, err := r.Build()
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, a.ID, out[0].ID)
}

// ──────────────────────────────────────────────────
// Resolution rules
// ──────────────────────────────────────────────────

func TestFullCancellation(t *testing.T) {
	a := charge(period("2014-01-01", "2014-02-01"), "pistol", 1200)
	r := repair(a.Period, -1200, a)

	out := forEachOrder(t, []item.Item{a, r})
	assert.Equal(t, []item.Item{r}, out)
}

func TestNewestLiveChargeWins(t *testing.T) {
	older := charge(period("2014-01-01", "2014-02-01"), "pistol", 1200)
	newer := charge(period("2014-01-01", "2014-02-01"), "shotgun", 1485)

	out := forEachOrder(t, []item.Item{newer, older})
	assert.Equal(t, []item.Item{newer}, out)
}

func TestRepairOfReplacementCharge(t *testing.T) {
	// The replacement Charge is itself cancelled over its whole range, so
	// the tail of the month is a hole.
	a := charge(period("2014-01-01", "2014-02-01"), "pistol", 1200)
	r1 := repair(period("2014-01-23", "2014-02-01"), -348, a)
	b := charge(period("2014-01-23", "2014-02-01"), "shotgun", 1485)
	r2 := repair(period("2014-01-23", "2014-02-01"), -431, b)

	out := forEachOrder(t, []item.Item{a, r1, b, r2})

	require.Len(t, out, 2)
	assert.Equal(t, a.ID, out[0].SourceID)
	assert.Equal(t, r2, out[1])
}

func TestRepairPassthrough(t *testing.T) {
	a := charge(period("2014-01-01", "2014-02-01"), "pistol", 1200)
	holes := []item.Item{
		repair(period("2014-01-02", "2014-01-03"), -39, a),
		repair(period("2014-01-05", "2014-01-06"), -39, a),
		repair(period("2014-01-30", "2014-02-01"), -77, a),
	}

	out := build(t, append([]item.Item{a}, holes...), []int{3, 1, 0, 2})

	for _, h := range holes {
		n := 0
		for _, it := range out {
			if it.ID == h.ID {
				assert.Equal(t, h, it)
				n++
			}
		}
		assert.Equal(t, 1, n, "repair %s", h.Period)
	}
	requireTiles(t, out, a.Period)
}

func TestAdjacentTopLevelCharges(t *testing.T) {
	jan := charge(period("2014-01-01", "2014-02-01"), "pistol", 1200)
	feb := charge(period("2014-02-01", "2014-03-01"), "pistol", 1200)
	r := repair(period("2014-02-15", "2014-03-01"), -600, feb)

	out := forEachOrder(t, []item.Item{feb, r, jan})

	require.Len(t, out, 3)
	assert.Equal(t, jan, out[0])
	assert.Equal(t, period("2014-02-01", "2014-02-15"), out[1].Period)
	assert.Equal(t, r, out[2])
	requireTiles(t, out, period("2014-01-01", "2014-03-01"))
}

// ──────────────────────────────────────────────────
// Failures and state
// ──────────────────────────────────────────────────

func TestOrphanRepair(t *testing.T) {
	a := charge(period("2014-01-01", "2014-02-01"), "pistol", 1200)
	ghost := charge(period("2014-01-01", "2014-02-01"), "ghost", 1200)
	r := repair(period("2014-01-10", "2014-01-12"), -77, ghost)

	rc := reconcile.New(sub)
	require.NoError(t, rc.AddItem(r))
	require.NoError(t, rc.AddItem(a))

	out, err := rc.Build()
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, reconcile.ErrInvalidBillingHistory)
	assert.ErrorIs(t, err, reconcile.ErrOrphanRepair)

	var oe *reconcile.OrphanRepairError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, r.ID, oe.RepairID)
	assert.Equal(t, ghost.ID, oe.TargetID)
}

func TestTopLevelRepairIsOrphan(t *testing.T) {
	a := charge(period("2014-01-01", "2014-02-01"), "pistol", 1200)
	r := repair(period("2014-02-10", "2014-02-12"), -77, a)

	rc := reconcile.New(sub)
	require.NoError(t, rc.AddItem(a))
	require.NoError(t, rc.AddItem(r))

	_, err := rc.Build()
	assert.ErrorIs(t, err, reconcile.ErrOrphanRepair)
}

func TestUnresolvableOverlap(t *testing.T) {
	a := charge(period("2014-01-01", "2014-01-20"), "pistol", 1200)
	b := charge(period("2014-01-10", "2014-02-01"), "shotgun", 1485)

	rc := reconcile.New(sub)
	require.NoError(t, rc.AddItem(a))
	require.NoError(t, rc.AddItem(b), "overlaps are reported by Build")

	out, err := rc.Build()
	assert.Nil(t, out)
	assert.ErrorIs(t, err, reconcile.ErrInvalidBillingHistory)
	assert.ErrorIs(t, err, tree.ErrUnresolvableOverlap)
}

func TestInvalidItem(t *testing.T) {
	a := charge(period("2014-01-01", "2014-02-01"), "pistol", 1200)
	untargeted := item.NewRepair(id.NewItemID(), a.Period, types.USD(-1200), id.Nil)
	foreign := a
	foreign.SubscriptionID = id.NewSubscriptionID()

	rc := reconcile.New(sub)
	assert.ErrorIs(t, rc.AddItem(untargeted), item.ErrInvalidItem)
	assert.ErrorIs(t, rc.AddItem(foreign), item.ErrInvalidItem)
	assert.Equal(t, 0, rc.Len())
}

func TestBuildIsTerminalAndIdempotent(t *testing.T) {
	a := charge(period("2014-01-01", "2014-02-01"), "pistol", 1200)
	hole := repair(period("2014-01-08", "2014-01-10"), -77, a)

	rc := reconcile.New(sub)
	require.NoError(t, rc.AddItem(a))
	require.NoError(t, rc.AddItem(hole))

	first, err := rc.Build()
	require.NoError(t, err)
	first[0].PlanName = "mutated"

	second, err := rc.Build()
	require.NoError(t, err)
	assert.Equal(t, "pistol", second[0].PlanName)
	assert.Len(t, second, len(first))

	assert.ErrorIs(t, rc.AddItem(a), reconcile.ErrReconcilerBuilt)
}

func TestFailedBuildIsCached(t *testing.T) {
	a := charge(period("2014-01-01", "2014-01-20"), "pistol", 1200)
	b := charge(period("2014-01-10", "2014-02-01"), "shotgun", 1485)

	rc := reconcile.New(sub)
	require.NoError(t, rc.AddItem(a))
	require.NoError(t, rc.AddItem(b))

	_, err1 := rc.Build()
	_, err2 := rc.Build()
	assert.Equal(t, err1, err2)
}

func TestAmountFunc(t *testing.T) {
	a := charge(period("2014-01-01", "2014-02-01"), "pistol", 1200)
	hole := repair(period("2014-01-08", "2014-01-10"), -77, a)

	var calls []types.Interval
	flat := func(it item.Item, sub types.Interval) (types.Money, error) {
		calls = append(calls, sub)
		return types.USD(100), nil
	}
	out := build(t, []item.Item{a, hole}, []int{0, 1}, reconcile.WithAmountFunc(flat))

	assert.Equal(t, []types.Interval{period("2014-01-01", "2014-01-08"), period("2014-01-10", "2014-02-01")}, calls)
	assert.Equal(t, types.USD(100), out[0].Amount)
	assert.Equal(t, types.USD(100), out[2].Amount)

	boom := errors.New("rate catalog unavailable")
	rc := reconcile.New(sub, reconcile.WithAmountFunc(func(item.Item, types.Interval) (types.Money, error) {
		return types.Money{}, boom
	}))
	require.NoError(t, rc.AddItem(a))
	require.NoError(t, rc.AddItem(hole))
	_, err := rc.Build()
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, reconcile.ErrInvalidBillingHistory)
}

func TestFirstWinsCollision(t *testing.T) {
	a := charge(period("2014-01-01", "2014-02-01"), "pistol", 1200)
	b := charge(period("2014-01-23", "2014-02-01"), "shotgun", 1485)
	r := repair(period("2014-01-23", "2014-02-01"), -348, a)

	// The Repair arrives first and shadows the replacement Charge.
	out := build(t, []item.Item{a, b, r}, []int{0, 2, 1}, reconcile.WithCollision(reconcile.CollisionFirstWins))
	require.Len(t, out, 2)
	assert.Equal(t, r, out[1])

	out = build(t, []item.Item{a, b, r}, []int{0, 1, 2}, reconcile.WithCollision(reconcile.CollisionLastWins))
	require.Len(t, out, 2)
	assert.Equal(t, r, out[1])
}

func TestParseCollision(t *testing.T) {
	tests := []struct {
		in   string
		want reconcile.Collision
		ok   bool
	}{
		{"", reconcile.CollisionMerge, true},
		{"merge", reconcile.CollisionMerge, true},
		{"first-wins", reconcile.CollisionFirstWins, true},
		{"last", reconcile.CollisionLastWins, true},
		{"random", reconcile.CollisionMerge, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := reconcile.ParseCollision(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestAbsorbedRepairIsNotEmitted(t *testing.T) {
	a := charge(period("2014-01-01", "2014-02-01"), "pistol", 1200)
	b := charge(period("2014-01-23", "2014-02-01"), "shotgun", 1485)
	r := repair(period("2014-01-23", "2014-02-01"), -348, a)
	hole := repair(period("2014-01-02", "2014-01-03"), -39, a)

	out := forEachOrder(t, []item.Item{a, b, r, hole})

	var repairs []id.ItemID
	for _, it := range out {
		if it.IsRepair() {
			repairs = append(repairs, it.ID)
		}
	}
	assert.Equal(t, []id.ItemID{hole.ID}, repairs, "the replaced range's repair is absorbed, the standing one is kept")
	requireTiles(t, out, a.Period)
}
