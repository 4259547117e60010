package tree

import (
	"errors"
	"testing"

	"github.com/xraph/rebill/types"
)

func iv(s, e string) types.Interval {
	start, err := types.ParseDate(s)
	if err != nil {
		panic(err)
	}
	end, err := types.ParseDate(e)
	if err != nil {
		panic(err)
	}
	return types.Interval{Start: start, End: end}
}

// permutations calls fn with every ordering of n indexes (Heap's algorithm).
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

func mustInsert(t *testing.T, tr *Tree[string], i types.Interval, payload string) NodeID {
	t.Helper()
	n, err := tr.Insert(i, payload, nil)
	if err != nil {
		t.Fatalf("insert %s: %v", i, err)
	}
	return n
}

func TestInsertCases(t *testing.T) {
	tests := []struct {
		name     string
		existing []types.Interval
		incoming types.Interval
		want     string
	}{
		{
			name:     "empty tree",
			incoming: iv("2014-01-01", "2014-02-01"),
			want:     "[2014-01-01,2014-02-01)\n",
		},
		{
			name:     "before sibling",
			existing: []types.Interval{iv("2014-02-01", "2014-03-01")},
			incoming: iv("2014-01-01", "2014-02-01"),
			want:     "[2014-01-01,2014-02-01)\n[2014-02-01,2014-03-01)\n",
		},
		{
			name:     "after last sibling",
			existing: []types.Interval{iv("2014-01-01", "2014-02-01")},
			incoming: iv("2014-03-01", "2014-04-01"),
			want:     "[2014-01-01,2014-02-01)\n[2014-03-01,2014-04-01)\n",
		},
		{
			name:     "between siblings",
			existing: []types.Interval{iv("2014-01-01", "2014-01-08"), iv("2014-01-10", "2014-01-17")},
			incoming: iv("2014-01-08", "2014-01-10"),
			want:     "[2014-01-01,2014-01-08)\n[2014-01-08,2014-01-10)\n[2014-01-10,2014-01-17)\n",
		},
		{
			name:     "descends into container",
			existing: []types.Interval{iv("2014-01-01", "2014-02-01")},
			incoming: iv("2014-01-08", "2014-01-10"),
			want:     "[2014-01-01,2014-02-01)\n  [2014-01-08,2014-01-10)\n",
		},
		{
			name:     "adopts contained siblings",
			existing: []types.Interval{iv("2014-01-08", "2014-01-10"), iv("2014-01-17", "2014-01-23"), iv("2014-03-01", "2014-04-01")},
			incoming: iv("2014-01-01", "2014-02-01"),
			want: "[2014-01-01,2014-02-01)\n  [2014-01-08,2014-01-10)\n  [2014-01-17,2014-01-23)\n" +
				"[2014-03-01,2014-04-01)\n",
		},
		{
			name:     "adopts at shared start",
			existing: []types.Interval{iv("2014-01-01", "2014-01-10")},
			incoming: iv("2014-01-01", "2014-02-01"),
			want:     "[2014-01-01,2014-02-01)\n  [2014-01-01,2014-01-10)\n",
		},
		{
			name:     "descends two levels",
			existing: []types.Interval{iv("2014-01-01", "2014-02-01"), iv("2014-01-10", "2014-02-01")},
			incoming: iv("2014-01-20", "2014-02-01"),
			want:     "[2014-01-01,2014-02-01)\n  [2014-01-10,2014-02-01)\n    [2014-01-20,2014-02-01)\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New[string]()
			for _, e := range tt.existing {
				mustInsert(t, tr, e, "existing")
			}
			mustInsert(t, tr, tt.incoming, "incoming")

			if got := tr.String(); got != tt.want {
				t.Errorf("got\n%s\nwant\n%s", got, tt.want)
			}
			if err := tr.Validate(); err != nil {
				t.Errorf("Validate: %v", err)
			}
		})
	}
}

func TestInsertPartialOverlapLeavesTreeUnchanged(t *testing.T) {
	tr := New[string]()
	mustInsert(t, tr, iv("2014-01-01", "2014-01-08"), "a")
	mustInsert(t, tr, iv("2014-01-10", "2014-01-20"), "b")
	before := tr.String()
	beforeLen := tr.Len()

	// Contains the first sibling but only half of the second: the first must
	// not be adopted before the second is found to overlap.
	_, err := tr.Insert(iv("2014-01-01", "2014-01-15"), "c", nil)
	if !errors.Is(err, ErrUnresolvableOverlap) {
		t.Fatalf("expected ErrUnresolvableOverlap, got %v", err)
	}
	var oe *OverlapError
	if !errors.As(err, &oe) {
		t.Fatalf("expected *OverlapError, got %T", err)
	}
	if !oe.Existing.Equal(iv("2014-01-10", "2014-01-20")) {
		t.Errorf("Existing: got %s", oe.Existing)
	}

	if got := tr.String(); got != before {
		t.Errorf("tree changed:\n%s\nwas\n%s", got, before)
	}
	if tr.Len() != beforeLen {
		t.Errorf("Len: got %d, want %d", tr.Len(), beforeLen)
	}
}

func TestInsertInvalidInterval(t *testing.T) {
	tr := New[string]()
	_, err := tr.Insert(iv("2014-01-10", "2014-01-05"), "bad", nil)
	if !errors.Is(err, types.ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
	if tr.Len() != 0 {
		t.Error("invalid interval must not be inserted")
	}
}

func TestOrderIndependence(t *testing.T) {
	set := []types.Interval{
		iv("2014-01-01", "2014-02-01"),
		iv("2014-01-08", "2014-01-10"),
		iv("2014-01-17", "2014-02-01"),
		iv("2014-01-20", "2014-01-23"),
		iv("2014-01-20", "2014-01-21"),
		iv("2014-02-01", "2014-03-01"),
	}

	var want string
	permutations(len(set), func(order []int) {
		tr := New[int]()
		for _, i := range order {
			if _, err := tr.Insert(set[i], i, nil); err != nil {
				t.Fatalf("order %v: %v", order, err)
			}
		}
		if err := tr.Validate(); err != nil {
			t.Fatalf("order %v: %v", order, err)
		}
		got := tr.String()
		if want == "" {
			want = got
			return
		}
		if got != want {
			t.Fatalf("order %v produced\n%s\nwant\n%s", order, got, want)
		}
	})
}

func TestPayloadsFollowIntervals(t *testing.T) {
	set := []types.Interval{
		iv("2014-01-01", "2014-02-01"),
		iv("2014-01-10", "2014-02-01"),
		iv("2014-01-20", "2014-02-01"),
	}

	permutations(len(set), func(order []int) {
		tr := New[int]()
		for _, i := range order {
			if _, err := tr.Insert(set[i], i, nil); err != nil {
				t.Fatal(err)
			}
		}
		_ = tr.Walk(func(n NodeID, depth int) error {
			if got := tr.Payload(n); got != depth {
				t.Errorf("order %v: node %s at depth %d has payload %d", order, tr.Interval(n), depth, got)
			}
			return nil
		})
	})
}

func TestCollisionPolicies(t *testing.T) {
	month := iv("2014-01-01", "2014-02-01")
	inner := iv("2014-01-08", "2014-01-10")

	t.Run("keep existing", func(t *testing.T) {
		tr := New[string]()
		first := mustInsert(t, tr, month, "first")
		got, err := tr.Insert(month, "second", KeepExisting[string]())
		if err != nil {
			t.Fatal(err)
		}
		if got != first || tr.Payload(first) != "first" || tr.Len() != 1 {
			t.Errorf("expected the first node to win, got payload %q", tr.Payload(got))
		}
	})

	t.Run("replace existing keeps children", func(t *testing.T) {
		tr := New[string]()
		first := mustInsert(t, tr, month, "first")
		mustInsert(t, tr, inner, "child")
		got, err := tr.Insert(month, "second", ReplaceExisting[string]())
		if err != nil {
			t.Fatal(err)
		}
		if got != first || tr.Payload(first) != "second" {
			t.Errorf("expected replacement, got payload %q", tr.Payload(got))
		}
		if kids := tr.Children(first); len(kids) != 1 || tr.Payload(kids[0]) != "child" {
			t.Errorf("children not inherited: %v", kids)
		}
	})

	t.Run("merge into existing", func(t *testing.T) {
		tr := New[[]string]()
		merge := PolicyFuncs[[]string]{
			OnExisting: func(tr *Tree[[]string], existing NodeID, incoming []string) bool {
				tr.SetPayload(existing, append(tr.Payload(existing), incoming...))
				return false
			},
		}
		n, _ := tr.Insert(month, []string{"a"}, merge)
		_, _ = tr.Insert(month, []string{"b"}, merge)
		if got := tr.Payload(n); len(got) != 2 || got[0] != "a" || got[1] != "b" {
			t.Errorf("got %v", got)
		}
	})

	t.Run("gate rejects", func(t *testing.T) {
		tr := New[string]()
		gate := PolicyFuncs[string]{
			ShouldInsert: func(_ types.Interval, payload string) bool { return payload != "skip" },
		}
		n, err := tr.Insert(month, "skip", gate)
		if err != nil || n != NoNode || tr.Len() != 0 {
			t.Errorf("expected rejection, got node %d err %v", n, err)
		}
	})
}

func TestParentLinks(t *testing.T) {
	tr := New[string]()
	inner := mustInsert(t, tr, iv("2014-01-08", "2014-01-10"), "inner")
	outer := mustInsert(t, tr, iv("2014-01-01", "2014-02-01"), "outer")

	if tr.Parent(inner) != outer {
		t.Errorf("inner parent: got %d, want %d", tr.Parent(inner), outer)
	}
	if tr.Parent(outer) != Root {
		t.Errorf("outer parent: got %d, want root", tr.Parent(outer))
	}
	if tr.Parent(Root) != NoNode {
		t.Error("root has no parent")
	}
}
