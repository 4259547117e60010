// Package tree implements a containment tree of half-open time intervals.
//
// Nodes live in an arena and refer to each other by NodeID, so parent links
// are plain indices and the whole tree is dropped at once. Every child's
// interval lies within its parent's and siblings never overlap, though they
// may touch. The shape of the tree depends only on the set of intervals
// inserted, never on the order they arrived in: a node that arrives after
// nodes it contains adopts them, and a node that arrives inside an existing
// one descends into it.
package tree

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/xraph/rebill/types"
)

// ErrUnresolvableOverlap is returned when an interval partially overlaps an
// existing one and neither contains the other.
var ErrUnresolvableOverlap = errors.New("rebill: unresolvable interval overlap")

// OverlapError names the two intervals that could not be nested.
type OverlapError struct {
	Existing types.Interval
	Incoming types.Interval
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("rebill: unresolvable interval overlap: %s partially overlaps %s",
		e.Incoming, e.Existing)
}

// Is reports ErrUnresolvableOverlap.
func (e *OverlapError) Is(target error) bool { return target == ErrUnresolvableOverlap }

// NodeID addresses a node in the arena.
type NodeID int

const (
	// Root is the synthetic root. It has no interval and anchors top-level nodes.
	Root NodeID = 0
	// NoNode is returned when nothing was inserted.
	NoNode NodeID = -1
)

type node[T any] struct {
	interval types.Interval
	payload  T
	parent   NodeID
	children []NodeID // sorted by interval start
}

// Tree is an interval containment tree carrying a payload of type T per node.
// It is not safe for concurrent use.
type Tree[T any] struct {
	nodes []node[T]
}

// New returns a tree holding only the synthetic root.
func New[T any]() *Tree[T] {
	return &Tree[T]{nodes: []node[T]{{parent: NoNode}}}
}

// Insert places [iv] with payload into the tree and returns the node that
// now holds that interval.
//
// On an exact collision the policy decides: the existing node is kept (and
// its ID returned) or its payload is replaced while its children stay. When
// the policy gate rejects the node, NoNode is returned with a nil error.
// A partial overlap returns an *OverlapError and leaves the tree unchanged.
func (t *Tree[T]) Insert(iv types.Interval, payload T, p Policy[T]) (NodeID, error) {
	if err := iv.Validate(); err != nil {
		return NoNode, err
	}
	if p == nil {
		p = KeepExisting[T]()
	}
	if !p.ShouldInsertNode(iv, payload) {
		return NoNode, nil
	}

	parent := Root
	for {
		kids := t.nodes[parent].children
		lo, hi := t.span(kids, iv)

		if lo == hi {
			return t.attach(parent, lo, 0, iv, payload), nil
		}

		if hi-lo == 1 {
			c := kids[lo]
			civ := t.nodes[c].interval
			if civ.Equal(iv) {
				if p.OnExistingNode(t, c, payload) {
					t.nodes[c].payload = payload
				}
				return c, nil
			}
			if civ.StrictlyContains(iv) {
				parent = c
				continue
			}
		}

		// Every intersecting sibling must fit inside iv to be adopted.
		for _, c := range kids[lo:hi] {
			if !iv.Contains(t.nodes[c].interval) {
				return NoNode, &OverlapError{Existing: t.nodes[c].interval, Incoming: iv}
			}
		}
		return t.attach(parent, lo, hi-lo, iv, payload), nil
	}
}

// span returns the half-open index range of kids intersecting iv.
// Siblings are sorted and disjoint, so their ends are sorted too and the
// intersecting run is contiguous.
func (t *Tree[T]) span(kids []NodeID, iv types.Interval) (int, int) {
	lo := sort.Search(len(kids), func(i int) bool {
		return t.nodes[kids[i]].interval.End.After(iv.Start)
	})
	hi := lo + sort.Search(len(kids)-lo, func(i int) bool {
		return !t.nodes[kids[lo+i]].interval.Start.Before(iv.End)
	})
	return lo, hi
}

// attach creates a node under parent at position pos, adopting the n
// siblings currently at [pos, pos+n).
func (t *Tree[T]) attach(parent NodeID, pos, n int, iv types.Interval, payload T) NodeID {
	nid := NodeID(len(t.nodes))
	kids := t.nodes[parent].children

	adopted := slices.Clone(kids[pos : pos+n])
	for _, c := range adopted {
		t.nodes[c].parent = nid
	}
	t.nodes = append(t.nodes, node[T]{
		interval: iv,
		payload:  payload,
		parent:   parent,
		children: adopted,
	})

	next := make([]NodeID, 0, len(kids)-n+1)
	next = append(next, kids[:pos]...)
	next = append(next, nid)
	next = append(next, kids[pos+n:]...)
	t.nodes[parent].children = next
	return nid
}

// ──────────────────────────────────────────────────
// Inspection
// ──────────────────────────────────────────────────

// Len returns the number of nodes, excluding the root.
func (t *Tree[T]) Len() int { return len(t.nodes) - 1 }

// Interval returns the interval of n. The root's interval is zero.
func (t *Tree[T]) Interval(n NodeID) types.Interval { return t.nodes[n].interval }

// Payload returns the payload of n.
func (t *Tree[T]) Payload(n NodeID) T { return t.nodes[n].payload }

// SetPayload replaces the payload of n.
func (t *Tree[T]) SetPayload(n NodeID, payload T) { t.nodes[n].payload = payload }

// Parent returns the parent of n, or NoNode for the root.
func (t *Tree[T]) Parent(n NodeID) NodeID { return t.nodes[n].parent }

// Children returns a copy of n's children in start order.
func (t *Tree[T]) Children(n NodeID) []NodeID { return slices.Clone(t.nodes[n].children) }

// Walk visits every node except the root in pre-order, children in start
// order. Returning an error from fn stops the walk.
func (t *Tree[T]) Walk(fn func(n NodeID, depth int) error) error {
	var visit func(n NodeID, depth int) error
	visit = func(n NodeID, depth int) error {
		for _, c := range t.nodes[n].children {
			if err := fn(c, depth); err != nil {
				return err
			}
			if err := visit(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(Root, 0)
}

// Validate checks the containment and sibling invariants for every node.
func (t *Tree[T]) Validate() error {
	for i := range t.nodes {
		n := NodeID(i)
		kids := t.nodes[n].children
		for j, c := range kids {
			if t.nodes[c].parent != n {
				return fmt.Errorf("tree: node %d lists child %d whose parent is %d", n, c, t.nodes[c].parent)
			}
			civ := t.nodes[c].interval
			if n != Root && !t.nodes[n].interval.Contains(civ) {
				return fmt.Errorf("tree: child %s escapes parent %s", civ, t.nodes[n].interval)
			}
			if j > 0 {
				prev := t.nodes[kids[j-1]].interval
				if !prev.Before(civ) {
					return fmt.Errorf("tree: siblings %s and %s overlap or are out of order", prev, civ)
				}
			}
		}
	}
	return nil
}

// String renders the tree shape, one interval per line, indented by depth.
// Two trees built from the same interval set render identically.
func (t *Tree[T]) String() string {
	var b strings.Builder
	_ = t.Walk(func(n NodeID, depth int) error {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(t.nodes[n].interval.String())
		b.WriteByte('\n')
		return nil
	})
	return b.String()
}
