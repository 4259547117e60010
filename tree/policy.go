package tree

import "github.com/xraph/rebill/types"

// Policy decides what Insert does at its two extension points.
type Policy[T any] interface {
	// OnExistingNode is called when the incoming interval equals an existing
	// node's. Returning true replaces the existing payload with incoming;
	// false keeps the existing node and drops the incoming one. The policy
	// may fold incoming into the existing payload before returning false.
	OnExistingNode(t *Tree[T], existing NodeID, incoming T) bool

	// ShouldInsertNode gates insertion before the tree is searched.
	ShouldInsertNode(iv types.Interval, payload T) bool
}

// PolicyFuncs adapts plain functions to Policy. A nil OnExisting keeps the
// existing node; a nil ShouldInsert admits everything.
type PolicyFuncs[T any] struct {
	OnExisting   func(t *Tree[T], existing NodeID, incoming T) bool
	ShouldInsert func(iv types.Interval, payload T) bool
}

// OnExistingNode implements Policy.
func (p PolicyFuncs[T]) OnExistingNode(t *Tree[T], existing NodeID, incoming T) bool {
	if p.OnExisting == nil {
		return false
	}
	return p.OnExisting(t, existing, incoming)
}

// ShouldInsertNode implements Policy.
func (p PolicyFuncs[T]) ShouldInsertNode(iv types.Interval, payload T) bool {
	if p.ShouldInsert == nil {
		return true
	}
	return p.ShouldInsert(iv, payload)
}

// KeepExisting is the first-wins policy: collisions keep the node already
// in the tree and every node passes the gate.
func KeepExisting[T any]() Policy[T] { return PolicyFuncs[T]{} }

// ReplaceExisting is the last-wins policy: collisions swap in the incoming
// payload and the existing children stay where they are.
func ReplaceExisting[T any]() Policy[T] {
	return PolicyFuncs[T]{
		OnExisting: func(*Tree[T], NodeID, T) bool { return true },
	}
}
