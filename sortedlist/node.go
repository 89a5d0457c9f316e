package sortedlist

import (
	"sync/atomic"
	"unsafe"

	"github.com/dcristoloveanu/clds/memstats"
)

// nodeRef is the packed (next, deleted) pair that plays the role of the
// spec's low-bit tagged pointer: deleted describes whether the node owning
// this ref (the node whose .next field holds it, or the list itself for the
// head link) is logically deleted. Instances are never mutated in place —
// every state transition allocates a fresh nodeRef and CASes the pointer to
// it, so identity comparison (this instance vs that instance) is equivalent
// to the C implementation's tagged-pointer value comparison.
type nodeRef[K any, V any] struct {
	next    *Node[K, V]
	deleted bool
}

func refDeleted[K any, V any](ref *nodeRef[K, V]) bool {
	if ref == nil {
		return false
	}
	return ref.deleted
}

// Node is one element of a List. Create one with List.NewNode; it is not
// part of any list until passed to Insert.
type Node[K any, V any] struct {
	next     unsafe.Pointer // *nodeRef[K, V], atomic
	key      K
	value    V
	refcount atomic.Int32
	cleanup  func(K, V)
}

func newNode[K any, V any](key K, value V, cleanup func(K, V)) *Node[K, V] {
	n := &Node[K, V]{key: key, value: value, cleanup: cleanup}
	n.refcount.Store(1)
	memstats.RecordAlloc()
	return n
}

func (n *Node[K, V]) loadNext() *nodeRef[K, V] {
	return (*nodeRef[K, V])(atomic.LoadPointer(&n.next))
}

func (n *Node[K, V]) casNext(old, new *nodeRef[K, V]) bool {
	return atomic.CompareAndSwapPointer(&n.next, unsafe.Pointer(old), unsafe.Pointer(new))
}

// Key returns the node's key.
func (n *Node[K, V]) Key() K { return n.key }

// Value returns the node's payload.
func (n *Node[K, V]) Value() V { return n.value }

// IncRef increments the node's reference count. Callers that obtained a
// Node from FindKey or RemoveByKey already own one reference; IncRef is for
// keeping additional independent references alive.
func (n *Node[K, V]) IncRef() {
	n.refcount.Add(1)
}

// Release decrements the reference count. At zero it runs the cleanup
// callback passed to NewNode, if any. This is also the function used as a
// retired node's destructor, so the same decrement pays for both "list
// membership" and any explicit references a caller took via FindKey /
// RemoveByKey.
func (n *Node[K, V]) Release() {
	if n.refcount.Add(-1) == 0 {
		if n.cleanup != nil {
			n.cleanup(n.key, n.value)
		}
		memstats.RecordFree()
	}
}
