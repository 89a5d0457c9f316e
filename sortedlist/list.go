// Copyright (c) 2016 Couchbase, Inc.
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
// except in compliance with the License. You may obtain a copy of the License at
//   http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software distributed under the
// License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// either express or implied. See the License for the specific language governing permissions
// and limitations under the License.

// Package sortedlist implements a lock-free sorted singly-linked list using
// the Harris/Michael marked-pointer deletion technique, with node lifetimes
// guarded by hazard pointers from package hazard.
package sortedlist

import (
	"sync/atomic"
	"unsafe"

	"github.com/dcristoloveanu/clds/hazard"
	"github.com/dcristoloveanu/clds/memstats"
)

// Compare orders keys with the same three-way contract as bytes.Compare:
// negative if a < b, zero if equal, positive if a > b.
type Compare[K any] func(a, b K) int

// Config configures a List.
type Config[K any, V any] struct {
	// Compare orders keys. Required.
	Compare Compare[K]

	// Logger receives diagnostic events. Defaults to a no-op.
	Logger hazard.Logger
}

// List is a lock-free sorted singly-linked list keyed by K, with node
// lifetimes guarded by hazard pointers from registry. The zero value is not
// usable; construct with NewList.
type List[K any, V any] struct {
	head     unsafe.Pointer // *nodeRef[K, V], atomic
	registry *hazard.Registry
	compare  Compare[K]
	logger   hazard.Logger
}

// NewList creates an empty sorted list. registry must already exist and
// outlive the list; cfg.Compare is required.
func NewList[K any, V any](registry *hazard.Registry, cfg Config[K, V]) (*List[K, V], error) {
	if registry == nil {
		return nil, errNilRegistry()
	}
	if cfg.Compare == nil {
		return nil, errNilCompare()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = hazard.NoOpLogger{}
	}

	return &List[K, V]{registry: registry, compare: cfg.Compare, logger: logger}, nil
}

// NewNode allocates a node with the given key, value, and optional cleanup
// callback (run once, when the node's reference count reaches zero). The
// node is not part of any list until passed to Insert.
func (l *List[K, V]) NewNode(key K, value V, cleanup func(K, V)) *Node[K, V] {
	return newNode[K, V](key, value, cleanup)
}

func (l *List[K, V]) loadHead() *nodeRef[K, V] {
	return (*nodeRef[K, V])(atomic.LoadPointer(&l.head))
}

func (l *List[K, V]) casHead(old, new *nodeRef[K, V]) bool {
	return atomic.CompareAndSwapPointer(&l.head, unsafe.Pointer(old), unsafe.Pointer(new))
}

func (l *List[K, V]) retireNode(th *hazard.ThreadHandle, n *Node[K, V]) {
	memstats.RecordRetire()
	_ = th.Retire(unsafe.Pointer(n), func(p unsafe.Pointer) {
		memstats.RecordReclaim()
		(*Node[K, V])(p).Release()
	})
}

// Close tears down the list. Precondition: no concurrent mutator is using
// it. Remaining nodes are released (their cleanup callback runs if their
// reference count reaches zero as a result).
func (l *List[K, V]) Close() {
	ref := l.loadHead()
	for ref != nil && ref.next != nil {
		node := ref.next
		ref = node.loadNext()
		node.Release()
	}
	atomic.StorePointer(&l.head, nil)
}

// window is the result of a traversal: the (prev, curr) pair find
// maintains, plus enough state to CAS at exactly the link the walk stopped
// at without re-deriving it.
type window[K any, V any] struct {
	prev    *Node[K, V]
	prevHP  *hazard.HazardPointer
	prevRef *nodeRef[K, V]

	curr    *Node[K, V]
	currHP  *hazard.HazardPointer
	currRef *nodeRef[K, V]

	loadLink func() *nodeRef[K, V]
	casLink  func(old, new *nodeRef[K, V]) bool

	found bool
}

func (w *window[K, V]) release(th *hazard.ThreadHandle) {
	if w.prevHP != nil {
		th.Release(w.prevHP)
	}
	if w.currHP != nil {
		th.Release(w.currHP)
	}
}

// find runs the traversal: maintains (prev, curr) from the head,
// publishing each visited node into a hazard slot before dereferencing it
// and re-verifying the source link afterward (the hazard-pointer
// double-load pattern), cooperating in physical removal of any logically
// deleted node it passes over. On return, either found is true and
// curr/currHP/currRef name the matching node, or curr names the first node
// with a greater key (nil at list end) and prev/prevRef/loadLink/casLink
// name the insertion point.
func (l *List[K, V]) find(th *hazard.ThreadHandle, key K) window[K, V] {
	var prev *Node[K, V]
	var prevHP *hazard.HazardPointer
	loadLink := l.loadHead
	casLink := l.casHead

restart:
	for {
		ref := loadLink()
		if refDeleted(ref) {
			// prev was logically deleted after we stepped onto it; its link
			// must not be CASed any more, so restart from head.
			if prevHP != nil {
				th.Release(prevHP)
			}
			prev, prevHP = nil, nil
			loadLink, casLink = l.loadHead, l.casHead
			goto restart
		}
		var curr *Node[K, V]
		if ref != nil {
			curr = ref.next
		}
		if curr == nil {
			return window[K, V]{prev: prev, prevHP: prevHP, prevRef: ref, loadLink: loadLink, casLink: casLink}
		}

		currHP := th.Protect(unsafe.Pointer(curr))
		if loadLink() != ref {
			// prevLink changed between our load and the hazard publish;
			// curr's memory is no longer provably safe to dereference.
			th.Release(currHP)
			if prevHP != nil {
				th.Release(prevHP)
			}
			prev, prevHP = nil, nil
			loadLink, casLink = l.loadHead, l.casHead
			goto restart
		}

		currNext := curr.loadNext()
		if currNext.deleted {
			// curr is logically dead: help physically unlink it, then
			// restart the whole walk from head.
			newRef := &nodeRef[K, V]{next: currNext.next, deleted: refDeleted(ref)}
			if casLink(ref, newRef) {
				l.retireNode(th, curr)
			}
			th.Release(currHP)
			if prevHP != nil {
				th.Release(prevHP)
			}
			prev, prevHP = nil, nil
			loadLink, casLink = l.loadHead, l.casHead
			goto restart
		}

		switch cmp := l.compare(curr.key, key); {
		case cmp == 0:
			return window[K, V]{
				prev: prev, prevHP: prevHP, prevRef: ref,
				curr: curr, currHP: currHP, currRef: currNext,
				loadLink: loadLink, casLink: casLink, found: true,
			}
		case cmp < 0:
			if prevHP != nil {
				th.Release(prevHP)
			}
			prev = curr
			prevHP = currHP
			loadLink = curr.loadNext
			casLink = curr.casNext
		default:
			th.Release(currHP)
			return window[K, V]{prev: prev, prevHP: prevHP, prevRef: ref, curr: curr, loadLink: loadLink, casLink: casLink}
		}
	}
}

// Insert links node into the list at its sorted position.
func (l *List[K, V]) Insert(th *hazard.ThreadHandle, node *Node[K, V]) (InsertResult, error) {
	if th == nil {
		return InsertError, errNilThreadHandle("Insert")
	}
	if node == nil {
		return InsertError, errNilNode("Insert")
	}

	for {
		win := l.find(th, node.key)
		if win.found {
			win.release(th)
			return InsertKeyAlreadyExists, nil
		}

		atomic.StorePointer(&node.next, unsafe.Pointer(&nodeRef[K, V]{next: win.curr}))
		newRef := &nodeRef[K, V]{next: node, deleted: refDeleted(win.prevRef)}
		ok := win.casLink(win.prevRef, newRef)
		win.release(th)
		if ok {
			return InsertOK, nil
		}
		l.logger.Debug("insert lost race, retrying", "key", node.key)
	}
}

// tryDelete performs the two-phase mark-then-unlink on an already-found
// window. ok reports whether the physical unlink succeeded here;
// phase1Failed reports that curr.next changed before the logical-delete CAS
// could land, meaning nothing happened and the caller should restart its
// own traversal (a fresh one, not just this step).
func (l *List[K, V]) tryDelete(th *hazard.ThreadHandle, win *window[K, V]) (ok bool, phase1Failed bool) {
	marked := &nodeRef[K, V]{next: win.currRef.next, deleted: true}
	if !win.curr.casNext(win.currRef, marked) {
		return false, true
	}

	newPrevRef := &nodeRef[K, V]{next: marked.next, deleted: refDeleted(win.prevRef)}
	if win.casLink(win.prevRef, newPrevRef) {
		// Drop this thread's own hazard on curr first, so that the scan the
		// retire may trigger is not held back by it.
		th.Release(win.currHP)
		win.currHP = nil
		l.retireNode(th, win.curr)
		return true, false
	}

	// Phase 2 lost the race — prev changed (most likely it was itself
	// logically deleted). The mark set in phase 1 stands; a later
	// traversal (ours or someone else's) will finish the unlink.
	return false, false
}

// DeleteByKey logically and then physically removes the live node with the
// given key, if any.
func (l *List[K, V]) DeleteByKey(th *hazard.ThreadHandle, key K) (DeleteResult, error) {
	if th == nil {
		return DeleteError, errNilThreadHandle("DeleteByKey")
	}

	for {
		win := l.find(th, key)
		if !win.found {
			win.release(th)
			return DeleteNotFound, nil
		}

		ok, phase1Failed := l.tryDelete(th, &win)
		win.release(th)
		if phase1Failed {
			continue
		}
		if !ok {
			// Phase 2 lost the race, but the phase 1 mark already deleted
			// the node; a fresh walk over it finishes the unlink.
			w := l.find(th, key)
			w.release(th)
		}
		return DeleteOK, nil
	}
}

// DeleteByNode removes node specifically: a key match alone is not enough,
// since the key may have been deleted and reinserted under a different
// node since the caller obtained it.
func (l *List[K, V]) DeleteByNode(th *hazard.ThreadHandle, node *Node[K, V]) (DeleteResult, error) {
	if th == nil {
		return DeleteError, errNilThreadHandle("DeleteByNode")
	}
	if node == nil {
		return DeleteError, errNilNode("DeleteByNode")
	}

	for {
		win := l.find(th, node.key)
		if !win.found || win.curr != node {
			win.release(th)
			return DeleteNotFound, nil
		}

		ok, phase1Failed := l.tryDelete(th, &win)
		win.release(th)
		if phase1Failed {
			continue
		}
		if !ok {
			w := l.find(th, node.key)
			w.release(th)
		}
		return DeleteOK, nil
	}
}

// RemoveByKey removes the live node with the given key and returns it with
// its reference count bumped, transferring ownership to the caller. The
// caller must eventually call Node.Release.
func (l *List[K, V]) RemoveByKey(th *hazard.ThreadHandle, key K) (*Node[K, V], RemoveResult, error) {
	if th == nil {
		return nil, RemoveError, errNilThreadHandle("RemoveByKey")
	}

	for {
		win := l.find(th, key)
		if !win.found {
			win.release(th)
			return nil, RemoveNotFound, nil
		}

		node := win.curr
		// Take the caller's reference before the delete can retire the node.
		node.IncRef()
		ok, phase1Failed := l.tryDelete(th, &win)
		if phase1Failed {
			node.Release()
		}
		win.release(th)
		if phase1Failed {
			continue
		}
		if !ok {
			w := l.find(th, key)
			w.release(th)
		}
		return node, RemoveOK, nil
	}
}

// FindKey returns the live node with the given key, with its reference
// count bumped, or (nil, false) if absent. The caller must eventually call
// Node.Release. FindKey walks the list with the same traversal as the
// mutators, so it does help physically unlink marked-deleted nodes it meets
// on the way; it is not a read-only walk.
func (l *List[K, V]) FindKey(th *hazard.ThreadHandle, key K) (*Node[K, V], bool, error) {
	if th == nil {
		return nil, false, errNilThreadHandle("FindKey")
	}

	win := l.find(th, key)
	if !win.found {
		win.release(th)
		return nil, false, nil
	}

	win.curr.IncRef()
	win.release(th)
	return win.curr, true, nil
}

// Stats returns a human-readable dump of the module-wide allocation and
// reclamation counters (shared across every List and Registry in the
// process), for diagnostics and tests.
func (l *List[K, V]) Stats() string {
	return memstats.String()
}

// Keys returns every live key in ascending order. It is not linearizable
// with concurrent mutation — intended for tests and diagnostics, where the
// caller already knows the list is quiescent or tolerates a snapshot.
func (l *List[K, V]) Keys() []K {
	var keys []K
	ref := l.loadHead()
	for ref != nil && ref.next != nil {
		node := ref.next
		ref = node.loadNext()
		if !refDeleted(ref) {
			keys = append(keys, node.key)
		}
	}
	return keys
}
