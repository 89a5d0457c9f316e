package hazard

import (
	"sync/atomic"
	"unsafe"
)

// hazardSlot is one published "I am dereferencing this" cell. Slots are
// never deallocated once allocated; Release only clears the pointer to nil
// so the slot can be reused by a later Protect call on the same thread.
type hazardSlot struct {
	ptr  unsafe.Pointer // atomic
	next unsafe.Pointer // *hazardSlot, atomic, append-only
}

// HazardPointer identifies a published hazard slot. It is returned by
// Protect and consumed by Release; callers must not inspect its fields.
type HazardPointer struct {
	slot *hazardSlot
}

type retiredEntry struct {
	ptr  unsafe.Pointer
	dtor func(unsafe.Pointer)
}

// ThreadHandle is a per-mutator record linked into the owning Registry's
// thread list so other threads can scan its published hazards. Exactly one
// goroutine should call Protect/Release/Retire/Unregister on a given
// handle; any goroutine may read it (via the registry) during a scan.
type ThreadHandle struct {
	registry *Registry
	next     unsafe.Pointer // *ThreadHandle, atomic, append-only
	active   atomic.Int32

	slots unsafe.Pointer // *hazardSlot, atomic, append-only lock-free list

	// retired is single-writer (the owning thread) single-reader (also the
	// owning thread, during a scan). No synchronization needed.
	retired []retiredEntry
}

// Unregister marks the handle inactive. It is not unlinked or freed: scans
// simply skip inactive handles, and their already-published slots are
// treated as empty of hazards.
func (t *ThreadHandle) Unregister() {
	t.active.Store(0)
}

// Protect publishes p into a free hazard slot (allocating one if none is
// free) with sequentially-consistent ordering — Go's sync/atomic operations
// are always sequentially consistent, satisfying the publish-then-reread
// fence required between Protect and the caller's re-verification load of
// the source pointer. p may be nil, but a slot holding nil reads as free,
// so it is not reserved: a later Protect on this thread can claim it.
func (t *ThreadHandle) Protect(p unsafe.Pointer) *HazardPointer {
	for slot := (*hazardSlot)(atomic.LoadPointer(&t.slots)); slot != nil; slot = (*hazardSlot)(atomic.LoadPointer(&slot.next)) {
		if atomic.CompareAndSwapPointer(&slot.ptr, nil, p) {
			return &HazardPointer{slot: slot}
		}
	}

	// No free slot: grow the list. The new slot already carries p, so it
	// is safe to publish before any other thread can observe it.
	slot := &hazardSlot{ptr: p}
	for {
		head := atomic.LoadPointer(&t.slots)
		slot.next = head
		if atomic.CompareAndSwapPointer(&t.slots, head, unsafe.Pointer(slot)) {
			break
		}
	}

	return &HazardPointer{slot: slot}
}

// Release clears a published hazard, making its slot reusable. It does not
// remove the slot from the thread's slot list.
func (t *ThreadHandle) Release(h *HazardPointer) {
	if h == nil || h.slot == nil {
		return
	}
	atomic.StorePointer(&h.slot.ptr, nil)
}

// Retire appends (p, dtor) to this thread's retired list and, once the list
// reaches the registry's reclaim threshold (or on every call when no
// threshold is configured), runs a scan that frees everything provably
// unreferenced by any active thread's hazard slots.
func (t *ThreadHandle) Retire(p unsafe.Pointer, dtor func(unsafe.Pointer)) error {
	if t == nil {
		return errNilThreadHandle("Retire")
	}
	if p == nil {
		return errNilPointer("Retire")
	}
	if dtor == nil {
		return errNilDestructor("Retire")
	}
	if t.active.Load() != 1 {
		return errThreadInactive("Retire")
	}

	t.retired = append(t.retired, retiredEntry{ptr: p, dtor: dtor})

	threshold := t.registry.reclaimThreshold
	if threshold == 0 || uint32(len(t.retired)) >= threshold {
		t.scan()
	}
	return nil
}
