package hazard

import (
	"sync/atomic"
	"unsafe"
)

// scan is the reclamation pass: collect every non-null hazard published by
// an active thread into a set, then free any of this thread's
// retired entries that are not in that set. Only the owning thread calls
// this, and only on its own retired list — remote threads are read-only
// here (their "active" flag and hazard slots), never mutated.
func (t *ThreadHandle) scan() {
	if len(t.retired) == 0 {
		return
	}

	hazards := make(map[unsafe.Pointer]struct{}, len(t.retired))
	for th := (*ThreadHandle)(atomic.LoadPointer(&t.registry.head)); th != nil; th = (*ThreadHandle)(atomic.LoadPointer(&th.next)) {
		if th.active.Load() != 1 {
			continue
		}
		for slot := (*hazardSlot)(atomic.LoadPointer(&th.slots)); slot != nil; slot = (*hazardSlot)(atomic.LoadPointer(&slot.next)) {
			if p := atomic.LoadPointer(&slot.ptr); p != nil {
				hazards[p] = struct{}{}
			}
		}
	}

	kept := t.retired[:0]
	for _, entry := range t.retired {
		if _, stillHazardous := hazards[entry.ptr]; stillHazardous {
			kept = append(kept, entry)
			continue
		}
		entry.dtor(entry.ptr)
	}
	t.retired = kept
	if len(kept) > 0 {
		t.registry.logger.Debug("scan left retired entries behind", "count", len(kept))
	}
}
