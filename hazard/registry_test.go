package hazard

import (
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"
)

func TestProtectReleaseReusesSlot(t *testing.T) {
	r := NewRegistry(Config{})
	th := r.Register()
	defer th.Unregister()

	var x, y int
	h1 := th.Protect(unsafe.Pointer(&x))
	th.Release(h1)

	h2 := th.Protect(unsafe.Pointer(&y))
	if h2.slot != h1.slot {
		t.Errorf("expected Release to make the slot reusable, got a different slot")
	}
}

func TestRetireWithZeroThresholdScansImmediately(t *testing.T) {
	r := NewRegistry(Config{})
	th := r.Register()
	defer th.Unregister()

	var freed int32
	var v int
	if err := th.Retire(unsafe.Pointer(&v), func(unsafe.Pointer) {
		atomic.AddInt32(&freed, 1)
	}); err != nil {
		t.Fatalf("Retire failed: %v", err)
	}

	if freed != 1 {
		t.Errorf("expected immediate reclaim with zero threshold, freed=%d", freed)
	}
}

func TestRetireRespectsThreshold(t *testing.T) {
	r := NewRegistry(Config{ReclaimThreshold: 3})
	th := r.Register()
	defer th.Unregister()

	var freed int32
	vals := make([]int, 5)
	for i := range vals {
		if err := th.Retire(unsafe.Pointer(&vals[i]), func(unsafe.Pointer) {
			atomic.AddInt32(&freed, 1)
		}); err != nil {
			t.Fatalf("Retire failed: %v", err)
		}
	}

	if freed != 3 {
		t.Errorf("expected a scan after reaching the threshold to reclaim 3, got %d", freed)
	}
}

func TestHazardProtectedNodeIsNotReclaimed(t *testing.T) {
	r := NewRegistry(Config{})
	writer := r.Register()
	reader := r.Register()
	defer writer.Unregister()
	defer reader.Unregister()

	var v int
	hp := reader.Protect(unsafe.Pointer(&v))

	var freed int32
	if err := writer.Retire(unsafe.Pointer(&v), func(unsafe.Pointer) {
		atomic.AddInt32(&freed, 1)
	}); err != nil {
		t.Fatalf("Retire failed: %v", err)
	}

	if freed != 0 {
		t.Errorf("expected reclaim to be deferred while a hazard protects the node, freed=%d", freed)
	}

	reader.Release(hp)
	// A later retire triggers another scan (zero threshold) that should now
	// find the earlier entry reclaimable too.
	var other int
	_ = writer.Retire(unsafe.Pointer(&other), func(unsafe.Pointer) {
		atomic.AddInt32(&freed, 1)
	})

	if freed != 2 {
		t.Errorf("expected both entries reclaimed once the hazard was released, freed=%d", freed)
	}
}

func TestUnregisteredThreadSkippedByScan(t *testing.T) {
	r := NewRegistry(Config{})
	writer := r.Register()
	reader := r.Register()
	defer writer.Unregister()

	var v int
	hp := reader.Protect(unsafe.Pointer(&v))
	reader.Unregister() // reader goes away without releasing hp

	var freed int32
	_ = writer.Retire(unsafe.Pointer(&v), func(unsafe.Pointer) {
		atomic.AddInt32(&freed, 1)
	})

	_ = hp
	if freed != 1 {
		t.Errorf("expected reclaim once the protecting thread is inactive, freed=%d", freed)
	}
}

func TestCloseDrainsRemainingRetiredEntries(t *testing.T) {
	r := NewRegistry(Config{ReclaimThreshold: 1000})
	th := r.Register()

	var freed int32
	var v int
	_ = th.Retire(unsafe.Pointer(&v), func(unsafe.Pointer) {
		atomic.AddInt32(&freed, 1)
	})
	th.Unregister()

	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if freed != 1 {
		t.Errorf("expected Close to drain leftover retired entries defensively, freed=%d", freed)
	}
}

func TestConcurrentRegisterProtectRetire(t *testing.T) {
	r := NewRegistry(Config{})
	const goroutines = 8
	const perGoroutine = 500

	var wg sync.WaitGroup
	var totalFreed int64
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			th := r.Register()
			defer th.Unregister()

			vals := make([]int, perGoroutine)
			for i := range vals {
				hp := th.Protect(unsafe.Pointer(&vals[i]))
				th.Release(hp)
				_ = th.Retire(unsafe.Pointer(&vals[i]), func(unsafe.Pointer) {
					atomic.AddInt64(&totalFreed, 1)
				})
			}
		}()
	}
	wg.Wait()

	if totalFreed != goroutines*perGoroutine {
		t.Errorf("expected %d reclaims, got %d", goroutines*perGoroutine, totalFreed)
	}
}
