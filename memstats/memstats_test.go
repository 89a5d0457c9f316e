package memstats

import "testing"

func TestCounters(t *testing.T) {
	Reset()

	RecordAlloc()
	RecordAlloc()
	RecordRetire()
	RecordReclaim()
	RecordFree()

	allocs, frees := GetAllocStats()
	if allocs != 2 {
		t.Errorf("expected 2 allocs, got %d", allocs)
	}
	if frees != 1 {
		t.Errorf("expected 1 free, got %d", frees)
	}

	retires, reclaims := GetReclaimStats()
	if retires != 1 {
		t.Errorf("expected 1 retire, got %d", retires)
	}
	if reclaims != 1 {
		t.Errorf("expected 1 reclaim, got %d", reclaims)
	}
}

func TestReset(t *testing.T) {
	RecordAlloc()
	Reset()

	allocs, frees := GetAllocStats()
	if allocs != 0 || frees != 0 {
		t.Errorf("expected zeroed counters after Reset, got allocs=%d frees=%d", allocs, frees)
	}
}
