// Copyright (c) 2016 Couchbase, Inc.
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file
// except in compliance with the License. You may obtain a copy of the License at
//   http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software distributed under the
// License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND,
// either express or implied. See the License for the specific language governing permissions
// and limitations under the License.

// Package memstats tracks node allocation and reclamation counters for the
// hazard-pointer-managed data structures in this module. Nodes are ordinary
// Go-GC'd allocations; there is no off-heap allocator to wrap, so this
// package exists purely to make the "every node_create has exactly one
// cleanup_fn invocation" property mechanically assertable in tests.
package memstats

import (
	"fmt"
	"sync/atomic"
)

// Debug enables collection of allocation/retire counters. Disabling it
// avoids the extra atomic traffic on hot paths that don't need the stats.
var Debug = true

var (
	nodeAllocs   uint64
	nodeFrees    uint64
	nodeRetires  uint64
	nodeReclaims uint64
)

// RecordAlloc marks that a node was created.
func RecordAlloc() {
	if Debug {
		atomic.AddUint64(&nodeAllocs, 1)
	}
}

// RecordFree marks that a node's storage was released after its refcount
// reached zero.
func RecordFree() {
	if Debug {
		atomic.AddUint64(&nodeFrees, 1)
	}
}

// RecordRetire marks that a node was handed to the hazard-pointer
// reclamation path.
func RecordRetire() {
	if Debug {
		atomic.AddUint64(&nodeRetires, 1)
	}
}

// RecordReclaim marks that a retired node was proven hazard-free and its
// destructor ran.
func RecordReclaim() {
	if Debug {
		atomic.AddUint64(&nodeReclaims, 1)
	}
}

// GetAllocStats returns the number of nodes created and the number of nodes
// whose storage has been released.
func GetAllocStats() (allocs uint64, frees uint64) {
	return atomic.LoadUint64(&nodeAllocs), atomic.LoadUint64(&nodeFrees)
}

// GetReclaimStats returns the number of nodes retired and the number
// reclaimed (destructor invoked) so far.
func GetReclaimStats() (retires uint64, reclaims uint64) {
	return atomic.LoadUint64(&nodeRetires), atomic.LoadUint64(&nodeReclaims)
}

// Reset zeroes all counters. Intended for test isolation between cases that
// share the package-level counters.
func Reset() {
	atomic.StoreUint64(&nodeAllocs, 0)
	atomic.StoreUint64(&nodeFrees, 0)
	atomic.StoreUint64(&nodeRetires, 0)
	atomic.StoreUint64(&nodeReclaims, 0)
}

// String renders the current counters for diagnostics.
func String() string {
	allocs, frees := GetAllocStats()
	retires, reclaims := GetReclaimStats()
	return fmt.Sprintf("---- memstats ----\nallocs=%d frees=%d retires=%d reclaims=%d\n",
		allocs, frees, retires, reclaims)
}
