// Package res enforces a global no-block heap budget: code that loops
// while holding a spinlock (a page-table lock during a user copy, a
// buffer-cache lock during readahead) must charge each iteration
// against this budget instead of calling the heap allocator directly,
// since the allocator itself may need to block.
package res

import "sync/atomic"

// budget is the number of heap bytes currently reserved against future
// no-block allocation. It starts at capacity and is restored only by
// Reset; nothing in the kernel calls Reset on a timer tick.
var budget int64

// Capacity is the total no-block budget available per tick.
const Capacity = 1 << 20

func init() { budget = Capacity }

// Resadd_noblock tries to charge n bytes against the budget without
// blocking, reporting whether it succeeded.
func Resadd_noblock(n int) bool {
	if atomic.AddInt64(&budget, -int64(n)) >= 0 {
		return true
	}
	atomic.AddInt64(&budget, int64(n))
	return false
}

// Reset replenishes the budget to full capacity.
func Reset() {
	atomic.StoreInt64(&budget, Capacity)
}
