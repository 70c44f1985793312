// Package bounds names the fixed heap cost charged against the
// no-block resource budget (see internal/res) by operations that loop
// while holding a spinlock, so a slow-path loop cannot starve the
// kernel heap out from under every other CPU.
package bounds

// Bound_t names one bounded operation.
type Bound_t int

// Named bounded operations. Values are the worst-case number of heap
// bytes one loop iteration may allocate.
const (
	B_ASPACE_T_K2USER_INNER Bound_t = iota
	B_ASPACE_T_USER2K_INNER
	B_BIO_BREAD
	B_EXT2_IALLOC
)

var costs = map[Bound_t]int{
	B_ASPACE_T_K2USER_INNER: 64,
	B_ASPACE_T_USER2K_INNER: 64,
	B_BIO_BREAD:             512,
	B_EXT2_IALLOC:           256,
}

// Bounds returns the heap-byte cost registered for b.
func Bounds(b Bound_t) int {
	c, ok := costs[b]
	if !ok {
		panic("unregistered bound")
	}
	return c
}
