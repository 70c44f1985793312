// Package msi allocates message-signaled interrupt vectors to PCI
// devices (AHCI controllers, NICs) that request them instead of a
// legacy pin-based IRQ.
package msi

import "sync"

// Msivec_t identifies an MSI interrupt vector.
type Msivec_t uint

type msivecsT struct {
	sync.Mutex
	avail map[Msivec_t]bool
}

var msivecs = msivecsT{
	avail: map[Msivec_t]bool{
		56: true, 57: true, 58: true, 59: true,
		60: true, 61: true, 62: true, 63: true,
	},
}

// Alloc allocates an available MSI vector, panicking if none remain.
func Alloc() Msivec_t {
	msivecs.Lock()
	defer msivecs.Unlock()
	for v := range msivecs.avail {
		delete(msivecs.avail, v)
		return v
	}
	panic("no more MSI vectors")
}

// Free releases a previously allocated MSI vector.
func Free(v Msivec_t) {
	msivecs.Lock()
	defer msivecs.Unlock()
	if msivecs.avail[v] {
		panic("double free of MSI vector")
	}
	msivecs.avail[v] = true
}
