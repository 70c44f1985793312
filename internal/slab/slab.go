// Package slab implements the kernel heap: a set of fixed-size-class
// freelists backed by whole physical pages, plus a big-allocation path
// that hands out contiguous multi-page runs directly from the page
// allocator for allocations larger than the largest size class.
package slab

import (
	"sync"
	"unsafe"

	"keelos/internal/mem"
)

// sizeClasses are the supported allocation sizes in bytes. An
// allocation request is rounded up to the smallest class that fits.
var sizeClasses = []int{16, 32, 64, 128, 256, 512, 1024, 2048}

const bigThreshold = 2048

// freeObj threads a class's free objects through their own storage,
// the way an allocated slab object has nothing else to hold a link.
type freeObj struct {
	next *freeObj
}

// slabPage tracks one physical page carved into same-size objects for
// a class, so the page can be returned to the allocator once every
// object cut from it is free again.
type slabPage struct {
	pa   mem.Pa_t
	live int
}

type class_t struct {
	sync.Mutex
	size  int
	free  *freeObj
	pages map[uintptr]*slabPage // keyed by the page's dmap'd base address
}

// Allocator is a kernel heap instance. The kernel keeps exactly one
// global instance, Heap; Alloc and Free always use it.
type Allocator struct {
	classes []*class_t
}

// NewAllocator builds an allocator over the given size classes.
func NewAllocator() *Allocator {
	a := &Allocator{}
	for _, sz := range sizeClasses {
		a.classes = append(a.classes, &class_t{size: sz})
	}
	return a
}

// Heap is the kernel's global allocator instance.
var Heap = NewAllocator()

func classFor(n int) (*class_t, bool) {
	for _, c := range Heap.classes {
		if n <= c.size {
			return c, true
		}
	}
	return nil, false
}

// pageBase rounds a dmap'd address down to its containing page, the
// way a slab object's page is recovered without needing a header
// stashed inside memory the caller owns.
func pageBase(addr uintptr) uintptr {
	return addr &^ uintptr(mem.PGSIZE-1)
}

// Alloc returns n bytes of zeroed kernel memory, or nil if the page
// allocator is exhausted.
func Alloc(n int) []byte {
	if n <= 0 {
		return nil
	}
	if n > bigThreshold {
		return allocBig(n)
	}
	c, ok := classFor(n)
	if !ok {
		return allocBig(n)
	}
	c.Lock()
	defer c.Unlock()
	if c.free == nil {
		if !c.refill() {
			return nil
		}
	}
	obj := c.free
	c.free = obj.next
	if sp := c.pages[pageBase(uintptr(unsafe.Pointer(obj)))]; sp != nil {
		sp.live++
	}
	buf := (*[1 << 20]byte)(unsafe.Pointer(obj))[:c.size:c.size]
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

// refill carves a freshly allocated page into c.size-byte objects,
// pushing them onto the class freelist. Caller holds c's lock.
func (c *class_t) refill() bool {
	pg, p_pg, ok := mem.Physmem.Refpg_new_nozero()
	if !ok {
		return false
	}
	if c.pages == nil {
		c.pages = map[uintptr]*slabPage{}
	}
	base := uintptr(unsafe.Pointer(pg))
	c.pages[base] = &slabPage{pa: p_pg}
	bpg := mem.Pg2bytes(pg)
	n := mem.PGSIZE / c.size
	for i := 0; i < n; i++ {
		off := i * c.size
		obj := (*freeObj)(unsafe.Pointer(&bpg[off]))
		obj.next = c.free
		c.free = obj
	}
	return true
}

// releasePage drops every freelist entry carved from the page at base
// (it is about to stop existing) and returns the physical page to the
// allocator. Caller holds c's lock.
func (c *class_t) releasePage(base uintptr, sp *slabPage) {
	var kept *freeObj
	for cur := c.free; cur != nil; {
		next := cur.next
		if pageBase(uintptr(unsafe.Pointer(cur))) != base {
			cur.next = kept
			kept = cur
		}
		cur = next
	}
	c.free = kept
	delete(c.pages, base)
	mem.Physmem.Refdown(sp.pa)
}

// Free returns a slice previously returned by Alloc to its class
// freelist, releasing the backing page once every object cut from it
// has been freed. The caller must pass back the exact length it was
// given.
func Free(b []byte) {
	if b == nil {
		return
	}
	n := cap(b)
	if n > bigThreshold {
		freeBig(b)
		return
	}
	c, ok := classFor(n)
	if !ok {
		freeBig(b)
		return
	}
	c.Lock()
	defer c.Unlock()
	addr := uintptr(unsafe.Pointer(&b[0]))
	obj := (*freeObj)(unsafe.Pointer(&b[0]))
	obj.next = c.free
	c.free = obj
	base := pageBase(addr)
	if sp := c.pages[base]; sp != nil {
		sp.live--
		if sp.live <= 0 {
			c.releasePage(base, sp)
		}
	}
}

// Realloc resizes the allocation at b to newSize bytes, preserving its
// content up to the smaller of the old and new sizes: in place if the
// existing slot already fits, else alloc+copy+free.
func Realloc(b []byte, newSize int) []byte {
	if newSize <= 0 {
		Free(b)
		return nil
	}
	if b == nil {
		return Alloc(newSize)
	}
	if newSize <= cap(b) {
		return b[:newSize]
	}
	nb := Alloc(newSize)
	if nb == nil {
		return nil
	}
	copy(nb, b)
	Free(b)
	return nb
}

// bigAlloc tracks the physical pages backing an over-threshold
// allocation so Free can return them directly to the page allocator.
type bigAlloc struct {
	pa     mem.Pa_t
	npages int
}

var bigMu sync.Mutex
var bigAllocs = map[uintptr]bigAlloc{}

// allocBig hands out a run of physically contiguous pages, viewed
// directly through the direct map: the bytes the caller reads and
// writes are the same bytes backing the physical pages, so a kernel
// consumer that needs the physical address of a big allocation (e.g.
// for DMA) can recover it via Physmem.Dmap_v2p on the returned slice.
func allocBig(n int) []byte {
	npages := mem.Roundup(n, mem.PGSIZE) / mem.PGSIZE
	p_pg, ok := mem.Physmem.Refpg_new_contig(npages)
	if !ok {
		return nil
	}
	buf := mem.Dmaplen(p_pg, npages*mem.PGSIZE)[:n:npages*mem.PGSIZE]
	bigMu.Lock()
	bigAllocs[uintptr(unsafe.Pointer(&buf[0]))] = bigAlloc{pa: p_pg, npages: npages}
	bigMu.Unlock()
	return buf
}

func freeBig(b []byte) {
	key := uintptr(unsafe.Pointer(&b[0]))
	bigMu.Lock()
	ba, ok := bigAllocs[key]
	delete(bigAllocs, key)
	bigMu.Unlock()
	if !ok {
		return
	}
	for i := 0; i < ba.npages; i++ {
		mem.Physmem.Refdown(ba.pa + mem.Pa_t(i*mem.PGSIZE))
	}
}
