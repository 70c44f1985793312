package mem

import "unsafe"

// Virtual address layout, expressed as PML4 slot indices (bits 47:39
// of the virtual address). VUSER and up are reserved for user space.
const (
	VREC    int = 0x42
	VDIRECT int = 0x44
	VEND    int = 0x50
	VUSER   int = 0x59
)

// USERMIN is the lowest valid user-space virtual address.
const USERMIN int = VUSER << 39

// DMAPLEN is the length in bytes of the direct-mapped region.
const DMAPLEN int = 1 << 39

// Vdirect is the virtual base address of the direct map. SetDirectBase
// is called once during boot once the loader's page tables (or this
// kernel's own, once it takes over) have the HHDM region mapped.
var Vdirect = uintptr(VDIRECT) << 39

// SetDirectBase overrides the direct-map base, for loaders (e.g. a
// Limine-style boot protocol) that place the HHDM at a different slot
// than this kernel's own page tables would choose.
func SetDirectBase(base uintptr) {
	Vdirect = base
	Physmem.Dmapinit = true
}

// Dmap converts a physical address into its direct-mapped virtual
// address, returned as a page pointer.
func (phys *Physmem_t) Dmap(p Pa_t) *Pg_t {
	if uintptr(p) >= 1<<39 {
		panic("direct map not large enough")
	}
	v := Vdirect + uintptr(Rounddown(int(p), PGSIZE))
	return (*Pg_t)(unsafe.Pointer(v))
}

// Dmap_v2p converts a direct-mapped virtual address back to physical.
func (phys *Physmem_t) Dmap_v2p(v *Pg_t) Pa_t {
	va := uintptr(unsafe.Pointer(v))
	if va < Vdirect {
		panic("address isn't in the direct map")
	}
	return Pa_t(va - Vdirect)
}

// Dmap8 returns a byte slice view of the page containing p, starting
// at p's in-page offset.
func (phys *Physmem_t) Dmap8(p Pa_t) []uint8 {
	pg := phys.Dmap(p)
	off := p & PGOFFSET
	bpg := Pg2bytes(pg)
	return bpg[off:]
}

// Dmaplen returns a byte slice over the direct map spanning [p, p+l).
func Dmaplen(p Pa_t, l int) []uint8 {
	dmap := (*[DMAPLEN]uint8)(unsafe.Pointer(Vdirect))
	return dmap[p : p+Pa_t(l)]
}

// pgbits splits a virtual address into its four page-table indices
// (pml4, pdpt, pd, pt), each 9 bits wide.
func pgbits(v uint) (uint, uint, uint, uint) {
	shl := func(c uint) uint { return 12 + 9*c }
	lb := func(c uint) uint { return (v >> shl(c)) & 0x1ff }
	return lb(3), lb(2), lb(1), lb(0)
}

// Kent_t records one kernel PML4 entry that must be replicated into
// every address space (direct map, recursive slot, kernel text/data).
type Kent_t struct {
	Pml4slot int
	Entry    Pa_t
}

// Kents holds every kernel PML4 entry, populated during boot.
var Kents = make([]Kent_t, 0, 8)
