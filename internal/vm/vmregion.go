// Package vm implements per-process virtual address spaces: the VMA
// list, the 4-level page table walker, fork's eager page copy, and the
// user<->kernel copy helpers every syscall argument goes through.
package vm

import (
	"sort"

	"keelos/internal/fdops"
	"keelos/internal/mem"
)

type mtype_t int

const (
	vmAnon mtype_t = iota
	vmFile
)

// Vminfo_t describes one mapped region of a process's address space:
// an anonymous (zero-fill) region or a file-backed mapping.
type Vminfo_t struct {
	Start  uintptr
	Len    int
	Perms  mem.Pa_t
	Mtype  mtype_t
	Fops   fdops.Fdops_i
	Foff   int
	Shared bool
}

// End returns the exclusive end address of the region.
func (vmi *Vminfo_t) End() uintptr { return vmi.Start + uintptr(vmi.Len) }

// Ptefor walks (allocating intermediate levels as needed) the page
// table rooted at pmap to the PTE for virtual address uva, creating
// the mapping's hierarchy but not the leaf page itself.
func (vmi *Vminfo_t) Ptefor(pmap *mem.Pmap_t, uva uintptr) (*mem.Pa_t, bool) {
	return pteWalk(pmap, uva, true)
}

// Vmregion_t is the ordered, non-overlapping list of a process's VMAs.
type Vmregion_t struct {
	regions []*Vminfo_t
}

// Add inserts a new region, panicking if it overlaps an existing one.
func (vr *Vmregion_t) Add(vmi *Vminfo_t) {
	for _, o := range vr.regions {
		if vmi.Start < o.End() && o.Start < vmi.End() {
			panic("overlapping vm region")
		}
	}
	vr.regions = append(vr.regions, vmi)
	sort.Slice(vr.regions, func(i, j int) bool {
		return vr.regions[i].Start < vr.regions[j].Start
	})
}

// Remove deletes the region starting at start.
func (vr *Vmregion_t) Remove(start uintptr) {
	for i, o := range vr.regions {
		if o.Start == start {
			vr.regions = append(vr.regions[:i], vr.regions[i+1:]...)
			return
		}
	}
}

// Lookup returns the region containing va, if any.
func (vr *Vmregion_t) Lookup(va uintptr) (*Vminfo_t, bool) {
	for _, o := range vr.regions {
		if va >= o.Start && va < o.End() {
			return o, true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the region list, used by fork; the
// underlying pages are not copied here, only the VMA metadata.
func (vr *Vmregion_t) Clone() Vmregion_t {
	nr := Vmregion_t{regions: make([]*Vminfo_t, len(vr.regions))}
	for i, o := range vr.regions {
		cp := *o
		nr.regions[i] = &cp
	}
	return nr
}

// Unused returns the lowest address at or above startva with at least
// length bytes free and unmapped, for mmap's address-choosing path.
func (vr *Vmregion_t) Unused(startva uintptr, length int) uintptr {
	cand := startva
	for _, o := range vr.regions {
		if o.Start >= cand+uintptr(length) {
			break
		}
		if cand < o.End() {
			cand = o.End()
		}
	}
	return cand
}
