package vm

import (
	"sync"
	"unsafe"

	"keelos/internal/bounds"
	"keelos/internal/defs"
	"keelos/internal/fdops"
	"keelos/internal/mem"
	"keelos/internal/res"
	"keelos/internal/ustr"
)

const PGOFFSET = mem.PGOFFSET
const PTE_P = mem.PTE_P
const PTE_W = mem.PTE_W
const PTE_U = mem.PTE_U
const PTE_COW = mem.PTE_COW
const PTE_ADDR = mem.PTE_ADDR

// Vm_t is a process address space: the VMA list and the root page
// table. The mutex serializes modification of Vmregion, Pmap and
// P_pmap; page faults and user-copy helpers hold it across their
// whole page-table walk.
type Vm_t struct {
	sync.Mutex
	Vmregion Vmregion_t
	Pmap     *mem.Pmap_t
	P_pmap   mem.Pa_t

	pgfltaken bool
}

// Lock_pmap acquires the address space lock for page-table manipulation.
func (as *Vm_t) Lock_pmap() {
	as.Lock()
	as.pgfltaken = true
}

// Unlock_pmap releases the address space lock.
func (as *Vm_t) Unlock_pmap() {
	as.pgfltaken = false
	as.Unlock()
}

// Lockassert_pmap panics if the address space lock is not held.
func (as *Vm_t) Lockassert_pmap() {
	if !as.pgfltaken {
		panic("pmap lock must be held")
	}
}

// NewAddrspace allocates an empty address space with a fresh PML4,
// preloaded with the kernel's shared mappings.
func NewAddrspace() (*Vm_t, defs.Err_t) {
	pmap, p_pmap, ok := mem.Physmem.Pmap_new()
	if !ok {
		return nil, -defs.ENOMEM
	}
	installKents(pmap)
	return &Vm_t{Pmap: pmap, P_pmap: p_pmap}, 0
}

func installKents(pmap *mem.Pmap_t) {
	for _, k := range mem.Kents {
		pmap[k.Pml4slot] = k.Entry
	}
}

// Userdmap8_inner maps the user virtual address va into a kernel byte
// slice, faulting the page in if necessary. The address space lock
// must already be held. When k2u is true the mapping is prepared for
// a kernel-to-user write (breaking copy-on-write if needed).
func (as *Vm_t) Userdmap8_inner(va int, k2u bool) ([]uint8, defs.Err_t) {
	as.Lockassert_pmap()

	voff := va & int(PGOFFSET)
	uva := uintptr(va)
	if uva >= 0x8000_0000_0000 {
		return nil, -defs.EFAULT
	}
	vmi, ok := as.Vmregion.Lookup(uva)
	if !ok {
		return nil, -defs.EFAULT
	}
	pte, ok := vmi.Ptefor(as.Pmap, uva)
	if !ok {
		return nil, -defs.ENOMEM
	}
	ecode := PTE_U
	needfault := true
	isp := *pte&PTE_P != 0
	if k2u {
		ecode |= PTE_W
		iscow := *pte&PTE_COW != 0
		if isp && !iscow {
			needfault = false
		}
	} else if isp {
		needfault = false
	}

	if needfault {
		if err := Sys_pgfault(as, vmi, uva, uintptr(ecode)); err != 0 {
			return nil, err
		}
	}

	pg := mem.Physmem.Dmap(*pte & PTE_ADDR)
	bpg := mem.Pg2bytes(pg)
	return bpg[voff:], 0
}

func (as *Vm_t) userdmap8(va int, k2u bool) ([]uint8, defs.Err_t) {
	as.Lock_pmap()
	ret, err := as.Userdmap8_inner(va, k2u)
	as.Unlock_pmap()
	return ret, err
}

// Userdmap8r maps va for a kernel read.
func (as *Vm_t) Userdmap8r(va int) ([]uint8, defs.Err_t) { return as.userdmap8(va, false) }

// Userreadn reads an n-byte (n in {1,2,4,8}) little-endian integer
// from user memory at va.
func (as *Vm_t) Userreadn(va, n int) (int, defs.Err_t) {
	as.Lock_pmap()
	defer as.Unlock_pmap()
	return as.userreadnInner(va, n)
}

func (as *Vm_t) userreadnInner(va, n int) (int, defs.Err_t) {
	as.Lockassert_pmap()
	src, err := as.Userdmap8_inner(va, false)
	if err != 0 {
		return 0, err
	}
	if len(src) < n {
		return 0, -defs.EFAULT
	}
	var v int
	p := unsafe.Pointer(&src[0])
	switch n {
	case 8:
		v = *(*int)(p)
	case 4:
		v = int(*(*uint32)(p))
	case 2:
		v = int(*(*uint16)(p))
	case 1:
		v = int(*(*uint8)(p))
	default:
		panic("bad size")
	}
	return v, 0
}

// Userwriten writes the n least-significant bytes of val to user
// memory at va.
func (as *Vm_t) Userwriten(va, n, val int) defs.Err_t {
	as.Lock_pmap()
	defer as.Unlock_pmap()
	dst, err := as.Userdmap8_inner(va, true)
	if err != 0 {
		return err
	}
	if len(dst) < n {
		return -defs.EFAULT
	}
	p := unsafe.Pointer(&dst[0])
	switch n {
	case 8:
		*(*int)(p) = val
	case 4:
		*(*uint32)(p) = uint32(val)
	case 2:
		*(*uint16)(p) = uint16(val)
	case 1:
		*(*uint8)(p) = uint8(val)
	default:
		panic("bad size")
	}
	return 0
}

// Userstr copies a NUL-terminated string from user memory at uva, up
// to lenmax bytes.
func (as *Vm_t) Userstr(uva int, lenmax int) (ustr.Ustr, defs.Err_t) {
	as.Lock_pmap()
	defer as.Unlock_pmap()
	var ret ustr.Ustr
	for len(ret) < lenmax {
		b, err := as.Userdmap8_inner(uva+len(ret), false)
		if err != 0 {
			return nil, err
		}
		for _, c := range b {
			if c == 0 {
				return ret, 0
			}
			ret = append(ret, c)
			if len(ret) >= lenmax {
				return nil, -defs.ENAMETOOLONG
			}
		}
	}
	return nil, -defs.ENAMETOOLONG
}

// K2user copies src into user memory starting at uva.
func (as *Vm_t) K2user(src []uint8, uva int) defs.Err_t {
	as.Lock_pmap()
	defer as.Unlock_pmap()
	return as.K2userInner(src, uva)
}

// K2userInner is K2user for a caller that already holds the pmap lock.
func (as *Vm_t) K2userInner(src []uint8, uva int) defs.Err_t {
	as.Lockassert_pmap()
	cnt := 0
	l := len(src)
	for cnt != l {
		if !res.Resadd_noblock(bounds.Bounds(bounds.B_ASPACE_T_K2USER_INNER)) {
			return -defs.ENOHEAP
		}
		dst, err := as.Userdmap8_inner(uva+cnt, true)
		if err != 0 {
			return err
		}
		n := copy(dst, src)
		src = src[n:]
		cnt += n
	}
	return 0
}

// User2k copies len(dst) bytes from user memory at uva into dst.
func (as *Vm_t) User2k(dst []uint8, uva int) defs.Err_t {
	as.Lock_pmap()
	defer as.Unlock_pmap()
	return as.user2kInner(dst, uva)
}

func (as *Vm_t) user2kInner(dst []uint8, uva int) defs.Err_t {
	as.Lockassert_pmap()
	cnt := 0
	for len(dst) != 0 {
		if !res.Resadd_noblock(bounds.Bounds(bounds.B_ASPACE_T_USER2K_INNER)) {
			return -defs.ENOHEAP
		}
		src, err := as.Userdmap8_inner(uva+cnt, false)
		if err != 0 {
			return err
		}
		n := copy(dst, src)
		dst = dst[n:]
		cnt += n
	}
	return 0
}

// Sys_pgfault resolves a page fault at faultaddr within vmi: it
// allocates and zeroes an anonymous page, reads in a file-backed page,
// or breaks copy-on-write by duplicating a shared page, then installs
// the resulting PTE.
func Sys_pgfault(as *Vm_t, vmi *Vminfo_t, faultaddr uintptr, ecode uintptr) defs.Err_t {
	as.Lockassert_pmap()
	pte, ok := vmi.Ptefor(as.Pmap, faultaddr)
	if !ok {
		return -defs.ENOMEM
	}

	write := ecode&uintptr(PTE_W) != 0
	present := *pte&PTE_P != 0
	cow := *pte&PTE_COW != 0

	if present && cow && write {
		old := mem.Physmem.Dmap(*pte & PTE_ADDR)
		if mem.Physmem.Refcnt(*pte&PTE_ADDR) == 1 {
			*pte = (*pte &^ PTE_COW) | PTE_W
			return 0
		}
		npg, p_pg, ok := mem.Physmem.Refpg_new_nozero()
		if !ok {
			return -defs.ENOMEM
		}
		*npg = *old
		mem.Physmem.Refdown(*pte & PTE_ADDR)
		perms := vmi.Perms | PTE_P | PTE_W | PTE_U
		*pte = p_pg&PTE_ADDR | perms&^PTE_COW
		return 0
	}

	if present {
		return 0
	}

	switch vmi.Mtype {
	case vmAnon:
		pg, p_pg, ok := mem.Physmem.Refpg_new()
		if !ok {
			return -defs.ENOMEM
		}
		perms := vmi.Perms | PTE_P | PTE_U
		*pte = p_pg&PTE_ADDR | perms
		_ = pg
		return 0
	case vmFile:
		pg, p_pg, ok := mem.Physmem.Refpg_new()
		if !ok {
			return -defs.ENOMEM
		}
		off := vmi.Foff + int(faultaddr-vmi.Start)
		off = mem.Rounddown(off, mem.PGSIZE)
		bpg := mem.Pg2bytes(pg)[:]
		if _, err := vmi.Fops.Pread(sliceUio(bpg), off); err != 0 {
			mem.Physmem.Refdown(p_pg)
			return err
		}
		perms := vmi.Perms | PTE_P | PTE_U
		*pte = p_pg&PTE_ADDR | perms
		return 0
	}
	panic("unknown vma type")
}

// sliceUioT adapts a plain byte slice to fdops.Userio_i for internal
// kernel-to-kernel reads (file-backed page-in), where there is no
// actual user address to validate.
type sliceUioT struct{ b []uint8 }

func sliceUio(b []uint8) fdops.Userio_i { return &sliceUioT{b: b} }

func (s *sliceUioT) Uioread(dst []uint8) (int, defs.Err_t) {
	n := copy(dst, s.b)
	s.b = s.b[n:]
	return n, 0
}
func (s *sliceUioT) Uiowrite(src []uint8) (int, defs.Err_t) {
	n := copy(s.b, src)
	s.b = s.b[n:]
	return n, 0
}
func (s *sliceUioT) Remain() int  { return len(s.b) }
func (s *sliceUioT) Totalsz() int { return len(s.b) }

// Page_insert maps p_pg at va with the given permissions, taking a
// reference on p_pg and dropping the one on any page mapped there
// before. The page's contents are left as the caller prepared them.
func (as *Vm_t) Page_insert(va int, p_pg mem.Pa_t, perms mem.Pa_t, vmi *Vminfo_t) defs.Err_t {
	as.Lockassert_pmap()
	pte, ok := vmi.Ptefor(as.Pmap, uintptr(va))
	if !ok {
		return -defs.ENOMEM
	}
	if *pte&PTE_P != 0 {
		mem.Physmem.Refdown(*pte & PTE_ADDR)
	}
	mem.Physmem.Refup(p_pg)
	*pte = p_pg&PTE_ADDR | perms | PTE_P
	return 0
}

// Page_remove unmaps va, dropping the reference on the backing page.
// It reports whether a mapping was present.
func (as *Vm_t) Page_remove(va int) bool {
	as.Lockassert_pmap()
	vmi, ok := as.Vmregion.Lookup(uintptr(va))
	if !ok {
		return false
	}
	pte, ok := vmi.Ptefor(as.Pmap, uintptr(va))
	if !ok || *pte&PTE_P == 0 {
		return false
	}
	mem.Physmem.Refdown(*pte & PTE_ADDR)
	*pte = 0
	return true
}

// Uvmfree tears down every mapping in the address space and frees the
// page tables themselves, used when a process exits.
func (as *Vm_t) Uvmfree() {
	as.Lock_pmap()
	defer as.Unlock_pmap()
	for _, vmi := range as.Vmregion.regions {
		freeRange(as.Pmap, vmi.Start, vmi.End())
	}
	freePageTable(as.Pmap, 3)
	mem.Physmem.Refdown(as.P_pmap)
}

// Vmadd_anon registers a private anonymous region, e.g. the heap or stack.
func (as *Vm_t) Vmadd_anon(start, length int, perms mem.Pa_t) {
	as.Vmregion.Add(&Vminfo_t{Start: uintptr(start), Len: length, Perms: perms, Mtype: vmAnon})
}

// Vmadd_file registers a private file-backed region, e.g. program text.
func (as *Vm_t) Vmadd_file(start, length int, perms mem.Pa_t, fops fdops.Fdops_i, foff int) {
	as.Vmregion.Add(&Vminfo_t{Start: uintptr(start), Len: length, Perms: perms, Mtype: vmFile, Fops: fops, Foff: foff})
}

// Vmadd_shareanon registers a shared anonymous region (e.g. a
// MAP_SHARED|MAP_ANONYMOUS mapping used for IPC).
func (as *Vm_t) Vmadd_shareanon(start, length int, perms mem.Pa_t) {
	as.Vmregion.Add(&Vminfo_t{Start: uintptr(start), Len: length, Perms: perms, Mtype: vmAnon, Shared: true})
}

// Vmadd_sharefile registers a shared file-backed mapping.
func (as *Vm_t) Vmadd_sharefile(start, length int, perms mem.Pa_t, fops fdops.Fdops_i, foff int) {
	as.Vmregion.Add(&Vminfo_t{Start: uintptr(start), Len: length, Perms: perms, Mtype: vmFile, Fops: fops, Foff: foff, Shared: true})
}

// Clone returns a new address space holding a deep copy of as: every
// present private page is duplicated into a freshly allocated
// physical page and byte-copied via the direct map, so a write
// through either copy is never visible through the other. Shared
// regions are mapped directly into the child with the page reference
// bumped, the way a MAP_SHARED mapping must survive a fork.
func (as *Vm_t) Clone() (*Vm_t, defs.Err_t) {
	as.Lock_pmap()
	defer as.Unlock_pmap()

	nas, err := NewAddrspace()
	if err != 0 {
		return nil, err
	}
	nas.Vmregion = as.Vmregion.Clone()

	for _, vmi := range as.Vmregion.regions {
		for va := vmi.Start; va < vmi.End(); va += uintptr(mem.PGSIZE) {
			pte, ok := pteWalk(as.Pmap, va, false)
			if !ok || pte == nil || *pte&PTE_P == 0 {
				continue
			}
			npte, ok := pteWalk(nas.Pmap, va, true)
			if !ok {
				return nil, -defs.ENOMEM
			}
			if vmi.Shared {
				mem.Physmem.Refup(*pte & PTE_ADDR)
				*npte = *pte
				continue
			}
			src := mem.Physmem.Dmap(*pte & PTE_ADDR)
			npg, p_npg, ok := mem.Physmem.Refpg_new_nozero()
			if !ok {
				return nil, -defs.ENOMEM
			}
			*npg = *src
			*npte = p_npg&PTE_ADDR | (*pte &^ PTE_ADDR)
		}
	}
	return nas, 0
}
