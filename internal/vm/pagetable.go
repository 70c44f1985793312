package vm

import (
	"unsafe"

	"keelos/internal/mem"
)

// pgbits splits a virtual address into its four 9-bit page-table
// indices (pml4, pdpt, pd, pt).
func pgbits(v uintptr) (int, int, int, int) {
	idx := func(shift uint) int { return int((v >> shift) & 0x1ff) }
	return idx(39), idx(30), idx(21), idx(12)
}

// pteWalk walks pml4 to the leaf PTE for va, allocating intermediate
// page-table levels on demand when alloc is true. It returns false
// only on allocation failure (when alloc is true) or when the entry
// does not exist (when alloc is false).
func pteWalk(pml4 *mem.Pmap_t, va uintptr, alloc bool) (*mem.Pa_t, bool) {
	l4i, l3i, l2i, l1i := pgbits(va)

	next := func(tbl *mem.Pmap_t, i int) (*mem.Pmap_t, bool) {
		if tbl[i]&mem.PTE_P == 0 {
			if !alloc {
				return nil, false
			}
			npg, p_pg, ok := mem.Physmem.Pmap_new()
			if !ok {
				return nil, false
			}
			tbl[i] = p_pg&mem.PTE_ADDR | mem.PTE_P | mem.PTE_W | mem.PTE_U
			return npg, true
		}
		child := mem.Physmem.Dmap(tbl[i] & mem.PTE_ADDR)
		return pgcast(child), true
	}

	l3, ok := next(pml4, l4i)
	if !ok {
		return nil, false
	}
	l2, ok := next(l3, l3i)
	if !ok {
		return nil, false
	}
	l1, ok := next(l2, l2i)
	if !ok {
		return nil, false
	}
	return &l1[l1i], true
}

func pgcast(pg *mem.Pg_t) *mem.Pmap_t {
	return (*mem.Pmap_t)(unsafe.Pointer(pg))
}

// freeRange unmaps and dereferences every page in [start, end).
func freeRange(pml4 *mem.Pmap_t, start, end uintptr) {
	for va := start; va < end; va += uintptr(mem.PGSIZE) {
		pte, ok := pteWalk(pml4, va, false)
		if !ok || pte == nil || *pte&mem.PTE_P == 0 {
			continue
		}
		mem.Physmem.Refdown(*pte & mem.PTE_ADDR)
		*pte = 0
	}
}

// freePageTable recursively frees the page-table pages themselves
// (not the leaf data pages, already dropped by freeRange), down to
// the given level (3 = pml4's children).
func freePageTable(tbl *mem.Pmap_t, level int) {
	if level == 0 {
		return
	}
	for i, pte := range tbl {
		if pte&mem.PTE_P == 0 || pte&mem.PTE_U == 0 {
			continue
		}
		child := pgcast(mem.Physmem.Dmap(pte & mem.PTE_ADDR))
		freePageTable(child, level-1)
		mem.Physmem.Dec_pmap(pte & mem.PTE_ADDR)
		tbl[i] = 0
	}
}
