package mem

import "testing"

func freshPhys(npages uint32) *Physmem_t {
	phys := &Physmem_t{
		startpg: 0,
		npages:  npages,
		bitmap:  make([]uint64, (npages+63)/64),
		Pgs:     make([]Physpg_t, npages),
	}
	return phys
}

func TestAllocidxStaysWithinBitmapBounds(t *testing.T) {
	phys := freshPhys(4)
	seen := map[uint32]bool{}
	for i := 0; i < 4; i++ {
		idx, ok := phys.allocidx()
		if !ok {
			t.Fatalf("allocation %d failed with free pages remaining", i)
		}
		if idx >= phys.npages {
			t.Fatalf("allocidx returned out-of-range index %d (npages=%d)", idx, phys.npages)
		}
		if seen[idx] {
			t.Fatalf("allocidx returned already-allocated index %d twice", idx)
		}
		seen[idx] = true
	}
	if _, ok := phys.allocidx(); ok {
		t.Fatal("allocidx succeeded after the bitmap was exhausted")
	}
}

func TestPhysInitMarksOnlyRegionPagesFree(t *testing.T) {
	regions := []Region{
		{Base: 0, Len: uint64(2 * PGSIZE)},
		{Base: Pa_t(4 * PGSIZE), Len: uint64(1 * PGSIZE)},
	}
	phys := PhysInit(regions)
	if phys.npages != 5 {
		t.Fatalf("npages = %d, want 5 (span covers pages 0..4)", phys.npages)
	}
	if phys.Pgcount() != 3 {
		t.Fatalf("Pgcount() = %d, want 3 free pages from the two regions", phys.Pgcount())
	}
	// page 2 and 3 fall in the hole between the regions and must stay
	// marked busy.
	if !phys.testbit(2) || !phys.testbit(3) {
		t.Fatal("pages in the gap between regions were not marked busy")
	}
}

func TestRefupRefdownLifecycle(t *testing.T) {
	phys := freshPhys(2)
	idx, ok := phys.allocidx()
	if !ok {
		t.Fatal("allocidx failed")
	}
	pa := phys.pgaddr(idx)

	if got := phys.Refcnt(pa); got != 1 {
		t.Fatalf("fresh allocation Refcnt = %d, want 1", got)
	}
	phys.Refup(pa)
	if got := phys.Refcnt(pa); got != 2 {
		t.Fatalf("Refcnt after Refup = %d, want 2", got)
	}
	if phys.Refdown(pa) {
		t.Fatal("Refdown reported the page freed while a reference remained")
	}
	if !phys.Refdown(pa) {
		t.Fatal("Refdown did not report the page freed at refcount 0")
	}
	if phys.testbit(idx) {
		t.Fatal("bitmap bit still set after the page's last reference dropped")
	}
}

func TestRefdownBelowZeroPanics(t *testing.T) {
	phys := freshPhys(1)
	idx, _ := phys.allocidx()
	pa := phys.pgaddr(idx)
	phys.Refdown(pa)

	defer func() {
		if recover() == nil {
			t.Fatal("Refdown of an already-free page did not panic")
		}
	}()
	phys.Refdown(pa)
}

func TestRoundupRounddown(t *testing.T) {
	if got := Roundup(4097, PGSIZE); got != 2*PGSIZE {
		t.Fatalf("Roundup(4097, PGSIZE) = %d, want %d", got, 2*PGSIZE)
	}
	if got := Rounddown(4097, PGSIZE); got != PGSIZE {
		t.Fatalf("Rounddown(4097, PGSIZE) = %d, want %d", got, PGSIZE)
	}
}
