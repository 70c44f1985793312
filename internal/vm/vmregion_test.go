package vm_test

import (
	"testing"

	"keelos/internal/vm"
)

func TestAddRejectsOverlappingRegions(t *testing.T) {
	var vr vm.Vmregion_t
	vr.Add(&vm.Vminfo_t{Start: 0x1000, Len: 0x1000})

	defer func() {
		if recover() == nil {
			t.Fatal("Add of an overlapping region did not panic")
		}
	}()
	vr.Add(&vm.Vminfo_t{Start: 0x1800, Len: 0x1000})
}

func TestLookupFindsContainingRegion(t *testing.T) {
	var vr vm.Vmregion_t
	vr.Add(&vm.Vminfo_t{Start: 0x1000, Len: 0x1000})
	vr.Add(&vm.Vminfo_t{Start: 0x3000, Len: 0x1000})

	if _, ok := vr.Lookup(0x500); ok {
		t.Fatal("Lookup found a region below every mapped range")
	}
	vmi, ok := vr.Lookup(0x1500)
	if !ok || vmi.Start != 0x1000 {
		t.Fatalf("Lookup(0x1500) = %v, %v; want the 0x1000 region", vmi, ok)
	}
	if _, ok := vr.Lookup(0x2000); ok {
		t.Fatal("Lookup found a region in the unmapped gap")
	}
	vmi, ok = vr.Lookup(0x3fff)
	if !ok || vmi.Start != 0x3000 {
		t.Fatalf("Lookup(0x3fff) = %v, %v; want the 0x3000 region", vmi, ok)
	}
}

func TestRemoveDropsOnlyMatchingRegion(t *testing.T) {
	var vr vm.Vmregion_t
	vr.Add(&vm.Vminfo_t{Start: 0x1000, Len: 0x1000})
	vr.Add(&vm.Vminfo_t{Start: 0x3000, Len: 0x1000})

	vr.Remove(0x1000)
	if _, ok := vr.Lookup(0x1500); ok {
		t.Fatal("removed region is still reachable via Lookup")
	}
	if _, ok := vr.Lookup(0x3500); !ok {
		t.Fatal("Remove dropped the wrong region")
	}
}

func TestCloneIsIndependentOfOriginal(t *testing.T) {
	var vr vm.Vmregion_t
	vr.Add(&vm.Vminfo_t{Start: 0x1000, Len: 0x1000, Perms: 1})

	clone := vr.Clone()
	vmi, ok := clone.Lookup(0x1500)
	if !ok || vmi.Perms != 1 {
		t.Fatalf("clone missing the original region: %v, %v", vmi, ok)
	}

	vmi.Perms = 2
	orig, _ := vr.Lookup(0x1500)
	if orig.Perms != 1 {
		t.Fatal("mutating the clone's region mutated the original's")
	}
}

func TestUnusedSkipsOccupiedRanges(t *testing.T) {
	var vr vm.Vmregion_t
	vr.Add(&vm.Vminfo_t{Start: 0x1000, Len: 0x1000})

	got := vr.Unused(0x500, 0x200)
	if got != 0x500 {
		t.Fatalf("Unused found a free range before the mapped region: %#x", got)
	}
	got = vr.Unused(0x1800, 0x200)
	if got != 0x2000 {
		t.Fatalf("Unused(0x1800, 0x200) = %#x, want 0x2000 (past the mapped region)", got)
	}
}

func TestEndReturnsExclusiveUpperBound(t *testing.T) {
	vmi := vm.Vminfo_t{Start: 0x1000, Len: 0x2000}
	if vmi.End() != 0x3000 {
		t.Fatalf("End() = %#x, want 0x3000", vmi.End())
	}
}
