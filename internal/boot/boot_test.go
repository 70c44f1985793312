package boot_test

import (
	"testing"

	"keelos/internal/boot"
	"keelos/internal/mem"
)

func TestUsableRegionsDropsUnusableEntries(t *testing.T) {
	info := boot.Info{
		Memmap: []boot.MemmapEntry{
			{Base: 0, Length: 0x1000, Usable: true},
			{Base: 0x1000, Length: 0x1000, Usable: false},
			{Base: 0x2000, Length: 0x2000, Usable: true, Reclaimable: true},
		},
	}
	got := info.UsableRegions()
	want := []mem.Region{
		{Base: 0, Len: 0x1000},
		{Base: 0x2000, Len: 0x2000},
	}
	if len(got) != len(want) {
		t.Fatalf("UsableRegions() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("region %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestUsableRegionsEmptyWhenNothingUsable(t *testing.T) {
	info := boot.Info{Memmap: []boot.MemmapEntry{{Base: 0, Length: 0x1000, Usable: false}}}
	if got := info.UsableRegions(); len(got) != 0 {
		t.Fatalf("UsableRegions() = %v, want empty", got)
	}
}
