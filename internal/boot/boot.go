// Package boot defines the typed contract between the boot loader and
// the kernel: the physical memory map, framebuffer descriptor, RSDP
// pointer for ACPI table discovery, and the set of CPUs the loader
// already brought out of reset. cmd/kernel fills this in from loader
// data before calling into any other package.
package boot

import "keelos/internal/mem"

// MemmapEntry is one range from the boot-time physical memory map.
type MemmapEntry struct {
	Base      mem.Pa_t
	Length    uint64
	Usable    bool
	Reclaimable bool
}

// Framebuffer describes a linear framebuffer handed off by the loader.
type Framebuffer struct {
	PhysAddr mem.Pa_t
	Width    int
	Height   int
	Pitch    int
	Bpp      int
}

// CPUInfo identifies one logical CPU discovered by the loader before
// the kernel's own SMP bring-up runs.
type CPUInfo struct {
	LAPICID  uint32
	BSP      bool
}

// Info is the complete boot-time contract.
type Info struct {
	HHDMBase uintptr
	Memmap   []MemmapEntry
	RSDP     uintptr
	FB       *Framebuffer
	CPUs     []CPUInfo
	Cmdline  string
}

// UsableRegions converts the loader memory map into the contiguous
// usable regions mem.PhysInit expects, dropping reclaimable-but-not-yet-
// reclaimed and reserved ranges.
func (i *Info) UsableRegions() []mem.Region {
	var regions []mem.Region
	for _, e := range i.Memmap {
		if !e.Usable {
			continue
		}
		regions = append(regions, mem.Region{Base: e.Base, Len: e.Length})
	}
	return regions
}
