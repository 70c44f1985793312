// Package archlow holds the x86-64 primitives that cannot be expressed
// in portable Go: port I/O, MSRs, control registers, TLB invalidation,
// and the cycle counter. Every exported function here is backed by a
// short hand-written stub in archlow_amd64.s; nothing in this package
// allocates or blocks.
package archlow

// Outb writes a byte to an I/O port.
//
//go:noescape
func Outb(port uint16, val uint8)

// Inb reads a byte from an I/O port.
//
//go:noescape
func Inb(port uint16) uint8

// Outw writes a 16-bit word to an I/O port.
//
//go:noescape
func Outw(port uint16, val uint16)

// Inw reads a 16-bit word from an I/O port.
//
//go:noescape
func Inw(port uint16) uint16

// Outl writes a 32-bit doubleword to an I/O port.
//
//go:noescape
func Outl(port uint16, val uint32)

// Inl reads a 32-bit doubleword from an I/O port.
//
//go:noescape
func Inl(port uint16) uint32

// Rdmsr reads a model-specific register.
//
//go:noescape
func Rdmsr(reg uint32) uint64

// Wrmsr writes a model-specific register.
//
//go:noescape
func Wrmsr(reg uint32, val uint64)

// Rdtsc returns the raw timestamp counter value.
//
//go:noescape
func Rdtsc() uint64

// Invlpg invalidates the TLB entry mapping the page containing addr.
//
//go:noescape
func Invlpg(addr uintptr)

// LoadCR3 installs pml4phys (a physical address) as the active page table.
//
//go:noescape
func LoadCR3(pml4phys uintptr)

// ReadCR2 returns the faulting address recorded by the last page fault.
//
//go:noescape
func ReadCR2() uintptr

// ReadCR3 returns the physical address of the active top-level page table.
//
//go:noescape
func ReadCR3() uintptr

// Sti enables interrupts on the calling CPU.
//
//go:noescape
func Sti()

// Cli disables interrupts on the calling CPU, returning the prior flag
// state so callers can restore it.
//
//go:noescape
func Cli() bool

// Hlt halts the calling CPU until the next interrupt.
//
//go:noescape
func Hlt()

// Pause emits a spin-loop hint, used in busy-wait backoff.
//
//go:noescape
func Pause()

// Xsave saves the extended processor state (SSE/AVX) named by mask into
// a 64-byte-aligned region at least 4096 bytes long.
//
//go:noescape
func Xsave(region *byte, mask uint64)

// Xrstor restores extended processor state previously saved by Xsave.
//
//go:noescape
func Xrstor(region *byte, mask uint64)
