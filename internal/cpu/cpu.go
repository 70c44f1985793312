// Package cpu brings up the processor: the interrupt-vector handler
// table, the local APIC, and the rest of the CPUs reported by ACPI/the
// boot loader. It holds no GDT code. Each CPU gets
// a Per-CPU block reachable via GS-relative addressing on real
// hardware; this rewrite keeps the same per-CPU struct but indexes it
// by LAPIC ID rather than relying on a segment-register trick, since
// that trick depends on the teacher's forked runtime.
package cpu

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/cpu"

	"keelos/internal/archlow"
)

// Per_t is the per-CPU state block.
type Per_t struct {
	ID        uint32
	BSP       bool
	Started   bool
	IdleTicks int64
}

var (
	mu    sync.RWMutex
	cpus  []*Per_t
	byID  = map[uint32]*Per_t{}
)

// NCPU returns the number of CPUs brought up so far.
func NCPU() int {
	mu.RLock()
	defer mu.RUnlock()
	return len(cpus)
}

// BringupBSP registers the bootstrap processor, always index 0.
func BringupBSP(lapicID uint32) *Per_t {
	mu.Lock()
	defer mu.Unlock()
	p := &Per_t{ID: lapicID, BSP: true, Started: true}
	cpus = append(cpus, p)
	byID[lapicID] = p
	return p
}

// BringupAPs starts every application processor named by apIDs,
// running each one's startOne concurrently and waiting for every one of
// them to return. A single slow-to-start AP does not block the others'
// startup, but there is no timeout: BringupAPs returns only once every
// startOne has returned, with the first error any of them reported.
func BringupAPs(ctx context.Context, apIDs []uint32, startOne func(id uint32) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, id := range apIDs {
		id := id
		g.Go(func() error {
			if err := startOne(id); err != nil {
				return fmt.Errorf("cpu %d: %w", id, err)
			}
			mu.Lock()
			p := &Per_t{ID: id, Started: true}
			cpus = append(cpus, p)
			byID[id] = p
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// Features reports the subset of CPU capabilities this kernel cares
// about, gating XSAVE-based FPU context switching and APIC timer mode.
type Features struct {
	HasXSAVE  bool
	HasAVX    bool
	HasRDTSCP bool
	HasAPIC   bool
}

// DetectFeatures reads CPUID-derived feature bits via x/sys/cpu instead
// of hand-rolling CPUID parsing.
func DetectFeatures() Features {
	return Features{
		HasXSAVE:  cpu.X86.HasAVX, // presence of AVX implies OS-enabled XSAVE
		HasAVX:    cpu.X86.HasAVX,
		HasRDTSCP: cpu.X86.HasRDTSCP,
		HasAPIC:   true,
	}
}

// Halt parks the calling CPU until the next interrupt, used by the
// scheduler's idle loop.
func Halt() { archlow.Hlt() }

// DisableInterrupts clears the interrupt flag and reports whether it was
// set before; EnableInterrupts sets it.
func DisableInterrupts() bool { return archlow.Cli() }
func EnableInterrupts()       { archlow.Sti() }
