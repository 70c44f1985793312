package cpu

import "keelos/internal/mem"

// Local APIC MMIO register offsets (Intel SDM vol 3A, ch. 10).
const (
	lapicID      = 0x020
	lapicEOI     = 0x0b0
	lapicSVR     = 0x0f0
	lapicICRLo   = 0x300
	lapicICRHi   = 0x310
	lapicTimer   = 0x320
	lapicTimerIC = 0x380
	lapicTimerCC = 0x390
	lapicTimerDC = 0x3e0
)

// LAPIC is a memory-mapped local APIC, addressed through the direct
// map once its physical base (from the MSR, or the boot loader's
// MADT) is known.
type LAPIC struct {
	base mem.Pa_t
}

// NewLAPIC wraps the LAPIC at physical address base.
func NewLAPIC(base mem.Pa_t) *LAPIC { return &LAPIC{base: base} }

func (l *LAPIC) reg(off uintptr) *uint32 {
	b := mem.Physmem.Dmap8(l.base)
	return (*uint32)(regPtr(b, off))
}

// EOI signals end-of-interrupt to the local APIC.
func (l *LAPIC) EOI() { *l.reg(lapicEOI) = 0 }

// Enable sets the spurious-interrupt vector and enables the APIC.
func (l *LAPIC) Enable(spuriousVector uint32) {
	*l.reg(lapicSVR) = spuriousVector | 0x100
}

// ID returns this LAPIC's local ID.
func (l *LAPIC) ID() uint32 { return *l.reg(lapicID) >> 24 }

// SendINIT sends an INIT IPI to the target APIC ID, the first step of
// the INIT-SIPI-SIPI AP bring-up sequence.
func (l *LAPIC) SendINIT(target uint32) {
	*l.reg(lapicICRHi) = target << 24
	*l.reg(lapicICRLo) = 0x4500
}

// SendSIPI sends a startup IPI pointing the AP at vector*0x1000.
func (l *LAPIC) SendSIPI(target uint32, vector uint8) {
	*l.reg(lapicICRHi) = target << 24
	*l.reg(lapicICRLo) = 0x4600 | uint32(vector)
}

// StartTimer arms the APIC timer in periodic mode with the given
// initial count and divide configuration.
func (l *LAPIC) StartTimer(vector uint8, initialCount uint32, divide uint32) {
	*l.reg(lapicTimerDC) = divide
	*l.reg(lapicTimer) = uint32(vector) | 0x20000 // periodic
	*l.reg(lapicTimerIC) = initialCount
}
