package cpu

import "unsafe"

// regPtr returns a pointer to the 32-bit register at byte offset off
// within the memory-mapped region b.
func regPtr(b []byte, off uintptr) unsafe.Pointer {
	return unsafe.Pointer(&b[off])
}
