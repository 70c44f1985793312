// Package panics renders a kernel panic: a symbolized stack trace, the
// disassembled faulting instruction when the panic originated from a
// trap frame, and (when running under a hypervisor test harness) an
// exit code written to the debug-exit I/O port so CI can distinguish a
// panic from a hang.
package panics

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/ianlancetaylor/demangle"
	"golang.org/x/arch/x86/x86asm"

	"keelos/internal/archlow"
)

// TrapFrame carries the register state saved by the trap entry stub
// for a CPU exception, used to locate and disassemble the faulting
// instruction.
type TrapFrame struct {
	RIP  uintptr
	RSP  uintptr
	Code []byte // bytes at RIP, for disassembly
	Err  uint64
	Vec  uint64
}

// Symbolicate demangles a mangled function name for display. Go
// symbols are already plain, but panics that unwind through cgo'd or
// hand-assembled stubs carry Itanium-mangled names.
func Symbolicate(name string) string {
	if !strings.HasPrefix(name, "_Z") {
		return name
	}
	out, err := demangle.ToString(name, demangle.NoParams)
	if err != nil {
		return name
	}
	return out
}

// DisasmFault disassembles up to the first instruction in tf.Code,
// returning a human-readable line describing the faulting instruction.
func DisasmFault(tf TrapFrame) string {
	if len(tf.Code) == 0 {
		return "<no code captured>"
	}
	inst, err := x86asm.Decode(tf.Code, 64)
	if err != nil {
		return fmt.Sprintf("<undecodable bytes at %#x: %v>", tf.RIP, err)
	}
	return fmt.Sprintf("%#x: %s", tf.RIP, x86asm.GNUSyntax(inst, uint64(tf.RIP), nil))
}

// Dump prints a full panic report: the Go-level stack (symbolicated),
// and, if tf is non-nil, the faulting instruction.
func Dump(msg string, tf *TrapFrame) {
	fmt.Printf("panic: %s\n", msg)
	if tf != nil {
		fmt.Printf("fault: %s\n", DisasmFault(*tf))
		fmt.Printf("  rip=%#x rsp=%#x vec=%d err=%#x\n", tf.RIP, tf.RSP, tf.Vec, tf.Err)
	}
	buf := make([]byte, 1<<16)
	n := runtime.Stack(buf, false)
	for _, line := range strings.Split(string(buf[:n]), "\n") {
		fmt.Println(Symbolicate(line))
	}
}

// ExitSuccess and ExitFailure are the values written to the
// isa-debug-exit port; QEMU reports (code<<1)|1 as its process exit
// status, letting a test harness distinguish clean shutdown (33) from
// panic (35) from hang (no exit at all).
const (
	ExitSuccess = 0x10
	ExitFailure = 0x11
)

// QemuExit halts the VM via the debug-exit device, never returning.
// Used only in test/CI boots; real hardware has no such device.
func QemuExit(code uint8) {
	const isaDebugExitPort = 0xf4
	archlow.Outb(isaDebugExitPort, code)
	for {
		archlow.Hlt()
	}
}
