// Package stats implements the compile-time-gated counters used for
// internal profiling. When Stats/Timing are false the increment and add
// operations compile down to nothing a caller needs to guard separately.
package stats

import (
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"

	"keelos/internal/archlow"
)

// Stats and Timing gate the two counter kinds below. Flip to true for a
// debug build; production builds leave both false so Inc/Add are no-ops.
const Stats = false
const Timing = false

// Nirqs counts interrupts by vector; Irqs is the running total.
var Nirqs [256]int
var Irqs int64

// HasInvariantTSC holds the CPU's RDTSCP feature bit; it does not test
// the invariant-TSC bit itself.
var HasInvariantTSC = cpu.X86.HasRDTSCP

// Rdtsc returns the current cycle count when timing is enabled, 0
// otherwise.
func Rdtsc() uint64 {
	if Stats || Timing {
		return archlow.Rdtsc()
	}
	return 0
}

// Counter_t is a statistical counter.
type Counter_t int64

// Cycles_t holds an accumulated cycle count.
type Cycles_t int64

// Inc increments the counter when Stats is enabled.
func (c *Counter_t) Inc() {
	if Stats {
		atomic.AddInt64((*int64)(unsafe.Pointer(c)), 1)
	}
}

// Add adds the cycles elapsed since mark m when Timing is enabled.
func (c *Cycles_t) Add(m uint64) {
	if Timing {
		atomic.AddInt64((*int64)(unsafe.Pointer(c)), int64(Rdtsc()-m))
	}
}

// Stats2String renders every Counter_t/Cycles_t field of st as a
// printable report, or the empty string when Stats is disabled.
func Stats2String(st interface{}) string {
	if !Stats {
		return ""
	}
	v := reflect.ValueOf(st)
	s := ""
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		switch {
		case strings.HasSuffix(t, "Counter_t"):
			n := v.Field(i).Interface().(Counter_t)
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10)
		case strings.HasSuffix(t, "Cycles_t"):
			n := v.Field(i).Interface().(Cycles_t)
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10)
		}
	}
	return s + "\n"
}
