// Package caller provides call-stack diagnostics: a dumped stack for
// panics, and a distinct-caller-path tracker used to rate-limit repeated
// warnings (e.g. a slow-path log that would otherwise fire every tick
// from the same callers).
package caller

import (
	"fmt"
	"runtime"
	"sync"
)

// Dump prints the call stack starting at the given depth.
func Dump(start int) {
	i := start
	s := ""
	for {
		_, f, l, ok := runtime.Caller(i)
		if !ok {
			break
		}
		i++
		if s == "" {
			s = fmt.Sprintf("%s:%d\n", f, l)
		} else {
			s += fmt.Sprintf("\t<-%s:%d\n", f, l)
		}
	}
	fmt.Printf("%s", s)
}

// Distinct tracks whether a call chain has been seen before, so a
// warning can be emitted once per distinct caller path instead of once
// per call.
type Distinct struct {
	sync.Mutex
	Enabled bool
	did     map[uintptr]bool
	Whitel  map[string]bool
}

func (dc *Distinct) pchash(pcs []uintptr) uintptr {
	if len(pcs) == 0 {
		panic("empty pc slice")
	}
	var ret uintptr
	for _, pc := range pcs {
		pc = pc*1103515245 + 12345
		ret ^= pc
	}
	return ret
}

// Len returns the number of unique caller paths recorded so far.
func (dc *Distinct) Len() int {
	dc.Lock()
	defer dc.Unlock()
	return len(dc.did)
}

// Seen reports whether the current call chain is new, returning a
// formatted stack trace the first time a given chain is observed. The
// recorded chain starts at the caller of the function that calls Seen.
func (dc *Distinct) Seen() (bool, string) {
	dc.Lock()
	defer dc.Unlock()
	if !dc.Enabled {
		return false, ""
	}
	if dc.did == nil {
		dc.did = make(map[uintptr]bool)
	}

	var pcs []uintptr
	for sz, got := 30, 30; got >= sz; sz *= 2 {
		pcs = make([]uintptr, sz)
		got = runtime.Callers(3, pcs)
		if got == 0 {
			panic("no callers")
		}
	}
	h := dc.pchash(pcs)
	if dc.did[h] {
		return false, ""
	}
	dc.did[h] = true

	frames := runtime.CallersFrames(pcs)
	fs := ""
	for {
		fr, more := frames.Next()
		if dc.Whitel[fr.Function] {
			return false, ""
		}
		if fs == "" {
			fs = fmt.Sprintf("%v (%v:%v)\n", fr.Function, fr.File, fr.Line)
		} else {
			fs += fmt.Sprintf("\t%v (%v:%v)\n", fr.Function, fr.File, fr.Line)
		}
		if !more || fr.Function == "runtime.goexit" {
			break
		}
	}
	return true, fs
}
