// Package accnt accumulates per-thread and per-process user/system CPU
// time and exports it as an rusage-shaped byte buffer for getrusage, and
// as a pprof profile for offline analysis.
package accnt

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/pprof/profile"

	"keelos/internal/util"
)

// Accnt_t accumulates accounting information for one thread or process.
// Userns and Sysns store runtime in nanoseconds. The embedded mutex lets
// callers take a consistent snapshot when exporting usage.
type Accnt_t struct {
	Userns int64
	Sysns  int64
	sync.Mutex
}

// Utadd adds delta nanoseconds to the user-time counter.
func (a *Accnt_t) Utadd(delta int) {
	atomic.AddInt64(&a.Userns, int64(delta))
}

// Systadd adds delta nanoseconds to the system-time counter.
func (a *Accnt_t) Systadd(delta int) {
	atomic.AddInt64(&a.Sysns, int64(delta))
}

// Now returns the current time in nanoseconds since the Unix epoch.
func (a *Accnt_t) Now() int { return int(time.Now().UnixNano()) }

// IoTime removes time spent waiting for I/O from system time.
func (a *Accnt_t) IoTime(since int) {
	a.Systadd(-(a.Now() - since))
}

// SleepTime removes time spent blocked on a wait channel from system time.
func (a *Accnt_t) SleepTime(since int) {
	a.Systadd(-(a.Now() - since))
}

// Finish adds the time elapsed since inttime to system time.
func (a *Accnt_t) Finish(inttime int) {
	a.Systadd(a.Now() - inttime)
}

// Add merges n's counters into a, used when a process collects the
// accounting of an exited child or a reaped thread.
func (a *Accnt_t) Add(n *Accnt_t) {
	a.Lock()
	a.Userns += n.Userns
	a.Sysns += n.Sysns
	a.Unlock()
}

// Fetch returns a consistent rusage-encoded snapshot.
func (a *Accnt_t) Fetch() []uint8 {
	a.Lock()
	ru := a.toRusage()
	a.Unlock()
	return ru
}

// toRusage packs user/sys time as two {sec,usec} timeval pairs, the
// layout getrusage's caller expects.
func (a *Accnt_t) toRusage() []uint8 {
	const words = 4
	ret := make([]uint8, words*8)
	totv := func(nano int64) (int, int) {
		return int(nano / 1e9), int((nano % 1e9) / 1000)
	}
	off := 0
	s, us := totv(a.Userns)
	util.Writen(ret, 8, off, s)
	off += 8
	util.Writen(ret, 8, off, us)
	off += 8
	s, us = totv(a.Sysns)
	util.Writen(ret, 8, off, s)
	off += 8
	util.Writen(ret, 8, off, us)
	return ret
}

// String renders a snapshot of the accounting totals as text, so
// devfs's /dev/stat can dump a running accumulator without either side
// knowing about the other's concrete type.
func (a *Accnt_t) String() string {
	a.Lock()
	userns, sysns := a.Userns, a.Sysns
	a.Unlock()
	return fmt.Sprintf("user_ns=%d sys_ns=%d\n", userns, sysns)
}

// PprofProfile renders a snapshot of one accounting record as a pprof
// profile with a single "cpu" sample, so per-process accounting can be
// pulled into the same tooling used for host-side performance work.
func (a *Accnt_t) PprofProfile(label string) *profile.Profile {
	a.Lock()
	userns, sysns := a.Userns, a.Sysns
	a.Unlock()

	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "user_ns", Unit: "nanoseconds"},
			{Type: "sys_ns", Unit: "nanoseconds"},
		},
		Function: []*profile.Function{{ID: 1, Name: label}},
		Location: []*profile.Location{{ID: 1, Line: []profile.Line{{FunctionID: 1}}}},
	}
	p.Sample = []*profile.Sample{{
		Location: p.Location,
		Value:    []int64{userns, sysns},
	}}
	return p
}
