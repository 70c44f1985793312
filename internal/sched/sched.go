// Package sched implements the process/thread model and the
// preemptive scheduler. Each kernel thread is backed by one goroutine;
// a single scheduler goroutine hands each thread a turn by sending on
// its proceed channel and then blocking until the thread yields, sleeps,
// or its time slice expires — collapsing the teacher's inline-assembly
// context switch into plain Go channel handoff while preserving the
// single-RUNNING-thread and wait-channel invariants spec.md names.
package sched

import (
	"runtime"
	"sync"

	"keelos/internal/accnt"
	"keelos/internal/defs"
	"keelos/internal/fd"
	"keelos/internal/ustr"
	"keelos/internal/vfs"
	"keelos/internal/vm"
)

// ThreadState is the lifecycle state of one thread.
type ThreadState int

const (
	ST_RUNNABLE ThreadState = iota
	ST_RUNNING
	ST_SLEEPING
	ST_DEAD
)

// Thread_t is one schedulable kernel thread. Exactly one thread is
// ST_RUNNING at a time, guarded by the scheduler's token handoff.
type Thread_t struct {
	Tid   defs.Tid_t
	Proc  *Proc_t
	State ThreadState

	proceed  chan struct{}
	sleepch  chan interface{}
	killed   bool
	doomed   bool
	mu       sync.Mutex

	Accnt accnt.Accnt_t
}

// Proc_t is a process: an address space, an open file table, and the
// set of threads executing within it.
type Proc_t struct {
	Pid   defs.Pid_t
	Vm    *vm.Vm_t
	Cwd   *fd.Cwd_t
	Files *vfs.Table
	Fds   map[int]*fd.Fd_t
	fdmu  sync.Mutex

	Parent   *Proc_t
	Children map[defs.Pid_t]*Proc_t

	threadMu sync.Mutex
	Threads  map[defs.Tid_t]*Thread_t

	ExitStatus int
	exited     bool
	waitCh     chan *Proc_t // parent waits here for any child to exit

	Accnt accnt.Accnt_t
}

var (
	tableMu  sync.Mutex
	procs    = map[defs.Pid_t]*Proc_t{}
	nextPid  defs.Pid_t = 1
	nextTid  defs.Tid_t = 1
)

func allocPid() defs.Pid_t {
	tableMu.Lock()
	defer tableMu.Unlock()
	p := nextPid
	nextPid++
	return p
}

func allocTid() defs.Tid_t {
	tableMu.Lock()
	defer tableMu.Unlock()
	t := nextTid
	nextTid++
	return t
}

// NewProc creates a new, empty process with a fresh address space.
func NewProc(parent *Proc_t) (*Proc_t, defs.Err_t) {
	as, err := vm.NewAddrspace()
	if err != 0 {
		return nil, err
	}
	p := &Proc_t{
		Pid:      allocPid(),
		Vm:       as,
		Fds:      map[int]*fd.Fd_t{},
		Children: map[defs.Pid_t]*Proc_t{},
		Threads:  map[defs.Tid_t]*Thread_t{},
		Parent:   parent,
		waitCh:   make(chan *Proc_t, 32),
	}
	if parent != nil {
		p.Files = parent.Files
		if parent.Cwd != nil {
			parent.Cwd.Lock()
			p.Cwd = &fd.Cwd_t{Fd: parent.Cwd.Fd, Path: append(ustr.Ustr{}, parent.Cwd.Path...)}
			parent.Cwd.Unlock()
		}
	}
	tableMu.Lock()
	procs[p.Pid] = p
	tableMu.Unlock()
	if parent != nil {
		parent.threadMu.Lock()
		parent.Children[p.Pid] = p
		parent.threadMu.Unlock()
	}
	return p, 0
}

// NewThread creates a thread within p, not yet scheduled.
func (p *Proc_t) NewThread() *Thread_t {
	t := &Thread_t{
		Tid:     allocTid(),
		Proc:    p,
		State:   ST_RUNNABLE,
		proceed: make(chan struct{}),
		sleepch: make(chan interface{}, 1),
	}
	p.threadMu.Lock()
	p.Threads[t.Tid] = t
	p.threadMu.Unlock()
	return t
}

// Lookup returns the process with the given pid, if live.
func Lookup(pid defs.Pid_t) (*Proc_t, bool) {
	tableMu.Lock()
	defer tableMu.Unlock()
	p, ok := procs[pid]
	return p, ok
}

// Fork creates a child process that is a copy-on-write duplicate of p,
// with a single thread that will resume at the fork return point. body
// runs as that thread's remaining execution once scheduled.
func (p *Proc_t) Fork(body func(*Thread_t)) (*Proc_t, defs.Err_t) {
	nas, err := p.Vm.Clone()
	if err != 0 {
		return nil, err
	}
	child, err := NewProc(p)
	if err != 0 {
		return nil, err
	}
	child.Vm = nas

	p.fdmu.Lock()
	for n, f := range p.Fds {
		nf, e := fd.Copyfd(f)
		if e != 0 {
			p.fdmu.Unlock()
			return nil, e
		}
		child.Fds[n] = nf
	}
	p.fdmu.Unlock()

	t := child.NewThread()
	Spawn(t, body)
	return child, 0
}

// Exit marks the process as exited with the given status, reparenting
// its children to init (pid 1) and waking whichever parent is blocked
// in Wait.
func (p *Proc_t) Exit(status int) {
	p.threadMu.Lock()
	if p.exited {
		p.threadMu.Unlock()
		return
	}
	p.exited = true
	p.ExitStatus = status
	p.threadMu.Unlock()

	p.Vm.Uvmfree()

	if initp, ok := Lookup(1); ok && p.Pid != 1 {
		p.threadMu.Lock()
		for _, c := range p.Children {
			c.Parent = initp
			initp.threadMu.Lock()
			initp.Children[c.Pid] = c
			initp.threadMu.Unlock()
		}
		p.threadMu.Unlock()
	}

	if p.Parent != nil {
		select {
		case p.Parent.waitCh <- p:
		default:
		}
	}

	tableMu.Lock()
	delete(procs, p.Pid)
	tableMu.Unlock()
}

// Wait blocks until any child of p has exited, returning its pid and
// exit status, or ECHILD if p has no children.
func (p *Proc_t) Wait() (defs.Pid_t, int, defs.Err_t) {
	p.threadMu.Lock()
	n := len(p.Children)
	p.threadMu.Unlock()
	if n == 0 {
		return 0, 0, -defs.ECHILD
	}
	child := <-p.waitCh
	p.threadMu.Lock()
	delete(p.Children, child.Pid)
	p.threadMu.Unlock()
	return child.Pid, child.ExitStatus, 0
}

// Sbrk grows the process heap by delta bytes, returning the previous
// break. A negative delta does not shrink the heap; it changes nothing.
func (p *Proc_t) Sbrk(delta int, curBrk int) (int, defs.Err_t) {
	if delta == 0 {
		return curBrk, 0
	}
	if delta > 0 {
		p.Vm.Vmadd_anon(curBrk, delta, vm.PTE_W)
	}
	return curBrk, 0
}

// Kill marks t for termination; the thread observes this the next
// time it checks Killed() at a syscall boundary or wakes from sleep.
func (t *Thread_t) Kill(sig int) defs.Err_t {
	if sig <= 0 || sig > 64 {
		return -defs.EINVAL
	}
	t.mu.Lock()
	t.killed = true
	t.mu.Unlock()
	select {
	case t.sleepch <- nil:
	default:
	}
	return 0
}

// Killed reports whether t has been marked for termination.
func (t *Thread_t) Killed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.killed
}

// Sleep blocks the calling thread on chan c until something sends on
// it or the thread is killed, matching the wait-channel model:
// whoever owns the resource wakes sleepers by sending on the same
// channel used here.
func (t *Thread_t) Sleep(c chan interface{}) (interface{}, defs.Err_t) {
	t.State = ST_SLEEPING
	since := t.Accnt.Now()
	defer func() {
		t.Accnt.SleepTime(since)
		t.State = ST_RUNNING
	}()
	v, ok := <-c
	if !ok || t.Killed() {
		return nil, -defs.EINTR
	}
	return v, 0
}

// Yield gives up the remainder of the thread's time slice.
func (t *Thread_t) Yield() { runtime.Gosched() }
