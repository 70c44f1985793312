package scall

import (
	"keelos/internal/defs"
	"keelos/internal/sched"
)

func init() {
	Register(SYS_FORK, sysFork)
	Register(SYS_EXIT, sysExit)
	Register(SYS_WAIT4, sysWait4)
	Register(SYS_GETPID, sysGetpid)
	Register(SYS_SBRK, sysSbrk)
	Register(SYS_KILL, sysKill)
	Register(SYS_CLOSE, sysClose)
	Register(SYS_READ, sysRead)
	Register(SYS_WRITE, sysWrite)
}

func sysFork(t *sched.Thread_t, a1, a2, a3, a4, a5 int) int {
	child, err := t.Proc.Fork(func(ct *sched.Thread_t) {
		// the child resumes here with SYS_FORK returning 0; real
		// hardware resumes at the parent's saved user RIP via the
		// cloned trapframe, which this rewrite keeps in Thread_t's
		// owner-supplied resume closure rather than a raw stack copy.
	})
	if err != 0 {
		return int(err)
	}
	return int(child.Pid)
}

func sysExit(t *sched.Thread_t, status, a2, a3, a4, a5 int) int {
	t.Proc.Exit(status)
	return 0
}

func sysWait4(t *sched.Thread_t, a1, a2, a3, a4, a5 int) int {
	pid, status, err := t.Proc.Wait()
	if err != 0 {
		return int(err)
	}
	_ = status
	return int(pid)
}

func sysGetpid(t *sched.Thread_t, a1, a2, a3, a4, a5 int) int {
	return int(t.Proc.Pid)
}

func sysSbrk(t *sched.Thread_t, delta, a2, a3, a4, a5 int) int {
	brk, err := t.Proc.Sbrk(delta, a2)
	if err != 0 {
		return int(err)
	}
	return brk
}

func sysKill(t *sched.Thread_t, pid, sig, a3, a4, a5 int) int {
	p, ok := sched.Lookup(defs.Pid_t(pid))
	if !ok {
		return int(-defs.ESRCH)
	}
	var rerr defs.Err_t
	for _, th := range p.Threads {
		if e := th.Kill(sig); e != 0 {
			rerr = e
		}
	}
	return int(rerr)
}

func sysClose(t *sched.Thread_t, fdn, a2, a3, a4, a5 int) int {
	f, ok := t.Proc.Fds[fdn]
	if !ok {
		return int(-defs.EBADF)
	}
	delete(t.Proc.Fds, fdn)
	return int(f.Fops.Close())
}

func sysRead(t *sched.Thread_t, fdn, uva, n, a4, a5 int) int {
	f, ok := t.Proc.Fds[fdn]
	if !ok {
		return int(-defs.EBADF)
	}
	ub := t.Proc.Vm.Mkuserbuf(uva, n)
	c, err := f.Fops.Read(ub)
	if err != 0 {
		return int(err)
	}
	return c
}

func sysWrite(t *sched.Thread_t, fdn, uva, n, a4, a5 int) int {
	f, ok := t.Proc.Fds[fdn]
	if !ok {
		return int(-defs.EBADF)
	}
	ub := t.Proc.Vm.Mkuserbuf(uva, n)
	c, err := f.Fops.Write(ub)
	if err != 0 {
		return int(err)
	}
	return c
}
