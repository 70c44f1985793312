package scall_test

import (
	"testing"

	"keelos/internal/defs"
	"keelos/internal/scall"
	"keelos/internal/sched"
)

func freshThread() *sched.Thread_t {
	p := &sched.Proc_t{Threads: map[defs.Tid_t]*sched.Thread_t{}}
	return p.NewThread()
}

func TestDispatchUnregisteredSyscallReturnsENOSYS(t *testing.T) {
	th := freshThread()
	got := scall.Dispatch(th, 9999, 0, 0, 0, 0, 0)
	if got != int(-defs.ENOSYS) {
		t.Fatalf("Dispatch(out-of-range) = %d, want -ENOSYS", got)
	}
}

func TestDispatchRoutesToRegisteredHandler(t *testing.T) {
	scall.Register(scall.SYS_GETPID, func(t *sched.Thread_t, a1, a2, a3, a4, a5 int) int {
		return a1 + a2
	})
	th := freshThread()
	got := scall.Dispatch(th, scall.SYS_GETPID, 3, 4, 0, 0, 0)
	if got != 7 {
		t.Fatalf("Dispatch(SYS_GETPID, 3, 4) = %d, want 7", got)
	}
}

func TestDispatchOnKilledThreadReturnsEINTR(t *testing.T) {
	scall.Register(scall.SYS_DUP2, func(t *sched.Thread_t, a1, a2, a3, a4, a5 int) int {
		return 0
	})
	th := freshThread()
	th.Kill(9)
	got := scall.Dispatch(th, scall.SYS_DUP2, 0, 0, 0, 0, 0)
	if got != int(-defs.EINTR) {
		t.Fatalf("Dispatch on a killed thread = %d, want -EINTR", got)
	}
}

func TestRegisterPanicsOnBadSyscallNumber(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Register with an out-of-range number did not panic")
		}
	}()
	scall.Register(-1, func(t *sched.Thread_t, a1, a2, a3, a4, a5 int) int { return 0 })
}
