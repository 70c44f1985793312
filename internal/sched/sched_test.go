package sched_test

import (
	"testing"
	"time"

	"keelos/internal/defs"
	"keelos/internal/sched"
)

func freshProc() *sched.Proc_t {
	return &sched.Proc_t{Threads: map[defs.Tid_t]*sched.Thread_t{}}
}

func TestNewThreadRegistersInProcThreadTable(t *testing.T) {
	p := freshProc()
	th := p.NewThread()
	if th.Proc != p {
		t.Fatal("new thread's Proc does not point back to its owner")
	}
	if p.Threads[th.Tid] != th {
		t.Fatal("new thread was not recorded in its process's thread table")
	}
	if th.State != sched.ST_RUNNABLE {
		t.Fatalf("new thread state = %v, want ST_RUNNABLE", th.State)
	}
}

func TestNewThreadAllocatesDistinctTids(t *testing.T) {
	p := freshProc()
	a := p.NewThread()
	b := p.NewThread()
	if a.Tid == b.Tid {
		t.Fatal("two threads were given the same Tid")
	}
}

func TestKillMarksThreadKilled(t *testing.T) {
	p := freshProc()
	th := p.NewThread()
	if th.Killed() {
		t.Fatal("fresh thread reports Killed")
	}
	if err := th.Kill(9); err != 0 {
		t.Fatalf("Kill: errno %d", err)
	}
	if !th.Killed() {
		t.Fatal("Kill did not mark the thread killed")
	}
}

func TestKillRejectsInvalidSignal(t *testing.T) {
	p := freshProc()
	th := p.NewThread()
	if err := th.Kill(0); err != -defs.EINVAL {
		t.Fatalf("Kill(0): errno %d, want -EINVAL", err)
	}
	if err := th.Kill(65); err != -defs.EINVAL {
		t.Fatalf("Kill(65): errno %d, want -EINVAL", err)
	}
}

func TestSleepWakesOnSend(t *testing.T) {
	p := freshProc()
	th := p.NewThread()
	c := make(chan interface{}, 1)
	c <- "payload"

	v, err := th.Sleep(c)
	if err != 0 {
		t.Fatalf("Sleep: errno %d", err)
	}
	if v.(string) != "payload" {
		t.Fatalf("Sleep returned %v, want payload", v)
	}
	if th.State != sched.ST_RUNNING {
		t.Fatalf("State after Sleep = %v, want ST_RUNNING", th.State)
	}
}

func TestSleepReturnsEINTRWhenChannelClosed(t *testing.T) {
	p := freshProc()
	th := p.NewThread()
	c := make(chan interface{})
	close(c)

	_, err := th.Sleep(c)
	if err != -defs.EINTR {
		t.Fatalf("Sleep on a closed channel: errno %d, want -EINTR", err)
	}
}

func TestSleepReturnsEINTRWhenAlreadyKilled(t *testing.T) {
	p := freshProc()
	th := p.NewThread()
	th.Kill(9)

	c := make(chan interface{}, 1)
	c <- "ignored"
	_, err := th.Sleep(c)
	if err != -defs.EINTR {
		t.Fatalf("Sleep on a killed thread: errno %d, want -EINTR", err)
	}
}

func TestSleepBlocksUntilSendArrives(t *testing.T) {
	p := freshProc()
	th := p.NewThread()
	c := make(chan interface{})
	done := make(chan struct{})

	go func() {
		th.Sleep(c)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Sleep returned before anything was sent")
	case <-time.After(50 * time.Millisecond):
	}

	c <- "go"
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Sleep never woke up after a send")
	}
}
