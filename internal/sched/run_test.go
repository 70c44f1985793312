package sched_test

import (
	"sync/atomic"
	"testing"
	"time"

	"keelos/internal/sched"
)

func TestSpawnRunsThreadBodyToCompletion(t *testing.T) {
	p := freshProc()
	th := p.NewThread()

	var ran int32
	sched.Spawn(th, func(*sched.Thread_t) {
		atomic.StoreInt32(&ran, 1)
	})

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		sched.Run(stop)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&ran) == 0 {
		select {
		case <-deadline:
			close(stop)
			<-done
			t.Fatal("scheduler never ran the spawned thread's body")
		case <-time.After(time.Millisecond):
		}
	}

	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after stop was closed")
	}
}

func TestSpawnedThreadReachesDeadState(t *testing.T) {
	p := freshProc()
	th := p.NewThread()
	sched.Spawn(th, func(*sched.Thread_t) {})

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		sched.Run(stop)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
loop:
	for {
		select {
		case <-deadline:
			break loop
		default:
		}
		if th.State == sched.ST_DEAD {
			break loop
		}
		time.Sleep(time.Millisecond)
	}
	close(stop)
	<-done

	if th.State != sched.ST_DEAD {
		t.Fatalf("thread State = %v, want ST_DEAD", th.State)
	}
}
