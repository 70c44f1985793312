package sched

import (
	"sync"
	"time"
)

// Quantum is the preemption time slice given to each RUNNING thread.
const Quantum = 10 * time.Millisecond

var (
	runQ   []*Thread_t
	runMu  sync.Mutex
	runCh  = make(chan struct{}, 1)
)

// Spawn registers t as runnable and starts its goroutine; body is its
// kernel-mode entry point. The thread does not actually execute body
// until the scheduler hands it the proceed token, so Spawn is safe to
// call before the scheduler loop has started.
func Spawn(t *Thread_t, body func(*Thread_t)) {
	enqueue(t)
	go func() {
		<-t.proceed
		t.State = ST_RUNNING
		body(t)
		t.mu.Lock()
		t.State = ST_DEAD
		t.mu.Unlock()
		kick()
	}()
}

func enqueue(t *Thread_t) {
	runMu.Lock()
	runQ = append(runQ, t)
	runMu.Unlock()
	kick()
}

func kick() {
	select {
	case runCh <- struct{}{}:
	default:
	}
}

// Run is the scheduler's main loop: round-robin over runnable threads,
// giving each one Quantum before moving on. It returns only once stop
// is closed; callers run it on a dedicated goroutine per CPU.
func Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		t := dequeueRunnable()
		if t == nil {
			select {
			case <-runCh:
			case <-stop:
				return
			}
			continue
		}
		t.proceed <- struct{}{}
		timer := time.NewTimer(Quantum)
		select {
		case <-timer.C:
			// preempted: thread is still RUNNING from its own
			// perspective until it next checks in; re-enqueue it so
			// it gets another turn once it yields or blocks.
		case <-threadDone(t):
			timer.Stop()
		}
		t.mu.Lock()
		dead := t.State == ST_DEAD
		sleeping := t.State == ST_SLEEPING
		t.mu.Unlock()
		if !dead && !sleeping {
			enqueue(t)
		}
	}
}

// threadDone signals once t leaves the RUNNING state (it yielded,
// slept, or exited) so Run does not have to wait the full quantum for
// a thread that gives up the CPU early.
func threadDone(t *Thread_t) <-chan struct{} {
	c := make(chan struct{})
	go func() {
		for {
			t.mu.Lock()
			s := t.State
			t.mu.Unlock()
			if s != ST_RUNNING {
				close(c)
				return
			}
			time.Sleep(100 * time.Microsecond)
		}
	}()
	return c
}

func dequeueRunnable() *Thread_t {
	runMu.Lock()
	defer runMu.Unlock()
	for i, t := range runQ {
		t.mu.Lock()
		runnable := t.State == ST_RUNNABLE
		t.mu.Unlock()
		if runnable {
			runQ = append(runQ[:i], runQ[i+1:]...)
			return t
		}
	}
	return nil
}
