package cpu_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"keelos/internal/cpu"
)

func TestBringupBSPRegistersBootProcessor(t *testing.T) {
	before := cpu.NCPU()
	p := cpu.BringupBSP(0)
	if !p.BSP || !p.Started {
		t.Fatalf("BringupBSP returned %+v, want BSP and Started set", p)
	}
	if cpu.NCPU() != before+1 {
		t.Fatalf("NCPU() = %d, want %d", cpu.NCPU(), before+1)
	}
}

func TestBringupAPsStartsEveryProcessor(t *testing.T) {
	before := cpu.NCPU()
	started := map[uint32]bool{}
	var mu sync.Mutex
	err := cpu.BringupAPs(context.Background(), []uint32{1, 2, 3}, func(id uint32) error {
		mu.Lock()
		started[id] = true
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("BringupAPs: %v", err)
	}
	if len(started) != 3 {
		t.Fatalf("started %d APs, want 3", len(started))
	}
	if cpu.NCPU() != before+3 {
		t.Fatalf("NCPU() = %d, want %d", cpu.NCPU(), before+3)
	}
}

func TestBringupAPsPropagatesStartupError(t *testing.T) {
	boom := errors.New("boom")
	err := cpu.BringupAPs(context.Background(), []uint32{99}, func(id uint32) error {
		return boom
	})
	if err == nil {
		t.Fatal("BringupAPs swallowed a startOne error")
	}
}

func TestDetectFeaturesReportsAPIC(t *testing.T) {
	f := cpu.DetectFeatures()
	if !f.HasAPIC {
		t.Fatal("DetectFeatures reported HasAPIC false; this kernel always assumes an APIC")
	}
}

func TestDispatchRunsRegisteredHandler(t *testing.T) {
	var gotVec int
	var gotCode uint64
	cpu.SetHandler(cpu.VecBreakpoint, func(vector int, errcode uint64) {
		gotVec, gotCode = vector, errcode
	})
	cpu.Dispatch(cpu.VecBreakpoint, 0xabc)
	if gotVec != cpu.VecBreakpoint || gotCode != 0xabc {
		t.Fatalf("handler saw (%d, %#x), want (%d, 0xabc)", gotVec, gotCode, cpu.VecBreakpoint)
	}
}

func TestDispatchPanicsOnUnhandledVector(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Dispatch on an unregistered vector did not panic")
		}
	}()
	cpu.Dispatch(cpu.VecOverflow, 0)
}
