package limits_test

import (
	"testing"

	"keelos/internal/limits"
)

func TestTakenStopsAtZero(t *testing.T) {
	var s limits.Sysatomic_t = 2
	if !s.Taken(2) {
		t.Fatal("Taken(2) on a limit of 2 was rejected")
	}
	if s.Taken(1) {
		t.Fatal("Taken(1) on an exhausted limit succeeded")
	}
}

func TestTakenRefundsOnFailure(t *testing.T) {
	var s limits.Sysatomic_t = 1
	before := limits.Lhits
	if s.Taken(5) {
		t.Fatal("Taken(5) on a limit of 1 unexpectedly succeeded")
	}
	if !s.Take() {
		t.Fatal("a single Take() after a failed Taken should still succeed: the limit was not refunded")
	}
	if limits.Lhits != before+1 {
		t.Fatalf("Lhits = %d, want %d after one failed Taken", limits.Lhits, before+1)
	}
}

func TestGiveIncrementsLimit(t *testing.T) {
	var s limits.Sysatomic_t
	s.Give()
	if !s.Take() {
		t.Fatal("Take() failed immediately after Give()")
	}
}

func TestMkSysLimitDefaults(t *testing.T) {
	sl := limits.MkSysLimit()
	if sl.Sysprocs <= 0 || sl.Vnodes <= 0 || sl.Blocks <= 0 {
		t.Fatalf("MkSysLimit produced a non-positive ceiling: %+v", sl)
	}
	if !sl.Pipes.Take() {
		t.Fatal("default pipe limit rejected a single Take()")
	}
}
