package util_test

import (
	"testing"

	"keelos/internal/util"
)

func TestMinMax(t *testing.T) {
	if util.Min(3, 7) != 3 {
		t.Fatal("Min(3, 7) != 3")
	}
	if util.Max(3, 7) != 7 {
		t.Fatal("Max(3, 7) != 7")
	}
	if util.Min(uint32(9), uint32(2)) != 2 {
		t.Fatal("Min over uint32 failed")
	}
}

func TestRoundupRounddown(t *testing.T) {
	cases := []struct{ v, b, up, down int }{
		{0, 8, 0, 0},
		{1, 8, 8, 0},
		{8, 8, 8, 8},
		{9, 8, 16, 8},
	}
	for _, c := range cases {
		if got := util.Roundup(c.v, c.b); got != c.up {
			t.Errorf("Roundup(%d, %d) = %d, want %d", c.v, c.b, got, c.up)
		}
		if got := util.Rounddown(c.v, c.b); got != c.down {
			t.Errorf("Rounddown(%d, %d) = %d, want %d", c.v, c.b, got, c.down)
		}
	}
}

func TestReadnWritenRoundtrip(t *testing.T) {
	buf := make([]uint8, 16)
	util.Writen(buf, 4, 2, 0x11223344)
	if got := util.Readn(buf, 4, 2); got != 0x11223344 {
		t.Fatalf("Readn after Writen(sz=4) = %#x, want 0x11223344", got)
	}

	util.Writen(buf, 1, 0, 0xab)
	if got := util.Readn(buf, 1, 0); got != 0xab {
		t.Fatalf("Readn after Writen(sz=1) = %#x, want 0xab", got)
	}

	util.Writen(buf, 2, 6, 0x1234)
	if got := util.Readn(buf, 2, 6); got != 0x1234 {
		t.Fatalf("Readn after Writen(sz=2) = %#x, want 0x1234", got)
	}
}

func TestReadnOutOfBoundsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Readn past the end of the buffer did not panic")
		}
	}()
	buf := make([]uint8, 2)
	util.Readn(buf, 4, 0)
}
