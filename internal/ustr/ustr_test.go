package ustr_test

import (
	"testing"

	"keelos/internal/ustr"
)

func TestSplitSkipsRepeatedSlashes(t *testing.T) {
	parts := ustr.Ustr("/a//b/c/").Split()
	if len(parts) != 3 {
		t.Fatalf("Split returned %d parts, want 3: %v", len(parts), parts)
	}
	for i, want := range []string{"a", "b", "c"} {
		if parts[i].String() != want {
			t.Fatalf("part %d = %q, want %q", i, parts[i], want)
		}
	}
}

func TestEq(t *testing.T) {
	if !ustr.Ustr("abc").Eq(ustr.Ustr("abc")) {
		t.Fatal("identical Ustrs compared unequal")
	}
	if ustr.Ustr("abc").Eq(ustr.Ustr("abd")) {
		t.Fatal("differing Ustrs compared equal")
	}
	if ustr.Ustr("ab").Eq(ustr.Ustr("abc")) {
		t.Fatal("Ustrs of differing length compared equal")
	}
}

func TestIsdotIsdotdot(t *testing.T) {
	if !ustr.Ustr(".").Isdot() {
		t.Fatal(`"." did not report Isdot`)
	}
	if ustr.Ustr("..").Isdot() {
		t.Fatal(`".." reported Isdot`)
	}
	if !ustr.Ustr("..").Isdotdot() {
		t.Fatal(`".." did not report Isdotdot`)
	}
}

func TestIsAbsolute(t *testing.T) {
	if !ustr.Ustr("/a").IsAbsolute() {
		t.Fatal(`"/a" not reported absolute`)
	}
	if ustr.Ustr("a").IsAbsolute() {
		t.Fatal(`"a" reported absolute`)
	}
	if ustr.MkUstr().IsAbsolute() {
		t.Fatal("empty Ustr reported absolute")
	}
}

func TestExtend(t *testing.T) {
	got := ustr.Ustr("/a").ExtendStr("b")
	if got.String() != "/a/b" {
		t.Fatalf("Extend result = %q, want /a/b", got)
	}
}

func TestMkUstrSliceTruncatesAtNUL(t *testing.T) {
	buf := []uint8{'h', 'i', 0, 'x', 'x'}
	got := ustr.MkUstrSlice(buf)
	if got.String() != "hi" {
		t.Fatalf("MkUstrSlice = %q, want hi", got)
	}
}
