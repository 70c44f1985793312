package bpath_test

import (
	"testing"

	"keelos/internal/bpath"
	"keelos/internal/ustr"
)

func TestCanonicalizeCollapsesDotAndDotDot(t *testing.T) {
	cases := map[string]string{
		"/a/./b":     "/a/b",
		"/a/../b":    "/b",
		"/a/b/../..": "/",
		"/a//b":      "/a/b",
		"/":          "/",
		"/../../a":   "/a",
	}
	for in, want := range cases {
		got := bpath.Canonicalize(ustr.Ustr(in))
		if got.String() != want {
			t.Errorf("Canonicalize(%q) = %q, want %q", in, got, want)
		}
	}
}
