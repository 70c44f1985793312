package caller_test

import (
	"strings"
	"testing"

	"keelos/internal/caller"
)

func TestSeenReturnsFalseWhenDisabled(t *testing.T) {
	var dc caller.Distinct
	seen, s := dc.Seen()
	if seen || s != "" {
		t.Fatalf("Seen() on a disabled tracker = %v, %q; want false, \"\"", seen, s)
	}
}

func TestSeenFiresOnceForTheSameCallPath(t *testing.T) {
	dc := caller.Distinct{Enabled: true}
	first, s := dc.Seen()
	if !first || s == "" {
		t.Fatalf("first Seen() = %v, %q; want true, non-empty", first, s)
	}
	second, _ := dc.Seen()
	if second {
		t.Fatal("second Seen() from the same call path reported new")
	}
	if dc.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", dc.Len())
	}
}

func TestSeenHonorsWhitelist(t *testing.T) {
	dc := caller.Distinct{Enabled: true, Whitel: map[string]bool{
		"keelos/internal/caller_test.TestSeenHonorsWhitelist": true,
	}}
	warn := func() (bool, string) { return dc.Seen() }
	seen, _ := warn()
	if seen {
		t.Fatal("Seen() reported new for a whitelisted caller")
	}
}

func TestDistinctCallersProduceDistinctPaths(t *testing.T) {
	dc := caller.Distinct{Enabled: true}
	callA := func() (bool, string) { return dc.Seen() }
	callB := func() (bool, string) { return dc.Seen() }

	seenA, _ := callA()
	seenB, _ := callB()
	if !seenA || !seenB {
		t.Fatalf("two distinct call sites were not both reported new: %v, %v", seenA, seenB)
	}
	if dc.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 distinct call paths", dc.Len())
	}
}

func TestDumpDoesNotPanic(t *testing.T) {
	var b strings.Builder
	b.WriteString("")
	caller.Dump(0)
}
