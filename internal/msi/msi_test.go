package msi_test

import (
	"testing"

	"keelos/internal/msi"
)

func TestAllocReturnsDistinctVectors(t *testing.T) {
	seen := map[msi.Msivec_t]bool{}
	var got []msi.Msivec_t
	for i := 0; i < 8; i++ {
		v := msi.Alloc()
		if seen[v] {
			t.Fatalf("Alloc returned vector %d twice", v)
		}
		seen[v] = true
		got = append(got, v)
	}
	for _, v := range got {
		msi.Free(v)
	}
}

func TestAllocPanicsWhenExhausted(t *testing.T) {
	var got []msi.Msivec_t
	defer func() {
		for _, v := range got {
			msi.Free(v)
		}
		if recover() == nil {
			t.Fatal("Alloc past the last available vector did not panic")
		}
	}()
	for i := 0; i < 9; i++ {
		got = append(got, msi.Alloc())
	}
}

func TestFreeOfAvailableVectorPanics(t *testing.T) {
	v := msi.Alloc()
	msi.Free(v)
	defer func() {
		if recover() == nil {
			t.Fatal("double Free did not panic")
		}
	}()
	msi.Free(v)
}
