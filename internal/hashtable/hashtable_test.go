package hashtable_test

import (
	"testing"

	"keelos/internal/hashtable"
	"keelos/internal/ustr"
)

func TestSetGetRoundtrip(t *testing.T) {
	ht := hashtable.MkHash(4)
	if _, ok := ht.Set("a", 1); !ok {
		t.Fatal("first Set of a fresh key reported an existing value")
	}
	v, ok := ht.Get("a")
	if !ok || v.(int) != 1 {
		t.Fatalf("Get(a) = %v, %v; want 1, true", v, ok)
	}
}

func TestSetExistingKeyReturnsOldValue(t *testing.T) {
	ht := hashtable.MkHash(4)
	ht.Set("a", 1)
	old, inserted := ht.Set("a", 2)
	if inserted {
		t.Fatal("Set on an existing key reported an insert")
	}
	if old.(int) != 1 {
		t.Fatalf("Set returned %v, want the prior value 1", old)
	}
	v, _ := ht.Get("a")
	if v.(int) != 1 {
		t.Fatalf("Get(a) = %v after a failed overwrite, want unchanged 1", v)
	}
}

func TestDelRemovesKey(t *testing.T) {
	ht := hashtable.MkHash(4)
	ht.Set("a", 1)
	ht.Del("a")
	if _, ok := ht.Get("a"); ok {
		t.Fatal("Get found a key after Del")
	}
}

func TestDelOfMissingKeyPanics(t *testing.T) {
	ht := hashtable.MkHash(4)
	defer func() {
		if recover() == nil {
			t.Fatal("Del of a missing key did not panic")
		}
	}()
	ht.Del("nope")
}

func TestSizeAndElemsReflectContents(t *testing.T) {
	ht := hashtable.MkHash(4)
	ht.Set(1, "one")
	ht.Set(2, "two")
	ht.Set(ustr.Ustr("three"), 3)

	if ht.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", ht.Size())
	}
	pairs := ht.Elems()
	if len(pairs) != 3 {
		t.Fatalf("Elems() returned %d pairs, want 3", len(pairs))
	}
}

func TestIterStopsWhenCallbackReturnsTrue(t *testing.T) {
	ht := hashtable.MkHash(4)
	ht.Set(1, "a")
	ht.Set(2, "b")
	ht.Set(3, "c")

	seen := 0
	stopped := ht.Iter(func(k, v interface{}) bool {
		seen++
		return seen == 1
	})
	if !stopped {
		t.Fatal("Iter did not report early stop")
	}
	if seen != 1 {
		t.Fatalf("Iter invoked callback %d times after a true return, want 1", seen)
	}
}

func TestUstrKeysCompareByContent(t *testing.T) {
	ht := hashtable.MkHash(4)
	ht.Set(ustr.Ustr("hello"), 42)
	v, ok := ht.Get(ustr.Ustr("hello"))
	if !ok || v.(int) != 42 {
		t.Fatalf("Get with an equal-but-distinct Ustr = %v, %v; want 42, true", v, ok)
	}
}
