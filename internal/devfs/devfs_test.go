package devfs_test

import (
	"bytes"
	"testing"

	"keelos/internal/defs"
	"keelos/internal/devfs"
)

// byteUio is a minimal fdops.Userio_i over a plain byte slice, used in
// place of a real user-memory cursor for these tests.
type byteUio struct {
	buf []byte
	off int
}

func newByteUio(data []byte) *byteUio { return &byteUio{buf: append([]byte(nil), data...)} }

func (u *byteUio) Uioread(dst []uint8) (int, defs.Err_t) {
	n := copy(dst, u.buf[u.off:])
	u.off += n
	return n, 0
}

func (u *byteUio) Uiowrite(src []uint8) (int, defs.Err_t) {
	u.buf = append(u.buf[:u.off], src...)
	u.off += len(src)
	return len(src), 0
}

func (u *byteUio) Remain() int { return len(u.buf) - u.off }

func (u *byteUio) Totalsz() int { return len(u.buf) }

func TestNullDeviceDiscardsWritesAndReadsEmpty(t *testing.T) {
	dir := devfs.New()
	dir.Register("null", devfs.NewNull())

	di, err := dir.Lookup("null")
	if err != 0 {
		t.Fatalf("Lookup(null): errno %d", err)
	}
	f, err := di.Open(0)
	if err != 0 {
		t.Fatalf("Open: errno %d", err)
	}

	src := newByteUio([]byte("discarded"))
	n, err := f.Write(src)
	if err != 0 || n != len("discarded") {
		t.Fatalf("Write to /dev/null: n=%d errno=%d", n, err)
	}

	dst := newByteUio(make([]byte, 16))
	n, err = f.Read(dst)
	if err != 0 || n != 0 {
		t.Fatalf("Read from /dev/null: n=%d errno=%d, want 0,0", n, err)
	}
}

func TestKeyboardQueueDrainsInOrder(t *testing.T) {
	kbd := devfs.NewKeyboard()
	kbd.PushScancode('a')
	kbd.PushScancode('b')

	dir := devfs.New()
	dir.Register("kbd", kbd)
	di, err := dir.Lookup("kbd")
	if err != 0 {
		t.Fatalf("Lookup(kbd): errno %d", err)
	}
	f, err := di.Open(0)
	if err != 0 {
		t.Fatalf("Open: errno %d", err)
	}

	dst := newByteUio(make([]byte, 16))
	n, err := f.Read(dst)
	if err != 0 {
		t.Fatalf("Read: errno %d", err)
	}
	if !bytes.Equal(dst.buf[:n], []byte("ab")) {
		t.Fatalf("Read returned %q, want \"ab\"", dst.buf[:n])
	}

	// the queue is drained; a second read returns nothing.
	dst2 := newByteUio(make([]byte, 16))
	n2, err := f.Read(dst2)
	if err != 0 || n2 != 0 {
		t.Fatalf("second Read: n=%d errno=%d, want 0,0", n2, err)
	}
}

func TestStatFileRendersAccountingSnapshot(t *testing.T) {
	src := fixedStatSource("user_ns=1 sys_ns=2\n")
	dir := devfs.New()
	dir.Register("stat", devfs.NewStatFile(src))

	di, err := dir.Lookup("stat")
	if err != 0 {
		t.Fatalf("Lookup(stat): errno %d", err)
	}
	f, err := di.Open(0)
	if err != 0 {
		t.Fatalf("Open: errno %d", err)
	}
	dst := newByteUio(make([]byte, 64))
	n, err := f.Read(dst)
	if err != 0 {
		t.Fatalf("Read: errno %d", err)
	}
	if string(dst.buf[:n]) != string(src) {
		t.Fatalf("Read returned %q, want %q", dst.buf[:n], src)
	}

	// /dev/stat is read-only.
	if _, err := f.Write(newByteUio([]byte("x"))); err != -defs.EROFS {
		t.Fatalf("Write to /dev/stat returned errno %d, want -EROFS", err)
	}
}

type fixedStatSource string

func (s fixedStatSource) String() string { return string(s) }

func TestLookupMissingDeviceFails(t *testing.T) {
	dir := devfs.New()
	if _, err := dir.Lookup("nope"); err != -defs.ENOENT {
		t.Fatalf("Lookup of a missing device returned errno %d, want -ENOENT", err)
	}
}

func TestReaddirListsEveryRegisteredDevice(t *testing.T) {
	dir := devfs.New()
	dir.Register("null", devfs.NewNull())
	dir.Register("kbd", devfs.NewKeyboard())

	names, err := dir.Readdir()
	if err != 0 {
		t.Fatalf("Readdir: errno %d", err)
	}
	seen := map[string]bool{}
	for _, n := range names {
		seen[n] = true
	}
	if !seen["null"] || !seen["kbd"] {
		t.Fatalf("Readdir = %v, want both null and kbd", names)
	}
}
