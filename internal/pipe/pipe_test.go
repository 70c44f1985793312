package pipe_test

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"keelos/internal/defs"
	"keelos/internal/mem"
	"keelos/internal/pipe"
)

// fakePager is a mem.Page_i that hands out plain Go-allocated pages
// instead of real physical memory, so pipe tests don't need the direct
// map installed.
type fakePager struct {
	mu    sync.Mutex
	pages map[mem.Pa_t]*mem.Pg_t
	refs  map[mem.Pa_t]int
	next  mem.Pa_t
}

func newFakePager() *fakePager {
	return &fakePager{pages: map[mem.Pa_t]*mem.Pg_t{}, refs: map[mem.Pa_t]int{}}
}

func (p *fakePager) Refpg_new() (*mem.Pg_t, mem.Pa_t, bool) {
	return p.Refpg_new_nozero()
}

func (p *fakePager) Refpg_new_nozero() (*mem.Pg_t, mem.Pa_t, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	pa := p.next
	pg := &mem.Pg_t{}
	p.pages[pa] = pg
	p.refs[pa] = 1
	return pg, pa, true
}

func (p *fakePager) Refcnt(pa mem.Pa_t) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refs[pa]
}

func (p *fakePager) Dmap(pa mem.Pa_t) *mem.Pg_t {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pages[pa]
}

func (p *fakePager) Refup(pa mem.Pa_t) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refs[pa]++
}

func (p *fakePager) Refdown(pa mem.Pa_t) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refs[pa]--
	return p.refs[pa] == 0
}

// byteUio is a minimal fdops.Userio_i over a plain byte slice.
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

func TestWriteThenReadRoundtrip(t *testing.T) {
	p, err := pipe.MkPipe(newFakePager())
	if err != 0 {
		t.Fatalf("MkPipe: errno %d", err)
	}
	r, w := pipe.Ends(p)

	n, err := w.Write(newByteUio([]byte("hello")))
	if err != 0 || n != 5 {
		t.Fatalf("Write: n=%d errno=%d", n, err)
	}

	dst := newByteUio(make([]byte, 5))
	n, err = r.Read(dst)
	if err != 0 || n != 5 {
		t.Fatalf("Read: n=%d errno=%d", n, err)
	}
	if !bytes.Equal(dst.buf[:n], []byte("hello")) {
		t.Fatalf("Read returned %q, want hello", dst.buf[:n])
	}
}

func TestReadReturnsEOFAfterWriterCloses(t *testing.T) {
	p, err := pipe.MkPipe(newFakePager())
	if err != 0 {
		t.Fatalf("MkPipe: errno %d", err)
	}
	r, w := pipe.Ends(p)
	if err := w.Close(); err != 0 {
		t.Fatalf("Close writer: errno %d", err)
	}

	dst := newByteUio(make([]byte, 4))
	n, err := r.Read(dst)
	if err != 0 || n != 0 {
		t.Fatalf("Read on an empty pipe with no writers: n=%d errno=%d, want 0,0 (EOF)", n, err)
	}
}

func TestWriteAfterReaderClosesReturnsEPIPE(t *testing.T) {
	p, err := pipe.MkPipe(newFakePager())
	if err != 0 {
		t.Fatalf("MkPipe: errno %d", err)
	}
	r, w := pipe.Ends(p)
	if err := r.Close(); err != 0 {
		t.Fatalf("Close reader: errno %d", err)
	}

	_, err = w.Write(newByteUio([]byte("x")))
	if err != -defs.EPIPE {
		t.Fatalf("Write after every reader closed returned errno %d, want -EPIPE", err)
	}
}

func TestReadBlocksUntilWriteArrives(t *testing.T) {
	p, err := pipe.MkPipe(newFakePager())
	if err != 0 {
		t.Fatalf("MkPipe: errno %d", err)
	}
	r, w := pipe.Ends(p)

	done := make(chan struct{})
	var n int
	var rerr defs.Err_t
	go func() {
		dst := newByteUio(make([]byte, 3))
		n, rerr = r.Read(dst)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Read returned before any data was written")
	case <-time.After(50 * time.Millisecond):
	}

	if _, err := w.Write(newByteUio([]byte("hey"))); err != 0 {
		t.Fatalf("Write: errno %d", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Read never woke up after a write arrived")
	}
	if rerr != 0 || n != 3 {
		t.Fatalf("Read: n=%d errno=%d, want 3,0", n, rerr)
	}
}
