// Package pipe implements anonymous pipe IPC: a shared circbuf.Circbuf_t
// ring with blocking reader/writer ends that wake every waiter on each
// other's progress (a thundering herd on a shared pipe is rare enough,
// and simple enough to reason about, that a single sync.Cond broadcast
// beats a fairness queue here).
package pipe

import (
	"sync"

	"keelos/internal/circbuf"
	"keelos/internal/defs"
	"keelos/internal/fdops"
	"keelos/internal/mem"
)

const pipesz = mem.PGSIZE

// Pipe_t is the shared state behind both ends of one pipe.
type Pipe_t struct {
	mu      sync.Mutex
	cond    *sync.Cond
	cbuf    circbuf.Circbuf_t
	readers int
	writers int
}

// MkPipe allocates a pipe's shared ring buffer (lazily backed, per
// circbuf's own allocation-on-first-use rule) and returns it with one
// reader and one writer reference already held.
func MkPipe(m mem.Page_i) (*Pipe_t, defs.Err_t) {
	p := &Pipe_t{readers: 1, writers: 1}
	p.cond = sync.NewCond(&p.mu)
	if err := p.cbuf.Init(pipesz, m); err != 0 {
		return nil, err
	}
	return p, 0
}

// ReadEnd and WriteEnd are the two file descriptions opening a pipe
// produces; each holds a reference to the shared Pipe_t and releases
// it on Close.
type ReadEnd struct {
	fdops.NetUnsupported
	fdops.NoIoctl
	p *Pipe_t
}

type WriteEnd struct {
	fdops.NetUnsupported
	fdops.NoIoctl
	p *Pipe_t
}

// Ends returns the (read, write) file descriptions for a freshly made
// pipe.
func Ends(p *Pipe_t) (*ReadEnd, *WriteEnd) {
	return &ReadEnd{p: p}, &WriteEnd{p: p}
}

func (r *ReadEnd) Close() defs.Err_t {
	r.p.mu.Lock()
	r.p.readers--
	dead := r.p.readers == 0
	r.p.cond.Broadcast()
	r.p.mu.Unlock()
	if dead {
		r.p.cbuf.Release()
	}
	return 0
}

func (w *WriteEnd) Close() defs.Err_t {
	w.p.mu.Lock()
	w.p.writers--
	dead := w.p.readers == 0 && w.p.writers == 0
	w.p.cond.Broadcast()
	w.p.mu.Unlock()
	if dead {
		w.p.cbuf.Release()
	}
	return 0
}

// Read blocks until the pipe has data, the last writer closes (EOF,
// returning 0), or the pipe is fully closed out from under it.
func (r *ReadEnd) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	p := r.p
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.cbuf.Empty() {
		if p.writers == 0 {
			return 0, 0
		}
		p.cond.Wait()
	}
	n, err := p.cbuf.Copyout(dst)
	p.cond.Broadcast()
	return n, err
}

// Write blocks until there is room, returning EPIPE once every reader
// has gone away.
func (w *WriteEnd) Write(src fdops.Userio_i) (int, defs.Err_t) {
	p := w.p
	total := 0
	for src.Remain() > 0 {
		p.mu.Lock()
		for p.cbuf.Full() {
			if p.readers == 0 {
				p.mu.Unlock()
				return total, -defs.EPIPE
			}
			p.cond.Wait()
		}
		if p.readers == 0 {
			p.mu.Unlock()
			return total, -defs.EPIPE
		}
		n, err := p.cbuf.Copyin(src)
		p.cond.Broadcast()
		p.mu.Unlock()
		if err != 0 {
			return total, err
		}
		total += n
		if n == 0 {
			break
		}
	}
	return total, 0
}

func (r *ReadEnd) Fstat(st fdops.StatWriter) defs.Err_t {
	st.Wmode(0010000)
	return 0
}
func (w *WriteEnd) Fstat(st fdops.StatWriter) defs.Err_t {
	st.Wmode(0010000)
	return 0
}

func (r *ReadEnd) Lseek(off int, whence int) (int, defs.Err_t)  { return 0, -defs.ESPIPE }
func (w *WriteEnd) Lseek(off int, whence int) (int, defs.Err_t) { return 0, -defs.ESPIPE }

func (r *ReadEnd) Mmapi(off, len int, inhibit bool) ([]fdops.MmapInfo, defs.Err_t) {
	return nil, -defs.EINVAL
}
func (w *WriteEnd) Mmapi(off, len int, inhibit bool) ([]fdops.MmapInfo, defs.Err_t) {
	return nil, -defs.EINVAL
}

func (r *ReadEnd) Pathi() fdops.PathResolver  { return nil }
func (w *WriteEnd) Pathi() fdops.PathResolver { return nil }

func (r *ReadEnd) Reopen() defs.Err_t {
	r.p.mu.Lock()
	r.p.readers++
	r.p.mu.Unlock()
	return 0
}
func (w *WriteEnd) Reopen() defs.Err_t {
	w.p.mu.Lock()
	w.p.writers++
	w.p.mu.Unlock()
	return 0
}

func (r *ReadEnd) Write(src fdops.Userio_i) (int, defs.Err_t)  { return 0, -defs.EBADF }
func (w *WriteEnd) Read(dst fdops.Userio_i) (int, defs.Err_t)  { return 0, -defs.EBADF }

func (r *ReadEnd) Fullpath() (string, defs.Err_t)  { return "", -defs.EINVAL }
func (w *WriteEnd) Fullpath() (string, defs.Err_t) { return "", -defs.EINVAL }

func (r *ReadEnd) Truncate(newlen uint) defs.Err_t  { return -defs.EINVAL }
func (w *WriteEnd) Truncate(newlen uint) defs.Err_t { return -defs.EINVAL }

func (r *ReadEnd) Pread(dst fdops.Userio_i, offset int) (int, defs.Err_t) {
	return r.Read(dst)
}
func (w *WriteEnd) Pwrite(src fdops.Userio_i, offset int) (int, defs.Err_t) {
	return w.Write(src)
}
func (r *ReadEnd) Pwrite(src fdops.Userio_i, offset int) (int, defs.Err_t) {
	return 0, -defs.EBADF
}
func (w *WriteEnd) Pread(dst fdops.Userio_i, offset int) (int, defs.Err_t) {
	return 0, -defs.EBADF
}
