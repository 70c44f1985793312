// Package fd implements the open file descriptor table entry and the
// per-process current-working-directory tracker. A descriptor pairs a
// permission mask with the Fdops_i implementation (regular file, pipe,
// device, directory) it was opened against.
package fd

import (
	"sync"

	"keelos/internal/bpath"
	"keelos/internal/defs"
	"keelos/internal/fdops"
	"keelos/internal/ustr"
)

// File descriptor permission bits.
const (
	FD_READ    = 0x1
	FD_WRITE   = 0x2
	FD_CLOEXEC = 0x4
)

// Fd_t is an open file descriptor: the operation set it dispatches to,
// plus the permission bits it was opened with.
type Fd_t struct {
	Fops  fdops.Fdops_i
	Perms int
}

// Copyfd duplicates fd, reopening the underlying description so the
// two descriptors share reference-counted state correctly.
func Copyfd(fd *Fd_t) (*Fd_t, defs.Err_t) {
	nfd := &Fd_t{}
	*nfd = *fd
	if err := nfd.Fops.Reopen(); err != 0 {
		return nil, err
	}
	return nfd, 0
}

// ClosePanic closes f, panicking if close fails — used at shutdown
// paths where an error can only mean an accounting bug.
func ClosePanic(f *Fd_t) {
	if f.Fops.Close() != 0 {
		panic("fd close must succeed")
	}
}

// Cwd_t tracks a process's current working directory.
type Cwd_t struct {
	sync.Mutex
	Fd   *Fd_t
	Path ustr.Ustr
}

// Fullpath joins cwd with p if p is not already absolute.
func (cwd *Cwd_t) Fullpath(p ustr.Ustr) ustr.Ustr {
	if p.IsAbsolute() {
		return p
	}
	full := append(append(ustr.Ustr{}, cwd.Path...), '/')
	return append(full, p...)
}

// Canonicalpath resolves p relative to cwd into a canonical absolute path.
func (cwd *Cwd_t) Canonicalpath(p ustr.Ustr) ustr.Ustr {
	return bpath.Canonicalize(cwd.Fullpath(p))
}

// MkRootCwd constructs a Cwd_t rooted at "/", backed by fd.
func MkRootCwd(fd *Fd_t) *Cwd_t {
	return &Cwd_t{Fd: fd, Path: ustr.MkUstrRoot()}
}
