// Package fdops defines the capability interfaces that every open file
// description implements: a user-memory I/O cursor (Userio_i) and the
// file-like operation set dispatched by the syscall layer (Fdops_i).
// Defining these as interfaces in their own leaf package lets vfs,
// pipe, devfs, bio and circbuf all depend on the shape of a file
// description without depending on each other.
package fdops

import "keelos/internal/defs"

// Userio_i is a cursor over a user-memory buffer. Every syscall
// argument that reads or writes process memory goes through it, so
// file descriptions never touch raw pointers directly.
type Userio_i interface {
	// Uioread copies from the underlying buffer into dst, returning the
	// number of bytes copied.
	Uioread(dst []uint8) (int, defs.Err_t)
	// Uiowrite copies from src into the underlying buffer, returning the
	// number of bytes copied.
	Uiowrite(src []uint8) (int, defs.Err_t)
	// Remain reports how many bytes are left to transfer.
	Remain() int
	// Totalsz reports the total size of the transfer.
	Totalsz() int
}

// Fdops_i is the operation set behind one open file description,
// implemented by regular files, directories, pipes and device files.
type Fdops_i interface {
	Close() defs.Err_t
	Fstat(st StatWriter) defs.Err_t
	Lseek(off int, whence int) (int, defs.Err_t)
	Mmapi(off, len int, inhibit bool) ([]MmapInfo, defs.Err_t)
	Pathi() PathResolver
	Read(dst Userio_i) (int, defs.Err_t)
	Reopen() defs.Err_t
	Write(src Userio_i) (int, defs.Err_t)
	Fullpath() (string, defs.Err_t)
	Truncate(newlen uint) defs.Err_t
	Pread(dst Userio_i, offset int) (int, defs.Err_t)
	Pwrite(src Userio_i, offset int) (int, defs.Err_t)
	Ioctl(req int, arg Userio_i) (int, defs.Err_t)
	Accept(sa Userio_i) (Fdops_i, uint, defs.Err_t)
	Bind(sa Userio_i) defs.Err_t
	Connect(sa Userio_i) defs.Err_t
	Listen(backlog int) (Fdops_i, defs.Err_t)
	Sendmsg(src Userio_i, sa Userio_i, cmsg Userio_i, flags int) (int, defs.Err_t)
	Recvmsg(dst Userio_i, sa Userio_i, cmsg Userio_i, flags int) (int, int, int, defs.Err_t)
	Getsockopt(opt int) (int, defs.Err_t)
	Setsockopt(opt, val int) defs.Err_t
	Shutdown(read, write bool) defs.Err_t
}

// StatWriter is the subset of stat.Stat_t that Fstat needs, kept as an
// interface here to avoid fdops depending on the stat package.
type StatWriter interface {
	Wdev(uint)
	Wino(uint)
	Wmode(uint)
	Wsize(uint)
	Wrdev(uint)
}

// MmapInfo describes one physical page backing a memory-mapped region.
type MmapInfo struct {
	Voff int
	Pg   []uint8
	Phys uintptr
}

// PathResolver is implemented by VFS nodes to report the path they were
// opened through, for /proc-style introspection.
type PathResolver interface {
	Path() string
}

// NetUnsupported implements the socket-only slice of Fdops_i by
// returning ENOTSOCK, so a file, directory, pipe, or device description
// can embed it instead of writing out nine dead stubs. Networking
// file descriptions are out of scope; nothing in this tree ever
// shadows these methods with a real implementation.
type NetUnsupported struct{}

func (NetUnsupported) Accept(sa Userio_i) (Fdops_i, uint, defs.Err_t) { return nil, 0, -defs.ENOTSOCK }
func (NetUnsupported) Bind(sa Userio_i) defs.Err_t                    { return -defs.ENOTSOCK }
func (NetUnsupported) Connect(sa Userio_i) defs.Err_t                 { return -defs.ENOTSOCK }
func (NetUnsupported) Listen(backlog int) (Fdops_i, defs.Err_t)       { return nil, -defs.ENOTSOCK }
func (NetUnsupported) Sendmsg(src, sa, cmsg Userio_i, flags int) (int, defs.Err_t) {
	return 0, -defs.ENOTSOCK
}
func (NetUnsupported) Recvmsg(dst, sa, cmsg Userio_i, flags int) (int, int, int, defs.Err_t) {
	return 0, 0, 0, -defs.ENOTSOCK
}
func (NetUnsupported) Getsockopt(opt int) (int, defs.Err_t) { return 0, -defs.ENOTSOCK }
func (NetUnsupported) Setsockopt(opt, val int) defs.Err_t   { return -defs.ENOTSOCK }
func (NetUnsupported) Shutdown(read, write bool) defs.Err_t { return -defs.ENOTSOCK }

// NoIoctl implements Fdops_i's Ioctl by returning ENOTTY, for a file
// description backed by a plain file or directory rather than a
// terminal or device.
type NoIoctl struct{}

func (NoIoctl) Ioctl(req int, arg Userio_i) (int, defs.Err_t) { return 0, -defs.ENOTTY }
