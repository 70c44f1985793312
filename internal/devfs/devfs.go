// Package devfs is the synthetic device directory mounted at /dev: a
// fixed set of character devices (console, a null sink, a framebuffer,
// a keyboard, a stat pseudo-file) exposed through the same vfs.Inode
// vtable a real filesystem uses, so open()/read()/write() on /dev/console
// is indistinguishable from any other path to a caller.
package devfs

import (
	"sync"

	"keelos/internal/defs"
	"keelos/internal/fdops"
)

// Device is the minimal read/write contract a /dev node backs onto;
// console and the framebuffer implement it directly, null and the
// keyboard trivially.
type Device interface {
	Devno() uint
	Read(dst []uint8) (int, defs.Err_t)
	Write(src []uint8) (int, defs.Err_t)
	// Ioctl services request req, filling arg with the reply and
	// returning how many bytes of it are valid. A device with no ioctl
	// behavior returns -ENOTTY, the way a regular file does.
	Ioctl(req int, arg []uint8) (int, defs.Err_t)
}

type node struct {
	name string
	dev  Device
}

// Dir is the /dev directory inode: a fixed, mount-time-populated list
// of device nodes. It has no subdirectories and no create/mkdir
// support, since every device file is wired in by the kernel at boot,
// never created by a process.
type Dir struct {
	mu    sync.RWMutex
	nodes map[string]*node
}

// New builds an empty /dev directory; call Register for each device.
func New() *Dir {
	return &Dir{nodes: map[string]*node{}}
}

// Register adds a device node named name to the directory.
func (d *Dir) Register(name string, dev Device) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nodes[name] = &node{name: name, dev: dev}
}

// Lookup returns the device node named name.
func (d *Dir) Lookup(name string) (*DevInode, defs.Err_t) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.nodes[name]
	if !ok {
		return nil, -defs.ENOENT
	}
	return &DevInode{n: n}, 0
}

// Readdir lists every registered device.
func (d *Dir) Readdir() ([]string, defs.Err_t) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.nodes))
	for name := range d.nodes {
		names = append(names, name)
	}
	return names, 0
}

// DevInode is one /dev/<name> entry.
type DevInode struct {
	n *node
}

func (di *DevInode) Devno() uint { return di.n.dev.Devno() }

// Ioctl forwards to the underlying device, for vfs.Inode's own Ioctl
// method to dispatch through.
func (di *DevInode) Ioctl(req int, arg []uint8) (int, defs.Err_t) {
	return di.n.dev.Ioctl(req, arg)
}

func (di *DevInode) Open(perms int) (fdops.Fdops_i, defs.Err_t) {
	return &devFile{dev: di.n.dev}, 0
}

// devFile is the open file description for any /dev node: devices are
// unbuffered and offset-less, so Read/Write and Pread/Pwrite collapse
// to the same call.
type devFile struct {
	fdops.NetUnsupported
	dev Device
}

func (f *devFile) Close() defs.Err_t { return 0 }

func (f *devFile) Fstat(st fdops.StatWriter) defs.Err_t {
	st.Wmode(0020666)
	st.Wrdev(f.dev.Devno())
	return 0
}

func (f *devFile) Lseek(off int, whence int) (int, defs.Err_t) { return 0, -defs.ESPIPE }

// mmapable is implemented by a device whose backing memory can be
// mapped directly into a process's address space, rather than copied
// page by page through Read.
type mmapable interface {
	Mmapi(off, length int) ([]fdops.MmapInfo, defs.Err_t)
}

func (f *devFile) Mmapi(off, length int, inhibit bool) ([]fdops.MmapInfo, defs.Err_t) {
	m, ok := f.dev.(mmapable)
	if !ok {
		return nil, -defs.EINVAL
	}
	return m.Mmapi(off, length)
}

func (f *devFile) Pathi() fdops.PathResolver { return nil }

func (f *devFile) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	buf := make([]byte, dst.Remain())
	n, err := f.dev.Read(buf)
	if err != 0 {
		return 0, err
	}
	return dst.Uiowrite(buf[:n])
}

func (f *devFile) Reopen() defs.Err_t { return 0 }

func (f *devFile) Ioctl(req int, arg fdops.Userio_i) (int, defs.Err_t) {
	buf := make([]byte, arg.Remain())
	n, err := f.dev.Ioctl(req, buf)
	if err != 0 {
		return 0, err
	}
	if n == 0 {
		return 0, 0
	}
	return arg.Uiowrite(buf[:n])
}

func (f *devFile) Write(src fdops.Userio_i) (int, defs.Err_t) {
	buf := make([]byte, src.Remain())
	rn, err := src.Uioread(buf)
	if err != 0 {
		return 0, err
	}
	return f.dev.Write(buf[:rn])
}

func (f *devFile) Fullpath() (string, defs.Err_t)        { return "", -defs.EINVAL }
func (f *devFile) Truncate(newlen uint) defs.Err_t        { return -defs.EINVAL }
func (f *devFile) Pread(dst fdops.Userio_i, offset int) (int, defs.Err_t) { return f.Read(dst) }
func (f *devFile) Pwrite(src fdops.Userio_i, offset int) (int, defs.Err_t) {
	return f.Write(src)
}
