// Package vfs is the virtual filesystem switch: a mount table keyed by
// canonical path, path resolution across mount boundaries, and an
// Inode vtable every concrete filesystem (ext2, fat32, devfs) plugs
// into. It never touches a storage.Backend or bio.Cache itself; those
// belong to the filesystem a mount point names.
package vfs

import (
	"sync"

	"keelos/internal/bpath"
	"keelos/internal/defs"
	"keelos/internal/fd"
	"keelos/internal/fdops"
	"keelos/internal/stat"
	"keelos/internal/ustr"
)

// Itype mirrors the vfs_inode_t flags field's handful of node kinds.
type Itype int

const (
	ItypeFile Itype = iota + 1
	ItypeDir
	ItypeChardev
	ItypeBlockdev
	ItypePipe
	ItypeSymlink
	ItypeMountpoint
)

// Inode is the vtable every mounted filesystem implements; vfs calls
// through it and never assumes anything about what backs it.
type Inode interface {
	Type() Itype
	Size() int64
	Lookup(name string) (Inode, defs.Err_t)
	Readdir() ([]Dirent, defs.Err_t)
	Open(perms int) (fdops.Fdops_i, defs.Err_t)
	Create(name string, mode int) (Inode, defs.Err_t)
	Mkdir(name string, mode int) (Inode, defs.Err_t)
	Unlink(name string) defs.Err_t
	Stat(st *stat.Stat_t) defs.Err_t
	// Link adds a new directory entry named name inside this directory
	// referring to the same underlying file as target, bumping its
	// link count. target must belong to the same filesystem.
	Link(name string, target Inode) defs.Err_t
	// Mknod creates a device-node inode named name inside this
	// directory, encoding major/minor the way mknod(2) does.
	Mknod(name string, mode, major, minor int) (Inode, defs.Err_t)
	// Ioctl services a device-specific request, for inodes backed by a
	// device; a plain file or directory returns -ENOTTY.
	Ioctl(req int, arg []uint8) (int, defs.Err_t)
}

// Dirent is one directory listing entry.
type Dirent struct {
	Name  string
	Inode uint
}

// Readdirer is implemented by the file description opened on a
// directory, letting the readdir syscall advance one entry at a time
// without Fdops_i itself carrying a directory-only method.
type Readdirer interface {
	ReaddirOne() (Dirent, bool, defs.Err_t)
}

// dirFile is the open file description for a directory: Readdir was
// already run at open time, and this just walks the resulting slice.
// Every ordinary file operation on it fails the way reading or writing
// a directory fd does on a real system.
type dirFile struct {
	fdops.NetUnsupported
	fdops.NoIoctl
	ents []Dirent
	pos  int
}

func (d *dirFile) Close() defs.Err_t { return 0 }
func (d *dirFile) Fstat(st fdops.StatWriter) defs.Err_t {
	st.Wmode(0040755)
	return 0
}
func (d *dirFile) Lseek(off int, whence int) (int, defs.Err_t)            { return 0, -defs.ESPIPE }
func (d *dirFile) Mmapi(off, l int, inhibit bool) ([]fdops.MmapInfo, defs.Err_t) {
	return nil, -defs.EISDIR
}
func (d *dirFile) Pathi() fdops.PathResolver                { return nil }
func (d *dirFile) Read(dst fdops.Userio_i) (int, defs.Err_t)  { return 0, -defs.EISDIR }
func (d *dirFile) Reopen() defs.Err_t                        { return 0 }
func (d *dirFile) Write(src fdops.Userio_i) (int, defs.Err_t) { return 0, -defs.EISDIR }
func (d *dirFile) Fullpath() (string, defs.Err_t)            { return "", -defs.EINVAL }
func (d *dirFile) Truncate(newlen uint) defs.Err_t           { return -defs.EISDIR }
func (d *dirFile) Pread(dst fdops.Userio_i, offset int) (int, defs.Err_t) {
	return 0, -defs.EISDIR
}
func (d *dirFile) Pwrite(src fdops.Userio_i, offset int) (int, defs.Err_t) {
	return 0, -defs.EISDIR
}

func (d *dirFile) ReaddirOne() (Dirent, bool, defs.Err_t) {
	if d.pos >= len(d.ents) {
		return Dirent{}, false, 0
	}
	e := d.ents[d.pos]
	d.pos++
	return e, true, 0
}

// mount associates a canonical mount-point path with the root Inode of
// the filesystem mounted there.
type mount struct {
	path ustr.Ustr
	root Inode
}

// Table is the process-global (well, namespace-global) mount table.
type Table struct {
	mu     sync.RWMutex
	mounts []mount
	root   Inode
}

// NewTable builds a mount table whose root filesystem is root.
func NewTable(root Inode) *Table {
	return &Table{root: root}
}

// Mount grafts fsRoot onto the namespace at path (which must already
// resolve to an empty directory in some other mounted filesystem, a
// check left to the caller since vfs itself does not want to recurse
// into Lookup just to validate a precondition it will immediately
// re-check on resolution anyway).
func (t *Table) Mount(path ustr.Ustr, fsRoot Inode) defs.Err_t {
	cp := bpath.Canonicalize(path)
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range t.mounts {
		if m.path.Eq(cp) {
			return -defs.EEXIST
		}
	}
	t.mounts = append(t.mounts, mount{path: cp, root: fsRoot})
	return 0
}

// Unmount removes the mount at path.
func (t *Table) Unmount(path ustr.Ustr) defs.Err_t {
	cp := bpath.Canonicalize(path)
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, m := range t.mounts {
		if m.path.Eq(cp) {
			t.mounts = append(t.mounts[:i], t.mounts[i+1:]...)
			return 0
		}
	}
	return -defs.ENOENT
}

// resolveMount returns the filesystem root whose mount path is the
// longest prefix of cp, and the path remainder below that mount.
func (t *Table) resolveMount(cp ustr.Ustr) (Inode, []ustr.Ustr) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	best := t.root
	bestLen := 0
	var bestParts []ustr.Ustr
	parts := cp.Split()
	for _, m := range t.mounts {
		mp := m.path.Split()
		if len(mp) > len(parts) {
			continue
		}
		match := true
		for i, c := range mp {
			if !c.Eq(parts[i]) {
				match = false
				break
			}
		}
		if match && len(mp) >= bestLen {
			best = m.root
			bestLen = len(mp)
			bestParts = parts[len(mp):]
		}
	}
	if bestParts == nil {
		bestParts = parts
	}
	return best, bestParts
}

// Resolve walks p (canonicalized) across mount boundaries to the Inode
// it names.
func (t *Table) Resolve(p ustr.Ustr) (Inode, defs.Err_t) {
	cp := bpath.Canonicalize(p)
	cur, parts := t.resolveMount(cp)
	for _, c := range parts {
		if c.Isdot() {
			continue
		}
		next, err := cur.Lookup(string(c))
		if err != 0 {
			return nil, err
		}
		cur = next
	}
	return cur, 0
}

// Open resolves p and opens it, creating it first if O_CREAT is set
// and it does not exist.
func (t *Table) Open(p ustr.Ustr, flags, mode int, cwd *fd.Cwd_t) (*fd.Fd_t, defs.Err_t) {
	full := p
	if !p.IsAbsolute() {
		full = cwd.Fullpath(p)
	}
	ip, err := t.Resolve(full)
	if err == -defs.ENOENT && flags&defs.O_CREAT != 0 {
		cp := bpath.Canonicalize(full)
		parts := cp.Split()
		name := string(parts[len(parts)-1])
		parentPath := ustr.Ustr{'/'}
		for i, c := range parts[:len(parts)-1] {
			if i > 0 {
				parentPath = append(parentPath, '/')
			}
			parentPath = append(parentPath, c...)
		}
		dir, derr := t.Resolve(parentPath)
		if derr != 0 {
			return nil, derr
		}
		ip, err = dir.Create(name, mode)
	}
	if err != 0 {
		return nil, err
	}
	if ip.Type() == ItypeDir {
		ents, derr := ip.Readdir()
		if derr != 0 {
			return nil, derr
		}
		return &fd.Fd_t{Fops: &dirFile{ents: ents}, Perms: flags & 0x3}, 0
	}
	fops, err := ip.Open(flags & 0x3)
	if err != 0 {
		return nil, err
	}
	return &fd.Fd_t{Fops: fops, Perms: flags & 0x3}, 0
}
