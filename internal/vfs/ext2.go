package vfs

import (
	"keelos/internal/defs"
	"keelos/internal/ext2"
	"keelos/internal/fdops"
	"keelos/internal/stat"
)

// Ext2Inode adapts an *ext2.Inode to the vfs.Inode vtable.
type Ext2Inode struct {
	ip *ext2.Inode
}

// WrapExt2 builds the vfs.Inode view of an EXT2 inode.
func WrapExt2(ip *ext2.Inode) *Ext2Inode { return &Ext2Inode{ip: ip} }

func (e *Ext2Inode) Type() Itype {
	if e.ip.IsDir() {
		return ItypeDir
	}
	if e.ip.IsLink() {
		return ItypeSymlink
	}
	return ItypeFile
}

func (e *Ext2Inode) Size() int64 { return int64(e.ip.Size()) }

func (e *Ext2Inode) Lookup(name string) (Inode, defs.Err_t) {
	inum, _, err := e.ip.Lookup(name)
	if err != 0 {
		return nil, err
	}
	child, err := e.ip.Vol().Iget(inum)
	if err != 0 {
		return nil, err
	}
	return WrapExt2(child), 0
}

func (e *Ext2Inode) Readdir() ([]Dirent, defs.Err_t) {
	ents, err := e.ip.Readdir()
	if err != 0 {
		return nil, err
	}
	out := make([]Dirent, len(ents))
	for i, d := range ents {
		out[i] = Dirent{Name: d.Name, Inode: uint(d.Inode)}
	}
	return out, 0
}

func (e *Ext2Inode) Open(perms int) (fdops.Fdops_i, defs.Err_t) {
	return &ext2File{ip: e.ip}, 0
}

func (e *Ext2Inode) Create(name string, mode int) (Inode, defs.Err_t) {
	child, err := e.ip.Create(name, uint16(mode))
	if err != 0 {
		return nil, err
	}
	return WrapExt2(child), 0
}

func (e *Ext2Inode) Mkdir(name string, mode int) (Inode, defs.Err_t) {
	child, err := e.ip.Mkdir(name, uint16(mode))
	if err != 0 {
		return nil, err
	}
	return WrapExt2(child), 0
}

func (e *Ext2Inode) Unlink(name string) defs.Err_t {
	inum, _, err := e.ip.Lookup(name)
	if err != 0 {
		return err
	}
	child, err := e.ip.Vol().Iget(inum)
	if err != 0 {
		return err
	}
	if err := e.ip.RemoveEntry(name); err != 0 {
		return err
	}
	if err := child.DecLink(); err != 0 {
		return err
	}
	return child.Put()
}

func (e *Ext2Inode) Stat(st *stat.Stat_t) defs.Err_t {
	mode := uint(e.ip.Mode())
	st.Wmode(mode)
	st.Wsize(uint(e.ip.Size()))
	st.Wnlink(uint(e.ip.Links()))
	return 0
}

// Link adds a new directory entry inside e referring to target's
// inode, bumping its link count. target must be another EXT2 inode on
// the same volume; linking across filesystems is not meaningful.
func (e *Ext2Inode) Link(name string, target Inode) defs.Err_t {
	t, ok := target.(*Ext2Inode)
	if !ok || t.ip.Vol() != e.ip.Vol() {
		return -defs.EXDEV
	}
	return e.ip.Link(name, t.ip)
}

// Mknod creates a character or block device-node inode named name
// inside e, encoding major/minor the way mknod(2) does.
func (e *Ext2Inode) Mknod(name string, mode, major, minor int) (Inode, defs.Err_t) {
	child, err := e.ip.Mknod(name, uint16(mode), uint32(defs.Mkdev(major, minor)))
	if err != 0 {
		return nil, err
	}
	return WrapExt2(child), 0
}

// Ioctl is not meaningful for a plain EXT2 file or directory.
func (e *Ext2Inode) Ioctl(req int, arg []uint8) (int, defs.Err_t) { return 0, -defs.ENOTTY }

// ext2File is the open file description for a regular EXT2 file.
type ext2File struct {
	fdops.NetUnsupported
	fdops.NoIoctl
	ip  *ext2.Inode
	off int
}

func (f *ext2File) Close() defs.Err_t { return f.ip.Put() }

func (f *ext2File) Fstat(st fdops.StatWriter) defs.Err_t {
	st.Wmode(uint(f.ip.Mode()))
	st.Wsize(uint(f.ip.Size()))
	return 0
}

func (f *ext2File) Lseek(off int, whence int) (int, defs.Err_t) {
	switch whence {
	case 0:
		f.off = off
	case 1:
		f.off += off
	case 2:
		f.off = f.ip.Size() + off
	default:
		return 0, -defs.EINVAL
	}
	return f.off, 0
}

func (f *ext2File) Mmapi(off, len int, inhibit bool) ([]fdops.MmapInfo, defs.Err_t) {
	return nil, -defs.EINVAL
}

func (f *ext2File) Pathi() fdops.PathResolver { return nil }

func (f *ext2File) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	n, err := f.Pread(dst, f.off)
	if err == 0 {
		f.off += n
	}
	return n, err
}

func (f *ext2File) Reopen() defs.Err_t { return 0 }

func (f *ext2File) Write(src fdops.Userio_i) (int, defs.Err_t) {
	n, err := f.Pwrite(src, f.off)
	if err == 0 {
		f.off += n
	}
	return n, err
}

func (f *ext2File) Fullpath() (string, defs.Err_t) { return "", -defs.EINVAL }

func (f *ext2File) Truncate(newlen uint) defs.Err_t { return f.ip.Writeback() }

func (f *ext2File) Pread(dst fdops.Userio_i, offset int) (int, defs.Err_t) {
	buf := make([]byte, dst.Remain())
	n, err := f.ip.ReadAt(buf, offset)
	if err != 0 {
		return 0, err
	}
	wn, werr := dst.Uiowrite(buf[:n])
	return wn, werr
}

func (f *ext2File) Pwrite(src fdops.Userio_i, offset int) (int, defs.Err_t) {
	buf := make([]byte, src.Remain())
	rn, rerr := src.Uioread(buf)
	if rerr != 0 {
		return 0, rerr
	}
	n, err := f.ip.WriteAt(buf[:rn], offset)
	if err != 0 {
		return 0, err
	}
	return n, f.ip.Writeback()
}
