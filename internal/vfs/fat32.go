package vfs

import (
	"keelos/internal/defs"
	"keelos/internal/fat32"
	"keelos/internal/fdops"
	"keelos/internal/stat"
)

// Fat32Inode adapts a FAT32 directory entry to the vfs.Inode vtable.
// Unlike ext2 there is no separate inode table: the directory entry
// itself carries everything (first cluster, size, attributes), so the
// adapter just keeps a copy plus enough context to re-resolve it.
type Fat32Inode struct {
	vol     *fat32.Volume
	dirCl   uint32 // cluster of the containing directory, 0 for the root
	name    string // name within dirCl, "" for the root
	cluster uint32
	size    uint32
	isDir   bool
}

// WrapFat32Root builds the vfs.Inode view of a FAT32 volume's root
// directory.
func WrapFat32Root(v *fat32.Volume) *Fat32Inode {
	return &Fat32Inode{vol: v, cluster: v.RootCluster(), isDir: true}
}

func (f *Fat32Inode) Type() Itype {
	if f.isDir {
		return ItypeDir
	}
	return ItypeFile
}

func (f *Fat32Inode) Size() int64 { return int64(f.size) }

func (f *Fat32Inode) Lookup(name string) (Inode, defs.Err_t) {
	if !f.isDir {
		return nil, -defs.ENOTDIR
	}
	ent, err := f.vol.Lookup(f.cluster, name)
	if err != 0 {
		return nil, err
	}
	return &Fat32Inode{
		vol: f.vol, dirCl: f.cluster, name: name,
		cluster: ent.Cluster(), size: ent.FileSize, isDir: ent.Attr&0x10 != 0,
	}, 0
}

func (f *Fat32Inode) Readdir() ([]Dirent, defs.Err_t) {
	ents, err := f.vol.Readdir(f.cluster)
	if err != 0 {
		return nil, err
	}
	out := make([]Dirent, 0, len(ents))
	for _, e := range ents {
		out = append(out, Dirent{Name: e.DisplayName(), Inode: uint(e.Cluster())})
	}
	return out, 0
}

func (f *Fat32Inode) Open(perms int) (fdops.Fdops_i, defs.Err_t) {
	if f.isDir {
		return nil, -defs.EISDIR
	}
	return &fat32File{node: f}, 0
}

func (f *Fat32Inode) Create(name string, mode int) (Inode, defs.Err_t) {
	if !f.isDir {
		return nil, -defs.ENOTDIR
	}
	if err := f.vol.CreateFile(f.cluster, name); err != 0 {
		return nil, err
	}
	return f.Lookup(name)
}

func (f *Fat32Inode) Mkdir(name string, mode int) (Inode, defs.Err_t) {
	if !f.isDir {
		return nil, -defs.ENOTDIR
	}
	if err := f.vol.CreateDir(f.cluster, name); err != 0 {
		return nil, err
	}
	return f.Lookup(name)
}

func (f *Fat32Inode) Unlink(name string) defs.Err_t {
	return f.vol.DeleteFile(f.cluster, name)
}

func (f *Fat32Inode) Stat(st *stat.Stat_t) defs.Err_t {
	mode := uint(0100644)
	if f.isDir {
		mode = 0040755
	}
	st.Wmode(mode)
	st.Wsize(uint(f.size))
	st.Wnlink(1)
	return 0
}

// Link is not supported: FAT32 has no inode table separate from
// directory entries, so a single file cannot have more than one name.
func (f *Fat32Inode) Link(name string, target Inode) defs.Err_t { return -defs.EPERM }

// Mknod is not supported: FAT32 has no device-node entry type.
func (f *Fat32Inode) Mknod(name string, mode, major, minor int) (Inode, defs.Err_t) {
	return nil, -defs.EPERM
}

func (f *Fat32Inode) Ioctl(req int, arg []uint8) (int, defs.Err_t) { return 0, -defs.ENOTTY }

// fat32File is the open file description for a regular FAT32 file.
type fat32File struct {
	fdops.NetUnsupported
	fdops.NoIoctl
	node *Fat32Inode
	off  int
}

func (fl *fat32File) Close() defs.Err_t { return 0 }

func (fl *fat32File) Fstat(st fdops.StatWriter) defs.Err_t {
	st.Wsize(uint(fl.node.size))
	return 0
}

func (fl *fat32File) Lseek(off int, whence int) (int, defs.Err_t) {
	switch whence {
	case 0:
		fl.off = off
	case 1:
		fl.off += off
	case 2:
		fl.off = int(fl.node.size) + off
	default:
		return 0, -defs.EINVAL
	}
	return fl.off, 0
}

func (fl *fat32File) Mmapi(off, len int, inhibit bool) ([]fdops.MmapInfo, defs.Err_t) {
	return nil, -defs.EINVAL
}

func (fl *fat32File) Pathi() fdops.PathResolver { return nil }

func (fl *fat32File) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	n, err := fl.Pread(dst, fl.off)
	if err == 0 {
		fl.off += n
	}
	return n, err
}

func (fl *fat32File) Reopen() defs.Err_t { return 0 }

func (fl *fat32File) Write(src fdops.Userio_i) (int, defs.Err_t) {
	n, err := fl.Pwrite(src, fl.off)
	if err == 0 {
		fl.off += n
	}
	return n, err
}

func (fl *fat32File) Fullpath() (string, defs.Err_t) { return "", -defs.EINVAL }

func (fl *fat32File) Truncate(newlen uint) defs.Err_t { return -defs.EINVAL }

func (fl *fat32File) Pread(dst fdops.Userio_i, offset int) (int, defs.Err_t) {
	buf := make([]byte, dst.Remain())
	n, err := fl.node.vol.ReadFile(fl.node.cluster, fl.node.size, offset, buf)
	if err != 0 {
		return 0, err
	}
	return dst.Uiowrite(buf[:n])
}

func (fl *fat32File) Pwrite(src fdops.Userio_i, offset int) (int, defs.Err_t) {
	buf := make([]byte, src.Remain())
	rn, rerr := src.Uioread(buf)
	if rerr != 0 {
		return 0, rerr
	}
	newFirst, newSize, err := fl.node.vol.WriteFile(fl.node.cluster, offset, buf[:rn])
	if err != 0 {
		return 0, err
	}
	fl.node.cluster = newFirst
	fl.node.size = newSize
	if err := fl.node.vol.UpdateEntry(fl.node.dirCl, fl.node.name, newFirst, newSize); err != 0 {
		return 0, err
	}
	return rn, 0
}
