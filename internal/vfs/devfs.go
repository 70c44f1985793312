package vfs

import (
	"keelos/internal/defs"
	"keelos/internal/devfs"
	"keelos/internal/fdops"
	"keelos/internal/stat"
)

// DevfsDir adapts a *devfs.Dir to the vfs.Inode vtable.
type DevfsDir struct {
	d *devfs.Dir
}

// WrapDevfs builds the vfs.Inode view of a device directory.
func WrapDevfs(d *devfs.Dir) *DevfsDir { return &DevfsDir{d: d} }

func (d *DevfsDir) Type() Itype  { return ItypeDir }
func (d *DevfsDir) Size() int64  { return 0 }

func (d *DevfsDir) Lookup(name string) (Inode, defs.Err_t) {
	n, err := d.d.Lookup(name)
	if err != 0 {
		return nil, err
	}
	return &devfsNode{n: n}, 0
}

func (d *DevfsDir) Readdir() ([]Dirent, defs.Err_t) {
	names, err := d.d.Readdir()
	if err != 0 {
		return nil, err
	}
	out := make([]Dirent, len(names))
	for i, n := range names {
		out[i] = Dirent{Name: n}
	}
	return out, 0
}

func (d *DevfsDir) Open(perms int) (fdops.Fdops_i, defs.Err_t) { return nil, -defs.EISDIR }
func (d *DevfsDir) Create(name string, mode int) (Inode, defs.Err_t) { return nil, -defs.EROFS }
func (d *DevfsDir) Mkdir(name string, mode int) (Inode, defs.Err_t)  { return nil, -defs.EROFS }
func (d *DevfsDir) Unlink(name string) defs.Err_t                    { return -defs.EROFS }
func (d *DevfsDir) Link(name string, target Inode) defs.Err_t       { return -defs.EROFS }
func (d *DevfsDir) Mknod(name string, mode, major, minor int) (Inode, defs.Err_t) {
	return nil, -defs.EROFS
}
func (d *DevfsDir) Ioctl(req int, arg []uint8) (int, defs.Err_t) { return 0, -defs.ENOTTY }
func (d *DevfsDir) Stat(st *stat.Stat_t) defs.Err_t {
	st.Wmode(0040755)
	return 0
}

type devfsNode struct {
	n *devfs.DevInode
}

func (n *devfsNode) Type() Itype { return ItypeChardev }
func (n *devfsNode) Size() int64 { return 0 }
func (n *devfsNode) Lookup(name string) (Inode, defs.Err_t) { return nil, -defs.ENOTDIR }
func (n *devfsNode) Readdir() ([]Dirent, defs.Err_t)        { return nil, -defs.ENOTDIR }
func (n *devfsNode) Open(perms int) (fdops.Fdops_i, defs.Err_t) { return n.n.Open(perms) }
func (n *devfsNode) Create(name string, mode int) (Inode, defs.Err_t) { return nil, -defs.ENOTDIR }
func (n *devfsNode) Mkdir(name string, mode int) (Inode, defs.Err_t)  { return nil, -defs.ENOTDIR }
func (n *devfsNode) Unlink(name string) defs.Err_t                    { return -defs.ENOTDIR }
func (n *devfsNode) Link(name string, target Inode) defs.Err_t       { return -defs.ENOTDIR }
func (n *devfsNode) Mknod(name string, mode, major, minor int) (Inode, defs.Err_t) {
	return nil, -defs.ENOTDIR
}
func (n *devfsNode) Ioctl(req int, arg []uint8) (int, defs.Err_t) { return n.n.Ioctl(req, arg) }
func (n *devfsNode) Stat(st *stat.Stat_t) defs.Err_t {
	st.Wmode(0020666)
	st.Wrdev(n.n.Devno())
	return 0
}
