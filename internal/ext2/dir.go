package ext2

import "keelos/internal/defs"

// Lookup scans dir's directory blocks for name, returning its inode
// number and file type byte.
func (dir *Inode) Lookup(name string) (uint32, uint8, defs.Err_t) {
	if !dir.IsDir() {
		return 0, 0, -defs.ENOTDIR
	}
	size := dir.Size()
	buf := make([]byte, size)
	if _, err := dir.ReadAt(buf, 0); err != 0 {
		return 0, 0, err
	}
	for off := 0; off < size; {
		de := DecodeDirEntry(buf[off:])
		if de.RecLen == 0 {
			break
		}
		if de.Inode != 0 && de.Name == name {
			return de.Inode, de.FileType, 0
		}
		off += int(de.RecLen)
	}
	return 0, 0, -defs.ENOENT
}

// Readdir returns every non-empty entry in dir, in on-disk order.
func (dir *Inode) Readdir() ([]DirEntry, defs.Err_t) {
	if !dir.IsDir() {
		return nil, -defs.ENOTDIR
	}
	size := dir.Size()
	buf := make([]byte, size)
	if _, err := dir.ReadAt(buf, 0); err != 0 {
		return nil, err
	}
	var out []DirEntry
	for off := 0; off < size; {
		de := DecodeDirEntry(buf[off:])
		if de.RecLen == 0 {
			break
		}
		if de.Inode != 0 {
			out = append(out, de)
		}
		off += int(de.RecLen)
	}
	return out, 0
}

// AddEntry inserts (name -> inum, ftype) into dir, appending a fresh
// block if no existing entry has enough slack to split.
func (dir *Inode) AddEntry(name string, inum uint32, ftype uint8) defs.Err_t {
	if _, _, err := dir.Lookup(name); err == 0 {
		return -defs.EEXIST
	}
	need := dirEntryHeaderSize + len(name)
	need = (need + 3) &^ 3

	bs := dir.vol.bsize()
	size := dir.Size()
	buf := make([]byte, size)
	if size > 0 {
		if _, err := dir.ReadAt(buf, 0); err != 0 {
			return err
		}
	}
	for off := 0; off < size; {
		de := DecodeDirEntry(buf[off:])
		used := dirEntryHeaderSize + int(de.NameLen)
		used = (used + 3) &^ 3
		if de.Inode == 0 && int(de.RecLen) >= need {
			nd := DirEntry{Inode: inum, RecLen: uint16(de.RecLen), FileType: ftype, Name: name}
			copy(buf[off:], nd.Encode())
			_, err := dir.WriteAt(buf[off:off+int(de.RecLen)], off)
			return err
		}
		if int(de.RecLen)-used >= need && de.Inode != 0 {
			nd := DirEntry{Inode: inum, RecLen: uint16(int(de.RecLen) - used), FileType: ftype, Name: name}
			de.RecLen = uint16(used)
			copy(buf[off:], de.Encode())
			copy(buf[off+used:], nd.Encode())
			_, err := dir.WriteAt(buf[off:off+int(nd.RecLen)+used], off)
			return err
		}
		off += int(de.RecLen)
	}

	nd := DirEntry{Inode: inum, RecLen: uint16(bs), FileType: ftype, Name: name}
	enc := nd.Encode()
	out := make([]byte, bs)
	copy(out, enc)
	_, err := dir.WriteAt(out, size)
	return err
}

// RemoveEntry clears the directory slot naming name: its inode number
// and name are zeroed and its RecLen is kept, so the slot stays in the
// chain as an empty entry.
func (dir *Inode) RemoveEntry(name string) defs.Err_t {
	size := dir.Size()
	buf := make([]byte, size)
	if _, err := dir.ReadAt(buf, 0); err != 0 {
		return err
	}
	for off := 0; off < size; {
		de := DecodeDirEntry(buf[off:])
		if de.RecLen == 0 {
			break
		}
		if de.Inode != 0 && de.Name == name {
			de.Inode = 0
			de.Name = ""
			de.FileType = ftUnknown
			enc := de.Encode()
			copy(buf[off:off+len(enc)], enc)
			_, err := dir.WriteAt(buf[off:off+int(de.RecLen)], off)
			return err
		}
		off += int(de.RecLen)
	}
	return -defs.ENOENT
}

// IsEmptyDir reports whether dir has no entries besides "." and "..".
func (dir *Inode) IsEmptyDir() (bool, defs.Err_t) {
	ents, err := dir.Readdir()
	if err != 0 {
		return false, err
	}
	for _, e := range ents {
		if e.Name != "." && e.Name != ".." {
			return false, 0
		}
	}
	return true, 0
}

// MkRootDir initializes an empty directory's "." and ".." entries;
// called once by mkfs when formatting a volume.
func (v *Volume) MkRootDir(inum uint32) defs.Err_t {
	ip, err := v.Iget(inum)
	if err != 0 {
		return err
	}
	defer ip.Put()
	if err := ip.AddEntry(".", inum, ftDir); err != 0 {
		return err
	}
	if err := ip.AddEntry("..", inum, ftDir); err != 0 {
		return err
	}
	ip.mu.Lock()
	ip.disk.LinksCount = 2
	ip.mu.Unlock()
	return ip.Writeback()
}

// Mkdir creates a new directory entry named name inside dir, with a
// child inode initialized with "." and "..".
func (dir *Inode) Mkdir(name string, mode uint16) (*Inode, defs.Err_t) {
	child, err := dir.vol.mkInode(mode | 0040000)
	if err != 0 {
		return nil, err
	}
	if err := child.AddEntry(".", child.Inum, ftDir); err != 0 {
		return nil, err
	}
	if err := child.AddEntry("..", dir.Inum, ftDir); err != 0 {
		return nil, err
	}
	child.mu.Lock()
	child.disk.LinksCount = 2
	child.mu.Unlock()
	if err := child.Writeback(); err != 0 {
		return nil, err
	}
	if err := dir.AddEntry(name, child.Inum, ftDir); err != 0 {
		return nil, err
	}
	dir.mu.Lock()
	dir.disk.LinksCount++
	dir.mu.Unlock()
	return child, dir.Writeback()
}

// Create makes a new regular file named name inside dir.
func (dir *Inode) Create(name string, mode uint16) (*Inode, defs.Err_t) {
	child, err := dir.vol.mkInode(mode | 0100000)
	if err != 0 {
		return nil, err
	}
	if err := dir.AddEntry(name, child.Inum, ftRegFile); err != 0 {
		return nil, err
	}
	return child, 0
}

// Link adds a new directory entry in dir naming an already-existing
// inode, bumping its link count the way a hard link shares one inode
// across multiple names.
func (dir *Inode) Link(name string, target *Inode) defs.Err_t {
	if err := dir.AddEntry(name, target.Inum, modeToFileType(target.Mode())); err != 0 {
		return err
	}
	target.mu.Lock()
	target.disk.LinksCount++
	target.mu.Unlock()
	return target.Writeback()
}

// Mknod creates a device-node inode named name inside dir. A device
// node carries no data blocks; the encoded device number is stashed in
// the inode's first direct block pointer, the traditional EXT2 place
// for rdev.
func (dir *Inode) Mknod(name string, mode uint16, rdev uint32) (*Inode, defs.Err_t) {
	if _, _, err := dir.Lookup(name); err == 0 {
		return nil, -defs.EEXIST
	}
	child, err := dir.vol.mkInode(mode)
	if err != 0 {
		return nil, err
	}
	child.mu.Lock()
	child.disk.Block[0] = rdev
	child.mu.Unlock()
	if err := child.Writeback(); err != 0 {
		return nil, err
	}
	if err := dir.AddEntry(name, child.Inum, modeToFileType(mode)); err != 0 {
		return nil, err
	}
	return child, 0
}

// Rdev returns the device number stashed by Mknod for a device-node
// inode.
func (ip *Inode) Rdev() uint32 { ip.mu.Lock(); defer ip.mu.Unlock(); return ip.disk.Block[0] }
