package fat32

import "keelos/internal/defs"

// dirEntries returns every raw (offset, entry) pair in the directory
// chain rooted at cl, skipping deleted (0xe5), long-name and
// volume-label slots.
func (v *Volume) dirEntries(cl uint32) ([]DirEntry, defs.Err_t) {
	var out []DirEntry
	err := v.walkSlots(cl, func(_ uint32, _ int, d DirEntry) bool {
		if d.Name[0] != 0 && d.Name[0] != 0xe5 && d.Attr&attrLongName != attrLongName && d.Attr&attrVolumeID == 0 {
			out = append(out, d)
		}
		return d.Name[0] != 0
	})
	return out, err
}

// walkSlots calls f for every 32-byte directory slot in the chain
// rooted at cl (cluster, byte-offset-within-cluster, decoded entry).
// Stops when f returns false or the chain ends.
func (v *Volume) walkSlots(cl uint32, f func(cluster uint32, off int, d DirEntry) bool) defs.Err_t {
	for cl != 0 {
		data, err := v.readCluster(cl)
		if err != 0 {
			return err
		}
		for off := 0; off+dirEntrySize <= len(data); off += dirEntrySize {
			d := decodeDirEntry(data[off : off+dirEntrySize])
			if !f(cl, off, d) {
				return 0
			}
		}
		next, err := v.NextCluster(cl)
		if err != 0 {
			return err
		}
		cl = next
	}
	return 0
}

// Lookup finds name (case-insensitive 8.3) in the directory at dirCl.
func (v *Volume) Lookup(dirCl uint32, name string) (DirEntry, defs.Err_t) {
	packed, err := pack83(name)
	if err != 0 {
		return DirEntry{}, err
	}
	ents, err := v.dirEntries(dirCl)
	if err != 0 {
		return DirEntry{}, err
	}
	for _, e := range ents {
		if e.Name == packed {
			return e, 0
		}
	}
	return DirEntry{}, -defs.ENOENT
}

// Readdir lists the entries in the directory at dirCl.
func (v *Volume) Readdir(dirCl uint32) ([]DirEntry, defs.Err_t) {
	return v.dirEntries(dirCl)
}

// AddEntry writes a new directory entry into dirCl, reusing a deleted
// slot or an all-zero terminator slot, extending the chain with a
// fresh cluster if the last one is full.
func (v *Volume) AddEntry(dirCl uint32, name string, attr uint8, firstCluster, size uint32) defs.Err_t {
	packed, err := pack83(name)
	if err != 0 {
		return err
	}
	if _, err := v.Lookup(dirCl, name); err == 0 {
		return -defs.EEXIST
	}

	d := DirEntry{
		Name:     packed,
		Attr:     attr,
		FstClusHi: uint16(firstCluster >> 16),
		FstClusLo: uint16(firstCluster),
		FileSize: size,
	}
	enc := d.encode()

	cl := dirCl
	var lastCl uint32
	for cl != 0 {
		data, rerr := v.readCluster(cl)
		if rerr != 0 {
			return rerr
		}
		for off := 0; off+dirEntrySize <= len(data); off += dirEntrySize {
			first := data[off]
			if first == 0 || first == 0xe5 {
				copy(data[off:off+dirEntrySize], enc)
				return v.writeCluster(cl, data)
			}
		}
		lastCl = cl
		next, nerr := v.NextCluster(cl)
		if nerr != 0 {
			return nerr
		}
		cl = next
	}

	nc, aerr := v.AllocCluster()
	if aerr != 0 {
		return aerr
	}
	if err := v.SetNext(lastCl, nc); err != 0 {
		return err
	}
	data := make([]byte, v.bytesPerCluster)
	copy(data[0:dirEntrySize], enc)
	return v.writeCluster(nc, data)
}

// UpdateEntry rewrites name's cluster/size fields in place, used after
// a write grows a file or allocates its first cluster.
func (v *Volume) UpdateEntry(dirCl uint32, name string, firstCluster, size uint32) defs.Err_t {
	packed, perr := pack83(name)
	if perr != 0 {
		return perr
	}
	var targetCl uint32
	var targetOff int
	found := false
	v.walkSlots(dirCl, func(cl uint32, off int, d DirEntry) bool {
		if d.Name[0] == 0 {
			return false
		}
		if d.Name == packed {
			targetCl, targetOff, found = cl, off, true
			return false
		}
		return true
	})
	if !found {
		return -defs.ENOENT
	}
	data, err := v.readCluster(targetCl)
	if err != 0 {
		return err
	}
	d := decodeDirEntry(data[targetOff : targetOff+dirEntrySize])
	d.FstClusHi = uint16(firstCluster >> 16)
	d.FstClusLo = uint16(firstCluster)
	d.FileSize = size
	copy(data[targetOff:targetOff+dirEntrySize], d.encode())
	return v.writeCluster(targetCl, data)
}

// RemoveEntry marks name's slot deleted (0xe5).
func (v *Volume) RemoveEntry(dirCl uint32, name string) defs.Err_t {
	packed, perr := pack83(name)
	if perr != 0 {
		return perr
	}
	var targetCl uint32
	var targetOff int
	found := false
	v.walkSlots(dirCl, func(cl uint32, off int, d DirEntry) bool {
		if d.Name[0] == 0 {
			return false
		}
		if d.Name == packed {
			targetCl, targetOff, found = cl, off, true
			return false
		}
		return true
	})
	if !found {
		return -defs.ENOENT
	}
	data, err := v.readCluster(targetCl)
	if err != 0 {
		return err
	}
	data[targetOff] = 0xe5
	return v.writeCluster(targetCl, data)
}

// CreateFile adds a zero-length regular-file entry named name to dirCl.
func (v *Volume) CreateFile(dirCl uint32, name string) defs.Err_t {
	return v.AddEntry(dirCl, name, attrArchive, 0, 0)
}

// CreateDir adds a directory entry named name to dirCl, allocating its
// first cluster and populating "." and "..".
func (v *Volume) CreateDir(dirCl uint32, name string) defs.Err_t {
	nc, err := v.AllocCluster()
	if err != 0 {
		return err
	}
	if err := v.AddEntry(dirCl, name, AttrDir, nc, 0); err != 0 {
		return err
	}
	data := make([]byte, v.bytesPerCluster)
	dot := DirEntry{Name: mustPack("."), Attr: AttrDir, FstClusHi: uint16(nc >> 16), FstClusLo: uint16(nc)}
	dotdot := DirEntry{Name: mustPack(".."), Attr: AttrDir, FstClusHi: uint16(dirCl >> 16), FstClusLo: uint16(dirCl)}
	copy(data[0:dirEntrySize], dot.encode())
	copy(data[dirEntrySize:2*dirEntrySize], dotdot.encode())
	return v.writeCluster(nc, data)
}

func mustPack(name string) [11]byte {
	p, _ := pack83(name)
	return p
}
