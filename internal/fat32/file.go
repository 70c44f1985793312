package fat32

import "keelos/internal/defs"

// ReadFile copies up to len(dst) bytes of the file rooted at
// firstCluster (sized size bytes) starting at file offset off.
func (v *Volume) ReadFile(firstCluster, size uint32, off int, dst []byte) (int, defs.Err_t) {
	if off >= int(size) {
		return 0, 0
	}
	if off+len(dst) > int(size) {
		dst = dst[:int(size)-off]
	}
	bpc := int(v.bytesPerCluster)
	cl := firstCluster
	skip := off / bpc
	for i := 0; i < skip; i++ {
		next, err := v.NextCluster(cl)
		if err != 0 {
			return 0, err
		}
		if next == 0 {
			return 0, -defs.EINVAL
		}
		cl = next
	}
	n := 0
	coff := off % bpc
	for n < len(dst) {
		data, err := v.readCluster(cl)
		if err != 0 {
			return n, err
		}
		cnt := bpc - coff
		if cnt > len(dst)-n {
			cnt = len(dst) - n
		}
		copy(dst[n:n+cnt], data[coff:coff+cnt])
		n += cnt
		coff = 0
		if n < len(dst) {
			next, err := v.NextCluster(cl)
			if err != 0 {
				return n, err
			}
			if next == 0 {
				break
			}
			cl = next
		}
	}
	return n, 0
}

// WriteFile writes src at offset off into the chain rooted at
// firstCluster, extending the chain as needed. It returns the new
// first cluster (unchanged unless the file was empty) and file size.
func (v *Volume) WriteFile(firstCluster uint32, off int, src []byte) (newFirst uint32, newSize uint32, err defs.Err_t) {
	bpc := int(v.bytesPerCluster)
	if firstCluster == 0 {
		nc, aerr := v.AllocCluster()
		if aerr != 0 {
			return 0, 0, aerr
		}
		firstCluster = nc
	}
	cl := firstCluster
	skip := off / bpc
	for i := 0; i < skip; i++ {
		next, nerr := v.NextCluster(cl)
		if nerr != 0 {
			return 0, 0, nerr
		}
		if next == 0 {
			next, aerr := v.AllocCluster()
			if aerr != 0 {
				return 0, 0, aerr
			}
			if serr := v.SetNext(cl, next); serr != 0 {
				return 0, 0, serr
			}
			cl = next
			continue
		}
		cl = next
	}

	n := 0
	coff := off % bpc
	for n < len(src) {
		data, rerr := v.readCluster(cl)
		if rerr != 0 {
			return 0, 0, rerr
		}
		cnt := bpc - coff
		if cnt > len(src)-n {
			cnt = len(src) - n
		}
		copy(data[coff:coff+cnt], src[n:n+cnt])
		if werr := v.writeCluster(cl, data); werr != 0 {
			return 0, 0, werr
		}
		n += cnt
		coff = 0
		if n < len(src) {
			next, nerr := v.NextCluster(cl)
			if nerr != 0 {
				return 0, 0, nerr
			}
			if next == 0 {
				nc, aerr := v.AllocCluster()
				if aerr != 0 {
					return 0, 0, aerr
				}
				if serr := v.SetNext(cl, nc); serr != 0 {
					return 0, 0, serr
				}
				next = nc
			}
			cl = next
		}
	}
	return firstCluster, uint32(off + n), 0
}

// DeleteFile frees name's cluster chain and directory slot.
func (v *Volume) DeleteFile(dirCl uint32, name string) defs.Err_t {
	ent, err := v.Lookup(dirCl, name)
	if err != 0 {
		return err
	}
	if ent.Cluster() != 0 {
		if err := v.FreeChain(ent.Cluster()); err != 0 {
			return err
		}
	}
	return v.RemoveEntry(dirCl, name)
}
