package ext2

import (
	"fmt"
	"sync"

	"keelos/internal/defs"
)

// Inode is a live in-memory EXT2 inode: the decoded on-disk fields plus
// the bookkeeping needed to write them back and reclaim them.
type Inode struct {
	vol  *Volume
	Inum uint32

	mu   sync.Mutex
	disk DiskInode
	ref  int
}

func inodeLoc(sb *Superblock, gds []GroupDesc, inum uint32) (blk uint32, off int) {
	gi := (inum - 1) / sb.InodesPerGroup
	idx := (inum - 1) % sb.InodesPerGroup
	perBlock := uint32(sb.BlockSize() / diskInodeSize)
	blk = gds[gi].InodeTable + idx/perBlock
	off = int(idx%perBlock) * diskInodeSize
	return
}

// Iget returns the live inode for inum, reading it from disk on first
// reference. Concurrent Igets for the same inum block on one disk read
// via singleflight rather than racing separate fetches.
func (v *Volume) Iget(inum uint32) (*Inode, defs.Err_t) {
	v.mu.Lock()
	if ip, ok := v.icache[inum]; ok {
		ip.ref++
		v.mu.Unlock()
		return ip, 0
	}
	v.mu.Unlock()

	key := fmt.Sprintf("%d", inum)
	res, err, _ := v.sf.Do(key, func() (interface{}, error) {
		blk, off := inodeLoc(v.sb, v.gds, inum)
		buf, e := v.fsBread(blk)
		if e != 0 {
			return nil, fmt.Errorf("%d", int(e))
		}
		di := DecodeInode(buf[off : off+diskInodeSize])
		ip := &Inode{vol: v, Inum: inum, disk: di, ref: 1}

		v.mu.Lock()
		if existing, ok := v.icache[inum]; ok {
			existing.ref++
			v.mu.Unlock()
			return existing, nil
		}
		v.icache[inum] = ip
		v.mu.Unlock()
		return ip, nil
	})
	if err != nil {
		var e defs.Err_t
		fmt.Sscanf(err.Error(), "%d", &e)
		return nil, e
	}
	return res.(*Inode), 0
}

// Put drops a reference; when the last reference and all links are gone
// the inode's blocks and slot are freed.
func (ip *Inode) Put() defs.Err_t {
	v := ip.vol
	v.mu.Lock()
	ip.mu.Lock()
	ip.ref--
	dead := ip.ref == 0 && ip.disk.LinksCount == 0
	ref := ip.ref
	ip.mu.Unlock()
	if ref == 0 {
		delete(v.icache, ip.Inum)
	}
	v.mu.Unlock()

	if !dead {
		return 0
	}
	if err := ip.truncate(0); err != 0 {
		return err
	}
	return v.freeInode(ip.Inum)
}

// DecLink drops the inode's hard-link count by one, persisting the new
// count. Reclamation happens in Put once both the link count and the
// reference count reach zero.
func (ip *Inode) DecLink() defs.Err_t {
	ip.mu.Lock()
	if ip.disk.LinksCount > 0 {
		ip.disk.LinksCount--
	}
	ip.mu.Unlock()
	return ip.Writeback()
}

// Writeback flushes the inode's in-memory fields to its disk slot.
func (ip *Inode) Writeback() defs.Err_t {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	blk, off := inodeLoc(ip.vol.sb, ip.vol.gds, ip.Inum)
	buf, err := ip.vol.fsBread(blk)
	if err != 0 {
		return err
	}
	copy(buf[off:off+diskInodeSize], ip.disk.Encode())
	return ip.vol.fsBwrite(blk, buf)
}

// Stat-ish accessors; all guarded by ip.mu since concurrent readers and
// a writer racing on Size/Mode are both legitimate.
func (ip *Inode) Mode() uint16 { ip.mu.Lock(); defer ip.mu.Unlock(); return ip.disk.Mode }
func (ip *Inode) Size() int    { ip.mu.Lock(); defer ip.mu.Unlock(); return int(ip.disk.Size) }
func (ip *Inode) Links() int   { ip.mu.Lock(); defer ip.mu.Unlock(); return int(ip.disk.LinksCount) }

// Vol returns the inode's owning volume, so a caller holding only an
// *Inode (a vfs adapter, say) can Iget a sibling without threading the
// *Volume through separately.
func (ip *Inode) Vol() *Volume { return ip.vol }

func (ip *Inode) IsDir() bool  { return ip.Mode()&0170000 == 0040000 }
func (ip *Inode) IsLink() bool { return ip.Mode()&0170000 == 0120000 }

// mkInode allocates a fresh inode number and initializes its on-disk
// fields, returning the live Inode with one reference held.
func (v *Volume) mkInode(mode uint16) (*Inode, defs.Err_t) {
	inum, err := v.allocInode(-1)
	if err != 0 {
		return nil, err
	}
	di := DiskInode{Mode: mode, LinksCount: 1}
	ip := &Inode{vol: v, Inum: inum, disk: di, ref: 1}
	v.mu.Lock()
	v.icache[inum] = ip
	v.mu.Unlock()
	if err := ip.Writeback(); err != 0 {
		return nil, err
	}
	return ip, 0
}
