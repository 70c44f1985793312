package ext2

import (
	"fmt"
	"sync"

	"golang.org/x/mod/semver"
	"golang.org/x/sync/singleflight"

	"keelos/internal/bio"
	"keelos/internal/defs"
)

// maxSupportedRev is the highest on-disk revision this implementation
// understands; rev 0 (the original EXT2 revision, no dynamic feature
// fields) is all it targets.
const maxSupportedRev = "v0.0.0"

// Volume is one mounted EXT2 filesystem: its superblock, group
// descriptor table, and a cache of live in-memory inodes.
type Volume struct {
	cache *bio.Cache
	dev   int

	mu  sync.Mutex
	sb  *Superblock
	gds []GroupDesc

	icache map[uint32]*Inode
	sf     singleflight.Group
}

func (v *Volume) bsize() int { return v.sb.BlockSize() }

// fsBread reads filesystem block fb (in v's block size) by reading the
// underlying 512-byte bio blocks it spans.
func (v *Volume) fsBread(fb uint32) ([]byte, defs.Err_t) {
	bs := v.bsize()
	per := bs / bio.BSIZE
	out := make([]byte, bs)
	base := int(fb) * per
	for i := 0; i < per; i++ {
		b, err := v.cache.Bread(v.dev, base+i)
		if err != 0 {
			return nil, err
		}
		b.Lock()
		copy(out[i*bio.BSIZE:], b.Data[:])
		b.Unlock()
	}
	return out, 0
}

// fsBwrite writes data (one filesystem block) back through bio.
func (v *Volume) fsBwrite(fb uint32, data []byte) defs.Err_t {
	bs := v.bsize()
	per := bs / bio.BSIZE
	base := int(fb) * per
	for i := 0; i < per; i++ {
		b, err := v.cache.Bread(v.dev, base+i)
		if err != 0 {
			return err
		}
		b.Lock()
		copy(b.Data[:], data[i*bio.BSIZE:(i+1)*bio.BSIZE])
		b.Unlock()
		v.cache.Bwrite(b)
	}
	return 0
}

// Mount parses the superblock and group descriptor table of dev through
// cache, rejecting volumes whose on-disk revision this implementation
// does not understand.
func Mount(cache *bio.Cache, dev int) (*Volume, defs.Err_t) {
	v := &Volume{cache: cache, dev: dev, icache: map[uint32]*Inode{}}

	sbBlock := SuperblockOffset / bio.BSIZE
	b, err := cache.Bread(dev, sbBlock)
	if err != 0 {
		return nil, err
	}
	b.Lock()
	raw := append([]byte(nil), b.Data[:]...)
	b.Unlock()

	sb, ok := DecodeSuperblock(raw)
	if !ok {
		return nil, -defs.EINVAL
	}
	rev := fmt.Sprintf("v%d.%d.0", sb.RevLevel, sb.MinorRevLevel)
	if !semver.IsValid(rev) {
		return nil, -defs.EINVAL
	}
	if semver.Compare(rev, maxSupportedRev) > 0 {
		return nil, -defs.EINVAL
	}
	v.sb = sb

	ngroups := sb.GroupCount()
	gdBlock := uint32(sb.FirstDataBlock) + 1
	gdBytes, err := v.fsBread(gdBlock)
	if err != 0 {
		return nil, err
	}
	v.gds = DecodeGroupDescs(gdBytes, ngroups)

	return v, 0
}

// Sync flushes the superblock, group descriptor table, and the
// underlying buffer cache.
func (v *Volume) Sync() defs.Err_t {
	v.mu.Lock()
	sbBytes := v.sb.Encode()
	gdBytes := EncodeGroupDescs(v.gds)
	v.mu.Unlock()

	sbBlock := SuperblockOffset / bio.BSIZE
	b, err := v.cache.Bread(v.dev, sbBlock)
	if err != 0 {
		return err
	}
	b.Lock()
	copy(b.Data[:], sbBytes)
	b.Unlock()
	v.cache.Bwrite(b)

	bs := v.bsize()
	if pad := len(gdBytes) % bs; pad != 0 {
		gdBytes = append(gdBytes, make([]byte, bs-pad)...)
	}
	base := uint32(v.sb.FirstDataBlock) + 1
	for i := 0; i*bs < len(gdBytes); i++ {
		if err := v.fsBwrite(base+uint32(i), gdBytes[i*bs:(i+1)*bs]); err != 0 {
			return err
		}
	}
	return v.cache.Sync()
}
