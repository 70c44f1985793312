package ext2

import (
	"keelos/internal/bio"
	"keelos/internal/defs"
)

// Format lays down a fresh single-group EXT2 rev-0 filesystem on dev:
// superblock, one group descriptor, block/inode bitmaps, a zeroed
// inode table, and a root directory at inode 2. It is the on-disk
// counterpart to Mount, used only by cmd/mkfs — the kernel itself
// never formats a volume, only mounts one built ahead of time.
//
// Multi-group layout is not implemented: totalBlocks must fit within
// one group's bitmap (4096*8 blocks), which bounds the image to
// roughly 128MiB at the fixed 4096-byte block size this uses. A
// second group needs its own bitmap and inode-table placement that
// nothing in this tree exercises, so it was left out rather than
// built and never called.
func Format(cache *bio.Cache, dev int, totalBlocks, totalInodes uint32) (*Volume, defs.Err_t) {
	const bs = 4096
	const logBlockSize = 2 // 1024 << 2 == 4096
	const firstDataBlock = 0

	blocksPerGroup := uint32(bs * 8)
	if totalBlocks > blocksPerGroup {
		return nil, -defs.EINVAL
	}
	if totalInodes < 11 {
		return nil, -defs.EINVAL
	}

	inodeTableBlocks := (totalInodes*uint32(diskInodeSize) + bs - 1) / bs
	metaBlocks := uint32(4) + inodeTableBlocks
	if totalBlocks <= metaBlocks {
		return nil, -defs.ENOSPC
	}

	sb := &Superblock{
		InodesCount:     totalInodes,
		BlocksCount:     totalBlocks,
		FreeBlocksCount: totalBlocks - metaBlocks,
		FreeInodesCount: totalInodes - 10,
		FirstDataBlock:  firstDataBlock,
		LogBlockSize:    logBlockSize,
		LogFragSize:     logBlockSize,
		BlocksPerGroup:  blocksPerGroup,
		FragsPerGroup:   blocksPerGroup,
		InodesPerGroup:  totalInodes,
		Magic:           magicExt2,
		State:           1,
		FirstIno:        11,
		InodeSize:       diskInodeSize,
	}

	gd := GroupDesc{
		BlockBitmap:     firstDataBlock + 2,
		InodeBitmap:     firstDataBlock + 3,
		InodeTable:      firstDataBlock + 4,
		FreeBlocksCount: uint16(sb.FreeBlocksCount),
		FreeInodesCount: uint16(sb.FreeInodesCount),
		UsedDirsCount:   1,
	}

	v := &Volume{cache: cache, dev: dev, sb: sb, gds: []GroupDesc{gd}, icache: map[uint32]*Inode{}}

	bbmBuf := make([]byte, bs)
	for i := uint32(0); i < metaBlocks; i++ {
		bbmBuf[i/8] |= 1 << (i % 8)
	}
	for i := totalBlocks; i < blocksPerGroup; i++ {
		bbmBuf[i/8] |= 1 << (i % 8)
	}
	if err := v.fsBwrite(gd.BlockBitmap, bbmBuf); err != 0 {
		return nil, err
	}

	ibmBuf := make([]byte, bs)
	for i := uint32(0); i < 10; i++ {
		ibmBuf[i/8] |= 1 << (i % 8)
	}
	if err := v.fsBwrite(gd.InodeBitmap, ibmBuf); err != 0 {
		return nil, err
	}

	zero := make([]byte, bs)
	for i := uint32(0); i < inodeTableBlocks; i++ {
		if err := v.fsBwrite(gd.InodeTable+i, zero); err != 0 {
			return nil, err
		}
	}

	if err := v.Sync(); err != 0 {
		return nil, err
	}

	root, err := v.Iget(2)
	if err != 0 {
		return nil, err
	}
	root.mu.Lock()
	root.disk.Mode = 0040755
	root.mu.Unlock()
	if err := root.Writeback(); err != 0 {
		return nil, err
	}
	if err := v.MkRootDir(2); err != 0 {
		return nil, err
	}
	return v, 0
}
