// Package ext2 implements a rev-0 EXT2 filesystem: superblock and group
// descriptor parsing, block/inode bitmap allocation, an inode cache with
// singleflight-coalesced fetches, indirect-block address mapping, and
// directory entry iteration. It reads and writes through bio, never
// touching storage.Backend directly.
package ext2

import (
	"bytes"
	"encoding/binary"
)

const (
	// SuperblockOffset is the superblock's fixed byte offset from the
	// start of the volume, regardless of block size.
	SuperblockOffset = 1024
	// SuperblockSize is padded to one 512-byte cache block; EXT2's
	// on-disk superblock reserves a full 1024 bytes but this
	// implementation does not interpret the journal/htree fields living
	// in the second half, so there is nothing to preserve there.
	SuperblockSize = 512

	magicExt2 = 0xef53

	NDIRBLOCKS = 12
	INDBLOCK   = NDIRBLOCKS
	DINDBLOCK  = INDBLOCK + 1
	TINDBLOCK  = DINDBLOCK + 1
	NBLOCKS    = TINDBLOCK + 1

	NameLen = 255

	ftUnknown = 0
	ftRegFile = 1
	ftDir     = 2
	ftChrdev  = 3
	ftBlkdev  = 4
	ftFifo    = 5
	ftSock    = 6
	ftSymlink = 7
)

// Superblock mirrors struct ext2_super_block field-for-field, decoded
// with encoding/binary so Go struct padding never matters.
type Superblock struct {
	InodesCount      uint32
	BlocksCount      uint32
	RBlocksCount     uint32
	FreeBlocksCount  uint32
	FreeInodesCount  uint32
	FirstDataBlock   uint32
	LogBlockSize     uint32
	LogFragSize      uint32
	BlocksPerGroup   uint32
	FragsPerGroup    uint32
	InodesPerGroup   uint32
	Mtime            uint32
	Wtime            uint32
	MntCount         uint16
	MaxMntCount      uint16
	Magic            uint16
	State            uint16
	Errors           uint16
	MinorRevLevel    uint16
	Lastcheck        uint32
	Checkinterval    uint32
	CreatorOS        uint32
	RevLevel         uint32
	DefResuid        uint16
	DefResgid        uint16
	FirstIno         uint32
	InodeSize        uint16
	BlockGroupNr     uint16
	FeatureCompat    uint32
	FeatureIncompat  uint32
	FeatureROCompat  uint32
	UUID             [16]uint8
	VolumeName       [16]byte
	LastMounted      [64]byte
	AlgoUsageBitmap  uint32
	PreallocBlocks   uint8
	PreallocDirBlocks uint8
	_                uint16
	_                [256]byte // journal uuid + hash seed + reserved, unused at rev 0
}

// BlockSize is the filesystem's block size in bytes (1024 << LogBlockSize).
func (s *Superblock) BlockSize() int { return 1024 << s.LogBlockSize }

// GroupCount returns the number of block groups the volume is divided into.
func (s *Superblock) GroupCount() int {
	n := (s.BlocksCount - s.FirstDataBlock + s.BlocksPerGroup - 1) / s.BlocksPerGroup
	return int(n)
}

// DecodeSuperblock parses the 1024-byte superblock starting at buf[0].
func DecodeSuperblock(buf []byte) (*Superblock, bool) {
	var s Superblock
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &s); err != nil {
		return nil, false
	}
	if s.Magic != magicExt2 {
		return nil, false
	}
	return &s, true
}

// Encode serializes the superblock back to its on-disk representation.
func (s *Superblock) Encode() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, s)
	out := make([]byte, SuperblockSize)
	copy(out, buf.Bytes())
	return out
}

// GroupDesc mirrors struct ext2_group_desc.
type GroupDesc struct {
	BlockBitmap     uint32
	InodeBitmap     uint32
	InodeTable      uint32
	FreeBlocksCount uint16
	FreeInodesCount uint16
	UsedDirsCount   uint16
	_               uint16
	_               [12]byte
}

const groupDescSize = 32

// DecodeGroupDescs parses n consecutive group descriptors from buf.
func DecodeGroupDescs(buf []byte, n int) []GroupDesc {
	gds := make([]GroupDesc, n)
	for i := 0; i < n; i++ {
		off := i * groupDescSize
		binary.Read(bytes.NewReader(buf[off:off+groupDescSize]), binary.LittleEndian, &gds[i])
	}
	return gds
}

// EncodeGroupDescs serializes gds back into a byte buffer.
func EncodeGroupDescs(gds []GroupDesc) []byte {
	buf := make([]byte, len(gds)*groupDescSize)
	for i := range gds {
		var b bytes.Buffer
		binary.Write(&b, binary.LittleEndian, &gds[i])
		copy(buf[i*groupDescSize:], b.Bytes())
	}
	return buf
}

// DiskInode mirrors struct ext2_disk_inode (the portable, non-OS-specific
// fields only; osd1/osd2 are not interpreted).
type DiskInode struct {
	Mode        uint16
	UID         uint16
	Size        uint32
	Atime       uint32
	Ctime       uint32
	Mtime       uint32
	Dtime       uint32
	GID         uint16
	LinksCount  uint16
	Blocks      uint32
	Flags       uint32
	OSD1        uint32
	Block       [NBLOCKS]uint32
	Generation  uint32
	FileACL     uint32
	DirACL      uint32
	Faddr       uint32
	OSD2        [12]byte
}

const diskInodeSize = 128

// DecodeInode parses one on-disk inode from buf[0:diskInodeSize].
func DecodeInode(buf []byte) DiskInode {
	var di DiskInode
	binary.Read(bytes.NewReader(buf), binary.LittleEndian, &di)
	return di
}

// Encode serializes the inode into a diskInodeSize-byte buffer.
func (di *DiskInode) Encode() []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, di)
	out := make([]byte, diskInodeSize)
	copy(out, b.Bytes())
	return out
}

// DirEntry mirrors struct ext2_dir_entry_2, already split into its fixed
// header and variable-length name.
type DirEntry struct {
	Inode    uint32
	RecLen   uint16
	NameLen  uint8
	FileType uint8
	Name     string
}

const dirEntryHeaderSize = 8

// DecodeDirEntry parses one directory entry starting at buf[0]; RecLen
// tells the caller where the next entry begins.
func DecodeDirEntry(buf []byte) DirEntry {
	inode := binary.LittleEndian.Uint32(buf[0:4])
	recLen := binary.LittleEndian.Uint16(buf[4:6])
	nameLen := buf[6]
	fileType := buf[7]
	name := string(buf[dirEntryHeaderSize : dirEntryHeaderSize+int(nameLen)])
	return DirEntry{Inode: inode, RecLen: recLen, NameLen: nameLen, FileType: fileType, Name: name}
}

// Encode serializes a directory entry, padding RecLen to a 4-byte
// boundary as mkfs and the kernel both expect.
func (d DirEntry) Encode() []byte {
	need := dirEntryHeaderSize + len(d.Name)
	recLen := (need + 3) &^ 3
	if int(d.RecLen) > recLen {
		recLen = int(d.RecLen)
	}
	buf := make([]byte, recLen)
	binary.LittleEndian.PutUint32(buf[0:4], d.Inode)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(recLen))
	buf[6] = uint8(len(d.Name))
	buf[7] = d.FileType
	copy(buf[8:], d.Name)
	return buf
}

func modeToFileType(mode uint16) uint8 {
	switch mode & 0170000 {
	case 0040000:
		return ftDir
	case 0100000:
		return ftRegFile
	case 0120000:
		return ftSymlink
	case 0020000:
		return ftChrdev
	case 0060000:
		return ftBlkdev
	case 0010000:
		return ftFifo
	case 0140000:
		return ftSock
	default:
		return ftUnknown
	}
}
