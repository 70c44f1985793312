// Package fat32 implements a FAT32 filesystem: BIOS parameter block
// parsing, the FAT cluster-chain allocator, and 8.3 directory entries.
// Long file names are explicitly unsupported; a name that does not fit
// 8.3 is rejected at create time rather than synthesized or truncated.
package fat32

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"

	"keelos/internal/bio"
	"keelos/internal/defs"
)

// maxSupportedRev is the highest FSVersion this implementation
// understands; FAT32 volumes are universally version 0.0 in practice,
// but the field exists precisely so a future revision can be rejected
// at mount time instead of silently misread.
const maxSupportedRev = "v0.0.0"

const (
	attrReadOnly = 0x01
	attrHidden   = 0x02
	attrSystem   = 0x04
	attrVolumeID = 0x08
	AttrDir      = 0x10
	attrArchive  = 0x20
	attrLongName = 0x0f

	clusterFree  = 0x00000000
	clusterEOCLo = 0x0ffffff8
	clusterBad   = 0x0ffffff7
	clusterMask  = 0x0fffffff
)

// BPB mirrors fat32_bpb_t field-for-field.
type BPB struct {
	_                   [3]byte
	_                   [8]byte
	BytesPerSector      uint16
	SectorsPerCluster   uint8
	ReservedSectorCount uint16
	NumFATs             uint8
	RootEntryCount      uint16
	TotalSectors16      uint16
	Media               uint8
	FATSize16           uint16
	SectorsPerTrack     uint16
	NumHeads            uint16
	HiddenSectors       uint32
	TotalSectors32      uint32
	FATSize32           uint32
	ExtFlags            uint16
	FSVersion           uint16
	RootCluster         uint32
	FSInfo              uint16
	BackupBootSector    uint16
	_                   [12]byte
	DriveNumber         uint8
	_                   uint8
	BootSignature       uint8
	VolumeID            uint32
	VolumeLabel         [11]byte
	FSType              [8]byte
}

// DecodeBPB parses the boot sector's BIOS parameter block.
func DecodeBPB(sector []byte) (*BPB, bool) {
	var b BPB
	if err := binary.Read(bytes.NewReader(sector), binary.LittleEndian, &b); err != nil {
		return nil, false
	}
	if b.BytesPerSector == 0 || b.SectorsPerCluster == 0 {
		return nil, false
	}
	return &b, true
}

// DirEntry mirrors fat32_directory_entry_t.
type DirEntry struct {
	Name       [11]byte
	Attr       uint8
	NTRes      uint8
	CrtTimeTh  uint8
	CrtTime    uint16
	CrtDate    uint16
	LstAccDate uint16
	FstClusHi  uint16
	WrtTime    uint16
	WrtDate    uint16
	FstClusLo  uint16
	FileSize   uint32
}

const dirEntrySize = 32

func decodeDirEntry(buf []byte) DirEntry {
	var d DirEntry
	binary.Read(bytes.NewReader(buf[:dirEntrySize]), binary.LittleEndian, &d)
	return d
}

func (d DirEntry) encode() []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, &d)
	return b.Bytes()
}

// Cluster returns the entry's first cluster number.
func (d DirEntry) Cluster() uint32 { return uint32(d.FstClusHi)<<16 | uint32(d.FstClusLo) }

// DisplayName renders the packed 8.3 name as "NAME.EXT" (no extension
// suffix for directories or extensionless files).
func (d DirEntry) DisplayName() string {
	base := strings.TrimRight(string(d.Name[0:8]), " ")
	ext := strings.TrimRight(string(d.Name[8:11]), " ")
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// pack83 converts "name.ext" into the fixed 11-byte packed form,
// failing if either component overflows 8.3 (long names are rejected,
// never truncated or synthesized with a numeric tail).
func pack83(name string) ([11]byte, defs.Err_t) {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	base, ext, _ := strings.Cut(strings.ToUpper(name), ".")
	if len(base) > 8 || len(ext) > 3 {
		return out, -defs.ENAMETOOLONG
	}
	copy(out[0:8], base)
	copy(out[8:11], ext)
	return out, 0
}

// Volume is a mounted FAT32 filesystem.
type Volume struct {
	cache *bio.Cache
	dev   int
	bpb   *BPB

	sectorsPerFAT   uint32
	firstDataSector uint32
	fatStartSector  uint32
	bytesPerCluster uint32
}

// Mount parses the boot sector of dev through cache.
func Mount(cache *bio.Cache, dev int) (*Volume, defs.Err_t) {
	b, err := cache.Bread(dev, 0)
	if err != 0 {
		return nil, err
	}
	b.Lock()
	raw := append([]byte(nil), b.Data[:]...)
	b.Unlock()

	bpb, ok := DecodeBPB(raw)
	if !ok {
		return nil, -defs.EINVAL
	}
	rev := fmt.Sprintf("v%d.%d.0", bpb.FSVersion>>8, bpb.FSVersion&0xff)
	if !semver.IsValid(rev) {
		return nil, -defs.EINVAL
	}
	if semver.Compare(rev, maxSupportedRev) > 0 {
		return nil, -defs.EINVAL
	}
	v := &Volume{cache: cache, dev: dev, bpb: bpb}
	v.sectorsPerFAT = bpb.FATSize32
	v.fatStartSector = uint32(bpb.ReservedSectorCount)
	v.firstDataSector = v.fatStartSector + uint32(bpb.NumFATs)*v.sectorsPerFAT
	v.bytesPerCluster = uint32(bpb.BytesPerSector) * uint32(bpb.SectorsPerCluster)
	return v, 0
}

func (v *Volume) sectorsPerCluster() uint32 { return uint32(v.bpb.SectorsPerCluster) }

func (v *Volume) clusterToSector(cl uint32) uint32 {
	return v.firstDataSector + (cl-2)*v.sectorsPerCluster()
}

// readSector reads one bio.BSIZE-sized physical sector via bio, scaled
// to the volume's BytesPerSector if it differs from bio.BSIZE.
func (v *Volume) readSector(sec uint32) ([]byte, defs.Err_t) {
	bs := int(v.bpb.BytesPerSector)
	per := bs / bio.BSIZE
	if per == 0 {
		per = 1
	}
	out := make([]byte, bs)
	base := int(sec) * per
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

func (v *Volume) writeSector(sec uint32, data []byte) defs.Err_t {
	bs := int(v.bpb.BytesPerSector)
	per := bs / bio.BSIZE
	if per == 0 {
		per = 1
	}
	base := int(sec) * per
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

func (v *Volume) readCluster(cl uint32) ([]byte, defs.Err_t) {
	sec := v.clusterToSector(cl)
	out := make([]byte, 0, v.bytesPerCluster)
	for i := uint32(0); i < v.sectorsPerCluster(); i++ {
		s, err := v.readSector(sec + i)
		if err != 0 {
			return nil, err
		}
		out = append(out, s...)
	}
	return out, 0
}

func (v *Volume) writeCluster(cl uint32, data []byte) defs.Err_t {
	sec := v.clusterToSector(cl)
	bs := int(v.bpb.BytesPerSector)
	for i := uint32(0); i < v.sectorsPerCluster(); i++ {
		if err := v.writeSector(sec+i, data[int(i)*bs:(int(i)+1)*bs]); err != 0 {
			return err
		}
	}
	return 0
}

// RootCluster is the first cluster of the root directory.
func (v *Volume) RootCluster() uint32 { return v.bpb.RootCluster }
