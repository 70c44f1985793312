// Package stat mirrors the on-wire layout of a stat(2) result, so it can
// be copied to user memory as raw bytes without per-field marshaling.
package stat

import "unsafe"

// Stat_t mirrors a file's stat information. Field order matches the wire
// layout returned to user space; Bytes exposes it directly.
type Stat_t struct {
	dev    uint
	ino    uint
	mode   uint
	size   uint
	rdev   uint
	nlink  uint
	blocks uint
}

// Wdev stores the device ID.
func (st *Stat_t) Wdev(v uint) { st.dev = v }

// Wino stores the inode number.
func (st *Stat_t) Wino(v uint) { st.ino = v }

// Wmode records the file mode and type.
func (st *Stat_t) Wmode(v uint) { st.mode = v }

// Wsize records the file size in bytes.
func (st *Stat_t) Wsize(v uint) { st.size = v }

// Wrdev stores the rdev field for device special files.
func (st *Stat_t) Wrdev(v uint) { st.rdev = v }

// Wnlink stores the hard link count.
func (st *Stat_t) Wnlink(v uint) { st.nlink = v }

// Wblocks stores the number of 512-byte blocks allocated to the file.
func (st *Stat_t) Wblocks(v uint) { st.blocks = v }

// Dev returns the stored device ID.
func (st *Stat_t) Dev() uint { return st.dev }

// Mode returns the stored mode value.
func (st *Stat_t) Mode() uint { return st.mode }

// Size returns the stored size.
func (st *Stat_t) Size() uint { return st.size }

// Rdev returns the stored rdev.
func (st *Stat_t) Rdev() uint { return st.rdev }

// Rino returns the stored inode number.
func (st *Stat_t) Rino() uint { return st.ino }

// Bytes exposes the raw bytes of the structure for a user-space copy.
func (st *Stat_t) Bytes() []uint8 {
	const sz = unsafe.Sizeof(Stat_t{})
	sl := (*[sz]uint8)(unsafe.Pointer(st))
	return sl[:]
}
