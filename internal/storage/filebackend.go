package storage

import (
	"os"
	"sync"

	"keelos/internal/defs"
)

// FileBackend is a Backend over a regular host file, seeking to
// lba*sectorSize before each transfer under a lock so a read never
// interleaves with a concurrent write's seek. It exists for the same
// reason the teacher's ahci_disk_t does: tests and host-side tooling
// (cmd/mkfs) need a disk that isn't real hardware.
type FileBackend struct {
	mu         sync.Mutex
	f          *os.File
	sectorSize int
}

// NewFileBackend opens (or creates) path as a sectorSize-sectored
// block device of the given size in bytes.
func NewFileBackend(path string, sectorSize int, sizeBytes int64) (*FileBackend, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(sizeBytes); err != nil {
		f.Close()
		return nil, err
	}
	return &FileBackend{f: f, sectorSize: sectorSize}, nil
}

// OpenFileBackend opens an existing image without resizing it.
func OpenFileBackend(path string, sectorSize int) (*FileBackend, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	return &FileBackend{f: f, sectorSize: sectorSize}, nil
}

func (fb *FileBackend) SectorSize() int { return fb.sectorSize }

func (fb *FileBackend) ReadBlock(lba int, dst []uint8) defs.Err_t {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if _, err := fb.f.Seek(int64(lba)*int64(fb.sectorSize), 0); err != nil {
		return -defs.EIO
	}
	if _, err := fb.f.Read(dst); err != nil {
		return -defs.EIO
	}
	return 0
}

func (fb *FileBackend) WriteBlock(lba int, src []uint8) defs.Err_t {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if _, err := fb.f.Seek(int64(lba)*int64(fb.sectorSize), 0); err != nil {
		return -defs.EIO
	}
	if _, err := fb.f.Write(src); err != nil {
		return -defs.EIO
	}
	return 0
}

// Close flushes and closes the backing file.
func (fb *FileBackend) Close() error {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if err := fb.f.Sync(); err != nil {
		return err
	}
	return fb.f.Close()
}
