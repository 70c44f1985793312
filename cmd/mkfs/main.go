// Command mkfs builds a bootable disk image: a raw boot sector and
// kernel binary in a reserved header region, followed by an EXT2
// filesystem populated from a host skeleton directory.
package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"keelos/internal/bio"
	"keelos/internal/defs"
	"keelos/internal/ext2"
	"keelos/internal/storage"
)

const (
	sectorSize    = 512
	headerSectors = 2048 // 1MiB reserved for the boot sector and kernel image
	fsBlockSize   = 4096
	fsBlocks      = 24000 // 24000 * 4096 ~= 94MiB of filesystem
	fsInodes      = 6000
)

func main() {
	if len(os.Args) != 5 {
		fmt.Fprintf(os.Stderr, "usage: %s <bootimage> <kernelimage> <outimage> <skeldir>\n", os.Args[0])
		os.Exit(1)
	}
	bootPath, kernelPath, outPath, skelDir := os.Args[1], os.Args[2], os.Args[3], os.Args[4]

	totalSectors := int64(headerSectors) + int64(fsBlocks)*(fsBlockSize/sectorSize)
	backend, err := storage.NewFileBackend(outPath, sectorSize, totalSectors*sectorSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create image: %v\n", err)
		os.Exit(1)
	}

	if err := writeRaw(backend, 0, bootPath); err != nil {
		fmt.Fprintf(os.Stderr, "write boot image: %v\n", err)
		os.Exit(1)
	}
	if err := writeRaw(backend, headerSectors/2, kernelPath); err != nil {
		fmt.Fprintf(os.Stderr, "write kernel image: %v\n", err)
		os.Exit(1)
	}

	fsBackend := &offsetBackend{inner: backend, lbaOffset: headerSectors}
	cache := bio.NewCache()
	cache.RegisterDevice(0, fsBackend)

	vol, errno := ext2.Format(cache, 0, fsBlocks, fsInodes)
	if errno != 0 {
		fmt.Fprintf(os.Stderr, "format: errno %d\n", errno)
		os.Exit(1)
	}
	root, errno := vol.Iget(2)
	if errno != 0 {
		fmt.Fprintf(os.Stderr, "root inode: errno %d\n", errno)
		os.Exit(1)
	}
	if err := addTree(root, skelDir); err != nil {
		fmt.Fprintf(os.Stderr, "populate skeleton: %v\n", err)
		os.Exit(1)
	}
	if errno := vol.Sync(); errno != 0 {
		fmt.Fprintf(os.Stderr, "sync: errno %d\n", errno)
		os.Exit(1)
	}
	if err := backend.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close image: %v\n", err)
		os.Exit(1)
	}
}

// writeRaw copies the file at path into the image starting at
// startSector, zero-padding the final partial sector.
func writeRaw(b *storage.FileBackend, startSector int, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	buf := make([]byte, sectorSize)
	for i := 0; i*sectorSize < len(data); i++ {
		n := copy(buf, data[i*sectorSize:])
		for j := n; j < sectorSize; j++ {
			buf[j] = 0
		}
		if errno := b.WriteBlock(startSector+i, buf); errno != 0 {
			return fmt.Errorf("write sector %d: errno %d", startSector+i, errno)
		}
	}
	return nil
}

// addTree walks hostDir on the host and replicates its contents under
// root, creating directories top-down so each file's parent already
// exists in the image by the time WalkDir reaches it.
func addTree(root *ext2.Inode, hostDir string) error {
	dirs := map[string]*ext2.Inode{".": root}
	return filepath.WalkDir(hostDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(hostDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		parent, ok := dirs[filepath.Dir(rel)]
		if !ok {
			return fmt.Errorf("%s: parent directory not yet created", rel)
		}
		name := filepath.Base(rel)

		if d.IsDir() {
			child, errno := parent.Mkdir(name, 0755)
			if errno != 0 {
				return fmt.Errorf("mkdir %s: errno %d", rel, errno)
			}
			dirs[rel] = child
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		child, errno := parent.Create(name, 0644)
		if errno != 0 {
			return fmt.Errorf("create %s: errno %d", rel, errno)
		}
		if _, errno := child.WriteAt(data, 0); errno != 0 {
			return fmt.Errorf("write %s: errno %d", rel, errno)
		}
		return nil
	})
}

// offsetBackend biases every logical block address by lbaOffset, so a
// filesystem can live in a reserved region of a larger image alongside
// the raw boot sector and kernel binary that precede it.
type offsetBackend struct {
	inner     *storage.FileBackend
	lbaOffset int
}

func (o *offsetBackend) SectorSize() int { return o.inner.SectorSize() }

func (o *offsetBackend) ReadBlock(lba int, dst []uint8) defs.Err_t {
	return o.inner.ReadBlock(lba+o.lbaOffset, dst)
}

func (o *offsetBackend) WriteBlock(lba int, src []uint8) defs.Err_t {
	return o.inner.WriteBlock(lba+o.lbaOffset, src)
}
