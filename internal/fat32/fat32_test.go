package fat32_test

import (
	"bytes"
	"encoding/binary"
	"sync"
	"testing"

	"keelos/internal/bio"
	"keelos/internal/defs"
	"keelos/internal/fat32"
)

// memBackend is a storage.Backend over a map of sectors, standing in
// for a real disk image.
type memBackend struct {
	mu      sync.Mutex
	sectors map[int][]byte
}

func newMemBackend() *memBackend { return &memBackend{sectors: map[int][]byte{}} }

func (m *memBackend) SectorSize() int { return bio.BSIZE }

func (m *memBackend) ReadBlock(lba int, dst []uint8) defs.Err_t {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.sectors[lba]; ok {
		copy(dst, data)
	} else {
		for i := range dst {
			dst[i] = 0
		}
	}
	return 0
}

func (m *memBackend) WriteBlock(lba int, src []uint8) defs.Err_t {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(src))
	copy(cp, src)
	m.sectors[lba] = cp
	return 0
}

// mkVolume lays down a minimal FAT32 boot sector by hand (no formatter
// ships in this tree; a real bootable image is built by a host-side
// FAT32 toolchain ahead of cmd/mkfs's EXT2 path) and reserves the root
// directory's own cluster the way a real mkfs.fat would.
func mkVolume(t *testing.T, dataClusters uint32) (*bio.Cache, *fat32.Volume) {
	t.Helper()
	const sectorsPerFAT = 1
	bpb := fat32.BPB{
		BytesPerSector:      bio.BSIZE,
		SectorsPerCluster:   1,
		ReservedSectorCount: 1,
		NumFATs:             1,
		FATSize32:           sectorsPerFAT,
		RootCluster:         2,
		TotalSectors32:      1 + sectorsPerFAT + dataClusters,
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &bpb); err != nil {
		t.Fatalf("encoding BPB: %v", err)
	}
	sector0 := make([]byte, bio.BSIZE)
	copy(sector0, buf.Bytes())

	be := newMemBackend()
	be.sectors[0] = sector0
	cache := bio.NewCache()
	cache.RegisterDevice(0, be)

	vol, err := fat32.Mount(cache, 0)
	if err != 0 {
		t.Fatalf("Mount: errno %d", err)
	}
	// reserve the root directory's cluster so AllocCluster never hands
	// it back out to a file.
	if err := vol.SetNext(vol.RootCluster(), 0); err != 0 {
		t.Fatalf("reserving root cluster: errno %d", err)
	}
	return cache, vol
}

func TestMountParsesBPB(t *testing.T) {
	_, vol := mkVolume(t, 16)
	if vol.RootCluster() != 2 {
		t.Fatalf("RootCluster() = %d, want 2", vol.RootCluster())
	}
}

func TestCreateLookupWriteReadRoundtrip(t *testing.T) {
	_, vol := mkVolume(t, 16)
	root := vol.RootCluster()

	if err := vol.CreateFile(root, "a.txt"); err != 0 {
		t.Fatalf("CreateFile: errno %d", err)
	}
	ent, err := vol.Lookup(root, "a.txt")
	if err != 0 {
		t.Fatalf("Lookup: errno %d", err)
	}
	if ent.DisplayName() != "A.TXT" {
		t.Fatalf("DisplayName() = %q, want A.TXT", ent.DisplayName())
	}

	data := []byte("fat32 roundtrip")
	newFirst, newSize, err := vol.WriteFile(ent.Cluster(), 0, data)
	if err != 0 {
		t.Fatalf("WriteFile: errno %d", err)
	}
	if err := vol.UpdateEntry(root, "a.txt", newFirst, newSize); err != 0 {
		t.Fatalf("UpdateEntry: errno %d", err)
	}

	ent2, err := vol.Lookup(root, "a.txt")
	if err != 0 {
		t.Fatalf("Lookup after write: errno %d", err)
	}
	got := make([]byte, len(data))
	n, err := vol.ReadFile(ent2.Cluster(), ent2.FileSize, 0, got)
	if err != 0 {
		t.Fatalf("ReadFile: errno %d", err)
	}
	if n != len(data) || !bytes.Equal(got, data) {
		t.Fatalf("ReadFile = %q (n=%d), want %q", got[:n], n, data)
	}
}

func TestLongNameRejectedNotTruncated(t *testing.T) {
	_, vol := mkVolume(t, 16)
	root := vol.RootCluster()

	err := vol.AddEntry(root, "thisnameiswaytoolong.txt", 0x20, 0, 0)
	if err != -defs.ENAMETOOLONG {
		t.Fatalf("AddEntry with an over-length base name returned errno %d, want -ENAMETOOLONG", err)
	}
	if _, lerr := vol.Lookup(root, "thisnameiswaytoolong.txt"); lerr == 0 {
		t.Fatal("an entry was created despite the name being rejected")
	}
}

func TestCreateDirPopulatesDotEntries(t *testing.T) {
	_, vol := mkVolume(t, 16)
	root := vol.RootCluster()

	if err := vol.CreateDir(root, "sub"); err != 0 {
		t.Fatalf("CreateDir: errno %d", err)
	}
	ent, err := vol.Lookup(root, "sub")
	if err != 0 {
		t.Fatalf("Lookup: errno %d", err)
	}
	ents, err := vol.Readdir(ent.Cluster())
	if err != 0 {
		t.Fatalf("Readdir: errno %d", err)
	}
	if len(ents) != 2 || ents[0].DisplayName() != "." || ents[1].DisplayName() != ".." {
		names := make([]string, len(ents))
		for i, e := range ents {
			names[i] = e.DisplayName()
		}
		t.Fatalf("new directory entries = %v, want [. ..]", names)
	}
	if ents[1].Cluster() != root {
		t.Fatalf(".. cluster = %d, want parent cluster %d", ents[1].Cluster(), root)
	}
}

func TestDeleteFileFreesChainAndEntry(t *testing.T) {
	_, vol := mkVolume(t, 16)
	root := vol.RootCluster()

	if err := vol.CreateFile(root, "d.txt"); err != 0 {
		t.Fatalf("CreateFile: errno %d", err)
	}
	first, size, err := vol.WriteFile(0, 0, bytes.Repeat([]byte{1}, 10))
	if err != 0 {
		t.Fatalf("WriteFile: errno %d", err)
	}
	if err := vol.UpdateEntry(root, "d.txt", first, size); err != 0 {
		t.Fatalf("UpdateEntry: errno %d", err)
	}
	if err := vol.DeleteFile(root, "d.txt"); err != 0 {
		t.Fatalf("DeleteFile: errno %d", err)
	}
	if _, err := vol.Lookup(root, "d.txt"); err != -defs.ENOENT {
		t.Fatalf("Lookup after DeleteFile returned errno %d, want -ENOENT", err)
	}
	if next, err := vol.NextCluster(first); err != 0 || next != 0 {
		t.Fatalf("freed cluster %d still chained (next=%d, err=%d)", first, next, err)
	}
}

func TestAllocClusterNeverReusesReservedRoot(t *testing.T) {
	_, vol := mkVolume(t, 16)
	seen := map[uint32]bool{}
	for i := 0; i < 8; i++ {
		cl, err := vol.AllocCluster()
		if err != 0 {
			t.Fatalf("AllocCluster %d: errno %d", i, err)
		}
		if cl == vol.RootCluster() {
			t.Fatalf("AllocCluster handed out the reserved root cluster %d", cl)
		}
		if seen[cl] {
			t.Fatalf("AllocCluster returned cluster %d twice", cl)
		}
		seen[cl] = true
	}
}
