package storage_test

import (
	"testing"

	"keelos/internal/defs"
	"keelos/internal/storage"
)

type namedBackend struct{ name string }

func (b *namedBackend) ReadBlock(lba int, dst []uint8) defs.Err_t  { return 0 }
func (b *namedBackend) WriteBlock(lba int, src []uint8) defs.Err_t { return 0 }
func (b *namedBackend) SectorSize() int                            { return 512 }

func TestSelectPrefersAHCIOverIDE(t *testing.T) {
	ahciBackend := &namedBackend{name: "ahci"}
	ideBackend := &namedBackend{name: "ide"}
	ahci := []storage.Candidate{{Name: "ahci0", Backend: ahciBackend}}
	ide := []storage.Candidate{{Name: "ide0", Backend: ideBackend}}

	got := storage.Select(ahci, ide)
	if got != storage.Backend(ahciBackend) {
		t.Fatal("Select did not prefer the AHCI candidate")
	}
}

func TestSelectFallsBackToIDE(t *testing.T) {
	ideBackend := &namedBackend{name: "ide"}
	ide := []storage.Candidate{{Name: "ide0", Backend: ideBackend}}

	got := storage.Select(nil, ide)
	if got != storage.Backend(ideBackend) {
		t.Fatal("Select did not fall back to the IDE candidate")
	}
}

func TestSelectReturnsNilWhenNoBackend(t *testing.T) {
	if got := storage.Select(nil, nil); got != nil {
		t.Fatalf("Select(nil, nil) = %v, want nil", got)
	}
}
