// Package storage selects and exposes the block storage backend bio
// reads and writes through: an AHCI/SATA controller when one is
// present, falling back to legacy IDE PIO otherwise.
package storage

import "keelos/internal/defs"

// Backend is a block device: fixed-size sector reads and writes
// addressed by logical block number.
type Backend interface {
	ReadBlock(lba int, dst []uint8) defs.Err_t
	WriteBlock(lba int, src []uint8) defs.Err_t
	SectorSize() int
}

// Candidate is one already-constructed backend, built by cmd/kernel
// after PCI enumeration and handed to Select, so storage itself does
// not import ahci.
type Candidate struct {
	Name    string
	Backend Backend
}

// Select returns the first AHCI candidate, or the first IDE candidate
// if no AHCI controller was found, or nil if storage has no backend at
// all (a diskless boot, valid for a ramdisk-only root).
func Select(ahci, ide []Candidate) Backend {
	if len(ahci) > 0 {
		return ahci[0].Backend
	}
	if len(ide) > 0 {
		return ide[0].Backend
	}
	return nil
}
