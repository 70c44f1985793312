package pci_test

import (
	"testing"

	"keelos/internal/pci"
)

func TestIsAHCIMatchesClassSubclass(t *testing.T) {
	d := pci.Device{Class: 0x01, Subclass: 0x06}
	if !d.IsAHCI() {
		t.Fatal("class 1 subclass 6 device not reported as AHCI")
	}
	if d.IsIDE() {
		t.Fatal("AHCI device misreported as IDE")
	}
}

func TestIsIDEMatchesClassSubclass(t *testing.T) {
	d := pci.Device{Class: 0x01, Subclass: 0x01}
	if !d.IsIDE() {
		t.Fatal("class 1 subclass 1 device not reported as IDE")
	}
	if d.IsAHCI() {
		t.Fatal("IDE device misreported as AHCI")
	}
}

func TestBARAddressMasksFlagBits(t *testing.T) {
	got := pci.BARAddress(0xfebf1004)
	if got != 0xfebf1000 {
		t.Fatalf("BARAddress(0xfebf1004) = %#x, want 0xfebf1000", got)
	}
}
