// Package ahci drives an AHCI SATA controller: HBA and port register
// access, command list/table setup, and PRDT-based DMA transfers. It
// implements storage.Backend so the buffer cache can use it without
// knowing it is talking to SATA rather than IDE.
package ahci

import (
	"sync"
	"unsafe"

	"keelos/internal/defs"
	"keelos/internal/mem"
)

// HBA generic host control registers, offsets from ABAR (AHCI 1.3.1 §3).
const (
	regCAP  = 0x00
	regGHC  = 0x04
	regPI   = 0x0c
	regVS   = 0x10
	portBase = 0x100
	portSize = 0x80
)

// Per-port registers, offsets from the port's base within ABAR.
const (
	pCLB  = 0x00
	pFB   = 0x08
	pIS   = 0x10
	pIE   = 0x14
	pCMD  = 0x18
	pTFD  = 0x20
	pSIG  = 0x24
	pSSTS = 0x28
	pSCTL = 0x2c
	pSERR = 0x30
	pCI   = 0x38
)

const (
	cmdST  = 1 << 0
	cmdFRE = 1 << 4
	cmdFR  = 1 << 14
	cmdCR  = 1 << 15
)

const sectorSize = 512

// CmdHeader is one 32-byte command list entry (AHCI §4.2.2).
type CmdHeader struct {
	Flags    uint16
	PRDTL    uint16
	PRDBC    uint32
	CTBA     uint32
	CTBAU    uint32
	_        [4]uint32
}

// PRDTEntry is one physical region descriptor (AHCI §4.2.3.3).
type PRDTEntry struct {
	DBA   uint32
	DBAU  uint32
	_     uint32
	DBCIOC uint32 // byte count in low 22 bits, interrupt-on-completion in bit 31
}

// CmdTable is the command table a CmdHeader points at: a 64-byte FIS,
// an ATAPI command area, then up to 8 PRDT entries (this driver never
// needs more than one, since every request is one contiguous buffer).
type CmdTable struct {
	CFIS  [64]byte
	ACMD  [16]byte
	_     [48]byte
	PRDT  [8]PRDTEntry
}

// Port drives a single SATA port.
type Port struct {
	mu   sync.Mutex
	base []byte // MMIO window for this port's registers
	clb  *[32]CmdHeader
	ctba []*CmdTable
}

// Controller is one AHCI HBA.
type Controller struct {
	abar  []byte
	ports map[int]*Port
}

// New wraps the AHCI HBA whose ABAR is mapped at the given physical
// address (size is the BAR's reported region, at least 0x1100 bytes).
func New(abarPhys mem.Pa_t, size int) *Controller {
	return &Controller{abar: mem.Dmaplen(abarPhys, size), ports: map[int]*Port{}}
}

func (c *Controller) reg32(off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&c.abar[off]))
}

// ImplementedPorts returns the bitmask of ports wired to a drive.
func (c *Controller) ImplementedPorts() uint32 { return *c.reg32(regPI) }

// Port returns (constructing if needed) the driver for port n.
func (c *Controller) Port(n int) *Port {
	if p, ok := c.ports[n]; ok {
		return p
	}
	base := c.abar[portBase+n*portSize : portBase+(n+1)*portSize]
	p := &Port{base: base}
	c.ports[n] = p
	return p
}

func (p *Port) reg32(off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&p.base[off]))
}

// Init allocates the command list and FIS receive area and starts the
// port's DMA engines.
func (p *Port) Init() defs.Err_t {
	*p.reg32(pCMD) &^= cmdST
	for *p.reg32(pCMD)&cmdCR != 0 {
	}

	clPg, clPa, ok := mem.Physmem.Refpg_new()
	if !ok {
		return -defs.ENOMEM
	}
	p.clb = (*[32]CmdHeader)(unsafe.Pointer(clPg))
	*p.reg32(pCLB) = uint32(clPa)

	fbPg, fbPa, ok := mem.Physmem.Refpg_new()
	if !ok {
		return -defs.ENOMEM
	}
	*p.reg32(pFB) = uint32(fbPa)
	_ = fbPg

	p.ctba = make([]*CmdTable, 32)
	for i := range p.ctba {
		ctPg, ctPa, ok := mem.Physmem.Refpg_new()
		if !ok {
			return -defs.ENOMEM
		}
		p.ctba[i] = (*CmdTable)(unsafe.Pointer(ctPg))
		p.clb[i].CTBA = uint32(ctPa)
		p.clb[i].PRDTL = 1
	}

	*p.reg32(pCMD) |= cmdFRE
	*p.reg32(pCMD) |= cmdST
	return 0
}

// rw issues one READ DMA EXT or WRITE DMA EXT command for a single
// 512-byte sector at lba, blocking until the command completes.
func (p *Port) rw(lba int, buf []uint8, write bool) defs.Err_t {
	p.mu.Lock()
	defer p.mu.Unlock()

	slot := 0
	ct := p.ctba[slot]
	for i := range ct.CFIS {
		ct.CFIS[i] = 0
	}
	ct.CFIS[0] = 0x27 // FIS type: register host-to-device
	ct.CFIS[1] = 0x80 // command bit
	if write {
		ct.CFIS[2] = 0x35 // WRITE DMA EXT
	} else {
		ct.CFIS[2] = 0x25 // READ DMA EXT
	}
	ct.CFIS[4] = byte(lba)
	ct.CFIS[5] = byte(lba >> 8)
	ct.CFIS[6] = byte(lba >> 16)
	ct.CFIS[7] = 0x40 // LBA mode
	ct.CFIS[8] = byte(lba >> 24)
	ct.CFIS[12] = 1 // sector count low byte

	pa := bufPhys(buf)
	ct.PRDT[0].DBA = uint32(pa)
	ct.PRDT[0].DBCIOC = uint32(len(buf)-1) | 1<<31

	p.clb[slot].Flags = 5 // FIS length in dwords
	if write {
		p.clb[slot].Flags |= 1 << 6
	}
	p.clb[slot].PRDTL = 1

	*p.reg32(pCI) |= 1 << slot
	for *p.reg32(pCI)&(1<<slot) != 0 {
	}
	if *p.reg32(pTFD)&0x01 != 0 {
		return -defs.EIO
	}
	return 0
}

func bufPhys(buf []uint8) mem.Pa_t {
	return mem.Physmem.Dmap_v2p(mem.Bytepg2pg((*mem.Bytepg_t)(unsafe.Pointer(&buf[0]))))
}

// ReadBlock implements storage.Backend.
func (p *Port) ReadBlock(lba int, dst []uint8) defs.Err_t { return p.rw(lba, dst, false) }

// WriteBlock implements storage.Backend.
func (p *Port) WriteBlock(lba int, src []uint8) defs.Err_t { return p.rw(lba, src, true) }

// SectorSize implements storage.Backend.
func (p *Port) SectorSize() int { return sectorSize }
