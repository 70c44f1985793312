package devfs

import (
	"encoding/binary"
	"sync"

	"keelos/internal/archlow"
	"keelos/internal/defs"
	"keelos/internal/fdops"
	"keelos/internal/mem"
)

// Console is /dev/console: writes advance the legacy VGA text-mode
// hardware cursor via port-mapped I/O (no character cells are written),
// reads drain a small queue of bytes pushed in by the keyboard IRQ
// handler.
type Console struct {
	mu    sync.Mutex
	queue []byte
}

func NewConsole() *Console { return &Console{} }

func (c *Console) Devno() uint { return defs.Mkdev(defs.D_CONSOLE, 0) }

// PushInput is called by the keyboard interrupt handler with decoded
// key bytes.
func (c *Console) PushInput(b byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, b)
}

func (c *Console) Read(dst []uint8) (int, defs.Err_t) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := copy(dst, c.queue)
	c.queue = c.queue[n:]
	return n, 0
}

// Ioctl services TIOCGWINSZ with the fixed 80x25 VGA text geometry;
// every other request is not a terminal operation this console knows.
func (c *Console) Ioctl(req int, arg []uint8) (int, defs.Err_t) {
	if req != defs.TIOCGWINSZ {
		return 0, -defs.ENOTTY
	}
	if len(arg) < 8 {
		return 0, -defs.EINVAL
	}
	binary.LittleEndian.PutUint16(arg[0:2], vgaRows)
	binary.LittleEndian.PutUint16(arg[2:4], vgaCols)
	binary.LittleEndian.PutUint16(arg[4:6], 0)
	binary.LittleEndian.PutUint16(arg[6:8], 0)
	return 8, 0
}

const (
	vgaCols  = 80
	vgaRows  = 25
	vgaAddr  = 0xb8000
	crtcAddr = 0x3d4
	crtcData = 0x3d5
)

func (c *Console) Write(src []uint8) (int, defs.Err_t) {
	for _, b := range src {
		writeVGAByte(b)
	}
	return len(src), 0
}

var vgaCursor int

// writeVGAByte advances the VGA hardware cursor by one cell (to the
// start of the next row for '\n') and writes its position to the CRTC
// cursor registers. It does not write the character into the text
// buffer at vgaAddr, and it does not scroll: past the last cell the
// cursor wraps to the top-left corner.
func writeVGAByte(b byte) {
	if b == '\n' {
		vgaCursor += vgaCols - (vgaCursor % vgaCols)
	} else {
		vgaCursor++
	}
	if vgaCursor >= vgaCols*vgaRows {
		vgaCursor = 0
	}
	archlow.Outb(crtcAddr, 0x0f)
	archlow.Outb(crtcData, uint8(vgaCursor))
	archlow.Outb(crtcAddr, 0x0e)
	archlow.Outb(crtcData, uint8(vgaCursor>>8))
}

// Null is /dev/null: writes vanish, reads return EOF immediately.
type Null struct{}

func NewNull() *Null                           { return &Null{} }
func (Null) Devno() uint                       { return defs.Mkdev(defs.D_DEVNULL, 0) }
func (Null) Read(dst []uint8) (int, defs.Err_t) { return 0, 0 }
func (Null) Write(src []uint8) (int, defs.Err_t) { return len(src), 0 }
func (Null) Ioctl(req int, arg []uint8) (int, defs.Err_t) { return 0, -defs.ENOTTY }

// Framebuffer is /dev/fb0: a flat pixel buffer handed to the kernel by
// the bootloader. Read and Write always copy from and to the start of
// the buffer, its geometry is queried via ioctl, and mmap is served
// through Mmapi, which describes the buffer's physical pages.
type Framebuffer struct {
	pix    []uint8
	width  int
	height int
	pitch  int
	phys   uint64
}

// NewFramebuffer wraps a dmap'd pixel buffer, recording its geometry
// and physical base address for FB_IOCTL_GET_* and mmap.
func NewFramebuffer(pix []uint8, width, height, pitch int, phys uint64) *Framebuffer {
	return &Framebuffer{pix: pix, width: width, height: height, pitch: pitch, phys: phys}
}

func (f *Framebuffer) Devno() uint { return defs.Mkdev(defs.D_FB, 0) }

func (f *Framebuffer) Read(dst []uint8) (int, defs.Err_t) {
	return copy(dst, f.pix), 0
}

func (f *Framebuffer) Write(src []uint8) (int, defs.Err_t) {
	return copy(f.pix, src), 0
}

// Pixels exposes the dmap'd pixel buffer directly, for the mmap
// syscall path to map into a calling process's address space instead
// of going through Read/Write.
func (f *Framebuffer) Pixels() []uint8 { return f.pix }

// Mmapi describes the framebuffer as a run of physically contiguous
// pages starting at its boot-reported physical address, so mmap can
// install PTEs pointing straight at device memory rather than
// faulting them in page by page through Read.
func (f *Framebuffer) Mmapi(off, length int) ([]fdops.MmapInfo, defs.Err_t) {
	end := off + length
	if end > len(f.pix) {
		end = len(f.pix)
	}
	if off >= end {
		return nil, -defs.EINVAL
	}
	lo := mem.Rounddown(off, mem.PGSIZE)
	hi := mem.Roundup(end, mem.PGSIZE)
	var infos []fdops.MmapInfo
	for va := lo; va < hi; va += mem.PGSIZE {
		pgEnd := va + mem.PGSIZE
		if pgEnd > len(f.pix) {
			pgEnd = len(f.pix)
		}
		infos = append(infos, fdops.MmapInfo{
			Voff: va - lo,
			Pg:   f.pix[va:pgEnd],
			Phys: uintptr(f.phys) + uintptr(va),
		})
	}
	return infos, 0
}

func (f *Framebuffer) Ioctl(req int, arg []uint8) (int, defs.Err_t) {
	var v uint32
	switch req {
	case defs.FB_IOCTL_GET_WIDTH:
		v = uint32(f.width)
	case defs.FB_IOCTL_GET_HEIGHT:
		v = uint32(f.height)
	case defs.FB_IOCTL_GET_PITCH:
		v = uint32(f.pitch)
	case defs.FB_IOCTL_GET_FBADDR:
		if len(arg) < 8 {
			return 0, -defs.EINVAL
		}
		binary.LittleEndian.PutUint64(arg[0:8], f.phys)
		return 8, 0
	default:
		return 0, -defs.ENOTTY
	}
	if len(arg) < 4 {
		return 0, -defs.EINVAL
	}
	binary.LittleEndian.PutUint32(arg[0:4], v)
	return 4, 0
}

// Keyboard is /dev/kbd: scancodes pushed in by the keyboard IRQ
// handler, drained by whichever process reads them (usually the
// console driver itself, but exposed separately for a raw-mode
// terminal).
type Keyboard struct {
	mu   sync.Mutex
	keys []byte
}

func NewKeyboard() *Keyboard { return &Keyboard{} }
func (k *Keyboard) Devno() uint { return defs.Mkdev(defs.D_KBD, 0) }

func (k *Keyboard) PushScancode(b byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys = append(k.keys, b)
}

func (k *Keyboard) Read(dst []uint8) (int, defs.Err_t) {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := copy(dst, k.keys)
	k.keys = k.keys[n:]
	return n, 0
}

func (k *Keyboard) Write(src []uint8) (int, defs.Err_t) { return 0, -defs.EINVAL }
func (k *Keyboard) Ioctl(req int, arg []uint8) (int, defs.Err_t) { return 0, -defs.ENOTTY }

// StatSource is whatever can render the kernel's accounting snapshot
// as text; accnt.Accnt_t satisfies it via its String method, but
// devfs keeps the dependency this loose so /dev/stat can cover any
// accounting producer.
type StatSource interface {
	String() string
}

// StatFile is /dev/stat: a read-only textual dump of its StatSource,
// rendered afresh by each Read.
type StatFile struct {
	src StatSource
}

func NewStatFile(src StatSource) *StatFile { return &StatFile{src: src} }
func (s *StatFile) Devno() uint            { return defs.Mkdev(defs.D_STAT, 0) }

func (s *StatFile) Read(dst []uint8) (int, defs.Err_t) {
	return copy(dst, []byte(s.src.String())), 0
}

func (s *StatFile) Write(src []uint8) (int, defs.Err_t) { return 0, -defs.EROFS }
func (s *StatFile) Ioctl(req int, arg []uint8) (int, defs.Err_t) { return 0, -defs.ENOTTY }
