// Command kernel wires the boot-time contract (internal/boot) through
// physical memory init, CPU bring-up, device discovery, and filesystem
// mounts, producing a live internal/vfs.Table the scheduler's init
// process can open paths against.
//
// A real boot image never runs this as a hosted Go main: the loader
// jumps to an assembly entry stub that populates a boot.Info from the
// Limine-class boot protocol and calls Boot directly, then starts
// sched.Run and never returns. main here exists so this package builds
// as an ordinary command and exercises Boot against a synthetic
// boot.Info, standing in for that stub until one is assembled.
package main

import (
	"context"
	"fmt"
	"os"

	"keelos/internal/accnt"
	"keelos/internal/ahci"
	"keelos/internal/bio"
	"keelos/internal/boot"
	"keelos/internal/cpu"
	"keelos/internal/devfs"
	"keelos/internal/ext2"
	"keelos/internal/fat32"
	"keelos/internal/fd"
	"keelos/internal/mem"
	"keelos/internal/panics"
	"keelos/internal/pci"
	"keelos/internal/sched"
	"keelos/internal/storage"
	"keelos/internal/ustr"
	"keelos/internal/vfs"
)

// Kernel holds everything Boot assembles, for handlers and the root
// process to reach afterward.
type Kernel struct {
	Phys     *mem.Physmem_t
	Cache    *bio.Cache
	Files    *vfs.Table
	Acct     accnt.Accnt_t
	Features cpu.Features
	Init     *sched.Proc_t
}

// Boot runs the one-time sequence from a populated boot.Info to a
// mounted root filesystem: physical memory, the direct map, CPU
// bring-up, PCI/AHCI/IDE storage discovery, and the VFS mount table
// with devfs layered under /dev.
func Boot(info *boot.Info) (*Kernel, error) {
	k := &Kernel{}

	k.Phys = mem.PhysInit(info.UsableRegions())
	mem.SetDirectBase(info.HHDMBase)

	var bsp *boot.CPUInfo
	var aps []boot.CPUInfo
	for i := range info.CPUs {
		if info.CPUs[i].BSP {
			bsp = &info.CPUs[i]
		} else {
			aps = append(aps, info.CPUs[i])
		}
	}
	if bsp == nil {
		return nil, fmt.Errorf("boot: no BSP reported in CPU list")
	}
	cpu.BringupBSP(bsp.LAPICID)
	k.Features = cpu.DetectFeatures()
	if len(aps) > 0 {
		apIDs := make([]uint32, len(aps))
		for i, c := range aps {
			apIDs[i] = c.LAPICID
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := cpu.BringupAPs(ctx, apIDs, func(id uint32) error { return nil }); err != nil {
			return nil, fmt.Errorf("boot: AP bring-up: %w", err)
		}
	}

	devices := pci.Enumerate()
	var ahciCands, ideCands []storage.Candidate
	for _, d := range devices {
		switch {
		case d.IsAHCI():
			ctrl := ahci.New(mem.Pa_t(pci.BARAddress(d.BAR[5])), 0x1100)
			for i := 0; i < 32; i++ {
				if ctrl.ImplementedPorts()&(1<<uint(i)) == 0 {
					continue
				}
				p := ctrl.Port(i)
				if err := p.Init(); err != 0 {
					continue
				}
				ahciCands = append(ahciCands, storage.Candidate{
					Name:    fmt.Sprintf("ahci%d.%d", d.Addr.Bus, i),
					Backend: p,
				})
			}
		case d.IsIDE():
			ideCands = append(ideCands, storage.Candidate{
				Name:    fmt.Sprintf("ide%d", d.Addr.Bus),
				Backend: ahci.NewIDE(0),
			})
		}
	}
	backend := storage.Select(ahciCands, ideCands)

	k.Cache = bio.NewCache()
	if backend != nil {
		k.Cache.RegisterDevice(0, backend)
	}

	rootVfs, err := mountRoot(k.Cache)
	if err != nil {
		return nil, err
	}

	devDir := devfs.New()
	devDir.Register("console", devfs.NewConsole())
	devDir.Register("null", devfs.NewNull())
	devDir.Register("kbd", devfs.NewKeyboard())
	devDir.Register("stat", devfs.NewStatFile(&k.Acct))
	if info.FB != nil {
		pix := mem.Dmaplen(info.FB.PhysAddr, info.FB.Pitch*info.FB.Height)
		devDir.Register("fb0", devfs.NewFramebuffer(pix, info.FB.Width, info.FB.Height, info.FB.Pitch, uint64(info.FB.PhysAddr)))
	}

	k.Files = vfs.NewTable(rootVfs)
	if errno := k.Files.Mount(ustr.Ustr("/dev"), vfs.WrapDevfs(devDir)); errno != 0 {
		return nil, fmt.Errorf("boot: mount /dev: errno %d", errno)
	}

	initp, err2 := spawnInit(k)
	if err2 != nil {
		return nil, err2
	}
	k.Init = initp

	return k, nil
}

// spawnInit builds the namespace-rooted process every other process
// forks from: pid 1, with Files pointing at the mount table Boot just
// assembled and Cwd at the root directory. sched.NewProc leaves Files
// and Cwd nil for a nil parent, since there is no parent to inherit
// them from, so this fills them in by hand the one time that matters.
func spawnInit(k *Kernel) (*sched.Proc_t, error) {
	rootInode, errno := k.Files.Resolve(ustr.MkUstrRoot())
	if errno != 0 {
		return nil, fmt.Errorf("boot: resolve root: errno %d", errno)
	}
	rootFops, errno := rootInode.Open(0)
	if errno != 0 {
		return nil, fmt.Errorf("boot: open root: errno %d", errno)
	}
	rootFd := &fd.Fd_t{Fops: rootFops}

	initp, errno := sched.NewProc(nil)
	if errno != 0 {
		return nil, fmt.Errorf("boot: new init process: errno %d", errno)
	}
	initp.Files = k.Files
	initp.Cwd = fd.MkRootCwd(rootFd)
	return initp, nil
}

// mountRoot tries EXT2 first, falling back to FAT32; a diskless boot
// (no backend registered) is valid for a ramdisk-only configuration
// that this wiring doesn't build, so it returns an error rather than a
// silently empty root.
func mountRoot(cache *bio.Cache) (vfs.Inode, error) {
	if ev, errno := ext2.Mount(cache, 0); errno == 0 {
		root, errno := ev.Iget(2)
		if errno != 0 {
			return nil, fmt.Errorf("boot: ext2 root inode: errno %d", errno)
		}
		return vfs.WrapExt2(root), nil
	}
	if fv, errno := fat32.Mount(cache, 0); errno == 0 {
		return vfs.WrapFat32Root(fv), nil
	}
	return nil, fmt.Errorf("boot: no mountable filesystem on device 0")
}

// Run starts the scheduler and blocks until stop fires, panicking
// through panics.Dump on an unrecovered fault rather than unwinding
// into the Go runtime's own panic printer.
func Run(k *Kernel, stop <-chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			panics.Dump(fmt.Sprint(r), nil)
			os.Exit(1)
		}
	}()
	sched.Run(stop)
}

// main exercises Boot with a minimal synthetic boot.Info so this
// package is a runnable command; see the package doc for why a real
// image never reaches this function.
func main() {
	info := &boot.Info{
		HHDMBase: 0,
		Memmap: []boot.MemmapEntry{
			{Base: 0x100000, Length: 64 << 20, Usable: true},
		},
		CPUs: []boot.CPUInfo{{LAPICID: 0, BSP: true}},
	}
	k, err := Boot(info)
	if err != nil {
		fmt.Fprintf(os.Stderr, "boot: %v\n", err)
		os.Exit(1)
	}

	it := k.Init.NewThread()
	sched.Spawn(it, func(t *sched.Thread_t) {
		// The real init program is loaded by SYS_EXECV once a
		// userspace ELF loader exists; until then the boot thread
		// exits immediately so Run's queue drains cleanly.
		t.Proc.Exit(0)
	})

	stop := make(chan struct{})
	Run(k, stop)
}
