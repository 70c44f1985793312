package scall

import (
	"keelos/internal/defs"
	"keelos/internal/mem"
	"keelos/internal/sched"
)

func init() {
	Register(SYS_MMAP, sysMmap)
	Register(SYS_MUNMAP, sysMunmap)
}

// mmapBase is where this kernel starts looking for an unused range
// when a caller leaves the address hint at 0; there is no demand for
// ASLR or a brk-adjacent placement policy here, only a fixed shared
// window below the user stack.
const mmapBase = 0x4000_0000_0000

// sysMmap maps fdn's device memory into the caller, the only mapping
// this kernel honors: a MAP_SHARED view of a device that exposes its
// backing pages directly (currently just the framebuffer). Anonymous
// and private file-backed mmap are not supported.
func sysMmap(t *sched.Thread_t, addrHint, length, prot, flags, fdn int) int {
	if length <= 0 {
		return int(-defs.EINVAL)
	}
	if flags&defs.MAP_SHARED == 0 {
		return int(-defs.EINVAL)
	}
	f, ok := t.Proc.Fds[fdn]
	if !ok {
		return int(-defs.EBADF)
	}
	infos, err := f.Fops.Mmapi(0, length, false)
	if err != 0 {
		return int(err)
	}
	if len(infos) == 0 {
		return int(-defs.EINVAL)
	}

	perms := mem.PTE_U
	if prot&defs.PROT_WRITE != 0 {
		perms |= mem.PTE_W
	}

	p := t.Proc
	p.Vm.Lock_pmap()
	defer p.Vm.Unlock_pmap()

	hint := uintptr(addrHint)
	if hint == 0 {
		hint = mmapBase
	}
	span := len(infos) * mem.PGSIZE
	va := p.Vm.Vmregion.Unused(hint, span)
	p.Vm.Vmadd_sharefile(int(va), span, perms, f.Fops, 0)
	vmi, ok := p.Vm.Vmregion.Lookup(va)
	if !ok {
		return int(-defs.ENOMEM)
	}
	for _, info := range infos {
		pte, ok := vmi.Ptefor(p.Vm.Pmap, va+uintptr(info.Voff))
		if !ok {
			return int(-defs.ENOMEM)
		}
		*pte = mem.Pa_t(info.Phys)&mem.PTE_ADDR | perms | mem.PTE_P
	}
	return int(va)
}

// sysMunmap tears down a mapping installed by sysMmap. The backing
// pages are device memory outside mem.Physmem's ref-counted pool, so
// this clears PTEs directly rather than going through Page_remove,
// which assumes every mapped page came from the allocator.
func sysMunmap(t *sched.Thread_t, addr, length, a3, a4, a5 int) int {
	p := t.Proc
	p.Vm.Lock_pmap()
	defer p.Vm.Unlock_pmap()

	vmi, ok := p.Vm.Vmregion.Lookup(uintptr(addr))
	if !ok {
		return int(-defs.EINVAL)
	}
	for va := vmi.Start; va < vmi.End(); va += uintptr(mem.PGSIZE) {
		if pte, ok := vmi.Ptefor(p.Vm.Pmap, va); ok {
			*pte = 0
		}
	}
	p.Vm.Vmregion.Remove(vmi.Start)
	return 0
}
