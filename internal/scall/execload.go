package scall

import (
	"debug/elf"

	"keelos/internal/defs"
	"keelos/internal/mem"
	"keelos/internal/ustr"
	"keelos/internal/vm"
)

// loadSegment eagerly allocates and fills every page of one PT_LOAD
// segment: each page is zeroed first (so memsz beyond filesz reads as
// BSS) and then whatever portion of the file image overlaps that page
// is copied in, page by page.
func loadSegment(nas *vm.Vm_t, prog *elf.Prog, img []byte) defs.Err_t {
	segStart := mem.Rounddown(int(prog.Vaddr), mem.PGSIZE)
	segEnd := mem.Roundup(int(prog.Vaddr+prog.Memsz), mem.PGSIZE)

	perms := mem.PTE_U
	if prog.Flags&elf.PF_W != 0 {
		perms |= mem.PTE_W
	}
	nas.Vmadd_anon(segStart, segEnd-segStart, perms)

	nas.Lock_pmap()
	defer nas.Unlock_pmap()
	vmi, ok := nas.Vmregion.Lookup(uintptr(segStart))
	if !ok {
		return -defs.ENOMEM
	}

	fileStart := int(prog.Vaddr)
	fileEnd := fileStart + int(prog.Filesz)
	for va := segStart; va < segEnd; va += mem.PGSIZE {
		pg, p_pg, ok := mem.Physmem.Refpg_new()
		if !ok {
			return -defs.ENOMEM
		}
		bpg := mem.Pg2bytes(pg)[:]

		copyStart, copyEnd := va, va+mem.PGSIZE
		if copyStart < fileStart {
			copyStart = fileStart
		}
		if copyEnd > fileEnd {
			copyEnd = fileEnd
		}
		if copyStart < copyEnd {
			foff := int(prog.Off) + (copyStart - fileStart)
			n := copyEnd - copyStart
			if foff >= 0 && foff < len(img) {
				if foff+n > len(img) {
					n = len(img) - foff
				}
				copy(bpg[copyStart-va:], img[foff:foff+n])
			}
		}

		pte, ok := vmi.Ptefor(nas.Pmap, uintptr(va))
		if !ok {
			mem.Physmem.Refdown(p_pg)
			return -defs.ENOMEM
		}
		*pte = p_pg&mem.PTE_ADDR | vmi.Perms | mem.PTE_P
	}
	return 0
}

// readArgv copies the argv vector pointed to by argvva (a NUL-sentinel
// array of user pointers) out of as, bounded to execArgMax strings of
// at most execArgLenMax bytes each.
func readArgv(as *vm.Vm_t, argvva int) ([]ustr.Ustr, defs.Err_t) {
	if argvva == 0 {
		return nil, 0
	}
	var argv []ustr.Ustr
	for i := 0; i < execArgMax; i++ {
		ptr, err := as.Userreadn(argvva+i*8, 8)
		if err != 0 {
			return nil, err
		}
		if ptr == 0 {
			break
		}
		s, err := as.Userstr(ptr, execArgLenMax)
		if err != 0 {
			return nil, err
		}
		argv = append(argv, s)
	}
	return argv, 0
}

// layoutArgv writes argv's strings and its NUL-terminated pointer
// array onto the top of the freshly mapped user stack, growing down
// from userStackTop the way a real exec's initial stack frame does.
func layoutArgv(nas *vm.Vm_t, argv []ustr.Ustr) defs.Err_t {
	if len(argv) > execArgMax {
		argv = argv[:execArgMax]
	}
	stackFloor := userStackTop - userStackLen
	sp := userStackTop

	ptrs := make([]int, len(argv))
	for i, s := range argv {
		raw := append(append(ustr.Ustr{}, s...), 0)
		sp -= len(raw)
		sp &^= 0x7
		if sp < stackFloor {
			return -defs.E2BIG
		}
		if err := nas.K2user(raw, sp); err != 0 {
			return err
		}
		ptrs[i] = sp
	}

	sp &^= 0x7
	sp -= 8 // NUL sentinel terminating the pointer array
	if sp < stackFloor {
		return -defs.E2BIG
	}
	if err := nas.Userwriten(sp, 8, 0); err != 0 {
		return err
	}
	for i := len(ptrs) - 1; i >= 0; i-- {
		sp -= 8
		if sp < stackFloor {
			return -defs.E2BIG
		}
		if err := nas.Userwriten(sp, 8, ptrs[i]); err != 0 {
			return err
		}
	}
	return 0
}
