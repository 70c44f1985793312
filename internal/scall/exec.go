package scall

import (
	"bytes"
	"debug/elf"

	"keelos/internal/defs"
	"keelos/internal/mem"
	"keelos/internal/sched"
	"keelos/internal/stat"
	"keelos/internal/vm"
)

func init() {
	Register(SYS_EXECV, sysExecv)
	Register(SYS_SPAWN, sysSpawn)
}

// Bounds on the argument vector execve will copy out of the caller:
// at most execArgMax strings, each at most execArgLenMax bytes
// including the NUL.
const (
	execArgMax    = 16
	execArgLenMax = 128

	userStackTop = 0x0000_7fff_ffff_f000
	userStackLen = 16 * 1024
)

func sysExecv(t *sched.Thread_t, pathva, argvva, a3, a4, a5 int) int {
	if err := doExecve(t, pathva, argvva); err != 0 {
		return int(err)
	}
	return 0
}

// sysSpawn is fork+execve in one call: the child is a clone of the
// caller (so pathva/argvva, read out of the cloned address space,
// still name the same bytes) that loads the new image instead of
// resuming the parent.
func sysSpawn(t *sched.Thread_t, pathva, argvva, a3, a4, a5 int) int {
	child, err := t.Proc.Fork(func(ct *sched.Thread_t) {
		if rc := doExecve(ct, pathva, argvva); rc != 0 {
			ct.Proc.Exit(int(rc))
		}
	})
	if err != 0 {
		return int(err)
	}
	return int(child.Pid)
}

// doExecve replaces t's process address space with a freshly loaded
// ELF image: it resolves path, reads the whole file, maps every
// PT_LOAD segment page-granular with BSS zero-fill, lays out a user
// stack with argv, and swaps the new address space in. Like a real
// execve it discards the calling image rather than creating a new
// process.
func doExecve(t *sched.Thread_t, pathva, argvva int) defs.Err_t {
	p := t.Proc
	path, err := p.Vm.Userstr(pathva, 512)
	if err != 0 {
		return err
	}
	argv, err := readArgv(p.Vm, argvva)
	if err != 0 {
		return err
	}

	nf, oerr := p.Files.Open(path, defs.O_RDONLY, 0, p.Cwd)
	if oerr != 0 {
		return oerr
	}
	defer nf.Fops.Close()

	var st stat.Stat_t
	if serr := nf.Fops.Fstat(&st); serr != 0 {
		return serr
	}
	img := make([]byte, int(st.Size()))
	if len(img) > 0 {
		if _, rerr := nf.Fops.Pread(&rawUio{b: img}, 0); rerr != 0 {
			return rerr
		}
	}

	ef, perr := elf.NewFile(bytes.NewReader(img))
	if perr != nil {
		return -defs.ENOEXEC
	}
	if ef.Class != elf.ELFCLASS64 || ef.Machine != elf.EM_X86_64 || ef.Type != elf.ET_EXEC {
		return -defs.ENOEXEC
	}

	nas, aerr := newExecAddrspace(ef, img)
	if aerr != 0 {
		return aerr
	}

	if err := layoutArgv(nas, argv); err != 0 {
		return err
	}

	p.Vm = nas
	return 0
}

// newExecAddrspace builds the fresh address space for an exec'd
// binary: one VMA and a fully populated set of pages per PT_LOAD
// segment, plus the fixed user stack region.
func newExecAddrspace(ef *elf.File, img []byte) (*vm.Vm_t, defs.Err_t) {
	nas, aerr := vm.NewAddrspace()
	if aerr != 0 {
		return nil, aerr
	}
	for _, prog := range ef.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if err := loadSegment(nas, prog, img); err != 0 {
			return nil, err
		}
	}
	nas.Vmadd_anon(userStackTop-userStackLen, userStackLen, mem.PTE_W)
	return nas, 0
}

// rawUio adapts a plain byte slice to fdops.Userio_i for a
// kernel-internal read (the exec image load), where there is no user
// address to validate, mirroring vm's unexported sliceUioT.
type rawUio struct{ b []byte }

func (u *rawUio) Uioread(dst []uint8) (int, defs.Err_t) {
	n := copy(dst, u.b)
	u.b = u.b[n:]
	return n, 0
}
func (u *rawUio) Uiowrite(src []uint8) (int, defs.Err_t) {
	n := copy(u.b, src)
	u.b = u.b[n:]
	return n, 0
}
func (u *rawUio) Remain() int  { return len(u.b) }
func (u *rawUio) Totalsz() int { return len(u.b) }
