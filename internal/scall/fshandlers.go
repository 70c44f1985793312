package scall

import (
	"keelos/internal/bpath"
	"keelos/internal/defs"
	"keelos/internal/fd"
	"keelos/internal/mem"
	"keelos/internal/pipe"
	"keelos/internal/sched"
	"keelos/internal/stat"
	"keelos/internal/ustr"
	"keelos/internal/vfs"
)

func init() {
	Register(SYS_OPEN, sysOpen)
	Register(SYS_MKDIR, sysMkdir)
	Register(SYS_UNLINK, sysUnlink)
	Register(SYS_STAT, sysStat)
	Register(SYS_CHDIR, sysChdir)
	Register(SYS_GETCWD, sysGetcwd)
	Register(SYS_DUP2, sysDup2)
	Register(SYS_PIPE2, sysPipe2)
	Register(SYS_LSEEK, sysLseek)
	Register(SYS_GETRUSAGE, sysGetrusage)
}

// lowestFreeFd returns the smallest fd number not already in use, the
// way a POSIX-ish open(2) is expected to allocate.
func lowestFreeFd(p *sched.Proc_t) int {
	for n := 0; ; n++ {
		if _, ok := p.Fds[n]; !ok {
			return n
		}
	}
}

// splitParent breaks the canonical path cp into its parent directory
// and final component, as vfs.Table.Open does for O_CREAT.
func splitParent(cp ustr.Ustr) (ustr.Ustr, string) {
	parts := cp.Split()
	name := string(parts[len(parts)-1])
	parent := ustr.Ustr{'/'}
	for i, c := range parts[:len(parts)-1] {
		if i > 0 {
			parent = append(parent, '/')
		}
		parent = append(parent, c...)
	}
	return parent, name
}

func sysOpen(t *sched.Thread_t, pathva, flags, mode, a4, a5 int) int {
	p := t.Proc
	path, err := p.Vm.Userstr(pathva, 512)
	if err != 0 {
		return int(err)
	}
	nf, err := p.Files.Open(path, flags, mode, p.Cwd)
	if err != 0 {
		return int(err)
	}
	fdn := lowestFreeFd(p)
	p.Fds[fdn] = nf
	return fdn
}

func sysMkdir(t *sched.Thread_t, pathva, mode, a3, a4, a5 int) int {
	p := t.Proc
	path, err := p.Vm.Userstr(pathva, 512)
	if err != 0 {
		return int(err)
	}
	full := path
	if !path.IsAbsolute() {
		full = p.Cwd.Fullpath(path)
	}
	cp := bpath.Canonicalize(full)
	parentPath, name := splitParent(cp)
	dir, derr := p.Files.Resolve(parentPath)
	if derr != 0 {
		return int(derr)
	}
	_, cerr := dir.Mkdir(name, mode)
	return int(cerr)
}

func sysUnlink(t *sched.Thread_t, pathva, a2, a3, a4, a5 int) int {
	p := t.Proc
	path, err := p.Vm.Userstr(pathva, 512)
	if err != 0 {
		return int(err)
	}
	full := path
	if !path.IsAbsolute() {
		full = p.Cwd.Fullpath(path)
	}
	cp := bpath.Canonicalize(full)
	parentPath, name := splitParent(cp)
	dir, derr := p.Files.Resolve(parentPath)
	if derr != 0 {
		return int(derr)
	}
	return int(dir.Unlink(name))
}

func sysStat(t *sched.Thread_t, pathva, statva, a3, a4, a5 int) int {
	p := t.Proc
	path, err := p.Vm.Userstr(pathva, 512)
	if err != 0 {
		return int(err)
	}
	full := path
	if !path.IsAbsolute() {
		full = p.Cwd.Fullpath(path)
	}
	ip, rerr := p.Files.Resolve(full)
	if rerr != 0 {
		return int(rerr)
	}
	var st stat.Stat_t
	if serr := ip.Stat(&st); serr != 0 {
		return int(serr)
	}
	ub := p.Vm.Mkuserbuf(statva, len(st.Bytes()))
	if _, werr := ub.Uiowrite(st.Bytes()); werr != 0 {
		return int(werr)
	}
	return 0
}

func sysChdir(t *sched.Thread_t, pathva, a2, a3, a4, a5 int) int {
	p := t.Proc
	path, err := p.Vm.Userstr(pathva, 512)
	if err != 0 {
		return int(err)
	}
	cp := p.Cwd.Canonicalpath(path)
	ip, rerr := p.Files.Resolve(cp)
	if rerr != 0 {
		return int(rerr)
	}
	if ip.Type() != vfs.ItypeDir {
		return int(-defs.ENOTDIR)
	}
	p.Cwd.Lock()
	p.Cwd.Path = cp
	p.Cwd.Unlock()
	return 0
}

func sysGetcwd(t *sched.Thread_t, bufva, sz, a3, a4, a5 int) int {
	p := t.Proc
	p.Cwd.Lock()
	cwd := append(ustr.Ustr{}, p.Cwd.Path...)
	p.Cwd.Unlock()
	if len(cwd)+1 > sz {
		return int(-defs.ENAMETOOLONG)
	}
	ub := p.Vm.Mkuserbuf(bufva, len(cwd)+1)
	if _, werr := ub.Uiowrite(append(append(ustr.Ustr{}, cwd...), 0)); werr != 0 {
		return int(werr)
	}
	return len(cwd)
}

func sysDup2(t *sched.Thread_t, oldfdn, newfdn, a3, a4, a5 int) int {
	p := t.Proc
	of, ok := p.Fds[oldfdn]
	if !ok {
		return int(-defs.EBADF)
	}
	if oldfdn == newfdn {
		return newfdn
	}
	nf, err := fd.Copyfd(of)
	if err != 0 {
		return int(err)
	}
	if existing, ok := p.Fds[newfdn]; ok {
		existing.Fops.Close()
	}
	p.Fds[newfdn] = nf
	return newfdn
}

func sysPipe2(t *sched.Thread_t, fdsva, flags, a3, a4, a5 int) int {
	p := t.Proc
	pp, err := pipe.MkPipe(mem.Physmem)
	if err != 0 {
		return int(err)
	}
	rd, wr := pipe.Ends(pp)
	rfdn := lowestFreeFd(p)
	p.Fds[rfdn] = &fd.Fd_t{Fops: rd, Perms: defs.O_RDONLY}
	wfdn := lowestFreeFd(p)
	p.Fds[wfdn] = &fd.Fd_t{Fops: wr, Perms: defs.O_WRONLY}

	ub := p.Vm.Mkuserbuf(fdsva, 8)
	var raw [8]uint8
	raw[0] = uint8(rfdn)
	raw[4] = uint8(wfdn)
	if _, werr := ub.Uiowrite(raw[:]); werr != 0 {
		return int(werr)
	}
	return 0
}

func sysLseek(t *sched.Thread_t, fdn, off, whence, a4, a5 int) int {
	f, ok := t.Proc.Fds[fdn]
	if !ok {
		return int(-defs.EBADF)
	}
	n, err := f.Fops.Lseek(off, whence)
	if err != 0 {
		return int(err)
	}
	return n
}

func sysGetrusage(t *sched.Thread_t, rusageva, a2, a3, a4, a5 int) int {
	buf := t.Proc.Accnt.Fetch()
	ub := t.Proc.Vm.Mkuserbuf(rusageva, len(buf))
	if _, werr := ub.Uiowrite(buf); werr != 0 {
		return int(werr)
	}
	return 0
}
