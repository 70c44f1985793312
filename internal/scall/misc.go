package scall

import (
	"encoding/binary"
	"time"

	"keelos/internal/bpath"
	"keelos/internal/defs"
	"keelos/internal/fd"
	"keelos/internal/sched"
	"keelos/internal/vfs"
)

func init() {
	Register(SYS_DUP, sysDup)
	Register(SYS_LINK, sysLink)
	Register(SYS_MKNOD, sysMknod)
	Register(SYS_READDIR, sysReaddir)
	Register(SYS_IOCTL, sysIoctl)
	Register(SYS_YIELD, sysYield)
	Register(SYS_SLEEP, sysSleep)
	Register(SYS_USLEEP, sysUsleep)
	Register(SYS_GETTIMEOFDAY, sysGettimeofday)
}

// sysDup duplicates oldfdn at the lowest free descriptor, the way
// dup(2) differs from dup2(2)'s caller-chosen target.
func sysDup(t *sched.Thread_t, oldfdn, a2, a3, a4, a5 int) int {
	p := t.Proc
	of, ok := p.Fds[oldfdn]
	if !ok {
		return int(-defs.EBADF)
	}
	nf, err := fd.Copyfd(of)
	if err != 0 {
		return int(err)
	}
	newfdn := lowestFreeFd(p)
	p.Fds[newfdn] = nf
	return newfdn
}

func sysLink(t *sched.Thread_t, oldva, newva, a3, a4, a5 int) int {
	p := t.Proc
	oldp, err := p.Vm.Userstr(oldva, 512)
	if err != 0 {
		return int(err)
	}
	newp, err := p.Vm.Userstr(newva, 512)
	if err != 0 {
		return int(err)
	}
	target, rerr := p.Files.Resolve(p.Cwd.Fullpath(oldp))
	if rerr != 0 {
		return int(rerr)
	}
	cp := bpath.Canonicalize(p.Cwd.Fullpath(newp))
	parentPath, name := splitParent(cp)
	dir, derr := p.Files.Resolve(parentPath)
	if derr != 0 {
		return int(derr)
	}
	return int(dir.Link(name, target))
}

// sysMknod creates a device-node inode; dev packs major/minor the way
// defs.Mkdev does.
func sysMknod(t *sched.Thread_t, pathva, mode, dev, a4, a5 int) int {
	p := t.Proc
	path, err := p.Vm.Userstr(pathva, 512)
	if err != 0 {
		return int(err)
	}
	cp := bpath.Canonicalize(p.Cwd.Fullpath(path))
	parentPath, name := splitParent(cp)
	dir, derr := p.Files.Resolve(parentPath)
	if derr != 0 {
		return int(derr)
	}
	major, minor := defs.Unmkdev(uint(dev))
	_, cerr := dir.Mknod(name, mode, major, minor)
	return int(cerr)
}

// sysReaddir reads one directory entry at fdn's cursor into bufva and
// advances the cursor, returning the entry's name length or 0 at the
// end of the directory.
func sysReaddir(t *sched.Thread_t, fdn, bufva, bufsz, a4, a5 int) int {
	f, ok := t.Proc.Fds[fdn]
	if !ok {
		return int(-defs.EBADF)
	}
	rd, ok := f.Fops.(vfs.Readdirer)
	if !ok {
		return int(-defs.ENOTDIR)
	}
	ent, more, err := rd.ReaddirOne()
	if err != 0 {
		return int(err)
	}
	if !more {
		return 0
	}
	raw := append([]byte(ent.Name), 0)
	if len(raw) > bufsz {
		return int(-defs.ENAMETOOLONG)
	}
	ub := t.Proc.Vm.Mkuserbuf(bufva, len(raw))
	if _, werr := ub.Uiowrite(raw); werr != 0 {
		return int(werr)
	}
	return len(ent.Name)
}

// ioctlArgMax bounds the user buffer handed to Fdops_i.Ioctl: every
// request this kernel answers fits in a winsize struct or a uint64
// physical address, both well under this.
const ioctlArgMax = 16

func sysIoctl(t *sched.Thread_t, fdn, req, argva, a4, a5 int) int {
	f, ok := t.Proc.Fds[fdn]
	if !ok {
		return int(-defs.EBADF)
	}
	ub := t.Proc.Vm.Mkuserbuf(argva, ioctlArgMax)
	n, err := f.Fops.Ioctl(req, ub)
	if err != 0 {
		return int(err)
	}
	return n
}

func sysYield(t *sched.Thread_t, a1, a2, a3, a4, a5 int) int {
	t.Yield()
	return 0
}

// sysSleep and sysUsleep block the calling thread for the requested
// duration, waking it on a timer the way Thread_t.Sleep's wait-channel
// model expects: whoever would wake a sleeper sends on the channel
// Sleep blocks on, and here that sender is a one-shot timer.
func sysSleep(t *sched.Thread_t, secs, a2, a3, a4, a5 int) int {
	return doSleep(t, time.Duration(secs)*time.Second)
}

func sysUsleep(t *sched.Thread_t, usecs, a2, a3, a4, a5 int) int {
	return doSleep(t, time.Duration(usecs)*time.Microsecond)
}

func doSleep(t *sched.Thread_t, d time.Duration) int {
	if d <= 0 {
		return 0
	}
	c := make(chan interface{}, 1)
	timer := time.AfterFunc(d, func() { c <- nil })
	_, err := t.Sleep(c)
	timer.Stop()
	return int(err)
}

// sysGettimeofday writes a {sec, usec} pair to user memory, the wall
// clock underlying every time-related syscall in this kernel (see
// accnt.Accnt_t.Now, which this mirrors rather than reading a raw TSC).
func sysGettimeofday(t *sched.Thread_t, tvva, a2, a3, a4, a5 int) int {
	now := time.Now()
	var raw [16]uint8
	binary.LittleEndian.PutUint64(raw[0:8], uint64(now.Unix()))
	binary.LittleEndian.PutUint64(raw[8:16], uint64(now.Nanosecond()/1000))
	ub := t.Proc.Vm.Mkuserbuf(tvva, len(raw))
	if _, werr := ub.Uiowrite(raw[:]); werr != 0 {
		return int(werr)
	}
	return 0
}
