package fd_test

import (
	"testing"

	"keelos/internal/defs"
	"keelos/internal/fd"
	"keelos/internal/fdops"
	"keelos/internal/ustr"
)

type fakeFops struct {
	fdops.NetUnsupported
	closeErr  defs.Err_t
	reopenErr defs.Err_t
	reopened  bool
}

func (f *fakeFops) Close() defs.Err_t { return f.closeErr }
func (f *fakeFops) Fstat(st fdops.StatWriter) defs.Err_t { return 0 }
func (f *fakeFops) Lseek(off, whence int) (int, defs.Err_t) { return 0, 0 }
func (f *fakeFops) Mmapi(off, l int, inhibit bool) ([]fdops.MmapInfo, defs.Err_t) { return nil, 0 }
func (f *fakeFops) Pathi() fdops.PathResolver { return nil }
func (f *fakeFops) Read(dst fdops.Userio_i) (int, defs.Err_t) { return 0, 0 }
func (f *fakeFops) Reopen() defs.Err_t {
	f.reopened = true
	return f.reopenErr
}
func (f *fakeFops) Write(src fdops.Userio_i) (int, defs.Err_t) { return 0, 0 }
func (f *fakeFops) Fullpath() (string, defs.Err_t) { return "", 0 }
func (f *fakeFops) Truncate(newlen uint) defs.Err_t { return 0 }
func (f *fakeFops) Pread(dst fdops.Userio_i, offset int) (int, defs.Err_t) { return 0, 0 }
func (f *fakeFops) Pwrite(src fdops.Userio_i, offset int) (int, defs.Err_t) { return 0, 0 }
func (f *fakeFops) Ioctl(req int, arg fdops.Userio_i) (int, defs.Err_t)    { return 0, 0 }

func TestCopyfdReopensSharedDescription(t *testing.T) {
	fops := &fakeFops{}
	orig := &fd.Fd_t{Fops: fops, Perms: fd.FD_READ}

	cp, err := fd.Copyfd(orig)
	if err != 0 {
		t.Fatalf("Copyfd: errno %d", err)
	}
	if !fops.reopened {
		t.Fatal("Copyfd did not call Reopen on the underlying description")
	}
	if cp.Perms != fd.FD_READ {
		t.Fatalf("copy's Perms = %d, want FD_READ", cp.Perms)
	}
	if cp == orig {
		t.Fatal("Copyfd returned the same *Fd_t instead of a copy")
	}
}

func TestCopyfdPropagatesReopenError(t *testing.T) {
	fops := &fakeFops{reopenErr: -defs.EMFILE}
	orig := &fd.Fd_t{Fops: fops}

	if _, err := fd.Copyfd(orig); err != -defs.EMFILE {
		t.Fatalf("Copyfd errno = %d, want -EMFILE", err)
	}
}

func TestClosePanicOnFailure(t *testing.T) {
	fops := &fakeFops{closeErr: -defs.EIO}
	defer func() {
		if recover() == nil {
			t.Fatal("ClosePanic did not panic on a failed Close")
		}
	}()
	fd.ClosePanic(&fd.Fd_t{Fops: fops})
}

func TestCwdFullpathRelativeVsAbsolute(t *testing.T) {
	cwd := fd.MkRootCwd(&fd.Fd_t{})
	cwd.Path = ustr.Ustr("/home/user")

	if got := cwd.Fullpath(ustr.Ustr("docs")); got.String() != "/home/user/docs" {
		t.Fatalf("Fullpath(docs) = %q, want /home/user/docs", got)
	}
	if got := cwd.Fullpath(ustr.Ustr("/etc")); got.String() != "/etc" {
		t.Fatalf("Fullpath(/etc) = %q, want /etc (already absolute)", got)
	}
}

func TestCwdCanonicalpathResolvesDotDot(t *testing.T) {
	cwd := fd.MkRootCwd(&fd.Fd_t{})
	cwd.Path = ustr.Ustr("/home/user")

	got := cwd.Canonicalpath(ustr.Ustr("../other"))
	if got.String() != "/home/other" {
		t.Fatalf("Canonicalpath(../other) = %q, want /home/other", got)
	}
}
