package vm

import "keelos/internal/defs"

// Userbuf_t adapts a (address space, virtual address, length) triple
// to fdops.Userio_i, so syscall handlers can pass a user buffer
// straight to Read/Write without knowing about page tables.
type Userbuf_t struct {
	as     *Vm_t
	userva int
	len    int
	off    int
}

// Mkuserbuf wraps the userva..userva+ulen range of as as a Userio_i.
func (as *Vm_t) Mkuserbuf(userva, ulen int) *Userbuf_t {
	return &Userbuf_t{as: as, userva: userva, len: ulen}
}

// Uioread copies from the user buffer into dst.
func (ub *Userbuf_t) Uioread(dst []uint8) (int, defs.Err_t) {
	want := len(dst)
	if want > ub.Remain() {
		want = ub.Remain()
	}
	if want == 0 {
		return 0, 0
	}
	if err := ub.as.User2k(dst[:want], ub.userva+ub.off); err != 0 {
		return 0, err
	}
	ub.off += want
	return want, 0
}

// Uiowrite copies from src into the user buffer.
func (ub *Userbuf_t) Uiowrite(src []uint8) (int, defs.Err_t) {
	want := len(src)
	if want > ub.Remain() {
		want = ub.Remain()
	}
	if want == 0 {
		return 0, 0
	}
	if err := ub.as.K2user(src[:want], ub.userva+ub.off); err != 0 {
		return 0, err
	}
	ub.off += want
	return want, 0
}

// Remain reports the number of bytes left to transfer.
func (ub *Userbuf_t) Remain() int { return ub.len - ub.off }

// Totalsz reports the buffer's total length.
func (ub *Userbuf_t) Totalsz() int { return ub.len }
