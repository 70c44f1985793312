// Package bpath canonicalizes absolute paths: it resolves "." and ".."
// components and collapses repeated slashes, without touching the
// filesystem. Canonical paths are what the dirent cache and the mount
// table key on.
package bpath

import "keelos/internal/ustr"

// Canonicalize resolves p (assumed absolute) into a path with no "."
// components, no ".." components, and no repeated slashes. The result
// always begins with "/".
func Canonicalize(p ustr.Ustr) ustr.Ustr {
	parts := p.Split()
	stack := make([]ustr.Ustr, 0, len(parts))
	for _, c := range parts {
		switch {
		case c.Isdot():
			continue
		case c.Isdotdot():
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, c)
		}
	}
	if len(stack) == 0 {
		return ustr.MkUstrRoot()
	}
	ret := ustr.Ustr{'/'}
	for i, c := range stack {
		if i > 0 {
			ret = append(ret, '/')
		}
		ret = append(ret, c...)
	}
	return ret
}
