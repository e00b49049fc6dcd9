// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"syscall"

	"github.com/telegramfs/tgfs/internal/tgerr"
)

// errnoFor maps a component-level error to the POSIX errno this is the
// single boundary point (§7) responsible for choosing. Component code
// never returns a syscall.Errno directly; it returns a *tgerr.Error (or
// an error wrapping one), and only this function translates it.
func errnoFor(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	switch tgerr.KindOf(err) {
	case tgerr.NotFound:
		return syscall.ENOENT
	case tgerr.NotDir:
		return syscall.ENOTDIR
	case tgerr.IsDir:
		return syscall.EISDIR
	case tgerr.Perm:
		return syscall.EACCES
	case tgerr.TooLarge:
		return syscall.EFBIG
	case tgerr.BadInput:
		return syscall.EINVAL
	case tgerr.Upstream:
		return syscall.EIO
	case tgerr.Backend:
		return syscall.EIO
	default:
		return syscall.EIO
	}
}
