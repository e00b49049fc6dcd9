// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"context"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// uploadWriteHandle is the FileHandle returned by Create for an
// in-flight upload (C7). It is a thin adapter onto upload.Manager,
// which already owns the temp-file buffering, so unlike the shared
// writer this wraps no buffer of its own.
type uploadWriteHandle struct {
	opts *Options
	fh   int64
}

var _ gofuse.FileHandle = (*uploadWriteHandle)(nil)
var _ gofuse.FileWriter = (*uploadWriteHandle)(nil)
var _ gofuse.FileFlusher = (*uploadWriteHandle)(nil)
var _ gofuse.FileReleaser = (*uploadWriteHandle)(nil)

func (h *uploadWriteHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	n, err := h.opts.Uploads.Write(h.fh, data, off)
	if err != nil {
		return uint32(n), errnoFor(err)
	}
	return uint32(n), 0
}

// Flush is a no-op: the upload is only dispatched on Release, since a
// flush can happen mid-write (e.g. on every close(2) of a dup'd
// descriptor) while release is the one-shot finalization point.
func (h *uploadWriteHandle) Flush(ctx context.Context) syscall.Errno {
	return 0
}

func (h *uploadWriteHandle) Release(ctx context.Context) syscall.Errno {
	if err := h.opts.Uploads.Release(ctx, h.fh); err != nil {
		return errnoFor(err)
	}
	return 0
}

// uploadEntryNode is the inode for a file created through the upload
// pipeline: its attributes come from upload.Manager's synthetic
// pending/completed table rather than from a backing local file.
type uploadEntryNode struct {
	gofuse.Inode
	opts        *Options
	virtualPath string
}

var _ gofuse.InodeEmbedder = (*uploadEntryNode)(nil)
var _ gofuse.NodeGetattrer = (*uploadEntryNode)(nil)
var _ gofuse.NodeSetattrer = (*uploadEntryNode)(nil)

func (u *uploadEntryNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	size, modTime, ok := u.opts.Uploads.Stat(u.virtualPath)
	out.Mode = syscall.S_IFREG | 0o644
	if ok {
		out.Size = uint64(size)
		out.Mtime = uint64(modTime.Unix())
	}
	return 0
}

// Setattr applies a size change to an in-flight upload's temp file via
// upload.Manager.Truncate, which resizes it to whatever size is asked
// for. Other attribute changes, and a size change made without the
// upload's own write handle, are accepted without effect.
func (u *uploadEntryNode) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		if handle, ok := f.(*uploadWriteHandle); ok {
			if err := u.opts.Uploads.Truncate(handle.fh, int64(size)); err != nil {
				return errnoFor(err)
			}
		}
	}
	return u.Getattr(ctx, f, out)
}
