// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"context"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// uploadsDirNode is /.uploads: a read-only, flat view of every pending
// or recently-completed upload across all chats (§6.2). It is a
// listing surface only; uploads are created by writing into the
// destination chat's directory, not here.
type uploadsDirNode struct {
	gofuse.Inode
	opts *Options
}

var _ gofuse.InodeEmbedder = (*uploadsDirNode)(nil)
var _ gofuse.NodeLookuper = (*uploadsDirNode)(nil)
var _ gofuse.NodeReaddirer = (*uploadsDirNode)(nil)
var _ gofuse.NodeGetattrer = (*uploadsDirNode)(nil)

func (u *uploadsDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	for _, entry := range u.opts.Uploads.All() {
		if entry.Name != name {
			continue
		}
		out.Mode = syscall.S_IFREG | 0o644
		out.Size = uint64(entry.Size)
		out.Mtime = uint64(entry.ModTime.Unix())
		child := u.NewPersistentInode(ctx, &uploadsEntryView{opts: u.opts, name: name}, gofuse.StableAttr{Mode: syscall.S_IFREG})
		return child, 0
	}
	return nil, syscall.ENOENT
}

func (u *uploadsDirNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	all := u.opts.Uploads.All()
	entries := make([]fuse.DirEntry, len(all))
	for i, e := range all {
		entries[i] = fuse.DirEntry{Name: e.Name, Mode: syscall.S_IFREG}
	}
	return &sliceDirStream{entries: entries}, 0
}

func (u *uploadsDirNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFDIR | 0o700
	return 0
}

// uploadsEntryView is a read-only stat-only view of an upload surfaced
// under /.uploads: it reports size/mtime by name lookup across the
// whole synthetic table, since its virtual path (inside some chat's
// directory) isn't known from this vantage point.
type uploadsEntryView struct {
	gofuse.Inode
	opts *Options
	name string
}

var _ gofuse.InodeEmbedder = (*uploadsEntryView)(nil)
var _ gofuse.NodeGetattrer = (*uploadsEntryView)(nil)

func (u *uploadsEntryView) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | 0o644
	for _, entry := range u.opts.Uploads.All() {
		if entry.Name == u.name {
			out.Size = uint64(entry.Size)
			out.Mtime = uint64(entry.ModTime.Unix())
			break
		}
	}
	return 0
}
