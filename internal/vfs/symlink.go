// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"context"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// symlinkNode is a static symlink, used for /self, /@<username>, and
// /contacts/<name> (§4.1's "Symlink construction").
type symlinkNode struct {
	gofuse.Inode
	target string
}

var _ gofuse.InodeEmbedder = (*symlinkNode)(nil)
var _ gofuse.NodeReadlinker = (*symlinkNode)(nil)
var _ gofuse.NodeGetattrer = (*symlinkNode)(nil)

func (s *symlinkNode) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	return []byte(s.target), 0
}

func (s *symlinkNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFLNK | 0o777
	out.Size = uint64(len(s.target))
	return 0
}

func newSymlink(ctx context.Context, parent *gofuse.Inode, target string) *gofuse.Inode {
	return parent.NewPersistentInode(ctx, &symlinkNode{target: target}, gofuse.StableAttr{Mode: syscall.S_IFLNK})
}
