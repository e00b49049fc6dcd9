// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"context"
	"syscall"

	"github.com/telegramfs/tgfs/internal/entity"
	"github.com/telegramfs/tgfs/internal/telegram"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// entityListDir is one of /users, /groups, /channels: it lazy-loads its
// entity kind on first touch (C2) and lists/looks up entries by
// directory name.
type entityListDir struct {
	gofuse.Inode
	kind entity.Kind
	opts *Options
}

var _ gofuse.InodeEmbedder = (*entityListDir)(nil)
var _ gofuse.NodeLookuper = (*entityListDir)(nil)
var _ gofuse.NodeReaddirer = (*entityListDir)(nil)
var _ gofuse.NodeGetattrer = (*entityListDir)(nil)

func (d *entityListDir) ensureLoaded(ctx context.Context) error {
	switch d.kind {
	case entity.KindUser:
		return d.opts.Directory.EnsureUsersLoaded(ctx)
	case entity.KindGroup:
		return d.opts.Directory.EnsureGroupsLoaded(ctx)
	default:
		return d.opts.Directory.EnsureChannelsLoaded(ctx)
	}
}

func (d *entityListDir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	if err := d.ensureLoaded(ctx); err != nil {
		d.opts.Logger.Warn("failed to load entity directory", "kind", d.kind, "error", err)
		return nil, errnoFor(err)
	}
	if _, ok := resolveEntity(d.opts, d.kind, name); !ok {
		return nil, syscall.ENOENT
	}

	out.Mode = syscall.S_IFDIR | 0o700
	child := d.NewPersistentInode(ctx, &entityDirNode{kind: d.kind, name: name, opts: d.opts}, gofuse.StableAttr{Mode: syscall.S_IFDIR})
	return child, 0
}

func (d *entityListDir) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	if err := d.ensureLoaded(ctx); err != nil {
		d.opts.Logger.Warn("failed to load entity directory", "kind", d.kind, "error", err)
		return nil, errnoFor(err)
	}

	var names []string
	switch d.kind {
	case entity.KindUser:
		for _, u := range d.opts.Directory.ListUsers() {
			names = append(names, entity.UserDirName(u))
		}
	case entity.KindGroup:
		for _, c := range d.opts.Directory.ListGroups() {
			names = append(names, entity.ChatDirName(c))
		}
	default:
		for _, c := range d.opts.Directory.ListChannels() {
			names = append(names, entity.ChatDirName(c))
		}
	}

	entries := make([]fuse.DirEntry, len(names))
	for i, name := range names {
		entries[i] = fuse.DirEntry{Name: name, Mode: syscall.S_IFDIR}
	}
	return &sliceDirStream{entries: entries}, 0
}

func (d *entityListDir) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFDIR | 0o700
	return 0
}

// contactsDirNode is /contacts: a flat list of symlinks to the subset of
// /users whose entity is a contact (§6.2, §3.2's symlink reachability
// invariant).
type contactsDirNode struct {
	gofuse.Inode
	opts *Options
}

var _ gofuse.InodeEmbedder = (*contactsDirNode)(nil)
var _ gofuse.NodeLookuper = (*contactsDirNode)(nil)
var _ gofuse.NodeReaddirer = (*contactsDirNode)(nil)
var _ gofuse.NodeGetattrer = (*contactsDirNode)(nil)

func (c *contactsDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	if err := c.opts.Directory.EnsureUsersLoaded(ctx); err != nil {
		return nil, errnoFor(err)
	}
	u, ok := c.opts.Directory.LookupUser(name)
	if !ok || !u.IsContact {
		return nil, syscall.ENOENT
	}
	out.Mode = syscall.S_IFLNK | 0o777
	return newSymlink(ctx, &c.Inode, "users/"+name), 0
}

func (c *contactsDirNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	if err := c.opts.Directory.EnsureUsersLoaded(ctx); err != nil {
		return nil, errnoFor(err)
	}

	var entries []fuse.DirEntry
	for _, u := range c.opts.Directory.ListUsers() {
		if !u.IsContact {
			continue
		}
		entries = append(entries, fuse.DirEntry{Name: entity.UserDirName(u), Mode: syscall.S_IFLNK})
	}
	return &sliceDirStream{entries: entries}, 0
}

func (c *contactsDirNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFDIR | 0o700
	return 0
}

// entityDirNode is a single chat's directory: /users/<name>,
// /groups/<name>, or /channels/<name>. Its four fixed children are
// .info, messages, files/, media/; any other name is an upload target
// (bare-directory AUTO mode) or a synthetic pending/completed upload
// entry.
type entityDirNode struct {
	gofuse.Inode
	kind entity.Kind
	name string
	opts *Options
}

var _ gofuse.InodeEmbedder = (*entityDirNode)(nil)
var _ gofuse.NodeLookuper = (*entityDirNode)(nil)
var _ gofuse.NodeReaddirer = (*entityDirNode)(nil)
var _ gofuse.NodeGetattrer = (*entityDirNode)(nil)
var _ gofuse.NodeCreater = (*entityDirNode)(nil)

func (e *entityDirNode) virtualPath() string {
	return kindRootName(e.kind) + "/" + e.name
}

func kindRootName(k entity.Kind) string {
	switch k {
	case entity.KindUser:
		return "users"
	case entity.KindGroup:
		return "groups"
	default:
		return "channels"
	}
}

func (e *entityDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	switch name {
	case ".info":
		out.Mode = syscall.S_IFREG | 0o400
		child := e.NewPersistentInode(ctx, &infoNode{kind: e.kind, name: e.name, opts: e.opts}, gofuse.StableAttr{Mode: syscall.S_IFREG})
		return child, 0
	case "messages":
		out.Mode = syscall.S_IFREG | 0o600
		child := e.NewPersistentInode(ctx, &messagesNode{kind: e.kind, name: e.name, opts: e.opts}, gofuse.StableAttr{Mode: syscall.S_IFREG})
		return child, 0
	case "files":
		out.Mode = syscall.S_IFDIR | 0o700
		child := e.NewPersistentInode(ctx, &filesMediaDirNode{kind: e.kind, name: e.name, opts: e.opts}, gofuse.StableAttr{Mode: syscall.S_IFDIR})
		return child, 0
	case "media":
		out.Mode = syscall.S_IFDIR | 0o700
		child := e.NewPersistentInode(ctx, &filesMediaDirNode{kind: e.kind, name: e.name, mediaOnly: true, opts: e.opts}, gofuse.StableAttr{Mode: syscall.S_IFDIR})
		return child, 0
	}

	virtualPath := e.virtualPath() + "/" + name
	if size, modTime, ok := e.opts.Uploads.Stat(virtualPath); ok {
		child := e.NewPersistentInode(ctx, &uploadEntryNode{opts: e.opts, virtualPath: virtualPath}, gofuse.StableAttr{Mode: syscall.S_IFREG})
		out.Mode = syscall.S_IFREG | 0o644
		out.Size = uint64(size)
		out.Mtime = uint64(modTime.Unix())
		return child, 0
	}
	return nil, syscall.ENOENT
}

func (e *entityDirNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	entries := []fuse.DirEntry{
		{Name: ".info", Mode: syscall.S_IFREG},
		{Name: "messages", Mode: syscall.S_IFREG},
		{Name: "files", Mode: syscall.S_IFDIR},
		{Name: "media", Mode: syscall.S_IFDIR},
	}
	for _, up := range e.opts.Uploads.EntriesIn(e.virtualPath()) {
		entries = append(entries, fuse.DirEntry{Name: up.Name, Mode: syscall.S_IFREG})
	}
	return &sliceDirStream{entries: entries}, 0
}

func (e *entityDirNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFDIR | 0o700
	return 0
}

// Create handles a write targeting the bare chat directory (e.g.
// `cp report.pdf /users/alice/`), which §4.7 dispatches as an AUTO-mode
// upload: the pipeline resolves the concrete send mode from the
// uploaded content/extension at release time.
func (e *entityDirNode) Create(ctx context.Context, name string, flags, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	resolved, ok := resolveEntity(e.opts, e.kind, e.name)
	if !ok {
		return nil, nil, 0, syscall.ENOENT
	}

	virtualPath := e.virtualPath() + "/" + name
	fh, err := e.opts.Uploads.Create(virtualPath, resolved.chatID, telegram.SendAuto, name)
	if err != nil {
		return nil, nil, 0, errnoFor(err)
	}

	handle := &uploadWriteHandle{opts: e.opts, fh: fh}
	node := &uploadEntryNode{opts: e.opts, virtualPath: virtualPath}
	child := e.NewPersistentInode(ctx, node, gofuse.StableAttr{Mode: syscall.S_IFREG})
	out.Mode = syscall.S_IFREG | 0o644
	return child, handle, 0, 0
}
