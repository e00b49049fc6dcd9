// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package vfs implements the VFS operations surface (C10): the FUSE node
// tree that composes the path router (C1), entity directory (C2),
// message projection (C5), file projection (C6), and upload pipeline
// (C7) into getattr/readdir/read/write/create/release/truncate.
package vfs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/telegramfs/tgfs/internal/entity"
	"github.com/telegramfs/tgfs/internal/files"
	"github.com/telegramfs/tgfs/internal/render"
	"github.com/telegramfs/tgfs/internal/store"
	"github.com/telegramfs/tgfs/internal/telegram"
	"github.com/telegramfs/tgfs/internal/upload"
	"github.com/telegramfs/tgfs/lib/clock"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Options configures the FUSE mount and supplies every capability the
// node tree dispatches into.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	Mountpoint string

	// Directory is the in-memory entity directory (C2).
	Directory *entity.Directory

	// Renderer produces "messages" file content (C5).
	Renderer *render.Renderer

	// Store is the durable cache (C3), consulted directly for the
	// on-demand message backfill a read may need before C5 has
	// enough history.
	Store *store.Store

	// Files projects shared documents/media (C6).
	Files *files.Lister

	// Uploads tracks in-flight and recently-completed uploads (C7).
	Uploads *upload.Manager

	// Client is the RPC capability, used directly by the messages
	// write path (§4.5) and the on-demand backfill fetch (§4.4).
	Client telegram.Client

	// Clock provides time for mtime synthesis. If nil, clock.Real().
	Clock clock.Clock

	// AllowOther permits other users to access the mount.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, a no-op logger.
	Logger *slog.Logger
}

func (o *Options) withDefaults() {
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// Mount mounts the Telegram filesystem at options.Mountpoint. The caller
// must call Unmount on the returned Server when done.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Directory == nil || options.Renderer == nil || options.Store == nil ||
		options.Files == nil || options.Uploads == nil || options.Client == nil {
		return nil, fmt.Errorf("directory, renderer, store, files, uploads, and client are all required")
	}
	options.withDefaults()

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &rootNode{opts: &options}

	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second
	negativeTimeout := 100 * time.Millisecond

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "tgfs",
			Name:       "tgfs",
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("telegram filesystem mounted", "mountpoint", options.Mountpoint)
	return server, nil
}

// rootNode is the filesystem root: the five static top-level directories
// plus the /self and /@<username> symlinks (§6.2).
type rootNode struct {
	gofuse.Inode
	opts *Options
}

var _ gofuse.InodeEmbedder = (*rootNode)(nil)
var _ gofuse.NodeOnAdder = (*rootNode)(nil)
var _ gofuse.NodeLookuper = (*rootNode)(nil)

func (r *rootNode) OnAdd(ctx context.Context) {
	usersDir := r.NewPersistentInode(ctx, &entityListDir{kind: entity.KindUser, opts: r.opts}, gofuse.StableAttr{Mode: syscall.S_IFDIR})
	r.AddChild("users", usersDir, true)

	contactsDir := r.NewPersistentInode(ctx, &contactsDirNode{opts: r.opts}, gofuse.StableAttr{Mode: syscall.S_IFDIR})
	r.AddChild("contacts", contactsDir, true)

	groupsDir := r.NewPersistentInode(ctx, &entityListDir{kind: entity.KindGroup, opts: r.opts}, gofuse.StableAttr{Mode: syscall.S_IFDIR})
	r.AddChild("groups", groupsDir, true)

	channelsDir := r.NewPersistentInode(ctx, &entityListDir{kind: entity.KindChannel, opts: r.opts}, gofuse.StableAttr{Mode: syscall.S_IFDIR})
	r.AddChild("channels", channelsDir, true)

	uploadsDir := r.NewPersistentInode(ctx, &uploadsDirNode{opts: r.opts}, gofuse.StableAttr{Mode: syscall.S_IFDIR})
	r.AddChild(".uploads", uploadsDir, true)
}

// Lookup resolves "self" and "@<username>", the two dynamic root entries
// that Parse categorises as SelfSymlink/RootSymlink. The five static
// children are already attached by OnAdd and never reach Lookup.
func (r *rootNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	if name == "self" {
		me, ok := r.opts.Directory.Me()
		if !ok {
			return nil, syscall.ENOENT
		}
		target := "users/" + entity.UserDirName(me)
		out.Mode = syscall.S_IFLNK | 0o777
		return newSymlink(ctx, &r.Inode, target), 0
	}

	if len(name) > 1 && name[0] == '@' {
		username := name[1:]
		u, ok := r.opts.Directory.LookupUser(username)
		if !ok || !u.IsContact {
			return nil, syscall.ENOENT
		}
		target := "users/" + entity.UserDirName(u)
		out.Mode = syscall.S_IFLNK | 0o777
		return newSymlink(ctx, &r.Inode, target), 0
	}

	return nil, syscall.ENOENT
}
