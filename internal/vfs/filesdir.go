// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"context"
	"os"
	"sync"
	"syscall"

	"github.com/telegramfs/tgfs/internal/entity"
	"github.com/telegramfs/tgfs/internal/telegram"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// filesMediaDirNode is a chat's files/ (mediaOnly false) or media/
// (mediaOnly true) projection (C6).
type filesMediaDirNode struct {
	gofuse.Inode
	kind      entity.Kind
	name      string
	mediaOnly bool
	opts      *Options
}

var _ gofuse.InodeEmbedder = (*filesMediaDirNode)(nil)
var _ gofuse.NodeLookuper = (*filesMediaDirNode)(nil)
var _ gofuse.NodeReaddirer = (*filesMediaDirNode)(nil)
var _ gofuse.NodeGetattrer = (*filesMediaDirNode)(nil)
var _ gofuse.NodeCreater = (*filesMediaDirNode)(nil)

func (f *filesMediaDirNode) virtualPath() string {
	base := "files"
	if f.mediaOnly {
		base = "media"
	}
	return kindRootName(f.kind) + "/" + f.name + "/" + base
}

func (f *filesMediaDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	resolved, ok := resolveEntity(f.opts, f.kind, f.name)
	if !ok {
		return nil, syscall.ENOENT
	}

	item, found, err := f.opts.Files.Lookup(ctx, resolved.chatID, name)
	if err != nil {
		return nil, errnoFor(err)
	}
	if found {
		out.Mode = syscall.S_IFREG | 0o400
		out.Size = uint64(item.Size)
		out.Mtime = uint64(item.TS)
		child := f.NewPersistentInode(ctx, &sharedFileNode{opts: f.opts, item: item}, gofuse.StableAttr{Mode: syscall.S_IFREG})
		return child, 0
	}

	virtualPath := f.virtualPath() + "/" + name
	if size, modTime, ok := f.opts.Uploads.Stat(virtualPath); ok {
		out.Mode = syscall.S_IFREG | 0o644
		out.Size = uint64(size)
		out.Mtime = uint64(modTime.Unix())
		child := f.NewPersistentInode(ctx, &uploadEntryNode{opts: f.opts, virtualPath: virtualPath}, gofuse.StableAttr{Mode: syscall.S_IFREG})
		return child, 0
	}
	return nil, syscall.ENOENT
}

func (f *filesMediaDirNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	resolved, ok := resolveEntity(f.opts, f.kind, f.name)
	if !ok {
		return nil, syscall.ENOENT
	}

	listed, err := f.opts.Files.List(ctx, resolved.chatID, f.mediaOnly)
	if err != nil {
		return nil, errnoFor(err)
	}

	entries := make([]fuse.DirEntry, 0, len(listed))
	for _, e := range listed {
		entries = append(entries, fuse.DirEntry{Name: e.Name, Mode: syscall.S_IFREG})
	}
	for _, up := range f.opts.Uploads.EntriesIn(f.virtualPath()) {
		entries = append(entries, fuse.DirEntry{Name: up.Name, Mode: syscall.S_IFREG})
	}
	return &sliceDirStream{entries: entries}, 0
}

func (f *filesMediaDirNode) Getattr(ctx context.Context, fh gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFDIR | 0o700
	return 0
}

// Create handles an upload written directly into files/ or media/,
// selecting DOCUMENT or MEDIA send mode per §4.7 (media/ additionally
// validates the extension against a fixed allow-list inside
// upload.Manager.Create).
func (f *filesMediaDirNode) Create(ctx context.Context, name string, flags, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	resolved, ok := resolveEntity(f.opts, f.kind, f.name)
	if !ok {
		return nil, nil, 0, syscall.ENOENT
	}

	sendMode := telegram.SendDocument
	if f.mediaOnly {
		sendMode = telegram.SendMedia
	}

	virtualPath := f.virtualPath() + "/" + name
	fh, err := f.opts.Uploads.Create(virtualPath, resolved.chatID, sendMode, name)
	if err != nil {
		return nil, nil, 0, errnoFor(err)
	}

	handle := &uploadWriteHandle{opts: f.opts, fh: fh}
	node := &uploadEntryNode{opts: f.opts, virtualPath: virtualPath}
	child := f.NewPersistentInode(ctx, node, gofuse.StableAttr{Mode: syscall.S_IFREG})
	out.Mode = syscall.S_IFREG | 0o644
	return child, handle, 0, 0
}

// sharedFileNode is a single listed file/media entry. Content is
// downloaded lazily on first Open, then streamed from the local path
// (§4.6's "download-on-read").
type sharedFileNode struct {
	gofuse.Inode
	opts *Options
	item telegram.FileListItem

	mu        sync.Mutex
	localPath string
}

var _ gofuse.InodeEmbedder = (*sharedFileNode)(nil)
var _ gofuse.NodeGetattrer = (*sharedFileNode)(nil)
var _ gofuse.NodeOpener = (*sharedFileNode)(nil)
var _ gofuse.NodeReader = (*sharedFileNode)(nil)

func (s *sharedFileNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | 0o400
	out.Size = uint64(s.item.Size)
	out.Mtime = uint64(s.item.TS)
	return 0
}

func (s *sharedFileNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EACCES
	}
	if err := s.ensureDownloaded(ctx); err != nil {
		return nil, 0, errnoFor(err)
	}
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (s *sharedFileNode) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if err := s.ensureDownloaded(ctx); err != nil {
		return nil, errnoFor(err)
	}

	s.mu.Lock()
	path := s.localPath
	s.mu.Unlock()

	file, err := os.Open(path)
	if err != nil {
		return nil, syscall.ENOENT
	}
	defer file.Close()

	n, err := file.ReadAt(dest, off)
	if err != nil && n == 0 {
		return fuse.ReadResultData(nil), 0
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (s *sharedFileNode) ensureDownloaded(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.localPath != "" {
		return nil
	}
	path, err := s.opts.Files.Download(ctx, s.item)
	if err != nil {
		return err
	}
	s.localPath = path
	return nil
}
