// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"context"
	"strings"
	"syscall"
	"time"

	"github.com/telegramfs/tgfs/internal/entity"
	"github.com/telegramfs/tgfs/internal/telegram"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// infoNode serves the read-only ".info" key/value file for a user,
// group, or channel (§6.3). Content is rendered fresh on every read
// rather than cached, since the entity directory (C2) is itself the
// single source of truth and is already cheap to consult.
type infoNode struct {
	gofuse.Inode
	kind entity.Kind
	name string
	opts *Options
}

var _ gofuse.InodeEmbedder = (*infoNode)(nil)
var _ gofuse.NodeGetattrer = (*infoNode)(nil)
var _ gofuse.NodeOpener = (*infoNode)(nil)
var _ gofuse.NodeReader = (*infoNode)(nil)

func (n *infoNode) render() (string, syscall.Errno) {
	resolved, ok := resolveEntity(n.opts, n.kind, n.name)
	if !ok {
		return "", syscall.ENOENT
	}
	if resolved.isUser {
		return renderUserInfo(resolved.user, n.opts.Clock.Now()), 0
	}
	return renderChatInfo(resolved.chat), 0
}

func (n *infoNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	content, errno := n.render()
	if errno != 0 {
		return errno
	}
	out.Mode = syscall.S_IFREG | 0o400
	out.Size = uint64(len(content))
	return 0
}

func (n *infoNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EACCES
	}
	return nil, 0, 0
}

func (n *infoNode) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	content, errno := n.render()
	if errno != 0 {
		return nil, errno
	}
	if off >= int64(len(content)) {
		return fuse.ReadResultData(nil), 0
	}
	end := off + int64(len(dest))
	if end > int64(len(content)) {
		end = int64(len(content))
	}
	return fuse.ReadResultData([]byte(content[off:end])), 0
}

// renderUserInfo formats a user's .info fields in the order Username,
// Name, Bio, Phone, Last seen (§6.3).
func renderUserInfo(u telegram.User, now time.Time) string {
	var b strings.Builder
	if u.Username != "" {
		b.WriteString("Username: @" + u.Username + "\n")
	}
	b.WriteString("Name: " + u.DisplayName() + "\n")
	if u.Bio != "" {
		b.WriteString("Bio: " + u.Bio + "\n")
	}
	if u.Phone != "" {
		b.WriteString("Phone: " + u.Phone + "\n")
	}
	b.WriteString("Last seen: " + u.LastSeenString(now) + "\n")
	return b.String()
}

// renderChatInfo formats a group or channel's .info fields in the order
// Title, Username, Type (§6.3).
func renderChatInfo(c telegram.Chat) string {
	var b strings.Builder
	b.WriteString("Title: " + c.Title + "\n")
	if c.Username != "" {
		b.WriteString("Username: @" + c.Username + "\n")
	}
	b.WriteString("Type: " + c.Kind.String() + "\n")
	return b.String()
}
