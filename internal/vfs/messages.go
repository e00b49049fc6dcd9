// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"context"
	"sort"
	"syscall"
	"time"

	"github.com/telegramfs/tgfs/internal/entity"
	"github.com/telegramfs/tgfs/internal/render"
	"github.com/telegramfs/tgfs/internal/telegram"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// backfillMinMessages and backfillMaxHistoryAge mirror the prefetcher's
// (C8) defaults: a read that finds fewer than this many cached messages
// within this window triggers the same on-demand RPC fetch the
// background prefetcher would eventually have performed anyway (§4.4).
const (
	backfillMinMessages   = 10
	backfillMaxHistoryAge = 48 * time.Hour
)

// messagesNode is a chat's "messages" file: reading renders the chat
// history (C5), backfilling from RPC first if the durable cache (C3)
// doesn't yet hold enough of it; writing submits outgoing text (§4.5).
type messagesNode struct {
	gofuse.Inode
	kind entity.Kind
	name string
	opts *Options
}

var _ gofuse.InodeEmbedder = (*messagesNode)(nil)
var _ gofuse.NodeGetattrer = (*messagesNode)(nil)
var _ gofuse.NodeOpener = (*messagesNode)(nil)
var _ gofuse.NodeReader = (*messagesNode)(nil)
var _ gofuse.NodeWriter = (*messagesNode)(nil)
var _ gofuse.NodeSetattrer = (*messagesNode)(nil)

func (n *messagesNode) chatID() (int64, syscall.Errno) {
	resolved, ok := resolveEntity(n.opts, n.kind, n.name)
	if !ok {
		return 0, syscall.ENOENT
	}
	return resolved.chatID, 0
}

// ensureBackfilled implements §4.4 steps 2-3-5: when the durable cache
// doesn't yet hold enough history, fetch it over RPC, persist it, and
// evict anything older than the retention window — the same sequence
// prefetch.Prefetcher.fetchChat performs in the background, run here
// synchronously because a reader is waiting on the result.
func (n *messagesNode) ensureBackfilled(ctx context.Context, chatID int64) error {
	stats, ok, err := n.opts.Store.GetChatMessageStats(ctx, chatID)
	if err == nil && ok && stats.MessageCount >= backfillMinMessages {
		return nil
	}

	maxAgeSeconds := int64(backfillMaxHistoryAge / time.Second)
	msgs, err := n.opts.Client.GetMessagesUntil(ctx, chatID, backfillMinMessages, maxAgeSeconds)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	if err := n.opts.Store.CacheMessages(ctx, msgs); err != nil {
		return err
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].TS < msgs[j].TS })

	n.opts.Renderer.Invalidate(chatID)
	content, err := n.opts.Renderer.Render(ctx, chatID)
	if err != nil {
		return err
	}

	newStats := telegram.ChatMessageStats{
		ChatID:          chatID,
		MessageCount:    len(msgs),
		ContentSize:     len(content),
		LastMessageTS:   msgs[len(msgs)-1].TS,
		OldestMessageTS: msgs[0].TS,
		LastFetchTS:     n.opts.Clock.Now().Unix(),
	}
	if err := n.opts.Store.PutChatMessageStats(ctx, newStats); err != nil {
		return err
	}

	cutoff := n.opts.Clock.Now().Unix() - maxAgeSeconds
	return n.opts.Store.EvictOldMessages(ctx, chatID, cutoff)
}

func (n *messagesNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	chatID, errno := n.chatID()
	if errno != 0 {
		return errno
	}
	size, err := n.opts.Renderer.EstimateSize(ctx, chatID)
	if err != nil {
		return errnoFor(err)
	}
	out.Mode = syscall.S_IFREG | 0o600
	out.Size = uint64(size)
	return 0
}

func (n *messagesNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (n *messagesNode) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	chatID, errno := n.chatID()
	if errno != 0 {
		return nil, errno
	}

	if err := n.ensureBackfilled(ctx, chatID); err != nil {
		n.opts.Logger.Warn("message backfill failed", "chat_id", chatID, "error", err)
	}

	content, err := n.opts.Renderer.Render(ctx, chatID)
	if err != nil {
		return nil, errnoFor(err)
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

// Write implements §4.5's offset/size decision table against C4's
// cached content size C: when C is 0 (nothing cached) the whole payload
// is sent; a write at offset 0 that extends past C sends only the bytes
// beyond C; a write starting past C is accepted but not sent (stale);
// and any other write, one starting within C or exactly at C, is
// accepted but not sent (an in-place edit of already-sent history,
// which Telegram has no mechanism to amend).
func (n *messagesNode) Write(ctx context.Context, f gofuse.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	chatID, errno := n.chatID()
	if errno != 0 {
		return 0, errno
	}

	size := off + int64(len(data))
	contentSize := int64(n.opts.Renderer.ContentSizeOrZero(chatID))

	var toSend string
	switch {
	case contentSize == 0:
		toSend = string(data)
	case off == 0 && size > contentSize:
		suffixStart := contentSize - off
		if suffixStart < 0 {
			suffixStart = 0
		}
		toSend = string(data[suffixStart:])
	case off > contentSize:
		return uint32(len(data)), 0
	default:
		return uint32(len(data)), 0
	}

	// Binary content written to "messages" is rejected with EIO, not
	// EINVAL — EINVAL is reserved for non-media writes under media/
	// (§7).
	if !render.ValidText([]byte(toSend)) {
		return 0, syscall.EIO
	}
	text := render.TrimTrailingNewline(toSend)
	if text == "" {
		return uint32(len(data)), 0
	}

	for _, chunk := range render.SplitMessage(text, 0) {
		if _, err := n.opts.Client.SendText(ctx, chatID, chunk); err != nil {
			return 0, errnoFor(err)
		}
	}
	return uint32(len(data)), 0
}

// Setattr handles truncate: shrinking to 0 is accepted as a no-op
// (clearing a reader's local buffer before a fresh append), any other
// target size is rejected since "messages" has no addressable byte
// range to resize (§4.5).
func (n *messagesNode) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok && size != 0 {
		return syscall.EPERM
	}
	return n.Getattr(ctx, f, out)
}
