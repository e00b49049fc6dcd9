// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package render implements the format-and-cache stage of the message
// projection (C5) that produces a chat's "messages" file content
// (fetching and persisting messages are done by its callers), and the write-side text validation and chunking rules
// that turn a write(2) payload into one or more outgoing Telegram
// messages.
package render

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/telegramfs/tgfs/internal/entity"
	"github.com/telegramfs/tgfs/internal/formatcache"
	"github.com/telegramfs/tgfs/internal/store"
	"github.com/telegramfs/tgfs/internal/telegram"
	"github.com/telegramfs/tgfs/internal/tgerr"
	"github.com/telegramfs/tgfs/lib/clock"
)

// Renderer produces and caches the rendered "messages" file content for a
// chat, composing the durable cache (C3), the formatted-text cache (C4),
// and the entity directory (C2) used to resolve sender/chat names.
type Renderer struct {
	store     *store.Store
	cache     *formatcache.Cache
	directory *entity.Directory
	clock     clock.Clock
}

// New constructs a Renderer.
func New(st *store.Store, cache *formatcache.Cache, dir *entity.Directory, clk clock.Clock) *Renderer {
	return &Renderer{store: st, cache: cache, directory: dir, clock: clk}
}

// Render returns the current rendered "messages" text for chatID. A cache
// hit in C4 is returned as-is; otherwise the cached raw messages in C3
// are fetched and formatted, and the result is stored back into C4.
// Render does not itself fetch fresh messages over RPC — that is the
// prefetcher's (C8) and the on-demand fetch-on-read path's job, both of
// which call Invalidate or Render again after persisting new messages.
func (r *Renderer) Render(ctx context.Context, chatID int64) (string, error) {
	if content, ok := r.cache.Get(chatID); ok {
		return content, nil
	}

	messages, err := r.store.GetMessagesForDisplay(ctx, chatID, 0)
	if err != nil {
		return "", err
	}

	now := r.clock.Now()
	var b strings.Builder
	for i, msg := range messages {
		info, err := r.resolve(ctx, msg)
		if err != nil {
			return "", err
		}
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(formatMessage(info, now))
	}
	b.WriteByte('\n')

	content := b.String()
	r.cache.Store(chatID, content)
	return content, nil
}

// Invalidate forces the next Render call for chatID to re-format from the
// durable cache, called by the message-callback fan-out (C9) whenever a
// new message is persisted.
func (r *Renderer) Invalidate(chatID int64) {
	r.cache.Invalidate(chatID)
}

// EstimateSize returns an approximate byte length for chatID's "messages"
// file without forcing a full render, for getattr. It prefers the
// formatted-text cache's exact size; absent a cache hit it falls back to
// the durable cache's running content_size tally (§9 open question:
// rather than hydrating C4 on every getattr, getattr accepts the
// cheaper — possibly slightly stale — ChatMessageStats baseline, and a
// subsequent read triggers the real render).
func (r *Renderer) EstimateSize(ctx context.Context, chatID int64) (int64, error) {
	if size, ok := r.cache.GetContentSize(chatID); ok {
		return int64(size), nil
	}
	stats, ok, err := r.store.GetChatMessageStats(ctx, chatID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return int64(stats.ContentSize), nil
}

// ContentSizeOrZero returns C4's cached content size for chatID, or 0 if
// no live cache entry exists. Used by the write-semantics offset/size
// comparison in §4.5, which is defined in terms of C4 alone (unlike
// EstimateSize's stat-time fallback to C3's running tally).
func (r *Renderer) ContentSizeOrZero(chatID int64) int {
	if size, ok := r.cache.GetContentSize(chatID); ok {
		return size
	}
	return 0
}

func (r *Renderer) resolve(ctx context.Context, msg telegram.Message) (telegram.MessageInfo, error) {
	sender, err := r.directory.UserByID(ctx, msg.SenderID)
	if err != nil {
		return telegram.MessageInfo{}, tgerr.Wrap(tgerr.Upstream, err, "resolve sender")
	}
	chat, err := r.directory.ChatByID(ctx, msg.ChatID)
	if err != nil {
		return telegram.MessageInfo{}, tgerr.Wrap(tgerr.Upstream, err, "resolve chat")
	}
	return telegram.MessageInfo{Message: msg, Sender: sender, Chat: chat}, nil
}

// formatMessage renders one message as a markdown blockquote line
// (§6.4): `> **<sender>** [<time>] <media_tag>? <text>?`. A message is
// one line unless its text contains a newline, in which case the
// continuation lines are escaped as further `> ` blockquote lines.
func formatMessage(info telegram.MessageInfo, now time.Time) string {
	sender := info.Sender.MessageSender()
	if info.Message.Outgoing {
		sender = "You"
	}

	header := fmt.Sprintf("> **%s** [%s]", sender, relativeTime(info.Message.TS, now))

	body := info.Message.Text
	if info.Message.Media != nil {
		tag := mediaTag(info.Message.Media)
		if body == "" {
			body = tag
		} else {
			body = tag + " " + body
		}
	}

	if body == "" {
		return header
	}

	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if i > 0 {
			line = "> " + line
		}
		lines[i] = line
	}
	return header + " " + strings.Join(lines, "\n")
}

// relativeTime renders a message timestamp relative to now when recent
// (under a day old), else as an absolute local timestamp, per §6.4.
func relativeTime(ts int64, now time.Time) string {
	when := time.Unix(ts, 0).In(now.Location())
	delta := now.Sub(when)

	switch {
	case delta < 0:
		return when.Format("2006-01-02 15:04")
	case delta < time.Minute:
		return "just_now"
	case delta < time.Hour:
		minutes := int(delta / time.Minute)
		return strconv.Itoa(minutes) + " minutes ago"
	case delta < 24*time.Hour:
		hours := int(delta / time.Hour)
		return strconv.Itoa(hours) + " hours ago"
	default:
		return when.Format("2006-01-02 15:04")
	}
}

// mediaTag renders the bracketed media annotation appended to a
// message's body, per §6.4.
func mediaTag(m *telegram.MediaInfo) string {
	switch m.Kind {
	case telegram.MediaPhoto:
		return "[photo]"
	case telegram.MediaVideo:
		return "[video]"
	case telegram.MediaVoice:
		return "[voice message]"
	case telegram.MediaAnimation:
		return "[animation]"
	case telegram.MediaSticker:
		return "[sticker]"
	case telegram.MediaVideoNote:
		return "[video note]"
	case telegram.MediaAudio:
		return "[audio: " + m.Filename + "]"
	default:
		return "[document: " + m.Filename + "]"
	}
}
