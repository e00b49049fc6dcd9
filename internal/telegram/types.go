// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package telegram defines the data model shared across the core and the
// TelegramClient capability boundary (internal/telegram.Client), plus a
// deterministic in-memory mock used by every other package's tests.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxFileSizeRegular is the largest upload the core accepts before
// Telegram's own 2 GiB ceiling for a regular (non-premium) account.
const MaxFileSizeRegular = 2 * 1024 * 1024 * 1024

// ChatKind distinguishes the four conversation shapes Telegram exposes.
type ChatKind int

const (
	ChatPrivate ChatKind = iota
	ChatGroup
	ChatSupergroup
	ChatChannel
)

func (k ChatKind) String() string {
	switch k {
	case ChatPrivate:
		return "private"
	case ChatGroup:
		return "group"
	case ChatSupergroup:
		return "supergroup"
	case ChatChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// UserStatus is the coarse presence state Telegram reports for a user.
type UserStatus int

const (
	StatusUnknown UserStatus = iota
	StatusOnline
	StatusOffline
	StatusRecently
	StatusLastWeek
	StatusLastMonth
)

// MediaKind enumerates the media categories a Message may carry.
type MediaKind int

const (
	MediaPhoto MediaKind = iota
	MediaVideo
	MediaDocument
	MediaAudio
	MediaVoice
	MediaAnimation
	MediaSticker
	MediaVideoNote
)

func (k MediaKind) String() string {
	switch k {
	case MediaPhoto:
		return "photo"
	case MediaVideo:
		return "video"
	case MediaDocument:
		return "document"
	case MediaAudio:
		return "audio"
	case MediaVoice:
		return "voice"
	case MediaAnimation:
		return "animation"
	case MediaSticker:
		return "sticker"
	case MediaVideoNote:
		return "video_note"
	default:
		return "unknown"
	}
}

// IsMedia reports whether kind belongs in a chat's media/ projection
// (compressed photos/videos/animations), as opposed to files/.
func (k MediaKind) IsMedia() bool {
	return k == MediaPhoto || k == MediaVideo || k == MediaAnimation
}

// IsDocument reports whether kind belongs in a chat's files/ projection.
func (k MediaKind) IsDocument() bool {
	return k == MediaDocument || k == MediaAudio || k == MediaVoice ||
		k == MediaSticker || k == MediaVideoNote
}

// SendMode selects how an upload is dispatched.
type SendMode int

const (
	SendAuto SendMode = iota
	SendMedia
	SendDocument
)

// User mirrors a Telegram user as seen by the entity directory (C2) and
// the durable cache (C3).
type User struct {
	ID                 int64
	Username           string
	FirstName          string
	LastName           string
	Phone              string
	Bio                string
	IsContact          bool
	Status             UserStatus
	LastSeenTS         int64
	LastMessageID      int64
	LastMessageTS      int64
}

// HasName reports whether the user has a non-empty first or last name.
func (u User) HasName() bool {
	return u.FirstName != "" || u.LastName != ""
}

// DisplayName follows original_source's User::display_name precedence:
// first+last, else first, else last, else "@username", else "User <id>".
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	case u.Username != "":
		return "@" + u.Username
	default:
		return "User " + strconv.FormatInt(u.ID, 10)
	}
}

// Identifier returns "@username" when present, else DisplayName.
func (u User) Identifier() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.DisplayName()
}

// MessageSender renders the sender form used in a message's blockquote
// header (§6.4), following original_source's format_message: the display
// name with the username parenthesised, e.g. "Alice Smith (@alice)". A
// user with no first/last name has a DisplayName that already collapsed
// to "@username", so the username is not repeated in that case.
func (u User) MessageSender() string {
	name := u.DisplayName()
	if u.Username == "" || !u.HasName() {
		return name
	}
	return name + " (@" + u.Username + ")"
}

// LastSeenString renders the §6.3/§4.14 "Last seen" field exactly as
// original_source/src/tg/types.cpp's get_last_seen_string does.
func (u User) LastSeenString(now time.Time) string {
	switch u.Status {
	case StatusOnline:
		return "online"
	case StatusOffline:
		if u.LastSeenTS == 0 {
			return "a long time ago"
		}
		return time.Unix(u.LastSeenTS, 0).In(now.Location()).Format("2006-01-02 15:04")
	case StatusRecently:
		return "recently"
	case StatusLastWeek:
		return "within a week"
	case StatusLastMonth:
		return "within a month"
	default:
		return "a long time ago"
	}
}

// Chat mirrors a Telegram chat (private/group/supergroup/channel).
type Chat struct {
	ID               int64
	Kind             ChatKind
	Title            string
	Username         string
	LastMessageID    int64
	LastMessageTS    int64
	CanSend          bool
}

func (c Chat) IsPrivate() bool  { return c.Kind == ChatPrivate }
func (c Chat) IsGroup() bool    { return c.Kind == ChatGroup || c.Kind == ChatSupergroup }
func (c Chat) IsChannel() bool  { return c.Kind == ChatChannel }

// MediaInfo describes the media payload of a Message, if any.
type MediaInfo struct {
	Kind     MediaKind
	FileID   string
	Filename string
	MIME     string
	Size     int64
	Width    int
	Height   int
	Duration int
}

// Extension returns a filename-derived or kind-based fallback extension,
// following original_source's MediaInfo::get_extension.
func (m MediaInfo) Extension() string {
	if m.Filename != "" {
		if i := strings.LastIndexByte(m.Filename, '.'); i >= 0 && i < len(m.Filename)-1 {
			return m.Filename[i:]
		}
	}
	switch m.Kind {
	case MediaPhoto:
		return ".jpg"
	case MediaVideo:
		return ".mp4"
	case MediaAudio:
		return ".mp3"
	case MediaVoice:
		return ".ogg"
	case MediaAnimation:
		return ".gif"
	case MediaSticker:
		return ".webp"
	case MediaVideoNote:
		return ".mp4"
	default:
		return ""
	}
}

// Message is a single Telegram message, keyed by (ChatID, ID).
type Message struct {
	ID        int64
	ChatID    int64
	SenderID  int64
	TS        int64
	Text      string
	Media     *MediaInfo
	Outgoing  bool
}

func (m Message) HasMedia() bool { return m.Media != nil }

// MessageInfo is the transient projection of a Message resolved against
// its sender and chat, assembled on demand for rendering — never stored.
type MessageInfo struct {
	Message Message
	Sender  User
	Chat    Chat
}

// FileListItem is a single shared-file entry, keyed by (ChatID, MessageID).
type FileListItem struct {
	ChatID    int64
	MessageID int64
	Filename  string
	Size      int64
	TS        int64
	Kind      MediaKind
	FileID    string
}

// SizeString renders a human-readable byte count, following
// original_source's FileListItem::get_size_string (§4.12).
func (f FileListItem) SizeString() string {
	units := [...]string{"B", "KB", "MB", "GB", "TB"}
	size := float64(f.Size)
	unit := 0
	for size >= 1024.0 && unit < len(units)-1 {
		size /= 1024.0
		unit++
	}
	return fmt.Sprintf("%.2f %s", size, units[unit])
}

// ChatMessageStats tracks per-chat fetch/render freshness (C3/C4/C8).
type ChatMessageStats struct {
	ChatID          int64
	MessageCount    int
	ContentSize     int
	LastMessageTS   int64
	LastFetchTS     int64
	OldestMessageTS int64
}

// DetectMediaKind classifies a filename/MIME pair per §4.13, grounded in
// original_source's detect_media_type.
func DetectMediaKind(filename, mime string) MediaKind {
	lowerMIME := strings.ToLower(mime)
	lowerName := strings.ToLower(filename)

	switch {
	case strings.Contains(lowerMIME, "image"):
		if strings.Contains(lowerMIME, "gif") {
			return MediaAnimation
		}
		return MediaPhoto
	case strings.Contains(lowerMIME, "video"):
		return MediaVideo
	case strings.Contains(lowerMIME, "audio"):
		return MediaAudio
	}

	if i := strings.LastIndexByte(lowerName, '.'); i >= 0 {
		switch lowerName[i:] {
		case ".jpg", ".jpeg", ".png", ".webp":
			return MediaPhoto
		case ".gif":
			return MediaAnimation
		case ".mp4", ".mov", ".avi", ".mkv", ".webm":
			return MediaVideo
		case ".mp3", ".ogg", ".wav", ".m4a", ".flac":
			return MediaAudio
		}
	}
	return MediaDocument
}
