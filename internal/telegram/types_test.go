// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package telegram

import (
	"testing"
	"time"
)

func TestUserDisplayName(t *testing.T) {
	cases := []struct {
		name string
		user User
		want string
	}{
		{"first and last", User{FirstName: "Ada", LastName: "Lovelace"}, "Ada Lovelace"},
		{"first only", User{FirstName: "Ada"}, "Ada"},
		{"last only", User{LastName: "Lovelace"}, "Lovelace"},
		{"username fallback", User{Username: "ada"}, "@ada"},
		{"id fallback", User{ID: 42}, "User 42"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.user.DisplayName(); got != tc.want {
				t.Fatalf("DisplayName() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestUserLastSeenString(t *testing.T) {
	now := time.Date(2026, 8, 6, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		user User
		want string
	}{
		{"online", User{Status: StatusOnline}, "online"},
		{"offline no timestamp", User{Status: StatusOffline}, "a long time ago"},
		{"offline with timestamp", User{Status: StatusOffline, LastSeenTS: now.Unix()}, now.Format("2006-01-02 15:04")},
		{"recently", User{Status: StatusRecently}, "recently"},
		{"last week", User{Status: StatusLastWeek}, "within a week"},
		{"last month", User{Status: StatusLastMonth}, "within a month"},
		{"unknown", User{Status: StatusUnknown}, "a long time ago"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.user.LastSeenString(now); got != tc.want {
				t.Fatalf("LastSeenString() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFileListItemSizeString(t *testing.T) {
	cases := []struct {
		size int64
		want string
	}{
		{0, "0.00 B"},
		{1023, "1023.00 B"},
		{1024, "1.00 KB"},
		{1024 * 1024, "1.00 MB"},
		{1024 * 1024 * 1024, "1.00 GB"},
		{1024 * 1024 * 1024 * 1024, "1.00 TB"},
		{1024 * 1024 * 1024 * 1024 * 1024, "1024.00 TB"},
	}
	for _, tc := range cases {
		item := FileListItem{Size: tc.size}
		if got := item.SizeString(); got != tc.want {
			t.Fatalf("SizeString(%d) = %q, want %q", tc.size, got, tc.want)
		}
	}
}

func TestDetectMediaKind(t *testing.T) {
	cases := []struct {
		filename string
		mime     string
		want     MediaKind
	}{
		{"cat.jpg", "image/jpeg", MediaPhoto},
		{"cat.gif", "image/gif", MediaAnimation},
		{"clip.mp4", "video/mp4", MediaVideo},
		{"song.mp3", "audio/mpeg", MediaAudio},
		{"cat.jpg", "", MediaPhoto},
		{"cat.gif", "", MediaAnimation},
		{"clip.mkv", "", MediaVideo},
		{"song.flac", "", MediaAudio},
		{"report.pdf", "", MediaDocument},
		{"noext", "", MediaDocument},
	}
	for _, tc := range cases {
		if got := DetectMediaKind(tc.filename, tc.mime); got != tc.want {
			t.Fatalf("DetectMediaKind(%q, %q) = %v, want %v", tc.filename, tc.mime, got, tc.want)
		}
	}
}

func TestMediaInfoExtension(t *testing.T) {
	cases := []struct {
		info MediaInfo
		want string
	}{
		{MediaInfo{Filename: "report.pdf"}, ".pdf"},
		{MediaInfo{Kind: MediaPhoto}, ".jpg"},
		{MediaInfo{Kind: MediaVoice}, ".ogg"},
		{MediaInfo{Kind: MediaDocument}, ""},
		{MediaInfo{Filename: "noext", Kind: MediaDocument}, ""},
	}
	for _, tc := range cases {
		if got := tc.info.Extension(); got != tc.want {
			t.Fatalf("Extension() = %q, want %q", got, tc.want)
		}
	}
}

func TestMediaKindClassification(t *testing.T) {
	media := []MediaKind{MediaPhoto, MediaVideo, MediaAnimation}
	docs := []MediaKind{MediaDocument, MediaAudio, MediaVoice, MediaSticker, MediaVideoNote}
	for _, k := range media {
		if !k.IsMedia() || k.IsDocument() {
			t.Fatalf("%v should classify as media only", k)
		}
	}
	for _, k := range docs {
		if !k.IsDocument() || k.IsMedia() {
			t.Fatalf("%v should classify as document only", k)
		}
	}
}
