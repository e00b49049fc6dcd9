// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package files implements the file/media projection (C6): listing a
// chat's shared documents and media as timestamp-prefixed directory
// entries, resolving an entry name back to the underlying file, and
// downloading its content lazily on first read.
package files

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/telegramfs/tgfs/internal/store"
	"github.com/telegramfs/tgfs/internal/telegram"
	"github.com/telegramfs/tgfs/internal/tgerr"
)

// entryTimeLayout is the timestamp prefix applied to every shared file's
// directory entry name, per §3.3: "YYYYMMDD-HHMM-<original filename>".
const entryTimeLayout = "20060102-1504"

// EntryName synthesizes the directory entry name for a shared-file item.
func EntryName(item telegram.FileListItem) string {
	t := time.Unix(item.TS, 0).UTC()
	return t.Format(entryTimeLayout) + "-" + item.Filename
}

// ParseEntryName splits a synthesized entry name back into the minute-
// aligned Unix timestamp it encodes and the original filename. ok is
// false if name does not match the "YYYYMMDD-HHMM-filename" shape.
func ParseEntryName(name string) (minuteTS int64, filename string, ok bool) {
	if len(name) < len(entryTimeLayout)+1 {
		return 0, "", false
	}
	if name[8] != '-' || name[13] != '-' {
		return 0, "", false
	}
	stamp := name[0:13]
	t, err := time.Parse(entryTimeLayout, stamp)
	if err != nil {
		return 0, "", false
	}
	return t.Unix(), name[14:], true
}

// Entry pairs a synthesized directory entry name with its backing item.
type Entry struct {
	Name string
	Item telegram.FileListItem
}

// Lister projects a chat's cached shared-file rows into directory
// entries and downloads their content on demand.
type Lister struct {
	store       *store.Store
	client      telegram.Client
	downloadDir string

	mu     sync.Mutex
	listed map[int64]bool
}

// New constructs a Lister. downloadDir is the directory lazily-downloaded
// file content is spooled into; it is created on first use.
func New(st *store.Store, client telegram.Client, downloadDir string) *Lister {
	return &Lister{store: st, client: client, downloadDir: downloadDir, listed: make(map[int64]bool)}
}

// List returns the directory entries for chatID's files/ (mediaOnly
// false) or media/ (mediaOnly true) projection, newest first. On first
// call for a given chat it performs the one-shot list-files/list-media
// fetch described in §4.6 before consulting the durable cache.
func (l *Lister) List(ctx context.Context, chatID int64, mediaOnly bool) ([]Entry, error) {
	if err := l.ensureFetched(ctx, chatID); err != nil {
		return nil, err
	}

	items, err := l.store.ListFiles(ctx, chatID, mediaOnly)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(items))
	for i, item := range items {
		entries[i] = Entry{Name: EntryName(item), Item: item}
	}
	return entries, nil
}

// ensureFetched performs the one-shot RPC fetch for chatID at most once,
// per the "check-acquire-fetch-insert" idiom C2 uses for its own lazy
// loads (§5). A chat whose upstream listing is genuinely empty is still
// marked fetched, so repeated readdir calls do not re-issue the RPCs.
func (l *Lister) ensureFetched(ctx context.Context, chatID int64) error {
	l.mu.Lock()
	done := l.listed[chatID]
	l.mu.Unlock()
	if done {
		return nil
	}

	if err := l.fetchAndPersist(ctx, chatID); err != nil {
		return err
	}

	l.mu.Lock()
	l.listed[chatID] = true
	l.mu.Unlock()
	return nil
}

// fetchAndPersist issues list_files and list_media concurrently, merges
// the results, and persists them into C3 in a single batch.
func (l *Lister) fetchAndPersist(ctx context.Context, chatID int64) error {
	var documents, media []telegram.FileListItem
	var documentsErr, mediaErr error

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		documents, documentsErr = l.client.ListFiles(ctx, chatID)
	}()
	go func() {
		defer wg.Done()
		media, mediaErr = l.client.ListMedia(ctx, chatID)
	}()
	wg.Wait()

	if documentsErr != nil {
		return tgerr.Wrap(tgerr.Upstream, documentsErr, "list files")
	}
	if mediaErr != nil {
		return tgerr.Wrap(tgerr.Upstream, mediaErr, "list media")
	}

	all := make([]telegram.FileListItem, 0, len(documents)+len(media))
	all = append(all, documents...)
	all = append(all, media...)
	return l.store.CacheFiles(ctx, all)
}

// Lookup resolves an entry name within chatID back to its backing
// FileListItem, by parsing the timestamp prefix and matching it (at
// minute granularity) against the original filename in the durable cache.
func (l *Lister) Lookup(ctx context.Context, chatID int64, entryName string) (telegram.FileListItem, bool, error) {
	minuteTS, filename, ok := ParseEntryName(entryName)
	if !ok {
		return telegram.FileListItem{}, false, nil
	}
	return l.store.LookupFile(ctx, chatID, filename, minuteTS)
}

// Download ensures item's content is present on local disk, fetching it
// over RPC only if not already downloaded, and returns the local path.
func (l *Lister) Download(ctx context.Context, item telegram.FileListItem) (string, error) {
	if err := os.MkdirAll(l.downloadDir, 0o700); err != nil {
		return "", tgerr.Wrap(tgerr.Backend, err, "create download directory")
	}

	dest := l.localPath(item)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	path, err := l.client.DownloadFile(ctx, item.FileID, dest)
	if err != nil {
		return "", tgerr.Wrap(tgerr.Upstream, err, "download file "+item.FileID)
	}
	return path, nil
}

func (l *Lister) localPath(item telegram.FileListItem) string {
	ext := filepath.Ext(item.Filename)
	name := strconv.FormatInt(item.ChatID, 10) + "-" + strconv.FormatInt(item.MessageID, 10) + ext
	return filepath.Join(l.downloadDir, name)
}

// SizeString renders a human-readable byte count for item, delegating to
// telegram.FileListItem.SizeString for the exact algorithm.
func SizeString(item telegram.FileListItem) string {
	return item.SizeString()
}
