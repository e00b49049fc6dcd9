// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package upload implements the upload pipeline (C7): accepting
// create/write/release syscall sequences, spooling their content to a
// temp file, and dispatching the finished file as a text message, media,
// or a generic document, with pending/completed visibility in between.
package upload

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/telegramfs/tgfs/internal/files"
	"github.com/telegramfs/tgfs/internal/render"
	"github.com/telegramfs/tgfs/internal/telegram"
	"github.com/telegramfs/tgfs/internal/tgerr"
	"github.com/telegramfs/tgfs/lib/clock"
)

// completedWindow is how long a CompletedUpload stays visible to
// getattr/readdir after release, per §4.7's "bridges the gap between
// release returning and subsequent POSIX metadata calls" rationale.
const completedWindow = 30 * time.Second

// mediaExtensions is the fixed allow-list validated against create on a
// media/ category path, matching the image/video extensions detect_media_type
// (§4.13) recognizes for Photo/Animation/Video.
var mediaExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
	".gif": true,
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true,
}

// PendingUpload tracks an in-flight create/write sequence.
type PendingUpload struct {
	FH               int64
	OriginalFilename string
	VirtualPath      string
	ChatID           int64
	Mode             telegram.SendMode
	TempPath         string

	file         *os.File
	bytesWritten int64
}

// CompletedUpload is the fixed-window synthetic entry left behind by a
// finished release, per §3.3's "Pending upload" lifecycle.
type CompletedUpload struct {
	Filename    string
	Size        int64
	CompletedAt time.Time
}

// Entry is a synthetic directory entry contributed by an in-flight or
// recently-completed upload, merged into a chat directory's readdir.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Manager owns the pending/completed upload tables (C7). One Manager is
// shared process-wide, guarded by a single mutex per §5's "one mutex for
// pending_uploads and completed_uploads; held briefly, never across file I/O."
type Manager struct {
	client  telegram.Client
	clock   clock.Clock
	baseDir string

	nextFH int64

	mu        sync.Mutex
	pending   map[int64]*PendingUpload
	completed map[string]CompletedUpload // keyed by VirtualPath
}

// New constructs a Manager. baseDir is the upload spool directory
// (conventionally "$TMPDIR/tg-fuse/uploads"), created lazily on first Create.
func New(client telegram.Client, clk clock.Clock, baseDir string) *Manager {
	return &Manager{
		client:    client,
		clock:     clk,
		baseDir:   baseDir,
		pending:   make(map[int64]*PendingUpload),
		completed: make(map[string]CompletedUpload),
	}
}

// Create opens a new upload, allocating a monotonically increasing file
// handle. category selects the send mode: SendDocument for files/,
// SendMedia for media/ (validated against mediaExtensions), SendAuto for
// a bare chat directory. filename may carry a "YYYYMMDD-HHMM-" prefix
// (e.g. when overwriting a previously listed entry's name), which is
// stripped to recover the name Telegram will see.
func (m *Manager) Create(virtualPath string, chatID int64, category telegram.SendMode, filename string) (int64, error) {
	original := filename
	if _, stripped, ok := files.ParseEntryName(filename); ok {
		original = stripped
	}

	if category == telegram.SendMedia {
		ext := strings.ToLower(filepath.Ext(original))
		if !mediaExtensions[ext] {
			return 0, tgerr.Newf(tgerr.BadInput, "%q is not a permitted media extension", ext)
		}
	}

	if err := os.MkdirAll(m.baseDir, 0o700); err != nil {
		return 0, tgerr.Wrap(tgerr.Backend, err, "create upload spool directory")
	}

	fh := atomic.AddInt64(&m.nextFH, 1)
	tempPath := filepath.Join(m.baseDir, strconv.FormatInt(fh, 10)+"_"+original)
	f, err := os.OpenFile(tempPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, tgerr.Wrap(tgerr.Backend, err, "open upload temp file")
	}

	pu := &PendingUpload{
		FH:               fh,
		OriginalFilename: original,
		VirtualPath:      virtualPath,
		ChatID:           chatID,
		Mode:             category,
		TempPath:         tempPath,
		file:             f,
	}

	m.mu.Lock()
	m.pending[fh] = pu
	m.mu.Unlock()
	return fh, nil
}

// Write appends data at offset to fh's temp file, reporting the new
// high-water mark the way getattr should report the upload's size.
func (m *Manager) Write(fh int64, data []byte, offset int64) (int, error) {
	m.mu.Lock()
	pu, ok := m.pending[fh]
	m.mu.Unlock()
	if !ok {
		return 0, tgerr.Newf(tgerr.NotFound, "unknown upload handle %d", fh)
	}

	n, err := pu.file.WriteAt(data, offset)
	if err != nil {
		return n, tgerr.Wrap(tgerr.Backend, err, "write upload temp file")
	}

	m.mu.Lock()
	if end := offset + int64(n); end > pu.bytesWritten {
		pu.bytesWritten = end
	}
	m.mu.Unlock()
	return n, nil
}

// Truncate resizes fh's temp file, for the C10 truncate dispatch.
func (m *Manager) Truncate(fh int64, size int64) error {
	m.mu.Lock()
	pu, ok := m.pending[fh]
	m.mu.Unlock()
	if !ok {
		return tgerr.Newf(tgerr.NotFound, "unknown upload handle %d", fh)
	}
	if err := pu.file.Truncate(size); err != nil {
		return tgerr.Wrap(tgerr.Backend, err, "truncate upload temp file")
	}
	m.mu.Lock()
	pu.bytesWritten = size
	m.mu.Unlock()
	return nil
}

// Release finalizes fh: it rejects oversized uploads, resolves SendAuto
// to a concrete mode, dispatches the file through client, and records a
// CompletedUpload for the completion window. It always removes fh from
// the pending table, even on error.
func (m *Manager) Release(ctx context.Context, fh int64) error {
	m.mu.Lock()
	pu, ok := m.pending[fh]
	delete(m.pending, fh)
	m.mu.Unlock()
	if !ok {
		return tgerr.Newf(tgerr.NotFound, "unknown upload handle %d", fh)
	}
	defer m.evictExpiredCompleted()

	if err := pu.file.Close(); err != nil {
		return tgerr.Wrap(tgerr.Backend, err, "close upload temp file")
	}

	info, err := os.Stat(pu.TempPath)
	if err != nil {
		return tgerr.Wrap(tgerr.Backend, err, "stat upload temp file")
	}
	if info.Size() > telegram.MaxFileSizeRegular {
		os.Remove(pu.TempPath)
		return tgerr.Newf(tgerr.TooLarge, "upload of %d bytes exceeds the regular-account limit", info.Size())
	}

	if pu.Mode == telegram.SendAuto {
		if sent, handled, err := m.resolveAutoText(ctx, pu, info.Size()); handled {
			if err != nil {
				return err
			}
			m.recordCompleted(pu, sent)
			return nil
		}
		pu.Mode = resolveAutoMode(pu.OriginalFilename)
	}

	finalPath := filepath.Join(m.baseDir, pu.OriginalFilename)
	if finalPath != pu.TempPath {
		if err := os.Rename(pu.TempPath, finalPath); err != nil {
			return tgerr.Wrap(tgerr.Backend, err, "rename upload for send")
		}
	}

	// The RPC layer owns finalPath after this call: it uploads
	// asynchronously and deletes the local file once the send completes.
	if _, err := m.client.SendFile(ctx, pu.ChatID, finalPath, pu.Mode); err != nil {
		return tgerr.Wrap(tgerr.Upstream, err, "send uploaded file")
	}

	m.recordCompleted(pu, info.Size())
	return nil
}

// resolveAutoText handles the AUTO-mode text shortcut: a .txt/.md upload
// whose content passes the valid-text heuristic is sent as one or more
// text messages instead of a file, per §4.7. handled is false when the
// upload does not qualify, in which case the caller falls through to
// resolveAutoMode.
func (m *Manager) resolveAutoText(ctx context.Context, pu *PendingUpload, size int64) (sentSize int64, handled bool, err error) {
	ext := strings.ToLower(filepath.Ext(pu.OriginalFilename))
	if ext != ".txt" && ext != ".md" {
		return 0, false, nil
	}

	data, err := os.ReadFile(pu.TempPath)
	if err != nil {
		return 0, true, tgerr.Wrap(tgerr.Backend, err, "read upload temp file")
	}
	if !render.ValidText(data) {
		return 0, false, nil
	}

	text := render.TrimTrailingNewline(string(data))
	for _, chunk := range render.SplitMessage(text, 0) {
		if _, err := m.client.SendText(ctx, pu.ChatID, chunk); err != nil {
			return 0, true, tgerr.Wrap(tgerr.Upstream, err, "send uploaded text")
		}
	}
	os.Remove(pu.TempPath)
	return size, true, nil
}

func resolveAutoMode(filename string) telegram.SendMode {
	ext := strings.ToLower(filepath.Ext(filename))
	if mediaExtensions[ext] {
		return telegram.SendMedia
	}
	return telegram.SendDocument
}

func (m *Manager) recordCompleted(pu *PendingUpload, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed[pu.VirtualPath] = CompletedUpload{
		Filename:    filepath.Base(pu.VirtualPath),
		Size:        size,
		CompletedAt: m.clock.Now(),
	}
}

// evictExpiredCompleted is the best-effort cleaner invoked on every
// release, dropping CompletedUpload entries older than completedWindow.
func (m *Manager) evictExpiredCompleted() {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for path, c := range m.completed {
		if now.Sub(c.CompletedAt) > completedWindow {
			delete(m.completed, path)
		}
	}
}

// Stat reports the synthetic size and modification time for virtualPath
// if it is currently a pending or recently-completed upload.
func (m *Manager) Stat(virtualPath string) (size int64, modTime time.Time, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pu := range m.pending {
		if pu.VirtualPath == virtualPath {
			return pu.bytesWritten, m.clock.Now(), true
		}
	}
	if c, exists := m.completed[virtualPath]; exists {
		if m.clock.Now().Sub(c.CompletedAt) <= completedWindow {
			return c.Size, c.CompletedAt, true
		}
	}
	return 0, time.Time{}, false
}

// EntriesIn returns the synthetic directory entries (pending or
// recently-completed uploads) whose virtual path's parent is dir, for
// merging into a readdir listing.
func (m *Manager) EntriesIn(dir string) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []Entry
	for _, pu := range m.pending {
		if filepath.Dir(pu.VirtualPath) == dir {
			entries = append(entries, Entry{Name: filepath.Base(pu.VirtualPath), Size: pu.bytesWritten, ModTime: m.clock.Now()})
		}
	}
	now := m.clock.Now()
	for path, c := range m.completed {
		if filepath.Dir(path) != dir {
			continue
		}
		if now.Sub(c.CompletedAt) > completedWindow {
			continue
		}
		entries = append(entries, Entry{Name: c.Filename, Size: c.Size, ModTime: c.CompletedAt})
	}
	return entries
}

// All returns every pending or recently-completed upload's synthetic
// directory entry, regardless of parent directory, for the top-level
// .uploads listing (§6.2).
func (m *Manager) All() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []Entry
	for _, pu := range m.pending {
		entries = append(entries, Entry{Name: filepath.Base(pu.VirtualPath), Size: pu.bytesWritten, ModTime: m.clock.Now()})
	}
	now := m.clock.Now()
	for path, c := range m.completed {
		if now.Sub(c.CompletedAt) > completedWindow {
			continue
		}
		entries = append(entries, Entry{Name: filepath.Base(path), Size: c.Size, ModTime: c.CompletedAt})
	}
	return entries
}
