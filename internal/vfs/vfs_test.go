// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/telegramfs/tgfs/internal/entity"
	"github.com/telegramfs/tgfs/internal/files"
	"github.com/telegramfs/tgfs/internal/formatcache"
	"github.com/telegramfs/tgfs/internal/render"
	"github.com/telegramfs/tgfs/internal/store"
	"github.com/telegramfs/tgfs/internal/telegram"
	"github.com/telegramfs/tgfs/internal/upload"
	"github.com/telegramfs/tgfs/lib/clock"
)

var testTimestamp = time.Unix(1735689600, 0) // 2025-01-01T00:00:00Z

func fuseAvailable(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("skipping: /dev/fuse not available")
	}
}

// testFixture bundles every component the node tree dispatches into, so
// tests can seed the mock client and durable cache directly and then
// exercise the behavior through the real mount.
type testFixture struct {
	mountpoint string
	client     *telegram.Mock
	store      *store.Store
	directory  *entity.Directory
	clock      *clock.FakeClock
}

func testMount(t *testing.T) testFixture {
	t.Helper()
	fuseAvailable(t)

	root := t.TempDir()
	fakeClock := clock.Fake(testTimestamp)

	st, err := store.Open(store.Config{Path: filepath.Join(root, "cache.db"), Clock: fakeClock})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	client := telegram.NewMock()
	directory := entity.NewDirectory(client)
	cache := formatcache.New(fakeClock, 0, 0)
	renderer := render.New(st, cache, directory, fakeClock)
	fileLister := files.New(st, client, filepath.Join(root, "files"))
	uploads := upload.New(client, fakeClock, filepath.Join(root, "uploads"))

	mountpoint := filepath.Join(root, "mount")
	server, err := Mount(Options{
		Mountpoint: mountpoint,
		Directory:  directory,
		Renderer:   renderer,
		Store:      st,
		Files:      fileLister,
		Uploads:    uploads,
		Client:     client,
		Clock:      fakeClock,
	})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	t.Cleanup(func() {
		if err := server.Unmount(); err != nil {
			t.Errorf("Unmount: %v", err)
		}
	})

	return testFixture{mountpoint: mountpoint, client: client, store: st, directory: directory, clock: fakeClock}
}

func TestMountRootLayout(t *testing.T) {
	fx := testMount(t)

	entries, err := os.ReadDir(fx.mountpoint)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name()] = true
	}
	for _, want := range []string{"users", "contacts", "groups", "channels", ".uploads"} {
		if !names[want] {
			t.Errorf("missing root entry %q", want)
		}
	}
}

func TestMountSelfSymlink(t *testing.T) {
	fx := testMount(t)
	fx.client.SetMe(telegram.User{ID: 1, Username: "me", FirstName: "Me"})
	fx.client.AddUser(telegram.User{ID: 1, Username: "me", FirstName: "Me"})
	if err := fx.directory.EnsureMeLoaded(context.Background()); err != nil {
		t.Fatalf("EnsureMeLoaded: %v", err)
	}

	target, err := os.Readlink(filepath.Join(fx.mountpoint, "self"))
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if want := "users/me"; target != want {
		t.Errorf("self target = %q, want %q", target, want)
	}
}

func TestMountUserInfo(t *testing.T) {
	fx := testMount(t)
	fx.client.AddUser(telegram.User{ID: 2, Username: "alice", FirstName: "Alice", Phone: "+1555", IsContact: true})

	content, err := os.ReadFile(filepath.Join(fx.mountpoint, "users", "alice", ".info"))
	if err != nil {
		t.Fatalf("ReadFile .info: %v", err)
	}

	got := string(content)
	for _, want := range []string{"Username: @alice", "Name: Alice", "Phone: +1555", "Last seen:"} {
		if !strings.Contains(got, want) {
			t.Errorf(".info missing %q, got:\n%s", want, got)
		}
	}
}

func TestMountContactsSymlink(t *testing.T) {
	fx := testMount(t)
	fx.client.AddUser(telegram.User{ID: 3, Username: "bob", FirstName: "Bob", IsContact: true})
	fx.client.AddUser(telegram.User{ID: 4, Username: "carol", FirstName: "Carol", IsContact: false})

	entries, err := os.ReadDir(filepath.Join(fx.mountpoint, "contacts"))
	if err != nil {
		t.Fatalf("ReadDir contacts: %v", err)
	}
	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name()] = true
	}
	if !names["bob"] {
		t.Error("expected contact bob listed")
	}
	if names["carol"] {
		t.Error("non-contact carol should not be listed")
	}
}

func TestMountMessagesReadAfterSeed(t *testing.T) {
	fx := testMount(t)
	fx.client.AddUser(telegram.User{ID: 10, Username: "dave", FirstName: "Dave"})
	fx.client.SetMe(telegram.User{ID: 99, Username: "me", FirstName: "Me"})

	msgs := make([]telegram.Message, 0, 12)
	for i := 0; i < 12; i++ {
		msgs = append(msgs, telegram.Message{
			ID: int64(i), ChatID: 10, SenderID: 10,
			TS: testTimestamp.Add(time.Duration(i) * time.Minute).Unix(),
			Text: "hello",
		})
	}
	fx.client.SeedMessages(10, msgs...)

	content, err := os.ReadFile(filepath.Join(fx.mountpoint, "users", "dave", "messages"))
	if err != nil {
		t.Fatalf("ReadFile messages: %v", err)
	}
	if !strings.Contains(string(content), "hello") {
		t.Errorf("messages content missing seeded text, got:\n%s", content)
	}
}

func TestMountMessagesWriteSendsText(t *testing.T) {
	fx := testMount(t)
	fx.client.AddUser(telegram.User{ID: 20, Username: "erin", FirstName: "Erin"})
	fx.client.SetMe(telegram.User{ID: 99, Username: "me", FirstName: "Me"})

	path := filepath.Join(fx.mountpoint, "users", "erin", "messages")
	if err := os.WriteFile(path, []byte("hi there"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if len(fx.client.Sent) != 1 {
		t.Fatalf("expected 1 sent message, got %d", len(fx.client.Sent))
	}
	if fx.client.Sent[0].Text != "hi there" {
		t.Errorf("sent text = %q, want %q", fx.client.Sent[0].Text, "hi there")
	}
	if fx.client.Sent[0].ChatID != 20 {
		t.Errorf("sent chat id = %d, want 20", fx.client.Sent[0].ChatID)
	}
}

func TestMountUnknownUserENOENT(t *testing.T) {
	fx := testMount(t)

	_, err := os.Stat(filepath.Join(fx.mountpoint, "users", "nobody"))
	if err == nil {
		t.Fatal("expected error for unknown user")
	}
	if !os.IsNotExist(err) {
		t.Errorf("expected ENOENT, got: %v", err)
	}
}

func TestMountFilesListAndDownload(t *testing.T) {
	fx := testMount(t)
	fx.client.AddUser(telegram.User{ID: 30, Username: "frank", FirstName: "Frank"})
	fx.client.SeedFiles(30, telegram.FileListItem{
		ChatID: 30, MessageID: 1, Filename: "report.pdf", Size: 5, TS: testTimestamp.Unix(),
		Kind: telegram.MediaDocument, FileID: "file-1",
	})

	entries, err := os.ReadDir(filepath.Join(fx.mountpoint, "users", "frank", "files"))
	if err != nil {
		t.Fatalf("ReadDir files: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 file entry, got %d", len(entries))
	}

	// Opening the entry triggers the lazy download.
	f, err := os.Open(filepath.Join(fx.mountpoint, "users", "frank", "files", entries[0].Name()))
	if err != nil {
		t.Fatalf("Open %s: %v", entries[0].Name(), err)
	}
	f.Close()
	if len(fx.client.Downloaded) != 1 || fx.client.Downloaded[0] != "file-1" {
		t.Errorf("Downloaded = %v, want [file-1]", fx.client.Downloaded)
	}
}

func TestMountUploadBareDirectory(t *testing.T) {
	fx := testMount(t)
	fx.client.AddUser(telegram.User{ID: 40, Username: "gina", FirstName: "Gina"})

	path := filepath.Join(fx.mountpoint, "users", "gina", "photo.jpg")
	content := []byte("not a real jpeg but bytes are bytes")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	found := false
	for _, sent := range fx.client.Sent {
		if sent.IsFile && sent.ChatID == 40 {
			found = true
		}
	}
	if !found {
		t.Error("expected an uploaded file to have been sent for chat 40")
	}
}
