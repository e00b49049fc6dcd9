// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/telegramfs/tgfs/internal/entity"
	"github.com/telegramfs/tgfs/internal/formatcache"
	"github.com/telegramfs/tgfs/internal/prefetch"
	"github.com/telegramfs/tgfs/internal/render"
	"github.com/telegramfs/tgfs/internal/store"
	"github.com/telegramfs/tgfs/internal/telegram"
	"github.com/telegramfs/tgfs/lib/clock"
)

type stubPrefetcher struct {
	started bool
	stopped bool
	queued  []int64
}

func (s *stubPrefetcher) Start(ctx context.Context)                       { s.started = true }
func (s *stubPrefetcher) Stop()                                           { s.stopped = true }
func (s *stubPrefetcher) QueueChat(chatID int64, priority prefetch.Priority) { s.queued = append(s.queued, chatID) }

func newTestCore(t *testing.T) (*Core, *telegram.Mock, *store.Store, *entity.Directory, *stubPrefetcher) {
	t.Helper()
	fake := clock.Fake(time.Date(2026, 8, 6, 12, 0, 0, 0, time.UTC))

	st, err := store.Open(store.Config{Path: ":memory:", PoolSize: 1, Clock: fake})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	mock := telegram.NewMock()
	dir := entity.NewDirectory(mock)
	cache := formatcache.New(fake, 10, time.Hour)
	renderer := render.New(st, cache, dir, fake)

	stub := &stubPrefetcher{}
	c := &Core{client: mock, store: st, renderer: renderer, directory: dir, prefetcher: stub, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	return c, mock, st, dir, stub
}

func TestStartStopLifecycle(t *testing.T) {
	c, _, _, _, stub := newTestCore(t)
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !stub.started {
		t.Fatalf("expected prefetcher to be started")
	}
	if err := c.Start(ctx); err == nil {
		t.Fatalf("expected second Start to fail")
	}

	if err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !stub.stopped {
		t.Fatalf("expected prefetcher to be stopped")
	}
	// Stopping again is a no-op, not an error.
	if err := c.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestOnNewMessagePersistsAndInvalidates(t *testing.T) {
	c, mock, st, _, stub := newTestCore(t)
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop(ctx)

	// Prime the render cache so we can observe the invalidation.
	if _, err := c.renderer.Render(ctx, 42); err != nil {
		t.Fatalf("Render: %v", err)
	}

	msg := telegram.Message{ID: 1, ChatID: 42, SenderID: 7, TS: 1000, Text: "hello there"}
	mock.DeliverMessage(msg)

	if size := c.renderer.ContentSizeOrZero(42); size != 0 {
		t.Fatalf("expected chat 42's rendered content to be invalidated, cached size = %d", size)
	}

	got, err := st.GetMessagesForDisplay(ctx, 42, 0)
	if err != nil {
		t.Fatalf("GetMessagesForDisplay: %v", err)
	}
	if len(got) != 1 || got[0].Text != "hello there" {
		t.Fatalf("GetMessagesForDisplay = %+v", got)
	}

	stats, ok, err := st.GetChatMessageStats(ctx, 42)
	if err != nil || !ok {
		t.Fatalf("GetChatMessageStats = ok=%v err=%v", ok, err)
	}
	if stats.MessageCount != 1 || stats.LastMessageTS != 1000 {
		t.Fatalf("GetChatMessageStats = %+v", stats)
	}

	if len(stub.queued) != 1 || stub.queued[0] != 42 {
		t.Fatalf("expected prefetcher to be queued for chat 42, got %+v", stub.queued)
	}
}

func TestOnUserUpdateRefreshesDirectory(t *testing.T) {
	c, mock, _, dir, _ := newTestCore(t)
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop(ctx)

	mock.AddUser(telegram.User{ID: 1, Username: "alice"})
	if err := dir.EnsureUsersLoaded(ctx); err != nil {
		t.Fatalf("EnsureUsersLoaded: %v", err)
	}

	mock.DeliverUserUpdate(telegram.User{ID: 1, Username: "alice_new"})

	if _, ok := dir.LookupUser("alice"); ok {
		t.Fatalf("expected old directory name to be gone after rename")
	}
	got, ok := dir.LookupUser("alice_new")
	if !ok || got.Username != "alice_new" {
		t.Fatalf("LookupUser(alice_new) = %+v, %v", got, ok)
	}
}

func TestOnNewChatInsertsIntoDirectory(t *testing.T) {
	c, mock, _, dir, _ := newTestCore(t)
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop(ctx)

	mock.DeliverNewChat(telegram.Chat{ID: 99, Kind: telegram.ChatGroup, Title: "New Group"})

	got, ok := dir.LookupGroup("New Group")
	if !ok || got.ID != 99 {
		t.Fatalf("LookupGroup(New Group) = %+v, %v", got, ok)
	}
}

func TestOnChatLastMessageUpdatesDirectory(t *testing.T) {
	c, mock, _, dir, _ := newTestCore(t)
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop(ctx)

	mock.AddChat(telegram.Chat{ID: 5, Kind: telegram.ChatChannel, Title: "Announcements"})
	if err := dir.EnsureChannelsLoaded(ctx); err != nil {
		t.Fatalf("EnsureChannelsLoaded: %v", err)
	}

	mock.DeliverChatLastMessage(5, 42, 12345)

	got, ok := dir.LookupChannel("Announcements")
	if !ok || got.LastMessageID != 42 || got.LastMessageTS != 12345 {
		t.Fatalf("LookupChannel(Announcements) = %+v, %v", got, ok)
	}
}
