// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package prefetch

import (
	"container/heap"
	"context"
	"testing"
	"time"

	"github.com/telegramfs/tgfs/internal/entity"
	"github.com/telegramfs/tgfs/internal/formatcache"
	"github.com/telegramfs/tgfs/internal/render"
	"github.com/telegramfs/tgfs/internal/store"
	"github.com/telegramfs/tgfs/internal/telegram"
	"github.com/telegramfs/tgfs/lib/clock"
)

func newTestPrefetcher(t *testing.T, cfg Config) (*Prefetcher, *telegram.Mock, *store.Store, clock.Clock) {
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

	return New(mock, st, renderer, fake, nil, cfg), mock, st, fake
}

func TestQueueEntryOrdering(t *testing.T) {
	var q entryQueue
	heap.Push(&q, queueEntry{priority: PriorityLow, negTS: -100, chatID: 1})
	heap.Push(&q, queueEntry{priority: PriorityHigh, negTS: -50, chatID: 2})
	heap.Push(&q, queueEntry{priority: PriorityHigh, negTS: -200, chatID: 3}) // more recent (larger ts)
	heap.Push(&q, queueEntry{priority: PriorityNormal, negTS: -10, chatID: 4})

	var order []int64
	for q.Len() > 0 {
		order = append(order, heap.Pop(&q).(queueEntry).chatID)
	}

	// Chat 3 is High priority and most recent (ts=200), so it pops first;
	// chat 2 is High but older (ts=50); then Normal; then Low.
	want := []int64{3, 2, 4, 1}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestQueueChatAndNextChat(t *testing.T) {
	p, _, _, _ := newTestPrefetcher(t, Config{})
	ctx := context.Background()

	p.QueueChat(5, PriorityNormal)
	p.QueueChat(6, PriorityHigh)

	chatID, ok := p.nextChat(ctx)
	if !ok || chatID != 6 {
		t.Fatalf("nextChat = %d, %v, want 6, true", chatID, ok)
	}
	chatID, ok = p.nextChat(ctx)
	if !ok || chatID != 5 {
		t.Fatalf("nextChat = %d, %v, want 5, true", chatID, ok)
	}
}

func TestNeedsFetch(t *testing.T) {
	p, _, st, fake := newTestPrefetcher(t, Config{MinMessages: 10, PrefetchInterval: time.Minute})
	ctx := context.Background()

	if !p.needsFetch(ctx, 1) {
		t.Fatalf("needsFetch should be true for a never-fetched chat")
	}

	if err := st.PutChatMessageStats(ctx, telegram.ChatMessageStats{
		ChatID: 1, MessageCount: 3, LastFetchTS: fake.Now().Unix(),
	}); err != nil {
		t.Fatalf("PutChatMessageStats: %v", err)
	}
	if !p.needsFetch(ctx, 1) {
		t.Fatalf("needsFetch should be true when below MinMessages")
	}

	if err := st.PutChatMessageStats(ctx, telegram.ChatMessageStats{
		ChatID: 1, MessageCount: 20, LastFetchTS: fake.Now().Unix(),
	}); err != nil {
		t.Fatalf("PutChatMessageStats: %v", err)
	}
	if p.needsFetch(ctx, 1) {
		t.Fatalf("needsFetch should be false for a fresh, sufficiently-stocked chat")
	}

	advanced := fake.Now().Add(2 * time.Minute)
	fake.Advance(advanced.Sub(fake.Now()))
	if !p.needsFetch(ctx, 1) {
		t.Fatalf("needsFetch should be true once PrefetchInterval has elapsed")
	}
}

func TestFetchChatPersistsAndUpdatesStats(t *testing.T) {
	p, mock, st, fake := newTestPrefetcher(t, Config{MinMessages: 1, MaxHistoryAge: 48 * time.Hour})
	ctx := context.Background()

	mock.AddUser(telegram.User{ID: 1, Username: "alice"})
	mock.AddChat(telegram.Chat{ID: 100, Kind: telegram.ChatGroup, Title: "Dev"})
	mock.SeedMessages(100,
		telegram.Message{ID: 1, ChatID: 100, SenderID: 1, TS: fake.Now().Add(-time.Hour).Unix(), Text: "hello"},
		telegram.Message{ID: 2, ChatID: 100, SenderID: 1, TS: fake.Now().Unix(), Text: "world"},
	)

	p.fetchChat(ctx, 100)

	msgs, err := st.GetMessagesForDisplay(ctx, 100, 0)
	if err != nil {
		t.Fatalf("GetMessagesForDisplay: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("persisted messages = %d, want 2", len(msgs))
	}

	stats, ok, err := st.GetChatMessageStats(ctx, 100)
	if err != nil || !ok {
		t.Fatalf("GetChatMessageStats = ok=%v err=%v", ok, err)
	}
	if stats.MessageCount != 2 {
		t.Fatalf("stats.MessageCount = %d, want 2", stats.MessageCount)
	}
	if stats.LastFetchTS != fake.Now().Unix() {
		t.Fatalf("stats.LastFetchTS = %d, want %d", stats.LastFetchTS, fake.Now().Unix())
	}
}

func TestChatsToFetchOrdering(t *testing.T) {
	p, _, st, _ := newTestPrefetcher(t, Config{})
	ctx := context.Background()

	mustCacheUser(t, st, ctx, telegram.User{ID: 1, IsContact: true, LastMessageTS: 100})
	mustCacheUser(t, st, ctx, telegram.User{ID: 2, IsContact: true, LastMessageTS: 300})
	mustCacheUser(t, st, ctx, telegram.User{ID: 3, IsContact: false, LastMessageTS: 200})

	mustCacheChat(t, st, ctx, telegram.Chat{ID: 10, Kind: telegram.ChatGroup, LastMessageTS: 50})
	mustCacheChat(t, st, ctx, telegram.Chat{ID: 11, Kind: telegram.ChatChannel, LastMessageTS: 400})

	order, err := p.chatsToFetch(ctx)
	if err != nil {
		t.Fatalf("chatsToFetch: %v", err)
	}

	want := []int64{2, 1, 3, 10, 11}
	if len(order) != len(want) {
		t.Fatalf("chatsToFetch = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("chatsToFetch = %v, want %v", order, want)
		}
	}
}

func mustCacheUser(t *testing.T, st *store.Store, ctx context.Context, u telegram.User) {
	t.Helper()
	if err := st.CacheUser(ctx, u); err != nil {
		t.Fatalf("CacheUser: %v", err)
	}
}

func mustCacheChat(t *testing.T, st *store.Store, ctx context.Context, c telegram.Chat) {
	t.Helper()
	if err := st.CacheChat(ctx, c); err != nil {
		t.Fatalf("CacheChat: %v", err)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	p, _, _, _ := newTestPrefetcher(t, Config{PrefetchInterval: time.Hour})
	ctx := context.Background()

	p.Start(ctx)
	if !p.IsRunning() {
		t.Fatalf("expected IsRunning after Start")
	}
	// Starting again is a no-op.
	p.Start(ctx)

	p.Stop()
	if p.IsRunning() {
		t.Fatalf("expected !IsRunning after Stop")
	}
	// Stopping again is a no-op.
	p.Stop()
}
