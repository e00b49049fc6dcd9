// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package prefetch implements the background prefetcher (C8): a single
// worker goroutine draining a priority queue of chats, warming the
// durable cache (C3) and formatted-message cache (C4/C5) ahead of reads,
// rate-limited against the RPC capability.
package prefetch

import (
	"container/heap"
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/telegramfs/tgfs/internal/render"
	"github.com/telegramfs/tgfs/internal/store"
	"github.com/telegramfs/tgfs/internal/telegram"
	"github.com/telegramfs/tgfs/lib/clock"
)

// Priority orders the prefetch queue; lower values are served first.
type Priority int

const (
	PriorityHigh   Priority = iota // on-demand request
	PriorityNormal                 // explicit queueing, not urgent
	PriorityLow                    // periodic background scan
)

// Config tunes the prefetcher's scan cadence and fetch depth.
type Config struct {
	// RateLimitInterval is the minimum spacing between RPC fetches.
	// Default 500ms.
	RateLimitInterval time.Duration

	// PrefetchInterval is how often the worker re-scans for chats to
	// fetch when the queue is empty. Default 5 minutes.
	PrefetchInterval time.Duration

	// MaxHistoryAge bounds how far back a fetch reaches and how old a
	// cached message may get before eviction. Default 48 hours.
	MaxHistoryAge time.Duration

	// MinMessages is the minimum message count considered "enough"
	// history for a chat to be skipped by needsFetch. Default 10.
	MinMessages int
}

func (c Config) withDefaults() Config {
	if c.RateLimitInterval <= 0 {
		c.RateLimitInterval = 500 * time.Millisecond
	}
	if c.PrefetchInterval <= 0 {
		c.PrefetchInterval = 5 * time.Minute
	}
	if c.MaxHistoryAge <= 0 {
		c.MaxHistoryAge = 48 * time.Hour
	}
	if c.MinMessages <= 0 {
		c.MinMessages = 10
	}
	return c
}

type queueEntry struct {
	priority Priority
	negTS    int64
	chatID   int64
}

// entryQueue is a container/heap min-heap ordered by (priority, -ts,
// chat_id), per §4.8: higher priority and more recent chats sort first.
type entryQueue []queueEntry

func (q entryQueue) Len() int { return len(q) }
func (q entryQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	if q[i].negTS != q[j].negTS {
		return q[i].negTS < q[j].negTS
	}
	return q[i].chatID < q[j].chatID
}
func (q entryQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *entryQueue) Push(x any)   { *q = append(*q, x.(queueEntry)) }
func (q *entryQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Prefetcher drives the single background worker goroutine described in
// §4.8/§4.9: it owns a priority queue of chats to warm, a rate limiter,
// and the store/renderer it populates.
type Prefetcher struct {
	client   telegram.Client
	store    *store.Store
	renderer *render.Renderer
	clock    clock.Clock
	logger   *slog.Logger
	cfg      Config
	limiter  *RateLimiter

	running atomic.Bool

	mu    sync.Mutex
	queue entryQueue

	wakeCh chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
}

// New constructs a Prefetcher. It does not start the worker goroutine;
// call Start.
func New(client telegram.Client, st *store.Store, renderer *render.Renderer, clk clock.Clock, logger *slog.Logger, cfg Config) *Prefetcher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Prefetcher{
		client:   client,
		store:    st,
		renderer: renderer,
		clock:    clk,
		logger:   logger,
		cfg:      cfg,
		limiter:  NewRateLimiter(clk, logger, RateLimiterConfig{MinInterval: cfg.RateLimitInterval}),
		wakeCh:   make(chan struct{}, 1),
	}
}

// QueueChat enqueues chatID for a priority fetch, e.g. in response to an
// on-demand directory listing (PriorityHigh).
func (p *Prefetcher) QueueChat(chatID int64, priority Priority) {
	p.mu.Lock()
	heap.Push(&p.queue, queueEntry{priority: priority, negTS: -p.clock.Now().Unix(), chatID: chatID})
	p.mu.Unlock()

	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

// Start launches the worker goroutine. Calling Start while already
// running is a no-op.
func (p *Prefetcher) Start(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		return
	}
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	go p.loop(ctx)
}

// Stop signals the worker to exit and waits for it to do so. Idempotent.
func (p *Prefetcher) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.stopCh)
	<-p.doneCh
}

// IsRunning reports whether the worker goroutine is active.
func (p *Prefetcher) IsRunning() bool { return p.running.Load() }

func (p *Prefetcher) loop(ctx context.Context) {
	defer close(p.doneCh)

	for {
		chatID, ok := p.nextChat(ctx)
		if !ok {
			return
		}
		if !p.needsFetch(ctx, chatID) {
			continue
		}
		if err := p.limiter.Acquire(ctx); err != nil {
			return
		}
		p.fetchChat(ctx, chatID)
	}
}

// nextChat blocks until a chat is available to fetch, the prefetch
// interval elapses (triggering a background scan), or the worker is
// told to stop.
func (p *Prefetcher) nextChat(ctx context.Context) (int64, bool) {
	for {
		p.mu.Lock()
		if p.queue.Len() > 0 {
			entry := heap.Pop(&p.queue).(queueEntry)
			p.mu.Unlock()
			return entry.chatID, true
		}
		p.mu.Unlock()

		select {
		case <-p.stopCh:
			return 0, false
		case <-ctx.Done():
			return 0, false
		case <-p.wakeCh:
			continue
		case <-p.clock.After(p.cfg.PrefetchInterval):
			p.scanForWork(ctx)
			continue
		}
	}
}

// scanForWork enumerates chats per §4.8's ordering and enqueues them at
// PriorityLow, but only if nothing has been queued in the meantime.
func (p *Prefetcher) scanForWork(ctx context.Context) {
	chats, err := p.chatsToFetch(ctx)
	if err != nil {
		p.logger.Warn("prefetch: failed to enumerate chats to fetch", "error", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queue.Len() > 0 {
		return
	}
	negTS := -p.clock.Now().Unix()
	for i, id := range chats {
		// Offset by position so the heap pops in chatsToFetch's order
		// rather than by chat id.
		heap.Push(&p.queue, queueEntry{priority: PriorityLow, negTS: negTS + int64(i), chatID: id})
	}
}

// chatsToFetch returns chat ids in the order contacts (by ts desc) →
// non-contact users (by ts desc) → groups (by ts desc) → channels (by
// ts desc), per §4.8.
func (p *Prefetcher) chatsToFetch(ctx context.Context) ([]int64, error) {
	users, err := p.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	var contacts, nonContacts []int64
	for _, u := range users {
		if u.IsContact {
			contacts = append(contacts, u.ID)
		} else {
			nonContacts = append(nonContacts, u.ID)
		}
	}

	groups, err := p.groupChatsByTSDesc(ctx)
	if err != nil {
		return nil, err
	}
	channels, err := p.store.ListChatsByKind(ctx, telegram.ChatChannel)
	if err != nil {
		return nil, err
	}

	result := make([]int64, 0, len(contacts)+len(nonContacts)+len(groups)+len(channels))
	result = append(result, contacts...)
	result = append(result, nonContacts...)
	result = append(result, groups...)
	for _, c := range channels {
		result = append(result, c.ID)
	}
	return result, nil
}

// groupChatsByTSDesc merges ChatGroup and ChatSupergroup rows — both
// count as "groups" for prefetch ordering — sorted by last_message_ts
// descending.
func (p *Prefetcher) groupChatsByTSDesc(ctx context.Context) ([]int64, error) {
	basic, err := p.store.ListChatsByKind(ctx, telegram.ChatGroup)
	if err != nil {
		return nil, err
	}
	super, err := p.store.ListChatsByKind(ctx, telegram.ChatSupergroup)
	if err != nil {
		return nil, err
	}
	merged := append(append([]telegram.Chat{}, basic...), super...)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].LastMessageTS > merged[j].LastMessageTS })

	ids := make([]int64, len(merged))
	for i, c := range merged {
		ids[i] = c.ID
	}
	return ids, nil
}

// needsFetch reports whether chatID is due for a refresh: never
// fetched, short on cached history, or stale by PrefetchInterval.
func (p *Prefetcher) needsFetch(ctx context.Context, chatID int64) bool {
	stats, ok, err := p.store.GetChatMessageStats(ctx, chatID)
	if err != nil {
		p.logger.Warn("prefetch: failed to read chat stats", "chat_id", chatID, "error", err)
		return false
	}
	if !ok {
		return true
	}
	if stats.MessageCount < p.cfg.MinMessages {
		return true
	}
	age := p.clock.Now().Unix() - stats.LastFetchTS
	return age > int64(p.cfg.PrefetchInterval/time.Second)
}

// fetchChat performs one fetch-persist-format-evict cycle for chatID.
func (p *Prefetcher) fetchChat(ctx context.Context, chatID int64) {
	maxAgeSeconds := int64(p.cfg.MaxHistoryAge / time.Second)
	msgs, err := p.client.GetMessagesUntil(ctx, chatID, p.cfg.MinMessages, maxAgeSeconds)
	if err != nil {
		p.logger.Warn("prefetch: failed to fetch chat", "chat_id", chatID, "error", err)
		return
	}
	if len(msgs) == 0 {
		return
	}

	if err := p.store.CacheMessages(ctx, msgs); err != nil {
		p.logger.Warn("prefetch: failed to cache messages", "chat_id", chatID, "error", err)
		return
	}

	sort.Slice(msgs, func(i, j int) bool { return msgs[i].TS < msgs[j].TS })

	p.renderer.Invalidate(chatID)
	content, err := p.renderer.Render(ctx, chatID)
	if err != nil {
		p.logger.Warn("prefetch: failed to render chat", "chat_id", chatID, "error", err)
		content = ""
	}

	stats := telegram.ChatMessageStats{
		ChatID:          chatID,
		MessageCount:    len(msgs),
		ContentSize:     len(content),
		LastMessageTS:   msgs[len(msgs)-1].TS,
		OldestMessageTS: msgs[0].TS,
		LastFetchTS:     p.clock.Now().Unix(),
	}
	if err := p.store.PutChatMessageStats(ctx, stats); err != nil {
		p.logger.Warn("prefetch: failed to update chat stats", "chat_id", chatID, "error", err)
	}

	cutoff := p.clock.Now().Unix() - maxAgeSeconds
	if err := p.store.EvictOldMessages(ctx, chatID, cutoff); err != nil {
		p.logger.Warn("prefetch: failed to evict old messages", "chat_id", chatID, "error", err)
	}
}
