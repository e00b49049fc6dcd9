// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package formatcache implements the bounded in-memory cache of rendered
// "messages" file text (C4): a TTL-aware LRU keyed by chat id. The durable
// cache (internal/store) holds raw messages indefinitely; this cache holds
// the comparatively expensive rendered-markdown text, bounded in both
// count (eviction) and time (TTL), invalidated eagerly whenever a new
// message arrives for a chat.
package formatcache

import (
	"container/list"
	"sync"
	"time"

	"github.com/telegramfs/tgfs/lib/clock"
)

const (
	// DefaultMaxChats bounds the number of chats with cached rendered
	// text held at once.
	DefaultMaxChats = 100

	// DefaultTTL is how long rendered text remains valid before a
	// re-render is forced, even absent an invalidating event.
	DefaultTTL = time.Hour
)

type entry struct {
	chatID      int64
	content     string
	contentSize int
	expiresAt   time.Time
}

// Cache is a bounded, TTL-aware least-recently-used cache of rendered
// message text, one entry per chat. Safe for concurrent use.
type Cache struct {
	clock clock.Clock

	mu       sync.Mutex
	maxChats int
	ttl      time.Duration
	order    *list.List // front = most recently used
	items    map[int64]*list.Element
}

// New constructs a Cache. maxChats <= 0 uses DefaultMaxChats; ttl <= 0
// uses DefaultTTL.
func New(clk clock.Clock, maxChats int, ttl time.Duration) *Cache {
	if maxChats <= 0 {
		maxChats = DefaultMaxChats
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		clock:    clk,
		maxChats: maxChats,
		ttl:      ttl,
		order:    list.New(),
		items:    make(map[int64]*list.Element),
	}
}

// Get returns the cached rendered text for chatID, if present and not
// expired. A hit moves the entry to the front of the LRU order. An
// expired entry is evicted and reported as a miss.
func (c *Cache) Get(chatID int64) (content string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, found := c.items[chatID]
	if !found {
		return "", false
	}
	e := elem.Value.(*entry)
	if c.clock.Now().After(e.expiresAt) {
		c.removeLocked(elem)
		return "", false
	}
	c.order.MoveToFront(elem)
	return e.content, true
}

// GetContentSize returns the byte length of the cached rendered text for
// chatID without affecting LRU order or requiring the caller to re-render
// just to estimate the "messages" file size for getattr.
func (c *Cache) GetContentSize(chatID int64) (size int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, found := c.items[chatID]
	if !found {
		return 0, false
	}
	e := elem.Value.(*entry)
	if c.clock.Now().After(e.expiresAt) {
		c.removeLocked(elem)
		return 0, false
	}
	return e.contentSize, true
}

// Store inserts or replaces the rendered text for chatID, resetting its
// TTL and moving it to the front of the LRU order. If the cache is over
// capacity after the insert, the least-recently-used entry is evicted.
func (c *Cache) Store(chatID int64, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.clock.Now().Add(c.ttl)

	if elem, found := c.items[chatID]; found {
		e := elem.Value.(*entry)
		e.content = content
		e.contentSize = len(content)
		e.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return
	}

	e := &entry{chatID: chatID, content: content, contentSize: len(content), expiresAt: expiresAt}
	elem := c.order.PushFront(e)
	c.items[chatID] = elem

	for c.order.Len() > c.maxChats {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.removeLocked(back)
	}
}

// Invalidate evicts the cached entry for chatID, if any. Called from the
// message-callback fan-out (C9) whenever a new message arrives, so the
// next read re-renders with up-to-date content.
func (c *Cache) Invalidate(chatID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, found := c.items[chatID]; found {
		c.removeLocked(elem)
	}
}

// Len returns the number of entries currently cached, for tests and
// diagnostics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) removeLocked(elem *list.Element) {
	e := elem.Value.(*entry)
	c.order.Remove(elem)
	delete(c.items, e.chatID)
}
