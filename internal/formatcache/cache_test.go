// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package formatcache

import (
	"fmt"
	"testing"
	"time"

	"github.com/telegramfs/tgfs/lib/clock"
)

func TestStoreAndGet(t *testing.T) {
	fake := clock.Fake(time.Unix(1000, 0))
	c := New(fake, 10, time.Hour)

	if _, ok := c.Get(1); ok {
		t.Fatalf("Get on empty cache returned ok")
	}
	c.Store(1, "rendered text")
	content, ok := c.Get(1)
	if !ok || content != "rendered text" {
		t.Fatalf("Get = %q, %v", content, ok)
	}
	size, ok := c.GetContentSize(1)
	if !ok || size != len("rendered text") {
		t.Fatalf("GetContentSize = %d, %v", size, ok)
	}
}

func TestInvalidate(t *testing.T) {
	fake := clock.Fake(time.Unix(1000, 0))
	c := New(fake, 10, time.Hour)
	c.Store(1, "text")
	c.Invalidate(1)
	if _, ok := c.Get(1); ok {
		t.Fatalf("Get after Invalidate returned ok")
	}
}

func TestTTLMonotonicity(t *testing.T) {
	// Once an entry expires it never becomes valid again without a
	// fresh Store, regardless of how far time advances further.
	fake := clock.Fake(time.Unix(1000, 0))
	c := New(fake, 10, time.Minute)
	c.Store(1, "text")

	if _, ok := c.Get(1); !ok {
		t.Fatalf("Get immediately after Store should hit")
	}

	fake.Advance(30 * time.Second)
	if _, ok := c.Get(1); !ok {
		t.Fatalf("Get before TTL elapses should still hit")
	}

	fake.Advance(31 * time.Second) // total 61s > 60s TTL
	if _, ok := c.Get(1); ok {
		t.Fatalf("Get after TTL elapses should miss")
	}

	fake.Advance(time.Hour)
	if _, ok := c.Get(1); ok {
		t.Fatalf("expired entry must stay expired, not revalidate with time")
	}
}

func TestLRUBoundEvictsOldest(t *testing.T) {
	fake := clock.Fake(time.Unix(1000, 0))
	c := New(fake, 3, time.Hour)

	for i := int64(1); i <= 3; i++ {
		c.Store(i, fmt.Sprintf("text-%d", i))
	}
	if c.Len() != 3 {
		t.Fatalf("Len = %d, want 3", c.Len())
	}

	// Touch chat 1 so it is no longer least-recently-used.
	if _, ok := c.Get(1); !ok {
		t.Fatalf("Get(1) should hit")
	}

	// Inserting a 4th entry should evict chat 2 (the actual LRU),
	// not chat 1.
	c.Store(4, "text-4")
	if c.Len() != 3 {
		t.Fatalf("Len after overflow = %d, want 3 (bounded)", c.Len())
	}
	if _, ok := c.Get(2); ok {
		t.Fatalf("expected chat 2 (least recently used) to be evicted")
	}
	if _, ok := c.Get(1); !ok {
		t.Fatalf("expected chat 1 (recently touched) to survive eviction")
	}
	if _, ok := c.Get(3); !ok {
		t.Fatalf("expected chat 3 to survive eviction")
	}
	if _, ok := c.Get(4); !ok {
		t.Fatalf("expected newly stored chat 4 to be present")
	}
}

func TestLRUBoundHoldsUnderManyInserts(t *testing.T) {
	fake := clock.Fake(time.Unix(1000, 0))
	c := New(fake, 5, time.Hour)

	for i := int64(0); i < 500; i++ {
		c.Store(i, fmt.Sprintf("text-%d", i))
		if c.Len() > 5 {
			t.Fatalf("Len = %d exceeded bound of 5 after inserting chat %d", c.Len(), i)
		}
	}
}
