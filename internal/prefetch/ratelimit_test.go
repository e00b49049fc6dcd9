// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package prefetch

import (
	"context"
	"testing"
	"time"

	"github.com/telegramfs/tgfs/lib/clock"
	"github.com/telegramfs/tgfs/lib/testutil"
)

func TestRateLimiterAcquireRespectsMinInterval(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 8, 6, 12, 0, 0, 0, time.UTC))
	rl := NewRateLimiter(fake, nil, RateLimiterConfig{MinInterval: 100 * time.Millisecond})
	ctx := context.Background()

	if err := rl.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- rl.Acquire(ctx) }()

	fake.WaitForTimers(1)
	select {
	case err := <-done:
		t.Fatalf("second Acquire returned before MinInterval elapsed: %v", err)
	default:
	}

	fake.Advance(100 * time.Millisecond)
	if err := testutil.RequireReceive(t, done, 5*time.Second, "second Acquire after advance"); err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
}

func TestRateLimiterAcquireRespectsContextCancellation(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 8, 6, 12, 0, 0, 0, time.UTC))
	rl := NewRateLimiter(fake, nil, RateLimiterConfig{MinInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	if err := rl.Acquire(context.Background()); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- rl.Acquire(ctx) }()

	fake.WaitForTimers(1)
	cancel()

	err := testutil.RequireReceive(t, done, 5*time.Second, "Acquire after cancel")
	if err == nil {
		t.Fatalf("expected Acquire to return the cancellation error")
	}
}

func TestRateLimiterTryAcquire(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 8, 6, 12, 0, 0, 0, time.UTC))
	rl := NewRateLimiter(fake, nil, RateLimiterConfig{MinInterval: 100 * time.Millisecond})

	if !rl.TryAcquire() {
		t.Fatalf("first TryAcquire should succeed")
	}
	if rl.TryAcquire() {
		t.Fatalf("immediate second TryAcquire should fail")
	}

	fake.Advance(100 * time.Millisecond)
	if !rl.TryAcquire() {
		t.Fatalf("TryAcquire after MinInterval elapsed should succeed")
	}
}
