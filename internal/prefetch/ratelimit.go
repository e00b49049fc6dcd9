// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package prefetch

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/telegramfs/tgfs/lib/clock"
)

// RateLimiterConfig configures RateLimiter.
type RateLimiterConfig struct {
	// MinInterval is the minimum spacing enforced between Acquire calls.
	// Default 500ms.
	MinInterval time.Duration

	// MaxPerSecond is a soft requests-per-second cap, checked
	// opportunistically and logged when exceeded rather than blocked
	// on, since the underlying token bucket runs on wall-clock time and
	// would make Acquire's blocking behavior depend on real time even
	// under a fake clock in tests. Default 2.
	MaxPerSecond float64
}

func (c RateLimiterConfig) withDefaults() RateLimiterConfig {
	if c.MinInterval <= 0 {
		c.MinInterval = 500 * time.Millisecond
	}
	if c.MaxPerSecond <= 0 {
		c.MaxPerSecond = 2
	}
	return c
}

// RateLimiter is a minimum-interval rate limiter matching
// original_source's tg::RateLimiter: Acquire blocks the calling
// goroutine until MinInterval has elapsed since the last acquisition;
// TryAcquire is the non-blocking equivalent. A golang.org/x/time/rate
// token bucket backs an additional soft per-second cap, consulted via
// Allow (never Wait) so the limiter's blocking behavior stays entirely
// governed by the injected Clock.
type RateLimiter struct {
	clock  clock.Clock
	logger *slog.Logger

	mu          sync.Mutex
	cfg         RateLimiterConfig
	lastRequest time.Time
	bucket      *rate.Limiter
}

// NewRateLimiter constructs a RateLimiter. clk drives MinInterval
// waits; the soft per-second cap uses its own independent clock since
// golang.org/x/time/rate does not accept an injectable time source.
func NewRateLimiter(clk clock.Clock, logger *slog.Logger, cfg RateLimiterConfig) *RateLimiter {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RateLimiter{
		clock:       clk,
		logger:      logger,
		cfg:         cfg,
		lastRequest: clk.Now().Add(-cfg.MinInterval),
		bucket:      rate.NewLimiter(rate.Limit(cfg.MaxPerSecond), int(cfg.MaxPerSecond)+1),
	}
}

// Acquire blocks until a request slot is available or ctx is done.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	r.mu.Lock()
	wait := r.cfg.MinInterval - r.clock.Now().Sub(r.lastRequest)
	r.mu.Unlock()

	if wait > 0 {
		select {
		case <-r.clock.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	r.lastRequest = r.clock.Now()
	bucket := r.bucket
	r.mu.Unlock()

	if !bucket.Allow() {
		r.logger.Warn("prefetch rate limiter: soft per-second cap exceeded")
	}
	return nil
}

// TryAcquire reports whether a request slot is available without
// blocking, consuming it if so.
func (r *RateLimiter) TryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.clock.Now().Sub(r.lastRequest) < r.cfg.MinInterval {
		return false
	}
	r.lastRequest = r.clock.Now()
	return true
}

// SetConfig atomically replaces the limiter's configuration.
func (r *RateLimiter) SetConfig(cfg RateLimiterConfig) {
	cfg = cfg.withDefaults()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
	r.bucket.SetLimit(rate.Limit(cfg.MaxPerSecond))
	r.bucket.SetBurst(int(cfg.MaxPerSecond) + 1)
}
