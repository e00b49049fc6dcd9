// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package core implements the lifecycle and concurrency glue (C9): it
// owns the single RPC update-thread fan-out and the startup/shutdown
// sequencing that wires the durable cache (C3), the formatted-message
// cache (C4/C5), the entity directory (C2), the background prefetcher
// (C8), and the upload pipeline (C7) into one process.
package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/telegramfs/tgfs/internal/entity"
	"github.com/telegramfs/tgfs/internal/prefetch"
	"github.com/telegramfs/tgfs/internal/render"
	"github.com/telegramfs/tgfs/internal/store"
	"github.com/telegramfs/tgfs/internal/telegram"
)

// Core owns the single-process lifecycle: it is constructed once,
// started once, and stopped once. Like the VFS manager it feeds, it
// forbids copy/move by convention — callers hold a *Core, never a Core.
type Core struct {
	client     telegram.Client
	store      *store.Store
	renderer   *render.Renderer
	directory  *entity.Directory
	prefetcher prefetcher
	logger     *slog.Logger

	running bool
}

// prefetcher is satisfied by *prefetch.Prefetcher; tests may substitute
// a stub. Kept as an unexported interface so Core does not force every
// caller to wire a real Prefetcher.
type prefetcher interface {
	Start(ctx context.Context)
	Stop()
	QueueChat(chatID int64, priority prefetch.Priority)
}

// Config wires Core's dependencies. Prefetcher is optional; a nil value
// disables background prefetching entirely (useful for tests and for
// read-only inspection tools).
type Config struct {
	Client     telegram.Client
	Store      *store.Store
	Renderer   *render.Renderer
	Directory  *entity.Directory
	Prefetcher *prefetch.Prefetcher
	Logger     *slog.Logger
}

// New constructs a Core. It does not start anything; call Start.
func New(cfg Config) *Core {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Core{
		client:    cfg.Client,
		store:     cfg.Store,
		renderer:  cfg.Renderer,
		directory: cfg.Directory,
		logger:    logger,
	}
	if cfg.Prefetcher != nil {
		c.prefetcher = cfg.Prefetcher
	}
	return c
}

// Start registers the message callback with the RPC capability, starts
// the RPC capability itself, and starts the prefetcher if one is
// configured. Per §4.9, startup order is: open C3 (already done by the
// caller before constructing Core), construct C4 (likewise), register
// the callback, then optionally start the prefetcher.
func (c *Core) Start(ctx context.Context) error {
	if c.running {
		return fmt.Errorf("core: already started")
	}

	c.client.SetMessageCallback(c.onNewMessage)
	c.client.SetUserCallback(c.onUserUpdate)
	c.client.SetChatCallback(c.onNewChat)
	c.client.SetChatLastMessageCallback(c.onChatLastMessage)

	if err := c.client.Start(ctx); err != nil {
		return fmt.Errorf("core: starting RPC capability: %w", err)
	}

	if c.prefetcher != nil {
		c.prefetcher.Start(ctx)
	}

	c.running = true
	c.logger.Info("core started")
	return nil
}

// Stop stops the prefetcher, then the RPC capability, in that order —
// the reverse of Start — so no new messages arrive mid-shutdown. C3 is
// closed by the caller after Stop returns.
func (c *Core) Stop(ctx context.Context) error {
	if !c.running {
		return nil
	}

	if c.prefetcher != nil {
		c.prefetcher.Stop()
	}

	if err := c.client.Stop(ctx); err != nil {
		return fmt.Errorf("core: stopping RPC capability: %w", err)
	}

	c.running = false
	c.logger.Info("core stopped")
	return nil
}

// onNewMessage is the RPC update thread's updateNewMessage handler
// (§4.9): it persists the message to C3, increments the chat's running
// stats, and invalidates C4 so the next read re-renders with the new
// message included. It never issues a blocking RPC call, satisfying the
// update thread's "must not block for long" contract.
func (c *Core) onNewMessage(msg telegram.Message) {
	if err := c.store.CacheMessages(context.Background(), []telegram.Message{msg}); err != nil {
		c.logger.Error("core: failed to persist incoming message", "chat_id", msg.ChatID, "error", err)
		return
	}

	contentSize := len(msg.Text)
	if err := c.store.IncrementChatStats(context.Background(), msg.ChatID, 1, contentSize, msg.TS); err != nil {
		c.logger.Error("core: failed to update chat stats", "chat_id", msg.ChatID, "error", err)
	}

	c.renderer.Invalidate(msg.ChatID)

	if c.prefetcher != nil {
		c.prefetcher.QueueChat(msg.ChatID, prefetch.PriorityHigh)
	}
}

// onUserUpdate is the updateUser handler: it refreshes C2's cached row
// in place, picking up a changed username, display name, bio, or
// presence status.
func (c *Core) onUserUpdate(u telegram.User) {
	if c.directory != nil {
		c.directory.UpdateUser(u)
	}
}

// onNewChat is the updateNewChat handler: it inserts the newly-visible
// group or channel into C2 so it appears in readdir without waiting for
// the next EnsureGroupsLoaded/EnsureChannelsLoaded refresh.
func (c *Core) onNewChat(ch telegram.Chat) {
	if c.directory != nil {
		c.directory.UpsertChat(ch)
	}
}

// onChatLastMessage is the updateChatLastMessage handler: it keeps C2's
// last-message bookkeeping current for group/channel directory listings
// that sort or display by recency, independent of C3/C4's own state.
func (c *Core) onChatLastMessage(chatID, messageID, ts int64) {
	if c.directory != nil {
		c.directory.UpdateChatLastMessage(chatID, messageID, ts)
	}
}
