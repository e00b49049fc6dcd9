// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Tgfs-mount is the filesystem daemon: it opens the durable cache (C3),
// constructs the entity directory (C2), formatted-message cache
// (C4/C5), shared-file projection (C6), and upload pipeline (C7),
// starts the background prefetcher (C8), wires them all through the
// lifecycle core (C9), and mounts the FUSE node tree (C10) at the
// requested mountpoint.
//
// The Telegram RPC capability itself (§6.1) is consumed, not
// implemented, by this binary: api_id/api_hash are loaded so a real
// binding has what it needs, but wiring an actual MTProto/TDLib client
// is outside this repository's scope, so the daemon boots against the
// deterministic mock capability every other package tests against.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/telegramfs/tgfs/internal/config"
	"github.com/telegramfs/tgfs/internal/core"
	"github.com/telegramfs/tgfs/internal/entity"
	"github.com/telegramfs/tgfs/internal/files"
	"github.com/telegramfs/tgfs/internal/formatcache"
	"github.com/telegramfs/tgfs/internal/prefetch"
	"github.com/telegramfs/tgfs/internal/render"
	"github.com/telegramfs/tgfs/internal/store"
	"github.com/telegramfs/tgfs/internal/telegram"
	"github.com/telegramfs/tgfs/internal/upload"
	"github.com/telegramfs/tgfs/internal/vfs"
	"github.com/telegramfs/tgfs/lib/clock"
	"github.com/telegramfs/tgfs/lib/process"
	"github.com/telegramfs/tgfs/lib/version"
	"golang.org/x/term"
)

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		process.Fatal(err)
	}
}

func run(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("tgfs-mount", flag.ContinueOnError)

	var (
		mountpoint      string
		credentialsPath string
		overridesPath   string
		allowOther      bool
		showVersion     bool
	)

	fs.StringVar(&mountpoint, "mountpoint", "", "directory to mount the filesystem at (required)")
	fs.StringVar(&credentialsPath, "credentials", "", "path to the api_id/api_hash JSON document (default: platform config dir)")
	fs.StringVar(&overridesPath, "overrides", "", "path to an optional mount-tuning YAML document (default: platform config dir)")
	fs.BoolVar(&allowOther, "allow-other", false, "allow other users to access the mount")
	fs.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showVersion {
		fmt.Fprintf(stderr, "tgfs-mount %s\n", version.Info())
		return nil
	}

	logger := slog.New(newLogHandler(stderr))
	slog.SetDefault(logger)

	opts := config.MountOptions{Mountpoint: mountpoint, AllowOther: allowOther}
	if overridesPath == "" {
		if p, err := config.DefaultOverridesPath(); err == nil {
			overridesPath = p
		}
	}
	if overridesPath != "" {
		if overrides, err := config.LoadOverrides(overridesPath); err == nil {
			opts = overrides.Apply(opts)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("loading overrides: %w", err)
		}
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	if credentialsPath == "" {
		p, err := config.DefaultCredentialsPath()
		if err != nil {
			return fmt.Errorf("resolving credentials path: %w", err)
		}
		credentialsPath = p
	}
	creds, err := config.LoadCredentials(credentialsPath)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	logger.Info("credentials loaded", "api_id", creds.APIID)

	paths, err := config.DefaultPaths()
	if err != nil {
		return fmt.Errorf("resolving data paths: %w", err)
	}
	if err := paths.EnsureDirs(); err != nil {
		return fmt.Errorf("preparing data directories: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()

	st, err := store.Open(store.Config{Path: paths.CachePath, Clock: clk, Logger: logger})
	if err != nil {
		return fmt.Errorf("opening durable cache: %w", err)
	}
	defer st.Close()

	// The real RPC capability is consumed, not implemented, here (§6.1);
	// the mock satisfies telegram.Client so the rest of the stack —
	// store, directory, renderer, prefetcher, VFS — runs end to end
	// against it until a real binding is wired in.
	client := telegram.NewMock()

	directory := entity.NewDirectory(client)
	cache := formatcache.New(clk, opts.FormatCacheMaxChats, opts.FormatCacheTTL)
	renderer := render.New(st, cache, directory, clk)
	fileLister := files.New(st, client, paths.FilesDir)
	uploads := upload.New(client, clk, paths.UploadSpoolDir)

	prefetcher := prefetch.New(client, st, renderer, clk, logger, prefetch.Config{
		RateLimitInterval: opts.PrefetchRateLimitInterval,
		PrefetchInterval:  opts.PrefetchInterval,
		MaxHistoryAge:     opts.MaxHistoryAge,
		MinMessages:       opts.MinMessages,
	})

	c := core.New(core.Config{
		Client:     client,
		Store:      st,
		Renderer:   renderer,
		Directory:  directory,
		Prefetcher: prefetcher,
		Logger:     logger,
	})
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("starting core: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.Stop(stopCtx); err != nil {
			logger.Error("core stop failed", "error", err)
		}
	}()

	server, err := vfs.Mount(vfs.Options{
		Mountpoint: opts.Mountpoint,
		Directory:  directory,
		Renderer:   renderer,
		Store:      st,
		Files:      fileLister,
		Uploads:    uploads,
		Client:     client,
		Clock:      clk,
		AllowOther: opts.AllowOther,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("mounting filesystem: %w", err)
	}

	logger.Info("tgfs-mount ready", "mountpoint", opts.Mountpoint)

	<-ctx.Done()
	logger.Info("shutting down")

	if err := server.Unmount(); err != nil {
		return fmt.Errorf("unmounting %s: %w", opts.Mountpoint, err)
	}
	return nil
}

// newLogHandler chooses a text handler for an interactive terminal and a
// JSON handler otherwise, matching the teacher's own stderr-is-a-tty
// check in its CLI binaries.
func newLogHandler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}
