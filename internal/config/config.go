// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the two configuration surfaces this system needs:
// Telegram API credentials (a small JSON document, matching the shape the
// retrieval pack's own Telegram bridge uses) and mount/runtime options
// (mountpoint and allow-other from flags, the tuning knobs from an
// optional YAML overrides document, following the same
// Default-then-override shape the teacher's own config package uses for
// its YAML).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// appName names the subdirectory this system uses under the platform's
// config/cache/temp directories (§6.5).
const appName = "tg-fuse"

// Credentials holds the Telegram API id/hash pair issued by
// my.telegram.org, the only secret this system needs at rest.
type Credentials struct {
	APIID   int    `json:"api_id"`
	APIHash string `json:"api_hash"`
}

// DefaultCredentialsPath returns $XDG_CONFIG_HOME/tg-fuse/config.json
// (or the platform equivalent via os.UserConfigDir).
func DefaultCredentialsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config directory: %w", err)
	}
	return filepath.Join(dir, appName, "config.json"), nil
}

// LoadCredentials reads and validates the api_id/api_hash pair from path.
func LoadCredentials(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("reading credentials %s: %w", path, err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("parsing credentials %s: %w", path, err)
	}
	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// Validate checks that both credential fields are present.
func (c Credentials) Validate() error {
	if c.APIID == 0 {
		return fmt.Errorf("api_id is required")
	}
	if c.APIHash == "" {
		return fmt.Errorf("api_hash is required")
	}
	return nil
}

// Paths resolves the persisted-state layout of §6.5: tdlib's own
// database directory, the durable cache (C3), the local download/upload
// spool, and logs, all rooted under the platform's data directory except
// the upload spool, which lives under the platform's temp directory so
// it never survives a reboot.
type Paths struct {
	// DataDir is $XDG_DATA_HOME/tg-fuse.
	DataDir string

	// TDLibDir is DataDir/tdlib, owned by the RPC capability.
	TDLibDir string

	// CachePath is DataDir/tdlib/cache.db, the durable cache (C3).
	CachePath string

	// FilesDir is DataDir/files, downloaded and uploadable content.
	FilesDir string

	// LogsDir is DataDir/logs.
	LogsDir string

	// UploadSpoolDir is $TMPDIR/tg-fuse/uploads.
	UploadSpoolDir string
}

// DefaultPaths resolves Paths from $XDG_DATA_HOME (or ~/.local/share when
// it is unset, the XDG default) and from os.TempDir for TMPDIR.
func DefaultPaths() (Paths, error) {
	dataRoot := os.Getenv("XDG_DATA_HOME")
	if dataRoot == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, fmt.Errorf("resolving data directory: %w", err)
		}
		dataRoot = filepath.Join(home, ".local", "share")
	}
	dataDir := filepath.Join(dataRoot, appName)
	tdlibDir := filepath.Join(dataDir, "tdlib")

	return Paths{
		DataDir:        dataDir,
		TDLibDir:       tdlibDir,
		CachePath:      filepath.Join(tdlibDir, "cache.db"),
		FilesDir:       filepath.Join(dataDir, "files"),
		LogsDir:        filepath.Join(dataDir, "logs"),
		UploadSpoolDir: filepath.Join(os.TempDir(), appName, "uploads"),
	}, nil
}

// EnsureDirs creates every directory Paths names, mirroring the
// teacher's Config.EnsurePaths.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.DataDir, p.TDLibDir, p.FilesDir, p.LogsDir, p.UploadSpoolDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// MountOptions holds the runtime knobs that shape the mount and its
// background behavior. Mountpoint and AllowOther come from command-line
// flags; the other fields stay zero (meaning the component default)
// unless the optional YAML Overrides document sets them.
type MountOptions struct {
	// Mountpoint is the directory to mount the filesystem at. Required.
	Mountpoint string

	// AllowOther permits other users to access the mount.
	AllowOther bool

	// FormatCacheMaxChats bounds C4's bounded LRU. Zero uses
	// formatcache.DefaultMaxChats.
	FormatCacheMaxChats int

	// FormatCacheTTL bounds how long C4 entries stay valid. Zero uses
	// formatcache.DefaultTTL.
	FormatCacheTTL time.Duration

	// PrefetchRateLimitInterval bounds how often C8 issues fetch RPCs.
	// Zero uses the prefetcher's own default.
	PrefetchRateLimitInterval time.Duration

	// PrefetchInterval is how often C8 rescans for stale chats. Zero
	// uses the prefetcher's own default.
	PrefetchInterval time.Duration

	// MaxHistoryAge bounds how far back a fetch reaches and how old a
	// cached message may get before eviction. Zero uses the
	// prefetcher's own default.
	MaxHistoryAge time.Duration

	// MinMessages is the minimum per-chat message count considered
	// "enough" before a backfill is skipped. Zero uses the
	// prefetcher's own default.
	MinMessages int
}

// DefaultMountOptions returns a MountOptions with every duration/count
// left at zero, so each downstream component's own default applies;
// Mountpoint has no sensible default and must be supplied by the caller.
func DefaultMountOptions() MountOptions {
	return MountOptions{}
}

// Validate checks that the options required for a mount to proceed are
// present.
func (o MountOptions) Validate() error {
	if o.Mountpoint == "" {
		return fmt.Errorf("mountpoint is required")
	}
	return nil
}
