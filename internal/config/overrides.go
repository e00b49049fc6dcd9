// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Overrides is an optional YAML document that adjusts MountOptions
// without touching the command line, the same role the teacher's own
// per-environment ConfigOverrides plays against its base Config: every
// field is a pointer so an absent key leaves the base MountOptions value
// untouched. Unlike Credentials, nothing here is secret, so it is
// plain YAML rather than JSON — matching the teacher's config idiom for
// the one document in this system that benefits from being
// hand-editable and commentable.
type Overrides struct {
	AllowOther *bool `yaml:"allow_other,omitempty"`

	FormatCacheMaxChats *int           `yaml:"format_cache_max_chats,omitempty"`
	FormatCacheTTL      *time.Duration `yaml:"format_cache_ttl,omitempty"`

	PrefetchRateLimitInterval *time.Duration `yaml:"prefetch_rate_limit_interval,omitempty"`
	PrefetchInterval         *time.Duration `yaml:"prefetch_interval,omitempty"`
	MaxHistoryAge            *time.Duration `yaml:"max_history_age,omitempty"`
	MinMessages              *int           `yaml:"min_messages,omitempty"`
}

// LoadOverrides reads an Overrides document from path. A missing file
// is not an error: the overrides document is optional, so callers check
// os.IsNotExist themselves if they care.
func LoadOverrides(path string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Overrides{}, err
	}

	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return Overrides{}, fmt.Errorf("parsing overrides %s: %w", path, err)
	}
	return o, nil
}

// Apply layers non-nil fields of o onto base, returning the merged
// result. A non-nil field replaces the value in base, including one the
// caller set from a flag (AllowOther).
func (o Overrides) Apply(base MountOptions) MountOptions {
	if o.AllowOther != nil {
		base.AllowOther = *o.AllowOther
	}
	if o.FormatCacheMaxChats != nil {
		base.FormatCacheMaxChats = *o.FormatCacheMaxChats
	}
	if o.FormatCacheTTL != nil {
		base.FormatCacheTTL = *o.FormatCacheTTL
	}
	if o.PrefetchRateLimitInterval != nil {
		base.PrefetchRateLimitInterval = *o.PrefetchRateLimitInterval
	}
	if o.PrefetchInterval != nil {
		base.PrefetchInterval = *o.PrefetchInterval
	}
	if o.MaxHistoryAge != nil {
		base.MaxHistoryAge = *o.MaxHistoryAge
	}
	if o.MinMessages != nil {
		base.MinMessages = *o.MinMessages
	}
	return base
}

// DefaultOverridesPath returns $XDG_CONFIG_HOME/tg-fuse/mount.yaml (or
// the platform equivalent via os.UserConfigDir).
func DefaultOverridesPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config directory: %w", err)
	}
	return filepath.Join(dir, appName, "mount.yaml"), nil
}
