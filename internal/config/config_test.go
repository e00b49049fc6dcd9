// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCredentials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"api_id": 12345, "api_hash": "deadbeef"}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	creds, err := LoadCredentials(path)
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if creds.APIID != 12345 {
		t.Errorf("APIID = %d, want 12345", creds.APIID)
	}
	if creds.APIHash != "deadbeef" {
		t.Errorf("APIHash = %q, want %q", creds.APIHash, "deadbeef")
	}
}

func TestLoadCredentialsMissingFile(t *testing.T) {
	_, err := LoadCredentials(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("expected error for missing credentials file")
	}
}

func TestLoadCredentialsMissingFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"api_id": 1}`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := LoadCredentials(path)
	if err == nil {
		t.Fatal("expected error for missing api_hash")
	}
}

func TestDefaultPaths(t *testing.T) {
	paths, err := DefaultPaths()
	if err != nil {
		t.Fatalf("DefaultPaths: %v", err)
	}

	if paths.TDLibDir != filepath.Join(paths.DataDir, "tdlib") {
		t.Errorf("TDLibDir = %q, want under DataDir %q", paths.TDLibDir, paths.DataDir)
	}
	if paths.CachePath != filepath.Join(paths.TDLibDir, "cache.db") {
		t.Errorf("CachePath = %q, want under TDLibDir", paths.CachePath)
	}
	if paths.UploadSpoolDir == "" {
		t.Error("UploadSpoolDir should not be empty")
	}
}

func TestPathsEnsureDirs(t *testing.T) {
	root := t.TempDir()
	paths := Paths{
		DataDir:        filepath.Join(root, "data"),
		TDLibDir:       filepath.Join(root, "data", "tdlib"),
		CachePath:      filepath.Join(root, "data", "tdlib", "cache.db"),
		FilesDir:       filepath.Join(root, "data", "files"),
		LogsDir:        filepath.Join(root, "data", "logs"),
		UploadSpoolDir: filepath.Join(root, "uploads"),
	}

	if err := paths.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}

	for _, dir := range []string{paths.DataDir, paths.TDLibDir, paths.FilesDir, paths.LogsDir, paths.UploadSpoolDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("expected %s to exist: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
}

func TestMountOptionsValidate(t *testing.T) {
	if err := DefaultMountOptions().Validate(); err == nil {
		t.Fatal("expected error for missing mountpoint")
	}

	opts := MountOptions{Mountpoint: "/tmp/tg-fuse-mount"}
	if err := opts.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mount.yaml")
	content := "allow_other: true\nmin_messages: 25\nmax_history_age: 72h\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	overrides, err := LoadOverrides(path)
	if err != nil {
		t.Fatalf("LoadOverrides: %v", err)
	}
	if overrides.AllowOther == nil || !*overrides.AllowOther {
		t.Error("expected AllowOther override to be true")
	}
	if overrides.MinMessages == nil || *overrides.MinMessages != 25 {
		t.Errorf("MinMessages = %v, want 25", overrides.MinMessages)
	}

	base := MountOptions{Mountpoint: "/mnt/tg", MinMessages: 10}
	merged := overrides.Apply(base)
	if !merged.AllowOther {
		t.Error("expected merged AllowOther to be true")
	}
	if merged.MinMessages != 25 {
		t.Errorf("merged MinMessages = %d, want 25", merged.MinMessages)
	}
	if merged.Mountpoint != "/mnt/tg" {
		t.Errorf("merged Mountpoint = %q, want unchanged", merged.Mountpoint)
	}
}

func TestLoadOverridesMissingFile(t *testing.T) {
	_, err := LoadOverrides(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing overrides file")
	}
	if !os.IsNotExist(err) {
		t.Errorf("expected a not-exist error, got: %v", err)
	}
}

func TestOverridesApplyLeavesUnsetFieldsAlone(t *testing.T) {
	var o Overrides
	base := MountOptions{Mountpoint: "/mnt/tg", MinMessages: 7}
	merged := o.Apply(base)
	if merged != base {
		t.Errorf("Apply with no overrides changed base: got %+v, want %+v", merged, base)
	}
}
