// Copyright 2026 The Nodexec Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nodexec.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing policy file: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := writePolicy(t, `
banned.users: vulture,zuul
min.user.id: 500
allowed.system.users: daemon,bin
local.dirs: /data/local-1,/data/local-2
log.dirs: /var/log/containers
`)

	pol, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if !pol.BannedUsers["vulture"] || !pol.BannedUsers["zuul"] {
		t.Errorf("banned users not parsed: %v", pol.BannedUsers)
	}
	if pol.MinUserID != 500 {
		t.Errorf("MinUserID = %d, want 500", pol.MinUserID)
	}
	if !pol.AllowedSystemUsers["daemon"] || !pol.AllowedSystemUsers["bin"] {
		t.Errorf("allowed system users not parsed: %v", pol.AllowedSystemUsers)
	}
	if len(pol.LocalDirs) != 2 || pol.LocalDirs[0] != "/data/local-1" {
		t.Errorf("local dirs not parsed: %v", pol.LocalDirs)
	}
	if len(pol.Roots()) != 3 {
		t.Errorf("Roots() = %v, want 3 entries", pol.Roots())
	}
}

func TestLoadFileDefaults(t *testing.T) {
	t.Parallel()

	pol, err := LoadFile(writePolicy(t, "local.dirs: /data/local-1\n"))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if pol.MinUserID != DefaultMinUserID {
		t.Errorf("MinUserID = %d, want default %d", pol.MinUserID, DefaultMinUserID)
	}
	if len(pol.BannedUsers) != 0 {
		t.Errorf("expected empty banned set, got %v", pol.BannedUsers)
	}
}

func TestLoadFileRejectsZeroMinUID(t *testing.T) {
	t.Parallel()

	_, err := LoadFile(writePolicy(t, "min.user.id: 0\n"))
	if err == nil {
		t.Fatal("expected error for min.user.id 0")
	}
	if !strings.Contains(err.Error(), "min.user.id") {
		t.Errorf("error should name min.user.id: %v", err)
	}
}

func TestLoadFileRejectsRelativeRoots(t *testing.T) {
	t.Parallel()

	_, err := LoadFile(writePolicy(t, "local.dirs: data/local-1\n"))
	if err == nil {
		t.Fatal("expected error for relative local dir")
	}

	_, err = LoadFile(writePolicy(t, "log.dirs: logs\n"))
	if err == nil {
		t.Fatal("expected error for relative log dir")
	}
}

func TestLoadFileMissing(t *testing.T) {
	t.Parallel()

	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing policy file")
	}
}

func TestLoadFileMalformedYAML(t *testing.T) {
	t.Parallel()

	if _, err := LoadFile(writePolicy(t, "banned.users: [unterminated\n")); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestLoadRequiresEnv(t *testing.T) {
	// Not parallel: mutates the process environment.
	t.Setenv("NODEXEC_CONFIG", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when NODEXEC_CONFIG is unset")
	}
}
