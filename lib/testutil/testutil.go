// Copyright 2026 The Nodexec Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for nodexec packages.
package testutil

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/fleetgrid/nodexec/lib/identity"
)

// SelfIdentity resolves the user running the tests as an Identity.
// Tests exercise the as-user machinery against the one user guaranteed
// to exist and be impersonable without privilege: the current one.
func SelfIdentity(t *testing.T) identity.Identity {
	t.Helper()

	entry, err := user.Current()
	if err != nil {
		t.Fatalf("looking up current user: %v", err)
	}
	uid, err := strconv.Atoi(entry.Uid)
	if err != nil {
		t.Fatalf("non-numeric uid %q: %v", entry.Uid, err)
	}
	gid, err := strconv.Atoi(entry.Gid)
	if err != nil {
		t.Fatalf("non-numeric gid %q: %v", entry.Gid, err)
	}
	return identity.Identity{Name: entry.Username, UID: uid, GID: gid}
}

// WriteFile writes content to path with the given mode, creating parent
// directories as needed, or fails the test.
func WriteFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating parent of %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// RequireRoot skips the test unless it runs with effective uid 0.
// Operations that genuinely change identity or ownership need it.
func RequireRoot(t *testing.T) {
	t.Helper()

	if os.Geteuid() != 0 {
		t.Skip("test requires effective uid 0")
	}
}
