// Copyright 2026 The Nodexec Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"errors"
	"os/user"
	"strconv"
	"testing"

	"github.com/fleetgrid/nodexec/lib/policy"
)

// currentUser returns the name, uid, and gid of the user running the
// tests. Every system has at least this user and root in passwd.
func currentUser(t *testing.T) (string, int, int) {
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
	return entry.Username, uid, gid
}

func TestValidateAcceptsEligibleUser(t *testing.T) {
	t.Parallel()

	name, uid, gid := currentUser(t)
	if uid == 0 {
		t.Skip("running as root; current user is never eligible")
	}

	pol := &policy.Policy{MinUserID: uid}
	ident, err := Validate(name, pol)
	if err != nil {
		t.Fatalf("Validate(%q) failed: %v", name, err)
	}
	if ident.Name != name || ident.UID != uid || ident.GID != gid {
		t.Errorf("Validate(%q) = %+v, want {%s %d %d}", name, ident, name, uid, gid)
	}
}

func TestValidateRejectsRoot(t *testing.T) {
	t.Parallel()

	pol := &policy.Policy{
		MinUserID:          1,
		AllowedSystemUsers: map[string]bool{"root": true},
	}
	// Even whitelisted, root must be rejected.
	if _, err := Validate("root", pol); !errors.Is(err, ErrRootNotAllowed) {
		t.Errorf("Validate(root) = %v, want ErrRootNotAllowed", err)
	}
}

func TestValidateRejectsBanned(t *testing.T) {
	t.Parallel()

	name, uid, _ := currentUser(t)
	if uid == 0 {
		t.Skip("running as root")
	}

	pol := &policy.Policy{
		MinUserID:   1,
		BannedUsers: map[string]bool{name: true},
		// The banned check must win over the whitelist.
		AllowedSystemUsers: map[string]bool{name: true},
	}
	if _, err := Validate(name, pol); !errors.Is(err, ErrBannedUser) {
		t.Errorf("Validate(%q) = %v, want ErrBannedUser", name, err)
	}
}

func TestValidateRejectsLowUID(t *testing.T) {
	t.Parallel()

	name, uid, _ := currentUser(t)
	if uid == 0 {
		t.Skip("running as root")
	}

	pol := &policy.Policy{MinUserID: uid + 1}
	if _, err := Validate(name, pol); !errors.Is(err, ErrUIDTooLow) {
		t.Errorf("Validate(%q) = %v, want ErrUIDTooLow", name, err)
	}
}

func TestValidateWhitelistBypassesMinUID(t *testing.T) {
	t.Parallel()

	name, uid, _ := currentUser(t)
	if uid == 0 {
		t.Skip("running as root")
	}

	pol := &policy.Policy{
		MinUserID:          uid + 1,
		AllowedSystemUsers: map[string]bool{name: true},
	}
	if _, err := Validate(name, pol); err != nil {
		t.Errorf("Validate(%q) with whitelist failed: %v", name, err)
	}
}

func TestValidateRejectsUnknown(t *testing.T) {
	t.Parallel()

	pol := &policy.Policy{MinUserID: 1}
	if _, err := Validate("no-such-user-nodexec-test", pol); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("Validate(unknown) = %v, want ErrUnknownUser", err)
	}
	if _, err := Validate("", pol); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("Validate(empty) = %v, want ErrUnknownUser", err)
	}
}
