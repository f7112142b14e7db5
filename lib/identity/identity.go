// Copyright 2026 The Nodexec Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity validates target users against the helper policy.
//
// Every operation the helper performs is performed as some OS user, and
// the choice of that user is caller-controlled. Validation is therefore
// the first line of defense: an identity is always resolved through the
// system passwd database (never trusted from caller-supplied numeric
// ids), and is rejected if it is root, banned, or a system account the
// policy has not whitelisted.
package identity

import (
	"errors"
	"fmt"
	"os/user"
	"strconv"

	"github.com/fleetgrid/nodexec/lib/policy"
)

// Validation errors, one per rejection category so the dispatcher can
// map each to a distinct exit status.
var (
	// ErrUnknownUser reports a name with no passwd entry.
	ErrUnknownUser = errors.New("unknown user")

	// ErrBannedUser reports a name in the policy's banned set.
	ErrBannedUser = errors.New("user is banned")

	// ErrRootNotAllowed reports uid 0. Root is never an eligible target
	// identity, whitelisted or not.
	ErrRootNotAllowed = errors.New("root is not allowed as a target user")

	// ErrUIDTooLow reports a uid below the policy minimum for a name
	// that is not whitelisted.
	ErrUIDTooLow = errors.New("uid below configured minimum")
)

// Identity is a resolved, validated OS user.
type Identity struct {
	Name string
	UID  int
	GID  int
}

// Validate resolves name through the passwd database and checks it
// against pol. The whitelist bypasses only the minimum-uid check; the
// banned and root checks apply to every name. Read-only: no side
// effects beyond the lookup.
func Validate(name string, pol *policy.Policy) (Identity, error) {
	if name == "" {
		return Identity{}, fmt.Errorf("%w: empty user name", ErrUnknownUser)
	}

	entry, err := user.Lookup(name)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %q", ErrUnknownUser, name)
	}

	uid, err := strconv.Atoi(entry.Uid)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %q has non-numeric uid %q", ErrUnknownUser, name, entry.Uid)
	}
	gid, err := strconv.Atoi(entry.Gid)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %q has non-numeric gid %q", ErrUnknownUser, name, entry.Gid)
	}

	if pol.BannedUsers[name] {
		return Identity{}, fmt.Errorf("%w: %q", ErrBannedUser, name)
	}
	if uid == 0 {
		return Identity{}, fmt.Errorf("%w: %q", ErrRootNotAllowed, name)
	}
	if uid < pol.MinUserID && !pol.AllowedSystemUsers[name] {
		return Identity{}, fmt.Errorf("%w: %q has uid %d, minimum is %d",
			ErrUIDTooLow, name, uid, pol.MinUserID)
	}

	return Identity{Name: name, UID: uid, GID: gid}, nil
}
