// Copyright 2026 The Nodexec Authors
// SPDX-License-Identifier: Apache-2.0

// Package privilege implements the helper's irreversible privilege
// narrowing.
//
// The helper starts with root-equivalent effective privilege (setuid
// bit) while its real ids identify the invoking node-manager service
// account. A Context records that service identity exactly once at
// startup, then performs the one-way transition to a validated target
// user. After Narrow succeeds there is no path back: real, effective,
// and saved ids are all set to the target, and the transition verifies
// that re-escalation fails before returning.
//
// The identity change is process-wide. The Go runtime applies setuid
// family syscalls to every thread, but narrowing must still happen
// before any concurrent logical operation starts, because it changes
// what every goroutine in the process may touch.
package privilege

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/fleetgrid/nodexec/lib/identity"
)

// Phase is the monotonic state of a Context. Transitions only advance:
// Initial -> ServiceBound -> Narrowed.
type Phase int

const (
	// Initial is the phase before the service identity is recorded.
	Initial Phase = iota

	// ServiceBound means the invoking service's uid/gid are recorded
	// and effective privilege is still root-equivalent.
	ServiceBound

	// Narrowed means real and effective ids are the target user's.
	// Terminal within this process.
	Narrowed
)

// Narrowing and binding errors.
var (
	// ErrAlreadyBound reports a second BindService call. The service
	// identity is a one-time configuration lock; rebinding would let a
	// compromised caller rewrite who invoked the helper.
	ErrAlreadyBound = errors.New("service identity already bound")

	// ErrPrivilegeDrop reports a failed or unverifiable identity
	// transition. Always fatal: the process must exit rather than run
	// with indeterminate privilege.
	ErrPrivilegeDrop = errors.New("privilege drop failed")
)

// Context is the process-wide privilege state machine. Create one at
// process start and pass it explicitly; operations that must run
// narrowed take it as a dependency so the requirement is visible in
// their signatures.
type Context struct {
	phase      Phase
	serviceUID int
	serviceGID int
	target     identity.Identity
}

// NewContext returns a Context in the Initial phase.
func NewContext() *Context {
	return &Context{phase: Initial}
}

// BindService records the invoking service's uid and gid. Must be
// called exactly once, at process start, before any operation. The
// recorded gid is later used as the group owner of log directories so
// the service can read container logs after narrowing.
func (c *Context) BindService(uid, gid int) error {
	if c.phase != Initial {
		return fmt.Errorf("%w: bound to uid %d gid %d", ErrAlreadyBound, c.serviceUID, c.serviceGID)
	}
	c.serviceUID = uid
	c.serviceGID = gid
	c.phase = ServiceBound
	return nil
}

// ServiceUID returns the bound service uid.
func (c *Context) ServiceUID() int { return c.serviceUID }

// ServiceGID returns the bound service gid.
func (c *Context) ServiceGID() int { return c.serviceGID }

// Phase returns the current phase.
func (c *Context) Phase() Phase { return c.phase }

// Target returns the narrowed-to identity. Valid only in the Narrowed
// phase.
func (c *Context) Target() identity.Identity { return c.target }

// Narrow transitions the process identity to ident.
//
// The group transition runs first: once the uid is non-root the process
// no longer holds the privilege needed to change its gid. Each step is
// followed by the next only on success, and a final verification
// confirms both that the ids now match the target and that escalation
// back to root fails. Any failure returns ErrPrivilegeDrop and the
// caller must terminate the process.
//
// Two already-satisfied cases succeed without syscalls: the Context is
// already narrowed to ident, or the process was started as ident (real
// and effective ids already match, as in an unprivileged test run).
func (c *Context) Narrow(ident identity.Identity) error {
	switch c.phase {
	case Initial:
		return fmt.Errorf("%w: service identity not bound", ErrPrivilegeDrop)
	case Narrowed:
		if c.target == ident {
			return nil
		}
		return fmt.Errorf("%w: already narrowed to %q, cannot renarrow to %q",
			ErrPrivilegeDrop, c.target.Name, ident.Name)
	}

	if unix.Getuid() == ident.UID && unix.Geteuid() == ident.UID {
		// Already running as the target (unprivileged invocation).
		c.target = ident
		c.phase = Narrowed
		return nil
	}

	if unix.Geteuid() != 0 {
		return fmt.Errorf("%w: effective uid %d is not root-equivalent", ErrPrivilegeDrop, unix.Geteuid())
	}

	if err := unix.Setgroups([]int{ident.GID}); err != nil {
		return fmt.Errorf("%w: setgroups(%d): %v", ErrPrivilegeDrop, ident.GID, err)
	}
	if err := unix.Setresgid(ident.GID, ident.GID, ident.GID); err != nil {
		return fmt.Errorf("%w: setresgid(%d): %v", ErrPrivilegeDrop, ident.GID, err)
	}
	if err := unix.Setresuid(ident.UID, ident.UID, ident.UID); err != nil {
		return fmt.Errorf("%w: setresuid(%d): %v", ErrPrivilegeDrop, ident.UID, err)
	}

	if err := verifyNarrowed(ident); err != nil {
		return err
	}

	c.target = ident
	c.phase = Narrowed
	return nil
}

// RequireNarrowedTo verifies the Context is narrowed to ident. Used by
// operations that demand an already-narrowed caller instead of
// narrowing themselves.
func (c *Context) RequireNarrowedTo(ident identity.Identity) error {
	if c.phase != Narrowed || c.target != ident {
		return fmt.Errorf("%w: not narrowed to %q", ErrPrivilegeDrop, ident.Name)
	}
	return nil
}

// verifyNarrowed confirms the identity transition took effect and is
// irreversible.
func verifyNarrowed(ident identity.Identity) error {
	if uid, euid := unix.Getuid(), unix.Geteuid(); uid != ident.UID || euid != ident.UID {
		return fmt.Errorf("%w: uid is %d/%d after drop, want %d", ErrPrivilegeDrop, uid, euid, ident.UID)
	}
	if gid, egid := unix.Getgid(), unix.Getegid(); gid != ident.GID || egid != ident.GID {
		return fmt.Errorf("%w: gid is %d/%d after drop, want %d", ErrPrivilegeDrop, gid, egid, ident.GID)
	}

	// The saved uid must not allow climbing back to root. Setresuid to
	// root succeeding here would mean the drop left an escalation path.
	if err := unix.Setresuid(0, 0, 0); err == nil {
		return fmt.Errorf("%w: process can still regain root after drop", ErrPrivilegeDrop)
	}
	if err := unix.Setresgid(0, 0, 0); err == nil {
		return fmt.Errorf("%w: process can still regain gid 0 after drop", ErrPrivilegeDrop)
	}
	return nil
}
