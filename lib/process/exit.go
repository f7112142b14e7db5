// Copyright 2026 The Nodexec Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"os"

	"github.com/fleetgrid/nodexec/lib/deletion"
	"github.com/fleetgrid/nodexec/lib/identity"
	"github.com/fleetgrid/nodexec/lib/lifecycle"
	"github.com/fleetgrid/nodexec/lib/policy"
	"github.com/fleetgrid/nodexec/lib/privilege"
	"github.com/fleetgrid/nodexec/lib/resourcespec"
)

// Exit statuses, one per failure category so the node manager can
// distinguish "user rejected" from "disk error" without parsing
// diagnostics. Stable: external orchestration depends on these values.
const (
	ExitSuccess         = 0
	ExitUsage           = 1
	ExitUnknownUser     = 2
	ExitBannedUser      = 3
	ExitRootNotAllowed  = 4
	ExitUIDTooLow       = 5
	ExitPrivilegeDrop   = 6
	ExitPathNotAllowed  = 7
	ExitTraversalDenied = 8
	ExitFilesystem      = 9
	ExitLaunchFailed    = 10
	ExitSignalDelivery  = 11
	ExitMalformedSpec   = 12
	ExitInvalidConfig   = 13
)

// ExitCode maps err to its category's exit status. Unrecognized errors
// map to ExitUsage, the generic failure.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, identity.ErrUnknownUser):
		return ExitUnknownUser
	case errors.Is(err, identity.ErrBannedUser):
		return ExitBannedUser
	case errors.Is(err, identity.ErrRootNotAllowed):
		return ExitRootNotAllowed
	case errors.Is(err, identity.ErrUIDTooLow):
		return ExitUIDTooLow
	case errors.Is(err, privilege.ErrPrivilegeDrop), errors.Is(err, privilege.ErrAlreadyBound):
		return ExitPrivilegeDrop
	case errors.Is(err, deletion.ErrPathNotAllowed):
		return ExitPathNotAllowed
	case errors.Is(err, deletion.ErrTraversalDenied):
		return ExitTraversalDenied
	case errors.Is(err, deletion.ErrFilesystem), errors.Is(err, lifecycle.ErrStaging):
		return ExitFilesystem
	case errors.Is(err, lifecycle.ErrLaunch):
		return ExitLaunchFailed
	case errors.Is(err, lifecycle.ErrSignalDelivery):
		return ExitSignalDelivery
	case errors.Is(err, resourcespec.ErrMalformed):
		return ExitMalformedSpec
	case errors.Is(err, policy.ErrConfig):
		return ExitInvalidConfig
	default:
		return ExitUsage
	}
}

// Fatal writes "nodexec: err" to stderr and exits with the error's
// category status. Use it in main() for errors from run() where the
// structured logger may not be initialized.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "nodexec: %v\n", err)
	os.Exit(ExitCode(err))
}
