// Copyright 2026 The Nodexec Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"testing"

	"github.com/fleetgrid/nodexec/lib/deletion"
	"github.com/fleetgrid/nodexec/lib/identity"
	"github.com/fleetgrid/nodexec/lib/lifecycle"
	"github.com/fleetgrid/nodexec/lib/policy"
	"github.com/fleetgrid/nodexec/lib/privilege"
	"github.com/fleetgrid/nodexec/lib/resourcespec"
)

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"unknown user", identity.ErrUnknownUser, ExitUnknownUser},
		{"banned user", identity.ErrBannedUser, ExitBannedUser},
		{"root", identity.ErrRootNotAllowed, ExitRootNotAllowed},
		{"uid too low", identity.ErrUIDTooLow, ExitUIDTooLow},
		{"privilege drop", privilege.ErrPrivilegeDrop, ExitPrivilegeDrop},
		{"rebind", privilege.ErrAlreadyBound, ExitPrivilegeDrop},
		{"path not allowed", deletion.ErrPathNotAllowed, ExitPathNotAllowed},
		{"traversal", deletion.ErrTraversalDenied, ExitTraversalDenied},
		{"filesystem", deletion.ErrFilesystem, ExitFilesystem},
		{"staging", lifecycle.ErrStaging, ExitFilesystem},
		{"launch", lifecycle.ErrLaunch, ExitLaunchFailed},
		{"signal", lifecycle.ErrSignalDelivery, ExitSignalDelivery},
		{"malformed spec", resourcespec.ErrMalformed, ExitMalformedSpec},
		{"config", policy.ErrConfig, ExitInvalidConfig},
		{"unrecognized", errors.New("anything else"), ExitUsage},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
			// Wrapped errors map the same way.
			if tt.err != nil {
				wrapped := fmt.Errorf("context: %w", tt.err)
				if got := ExitCode(wrapped); got != tt.want {
					t.Errorf("ExitCode(wrapped %v) = %d, want %d", tt.err, got, tt.want)
				}
			}
		})
	}
}

func TestExitCodesDistinct(t *testing.T) {
	t.Parallel()

	codes := []int{
		ExitSuccess, ExitUsage, ExitUnknownUser, ExitBannedUser,
		ExitRootNotAllowed, ExitUIDTooLow, ExitPrivilegeDrop,
		ExitPathNotAllowed, ExitTraversalDenied, ExitFilesystem,
		ExitLaunchFailed, ExitSignalDelivery, ExitMalformedSpec,
		ExitInvalidConfig,
	}
	seen := make(map[int]bool, len(codes))
	for _, code := range codes {
		if seen[code] {
			t.Errorf("exit code %d assigned to more than one category", code)
		}
		seen[code] = true
	}
}
