// Copyright 2026 The Nodexec Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

// checkSetupCmd implements "check-setup": it loads and validates the
// policy file and reports whether the binary holds the privilege it
// needs, without performing any operation. Run it after installation
// or a policy change.
func checkSetupCmd(args []string) error {
	fs := pflag.NewFlagSet("check-setup", pflag.ContinueOnError)
	configPath := fs.String("config", "", "Path to the policy file")
	fs.Usage = func() {
		fmt.Print(`nodexec check-setup - Validate the policy file and helper privileges

USAGE
    nodexec check-setup [--config <file>]

FLAGS
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	pol, err := loadPolicy(*configPath)
	if err != nil {
		return err
	}

	fmt.Printf("policy: ok (min.user.id=%d, %d banned, %d whitelisted)\n",
		pol.MinUserID, len(pol.BannedUsers), len(pol.AllowedSystemUsers))
	fmt.Printf("local.dirs: %v\n", pol.LocalDirs)
	fmt.Printf("log.dirs: %v\n", pol.LogDirs)

	if os.Geteuid() != 0 {
		fmt.Println("warning: effective uid is not 0; as-user operations will only work for the invoking user")
	} else {
		fmt.Println("privilege: ok (effective uid 0)")
	}
	return nil
}
